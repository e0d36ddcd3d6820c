package config

import "testing"

func TestValidateDefaultConfigPasses(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected default config to be valid, got: %v", err)
	}
}

func TestValidateInvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "VERBOSE"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for invalid log level")
	}
}

func TestValidateFsBackendRequiresRoot(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.FileBackend.Root = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for missing file_backend.root")
	}
}

func TestValidateS3BackendRequiresBucket(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.ObjectStoreBackend = "s3"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for missing server.s3.bucket")
	}
}

func TestValidatePostgresIndexRequiresDSN(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.IndexBackend = "postgres"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for missing server.postgres.dsn")
	}
}

func TestValidateTelemetryRequiresEndpointWhenEnabled(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Endpoint = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for telemetry enabled without endpoint")
	}
}

func TestValidateSampleRateOutOfRange(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.SampleRate = 2.0

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for sample rate out of range")
	}
}
