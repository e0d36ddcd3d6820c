package config

import (
	"testing"
	"time"
)

func TestApplyDefaultsLogging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("got level %q, want INFO", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("got format %q, want text", cfg.Logging.Format)
	}
}

func TestApplyDefaultsReconnectInterval(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Client.ReconnectInterval != 5*time.Minute {
		t.Errorf("got reconnect interval %v, want 5m", cfg.Client.ReconnectInterval)
	}
}

func TestApplyDefaultsDoesNotOverwriteExplicitValues(t *testing.T) {
	cfg := &Config{Server: ServerConfig{ListenAddr: ":9999"}}
	ApplyDefaults(cfg)

	if cfg.Server.ListenAddr != ":9999" {
		t.Errorf("expected explicit listen addr preserved, got %q", cfg.Server.ListenAddr)
	}
}

func TestApplyDefaultsNormalizesLogLevelCase(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("got %q, want DEBUG", cfg.Logging.Level)
	}
}
