package config

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate runs struct-tag validation over cfg plus the handful of
// cross-field rules struct tags alone can't express (which object store
// backend's settings are actually required).
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	switch cfg.Server.ObjectStoreBackend {
	case "fs":
		if cfg.FileBackend.Root == "" {
			return errors.New("config: file_backend.root is required when server.object_store_backend is \"fs\"")
		}
	case "s3":
		if cfg.Server.S3.Bucket == "" {
			return errors.New("config: server.s3.bucket is required when server.object_store_backend is \"s3\"")
		}
	}

	if cfg.Server.IndexBackend == "postgres" && cfg.Server.Postgres.DSN == "" {
		return errors.New("config: server.postgres.dsn is required when server.index_backend is \"postgres\"")
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return errors.New("config: telemetry.endpoint is required when telemetry.enabled is true")
	}

	return nil
}
