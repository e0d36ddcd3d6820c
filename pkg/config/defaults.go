package config

import (
	"os"
	"strings"
	"time"
)

// GetDefaultConfig returns a Config populated entirely with defaults,
// used when no config file is found.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero-valued fields of cfg with their defaults.
// Fields the caller explicitly set (Roots, ServerAddr, S3 credentials)
// are left untouched.
func ApplyDefaults(cfg *Config) {
	if cfg.Client.Hostname == "" {
		if h, err := os.Hostname(); err == nil {
			cfg.Client.Hostname = h
		}
	}
	if cfg.Client.BlockSize == 0 {
		cfg.Client.BlockSize = 16384
	}
	if cfg.Client.UploadBufferSize == 0 {
		cfg.Client.UploadBufferSize = 1 << 20
	}
	if cfg.Client.CachePath == "" {
		cfg.Client.CachePath = defaultStateDir("cache")
	}
	if cfg.Client.ReconnectInterval == 0 {
		cfg.Client.ReconnectInterval = 5 * time.Minute
	}

	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":5468"
	}
	if cfg.Server.MetaRoot == "" {
		cfg.Server.MetaRoot = defaultStateDir("meta")
	}
	if cfg.Server.ObjectStoreBackend == "" {
		cfg.Server.ObjectStoreBackend = "fs"
	}
	if cfg.Server.IndexBackend == "" {
		cfg.Server.IndexBackend = "badger"
	}

	if cfg.FileBackend.Root == "" && cfg.Server.ObjectStoreBackend == "fs" {
		cfg.FileBackend.Root = defaultStateDir("blocks")
	}
	if cfg.FileBackend.ShardDepth == 0 {
		cfg.FileBackend.ShardDepth = 2
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	} else {
		cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Telemetry.Profiling.Endpoint == "" {
		cfg.Telemetry.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Telemetry.Profiling.ProfileTypes) == 0 {
		cfg.Telemetry.Profiling.ProfileTypes = []string{"cpu", "alloc_objects", "inuse_objects"}
	}
}

func defaultStateDir(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/var/lib/vigil/" + name
	}
	return home + "/.local/share/vigil/" + name
}
