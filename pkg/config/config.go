// Package config loads the agent/server configuration from environment
// variables, a YAML file, and built-in defaults, in that order of
// decreasing precedence (flags, applied by the cmd/ layer, take
// precedence over all three).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration object, decoded from a single YAML
// document. Dynamic/runtime-only state (cache contents, metadata log
// position) never lives here.
type Config struct {
	All         AllConfig         `mapstructure:"all" yaml:"all"`
	Client      ClientConfig      `mapstructure:"client" yaml:"client"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	FileBackend FileBackendConfig `mapstructure:"file_backend" yaml:"file_backend"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry" yaml:"telemetry"`
}

// AllConfig holds settings shared by every command.
type AllConfig struct {
	// Debug is decoded from the config file, but no command reads it:
	// the log level is set by Logging.Level alone.
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

// ClientConfig configures the backup agent: which directories to watch,
// how to chunk and send their contents, and where to keep local state.
type ClientConfig struct {
	// Hostname identifies this client to the server; defaults to the OS
	// hostname when empty.
	Hostname string `mapstructure:"hostname" yaml:"hostname"`

	// Roots lists the directories the Carver walks and the EventSource
	// watches. Required by cmd/vigil-agent, irrelevant to the server.
	Roots []string `mapstructure:"roots" yaml:"roots"`

	// ServerAddr is the base URL of the server's wire API, e.g.
	// "http://backup.example.com:5468".
	ServerAddr string `mapstructure:"server_addr" validate:"omitempty,url" yaml:"server_addr"`

	// Adaptive selects the size-tiered block size table over a single
	// fixed BlockSize.
	Adaptive bool `mapstructure:"adaptive" yaml:"adaptive"`

	// BlockSize is the fixed block size used when Adaptive is false.
	BlockSize int `mapstructure:"block_size" validate:"omitempty,min=1" yaml:"block_size"`

	// Compress enables per-block deflate compression on the wire.
	Compress bool `mapstructure:"compress" yaml:"compress"`

	// UploadBufferSize is the byte threshold at which a batch of needed
	// blocks is flushed as one Data_Array POST. Files smaller than their
	// block size post their blocks individually instead.
	UploadBufferSize int `mapstructure:"upload_buffer_size" validate:"omitempty,min=1" yaml:"upload_buffer_size"`

	// CachePath is the directory holding the local sqlite cache file.
	CachePath string `mapstructure:"cache_path" validate:"required" yaml:"cache_path"`

	// Excludes lists regular expressions matched against absolute
	// paths; matching paths are never saved.
	Excludes []string `mapstructure:"excludes" yaml:"excludes,omitempty"`

	// ReconnectInterval is how often the Reconnector checks for
	// buffered unsent requests and probes server liveness.
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval" yaml:"reconnect_interval"`
}

// ServerConfig configures the backup server: where it listens and how it
// stores blocks and metadata.
type ServerConfig struct {
	// ListenAddr is the TCP address the wire API listens on, e.g.
	// ":5468".
	ListenAddr string `mapstructure:"listen_addr" validate:"required" yaml:"listen_addr"`

	// MetaRoot is the directory holding the per-host metadata logs and,
	// when IndexBackend is "badger", their index.
	MetaRoot string `mapstructure:"meta_root" validate:"required" yaml:"meta_root"`

	// ObjectStoreBackend selects "fs" or "s3".
	ObjectStoreBackend string `mapstructure:"object_store_backend" validate:"required,oneof=fs s3" yaml:"object_store_backend"`

	// S3 configures the object store when ObjectStoreBackend is "s3".
	S3 S3Config `mapstructure:"s3" yaml:"s3"`

	// IndexBackend selects "badger" (embedded, under MetaRoot) or
	// "postgres" (shared, via Postgres.DSN) for the (hostname, path) ->
	// latest-offset lookup.
	IndexBackend string `mapstructure:"index_backend" validate:"required,oneof=badger postgres" yaml:"index_backend"`

	// Postgres configures the metadata index when IndexBackend is
	// "postgres".
	Postgres PostgresIndexConfig `mapstructure:"postgres" yaml:"postgres"`

	// MetricsEnabled toggles the Prometheus /metrics endpoint.
	MetricsEnabled bool `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`

	// QueryAuthSecret, when non-empty, requires a valid HS256 bearer
	// token on every File/List.json and Data/*.json request. Empty
	// leaves the query surface unauthenticated, matching the backup
	// wire protocol's own lack of access control.
	QueryAuthSecret string `mapstructure:"query_auth_secret" validate:"omitempty,min=32" yaml:"query_auth_secret,omitempty"`
}

// S3Config configures the S3-backed object store.
type S3Config struct {
	Bucket         string `mapstructure:"bucket" yaml:"bucket"`
	Region         string `mapstructure:"region" yaml:"region"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	KeyPrefix      string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
}

// PostgresIndexConfig configures the Postgres-backed metadata index, used
// when ServerConfig's IndexBackend is "postgres".
type PostgresIndexConfig struct {
	// DSN is a standard libpq connection string, e.g.
	// "host=localhost port=5432 user=vigil dbname=vigil sslmode=disable".
	DSN string `mapstructure:"dsn" yaml:"dsn,omitempty"`
}

// FileBackendConfig configures the filesystem object store.
type FileBackendConfig struct {
	// Root is the store root directory, used when ServerConfig's
	// ObjectStoreBackend is "fs".
	Root string `mapstructure:"root" yaml:"root"`

	// ShardDepth is the number of leading-byte shard levels (1-5).
	ShardDepth int `mapstructure:"shard_depth" validate:"omitempty,min=1,max=5" yaml:"shard_depth"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is "text" or "json".
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is "stdout", "stderr", or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled    bool             `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string           `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool             `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64          `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
	Profiling  ProfilingConfig  `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls continuous Pyroscope profiling, independent of
// trace sampling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types,omitempty"`
}

// Load loads configuration from environment variables
// (VIGIL_<SECTION>_<KEY>), configPath (or the default search path when
// empty), and defaults, in that order of decreasing precedence, then
// validates the result. When no config file is found, it returns
// GetDefaultConfig() as is: environment variables are not read and no
// validation runs.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}
	if !found {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration and fails with actionable instructions
// when no config file is found at an explicitly given path.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config: file not found: %s", configPath)
		}
	}
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: load: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML with owner-only permissions.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("VIGIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(defaultConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read file: %w", err)
	}
	return true, nil
}

func defaultConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "vigil")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vigil"
	}
	return filepath.Join(home, ".config", "vigil")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(defaultConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the
// default path.
func DefaultConfigExists() bool {
	_, err := os.Stat(DefaultConfigPath())
	return err == nil
}

// durationDecodeHook lets config files write human-readable durations
// ("5m", "30s") for time.Duration fields instead of raw nanoseconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}
