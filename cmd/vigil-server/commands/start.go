package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/vigil/internal/logger"
	"github.com/marmos91/vigil/internal/telemetry"
	"github.com/marmos91/vigil/pkg/api"
	"github.com/marmos91/vigil/pkg/config"
	"github.com/marmos91/vigil/pkg/ingest"
	"github.com/marmos91/vigil/pkg/metalog"
	"github.com/marmos91/vigil/pkg/metalog/index"
	"github.com/marmos91/vigil/pkg/metalog/indexpg"
	"github.com/marmos91/vigil/pkg/metrics/prometheus"
	"github.com/marmos91/vigil/pkg/objectstore"
	fsstore "github.com/marmos91/vigil/pkg/objectstore/fs"
	s3store "github.com/marmos91/vigil/pkg/objectstore/s3"
	"github.com/marmos91/vigil/pkg/query"
	"github.com/marmos91/vigil/pkg/restoreauth"
	promclient "github.com/prometheus/client_golang/prometheus"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the backup server",
	Long: `Start the backup server: listen for wire protocol requests from
vigil-agent clients, store submitted blocks in the configured object
store, and append submitted metadata to each host's metadata log.

Examples:
  # Start with the default config location
  vigil-server start

  # Start with a custom config file
  vigil-server start --config /etc/vigil/server.yaml`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/vigil-server/vigil-server.pid)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "vigil-server",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "vigil-server",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("object store close error", "error", err)
		}
	}()

	log, err := metalog.Open(cfg.Server.MetaRoot)
	if err != nil {
		return fmt.Errorf("failed to open metadata log: %w", err)
	}
	defer func() {
		if err := log.Close(); err != nil {
			logger.Error("metadata log close error", "error", err)
		}
	}()

	idx, err := buildIndex(cfg)
	if err != nil {
		return fmt.Errorf("failed to open metadata index: %w", err)
	}
	defer func() {
		if err := idx.Close(); err != nil {
			logger.Error("metadata index close error", "error", err)
		}
	}()

	var counters *prometheus.Counters
	if cfg.Server.MetricsEnabled {
		counters = prometheus.NewCounters(promclient.DefaultRegisterer)
	}

	var auth *restoreauth.TokenAuth
	if cfg.Server.QueryAuthSecret != "" {
		auth, err = restoreauth.New(cfg.Server.QueryAuthSecret, "vigil-server")
		if err != nil {
			return fmt.Errorf("failed to initialize query auth: %w", err)
		}
	}

	ing := ingest.New(store, log, idx)
	qry := query.New(log, store)
	srv := api.NewServer(ing, qry, counters)
	router := api.NewRouter(srv, auth)

	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: router,
	}

	if pidFile == "" {
		pidFile = GetDefaultPidFile()
	}
	if err := os.MkdirAll(GetDefaultStateDir(), 0o755); err == nil {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
			logger.Warn("failed to write pid file", "path", pidFile, "error", err)
		} else {
			defer func() { _ = os.Remove(pidFile) }()
		}
	}

	serverDone := make(chan error, 1)
	go func() {
		logger.Info("vigil-server listening", "addr", cfg.Server.ListenAddr, "backend", cfg.Server.ObjectStoreBackend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
			return
		}
		serverDone <- nil
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, draining connections")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
			return err
		}
		cancel()
		logger.Info("vigil-server stopped gracefully")
		return nil
	case err := <-serverDone:
		cancel()
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		return nil
	}
}

func buildIndex(cfg *config.Config) (index.Indexer, error) {
	switch cfg.Server.IndexBackend {
	case "postgres":
		return indexpg.Open(indexpg.Config{DSN: cfg.Server.Postgres.DSN})
	default:
		return index.Open(cfg.Server.MetaRoot + "/index")
	}
}

func buildStore(ctx context.Context, cfg *config.Config) (objectstore.Store, error) {
	switch cfg.Server.ObjectStoreBackend {
	case "s3":
		return s3store.NewFromConfig(ctx, s3store.Config{
			Bucket:         cfg.Server.S3.Bucket,
			Region:         cfg.Server.S3.Region,
			Endpoint:       cfg.Server.S3.Endpoint,
			KeyPrefix:      cfg.Server.S3.KeyPrefix,
			ForcePathStyle: cfg.Server.S3.ForcePathStyle,
		})
	default:
		return fsstore.New(fsstore.Config{
			Root:       cfg.FileBackend.Root,
			ShardDepth: cfg.FileBackend.ShardDepth,
		})
	}
}
