package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/vigil/internal/logger"
	"github.com/marmos91/vigil/internal/telemetry"
	"github.com/marmos91/vigil/pkg/cache"
	"github.com/marmos91/vigil/pkg/carver"
	"github.com/marmos91/vigil/pkg/config"
	"github.com/marmos91/vigil/pkg/eventsource"
	"github.com/marmos91/vigil/pkg/metaextract"
	"github.com/marmos91/vigil/pkg/reconnector"
	"github.com/marmos91/vigil/pkg/sender"
	"github.com/marmos91/vigil/pkg/wireclient"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the backup agent",
	Long: `Start the backup agent: walk every configured root, watch it for
further changes, and stream new or changed blocks to the configured
server.

Examples:
  # Start with the default config location
  vigil-agent start

  # Start with a custom config file
  vigil-agent start --config /etc/vigil/agent.yaml

  # Override a setting via environment variable
  VIGIL_CLIENT_SERVER_ADDR=http://backup:5468 vigil-agent start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/vigil-agent/vigil-agent.pid)")
}

// saveQueueDepth bounds the backlog of paths waiting for a Sender.
const saveQueueDepth = 4096

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if len(cfg.Client.Roots) == 0 {
		return fmt.Errorf("client.roots must list at least one directory to watch")
	}
	if cfg.Client.ServerAddr == "" {
		return fmt.Errorf("client.server_addr is required")
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "vigil-agent",
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
		ServiceName:    "vigil-agent",
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

	logger.Info("starting vigil-agent", "hostname", cfg.Client.Hostname, "server", cfg.Client.ServerAddr, "roots", cfg.Client.Roots)

	localCache, err := cache.Open(cache.Config{Directory: cfg.Client.CachePath})
	if err != nil {
		return fmt.Errorf("failed to open local cache: %w", err)
	}
	defer func() {
		if err := localCache.Close(); err != nil {
			logger.Error("cache close error", "error", err)
		}
	}()

	excludes := metaextract.CompileExcludeList(cfg.Client.Excludes)

	transport := wireclient.New(cfg.Client.ServerAddr)

	snd := sender.New(sender.Config{
		Hostname:         cfg.Client.Hostname,
		Adaptive:         cfg.Client.Adaptive,
		BlockSize:        cfg.Client.BlockSize,
		UploadBufferSize: cfg.Client.UploadBufferSize,
		Compress:         cfg.Client.Compress,
		Excludes:         excludes,
	}, localCache, transport)

	saveQueue := make(chan string, saveQueueDepth)
	crv := carver.New(cfg.Client.Roots, saveQueue, saveQueueDepth)

	watcher, err := eventsource.NewFsnotifySource(cfg.Client.Roots)
	if err != nil {
		return fmt.Errorf("failed to start filesystem watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logger.Error("watcher close error", "error", err)
		}
	}()

	rcn := reconnector.New(localCache, transport, transport.RawPost, cfg.Client.ReconnectInterval)

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

	errs := make(chan error, 4)
	go func() { errs <- crv.Run(ctx) }()
	go func() { errs <- watcher.Run(ctx) }()
	go func() { errs <- rcn.Run(ctx) }()
	go runSaveLoop(ctx, saveQueue, watcher, crv, snd, errs)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("vigil-agent running, press Ctrl+C to stop")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, stopping")
		cancel()
		return drainErrs(errs, 4)
	case err := <-errs:
		signal.Stop(sigChan)
		cancel()
		if err != nil && err != context.Canceled {
			logger.Error("agent component failed", "error", err)
			return err
		}
		return drainErrs(errs, 3)
	}
}

// runSaveLoop feeds both the Carver's initial walk and the fsnotify
// watcher's change events through one Sender, so the two sources never
// race on the same local-cache writer.
func runSaveLoop(ctx context.Context, saveQueue <-chan string, watcher *eventsource.FsnotifySource, crv *carver.Carver, snd *sender.Sender, errs chan<- error) {
	dirs := crv.DirQueue()
	for {
		select {
		case <-ctx.Done():
			errs <- ctx.Err()
			return
		case path, ok := <-saveQueue:
			if !ok {
				saveQueue = nil
				continue
			}
			if err := snd.Send(ctx, path, dirs); err != nil {
				logger.WarnCtx(ctx, "send failed", logger.Path(path), logger.Err(err))
			}
		case path, ok := <-watcher.Events():
			if !ok {
				continue
			}
			if err := snd.Send(ctx, path, dirs); err != nil {
				logger.WarnCtx(ctx, "send failed", logger.Path(path), logger.Err(err))
			}
		}
	}
}

func drainErrs(errs <-chan error, n int) error {
	for i := 0; i < n; i++ {
		select {
		case err := <-errs:
			if err != nil && err != context.Canceled {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}
