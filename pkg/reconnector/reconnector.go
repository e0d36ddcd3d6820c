// Package reconnector periodically drains the local cache's
// unsent-requests buffer once the server becomes reachable again.
package reconnector

import (
	"context"
	"time"

	"github.com/marmos91/vigil/internal/logger"
	"github.com/marmos91/vigil/pkg/cache"
	"github.com/marmos91/vigil/pkg/wireproto"
)

// DefaultInterval is the default time between reconnect attempts.
const DefaultInterval = 5 * time.Minute

// Prober checks server liveness; Version returning without error means
// the server is reachable.
type Prober interface {
	Version(ctx context.Context) (wireproto.VersionResponse, error)
}

// Reconnector runs the drain loop.
type Reconnector struct {
	cache    *cache.Cache
	prober   Prober
	sender   cache.Sender
	interval time.Duration
}

// New builds a Reconnector. sender replays one buffered request; prober
// probes server liveness before attempting a drain.
func New(c *cache.Cache, prober Prober, sender cache.Sender, interval time.Duration) *Reconnector {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reconnector{cache: c, prober: prober, sender: sender, interval: interval}
}

// Run loops until ctx is canceled: check for unsent rows, probe
// liveness, drain on success, sleep, repeat.
func (r *Reconnector) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.attempt(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Reconnector) attempt(ctx context.Context) {
	has, err := r.cache.HasUnsent(ctx)
	if err != nil {
		logger.WarnCtx(ctx, "reconnector: unsent check failed", logger.Err(err))
		return
	}
	if !has {
		return
	}

	if _, err := r.prober.Version(ctx); err != nil {
		logger.DebugCtx(ctx, "reconnector: server still unreachable", logger.Err(err))
		return
	}

	drained, err := r.cache.DrainUnsent(ctx, r.sender)
	if err != nil {
		logger.WarnCtx(ctx, "reconnector: drain failed", logger.Err(err))
		return
	}
	if drained > 0 {
		logger.InfoCtx(ctx, "reconnector: drained buffered requests", logger.UnsentRows(drained))
	}
}
