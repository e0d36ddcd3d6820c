package reconnector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marmos91/vigil/pkg/cache"
	"github.com/marmos91/vigil/pkg/wireproto"
)

type fakeProber struct {
	up bool
}

func (p *fakeProber) Version(ctx context.Context) (wireproto.VersionResponse, error) {
	if !p.up {
		return wireproto.VersionResponse{}, errors.New("connection refused")
	}
	return wireproto.VersionResponse{Version: "1.0.0"}, nil
}

func TestAttemptDrainsOnceServerReachable(t *testing.T) {
	ctx := context.Background()
	c, err := cache.Open(cache.Config{Directory: t.TempDir()})
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	defer c.Close()

	if err := c.BufferUnsent(ctx, "req-1", "/Meta.json", []byte("payload")); err != nil {
		t.Fatalf("BufferUnsent: %v", err)
	}

	prober := &fakeProber{up: false}
	sent := 0
	sender := func(ctx context.Context, endpoint string, payload []byte) error {
		sent++
		return nil
	}

	r := New(c, prober, sender, time.Hour)

	r.attempt(ctx)
	has, err := c.HasUnsent(ctx)
	if err != nil {
		t.Fatalf("HasUnsent: %v", err)
	}
	if !has {
		t.Fatalf("expected unsent row to remain while server unreachable")
	}

	prober.up = true
	r.attempt(ctx)

	has, err = c.HasUnsent(ctx)
	if err != nil {
		t.Fatalf("HasUnsent: %v", err)
	}
	if has {
		t.Fatalf("expected unsent buffer to drain once server reachable")
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
}
