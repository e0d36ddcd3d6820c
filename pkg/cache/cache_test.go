package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/vigil/pkg/metaextract"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(Config{Directory: t.TempDir()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sampleRecord(path string) metaextract.Record {
	return metaextract.Record{
		Type:  "regular",
		Path:  path,
		UID:   1000,
		GID:   1000,
		Ctime: 100,
		Mtime: 100,
		Mode:  0644,
		Size:  42,
		Inode: 7,
	}
}

func TestIsPresentMissThenHitAfterRecordSaved(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)
	r := sampleRecord("/data/file.txt")

	hit, err := c.IsPresent(ctx, r.Key())
	if err != nil {
		t.Fatalf("IsPresent: %v", err)
	}
	if hit {
		t.Fatalf("expected miss before RecordSaved")
	}

	if err := c.RecordSaved(ctx, r); err != nil {
		t.Fatalf("RecordSaved: %v", err)
	}

	hit, err = c.IsPresent(ctx, r.Key())
	if err != nil {
		t.Fatalf("IsPresent: %v", err)
	}
	if !hit {
		t.Fatalf("expected hit after RecordSaved")
	}
}

func TestBufferAndDrainUnsent(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	if err := c.BufferUnsent(ctx, "req-1", "/Meta.json", []byte("payload-1")); err != nil {
		t.Fatalf("BufferUnsent: %v", err)
	}
	if err := c.BufferUnsent(ctx, "req-2", "/Data.json", []byte("payload-2")); err != nil {
		t.Fatalf("BufferUnsent: %v", err)
	}

	has, err := c.HasUnsent(ctx)
	if err != nil {
		t.Fatalf("HasUnsent: %v", err)
	}
	if !has {
		t.Fatalf("expected unsent rows present")
	}

	var seen []string
	drained, err := c.DrainUnsent(ctx, func(_ context.Context, endpoint string, payload []byte) error {
		seen = append(seen, endpoint+":"+string(payload))
		return nil
	})
	if err != nil {
		t.Fatalf("DrainUnsent: %v", err)
	}
	if drained != 2 {
		t.Fatalf("drained = %d, want 2", drained)
	}

	has, err = c.HasUnsent(ctx)
	if err != nil {
		t.Fatalf("HasUnsent: %v", err)
	}
	if has {
		t.Fatalf("expected no unsent rows after full drain")
	}
}

func TestDrainUnsentLeavesFailedRowsQueued(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	if err := c.BufferUnsent(ctx, "req-1", "/Meta.json", []byte("payload")); err != nil {
		t.Fatalf("BufferUnsent: %v", err)
	}

	drained, err := c.DrainUnsent(ctx, func(context.Context, string, []byte) error {
		return errors.New("server still unreachable")
	})
	if err != nil {
		t.Fatalf("DrainUnsent: %v", err)
	}
	if drained != 0 {
		t.Fatalf("drained = %d, want 0", drained)
	}

	has, err := c.HasUnsent(ctx)
	if err != nil {
		t.Fatalf("HasUnsent: %v", err)
	}
	if !has {
		t.Fatalf("expected row to remain queued after failed retry")
	}
}
