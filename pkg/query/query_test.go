package query

import (
	"context"
	"testing"

	"github.com/marmos91/vigil/pkg/hashsum"
	"github.com/marmos91/vigil/pkg/metalog"
	"github.com/marmos91/vigil/pkg/objectstore/fs"
	"github.com/marmos91/vigil/pkg/wireproto"
)

func newTestEngine(t *testing.T) (*Engine, *metalog.Log) {
	t.Helper()
	log, err := metalog.Open(t.TempDir())
	if err != nil {
		t.Fatalf("metalog.Open: %v", err)
	}
	store, err := fs.New(fs.Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("fs.New: %v", err)
	}
	t.Cleanup(func() {
		log.Close()
		store.Close()
	})
	return New(log, store), log
}

func i64(v int64) *int64 { return &v }

func TestListFiltersByOwnerAndPath(t *testing.T) {
	e, log := newTestEngine(t)
	ctx := context.Background()

	log.Append(ctx, "host1", metalog.Record{Path: "/a.txt", Owner: "alice", Mtime: 1})
	log.Append(ctx, "host1", metalog.Record{Path: "/b.txt", Owner: "bob", Mtime: 2})

	got, err := e.List(ctx, wireproto.FileListQuery{Hostname: "host1", Owner: "alice"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Path != "/a.txt" {
		t.Fatalf("got %+v", got)
	}
}

func TestListLatestOnlyKeepsHighestMtimePerPath(t *testing.T) {
	e, log := newTestEngine(t)
	ctx := context.Background()

	log.Append(ctx, "host1", metalog.Record{Path: "/a.txt", Mtime: 1, Size: 10})
	log.Append(ctx, "host1", metalog.Record{Path: "/a.txt", Mtime: 5, Size: 20})
	log.Append(ctx, "host1", metalog.Record{Path: "/b.txt", Mtime: 3, Size: 30})

	got, err := e.List(ctx, wireproto.FileListQuery{Hostname: "host1", LatestOnly: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 distinct paths, got %d", len(got))
	}
	for _, r := range got {
		if r.Path == "/a.txt" && r.Size != 20 {
			t.Fatalf("expected latest /a.txt record (size 20), got %+v", r)
		}
	}
}

func TestListFiltersByDateRange(t *testing.T) {
	e, log := newTestEngine(t)
	ctx := context.Background()

	log.Append(ctx, "host1", metalog.Record{Path: "/early.txt", Mtime: 100})
	log.Append(ctx, "host1", metalog.Record{Path: "/late.txt", Mtime: 900})

	got, err := e.List(ctx, wireproto.FileListQuery{Hostname: "host1", AfterDate: i64(500)})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Path != "/late.txt" {
		t.Fatalf("got %+v", got)
	}
}

func TestFetchBlockRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	data := []byte("some block content")
	h := hashsum.Sum(data)
	if err := e.store.WriteBlock(ctx, h, data); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}

	resp, err := e.FetchBlock(ctx, h.Hex())
	if err != nil {
		t.Fatalf("FetchBlock: %v", err)
	}
	if string(resp.Data) != string(data) {
		t.Fatalf("got %q, want %q", resp.Data, data)
	}
}

func TestFetchBlockArrayAbortsOnMissingBlock(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	present := []byte("present")
	h := hashsum.Sum(present)
	e.store.WriteBlock(ctx, h, present)

	missing := hashsum.Sum([]byte("never written"))

	_, err := e.FetchBlockArray(ctx, []string{h.Base64(), missing.Base64()})
	if err == nil {
		t.Fatalf("expected error for missing block")
	}
}
