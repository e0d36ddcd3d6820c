package ingest

import (
	"context"
	"testing"

	"github.com/marmos91/vigil/pkg/hashsum"
	"github.com/marmos91/vigil/pkg/metalog"
	"github.com/marmos91/vigil/pkg/metalog/index"
	"github.com/marmos91/vigil/pkg/objectstore/fs"
	"github.com/marmos91/vigil/pkg/wireproto"
)

func newTestIngest(t *testing.T) *Ingest {
	t.Helper()
	store, err := fs.New(fs.Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("fs.New: %v", err)
	}
	log, err := metalog.Open(t.TempDir())
	if err != nil {
		t.Fatalf("metalog.Open: %v", err)
	}
	idx, err := index.Open(t.TempDir())
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
		log.Close()
		idx.Close()
	})
	return New(store, log, idx)
}

func TestHandleMetaReportsAllBlocksNeededWhenStoreEmpty(t *testing.T) {
	ing := newTestIngest(t)
	ctx := context.Background()

	h1 := hashsum.Sum([]byte("block one")).Base64()
	h2 := hashsum.Sum([]byte("block two")).Base64()

	needed, err := ing.HandleMeta(ctx, wireproto.Metadata{
		FileType: wireproto.FileTypeRegular,
		Hostname: "host1",
		Name:     "/data/file.txt",
		HashList: []string{h1, h2},
	})
	if err != nil {
		t.Fatalf("HandleMeta: %v", err)
	}
	if len(needed) != 2 {
		t.Fatalf("expected both blocks needed, got %v", needed)
	}

	var seen []metalog.Record
	if err := ing.log.Stream("host1", func(r metalog.Record) error {
		seen = append(seen, r)
		return nil
	}); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(seen) != 1 || seen[0].Path != "/data/file.txt" {
		t.Fatalf("expected one persisted record, got %+v", seen)
	}
}

func TestHandleBlockThenMetaReportsNoneNeeded(t *testing.T) {
	ing := newTestIngest(t)
	ctx := context.Background()

	data := []byte("the only block")
	h := hashsum.Sum(data)

	if err := ing.HandleBlock(ctx, wireproto.Block{Hash: h.Base64(), Data: data, Size: len(data)}); err != nil {
		t.Fatalf("HandleBlock: %v", err)
	}

	needed, err := ing.HandleMeta(ctx, wireproto.Metadata{
		Hostname: "host1",
		Name:     "/data/solo.txt",
		HashList: []string{h.Base64()},
	})
	if err != nil {
		t.Fatalf("HandleMeta: %v", err)
	}
	if len(needed) != 0 {
		t.Fatalf("expected no blocks needed, got %v", needed)
	}
}

func TestHandleHashArrayDoesNotPersistARecord(t *testing.T) {
	ing := newTestIngest(t)
	ctx := context.Background()

	h := hashsum.Sum([]byte("x")).Base64()
	if _, err := ing.HandleHashArray(ctx, []string{h}); err != nil {
		t.Fatalf("HandleHashArray: %v", err)
	}

	called := false
	if err := ing.log.Stream("host1", func(metalog.Record) error { called = true; return nil }); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if called {
		t.Fatalf("expected no metadata record from a bare hash-array query")
	}
}
