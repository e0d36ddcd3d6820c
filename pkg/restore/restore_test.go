package restore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/vigil/pkg/hashsum"
	"github.com/marmos91/vigil/pkg/ingest"
	"github.com/marmos91/vigil/pkg/metalog"
	"github.com/marmos91/vigil/pkg/metalog/index"
	"github.com/marmos91/vigil/pkg/objectstore/fs"
	"github.com/marmos91/vigil/pkg/query"
	"github.com/marmos91/vigil/pkg/wireproto"
)

// newTestFixture seeds an object store and metadata log with one saved
// regular file, the way the server's ingest path would.
func newTestFixture(t *testing.T) *Engine {
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

	ing := ingest.New(store, log, idx)
	ctx := context.Background()

	block := []byte("restore me please")
	h := hashsum.Sum(block).Base64()

	if err := ing.HandleBlock(ctx, wireproto.Block{Hash: h, Data: block}); err != nil {
		t.Fatalf("HandleBlock: %v", err)
	}
	if _, err := ing.HandleMeta(ctx, wireproto.Metadata{
		FileType: wireproto.FileTypeRegular,
		Hostname: "host1",
		Name:     "/data/note.txt",
		Mode:     0o600,
		Mtime:    1000,
		Atime:    1000,
		FSize:    int64(len(block)),
		HashList: []string{h},
		DataSent: true,
	}); err != nil {
		t.Fatalf("HandleMeta: %v", err)
	}

	return New(query.New(log, store))
}

func TestRestoreFileRoundTrips(t *testing.T) {
	e := newTestFixture(t)
	ctx := context.Background()

	records, err := e.List(ctx, wireproto.FileListQuery{Hostname: "host1", LatestOnly: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	dest := filepath.Join(t.TempDir(), "note.txt")
	if err := e.RestoreFile(ctx, records[0], dest); err != nil {
		t.Fatalf("RestoreFile: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "restore me please" {
		t.Fatalf("got %q", got)
	}

	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("got mode %v, want 0600", info.Mode().Perm())
	}
}

func TestRestoreFileDetectsCorruptBlock(t *testing.T) {
	e := newTestFixture(t)
	ctx := context.Background()

	records, err := e.List(ctx, wireproto.FileListQuery{Hostname: "host1", LatestOnly: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	records[0].BlockList[0] = hashsum.Sum([]byte("not the real block")).Base64()

	dest := filepath.Join(t.TempDir(), "note.txt")
	if err := e.RestoreFile(ctx, records[0], dest); err == nil {
		t.Fatal("expected hash verification failure")
	}
}
