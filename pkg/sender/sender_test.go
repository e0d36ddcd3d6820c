package sender

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/vigil/pkg/cache"
	"github.com/marmos91/vigil/pkg/metaextract"
	"github.com/marmos91/vigil/pkg/wireproto"
)

type fakeTransport struct {
	needAll      bool
	metaPosts    int
	blockPosts   int
	blockArrPost int
	lastMeta     wireproto.Metadata
}

func (f *fakeTransport) PostMeta(ctx context.Context, meta wireproto.Metadata) ([]string, error) {
	f.metaPosts++
	f.lastMeta = meta
	if f.needAll {
		return meta.HashList, nil
	}
	return nil, nil
}

func (f *fakeTransport) PostHashArray(ctx context.Context, hashList []string) ([]string, error) {
	if f.needAll {
		return hashList, nil
	}
	return nil, nil
}

func (f *fakeTransport) PostBlock(ctx context.Context, block wireproto.Block) error {
	f.blockPosts++
	return nil
}

func (f *fakeTransport) PostBlockArray(ctx context.Context, blocks []wireproto.Block) error {
	f.blockArrPost++
	return nil
}

func newTestSender(t *testing.T, transport Transport) (*Sender, *cache.Cache) {
	t.Helper()
	c, err := cache.Open(cache.Config{Directory: t.TempDir()})
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	s := New(Config{Hostname: "test-host", Adaptive: false, UploadBufferSize: 1 << 20}, c, transport)
	return s, c
}

func TestSendSmallRegularFileNeedsAllBlocks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(path, []byte("hello world, this is a test payload"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ft := &fakeTransport{needAll: true}
	s, c := newTestSender(t, ft)

	if err := s.Send(context.Background(), path, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if ft.metaPosts != 1 {
		t.Fatalf("metaPosts = %d, want 1", ft.metaPosts)
	}
	if ft.blockPosts == 0 && ft.blockArrPost == 0 {
		t.Fatalf("expected at least one block post")
	}

	if ft.lastMeta.Name == "" {
		t.Fatalf("expected metadata name to be set")
	}

	record, err := metaextract.Extract(path, "test-host")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	present, err := c.IsPresent(context.Background(), record.Key())
	if err != nil {
		t.Fatalf("IsPresent: %v", err)
	}
	if !present {
		t.Fatalf("expected file to be recorded saved")
	}
}

func TestSendSecondTimeIsNoOpWhenCached(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(path, []byte("stable content"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ft := &fakeTransport{needAll: false}
	s, _ := newTestSender(t, ft)
	ctx := context.Background()

	if err := s.Send(ctx, path, nil); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	firstPosts := ft.metaPosts

	if err := s.Send(ctx, path, nil); err != nil {
		t.Fatalf("second Send: %v", err)
	}
	if ft.metaPosts != firstPosts {
		t.Fatalf("expected no additional meta post on cached file, got %d vs %d", ft.metaPosts, firstPosts)
	}
}
