// Package fs implements the default server object store: one file per
// block, named by its lowercase hex hash, sharded into nested directories
// by the hash's leading hex characters so no single directory ends up
// with millions of entries.
package fs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/marmos91/vigil/internal/logger"
	"github.com/marmos91/vigil/internal/telemetry"
	"github.com/marmos91/vigil/pkg/hashsum"
	"github.com/marmos91/vigil/pkg/objectstore"
)

// completionMarker is the filename written at the root of the data
// directory once the full shard tree has been pre-created, so a restart
// can skip re-walking hundreds of thousands of directories.
const completionMarker = ".shards-initialized"

// Config configures the filesystem object store.
type Config struct {
	// Root is the store root; blocks live under Root/data/.
	Root string
	// ShardDepth is the number of leading-byte shard levels (1-5, default
	// 2: 256 subdirectories, each holding 256 subdirectories).
	ShardDepth int
	// DirMode/FileMode are the permission bits for created
	// directories/files.
	DirMode  os.FileMode
	FileMode os.FileMode
}

func (c *Config) applyDefaults() {
	if c.ShardDepth <= 0 || c.ShardDepth > 5 {
		c.ShardDepth = 2
	}
	if c.DirMode == 0 {
		c.DirMode = 0o755
	}
	if c.FileMode == 0 {
		c.FileMode = 0o644
	}
}

// Store is a filesystem-backed objectstore.Store.
type Store struct {
	mu       sync.RWMutex
	dataRoot string
	cfg      Config
	closed   bool
}

// New opens (creating if absent) a filesystem object store at cfg.Root
// and pre-creates the shard directory tree so writes never pay
// directory-creation latency on the hot path.
func New(cfg Config) (*Store, error) {
	cfg.applyDefaults()
	if cfg.Root == "" {
		return nil, fmt.Errorf("objectstore/fs: root path is required")
	}

	dataRoot := filepath.Join(cfg.Root, "data")
	if err := os.MkdirAll(dataRoot, cfg.DirMode); err != nil {
		return nil, fmt.Errorf("objectstore/fs: create data root: %w", err)
	}

	s := &Store{dataRoot: dataRoot, cfg: cfg}
	if err := s.ensureShardTree(); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureShardTree pre-creates every shard directory (256^ShardDepth of
// them for the default depth of 2) so writes never pay directory-creation
// latency on the hot path, and leaves a marker file so future startups
// can skip it.
func (s *Store) ensureShardTree() error {
	markerPath := filepath.Join(s.dataRoot, completionMarker)
	if _, err := os.Stat(markerPath); err == nil {
		return nil
	}

	logger.Info("pre-creating object store shard tree", "depth", s.cfg.ShardDepth)

	var walk func(prefix string, depth int) error
	walk = func(prefix string, depth int) error {
		if depth == 0 {
			return nil
		}
		for b := 0; b < 256; b++ {
			dir := filepath.Join(s.dataRoot, prefix, fmt.Sprintf("%02x", b))
			if err := os.MkdirAll(dir, s.cfg.DirMode); err != nil {
				return err
			}
			if err := walk(filepath.Join(prefix, fmt.Sprintf("%02x", b)), depth-1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk("", s.cfg.ShardDepth); err != nil {
		return fmt.Errorf("objectstore/fs: pre-create shard tree: %w", err)
	}

	if err := os.WriteFile(markerPath, []byte("ok"), s.cfg.FileMode); err != nil {
		return fmt.Errorf("objectstore/fs: write shard tree marker: %w", err)
	}
	return nil
}

// shardPath returns the full path for a block's hash, e.g. for hash
// "aabbcc..." and ShardDepth 2: <root>/data/aa/bb/aabbcc....
func (s *Store) shardPath(hash hashsum.Hash) string {
	hex := hash.Hex()
	parts := make([]string, 0, s.cfg.ShardDepth+1)
	for i := 0; i < s.cfg.ShardDepth; i++ {
		parts = append(parts, hex[i*2:i*2+2])
	}
	parts = append(parts, hex)
	return filepath.Join(append([]string{s.dataRoot}, parts...)...)
}

// WriteBlock writes data under hash using a write-to-temp-then-rename
// pattern for atomicity. If the block already exists, its content is
// compared; identical content is a no-op, differing content is an error
// (write-once semantics — a hash collision on differing bytes should never
// happen for SHA-256, but the check catches bugs rather than silently
// corrupting the store).
func (s *Store) WriteBlock(ctx context.Context, hash hashsum.Hash, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, span := telemetry.StartObjectStoreSpan(ctx, "write", hash.Hex(), telemetry.FileSize(int64(len(data))))
	defer span.End()

	if s.closed {
		return objectstore.ErrStoreClosed
	}

	path := s.shardPath(hash)

	if existing, err := os.ReadFile(path); err == nil {
		if bytes.Equal(existing, data) {
			return nil
		}
		return fmt.Errorf("objectstore/fs: hash %s already stored with different content", hash.Hex())
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("objectstore/fs: stat existing block: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), s.cfg.DirMode); err != nil {
		return fmt.Errorf("objectstore/fs: create shard dir: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, s.cfg.FileMode); err != nil {
		return fmt.Errorf("objectstore/fs: write temp block: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("objectstore/fs: rename temp block: %w", err)
	}

	logger.DebugCtx(ctx, "wrote block", logger.HashHex(hash.Hex()), logger.Size(int64(len(data))))
	return nil
}

// ReadBlock reads the block stored under hash.
func (s *Store) ReadBlock(ctx context.Context, hash hashsum.Hash) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, span := telemetry.StartObjectStoreSpan(ctx, "read", hash.Hex())
	defer span.End()

	if s.closed {
		return nil, objectstore.ErrStoreClosed
	}

	data, err := os.ReadFile(s.shardPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, objectstore.ErrBlockNotFound
		}
		return nil, fmt.Errorf("objectstore/fs: read block: %w", err)
	}
	return data, nil
}

// Has reports whether hash's block file exists.
func (s *Store) Has(ctx context.Context, hash hashsum.Hash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, objectstore.ErrStoreClosed
	}

	_, err := os.Stat(s.shardPath(hash))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("objectstore/fs: stat block: %w", err)
}

// Needed returns the subset of candidates not present in the store.
func (s *Store) Needed(ctx context.Context, candidates []hashsum.Hash) ([]hashsum.Hash, error) {
	needed := make([]hashsum.Hash, 0, len(candidates))
	for _, h := range candidates {
		present, err := s.Has(ctx, h)
		if err != nil {
			return nil, err
		}
		if !present {
			needed = append(needed, h)
		}
	}
	return needed, nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// HealthCheck verifies the data root is still accessible.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return objectstore.ErrStoreClosed
	}
	_, err := os.Stat(s.dataRoot)
	if err != nil {
		return fmt.Errorf("objectstore/fs: health check: %w", err)
	}
	return nil
}

var _ objectstore.Store = (*Store)(nil)
