// Package cache implements the client's local cache: a durable record of
// which files have already been sent (keyed by composite key) and a
// durable buffer of requests that failed to transmit and are waiting for
// the Reconnector to retry them.
//
// The cache has a single writer (the Saver goroutine that runs the Sender
// protocol) and is safe for concurrent lock-free reads.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/vigil/internal/logger"
	"github.com/marmos91/vigil/internal/telemetry"
	"github.com/marmos91/vigil/pkg/cache/migrations"
	"github.com/marmos91/vigil/pkg/metaextract"
)

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("cache: not found")

// Config configures the local cache database.
type Config struct {
	// Directory is the cache directory; the database file lives at
	// Directory/DBName.
	Directory string
	// DBName is the sqlite filename, default "cache.db".
	DBName string
}

func (c *Config) applyDefaults() {
	if c.DBName == "" {
		c.DBName = "cache.db"
	}
}

// Path returns the full path to the sqlite database file.
func (c Config) Path() string {
	return filepath.Join(c.Directory, c.DBName)
}

// Cache wraps the gorm-backed sqlite database implementing the local
// relational schema.
type Cache struct {
	db *gorm.DB
}

// Open opens (creating if absent) the local cache database and brings its
// schema up to date via golang-migrate: WAL journal mode and a busy timeout
// for safe concurrent access, GORM logging suppressed in favor of the
// repo's own structured logger.
func Open(cfg Config) (*Cache, error) {
	cfg.applyDefaults()

	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create cache directory: %w", err)
	}

	dsn := cfg.Path() + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("cache: open database: %w", err)
	}

	if err := migrateSchema(db); err != nil {
		return nil, err
	}

	return &Cache{db: db}, nil
}

// migrateSchema runs the embedded migrations in pkg/cache/migrations
// against db's underlying connection, bringing a fresh or older cache
// database up to the current schema version.
func migrateSchema(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("cache: access underlying connection: %w", err)
	}

	driver, err := migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("cache: create migration driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("cache: open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("cache: create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("cache: apply migrations: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (c *Cache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsPresent reports whether a file matching key has already been recorded
// as saved. Directories are still recursed into even when present; this
// function only answers the cache-membership question, the caller decides
// what to do with a directory hit.
func (c *Cache) IsPresent(ctx context.Context, key metaextract.CompositeKey) (bool, error) {
	_, span := telemetry.StartCacheSpan(ctx, "lookup")
	defer span.End()

	var count int64
	err := c.db.WithContext(ctx).Model(&File{}).Where(
		"name = ? AND type = ? AND inode = ? AND uid = ? AND gid = ? AND ctime = ? AND mtime = ? AND mode = ? AND size = ? AND transmitted = ?",
		key.Path, key.Type, key.Inode, key.UID, key.GID, key.Ctime, key.Mtime, key.Mode, key.Size, true,
	).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("cache: is_present query: %w", err)
	}

	hit := count > 0
	logger.DebugCtx(ctx, "cache lookup", logger.Path(key.Path), logger.CacheHit(hit))
	return hit, nil
}

// RecordSaved inserts a row marking key (plus descriptive fields) as
// transmitted. Call only after the server has confirmed receipt of all
// needed blocks and the final metadata POST succeeded.
func (c *Cache) RecordSaved(ctx context.Context, r metaextract.Record) error {
	_, span := telemetry.StartCacheSpan(ctx, "record_saved")
	defer span.End()

	key := r.Key()
	row := File{
		CacheTime:   nowUnix(),
		Type:        key.Type,
		Inode:       key.Inode,
		FileUser:    r.Owner,
		FileGroup:   r.Group,
		UID:         key.UID,
		GID:         key.GID,
		Atime:       r.Atime,
		Ctime:       key.Ctime,
		Mtime:       key.Mtime,
		Mode:        key.Mode,
		Size:        key.Size,
		Name:        key.Path,
		Transmitted: true,
		Link:        r.LinkTarget,
	}

	if err := c.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("cache: record_saved insert: %w", err)
	}
	return nil
}

// UnsentRequest is one row of the durable unsent-requests buffer: an
// endpoint path plus the raw request body that failed to transmit.
type UnsentRequest struct {
	BufferID  uint64
	RequestID string
	Endpoint  string
	Payload   []byte
}

// BufferUnsent durably records a failed POST so the Reconnector can retry
// it later. This is the "continue as if the server needed everything"
// half of the Sender's transport-failure handling. requestID is the
// save-queue entry id the Sender generated for the file this POST belongs
// to, carried through so a buffered row can still be traced back to the
// save event that produced it.
func (c *Cache) BufferUnsent(ctx context.Context, requestID, endpoint string, payload []byte) error {
	row := Buffer{RequestID: requestID, URL: endpoint, Data: payload}
	if err := c.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("cache: buffer_unsent insert: %w", err)
	}
	logger.WarnCtx(ctx, "buffered unsent request",
		logger.RequestID(requestID), logger.Endpoint(endpoint), logger.Size(int64(len(payload))))
	return nil
}

// HasUnsent reports whether any rows remain in the unsent-requests buffer
// that have not yet been moved to the transmitted set.
func (c *Cache) HasUnsent(ctx context.Context) (bool, error) {
	var count int64
	err := c.db.WithContext(ctx).Model(&Buffer{}).
		Where("buffer_id NOT IN (SELECT buffer_id FROM transmited)").
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("cache: has_unsent query: %w", err)
	}
	return count > 0, nil
}

// Sender is the subset of the Sender's transport the Reconnector needs to
// replay a buffered request: POST payload to endpoint, returning an error
// if the send still fails.
type Sender func(ctx context.Context, endpoint string, payload []byte) error

// DrainUnsent replays every buffered row through send, in ascending
// buffer_id order (oldest first). Successfully replayed rows are marked
// transmitted and deleted; a row that fails to send again is left in
// place for the next drain attempt. Returns the count of rows drained.
// Errors from the post-send bookkeeping transaction are propagated rather
// than swallowed, so a partially-applied drain is visible to the caller.
func (c *Cache) DrainUnsent(ctx context.Context, send Sender) (int, error) {
	var pending []Buffer
	err := c.db.WithContext(ctx).
		Where("buffer_id NOT IN (SELECT buffer_id FROM transmited)").
		Order("buffer_id ASC").
		Find(&pending).Error
	if err != nil {
		return 0, fmt.Errorf("cache: drain_unsent query: %w", err)
	}

	drained := 0
	for _, row := range pending {
		if err := send(ctx, row.URL, row.Data); err != nil {
			logger.WarnCtx(ctx, "drain_unsent: retry still failing",
				logger.RequestID(row.RequestID), logger.Endpoint(row.URL), logger.Err(err))
			continue
		}

		err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&Transmited{BufferID: row.BufferID}).Error; err != nil {
				return err
			}
			return tx.Delete(&Buffer{}, row.BufferID).Error
		})
		if err != nil {
			return drained, fmt.Errorf("cache: drain_unsent cleanup for buffer %d: %w", row.BufferID, err)
		}
		drained++
	}

	if drained > 0 {
		logger.InfoCtx(ctx, "drained unsent requests", logger.UnsentRows(drained))
	}
	return drained, nil
}
