// Package indexpg is an optional Postgres-backed implementation of
// index.Indexer, for deployments that already run Postgres and would
// rather not add badger to the server's storage footprint just for the
// (hostname, path) -> latest-offset lookup.
package indexpg

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Config configures the connection to the index's Postgres database.
type Config struct {
	// DSN is a standard libpq connection string, e.g.
	// "host=localhost port=5432 user=vigil dbname=vigil sslmode=disable".
	DSN string
}

// entry is the gorm model backing the "metadata_index" table.
type entry struct {
	Hostname string `gorm:"column:hostname;primaryKey"`
	Path     string `gorm:"column:path;primaryKey"`
	Offset   int64  `gorm:"column:offset"`
	Mtime    int64  `gorm:"column:mtime"`
}

func (entry) TableName() string { return "metadata_index" }

// Index is a Postgres-backed index.Indexer.
type Index struct {
	db *gorm.DB
}

// Open connects to cfg.DSN and migrates the metadata_index table.
func Open(cfg Config) (*Index, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("indexpg: connect: %w", err)
	}
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("indexpg: migrate schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying connection pool.
func (idx *Index) Close() error {
	sqlDB, err := idx.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Put upserts (hostname, path)'s offset/mtime, but only advances it when
// mtime is newer than whatever is already stored, matching the badger
// implementation's out-of-order-append safety.
func (idx *Index) Put(hostname, path string, offset, mtime int64) error {
	return idx.db.Exec(`
		INSERT INTO metadata_index (hostname, path, "offset", mtime)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (hostname, path) DO UPDATE
		SET "offset" = EXCLUDED.offset, mtime = EXCLUDED.mtime
		WHERE metadata_index.mtime < EXCLUDED.mtime
	`, hostname, path, offset, mtime).Error
}

// Latest returns the indexed offset/mtime for (hostname, path), and
// whether a row exists at all.
func (idx *Index) Latest(hostname, path string) (offset int64, mtime int64, ok bool, err error) {
	var row entry
	result := idx.db.Where("hostname = ? AND path = ?", hostname, path).Take(&row)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return 0, 0, false, nil
		}
		return 0, 0, false, fmt.Errorf("indexpg: lookup: %w", result.Error)
	}
	return row.Offset, row.Mtime, true, nil
}
