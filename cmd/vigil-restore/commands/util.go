package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/vigil/internal/logger"
	"github.com/marmos91/vigil/pkg/config"
	"github.com/marmos91/vigil/pkg/metalog"
	"github.com/marmos91/vigil/pkg/metalog/index"
	"github.com/marmos91/vigil/pkg/objectstore"
	fsstore "github.com/marmos91/vigil/pkg/objectstore/fs"
	s3store "github.com/marmos91/vigil/pkg/objectstore/s3"
	"github.com/marmos91/vigil/pkg/query"
	"github.com/marmos91/vigil/pkg/restore"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// openServerState opens the same metadata log, index, and object store a
// running vigil-server would use, for read-only access by the restore
// CLI. cfg must carry the server's storage configuration (the restore CLI
// runs against the server's on-disk state directly, not over the wire
// protocol).
func openServerState(cfg *config.Config) (*restore.Engine, func(), error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open object store: %w", err)
	}

	log, err := metalog.Open(cfg.Server.MetaRoot)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("open metadata log: %w", err)
	}

	idx, err := index.Open(cfg.Server.MetaRoot + "/index")
	if err != nil {
		_ = store.Close()
		_ = log.Close()
		return nil, nil, fmt.Errorf("open metadata index: %w", err)
	}
	engine := restore.New(query.New(log, store))
	closeFn := func() {
		_ = idx.Close()
		_ = log.Close()
		_ = store.Close()
	}
	return engine, closeFn, nil
}

func openStore(cfg *config.Config) (objectstore.Store, error) {
	switch cfg.Server.ObjectStoreBackend {
	case "s3":
		return s3store.NewFromConfig(context.Background(), s3store.Config{
			Bucket:         cfg.Server.S3.Bucket,
			Region:         cfg.Server.S3.Region,
			Endpoint:       cfg.Server.S3.Endpoint,
			KeyPrefix:      cfg.Server.S3.KeyPrefix,
			ForcePathStyle: cfg.Server.S3.ForcePathStyle,
		})
	default:
		return fsstore.New(fsstore.Config{
			Root:       cfg.FileBackend.Root,
			ShardDepth: cfg.FileBackend.ShardDepth,
		})
	}
}
