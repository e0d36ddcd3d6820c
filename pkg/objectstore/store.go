// Package objectstore defines the server-side content-addressed block
// store interface implemented by the filesystem and S3 backends.
package objectstore

import (
	"context"
	"errors"

	"github.com/marmos91/vigil/pkg/hashsum"
)

// ErrBlockNotFound is returned when a requested block does not exist.
var ErrBlockNotFound = errors.New("objectstore: block not found")

// ErrStoreClosed is returned when operations are attempted on a closed
// store.
var ErrStoreClosed = errors.New("objectstore: store is closed")

// Store is the content-addressed block store: blocks are immutable,
// write-once, and keyed solely by their SHA-256 hash, so concurrent
// writes of the same block are always safe.
type Store interface {
	// WriteBlock writes data under hash. Writing identical content under
	// an existing hash returns nil. The fs backend rejects differing
	// content under an existing hash; the s3 backend does not check and
	// overwrites the object.
	WriteBlock(ctx context.Context, hash hashsum.Hash, data []byte) error

	// ReadBlock reads the complete block stored under hash. Returns
	// ErrBlockNotFound if absent.
	ReadBlock(ctx context.Context, hash hashsum.Hash) ([]byte, error)

	// Has reports whether a block exists under hash, without reading it.
	Has(ctx context.Context, hash hashsum.Hash) (bool, error)

	// Needed returns the subset of candidates not currently present in
	// the store, preserving order. Used to answer /Meta.json and
	// /Hash_Array.json needed-hash queries.
	Needed(ctx context.Context, candidates []hashsum.Hash) ([]hashsum.Hash, error)

	// Close releases resources held by the store.
	Close() error

	// HealthCheck verifies the store is reachable and operational.
	HealthCheck(ctx context.Context) error
}
