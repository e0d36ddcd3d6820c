package index

// Indexer is the (hostname, path) -> latest-offset lookup the ingest path
// needs. *Index (badger) is the default implementation; pkg/metalog/indexpg
// provides an optional Postgres-backed one for deployments that already
// run Postgres for other metadata and would rather not add badger to the
// mix.
type Indexer interface {
	Put(hostname, path string, offset, mtime int64) error
	Latest(hostname, path string) (offset int64, mtime int64, ok bool, err error)
	Close() error
}

var _ Indexer = (*Index)(nil)
