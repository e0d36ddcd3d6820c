// Package index provides a badger-backed index over the metadata log:
// for each (hostname, path), the byte offset and mtime of the most
// recently appended record, so latest-version queries don't require a
// full log scan.
package index

import (
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Index wraps a badger database keyed by "h:<hostname>:<path>".
type Index struct {
	db *badger.DB
}

// entry is the value stored per key: offset and mtime, fixed-width binary.
type entry struct {
	Offset int64
	Mtime  int64
}

const entrySize = 16 // 2 * int64

// Open opens (creating if absent) a badger index at dir.
func Open(dir string) (*Index, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("metalog/index: open badger at %s: %w", dir, err)
	}
	return &Index{db: db}, nil
}

// Close closes the underlying badger database.
func (idx *Index) Close() error {
	if err := idx.db.Close(); err != nil {
		return fmt.Errorf("metalog/index: close: %w", err)
	}
	return nil
}

func key(hostname, path string) []byte {
	return []byte("h:" + hostname + ":" + path)
}

// Put records offset/mtime for (hostname, path), but only if mtime is
// newer than whatever is already indexed (or nothing is indexed yet), so
// a replayed/out-of-order append never regresses the "latest" pointer.
func (idx *Index) Put(hostname, path string, offset, mtime int64) error {
	return idx.db.Update(func(txn *badger.Txn) error {
		k := key(hostname, path)
		item, err := txn.Get(k)
		if err == nil {
			var existing entry
			if verr := item.Value(func(val []byte) error {
				existing = decode(val)
				return nil
			}); verr != nil {
				return fmt.Errorf("metalog/index: decode existing entry: %w", verr)
			}
			if existing.Mtime >= mtime {
				return nil
			}
		} else if err != badger.ErrKeyNotFound {
			return fmt.Errorf("metalog/index: get existing entry: %w", err)
		}

		return txn.Set(k, encode(entry{Offset: offset, Mtime: mtime}))
	})
}

// Latest returns the indexed offset/mtime for (hostname, path), and
// whether an entry exists at all.
func (idx *Index) Latest(hostname, path string) (offset int64, mtime int64, ok bool, err error) {
	txErr := idx.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(key(hostname, path))
		if getErr == badger.ErrKeyNotFound {
			return nil
		}
		if getErr != nil {
			return getErr
		}
		return item.Value(func(val []byte) error {
			e := decode(val)
			offset, mtime, ok = e.Offset, e.Mtime, true
			return nil
		})
	})
	if txErr != nil {
		return 0, 0, false, fmt.Errorf("metalog/index: lookup: %w", txErr)
	}
	return offset, mtime, ok, nil
}

func encode(e entry) []byte {
	b := make([]byte, entrySize)
	putInt64(b[0:8], e.Offset)
	putInt64(b[8:16], e.Mtime)
	return b
}

func decode(b []byte) entry {
	if len(b) < entrySize {
		return entry{}
	}
	return entry{Offset: getInt64(b[0:8]), Mtime: getInt64(b[8:16])}
}

func putInt64(b []byte, v int64) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}

func getInt64(b []byte) int64 {
	var u uint64
	for i := 0; i < 8; i++ {
		u |= uint64(b[i]) << (8 * i)
	}
	return int64(u)
}
