// Package metalog implements the server's per-host append-only metadata
// log: one text file per client hostname, one line per saved metadata
// record, plus a badger-backed index for fast latest-version lookups.
package metalog

// Record is the server-side representation of one saved metadata record,
// as persisted to a per-host log line.
type Record struct {
	Type      string
	Inode     uint64
	Mode      uint32
	Atime     int64
	Ctime     int64
	Mtime     int64
	Size      int64
	Owner     string
	Group     string
	UID       uint32
	GID       uint32
	Path      string
	Link      string
	BlockList []string // base64-encoded block hashes, in order
}
