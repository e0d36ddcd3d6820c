// Package metaextract builds a file metadata record from a filesystem
// path, and applies the exclusion list that keeps the carver/sender from
// ever looking inside paths the operator doesn't want monitored.
package metaextract

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strconv"
	"syscall"

	"github.com/marmos91/vigil/internal/logger"
	"github.com/marmos91/vigil/pkg/hashsum"
	"github.com/marmos91/vigil/pkg/wireproto"
)

// Record is the in-memory form of a file metadata record. BlockList is
// filled in by the Sender once the Chunker has run; it is nil immediately
// after extraction.
type Record struct {
	Type      string
	Inode     uint64
	Mode      uint32
	UID       uint32
	GID       uint32
	Owner     string
	Group     string
	Atime     int64
	Ctime     int64
	Mtime     int64
	Size      int64
	Path      string
	LinkTarget string
	Hostname  string
	BlockList []hashsum.Hash
	DataSent  bool
}

// CompositeKey is the local-cache lookup key for "have we already saved
// this file": (path, type, uid, gid, ctime, mtime, mode, size, inode). Any
// change to one of these fields on a subsequent carve means the file is
// treated as new content.
type CompositeKey struct {
	Path  string
	Type  string
	UID   uint32
	GID   uint32
	Ctime int64
	Mtime int64
	Mode  uint32
	Size  int64
	Inode uint64
}

// Key returns the composite cache key for r.
func (r Record) Key() CompositeKey {
	return CompositeKey{
		Path:  r.Path,
		Type:  r.Type,
		UID:   r.UID,
		GID:   r.GID,
		Ctime: r.Ctime,
		Mtime: r.Mtime,
		Mode:  r.Mode,
		Size:  r.Size,
		Inode: r.Inode,
	}
}

// ToWire converts r to its wire representation. Callers fill DataSent and
// HashList as the Sender progresses through its protocol.
func (r Record) ToWire() wireproto.Metadata {
	m := wireproto.NewMetadata()
	m.FileType = r.Type
	m.Mode = r.Mode
	m.Atime = r.Atime
	m.Ctime = r.Ctime
	m.Mtime = r.Mtime
	m.FSize = r.Size
	m.Inode = r.Inode
	m.Owner = r.Owner
	m.Group = r.Group
	m.UID = r.UID
	m.GID = r.GID
	m.Name = r.Path
	m.Link = r.LinkTarget
	m.Hostname = r.Hostname
	m.DataSent = r.DataSent
	for _, h := range r.BlockList {
		m.HashList = append(m.HashList, h.Base64())
	}
	return m
}

// Extract builds a Record for path using Lstat (symlinks are not
// followed: their target is recorded as a string, not traversed).
func Extract(path, hostname string) (Record, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Record{}, fmt.Errorf("metaextract: lstat %s: %w", path, err)
	}

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return Record{}, fmt.Errorf("metaextract: no syscall.Stat_t for %s", path)
	}

	r := Record{
		Type:     fileType(info),
		Inode:    stat.Ino,
		Mode:     uint32(stat.Mode),
		UID:      stat.Uid,
		GID:      stat.Gid,
		Atime:    stat.Atim.Sec,
		Ctime:    stat.Ctim.Sec,
		Mtime:    stat.Mtim.Sec,
		Size:     info.Size(),
		Path:     path,
		Hostname: hostname,
	}

	r.Owner = lookupOwnerName(r.UID)
	r.Group = lookupGroupName(r.GID)

	if r.Type == wireproto.FileTypeSymlink {
		target, err := os.Readlink(path)
		if err != nil {
			return Record{}, fmt.Errorf("metaextract: readlink %s: %w", path, err)
		}
		r.LinkTarget = target
	}

	return r, nil
}

func fileType(info os.FileInfo) string {
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return wireproto.FileTypeSymlink
	case info.IsDir():
		return wireproto.FileTypeDirectory
	case info.Mode().IsRegular():
		return wireproto.FileTypeRegular
	default:
		return wireproto.FileTypeOther
	}
}

func lookupOwnerName(uid uint32) string {
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return ""
	}
	return u.Username
}

func lookupGroupName(gid uint32) string {
	g, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10))
	if err != nil {
		return ""
	}
	return g.Name
}

// ExcludeList is a compiled, case-insensitive exclusion regex list. The
// first matching pattern silently skips the path; matching directories
// are not recursed into.
type ExcludeList struct {
	patterns []*regexp.Regexp
}

// CompileExcludeList compiles each pattern case-insensitively. A pattern
// that fails to compile is dropped and logged; the rest still apply, so one
// bad pattern never disables exclusion entirely.
func CompileExcludeList(patterns []string) *ExcludeList {
	el := &ExcludeList{}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			logger.Warn("dropping invalid exclusion pattern", "pattern", p, logger.Err(err))
			continue
		}
		el.patterns = append(el.patterns, re)
	}
	return el
}

// Match reports whether path matches any compiled exclusion pattern.
func (el *ExcludeList) Match(path string) bool {
	if el == nil {
		return false
	}
	for _, re := range el.patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// Base returns filepath.Base(path), convenient for exclusion patterns
// that only care about the file name rather than the full path.
func Base(path string) string {
	return filepath.Base(path)
}
