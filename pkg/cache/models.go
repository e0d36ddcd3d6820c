package cache

import "time"

// File is the gorm model backing the "files" table: the saved-files index
// keyed by composite key.
type File struct {
	FileID      uint64 `gorm:"column:file_id;primaryKey;autoIncrement"`
	CacheTime   int64  `gorm:"column:cache_time"`
	Type        string `gorm:"column:type;index:idx_files_composite"`
	Inode       uint64 `gorm:"column:inode;index"`
	FileUser    string `gorm:"column:file_user"`
	FileGroup   string `gorm:"column:file_group"`
	UID         uint32 `gorm:"column:uid;index:idx_files_composite"`
	GID         uint32 `gorm:"column:gid;index:idx_files_composite"`
	Atime       int64  `gorm:"column:atime"`
	Ctime       int64  `gorm:"column:ctime;index:idx_files_composite"`
	Mtime       int64  `gorm:"column:mtime;index:idx_files_composite"`
	Mode        uint32 `gorm:"column:mode;index:idx_files_composite"`
	Size        int64  `gorm:"column:size;index:idx_files_composite"`
	Name        string `gorm:"column:name;index:idx_files_composite"`
	Transmitted bool   `gorm:"column:transmitted"`
	Link        string `gorm:"column:link"`
}

func (File) TableName() string { return "files" }

// Buffer is the gorm model backing the "buffers" table: the durable
// unsent-requests buffer (endpoint + raw POST body), drained by the
// Reconnector once the server becomes reachable again.
type Buffer struct {
	BufferID  uint64 `gorm:"column:buffer_id;primaryKey;autoIncrement"`
	RequestID string `gorm:"column:request_id;index"`
	URL       string `gorm:"column:url;index"`
	Data      []byte `gorm:"column:data"`
}

func (Buffer) TableName() string { return "buffers" }

// Transmited is the gorm model backing the "transmited" table. The
// misspelled name is kept verbatim as an on-disk format detail rather than
// "corrected": renaming it would silently change the on-disk schema this
// cache persists.
type Transmited struct {
	BufferID uint64 `gorm:"column:buffer_id;primaryKey;index"`
}

func (Transmited) TableName() string { return "transmited" }

func nowUnix() int64 {
	return time.Now().Unix()
}
