package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so log aggregation
// and querying stays stable across client and server processes.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Host & Endpoint
	// ========================================================================
	KeyHostname = "hostname" // Originating host of a save event / metadata record
	KeyEndpoint = "endpoint" // Wire endpoint path, e.g. /Meta.json
	KeyMethod   = "method"   // HTTP method
	KeyStatus   = "status"   // HTTP status code
	KeyClientIP = "client_ip"
	KeyRequestID = "request_id" // Save-queue/unsent-buffer request correlation id

	// ========================================================================
	// File System Operations
	// ========================================================================
	KeyPath       = "path"        // Full file/directory path
	KeyType       = "type"        // File type: regular, directory, symlink, other
	KeySize       = "size"        // File size in bytes
	KeyMode       = "mode"        // File mode/permissions (Unix-style)
	KeyInode      = "inode"       // Inode number
	KeyUID        = "uid"         // Owning user id
	KeyGID        = "gid"         // Owning group id
	KeyLinkTarget = "link_target" // Symbolic link target path

	// ========================================================================
	// Block / chunk operations
	// ========================================================================
	KeyHash        = "hash"         // Block hash (lowercase hex)
	KeyBlockIndex  = "block_index"  // Position of a block within a block-list
	KeyBlockCount  = "block_count"  // Total blocks in a block-list
	KeyBlockSize   = "block_size"   // Block size used for a file
	KeyBytesSent   = "bytes_sent"   // Bytes transmitted in a batch
	KeyNeeded      = "needed"       // Count of blocks the server reported needed
	KeyCompression = "compression"  // Compression tag: none, deflate

	// ========================================================================
	// Cache layer
	// ========================================================================
	KeyCacheHit   = "cache_hit"   // Whether a file was already present in the local cache
	KeyUnsentRows = "unsent_rows" // Rows pending in the unsent-requests buffer

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyAttempt    = "attempt"
	KeyOperation  = "operation"

	// ========================================================================
	// Object store
	// ========================================================================
	KeyStoreType = "store_type" // filesystem, s3
	KeyShardPath = "shard_path"
	KeyBucket    = "bucket"
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }
func SpanID(id string) slog.Attr  { return slog.String(KeySpanID, id) }

func Hostname(h string) slog.Attr  { return slog.String(KeyHostname, h) }
func Endpoint(e string) slog.Attr  { return slog.String(KeyEndpoint, e) }
func RequestID(id string) slog.Attr { return slog.String(KeyRequestID, id) }

func Path(p string) slog.Attr { return slog.String(KeyPath, p) }
func FileType(t string) slog.Attr { return slog.String(KeyType, t) }
func Size(n int64) slog.Attr  { return slog.Int64(KeySize, n) }

// Hash returns a slog.Attr for a 32-byte block hash, hex encoded for display.
func Hash(h []byte) slog.Attr {
	return slog.String(KeyHash, fmt.Sprintf("%x", h))
}

// HashHex returns a slog.Attr for a hash already in hex form.
func HashHex(h string) slog.Attr {
	return slog.String(KeyHash, h)
}

func BlockIndex(i int) slog.Attr { return slog.Int(KeyBlockIndex, i) }
func BlockCount(n int) slog.Attr { return slog.Int(KeyBlockCount, n) }
func BlockSize(n int) slog.Attr  { return slog.Int(KeyBlockSize, n) }

func CacheHit(hit bool) slog.Attr { return slog.Bool(KeyCacheHit, hit) }
func UnsentRows(n int) slog.Attr  { return slog.Int(KeyUnsentRows, n) }

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
