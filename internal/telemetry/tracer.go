package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for the backup pipeline. These follow OpenTelemetry
// semantic conventions where applicable.
const (
	// ========================================================================
	// Host / path attributes
	// ========================================================================
	AttrHostname   = "host.name"
	AttrPath       = "file.path"
	AttrFileType   = "file.type"
	AttrSize       = "file.size"
	AttrMode       = "file.mode"
	AttrInode      = "file.inode"

	// ========================================================================
	// Block / chunk attributes
	// ========================================================================
	AttrHash        = "block.hash"
	AttrBlockIndex  = "block.index"
	AttrBlockCount  = "block.count"
	AttrBlockSize   = "block.size"
	AttrBytesSent   = "transfer.bytes_sent"
	AttrNeededCount = "transfer.needed_count"
	AttrCompression = "block.compression"

	// ========================================================================
	// Wire protocol attributes
	// ========================================================================
	AttrEndpoint = "http.route"
	AttrMethod   = "http.method"
	AttrStatus   = "http.status_code"
	AttrClientIP = "client.ip"

	// ========================================================================
	// Cache attributes
	// ========================================================================
	AttrCacheHit    = "cache.hit"
	AttrUnsentCount = "cache.unsent_count"
	AttrRequestID   = "request.id"

	// ========================================================================
	// Object store attributes
	// ========================================================================
	AttrStoreType = "store.type"
	AttrBucket    = "storage.bucket"
	AttrShardPath = "store.shard_path"
)

// Span names for the client and server pipelines.
const (
	// Client-side spans.
	SpanCarverWalk       = "carver.walk"
	SpanSenderSendFile   = "sender.send_file"
	SpanSenderSendBlocks = "sender.send_blocks"
	SpanChunkerSplit     = "chunker.split"
	SpanCacheLookup      = "cache.lookup"
	SpanCacheRecord      = "cache.record_saved"
	SpanCacheDrain       = "cache.drain_unsent"
	SpanReconnectorPing  = "reconnector.ping"

	// Server-side spans.
	SpanIngestMeta       = "ingest.meta"
	SpanIngestHashArray  = "ingest.hash_array"
	SpanIngestData       = "ingest.data"
	SpanIngestDataArray  = "ingest.data_array"
	SpanObjectStoreWrite = "objectstore.write"
	SpanObjectStoreRead  = "objectstore.read"
	SpanQueryList        = "query.list"
	SpanQueryFetchBlock  = "query.fetch_block"
)

func Hostname(name string) attribute.KeyValue { return attribute.String(AttrHostname, name) }
func Path(path string) attribute.KeyValue     { return attribute.String(AttrPath, path) }
func FileType(t string) attribute.KeyValue    { return attribute.String(AttrFileType, t) }
func FileSize(size int64) attribute.KeyValue  { return attribute.Int64(AttrSize, size) }
func RequestID(id string) attribute.KeyValue  { return attribute.String(AttrRequestID, id) }

// Hash returns an attribute for a raw block hash, hex encoded.
func Hash(h []byte) attribute.KeyValue {
	return attribute.String(AttrHash, fmt.Sprintf("%x", h))
}

// HashHex returns an attribute for a hash already in hex form.
func HashHex(h string) attribute.KeyValue {
	return attribute.String(AttrHash, h)
}

func BlockIndex(i int) attribute.KeyValue { return attribute.Int(AttrBlockIndex, i) }
func BlockCount(n int) attribute.KeyValue { return attribute.Int(AttrBlockCount, n) }
func BlockSize(n int) attribute.KeyValue  { return attribute.Int(AttrBlockSize, n) }

func Endpoint(e string) attribute.KeyValue { return attribute.String(AttrEndpoint, e) }
func Method(m string) attribute.KeyValue   { return attribute.String(AttrMethod, m) }
func Status(code int) attribute.KeyValue   { return attribute.Int(AttrStatus, code) }
func ClientIP(ip string) attribute.KeyValue { return attribute.String(AttrClientIP, ip) }

func CacheHit(hit bool) attribute.KeyValue     { return attribute.Bool(AttrCacheHit, hit) }
func UnsentCount(n int) attribute.KeyValue     { return attribute.Int(AttrUnsentCount, n) }
func NeededCount(n int) attribute.KeyValue     { return attribute.Int(AttrNeededCount, n) }

func StoreType(t string) attribute.KeyValue { return attribute.String(AttrStoreType, t) }
func Bucket(name string) attribute.KeyValue { return attribute.String(AttrBucket, name) }
func ShardPath(p string) attribute.KeyValue { return attribute.String(AttrShardPath, p) }

// StartSenderSpan starts a span for a client Sender operation on a file.
func StartSenderSpan(ctx context.Context, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{Path(path)}, attrs...)
	return StartSpan(ctx, SpanSenderSendFile, trace.WithAttributes(allAttrs...))
}

// StartIngestSpan starts a span for a server ingest endpoint.
func StartIngestSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, name, trace.WithAttributes(attrs...))
}

// StartObjectStoreSpan starts a span for an object store operation.
func StartObjectStoreSpan(ctx context.Context, operation string, hashHex string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{HashHex(hashHex)}, attrs...)
	return StartSpan(ctx, "objectstore."+operation, trace.WithAttributes(allAttrs...))
}

// StartCacheSpan starts a span for a local-cache operation.
func StartCacheSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "cache."+operation, trace.WithAttributes(attrs...))
}
