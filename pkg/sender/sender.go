// Package sender implements the per-file send protocol: the heart of the
// client. It ties together metadata extraction, the local cache, the
// chunker, and the wire client for one save event at a time.
package sender

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/marmos91/vigil/internal/logger"
	"github.com/marmos91/vigil/internal/telemetry"
	"github.com/marmos91/vigil/pkg/cache"
	"github.com/marmos91/vigil/pkg/chunk"
	"github.com/marmos91/vigil/pkg/hashsum"
	"github.com/marmos91/vigil/pkg/metaextract"
	"github.com/marmos91/vigil/pkg/wireproto"
)

// Transport is the subset of wireclient.Client the Sender needs. Declared
// here (rather than depending on the wireclient package directly) so
// tests can supply a fake transport.
type Transport interface {
	PostMeta(ctx context.Context, meta wireproto.Metadata) ([]string, error)
	PostHashArray(ctx context.Context, hashList []string) ([]string, error)
	PostBlock(ctx context.Context, block wireproto.Block) error
	PostBlockArray(ctx context.Context, blocks []wireproto.Block) error
}

// Config configures chunking and batching behavior.
type Config struct {
	// Hostname is attached to every metadata record.
	Hostname string
	// Adaptive selects the block size from file size (see pkg/chunk);
	// otherwise BlockSize is used for every file.
	Adaptive bool
	// BlockSize is the fixed block size used when Adaptive is false.
	// chunk.DefaultBlockSize is used when this is zero.
	BlockSize int
	// UploadBufferSize is the batching threshold passed to
	// chunk.UploadBufferSize, scaled up for very large files. Callers
	// should fill this from config defaults; the Sender does not
	// second-guess a zero value here.
	UploadBufferSize int
	// Compress deflate-compresses block payloads before sending.
	Compress bool
	// Excludes is the compiled exclusion list; nil means nothing excluded.
	Excludes *metaextract.ExcludeList
}

// Sender runs the save protocol for one file at a time.
type Sender struct {
	cfg       Config
	cache     *cache.Cache
	transport Transport
}

// New builds a Sender.
func New(cfg Config, c *cache.Cache, transport Transport) *Sender {
	return &Sender{cfg: cfg, cache: c, transport: transport}
}

// Send runs the save protocol for path. dirs receives newly-discovered
// directories (the file itself, if it is a directory) so the Carver can
// recurse into them; dirs may be nil if the caller doesn't care.
func (s *Sender) Send(ctx context.Context, path string, dirs chan<- string) error {
	if s.cfg.Excludes.Match(path) {
		logger.DebugCtx(ctx, "skipping excluded path", logger.Path(path))
		return nil
	}

	record, err := metaextract.Extract(path, s.cfg.Hostname)
	if err != nil {
		return fmt.Errorf("sender: extract metadata for %s: %w", path, err)
	}

	// requestID identifies this save-queue entry end to end: it tags every
	// wire POST the save produces and, if one of them fails, the buffered
	// row the Reconnector later retries.
	requestID := uuid.NewString()
	ctx, span := telemetry.StartSenderSpan(ctx, "send_file",
		telemetry.Path(path), telemetry.FileType(record.Type), telemetry.RequestID(requestID))
	defer span.End()

	present, err := s.cache.IsPresent(ctx, record.Key())
	if err != nil {
		return fmt.Errorf("sender: cache lookup for %s: %w", path, err)
	}
	if present {
		s.enqueueDir(record, dirs)
		return nil
	}

	if record.Type != wireproto.FileTypeRegular {
		if err := s.sendNonRegular(ctx, requestID, record); err != nil {
			return err
		}
		s.enqueueDir(record, dirs)
		return nil
	}

	if record.Size >= int64(chunk.BigFileThreshold) {
		return s.sendBigFile(ctx, requestID, path, record)
	}
	return s.sendSmallFile(ctx, requestID, path, record)
}

func (s *Sender) enqueueDir(record metaextract.Record, dirs chan<- string) {
	if dirs == nil || record.Type != wireproto.FileTypeDirectory {
		return
	}
	select {
	case dirs <- record.Path:
	default:
		logger.Warn("directory queue full, dropping recursion candidate", logger.Path(record.Path))
	}
}

// sendNonRegular handles directories, symlinks, and other non-regular
// entries: a single metadata POST with an empty block-list, expecting an
// empty needed-hash response.
func (s *Sender) sendNonRegular(ctx context.Context, requestID string, record metaextract.Record) error {
	meta := record.ToWire()
	meta.DataSent = true

	if _, err := s.postMetaOrBuffer(ctx, requestID, meta); err != nil {
		return err
	}
	if err := s.cache.RecordSaved(ctx, record); err != nil {
		return fmt.Errorf("sender: record saved for %s: %w", record.Path, err)
	}
	return nil
}

// postMetaOrBuffer POSTs meta; on transport failure it buffers the
// payload for the Reconnector and returns a needed-list of every hash in
// the record, so the caller proceeds as if the server needed everything.
func (s *Sender) postMetaOrBuffer(ctx context.Context, requestID string, meta wireproto.Metadata) ([]string, error) {
	needed, err := s.transport.PostMeta(ctx, meta)
	if err == nil {
		return needed, nil
	}

	logger.WarnCtx(ctx, "meta post failed, buffering", logger.RequestID(requestID), logger.Path(meta.Name), logger.Err(err))
	if bufErr := s.bufferJSON(ctx, requestID, wireproto.EndpointMeta, meta); bufErr != nil {
		return nil, fmt.Errorf("sender: buffer failed meta post: %w", bufErr)
	}
	return meta.HashList, nil
}

func (s *Sender) bufferJSON(ctx context.Context, requestID, endpoint string, body any) error {
	payload, err := jsonMarshal(body)
	if err != nil {
		return err
	}
	return s.cache.BufferUnsent(ctx, requestID, endpoint, payload)
}

// sendSmallFile implements the small-file path (§4.4 step 4): the full
// block-list is computed up front and sent with the metadata record.
func (s *Sender) sendSmallFile(ctx context.Context, requestID, path string, record metaextract.Record) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("sender: read %s: %w", path, err)
	}

	blockSize := chunk.BlockSizeFor(record.Size, s.cfg.Adaptive, s.cfg.BlockSize)
	blocks := chunk.SplitBuffer(data, blockSize)
	hashes := make([]hashsum.Hash, len(blocks))
	for i, b := range blocks {
		hashes[i] = hashsum.Sum(b)
	}
	record.BlockList = hashes

	meta := record.ToWire()
	meta.DataSent = false

	neededB64, err := s.postMetaOrBuffer(ctx, requestID, meta)
	if err != nil {
		return err
	}
	needed := decodeHashSet(neededB64)

	if record.Size < int64(blockSize) {
		// Single-block file: the wire protocol posts each needed block
		// individually rather than batched (a known protocol asymmetry).
		for i, h := range hashes {
			if !needed.Has(h) {
				continue
			}
			if err := s.sendOneBlock(ctx, requestID, h, blocks[i]); err != nil {
				return err
			}
		}
	} else {
		if err := s.sendBatched(ctx, requestID, hashes, blocks, chunk.UploadBufferSize(s.cfg.UploadBufferSize, record.Size), needed); err != nil {
			return err
		}
	}

	if err := s.cache.RecordSaved(ctx, record); err != nil {
		return fmt.Errorf("sender: record saved for %s: %w", path, err)
	}
	return nil
}

// sendBigFile implements the streaming big-file path (§4.4 step 5): the
// file is read incrementally, negotiated and uploaded in
// upload-buffer-sized batches, and the complete block-list is only
// attached to the metadata record at the very end.
func (s *Sender) sendBigFile(ctx context.Context, requestID, path string, record metaextract.Record) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("sender: open %s: %w", path, err)
	}
	defer f.Close()

	blockSize := chunk.BlockSizeFor(record.Size, s.cfg.Adaptive, s.cfg.BlockSize)
	bufferSize := chunk.UploadBufferSize(s.cfg.UploadBufferSize, record.Size)

	var allHashes []hashsum.Hash
	var batchHashes []hashsum.Hash
	var batchBlocks [][]byte
	var batchBytes int
	buf := make([]byte, blockSize)

	flush := func() error {
		if len(batchHashes) == 0 {
			return nil
		}
		neededB64, err := s.postHashArrayOrBuffer(ctx, requestID, batchHashes)
		if err != nil {
			return err
		}
		needed := decodeHashSet(neededB64)
		if err := s.sendBatched(ctx, requestID, batchHashes, batchBlocks, bufferSize, needed); err != nil {
			return err
		}
		allHashes = append(allHashes, batchHashes...)
		batchHashes = nil
		batchBlocks = nil
		batchBytes = 0
		return nil
	}

	for {
		n, readErr := io.ReadFull(f, buf)
		if n > 0 {
			block := make([]byte, n)
			copy(block, buf[:n])
			h := hashsum.Sum(block)
			batchHashes = append(batchHashes, h)
			batchBlocks = append(batchBlocks, block)
			batchBytes += n
			if batchBytes >= bufferSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("sender: read %s: %w", path, readErr)
		}
	}
	if err := flush(); err != nil {
		return err
	}

	record.BlockList = allHashes
	record.DataSent = true
	meta := record.ToWire()
	meta.DataSent = true

	if _, err := s.postMetaOrBuffer(ctx, requestID, meta); err != nil {
		return err
	}
	if err := s.cache.RecordSaved(ctx, record); err != nil {
		return fmt.Errorf("sender: record saved for %s: %w", path, err)
	}
	return nil
}

func (s *Sender) postHashArrayOrBuffer(ctx context.Context, requestID string, hashes []hashsum.Hash) ([]string, error) {
	list := make([]string, len(hashes))
	for i, h := range hashes {
		list[i] = h.Base64()
	}

	needed, err := s.transport.PostHashArray(ctx, list)
	if err == nil {
		return needed, nil
	}

	logger.WarnCtx(ctx, "hash array post failed, buffering", logger.RequestID(requestID), logger.Err(err))
	if bufErr := s.bufferJSON(ctx, requestID, wireproto.EndpointHashArray, wireproto.HashListResponse{HashList: list}); bufErr != nil {
		return nil, fmt.Errorf("sender: buffer failed hash array post: %w", bufErr)
	}
	return list, nil
}

// sendBatched batches needed blocks up to bufferSize bytes and POSTs each
// full batch to the bulk endpoint, flushing any non-empty remainder.
func (s *Sender) sendBatched(ctx context.Context, requestID string, hashes []hashsum.Hash, blocks [][]byte, bufferSize int, needed hashsum.Set) error {
	var batch []wireproto.Block
	var batchBytes int

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.postBlockArrayOrBuffer(ctx, requestID, batch); err != nil {
			return err
		}
		batch = nil
		batchBytes = 0
		return nil
	}

	for i, h := range hashes {
		if !needed.Has(h) {
			continue
		}
		block, err := s.makeBlock(h, blocks[i])
		if err != nil {
			return err
		}
		batch = append(batch, block)
		batchBytes += len(blocks[i])
		if batchBytes >= bufferSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func (s *Sender) sendOneBlock(ctx context.Context, requestID string, h hashsum.Hash, data []byte) error {
	block, err := s.makeBlock(h, data)
	if err != nil {
		return err
	}
	if err := s.transport.PostBlock(ctx, block); err != nil {
		logger.WarnCtx(ctx, "block post failed, buffering", logger.RequestID(requestID), logger.HashHex(h.Hex()), logger.Err(err))
		return s.bufferJSON(ctx, requestID, wireproto.EndpointData, block)
	}
	return nil
}

func (s *Sender) postBlockArrayOrBuffer(ctx context.Context, requestID string, batch []wireproto.Block) error {
	if err := s.transport.PostBlockArray(ctx, batch); err != nil {
		logger.WarnCtx(ctx, "block array post failed, buffering", logger.RequestID(requestID), logger.BlockCount(len(batch)), logger.Err(err))
		return s.bufferJSON(ctx, requestID, wireproto.EndpointDataArray, wireproto.DataArrayRequest{DataArray: batch})
	}
	return nil
}

func (s *Sender) makeBlock(h hashsum.Hash, data []byte) (wireproto.Block, error) {
	if !s.cfg.Compress {
		return wireproto.Block{
			Hash: h.Base64(), Data: data, Size: len(data),
			CompType: wireproto.CompressionNone, UncompSize: len(data),
		}, nil
	}

	compressed, _, err := wireproto.CompressBody(data)
	if err != nil {
		return wireproto.Block{}, fmt.Errorf("sender: compress block %s: %w", h.Hex(), err)
	}
	return wireproto.Block{
		Hash: h.Base64(), Data: compressed, Size: len(compressed),
		CompType: wireproto.CompressionDeflate, UncompSize: len(data),
	}, nil
}

func decodeHashSet(b64 []string) hashsum.Set {
	hashes := make([]hashsum.Hash, 0, len(b64))
	for _, s := range b64 {
		h, err := hashsum.FromBase64(s)
		if err != nil {
			continue
		}
		hashes = append(hashes, h)
	}
	return hashsum.NewSet(hashes)
}
