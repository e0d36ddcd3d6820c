// Package ingest implements the server's ingest logic: accept metadata
// records and data blocks, compute which blocks the server still needs,
// and persist both. It is transport-agnostic; pkg/api adapts it to HTTP.
package ingest

import (
	"context"
	"fmt"

	"github.com/marmos91/vigil/internal/logger"
	"github.com/marmos91/vigil/internal/telemetry"
	"github.com/marmos91/vigil/pkg/hashsum"
	"github.com/marmos91/vigil/pkg/metalog"
	"github.com/marmos91/vigil/pkg/metalog/index"
	"github.com/marmos91/vigil/pkg/objectstore"
	"github.com/marmos91/vigil/pkg/wireproto"
)

// Ingest ties the object store, metadata log, and its index together.
// Ingest itself holds no per-client state; concurrent clients POSTing the
// same block hash are safe thanks to the object store's write-once
// semantics, and concurrent appends to different hostnames' logs don't
// contend with each other.
type Ingest struct {
	store objectstore.Store
	log   *metalog.Log
	index index.Indexer
}

// New builds an Ingest. idx may be the badger-backed *index.Index or any
// other index.Indexer implementation, such as pkg/metalog/indexpg.
func New(store objectstore.Store, log *metalog.Log, idx index.Indexer) *Ingest {
	return &Ingest{store: store, log: log, index: idx}
}

// HandleMeta computes the needed-hash subset of meta's block-list,
// appends the record to hostname's metadata log, and returns the needed
// subset (base64) for the response body.
func (i *Ingest) HandleMeta(ctx context.Context, meta wireproto.Metadata) ([]string, error) {
	ctx, span := telemetry.StartIngestSpan(ctx, "meta", telemetry.Hostname(meta.Hostname), telemetry.Path(meta.Name))
	defer span.End()

	needed, err := i.neededSubset(ctx, meta.HashList)
	if err != nil {
		return nil, err
	}

	record := metalog.Record{
		Type: meta.FileType, Inode: meta.Inode, Mode: meta.Mode,
		Atime: meta.Atime, Ctime: meta.Ctime, Mtime: meta.Mtime, Size: meta.FSize,
		Owner: meta.Owner, Group: meta.Group, UID: meta.UID, GID: meta.GID,
		Path: meta.Name, Link: meta.Link, BlockList: meta.HashList,
	}

	offset, err := i.log.Append(ctx, meta.Hostname, record)
	if err != nil {
		return nil, fmt.Errorf("ingest: append metadata record: %w", err)
	}
	if err := i.index.Put(meta.Hostname, meta.Name, offset, meta.Mtime); err != nil {
		logger.WarnCtx(ctx, "ingest: index update failed", logger.Path(meta.Name), logger.Err(err))
	}

	logger.InfoCtx(ctx, "ingest: metadata recorded",
		logger.Hostname(meta.Hostname), logger.Path(meta.Name), logger.BlockCount(len(meta.HashList)))
	return needed, nil
}

// HandleHashArray computes the needed-hash subset without persisting a
// metadata record. Used only by the big-file path's mid-stream
// negotiation.
func (i *Ingest) HandleHashArray(ctx context.Context, hashList []string) ([]string, error) {
	_, span := telemetry.StartIngestSpan(ctx, "hash_array")
	defer span.End()
	return i.neededSubset(ctx, hashList)
}

func (i *Ingest) neededSubset(ctx context.Context, b64 []string) ([]string, error) {
	hashes := make([]hashsum.Hash, 0, len(b64))
	order := make(map[hashsum.Hash]string, len(b64))
	for _, s := range b64 {
		h, err := hashsum.FromBase64(s)
		if err != nil {
			return nil, fmt.Errorf("ingest: decode hash %q: %w", s, err)
		}
		hashes = append(hashes, h)
		order[h] = s
	}

	needed, err := i.store.Needed(ctx, hashes)
	if err != nil {
		return nil, fmt.Errorf("ingest: query needed hashes: %w", err)
	}

	out := make([]string, len(needed))
	for idx, h := range needed {
		out[idx] = order[h]
	}
	return out, nil
}

// HandleBlock writes a single incoming block to the object store.
func (i *Ingest) HandleBlock(ctx context.Context, block wireproto.Block) error {
	h, err := hashsum.FromBase64(block.Hash)
	if err != nil {
		return fmt.Errorf("ingest: decode block hash %q: %w", block.Hash, err)
	}
	if err := i.store.WriteBlock(ctx, h, block.Data); err != nil {
		return fmt.Errorf("ingest: write block %s: %w", h.Hex(), err)
	}
	return nil
}

// HandleBlockArray writes every block in a bulk payload.
func (i *Ingest) HandleBlockArray(ctx context.Context, blocks []wireproto.Block) error {
	for _, b := range blocks {
		if err := i.HandleBlock(ctx, b); err != nil {
			return err
		}
	}
	return nil
}
