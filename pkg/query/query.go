// Package query implements the server's read path: filtering the
// per-host metadata log for /File/List.json, and fetching stored blocks
// for /Data/<hash>.json and /Data/Hash_Array.json.
package query

import (
	"context"
	"fmt"
	"regexp"

	"github.com/marmos91/vigil/pkg/hashsum"
	"github.com/marmos91/vigil/pkg/metalog"
	"github.com/marmos91/vigil/pkg/objectstore"
	"github.com/marmos91/vigil/pkg/wireproto"
)

// Engine answers metadata and block queries against a metadata log and an
// object store.
type Engine struct {
	log   *metalog.Log
	store objectstore.Store
}

// New builds a query Engine.
func New(log *metalog.Log, store objectstore.Store) *Engine {
	return &Engine{log: log, store: store}
}

// List returns the metadata records matching q, in log order. When
// q.LatestOnly is set, only the highest-mtime record per path is kept.
func (e *Engine) List(ctx context.Context, q wireproto.FileListQuery) ([]metalog.Record, error) {
	var pathRe *regexp.Regexp
	if q.PathRegex != "" {
		re, err := regexp.Compile(q.PathRegex)
		if err != nil {
			return nil, fmt.Errorf("query: compile path regex %q: %w", q.PathRegex, err)
		}
		pathRe = re
	}

	var matched []metalog.Record
	err := e.log.Stream(q.Hostname, func(r metalog.Record) error {
		if !matches(r, q, pathRe) {
			return nil
		}
		matched = append(matched, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query: stream %s: %w", q.Hostname, err)
	}

	if !q.LatestOnly {
		return matched, nil
	}
	return latestPerPath(matched), nil
}

func matches(r metalog.Record, q wireproto.FileListQuery, pathRe *regexp.Regexp) bool {
	if q.UID != nil && r.UID != *q.UID {
		return false
	}
	if q.GID != nil && r.GID != *q.GID {
		return false
	}
	if q.Owner != "" && r.Owner != q.Owner {
		return false
	}
	if q.Group != "" && r.Group != q.Group {
		return false
	}
	if pathRe != nil && !pathRe.MatchString(r.Path) {
		return false
	}
	if q.ExactDate != nil && r.Mtime != *q.ExactDate {
		return false
	}
	if q.AfterDate != nil && r.Mtime <= *q.AfterDate {
		return false
	}
	if q.BeforeDate != nil && r.Mtime >= *q.BeforeDate {
		return false
	}
	return true
}

// latestPerPath keeps, for each distinct path, the record with the
// largest mtime, preserving the order of each path's first appearance.
func latestPerPath(records []metalog.Record) []metalog.Record {
	best := make(map[string]metalog.Record, len(records))
	order := make([]string, 0, len(records))
	for _, r := range records {
		prev, ok := best[r.Path]
		if !ok {
			order = append(order, r.Path)
		}
		if !ok || r.Mtime >= prev.Mtime {
			best[r.Path] = r
		}
	}
	out := make([]metalog.Record, 0, len(order))
	for _, p := range order {
		out = append(out, best[p])
	}
	return out
}

// FetchBlock reads a single block by its hex-encoded hash, as requested
// by GET /Data/<hash>.json.
func (e *Engine) FetchBlock(ctx context.Context, hexHash string) (wireproto.DataResponse, error) {
	h, err := hashsum.FromHex(hexHash)
	if err != nil {
		return wireproto.DataResponse{}, fmt.Errorf("query: decode hash %q: %w", hexHash, err)
	}
	data, err := e.store.ReadBlock(ctx, h)
	if err != nil {
		return wireproto.DataResponse{}, err
	}
	return wireproto.DataResponse{
		Hash: h.Base64(),
		Data: data,
		Size: len(data),
	}, nil
}

// FetchBlockArray reads every block named in a base64 hash list, as
// requested by GET /Data/Hash_Array.json. Returns results in request
// order; a missing block aborts the whole call, since the caller can't
// reassemble a file with a hole in its block list.
func (e *Engine) FetchBlockArray(ctx context.Context, b64Hashes []string) ([]wireproto.DataResponse, error) {
	out := make([]wireproto.DataResponse, 0, len(b64Hashes))
	for _, s := range b64Hashes {
		h, err := hashsum.FromBase64(s)
		if err != nil {
			return nil, fmt.Errorf("query: decode hash %q: %w", s, err)
		}
		data, err := e.store.ReadBlock(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("query: read block %s: %w", h.Hex(), err)
		}
		out = append(out, wireproto.DataResponse{Hash: s, Data: data, Size: len(data)})
	}
	return out, nil
}
