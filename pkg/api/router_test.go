package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/vigil/pkg/hashsum"
	"github.com/marmos91/vigil/pkg/ingest"
	"github.com/marmos91/vigil/pkg/metalog"
	"github.com/marmos91/vigil/pkg/metalog/index"
	"github.com/marmos91/vigil/pkg/objectstore/fs"
	"github.com/marmos91/vigil/pkg/query"
	"github.com/marmos91/vigil/pkg/wireproto"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store, err := fs.New(fs.Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("fs.New: %v", err)
	}
	log, err := metalog.Open(t.TempDir())
	if err != nil {
		t.Fatalf("metalog.Open: %v", err)
	}
	idx, err := index.Open(t.TempDir())
	if err != nil {
		t.Fatalf("index.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
		log.Close()
		idx.Close()
	})

	ing := ingest.New(store, log, idx)
	q := query.New(log, store)
	srv := NewServer(ing, q, nil)
	return NewRouter(srv, nil)
}

func TestVersionEndpoint(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/Version.json", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp wireproto.VersionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Version != ProtocolVersion {
		t.Fatalf("got version %q", resp.Version)
	}
}

func TestMetaThenDataRoundTrip(t *testing.T) {
	r := newTestRouter(t)

	data := []byte("hello from the wire")
	h := hashsum.Sum(data)

	meta := wireproto.Metadata{
		Hostname: "host1",
		Name:     "/home/file.txt",
		HashList: []string{h.Base64()},
	}
	body, _ := json.Marshal(meta)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/Meta.json", bytes.NewReader(body))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("meta status = %d: %s", w.Code, w.Body.String())
	}
	var needed wireproto.HashListResponse
	json.Unmarshal(w.Body.Bytes(), &needed)
	if len(needed.HashList) != 1 {
		t.Fatalf("expected 1 needed hash, got %v", needed.HashList)
	}

	block := wireproto.Block{Hash: h.Base64(), Data: data, Size: len(data)}
	blockBody, _ := json.Marshal(block)
	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/Data.json", bytes.NewReader(blockBody))
	r.ServeHTTP(w2, req2)
	if w2.Code != http.StatusOK {
		t.Fatalf("data status = %d: %s", w2.Code, w2.Body.String())
	}

	w3 := httptest.NewRecorder()
	req3 := httptest.NewRequest(http.MethodGet, "/Data/"+h.Hex()+".json", nil)
	r.ServeHTTP(w3, req3)
	if w3.Code != http.StatusOK {
		t.Fatalf("data get status = %d: %s", w3.Code, w3.Body.String())
	}
	var dataResp wireproto.DataResponse
	json.Unmarshal(w3.Body.Bytes(), &dataResp)
	if string(dataResp.Data) != string(data) {
		t.Fatalf("got %q, want %q", dataResp.Data, data)
	}
}

func TestUnknownEndpointReturns404(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/Nonexistent.json", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestStatsReflectsRequestCounts(t *testing.T) {
	r := newTestRouter(t)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/Version.json", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/Version.json", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/Stats.json", nil))

	var stats wireproto.StatsResponse
	json.Unmarshal(w.Body.Bytes(), &stats)
	if stats.VersionGets != 2 {
		t.Fatalf("got VersionGets=%d, want 2", stats.VersionGets)
	}
}
