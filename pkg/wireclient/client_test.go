package wireclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marmos91/vigil/pkg/wireproto"
)

func TestPostMetaReturnsNeededHashes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wireproto.EndpointMeta {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var m wireproto.Metadata
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(wireproto.HashListResponse{HashList: []string{"abc="}})
	}))
	defer srv.Close()

	c := New(srv.URL)
	needed, err := c.PostMeta(context.Background(), wireproto.NewMetadata())
	if err != nil {
		t.Fatalf("PostMeta: %v", err)
	}
	if len(needed) != 1 || needed[0] != "abc=" {
		t.Fatalf("got %v", needed)
	}
}

func TestVersionProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(wireproto.VersionResponse{Version: "1.0.0"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v.Version != "1.0.0" {
		t.Fatalf("got %q", v.Version)
	}
}

func TestPostBlockArrayFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.PostBlockArray(context.Background(), []wireproto.Block{{Hash: "x"}})
	if err == nil {
		t.Fatalf("expected error")
	}
}
