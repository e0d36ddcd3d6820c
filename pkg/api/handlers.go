package api

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/vigil/internal/logger"
	"github.com/marmos91/vigil/pkg/wireproto"
)

// ProtocolVersion is returned by GET /Version.json.
const ProtocolVersion = "1.0"

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.stats.recordVersion()
	writeJSON(w, http.StatusOK, wireproto.VersionResponse{Version: ProtocolVersion})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.stats.recordStats()
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func (s *Server) handleFileList(w http.ResponseWriter, r *http.Request) {
	s.stats.recordFileList()

	q, err := parseFileListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.query.List(r.Context(), q)
	if err != nil {
		logger.ErrorCtx(r.Context(), "api: file list query failed", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func parseFileListQuery(r *http.Request) (wireproto.FileListQuery, error) {
	p := r.URL.Query()
	q := wireproto.FileListQuery{
		Hostname:   p.Get("hostname"),
		Owner:      p.Get("owner"),
		Group:      p.Get("group"),
		LatestOnly: p.Get("latest") == "true" || p.Get("latest") == "1",
	}

	if v := p.Get("uid"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return q, err
		}
		uid := uint32(n)
		q.UID = &uid
	}
	if v := p.Get("gid"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return q, err
		}
		gid := uint32(n)
		q.GID = &gid
	}
	if v := p.Get("filename"); v != "" {
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return q, err
		}
		q.PathRegex = string(decoded)
	}
	for param, dst := range map[string]**int64{
		"date":       &q.ExactDate,
		"afterdate":  &q.AfterDate,
		"beforedate": &q.BeforeDate,
	} {
		v := p.Get(param)
		if v == "" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return q, err
		}
		n, err := strconv.ParseInt(string(decoded), 10, 64)
		if err != nil {
			return q, err
		}
		*dst = &n
	}
	return q, nil
}

func (s *Server) handleDataGet(w http.ResponseWriter, r *http.Request) {
	s.stats.recordDataGet()

	hexHash := strings.TrimSuffix(chi.URLParam(r, "hash"), ".json")
	resp, err := s.query.FetchBlock(r.Context(), hexHash)
	if err != nil {
		writeError(w, http.StatusNotFound, "block not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDataHashArrayGet(w http.ResponseWriter, r *http.Request) {
	s.stats.recordDataHashGet()

	hashes := strings.Split(r.Header.Get(wireproto.HeaderGetHashArray), ",")
	for i := range hashes {
		hashes[i] = strings.TrimSpace(hashes[i])
	}
	resp, err := s.query.FetchBlockArray(r.Context(), hashes)
	if err != nil {
		writeError(w, http.StatusNotFound, "one or more blocks not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	body, meta, ok := s.decodeMetadata(w, r)
	if !ok {
		return
	}
	s.stats.recordMeta(len(body))

	needed, err := s.ingest.HandleMeta(r.Context(), meta)
	if err != nil {
		logger.ErrorCtx(r.Context(), "api: meta ingest failed", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "ingest failed")
		return
	}
	writeJSON(w, http.StatusOK, wireproto.HashListResponse{HashList: needed})
}

func (s *Server) handleHashArray(w http.ResponseWriter, r *http.Request) {
	s.stats.recordHashArray()

	var req wireproto.HashListResponse
	if !s.decodeJSON(w, r, &req) {
		return
	}

	needed, err := s.ingest.HandleHashArray(r.Context(), req.HashList)
	if err != nil {
		logger.ErrorCtx(r.Context(), "api: hash array ingest failed", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "ingest failed")
		return
	}
	writeJSON(w, http.StatusOK, wireproto.HashListResponse{HashList: needed})
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	s.stats.recordData()

	var block wireproto.Block
	if !s.decodeJSON(w, r, &block) {
		return
	}
	if err := s.ingest.HandleBlock(r.Context(), block); err != nil {
		logger.ErrorCtx(r.Context(), "api: block ingest failed", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "ingest failed")
		return
	}
	writeJSON(w, http.StatusOK, successResponse())
}

func (s *Server) handleDataArray(w http.ResponseWriter, r *http.Request) {
	s.stats.recordDataArray()

	var req wireproto.DataArrayRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := s.ingest.HandleBlockArray(r.Context(), req.DataArray); err != nil {
		logger.ErrorCtx(r.Context(), "api: block array ingest failed", logger.Err(err))
		writeError(w, http.StatusInternalServerError, "ingest failed")
		return
	}
	writeJSON(w, http.StatusOK, successResponse())
}

func successResponse() wireproto.SuccessResponse {
	return wireproto.SuccessResponse{Success: wireproto.SuccessCode{Code: 0, Message: "ok"}}
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// decodeMetadata reads the raw body (needed for the byte count recorded in
// Stats.MetadataBytes) before unmarshaling it.
func (s *Server) decodeMetadata(w http.ResponseWriter, r *http.Request) ([]byte, wireproto.Metadata, bool) {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return nil, wireproto.Metadata{}, false
	}
	var meta wireproto.Metadata
	if err := json.Unmarshal(body, &meta); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, wireproto.Metadata{}, false
	}
	return body, meta, true
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.stats.recordUnknown()
	writeError(w, http.StatusNotFound, "unknown endpoint")
}
