// Package api implements the server's HTTP surface: the nine wire
// endpoints (including the /Stats.json counters) plus the /metrics
// Prometheus scrape endpoint.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/vigil/internal/logger"
	"github.com/marmos91/vigil/pkg/ingest"
	"github.com/marmos91/vigil/pkg/metrics/prometheus"
	"github.com/marmos91/vigil/pkg/query"
	"github.com/marmos91/vigil/pkg/restoreauth"
)

// Server wires the ingest and query engines to the chi router.
type Server struct {
	ingest *ingest.Ingest
	query  *query.Engine
	stats  *Stats
}

// NewServer builds a Server. prom may be nil to skip Prometheus
// mirroring of the request counters.
func NewServer(ing *ingest.Ingest, q *query.Engine, prom *prometheus.Counters) *Server {
	return &Server{ingest: ing, query: q, stats: NewStats(prom)}
}

// NewRouter builds the chi router exposing every wire endpoint. auth may
// be nil, in which case the query endpoints (File/List.json, Data/*.json)
// are reachable without a bearer token, matching the backup wire
// protocol's own lack of access control.
//
//   - GET  /Version.json
//   - GET  /Stats.json
//   - GET  /File/List.json      (bearer-token guarded when auth != nil)
//   - GET  /Data/{hash}.json    (bearer-token guarded when auth != nil)
//   - GET  /Data/Hash_Array.json (bearer-token guarded when auth != nil)
//   - POST /Meta.json
//   - POST /Hash_Array.json
//   - POST /Data.json
//   - POST /Data_Array.json
//   - GET  /metrics (Prometheus scrape)
func NewRouter(s *Server, auth *restoreauth.TokenAuth) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/Version.json", s.handleVersion)
	r.Get("/Stats.json", s.handleStats)
	r.Get("/metrics", prometheus.Handler().ServeHTTP)
	r.Post("/Meta.json", s.handleMeta)
	r.Post("/Hash_Array.json", s.handleHashArray)
	r.Post("/Data.json", s.handleData)
	r.Post("/Data_Array.json", s.handleDataArray)

	r.Group(func(q chi.Router) {
		if auth != nil {
			q.Use(auth.Middleware)
		}
		q.Get("/File/List.json", s.handleFileList)
		q.Get("/Data/Hash_Array.json", s.handleDataHashArrayGet)
		q.Get("/Data/{hash}.json", s.handleDataGet)
	})

	r.NotFound(s.handleNotFound)

	return r
}

// requestLogger logs request start at debug level and completion at
// info level, including status and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("api request started",
			"request_id", requestID, "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("api request completed",
			"request_id", requestID, "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "bytes", ww.BytesWritten(), "duration", time.Since(start).String())
	})
}
