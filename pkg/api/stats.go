package api

import (
	"sync/atomic"

	"github.com/marmos91/vigil/pkg/metrics/prometheus"
	"github.com/marmos91/vigil/pkg/wireproto"
)

// Stats accumulates the per-endpoint request counters served at
// /Stats.json, mirroring each increment into the Prometheus counters
// scraped at /metrics.
type Stats struct {
	prom *prometheus.Counters

	totalRequests  int64
	versionGets    int64
	statsGets      int64
	fileListGets   int64
	dataGets       int64
	dataHashGets   int64
	metaPosts      int64
	hashArrayPosts int64
	dataPosts      int64
	dataArrayPosts int64
	unknownReqs    int64
	metadataBytes  int64
}

// NewStats builds a Stats tracker backed by prom, which may be nil to
// skip Prometheus mirroring (useful in tests).
func NewStats(prom *prometheus.Counters) *Stats {
	return &Stats{prom: prom}
}

func (s *Stats) recordVersion() {
	atomic.AddInt64(&s.totalRequests, 1)
	atomic.AddInt64(&s.versionGets, 1)
	if s.prom != nil {
		s.prom.Version.Inc()
	}
}

func (s *Stats) recordStats() {
	atomic.AddInt64(&s.totalRequests, 1)
	atomic.AddInt64(&s.statsGets, 1)
	if s.prom != nil {
		s.prom.Stats.Inc()
	}
}

func (s *Stats) recordFileList() {
	atomic.AddInt64(&s.totalRequests, 1)
	atomic.AddInt64(&s.fileListGets, 1)
	if s.prom != nil {
		s.prom.FileList.Inc()
	}
}

func (s *Stats) recordDataGet() {
	atomic.AddInt64(&s.totalRequests, 1)
	atomic.AddInt64(&s.dataGets, 1)
	if s.prom != nil {
		s.prom.DataGet.Inc()
	}
}

func (s *Stats) recordDataHashGet() {
	atomic.AddInt64(&s.totalRequests, 1)
	atomic.AddInt64(&s.dataHashGets, 1)
	if s.prom != nil {
		s.prom.DataHashGet.Inc()
	}
}

func (s *Stats) recordMeta(bytes int) {
	atomic.AddInt64(&s.totalRequests, 1)
	atomic.AddInt64(&s.metaPosts, 1)
	atomic.AddInt64(&s.metadataBytes, int64(bytes))
	if s.prom != nil {
		s.prom.Meta.Inc()
		s.prom.MetadataBytes.Add(float64(bytes))
	}
}

func (s *Stats) recordHashArray() {
	atomic.AddInt64(&s.totalRequests, 1)
	atomic.AddInt64(&s.hashArrayPosts, 1)
	if s.prom != nil {
		s.prom.HashArray.Inc()
	}
}

func (s *Stats) recordData() {
	atomic.AddInt64(&s.totalRequests, 1)
	atomic.AddInt64(&s.dataPosts, 1)
	if s.prom != nil {
		s.prom.Data.Inc()
	}
}

func (s *Stats) recordDataArray() {
	atomic.AddInt64(&s.totalRequests, 1)
	atomic.AddInt64(&s.dataArrayPosts, 1)
	if s.prom != nil {
		s.prom.DataArray.Inc()
	}
}

func (s *Stats) recordUnknown() {
	atomic.AddInt64(&s.totalRequests, 1)
	atomic.AddInt64(&s.unknownReqs, 1)
	if s.prom != nil {
		s.prom.Unknown.Inc()
	}
}

// Snapshot returns the current counter values as the /Stats.json body.
func (s *Stats) Snapshot() wireproto.StatsResponse {
	return wireproto.StatsResponse{
		TotalRequests:  atomic.LoadInt64(&s.totalRequests),
		VersionGets:    atomic.LoadInt64(&s.versionGets),
		StatsGets:      atomic.LoadInt64(&s.statsGets),
		FileListGets:   atomic.LoadInt64(&s.fileListGets),
		DataGets:       atomic.LoadInt64(&s.dataGets),
		DataHashGets:   atomic.LoadInt64(&s.dataHashGets),
		MetaPosts:      atomic.LoadInt64(&s.metaPosts),
		HashArrayPosts: atomic.LoadInt64(&s.hashArrayPosts),
		DataPosts:      atomic.LoadInt64(&s.dataPosts),
		DataArrayPosts: atomic.LoadInt64(&s.dataArrayPosts),
		UnknownReqs:    atomic.LoadInt64(&s.unknownReqs),
		MetadataBytes:  atomic.LoadInt64(&s.metadataBytes),
	}
}
