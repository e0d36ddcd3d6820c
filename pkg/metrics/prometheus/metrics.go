// Package prometheus exposes the server's request counters as Prometheus
// metrics, in addition to the JSON summary served at /Stats.json.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counters holds one counter per wire endpoint plus a bytes-received
// counter for metadata payloads.
type Counters struct {
	Version        prometheus.Counter
	Stats          prometheus.Counter
	FileList       prometheus.Counter
	DataGet        prometheus.Counter
	DataHashGet    prometheus.Counter
	Meta           prometheus.Counter
	HashArray      prometheus.Counter
	Data           prometheus.Counter
	DataArray      prometheus.Counter
	Unknown        prometheus.Counter
	MetadataBytes  prometheus.Counter
}

// NewCounters registers the server's request counters against reg. Pass
// prometheus.DefaultRegisterer for the global registry.
func NewCounters(reg prometheus.Registerer) *Counters {
	f := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{
			Namespace: "vigil_server",
			Name:      name,
			Help:      help,
		})
	}
	return &Counters{
		Version:       counter("version_requests_total", "Version.json requests served"),
		Stats:         counter("stats_requests_total", "Stats.json requests served"),
		FileList:      counter("file_list_requests_total", "File/List.json requests served"),
		DataGet:       counter("data_get_requests_total", "Data/<hash>.json requests served"),
		DataHashGet:   counter("data_hash_array_get_requests_total", "Data/Hash_Array.json requests served"),
		Meta:          counter("meta_requests_total", "Meta.json requests served"),
		HashArray:     counter("hash_array_requests_total", "Hash_Array.json requests served"),
		Data:          counter("data_requests_total", "Data.json requests served"),
		DataArray:     counter("data_array_requests_total", "Data_Array.json requests served"),
		Unknown:       counter("unknown_requests_total", "requests to unrecognized endpoints"),
		MetadataBytes: counter("metadata_bytes_received_total", "cumulative bytes of metadata JSON received"),
	}
}

// Handler returns the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
