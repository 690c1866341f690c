package httpserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload decision labels.
const (
	decisionAccepted    = "accepted"
	decisionRejected    = "rejected"
	decisionMalformed   = "malformed"
	decisionRateLimited = "rate_limited"
	decisionFailed      = "failed"
)

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	registry  *prometheus.Registry
	uploads   *prometheus.CounterVec
	downloads *prometheus.CounterVec
}

// NewMetrics registers the upload and download counters on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backup",
			Name:      "uploads_total",
			Help:      "Backup upload requests by authorization decision.",
		}, []string{"decision"}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "backup",
			Name:      "downloads_total",
			Help:      "Backup file download requests by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.uploads,
		m.downloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) upload(decision string) {
	m.uploads.WithLabelValues(decision).Inc()
}

func (m *Metrics) download(result string) {
	m.downloads.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
