package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports assistant counters and latencies. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	chatRequests    *prometheus.CounterVec
	fallbackKinds   *prometheus.CounterVec
	primaryAttempts *prometheus.CounterVec
	primaryLatency  *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
}

// NewMetrics registers the assistant collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		chatRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "assistant",
				Name:      "chat_requests_total",
				Help:      "Chat replies by source (ai or fallback).",
			},
			[]string{"source"},
		),
		fallbackKinds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "assistant",
				Name:      "fallback_kind_total",
				Help:      "Fallback replies by matcher branch.",
			},
			[]string{"kind"},
		),
		primaryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "assistant",
				Name:      "primary_attempts_total",
				Help:      "Primary responder attempts by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		),
		primaryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "assistant",
				Name:      "primary_latency_seconds",
				Help:      "Latency of calls to the generative model.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
			},
			[]string{"provider"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "assistant",
				Name:      "reply_cache_lookups_total",
				Help:      "Reply cache lookups by result.",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.chatRequests,
		m.fallbackKinds,
		m.primaryAttempts,
		m.primaryLatency,
		m.cacheLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordReply counts one answered chat message.
func (m *Metrics) RecordReply(source, fallbackKind string) {
	if m == nil {
		return
	}
	m.chatRequests.WithLabelValues(source).Inc()
	if fallbackKind != "" {
		m.fallbackKinds.WithLabelValues(fallbackKind).Inc()
	}
}

// RecordPrimary counts one primary responder attempt.
func (m *Metrics) RecordPrimary(provider, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.primaryAttempts.WithLabelValues(provider, outcome).Inc()
	if latency > 0 {
		m.primaryLatency.WithLabelValues(provider).Observe(latency.Seconds())
	}
}

// RecordCache counts a reply cache lookup ("hit", "miss" or "error").
func (m *Metrics) RecordCache(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
