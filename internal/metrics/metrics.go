// Package metrics exposes Prometheus counters and histograms fed from
// the event bus.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/varigraph/varigraph/internal/eventbus"
	"github.com/varigraph/varigraph/internal/events"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	queryErrors   prometheus.Counter
	queryDuration prometheus.Histogram
	fetchTotal    *prometheus.CounterVec
	fetchKeys     *prometheus.HistogramVec
}

// New builds the metric set on a private registry so tests never collide
// on the global one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "varigraph_http_requests_total",
			Help: "HTTP requests by method and status.",
		}, []string{"method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "varigraph_http_request_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		queryErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "varigraph_query_errors_total",
			Help: "Errors recorded in query results.",
		}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "varigraph_query_seconds",
			Help:    "Query execution latency.",
			Buckets: prometheus.DefBuckets,
		}),
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "varigraph_provider_fetches_total",
			Help: "Provider round trips by entity and field.",
		}, []string{"entity", "field"}),
		fetchKeys: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "varigraph_provider_fetch_keys",
			Help:    "Deduplicated keys per provider round trip.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}, []string{"entity", "field"}),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.queryErrors, m.queryDuration, m.fetchTotal, m.fetchKeys)
	return m
}

// Attach subscribes the metric updates to the event bus.
func (m *Metrics) Attach() {
	eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
		m.httpRequests.WithLabelValues(e.Method, strconv.Itoa(e.Status)).Inc()
		m.httpDuration.WithLabelValues(e.Method).Observe(e.Duration.Seconds())
	})
	eventbus.Subscribe(func(ctx context.Context, e events.QueryFinish) {
		m.queryDuration.Observe(e.Duration.Seconds())
		if e.Errors > 0 {
			m.queryErrors.Add(float64(e.Errors))
		}
	})
	eventbus.Subscribe(func(ctx context.Context, e events.FetchFinish) {
		m.fetchTotal.WithLabelValues(e.Entity, e.Field).Inc()
		m.fetchKeys.WithLabelValues(e.Entity, e.Field).Observe(float64(e.Keys))
	})
}

// Handler serves the scrape endpoint for this metric set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
