// Package metrics exposes Prometheus collectors for the cache, the token manager, upstream calls and the HTTP surface.
//
// A [Metrics] value satisfies [cache.Recorder], [auth.Recorder] and [services.Recorder]. A nil *Metrics is valid
// and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tunefeed"

// Metrics owns its own registry so that several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	cacheEvents    *prometheus.CounterVec
	cacheSwept     prometheus.Counter
	tokenRefreshes *prometheus.CounterVec
	upstream       *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	releases       prometheus.Gauge
}

// New creates and registers every collector, plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Cache lookups and expirations by outcome",
		}, []string{"event"}),
		cacheSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "swept_entries_total",
			Help:      "Expired entries removed by the background sweep",
		}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "token_refreshes_total",
			Help:      "Credential exchanges by trigger and result",
		}, []string{"trigger", "result"}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Upstream request latency by service and status code",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "code"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served by route, method and status code",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		releases: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "releases",
			Name:      "cached",
			Help:      "Number of release summaries in the last cached listing",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cacheEvents,
		m.cacheSwept,
		m.tokenRefreshes,
		m.upstream,
		m.httpRequests,
		m.httpDuration,
		m.releases,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Hit() {
	if m != nil {
		m.cacheEvents.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) Miss() {
	if m != nil {
		m.cacheEvents.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) Expire() {
	if m != nil {
		m.cacheEvents.WithLabelValues("expire").Inc()
	}
}

func (m *Metrics) Sweep(removed int) {
	if m != nil {
		m.cacheSwept.Add(float64(removed))
	}
}

// TokenRefresh counts a credential exchange.
func (m *Metrics) TokenRefresh(trigger string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.tokenRefreshes.WithLabelValues(trigger, result).Inc()
}

// UpstreamRequest observes one collaborator call. Status 0 means the request never got a response.
func (m *Metrics) UpstreamRequest(service string, status int, elapsed time.Duration) {
	if m != nil {
		m.upstream.WithLabelValues(service, strconv.Itoa(status)).Observe(elapsed.Seconds())
	}
}

// HTTPRequest observes one served request.
func (m *Metrics) HTTPRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// CachedReleases records the size of the listing just stored.
func (m *Metrics) CachedReleases(n int) {
	if m != nil {
		m.releases.Set(float64(n))
	}
}
