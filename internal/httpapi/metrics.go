package httpapi

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the server. It also observes
// selection controllers.
type Metrics struct {
	registry *prometheus.Registry

	Requests       *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	FetchErrors    *prometheus.CounterVec
	StaleDiscards  prometheus.Counter
	ActiveSessions prometheus.Gauge
}

// NewMetrics creates and registers collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockpicks_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockpicks_upstream_fetch_seconds",
			Help:    "Upstream catalog and snapshot fetch latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockpicks_upstream_fetch_errors_total",
			Help: "Failed upstream fetches.",
		}, []string{"kind"}),
		StaleDiscards: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockpicks_stale_snapshots_discarded_total",
			Help: "Snapshot results dropped because the selection had moved on.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockpicks_active_sessions",
			Help: "Open websocket and gRPC sessions.",
		}),
	}
	m.registry.MustRegister(m.Requests, m.FetchDuration, m.FetchErrors, m.StaleDiscards, m.ActiveSessions)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// FetchDone records an upstream fetch.
func (m *Metrics) FetchDone(kind string, err error, elapsed time.Duration) {
	m.FetchDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if err != nil {
		m.FetchErrors.WithLabelValues(kind).Inc()
	}
}

// StaleDiscarded counts a dropped out-of-date snapshot result.
func (m *Metrics) StaleDiscarded() {
	m.StaleDiscards.Inc()
}

// SessionOpened and SessionClosed track live sessions.
func (m *Metrics) SessionOpened() { m.ActiveSessions.Inc() }
func (m *Metrics) SessionClosed() { m.ActiveSessions.Dec() }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer for websocket upgrades.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (m *Metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}
