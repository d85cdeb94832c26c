package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/clinic-service/internal/domain"
)

// Metrics collects service counters in a prometheus registry.
type Metrics struct {
	gatherer        prometheus.Gatherer
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	verifications   *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	sockets         prometheus.Gauge
}

// NewMetrics registers collectors on reg. A nil reg gets a private registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		gatherer: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinic_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clinic_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinic_http_errors_total",
			Help: "HTTP error responses by route, method and error code.",
		}, []string{"route", "method", "code"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinic_token_verifications_total",
			Help: "Token verifications by kind and outcome.",
		}, []string{"kind", "outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinic_token_refreshes_total",
			Help: "Access token refresh attempts by outcome.",
		}, []string{"outcome"}),
		sockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clinic_realtime_connections",
			Help: "Open realtime socket connections.",
		}),
	}
	reg.MustRegister(m.requests, m.requestDuration, m.errors, m.verifications, m.refreshes, m.sockets)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordTokenVerification counts a verification outcome for kind.
func (m *Metrics) RecordTokenVerification(kind domain.TokenKind, outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(string(kind), outcome).Inc()
}

// RecordRefresh counts a refresh-token exchange.
func (m *Metrics) RecordRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

// SocketOpened and SocketClosed track live realtime connections.
func (m *Metrics) SocketOpened() {
	if m == nil {
		return
	}
	m.sockets.Inc()
}

func (m *Metrics) SocketClosed() {
	if m == nil {
		return
	}
	m.sockets.Dec()
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
