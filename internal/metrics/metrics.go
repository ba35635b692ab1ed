// Package metrics exposes Prometheus collectors for HTTP traffic, the energy
// ledger and resonance readings.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dreamcatcher/internal/domain"
)

const namespace = "dreamcatcher"

// Metrics owns a registry and the service collectors. It implements
// ledger.Observer.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	credited *prometheus.CounterVec
	consumed *prometheus.CounterVec
	refused  *prometheus.CounterVec
	expired  *prometheus.CounterVec
	readings *prometheus.CounterVec
	cleanups *prometheus.CounterVec
}

// New registers all collectors, including process and Go runtime ones, on a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
		credited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "energy",
			Name:      "credited_total",
			Help:      "Energy credited, by source and reason.",
		}, []string{"source", "kind"}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "energy",
			Name:      "consumed_total",
			Help:      "Energy consumed, by action.",
		}, []string{"action"}),
		refused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "energy",
			Name:      "refused_total",
			Help:      "Ledger operations refused, by reason.",
		}, []string{"reason"}),
		expired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "energy",
			Name:      "expired_total",
			Help:      "Expired lots and energy swept.",
		}, []string{"unit"}),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resonance",
			Name:      "readings_total",
			Help:      "Resonance readings served, by variant, mode and vibe.",
		}, []string{"variant", "mode", "vibe"}),
		cleanups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "energy",
			Name:      "cleanup_runs_total",
			Help:      "Scheduled cleanup runs, by outcome.",
		}, []string{"success"}),
	}
	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.credited,
		m.consumed,
		m.refused,
		m.expired,
		m.readings,
		m.cleanups,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Credited(source domain.EnergySource, kind domain.HistoryType, amount int) {
	m.credited.WithLabelValues(string(source), string(kind)).Add(float64(amount))
}

func (m *Metrics) Consumed(action domain.HistoryType, amount int) {
	m.consumed.WithLabelValues(string(action)).Add(float64(amount))
}

func (m *Metrics) Refused(reason string) {
	m.refused.WithLabelValues(reason).Inc()
}

func (m *Metrics) Expired(lots, amount int) {
	m.expired.WithLabelValues("lots").Add(float64(lots))
	m.expired.WithLabelValues("energy").Add(float64(amount))
}

// Reading counts a served resonance reading.
func (m *Metrics) Reading(variant, mode, vibe string) {
	m.readings.WithLabelValues(variant, mode, vibe).Inc()
}

// Cleanup counts a scheduled cleanup run.
func (m *Metrics) Cleanup(success bool) {
	m.cleanups.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// Instrument records request counts and latency labelled by chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		method := strings.ToUpper(r.Method)
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
