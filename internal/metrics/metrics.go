// Package metrics exposes Prometheus collectors for the discovery service.
// Every method is safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors and the registry they are registered on.
type Metrics struct {
	registry *prometheus.Registry

	routeRequests   *prometheus.CounterVec
	routeLatency    prometheus.Histogram
	routeSuperseded prometheus.Counter
	routeStale      prometheus.Counter
	geolocation     *prometheus.CounterVec
	orchardFetches  *prometheus.CounterVec
	sessions        prometheus.Gauge
	busy            prometheus.Gauge
}

// New creates and registers all collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		routeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "durianmap",
			Name:      "route_requests_total",
			Help:      "Routing service lookups by outcome (ok, error, cached).",
		}, []string{"outcome"}),
		routeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "durianmap",
			Name:      "route_request_seconds",
			Help:      "Routing service round-trip time.",
			Buckets:   prometheus.DefBuckets,
		}),
		routeSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "durianmap",
			Name:      "route_debounce_superseded_total",
			Help:      "Scheduled route lookups replaced before they fired.",
		}),
		routeStale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "durianmap",
			Name:      "route_stale_responses_total",
			Help:      "Route responses discarded because a newer request replaced them.",
		}),
		geolocation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "durianmap",
			Name:      "geolocation_fixes_total",
			Help:      "Geolocation attempts by kind (explicit, passive) and outcome.",
		}, []string{"kind", "outcome"}),
		orchardFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "durianmap",
			Name:      "orchard_fetches_total",
			Help:      "Orchard list loads by outcome.",
		}, []string{"outcome"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "durianmap",
			Name:      "sessions_active",
			Help:      "Open discovery sessions.",
		}),
		busy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "durianmap",
			Name:      "loading_busy",
			Help:      "1 while any fetch or route lookup is pending, else 0.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		m.routeRequests,
		m.routeLatency,
		m.routeSuperseded,
		m.routeStale,
		m.geolocation,
		m.orchardFetches,
		m.sessions,
		m.busy,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RouteRequest(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.routeRequests.WithLabelValues(outcome).Inc()
	if outcome != "cached" {
		m.routeLatency.Observe(took.Seconds())
	}
}

func (m *Metrics) RouteSuperseded() {
	if m == nil {
		return
	}
	m.routeSuperseded.Inc()
}

func (m *Metrics) RouteStale() {
	if m == nil {
		return
	}
	m.routeStale.Inc()
}

func (m *Metrics) Geolocation(kind, outcome string) {
	if m == nil {
		return
	}
	m.geolocation.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) OrchardFetch(outcome string) {
	if m == nil {
		return
	}
	m.orchardFetches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

// Loading mirrors the shared busy indicator.
func (m *Metrics) Loading(busy bool) {
	if m == nil {
		return
	}
	if busy {
		m.busy.Set(1)
	} else {
		m.busy.Set(0)
	}
}
