package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RouteRequest("ok", time.Second)
	m.RouteStale()
	m.RouteSuperseded()
	m.Geolocation("explicit", "ok")
	m.OrchardFetch("error")
	m.SessionOpened()
	m.SessionClosed()
	m.Loading(true)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for nil metrics, got %d", w.Code)
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.RouteRequest("ok", 120*time.Millisecond)
	m.RouteRequest("cached", 0)
	m.RouteStale()
	m.Loading(true)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`durianmap_route_requests_total{outcome="ok"} 1`,
		`durianmap_route_requests_total{outcome="cached"} 1`,
		`durianmap_route_stale_responses_total 1`,
		`durianmap_loading_busy 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}
