package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/intelligrit/durian-map/internal/discovery"
	"github.com/intelligrit/durian-map/internal/geo"
	"github.com/intelligrit/durian-map/internal/logging"
	"github.com/intelligrit/durian-map/internal/metrics"
	"github.com/intelligrit/durian-map/internal/model"
	"github.com/intelligrit/durian-map/internal/routing"
	"github.com/intelligrit/durian-map/internal/store"
)

type straightRouter struct{}

func (straightRouter) Route(_ context.Context, wps []geo.LatLng) (*routing.Route, error) {
	return &routing.Route{Path: wps, Stats: routing.Stats{DistanceKm: 42, ETAMinutes: 75}}, nil
}

func testServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	dir := filepath.Join(os.TempDir(), "durian-map-web-test-"+t.Name())
	os.RemoveAll(dir)
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := store.New(dir)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	orchards := []model.Orchard{
		{ID: 1, OwnerID: "u1", Name: "A", Address: "Chanthaburi", Lat: 13.0, Lng: 100.0, Types: []model.OrchardType{model.TypeSell}, Status: model.StatusAvailable},
		{ID: 2, OwnerID: "u2", Name: "B", Address: "Rayong", Lat: 13.1, Lng: 100.1, Types: []model.OrchardType{model.TypeSell, model.TypeTour}, Status: model.StatusLow},
		{ID: 3, OwnerID: "u1", Name: "C", Address: "Trat", Lat: 14.0, Lng: 101.0, Types: []model.OrchardType{model.TypeCafe}, Status: model.StatusOut},
	}
	if err := s.WriteOrchards(context.Background(), orchards, time.Now()); err != nil {
		t.Fatalf("writing orchards: %v", err)
	}

	srv := &Server{
		Source:   s,
		Router:   straightRouter{},
		Metrics:  metrics.New(),
		Logger:   logging.Discard(),
		Addr:     "localhost:0",
		Debounce: 10 * time.Millisecond,
	}
	t.Cleanup(srv.CloseAll)
	h, err := srv.Handler()
	if err != nil {
		t.Fatalf("building handler: %v", err)
	}
	return srv, h
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) stateResponse {
	t.Helper()
	var st stateResponse
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("decoding state: %v", err)
	}
	return st
}

func TestHandleOrchards(t *testing.T) {
	_, h := testServer(t)

	tests := []struct {
		name  string
		query string
		want  []int64
	}{
		{"all", "", []int64{1, 2, 3}},
		{"type AND", "?type=sell&type=tour", []int64{2}},
		{"search", "?q=TRAT", []int64{3}},
		{"nearest", "?sort=nearest&near=14,101", []int64{3, 2, 1}},
		{"nearest without point", "?sort=nearest", []int64{1, 2, 3}},
		{"owner", "?owner=u1", []int64{1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, "GET", "/api/orchards"+tt.query, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
			}
			var list []model.Orchard
			if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
				t.Fatalf("decoding: %v", err)
			}
			if len(list) != len(tt.want) {
				t.Fatalf("expected %v, got %d orchards", tt.want, len(list))
			}
			for i, id := range tt.want {
				if list[i].ID != id {
					t.Errorf("position %d: expected %d, got %d", i, id, list[i].ID)
				}
			}
		})
	}
}

func TestHandleOrchardsBadInput(t *testing.T) {
	_, h := testServer(t)
	for _, q := range []string{"?type=durian", "?sort=far", "?near=abc"} {
		if w := do(t, h, "GET", "/api/orchards"+q, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestHandleOrchard(t *testing.T) {
	_, h := testServer(t)
	w := do(t, h, "GET", "/api/orchards/2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var o model.Orchard
	json.NewDecoder(w.Body).Decode(&o)
	if o.Name != "B" {
		t.Errorf("expected B, got %q", o.Name)
	}
	if w := do(t, h, "GET", "/api/orchards/99", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestSessionFlow(t *testing.T) {
	_, h := testServer(t)

	w := do(t, h, "POST", "/api/sessions", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body)
	}
	st := decodeState(t, w)
	if st.ID == "" || len(st.Orchards) != 3 {
		t.Fatalf("expected new session with 3 orchards, got %+v", st.State)
	}
	base := "/api/sessions/" + st.ID

	st = decodeState(t, do(t, h, "POST", base+"/route-mode", nil))
	if !st.Route.Active {
		t.Fatal("expected route mode")
	}
	for _, id := range []int64{3, 1} {
		st = decodeState(t, do(t, h, "POST", base+"/select", map[string]any{"id": id}))
	}
	if len(st.Route.IDs) != 2 || st.Route.IDs[0] != 3 {
		t.Fatalf("expected route [3 1], got %v", st.Route.IDs)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(st.Route.Path) == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
		st = decodeState(t, do(t, h, "GET", base, nil))
	}
	if st.Route.Stats.DistanceKm != 42 {
		t.Fatalf("expected resolved route, got %+v", st.Route)
	}

	w = do(t, h, "GET", base+"/route.geojson", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"LineString"`) {
		t.Errorf("expected LineString feature, got %d %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), `"stop":2`) {
		t.Errorf("expected numbered stops, got %s", w.Body)
	}

	if w := do(t, h, "DELETE", base, nil); w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if w := do(t, h, "GET", base, nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after close, got %d", w.Code)
	}
}

func TestSessionActions(t *testing.T) {
	_, h := testServer(t)
	st := decodeState(t, do(t, h, "POST", "/api/sessions", nil))
	base := "/api/sessions/" + st.ID

	st = decodeState(t, do(t, h, "POST", base+"/viewport", map[string]any{"width": 390}))
	if !st.Layout.Narrow {
		t.Error("expected narrow layout")
	}
	st = decodeState(t, do(t, h, "POST", base+"/view", map[string]any{"mode": "list"}))
	if st.Layout.ShowMap {
		t.Error("expected list only")
	}
	st = decodeState(t, do(t, h, "POST", base+"/select", map[string]any{"id": 2}))
	if st.Selected == nil || st.Layout.Detail != "bottomSheet" || st.Layout.Mode != "map" {
		t.Errorf("expected bottom sheet on map, got %+v", st.Layout)
	}
	if len(st.Camera) != 1 {
		t.Errorf("expected one camera move, got %d", len(st.Camera))
	}
	st = decodeState(t, do(t, h, "POST", base+"/dismiss", nil))
	if st.Selected != nil {
		t.Error("expected selection cleared")
	}

	st = decodeState(t, do(t, h, "POST", base+"/search", map[string]any{"query": "rayong"}))
	if len(st.Orchards) != 1 {
		t.Errorf("expected 1 result, got %d", len(st.Orchards))
	}
	st = decodeState(t, do(t, h, "POST", base+"/reset", nil))
	if len(st.Orchards) != 3 {
		t.Errorf("expected reset list, got %d", len(st.Orchards))
	}

	// Nearest without a location: the server has no locator, so the
	// filter sheet reports the locate failure and keeps default sort.
	st = decodeState(t, do(t, h, "POST", base+"/filters", map[string]any{"sortMode": "nearest", "types": []string{"sell"}}))
	if st.Message == "" || st.Filters.SortMode != discovery.SortDefault || len(st.Orchards) != 2 {
		t.Errorf("expected locate failure with types applied, got %+v", st)
	}

	st = decodeState(t, do(t, h, "POST", base+"/location", map[string]any{"kind": "explicit", "lat": 14.0, "lng": 101.0}))
	if st.UserLocation == nil || !st.AutoCentered {
		t.Error("expected location accepted")
	}

	if w := do(t, h, "POST", base+"/view", map[string]any{"mode": "grid"}); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad mode, got %d", w.Code)
	}
	if w := do(t, h, "POST", base+"/teleport", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown action, got %d", w.Code)
	}
	if w := do(t, h, "POST", "/api/sessions/nope/reset", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", w.Code)
	}
}

func TestMetaAndMetrics(t *testing.T) {
	_, h := testServer(t)
	w := do(t, h, "GET", "/api/meta", nil)
	if !strings.Contains(w.Body.String(), `"routeMarkerColor":"#2563eb"`) {
		t.Errorf("unexpected meta: %s", w.Body)
	}

	do(t, h, "POST", "/api/sessions", nil)
	w = do(t, h, "GET", "/metrics", nil)
	if !strings.Contains(w.Body.String(), "durianmap_sessions_active 1") {
		t.Errorf("expected active session gauge, got:\n%s", w.Body)
	}
	if !strings.Contains(w.Body.String(), "durianmap_loading_busy 0") {
		t.Errorf("expected idle loading gauge after the load finished, got:\n%s", w.Body)
	}
}

func TestStaticIndex(t *testing.T) {
	_, h := testServer(t)
	w := do(t, h, "GET", "/", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "leaflet") {
		t.Errorf("expected index page, got %d", w.Code)
	}
}

func TestIdleSessionsExpire(t *testing.T) {
	srv, h := testServer(t)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return now }
	srv.SessionTTL = 30 * time.Minute

	idle := decodeState(t, do(t, h, "POST", "/api/sessions", nil)).ID
	active := decodeState(t, do(t, h, "POST", "/api/sessions", nil)).ID

	now = now.Add(20 * time.Minute)
	if w := do(t, h, "GET", "/api/sessions/"+active, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	now = now.Add(20 * time.Minute)
	fresh := decodeState(t, do(t, h, "POST", "/api/sessions", nil)).ID

	if w := do(t, h, "GET", "/api/sessions/"+idle, nil); w.Code != http.StatusNotFound {
		t.Errorf("expected idle session to be closed, got %d", w.Code)
	}
	for _, id := range []string{active, fresh} {
		if w := do(t, h, "GET", "/api/sessions/"+id, nil); w.Code != http.StatusOK {
			t.Errorf("session %s: expected 200, got %d", id, w.Code)
		}
	}

	w := do(t, h, "GET", "/metrics", nil)
	if !strings.Contains(w.Body.String(), "durianmap_sessions_active 2") {
		t.Errorf("expected expired session to leave the gauge, got:\n%s", w.Body)
	}
}

func TestFilterSheetUsesReportedLocation(t *testing.T) {
	_, h := testServer(t)
	base := "/api/sessions/" + decodeState(t, do(t, h, "POST", "/api/sessions", nil)).ID

	// The page reports the browser fix first; the server has no locator.
	do(t, h, "POST", base+"/location", map[string]any{"kind": "explicit", "lat": 14.0, "lng": 101.0})
	st := decodeState(t, do(t, h, "POST", base+"/filters", map[string]any{"sortMode": "nearest"}))
	if st.Message != "" {
		t.Fatalf("expected no locate attempt, got message %q", st.Message)
	}
	if st.Filters.SortMode != discovery.SortNearest {
		t.Fatalf("expected nearest sort, got %v", st.Filters.SortMode)
	}
	if st.Orchards[0].ID != 3 || st.Orchards[2].ID != 1 {
		t.Errorf("expected order by distance from 14,101, got %d %d %d",
			st.Orchards[0].ID, st.Orchards[1].ID, st.Orchards[2].ID)
	}

	// A failed browser fix is reported and the page keeps the old sort.
	base2 := "/api/sessions/" + decodeState(t, do(t, h, "POST", "/api/sessions", nil)).ID
	st = decodeState(t, do(t, h, "POST", base2+"/location", map[string]any{"kind": "explicit", "error": "denied"}))
	if st.Message == "" {
		t.Error("expected user-facing message for denied fix")
	}
	st = decodeState(t, do(t, h, "POST", base2+"/filters", map[string]any{"sortMode": "default", "types": []string{"cafe"}}))
	if st.Message != "" || len(st.Orchards) != 1 {
		t.Errorf("expected types applied without a locate attempt, got %+v", st)
	}
}
