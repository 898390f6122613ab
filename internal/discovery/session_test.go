package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/intelligrit/durian-map/internal/geo"
	"github.com/intelligrit/durian-map/internal/geolocate"
	"github.com/intelligrit/durian-map/internal/loading"
	"github.com/intelligrit/durian-map/internal/logging"
	"github.com/intelligrit/durian-map/internal/model"
	"github.com/intelligrit/durian-map/internal/routing"
)

type manualTimer struct {
	clock   *manualClock
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// manualClock fires timers only when told to.
type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (c *manualClock) AfterFunc(_ time.Duration, f func()) routing.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) FireAll() {
	c.mu.Lock()
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	c.timers = nil
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

type staticSource struct {
	list []model.Orchard
	err  error
}

func (s staticSource) List(context.Context) ([]model.Orchard, error) { return s.list, s.err }
func (s staticSource) Get(_ context.Context, id int64) (*model.Orchard, error) {
	for i := range s.list {
		if s.list[i].ID == id {
			return &s.list[i], nil
		}
	}
	return nil, nil
}
func (s staticSource) ListByOwner(context.Context, string) ([]model.Orchard, error) {
	return nil, nil
}

type countingRouter struct {
	mu    sync.Mutex
	calls [][]geo.LatLng
	err   error
}

func (r *countingRouter) Route(_ context.Context, wps []geo.LatLng) (*routing.Route, error) {
	r.mu.Lock()
	r.calls = append(r.calls, wps)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return &routing.Route{Path: wps, Stats: routing.Stats{DistanceKm: 12.5, ETAMinutes: 18}}, nil
}

type sessionFixture struct {
	session *Session
	clock   *manualClock
	router  *countingRouter
	locator *scriptedLocator
}

type scriptedLocator struct {
	fix *geo.LatLng
	err error
}

func (l *scriptedLocator) Locate(context.Context, geolocate.Options) (geo.LatLng, error) {
	if l.err != nil {
		return geo.LatLng{}, l.err
	}
	if l.fix == nil {
		return geo.LatLng{}, geolocate.ErrUnavailable
	}
	return *l.fix, nil
}

func newSession(t *testing.T, src staticSource) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		clock:   &manualClock{},
		router:  &countingRouter{},
		locator: &scriptedLocator{},
	}
	f.session = NewSession("test", Options{
		Source:  src,
		Router:  f.router,
		Locator: f.locator,
		Logger:  logging.Discard(),
		Clock:   f.clock,
	})
	t.Cleanup(f.session.Close)
	if err := f.session.Load(context.Background()); err != nil && src.err == nil {
		t.Fatalf("loading: %v", err)
	}
	return f
}

func snapshot(t *testing.T, s *Session) State {
	t.Helper()
	st, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return st
}

func TestSessionRouteLifecycle(t *testing.T) {
	f := newSession(t, staticSource{list: abc()})
	s := f.session

	s.Update(func(e *Engine) {
		e.ToggleRouteMode()
		e.ToggleOrchardSelection(3)
		e.ToggleOrchardSelection(1)
		e.ToggleOrchardSelection(2)
	})
	if st := snapshot(t, s); !st.Route.Pending || len(f.router.calls) != 0 {
		t.Fatal("expected a pending, not yet issued, lookup")
	}

	f.clock.FireAll()

	if len(f.router.calls) != 1 {
		t.Fatalf("expected exactly one lookup, got %d", len(f.router.calls))
	}
	if got := f.router.calls[0]; len(got) != 3 || got[0] != geo.Pt(14.0, 101.0) {
		t.Errorf("expected waypoints C,A,B, got %v", got)
	}
	st := snapshot(t, s)
	if st.Route.Stats.DistanceKm != 12.5 || len(st.Route.Path) != 3 || st.Route.Pending {
		t.Errorf("expected resolved route, got %+v", st.Route)
	}
	if !equalIDs(st.Route.IDs, []int64{3, 1, 2}) {
		t.Errorf("expected [3 1 2], got %v", st.Route.IDs)
	}
	if st.Route.NavigateURL == "" {
		t.Error("expected a navigation link")
	}
}

func TestSessionRoutingFailureIsSoft(t *testing.T) {
	f := newSession(t, staticSource{list: abc()})
	f.router.err = &routing.StatusError{Code: "NoRoute"}

	f.session.Update(func(e *Engine) {
		e.ToggleRouteMode()
		e.ToggleOrchardSelection(1)
		e.ToggleOrchardSelection(2)
	})
	f.clock.FireAll()

	st := snapshot(t, f.session)
	if len(st.Route.Path) != 0 || st.Route.Stats != (routing.Stats{}) {
		t.Errorf("expected empty route after failure, got %+v", st.Route)
	}
	if st.Route.Error == "" {
		t.Error("expected route error reported")
	}
	if !st.Route.Active || len(st.Route.IDs) != 2 {
		t.Error("failure must not disturb route selection")
	}
}

func TestSessionCloseDropsPendingLookup(t *testing.T) {
	f := newSession(t, staticSource{list: abc()})
	f.session.Update(func(e *Engine) {
		e.ToggleRouteMode()
		e.ToggleOrchardSelection(1)
		e.ToggleOrchardSelection(2)
	})
	f.session.Close()
	f.clock.FireAll()

	if len(f.router.calls) != 0 {
		t.Errorf("expected no lookup after close, got %d", len(f.router.calls))
	}
	if _, err := f.session.Snapshot(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if err := f.session.Update(func(*Engine) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestSessionLoadFailure(t *testing.T) {
	f := newSession(t, staticSource{err: errors.New("backend down")})
	st := snapshot(t, f.session)
	if st.LoadError == "" {
		t.Error("expected load error")
	}
	if len(st.Orchards) != 0 || st.Loading {
		t.Errorf("expected empty idle list, got %d loading=%v", len(st.Orchards), st.Loading)
	}
}

func TestSessionLocateMe(t *testing.T) {
	f := newSession(t, staticSource{list: abc()})
	fix := geo.Pt(13.95, 100.95)
	f.locator.fix = &fix

	f.session.Update(func(e *Engine) { e.ToggleOrchardSelection(1) })
	snapshot(t, f.session) // drain selection camera move

	got, err := f.session.LocateMe(context.Background())
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if got != fix {
		t.Errorf("expected %v, got %v", fix, got)
	}

	st := snapshot(t, f.session)
	if st.Selected != nil {
		t.Error("locate must close the detail view")
	}
	if st.UserLocation == nil || *st.UserLocation != fix || !st.AutoCentered {
		t.Errorf("expected location accepted and auto-centred, got %+v", st)
	}
	if len(st.Camera) != 2 || st.Camera[0].Zoom != LocateZoom || st.Camera[1].Zoom != AutoCenterZoom {
		t.Errorf("expected fly to fix then to nearest orchard, got %+v", st.Camera)
	}
}

func TestSessionLocateMeFailure(t *testing.T) {
	f := newSession(t, staticSource{list: abc()})
	f.locator.err = geolocate.ErrDenied

	_, err := f.session.LocateMe(context.Background())
	if !errors.Is(err, geolocate.ErrDenied) {
		t.Errorf("expected ErrDenied, got %v", err)
	}
	if st := snapshot(t, f.session); st.UserLocation != nil {
		t.Error("failed locate must not set a location")
	}
}

func TestApplyFilterSheetLocatesFirst(t *testing.T) {
	f := newSession(t, staticSource{list: abc()})
	f.locator.err = geolocate.ErrTimeout

	types := []model.OrchardType{model.TypeSell}
	err := f.session.ApplyFilterSheet(context.Background(), SortNearest, types)
	if !errors.Is(err, geolocate.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	st := snapshot(t, f.session)
	if st.Filters.SortMode != SortDefault {
		t.Error("sort must not flip when locating fails")
	}
	if len(st.Filters.SelectedTypes) != 1 || len(st.Orchards) != 2 {
		t.Errorf("types must still apply, got %+v", st.Filters)
	}

	fix := geo.Pt(14.0, 101.0)
	f.locator.err = nil
	f.locator.fix = &fix
	if err := f.session.ApplyFilterSheet(context.Background(), SortNearest, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	st = snapshot(t, f.session)
	if st.Filters.SortMode != SortNearest || !equalIDs(ids(st.Orchards), []int64{3, 2, 1}) {
		t.Errorf("expected nearest order from fix, got %v", ids(st.Orchards))
	}
	if st.ActiveFilterCount != 1 {
		t.Errorf("expected 1 active filter, got %d", st.ActiveFilterCount)
	}
}

func TestInitialFixSilentAndLatched(t *testing.T) {
	f := newSession(t, staticSource{list: abc()})
	f.locator.err = geolocate.ErrDenied
	f.session.InitialFix(context.Background())
	if st := snapshot(t, f.session); st.UserLocation != nil || st.LoadError != "" {
		t.Error("failed passive fix must leave no trace")
	}

	f.locator.err = nil
	fix := geo.Pt(13.0, 100.0)
	f.locator.fix = &fix
	f.session.Update(func(e *Engine) { e.ToggleRouteMode() })
	f.session.InitialFix(context.Background())
	if st := snapshot(t, f.session); st.AutoCentered {
		t.Error("must not auto-centre in route mode")
	}

	f.session.Update(func(e *Engine) { e.ToggleRouteMode() })
	st := snapshot(t, f.session)
	if !st.AutoCentered {
		t.Error("expected auto-centre once route mode ends")
	}
}

func TestReportLocation(t *testing.T) {
	f := newSession(t, staticSource{list: abc()})
	err := f.session.ReportLocation(geolocate.KindExplicit, nil, "denied")
	if !errors.Is(err, geolocate.ErrDenied) {
		t.Errorf("expected ErrDenied, got %v", err)
	}
	if err := f.session.ReportLocation(geolocate.KindPassive, nil, "timeout"); err != nil {
		t.Errorf("passive failure must be silent, got %v", err)
	}
	fix := geo.Pt(13.1, 100.1)
	if err := f.session.ReportLocation(geolocate.KindPassive, &fix, ""); err != nil {
		t.Fatalf("report: %v", err)
	}
	if st := snapshot(t, f.session); st.UserLocation == nil || !st.AutoCentered {
		t.Error("expected reported fix accepted")
	}
}

func TestSharedTrackerBusyDuringLookup(t *testing.T) {
	tracker := &loading.Tracker{}
	release := make(chan struct{})
	started := make(chan struct{})
	router := routerFunc(func(ctx context.Context, wps []geo.LatLng) (*routing.Route, error) {
		close(started)
		<-release
		return &routing.Route{Path: wps}, nil
	})
	clock := &manualClock{}
	s := NewSession("busy", Options{
		Source:  staticSource{list: abc()},
		Router:  router,
		Tracker: tracker,
		Clock:   clock,
		Logger:  logging.Discard(),
	})
	t.Cleanup(s.Close)
	s.Load(context.Background())
	s.Update(func(e *Engine) {
		e.ToggleRouteMode()
		e.ToggleOrchardSelection(1)
		e.ToggleOrchardSelection(2)
	})

	done := make(chan struct{})
	go func() {
		clock.FireAll()
		close(done)
	}()
	<-started
	if !tracker.Busy() {
		t.Error("expected busy while the lookup runs")
	}
	close(release)
	<-done
	if tracker.Busy() {
		t.Error("expected idle after the lookup")
	}
}

type routerFunc func(ctx context.Context, wps []geo.LatLng) (*routing.Route, error)

func (f routerFunc) Route(ctx context.Context, wps []geo.LatLng) (*routing.Route, error) {
	return f(ctx, wps)
}
