package discovery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/intelligrit/durian-map/internal/backend"
	"github.com/intelligrit/durian-map/internal/camera"
	"github.com/intelligrit/durian-map/internal/geo"
	"github.com/intelligrit/durian-map/internal/geolocate"
	"github.com/intelligrit/durian-map/internal/loading"
	"github.com/intelligrit/durian-map/internal/metrics"
	"github.com/intelligrit/durian-map/internal/model"
	"github.com/intelligrit/durian-map/internal/routing"
	"github.com/intelligrit/durian-map/internal/viewsync"
)

// ErrClosed is returned by every Session method after Close.
var ErrClosed = errors.New("discovery: session closed")

// Options configures a Session.
type Options struct {
	Source  backend.Source
	Router  routing.Router
	Locator geolocate.Locator

	Debounce         time.Duration
	NarrowBreakpoint int

	// Tracker is the application-wide busy indicator. A private one is
	// used when nil.
	Tracker *loading.Tracker
	Metrics *metrics.Metrics
	Logger  log.Logger
	Clock   routing.Clock
}

// Session is one open discovery screen. It owns an Engine and the
// asynchronous collaborators that feed it, and serialises every change.
// Network and geolocation I/O happen outside the lock.
type Session struct {
	ID string

	mu      sync.Mutex
	engine  *Engine
	coord   *geolocate.Coordinator
	planner *routing.Planner
	camera  *camera.Recorder
	tracker *loading.Tracker
	source  backend.Source
	metrics *metrics.Metrics
	log     *log.Helper

	loadErr error
	closed  bool
}

// NewSession creates a session. Call Load to fetch the orchards.
func NewSession(id string, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = log.DefaultLogger
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = &loading.Tracker{}
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = routing.DefaultDebounce
	}

	s := &Session{
		ID:      id,
		camera:  &camera.Recorder{},
		tracker: tracker,
		source:  opts.Source,
		metrics: opts.Metrics,
		log:     log.NewHelper(log.With(logger, "session", id)),
	}

	var planner RoutePlanner
	if opts.Router != nil {
		popts := []routing.PlannerOption{
			routing.WithTracker(tracker),
			routing.WithMetrics(opts.Metrics),
		}
		if opts.Clock != nil {
			popts = append(popts, routing.WithClock(opts.Clock))
		}
		s.planner = routing.NewPlanner(opts.Router, debounce, s.deliver, logger, popts...)
		planner = s.planner
	}

	s.engine = NewEngine(planner, s.camera, opts.NarrowBreakpoint, logger)
	s.coord = geolocate.NewCoordinator(opts.Locator, s.engine, opts.Metrics, logger)
	s.metrics.SessionOpened()
	return s
}

func (s *Session) deliver(r routing.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.engine.ApplyRoute(r)
}

// Load fetches the orchard list once. A failure is kept as the session's
// load error and the list stays empty.
func (s *Session) Load(ctx context.Context) error {
	if s.source == nil {
		return errors.New("discovery: no orchard source configured")
	}
	var list []model.Orchard
	err := s.tracker.Track(func() error {
		var err error
		list, err = s.source.List(ctx)
		return err
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err != nil {
		s.loadErr = err
		s.metrics.OrchardFetch("error")
		s.log.Errorf("loading orchards: %v", err)
		return err
	}
	s.metrics.OrchardFetch("ok")
	s.loadErr = nil
	s.engine.SetSource(list)
	s.coord.Recheck()
	return nil
}

// Update applies fn to the engine as one transition.
func (s *Session) Update(fn func(e *Engine)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	fn(s.engine)
	// Route mode may have ended or orchards arrived.
	s.coord.Recheck()
	return nil
}

// Inspect runs fn with read access to the engine.
func (s *Session) Inspect(fn func(e *Engine)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	fn(s.engine)
	return nil
}

// LocateMe is the user's "locate me" action: it closes the detail view,
// takes a high-accuracy fix and flies to it. Failures are returned as
// *geolocate.Error.
func (s *Session) LocateMe(ctx context.Context) (geo.LatLng, error) {
	if err := s.Update(func(e *Engine) { e.ClearSelection() }); err != nil {
		return geo.LatLng{}, err
	}

	fix, err := s.coord.Locate(ctx, geolocate.KindExplicit)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return geo.LatLng{}, ErrClosed
	}
	if err != nil {
		return geo.LatLng{}, err
	}
	s.engine.FlyToLocation(fix)
	s.coord.Accept(fix)
	return fix, nil
}

// InitialFix tries a passive fix for the first map load. Failure is silent.
func (s *Session) InitialFix(ctx context.Context) {
	fix, err := s.coord.Locate(ctx, geolocate.KindPassive)
	if err != nil {
		s.log.Debugf("passive fix unavailable: %v", err)
		return
	}
	s.Update(func(*Engine) { s.coord.Accept(fix) })
}

// ReportLocation accepts a fix, or a failure reason, obtained by the
// client. Explicit failures are returned; passive ones are dropped.
func (s *Session) ReportLocation(kind geolocate.Kind, fix *geo.LatLng, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if fix == nil {
		r := geolocate.ParseReason(reason)
		s.metrics.Geolocation(string(kind), string(r))
		if kind == geolocate.KindExplicit {
			return &geolocate.Error{Reason: r}
		}
		return nil
	}
	s.metrics.Geolocation(string(kind), "ok")
	if kind == geolocate.KindExplicit {
		s.engine.ClearSelection()
		s.engine.FlyToLocation(*fix)
	}
	s.coord.Accept(*fix)
	return nil
}

// ApplyFilterSheet applies the filter sheet. Choosing nearest without a
// known location outside route mode locates first; if that fails the sort
// is left unchanged, the types still apply and the error is returned.
func (s *Session) ApplyFilterSheet(ctx context.Context, sort SortMode, types []model.OrchardType) error {
	var needFix bool
	if err := s.Inspect(func(e *Engine) {
		needFix = sort == SortNearest && e.UserLocation() == nil && !e.InRouteMode()
	}); err != nil {
		return err
	}

	if needFix {
		if _, err := s.LocateMe(ctx); err != nil {
			s.Update(func(e *Engine) { e.SetSelectedTypes(types) })
			return err
		}
	}
	return s.Update(func(e *Engine) {
		e.SetSortMode(sort)
		e.SetSelectedTypes(types)
	})
}

// Close ends the session: the pending lookup is cancelled and any route
// response that arrives later is ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.planner != nil {
		s.planner.Close()
	}
	s.metrics.SessionClosed()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// RouteView is the route part of a State.
type RouteView struct {
	Active      bool          `json:"active"`
	IDs         []int64       `json:"ids"`
	Waypoints   []geo.LatLng  `json:"waypoints"`
	Path        []geo.LatLng  `json:"path"`
	Stats       routing.Stats `json:"stats"`
	Pending     bool          `json:"pending"`
	Error       string        `json:"error,omitempty"`
	NavigateURL string        `json:"navigateUrl,omitempty"`
}

// State is a point-in-time copy of everything the screen renders.
type State struct {
	ID                string           `json:"id"`
	Filters           FilterState      `json:"filters"`
	ActiveFilterCount int              `json:"activeFilterCount"`
	Orchards          []model.Orchard  `json:"orchards"`
	Total             int              `json:"total"`
	Selected          *model.Orchard   `json:"selected,omitempty"`
	UserLocation      *geo.LatLng      `json:"userLocation,omitempty"`
	AutoCentered      bool             `json:"autoCentered"`
	Route             RouteView        `json:"route"`
	Layout            viewsync.Layout  `json:"layout"`
	Loading           bool             `json:"loading"`
	LoadError         string           `json:"loadError,omitempty"`
	Camera            []camera.Command `json:"camera"`
}

// Snapshot copies the current state and drains queued camera commands.
func (s *Session) Snapshot() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return State{}, ErrClosed
	}
	e := s.engine

	st := State{
		ID:                s.ID,
		Filters:           e.Filters(),
		ActiveFilterCount: e.Filters().ActiveCount(),
		Orchards:          append([]model.Orchard{}, e.Visible()...),
		Total:             len(e.Source()),
		UserLocation:      e.UserLocation(),
		AutoCentered:      s.coord.AutoCentered(),
		Layout:            e.Layout(),
		Loading:           s.tracker.Busy(),
		Camera:            s.camera.Drain(),
		Route: RouteView{
			Active:      e.InRouteMode(),
			IDs:         e.RouteIDs(),
			Waypoints:   e.Waypoints(),
			Path:        append([]geo.LatLng{}, e.RoutePath()...),
			Stats:       e.RouteStats(),
			NavigateURL: e.GoogleMapsURL(),
		},
	}
	if id := e.Selected(); id != nil {
		if o, ok := e.Orchard(*id); ok {
			cp := *o
			st.Selected = &cp
		}
	}
	if st.Camera == nil {
		st.Camera = []camera.Command{}
	}
	if s.planner != nil {
		st.Route.Pending = s.planner.Pending()
	}
	if err := e.RouteErr(); err != nil {
		st.Route.Error = err.Error()
	}
	if s.loadErr != nil {
		st.LoadError = s.loadErr.Error()
	}
	return st, nil
}
