package discovery

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/intelligrit/durian-map/internal/camera"
	"github.com/intelligrit/durian-map/internal/geo"
	"github.com/intelligrit/durian-map/internal/model"
	"github.com/intelligrit/durian-map/internal/routing"
	"github.com/intelligrit/durian-map/internal/viewsync"
)

// Camera moves issued by the engine.
const (
	SelectZoom        = 14
	LocateZoom        = 13
	AutoCenterZoom    = 10
	RouteFitPaddingPx = 50

	// NarrowSelectOffset moves the camera south so the marker sits above
	// the bottom sheet; WideSelectOffset moves it north to leave room for
	// the popup.
	NarrowSelectOffset = -0.03
	WideSelectOffset   = 0.025

	flyDuration = 1500 * time.Millisecond
	fitDuration = time.Second
)

// RoutePlanner receives waypoint changes. routing.Planner implements it.
type RoutePlanner interface {
	Plan(gen uint64, waypoints []geo.LatLng)
	Cancel()
}

// Engine is the discovery state machine. It is not safe for concurrent
// use; Session serialises access.
type Engine struct {
	source []model.Orchard
	index  map[int64]int

	filters      FilterState
	userLocation *geo.LatLng
	selected     *int64

	routeMode  bool
	routeIDs   []int64
	routePath  []geo.LatLng
	routeStats routing.Stats
	routeErr   error
	routeGen   uint64

	view          *viewsync.Machine
	viewportWidth int
	breakpoint    int

	planner RoutePlanner
	camera  camera.Camera
	log     *log.Helper

	version     uint64
	memo        []model.Orchard
	memoVersion uint64
	memoValid   bool
}

// NewEngine creates an engine with an empty source list. planner and cam
// may be nil.
func NewEngine(planner RoutePlanner, cam camera.Camera, breakpoint int, logger log.Logger) *Engine {
	return &Engine{
		index:      map[int64]int{},
		view:       viewsync.NewMachine(),
		breakpoint: breakpoint,
		planner:    planner,
		camera:     cam,
		log:        log.NewHelper(logger),
	}
}

func (e *Engine) touch() {
	e.version++
}

// SetSource replaces the orchard list. Route stops and the selection that
// no longer resolve are dropped.
func (e *Engine) SetSource(list []model.Orchard) {
	e.source = list
	e.index = make(map[int64]int, len(list))
	for i, o := range list {
		if _, dup := e.index[o.ID]; !dup {
			e.index[o.ID] = i
		}
	}
	if e.selected != nil && !e.known(*e.selected) {
		e.selected = nil
	}
	var kept []int64
	for _, id := range e.routeIDs {
		if e.known(id) {
			kept = append(kept, id)
		}
	}
	e.routeIDs = kept
	e.touch()
	if e.routeMode {
		e.replan()
	}
}

// Source returns the full orchard list.
func (e *Engine) Source() []model.Orchard {
	return e.source
}

// Orchard looks up an orchard by id.
func (e *Engine) Orchard(id int64) (*model.Orchard, bool) {
	i, ok := e.index[id]
	if !ok {
		return nil, false
	}
	return &e.source[i], true
}

func (e *Engine) known(id int64) bool {
	_, ok := e.index[id]
	return ok
}

// Visible returns the filtered, sorted orchard list. It is recomputed only
// when an input changed since the last call. Callers must not modify it.
func (e *Engine) Visible() []model.Orchard {
	if !e.memoValid || e.memoVersion != e.version {
		ref := ReferencePoint(e.filters.SortMode, e.routeMode, e.Waypoints(), e.userLocation)
		e.memo = Derive(e.source, e.filters, ref)
		e.memoVersion = e.version
		e.memoValid = true
	}
	return e.memo
}

// Filters returns a copy of the filter state.
func (e *Engine) Filters() FilterState {
	f := e.filters
	f.SelectedTypes = append([]model.OrchardType(nil), f.SelectedTypes...)
	return f
}

// SetSelectedTypes replaces the type filter. Duplicates are ignored.
func (e *Engine) SetSelectedTypes(types []model.OrchardType) {
	var set []model.OrchardType
	seen := map[model.OrchardType]bool{}
	for _, t := range types {
		if !seen[t] {
			seen[t] = true
			set = append(set, t)
		}
	}
	e.filters.SelectedTypes = set
	e.touch()
}

func (e *Engine) SetSearchQuery(q string) {
	e.filters.SearchQuery = q
	e.touch()
}

func (e *Engine) SetSortMode(m SortMode) {
	e.filters.SortMode = m
	e.touch()
}

// ResetAllFilters clears search, type filter and sort.
func (e *Engine) ResetAllFilters() {
	e.filters = FilterState{}
	e.touch()
}

// UserLocation returns the last accepted position fix.
func (e *Engine) UserLocation() *geo.LatLng {
	return e.userLocation
}

// SetUserLocation records a position fix.
func (e *Engine) SetUserLocation(p geo.LatLng) {
	e.userLocation = &p
	e.touch()
}

// InRouteMode reports whether taps build a route.
func (e *Engine) InRouteMode() bool {
	return e.routeMode
}

// CenterOnNearest flies to the orchard nearest from. It returns false when
// there are no orchards yet.
func (e *Engine) CenterOnNearest(from geo.LatLng) bool {
	pts := make([]geo.LatLng, len(e.source))
	for i, o := range e.source {
		pts[i] = geo.Pt(o.Lat, o.Lng)
	}
	idx, ok := geo.Nearest(from, pts)
	if !ok {
		return false
	}
	e.flyTo(pts[idx], AutoCenterZoom, flyDuration)
	return true
}

// FlyToLocation centres the camera on a fresh "locate me" fix.
func (e *Engine) FlyToLocation(p geo.LatLng) {
	e.flyTo(p, LocateZoom, flyDuration)
}

// Selected returns the selected orchard id.
func (e *Engine) Selected() *int64 {
	return e.selected
}

// ToggleOrchardSelection handles a tap on an orchard in the list or map.
// In route mode it adds or removes a stop; otherwise it selects the
// orchard and brings it into view.
func (e *Engine) ToggleOrchardSelection(id int64) {
	if e.routeMode {
		e.ToggleRouteWaypoint(id)
		return
	}
	o, ok := e.Orchard(id)
	if !ok {
		return
	}
	e.selected = &id
	narrow := e.Narrow()
	e.view.Selected(narrow)

	offset := WideSelectOffset
	if narrow {
		offset = NarrowSelectOffset
	}
	e.flyTo(geo.Pt(o.Lat, o.Lng).Offset(offset), SelectZoom, flyDuration)
}

// ClearSelection closes the detail view.
func (e *Engine) ClearSelection() {
	e.selected = nil
}

// MapClicked handles a tap on the map background.
func (e *Engine) MapClicked() {
	if !e.routeMode {
		e.selected = nil
	}
}

// ToggleRouteWaypoint appends id to the route or removes it, keeping the
// order of the other stops. It does nothing outside route mode.
func (e *Engine) ToggleRouteWaypoint(id int64) {
	if !e.routeMode || !e.known(id) {
		return
	}
	if i := e.RouteIndex(id); i > 0 {
		ids := make([]int64, 0, len(e.routeIDs)-1)
		ids = append(ids, e.routeIDs[:i-1]...)
		e.routeIDs = append(ids, e.routeIDs[i:]...)
	} else {
		e.routeIDs = append(append([]int64(nil), e.routeIDs...), id)
	}
	e.touch()
	e.replan()
}

// ToggleRouteMode enters or leaves route mode as one transition: the route
// is emptied and sort returns to default either way; entering also clears
// the selection and, on narrow viewports, shows the map.
func (e *Engine) ToggleRouteMode() {
	e.routeMode = !e.routeMode
	e.filters.SortMode = SortDefault
	e.routeIDs = nil
	e.resetRoute()
	if e.routeMode {
		e.selected = nil
		e.view.EnteredRouteMode(e.Narrow())
	}
	e.touch()
	e.replan()
}

// ClearRoute removes every stop but stays in route mode.
func (e *Engine) ClearRoute() {
	e.routeIDs = nil
	e.resetRoute()
	e.touch()
	e.replan()
}

// RouteIDs returns the stops in the order they were chosen.
func (e *Engine) RouteIDs() []int64 {
	return append([]int64{}, e.routeIDs...)
}

// RouteIndex returns the 1-based stop number of id, or 0.
func (e *Engine) RouteIndex(id int64) int {
	for i, rid := range e.routeIDs {
		if rid == id {
			return i + 1
		}
	}
	return 0
}

// Waypoints resolves the route stops to coordinates.
func (e *Engine) Waypoints() []geo.LatLng {
	wps := make([]geo.LatLng, 0, len(e.routeIDs))
	for _, id := range e.routeIDs {
		if o, ok := e.Orchard(id); ok {
			wps = append(wps, geo.Pt(o.Lat, o.Lng))
		}
	}
	return wps
}

// RoutePath returns the resolved path, empty until a lookup succeeds.
func (e *Engine) RoutePath() []geo.LatLng {
	return e.routePath
}

// RouteStats returns distance and ETA, zero without a path.
func (e *Engine) RouteStats() routing.Stats {
	return e.routeStats
}

// RouteErr returns the last lookup failure for the current stops.
func (e *Engine) RouteErr() error {
	return e.routeErr
}

// GoogleMapsURL is the hand-off link for the current stops.
func (e *Engine) GoogleMapsURL() string {
	return routing.GoogleMapsURL(e.Waypoints())
}

func (e *Engine) resetRoute() {
	e.routePath = nil
	e.routeStats = routing.Stats{}
	e.routeErr = nil
}

// replan starts a new route generation. With fewer than two stops nothing
// is requested and any pending lookup is dropped.
func (e *Engine) replan() {
	e.routeGen++
	wps := e.Waypoints()
	if len(wps) < 2 {
		e.resetRoute()
		if e.planner != nil {
			e.planner.Cancel()
		}
	} else if e.planner != nil {
		e.planner.Plan(e.routeGen, wps)
	}
	e.fitRoute()
}

// RouteGeneration is the generation the next route result must carry.
func (e *Engine) RouteGeneration() uint64 {
	return e.routeGen
}

// ApplyRoute merges a lookup result. Results from a superseded generation
// or for fewer than two stops are ignored; it reports whether r was used.
func (e *Engine) ApplyRoute(r routing.Result) bool {
	if r.Generation != e.routeGen || len(e.Waypoints()) < 2 {
		e.log.Debugf("ignoring route result for generation %d (current %d)", r.Generation, e.routeGen)
		return false
	}
	if r.Err != nil || r.Route == nil {
		e.resetRoute()
		e.routeErr = r.Err
		if e.routeErr == nil {
			e.routeErr = routing.ErrNoRoute
		}
	} else {
		e.routePath = r.Route.Path
		e.routeStats = r.Route.Stats
		e.routeErr = nil
	}
	e.fitRoute()
	return true
}

func (e *Engine) fitRoute() {
	if !e.routeMode || e.camera == nil {
		return
	}
	if b, ok := geo.BoundsOf(e.Waypoints(), e.routePath); ok {
		e.camera.FitBounds(b, RouteFitPaddingPx, fitDuration)
	}
}

func (e *Engine) flyTo(p geo.LatLng, zoom int, d time.Duration) {
	if e.camera != nil {
		e.camera.FlyTo(p, zoom, d)
	}
}

// SetViewMode applies the list/map toggle. Switching to the list outside
// route mode also closes the detail view.
func (e *Engine) SetViewMode(m viewsync.Mode) {
	e.view.Toggle(m)
	if m == viewsync.ModeList && !e.routeMode {
		e.selected = nil
	}
}

// SetViewport records the viewport width in pixels.
func (e *Engine) SetViewport(width int) {
	e.viewportWidth = width
}

// Narrow reports whether the viewport shows one pane at a time. An
// unknown width counts as wide.
func (e *Engine) Narrow() bool {
	return e.viewportWidth > 0 && viewsync.IsNarrow(e.viewportWidth, e.breakpoint)
}

// Layout derives pane visibility from the current state.
func (e *Engine) Layout() viewsync.Layout {
	width := e.viewportWidth
	if width <= 0 {
		width = e.breakpoint
		if width <= 0 {
			width = viewsync.DefaultNarrowBreakpoint
		}
	}
	return viewsync.Derive(viewsync.Input{
		ViewportWidth:    width,
		NarrowBreakpoint: e.breakpoint,
		Mode:             e.view.Mode(),
		HasSelection:     e.selected != nil,
		RouteMode:        e.routeMode,
		RouteStops:       len(e.routeIDs),
	})
}
