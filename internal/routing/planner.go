package routing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/intelligrit/durian-map/internal/geo"
	"github.com/intelligrit/durian-map/internal/loading"
	"github.com/intelligrit/durian-map/internal/metrics"
)

// DefaultDebounce is how long waypoints must stay unchanged before a lookup.
const DefaultDebounce = 500 * time.Millisecond

// Timer is the part of *time.Timer the planner needs.
type Timer interface {
	Stop() bool
}

// Clock schedules delayed calls. RealClock uses time.AfterFunc.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock is the wall-clock Clock.
var RealClock Clock = realClock{}

// Result is delivered once per lookup that was still current when it finished.
type Result struct {
	Generation uint64
	Route      *Route
	Err        error
}

// Planner debounces waypoint changes into route lookups. Each Plan call
// replaces the pending one; a lookup that is superseded while in flight is
// cancelled and its result is dropped.
type Planner struct {
	router  Router
	delay   time.Duration
	clock   Clock
	deliver func(Result)
	tracker *loading.Tracker
	metrics *metrics.Metrics
	log     *log.Helper

	mu       sync.Mutex
	timer    Timer
	cancel   context.CancelFunc
	current  uint64 // generation allowed to deliver; 0 means none
	closed   bool
	inFlight bool
}

// PlannerOption customises a Planner.
type PlannerOption func(*Planner)

// WithClock replaces the wall clock, for tests.
func WithClock(c Clock) PlannerOption {
	return func(p *Planner) { p.clock = c }
}

// WithTracker counts each in-flight lookup on t.
func WithTracker(t *loading.Tracker) PlannerOption {
	return func(p *Planner) { p.tracker = t }
}

// WithMetrics records superseded and stale lookups.
func WithMetrics(m *metrics.Metrics) PlannerOption {
	return func(p *Planner) { p.metrics = m }
}

// NewPlanner creates a planner that sends current results to deliver.
// deliver runs on the goroutine that finished the lookup.
func NewPlanner(router Router, delay time.Duration, deliver func(Result), logger log.Logger, opts ...PlannerOption) *Planner {
	p := &Planner{
		router:  router,
		delay:   delay,
		clock:   RealClock,
		deliver: deliver,
		log:     log.NewHelper(logger),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan schedules a lookup for waypoints tagged with generation gen, which
// must increase on every call. Callers must not plan fewer than two
// waypoints; use Cancel instead.
func (p *Planner) Plan(gen uint64, waypoints []geo.LatLng) {
	wps := append([]geo.LatLng(nil), waypoints...)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.stopLocked()
	p.current = gen
	p.timer = p.clock.AfterFunc(p.delay, func() { p.fire(gen, wps) })
}

// Cancel drops the pending lookup and any lookup in flight.
func (p *Planner) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.current = 0
}

// Close cancels everything and ignores all later Plan calls and results.
func (p *Planner) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.current = 0
	p.closed = true
}

// Pending reports whether a lookup is scheduled or in flight.
func (p *Planner) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil || p.inFlight
}

func (p *Planner) stopLocked() {
	if p.timer != nil {
		if p.timer.Stop() {
			p.metrics.RouteSuperseded()
		}
		p.timer = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.inFlight = false
}

func (p *Planner) fire(gen uint64, waypoints []geo.LatLng) {
	p.mu.Lock()
	if p.closed || gen != p.current {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.timer = nil
	p.cancel = cancel
	p.inFlight = true
	p.mu.Unlock()

	var done func()
	if p.tracker != nil {
		done = p.tracker.Begin()
	}
	route, err := p.router.Route(ctx, waypoints)
	if done != nil {
		done()
	}
	cancel()

	p.mu.Lock()
	current := !p.closed && gen == p.current
	if current {
		p.cancel = nil
		p.inFlight = false
	}
	p.mu.Unlock()

	if !current {
		p.metrics.RouteStale()
		p.log.Debugf("discarding stale route result for generation %d", gen)
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		p.log.Warnf("route lookup for %d waypoints failed: %v", len(waypoints), err)
	}
	p.deliver(Result{Generation: gen, Route: route, Err: err})
}
