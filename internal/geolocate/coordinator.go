package geolocate

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/intelligrit/durian-map/internal/geo"
	"github.com/intelligrit/durian-map/internal/metrics"
)

// Kind says who asked for a fix.
type Kind string

const (
	// KindExplicit is a user-initiated "locate me"; failures are reported.
	KindExplicit Kind = "explicit"
	// KindPassive is the best-effort fix on first map load; failures are silent.
	KindPassive Kind = "passive"
)

// Target receives fixes and performs the one-time auto-centring.
type Target interface {
	SetUserLocation(p geo.LatLng)
	InRouteMode() bool
	// CenterOnNearest moves the camera to the orchard nearest from and
	// reports whether there was one to move to.
	CenterOnNearest(from geo.LatLng) bool
}

// Coordinator feeds position fixes into a Target and runs the
// auto-centring latch: the first fix accepted outside route mode centres
// the map on the nearest orchard, and no later fix does.
//
// Locate may be called from any goroutine and touches no state, so owners
// can run it outside their lock. Accept and Recheck change state and must
// be serialised by the owner.
type Coordinator struct {
	locator Locator
	target  Target
	metrics *metrics.Metrics
	log     *log.Helper

	autoCentered bool
	last         *geo.LatLng
}

// NewCoordinator creates a coordinator. locator may be nil when fixes are
// only ever pushed in through Accept.
func NewCoordinator(locator Locator, target Target, m *metrics.Metrics, logger log.Logger) *Coordinator {
	return &Coordinator{
		locator: locator,
		target:  target,
		metrics: m,
		log:     log.NewHelper(logger),
	}
}

// Locate asks the platform for a fix without touching any state.
func (c *Coordinator) Locate(ctx context.Context, kind Kind) (geo.LatLng, error) {
	if c.locator == nil {
		c.metrics.Geolocation(string(kind), string(ReasonUnavailable))
		return geo.LatLng{}, ErrUnavailable
	}
	opts := PassiveOptions
	if kind == KindExplicit {
		opts = ExplicitOptions
	}
	fix, err := c.locator.Locate(ctx, opts)
	if err != nil {
		gerr := classify(err)
		c.metrics.Geolocation(string(kind), string(gerr.Reason))
		return geo.LatLng{}, gerr
	}
	c.metrics.Geolocation(string(kind), "ok")
	return fix, nil
}

// Accept records a fix as the user location and auto-centres if this is
// the first opportunity.
func (c *Coordinator) Accept(fix geo.LatLng) {
	c.last = &fix
	c.target.SetUserLocation(fix)
	c.Recheck()
}

// Recheck retries auto-centring with the last fix. Owners call it when the
// orchard list arrives or route mode is switched off.
func (c *Coordinator) Recheck() {
	if c.autoCentered || c.last == nil || c.target.InRouteMode() {
		return
	}
	if c.target.CenterOnNearest(*c.last) {
		c.autoCentered = true
		c.log.Debugf("auto-centred on nearest orchard from %.5f,%.5f", c.last.Lat, c.last.Lng)
	}
}

// AutoCentered reports whether the one-time centring has happened.
func (c *Coordinator) AutoCentered() bool {
	return c.autoCentered
}
