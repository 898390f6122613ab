package geolocate

import (
	"context"
	"errors"
	"time"

	"github.com/intelligrit/durian-map/internal/geo"
)

// Options mirror the browser geolocation request options.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
}

// ExplicitOptions are used for a user-initiated "locate me".
var ExplicitOptions = Options{HighAccuracy: true, Timeout: 10 * time.Second}

// PassiveOptions are used for the best-effort fix on first map load.
var PassiveOptions = Options{HighAccuracy: false, Timeout: 10 * time.Second}

// Locator obtains a single position fix from a platform capability.
type Locator interface {
	Locate(ctx context.Context, opts Options) (geo.LatLng, error)
}

// Static always answers with a fixed position, or ErrUnavailable when unset.
type Static struct {
	Position *geo.LatLng
}

func (s Static) Locate(_ context.Context, _ Options) (geo.LatLng, error) {
	if s.Position == nil {
		return geo.LatLng{}, ErrUnavailable
	}
	return *s.Position, nil
}

// Chain tries each locator in order and returns the first fix.
type Chain []Locator

func (c Chain) Locate(ctx context.Context, opts Options) (geo.LatLng, error) {
	var lastErr error = ErrUnavailable
	for _, l := range c {
		fix, err := l.Locate(ctx, opts)
		if err == nil {
			return fix, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return geo.LatLng{}, lastErr
}

// classify converts any error into an *Error.
func classify(err error) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Reason: ReasonTimeout, Err: err}
	}
	return &Error{Reason: ReasonUnavailable, Err: err}
}
