// Package routing turns an ordered list of waypoints into a driving path
// using an external routing service.
package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/intelligrit/durian-map/internal/geo"
)

// ErrTooFewWaypoints is returned when fewer than two waypoints are given.
var ErrTooFewWaypoints = errors.New("routing: at least two waypoints are required")

// ErrNoRoute is returned when the service answers "Ok" without any route.
var ErrNoRoute = errors.New("routing: no route found")

// StatusError is a non-"Ok" answer from the routing service.
type StatusError struct {
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("routing: service returned %s", e.Code)
	}
	return fmt.Sprintf("routing: service returned %s: %s", e.Code, e.Message)
}

// Stats summarises a route. The zero value means "no route".
type Stats struct {
	DistanceKm float64 `json:"distanceKm"`
	ETAMinutes float64 `json:"etaMinutes"`
}

// Route is a resolved driving path through the waypoints in order.
type Route struct {
	Path  []geo.LatLng `json:"path"`
	Stats Stats        `json:"stats"`
}

// Router resolves a path through at least two waypoints.
type Router interface {
	Route(ctx context.Context, waypoints []geo.LatLng) (*Route, error)
}

// FormatETA splits minutes into whole hours and remaining minutes, rounded.
func FormatETA(minutes float64) (hours, mins int) {
	total := int(minutes + 0.5)
	return total / 60, total % 60
}
