// Package camera is the boundary to the map-rendering primitive. The
// discovery core issues camera moves; a renderer (the browser map) executes them.
package camera

import (
	"sync"
	"time"

	"github.com/intelligrit/durian-map/internal/geo"
)

// Camera accepts camera moves.
type Camera interface {
	FlyTo(center geo.LatLng, zoom int, duration time.Duration)
	FitBounds(bounds geo.Bounds, paddingPx int, duration time.Duration)
}

// Kind distinguishes the camera move.
type Kind string

const (
	KindFlyTo     Kind = "flyTo"
	KindFitBounds Kind = "fitBounds"
)

// Command is one recorded camera move.
type Command struct {
	Kind       Kind        `json:"kind"`
	Center     *geo.LatLng `json:"center,omitempty"`
	Zoom       int         `json:"zoom,omitempty"`
	Bounds     *geo.Bounds `json:"bounds,omitempty"`
	PaddingPx  int         `json:"paddingPx,omitempty"`
	DurationMs int64       `json:"durationMs"`
}

// Recorder queues camera commands until a renderer drains them.
type Recorder struct {
	mu       sync.Mutex
	commands []Command
}

func (r *Recorder) FlyTo(center geo.LatLng, zoom int, duration time.Duration) {
	r.push(Command{Kind: KindFlyTo, Center: &center, Zoom: zoom, DurationMs: duration.Milliseconds()})
}

func (r *Recorder) FitBounds(bounds geo.Bounds, paddingPx int, duration time.Duration) {
	r.push(Command{Kind: KindFitBounds, Bounds: &bounds, PaddingPx: paddingPx, DurationMs: duration.Milliseconds()})
}

func (r *Recorder) push(c Command) {
	r.mu.Lock()
	r.commands = append(r.commands, c)
	r.mu.Unlock()
}

// Drain returns every queued command in issue order and empties the queue.
func (r *Recorder) Drain() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.commands
	r.commands = nil
	return out
}

// Last returns the most recent queued command without draining.
func (r *Recorder) Last() (Command, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.commands) == 0 {
		return Command{}, false
	}
	return r.commands[len(r.commands)-1], true
}
