// Package viewsync decides which panes of the discovery screen are visible.
// It holds only the explicit list/map toggle; everything else is derived.
package viewsync

import "fmt"

// DefaultNarrowBreakpoint is the viewport width (px) below which the
// screen shows one pane at a time.
const DefaultNarrowBreakpoint = 1024

// Mode is the one-pane toggle used on narrow viewports.
type Mode string

const (
	ModeList Mode = "list"
	ModeMap  Mode = "map"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeList, ModeMap:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown view mode %q", s)
}

// Placement says where the orchard detail is rendered.
type Placement string

const (
	PlacementNone        Placement = "none"
	PlacementBottomSheet Placement = "bottomSheet"
	PlacementInline      Placement = "inline"
)

// Machine is the list/map toggle. Transitions:
//
//	list -> map   on selection (narrow) or explicit toggle
//	list -> map   on entering route mode (narrow)
//	map  -> list  explicit toggle only
type Machine struct {
	mode Mode
}

// NewMachine starts on the map, as the discovery screen does.
func NewMachine() *Machine {
	return &Machine{mode: ModeMap}
}

func (m *Machine) Mode() Mode {
	return m.mode
}

// Toggle applies an explicit user switch.
func (m *Machine) Toggle(mode Mode) {
	m.mode = mode
}

// Selected is called when an orchard is selected outside route mode.
func (m *Machine) Selected(narrow bool) {
	if narrow {
		m.mode = ModeMap
	}
}

// EnteredRouteMode is called when route mode is switched on.
func (m *Machine) EnteredRouteMode(narrow bool) {
	if narrow {
		m.mode = ModeMap
	}
}

// Input is everything the layout depends on.
type Input struct {
	ViewportWidth    int
	NarrowBreakpoint int
	Mode             Mode
	HasSelection     bool
	RouteMode        bool
	RouteStops       int
}

// Layout is the derived visibility of each part of the screen.
type Layout struct {
	Narrow          bool      `json:"narrow"`
	Mode            Mode      `json:"mode"`
	ShowList        bool      `json:"showList"`
	ShowMap         bool      `json:"showMap"`
	ShowMapControls bool      `json:"showMapControls"`
	Detail          Placement `json:"detail"`
	MapPopups       bool      `json:"mapPopups"`
	ShowRouteStats  bool      `json:"showRouteStats"`
	FiltersEnabled  bool      `json:"filtersEnabled"`
}

// IsNarrow reports whether width falls below the breakpoint. A zero
// breakpoint means DefaultNarrowBreakpoint.
func IsNarrow(width, breakpoint int) bool {
	if breakpoint <= 0 {
		breakpoint = DefaultNarrowBreakpoint
	}
	return width < breakpoint
}

// Derive computes the layout. It is a pure function of in.
func Derive(in Input) Layout {
	narrow := IsNarrow(in.ViewportWidth, in.NarrowBreakpoint)
	mode := in.Mode
	if mode == "" {
		mode = ModeMap
	}

	l := Layout{
		Narrow:         narrow,
		Mode:           mode,
		ShowList:       !narrow || mode == ModeList,
		ShowMap:        !narrow || mode == ModeMap,
		Detail:         PlacementNone,
		MapPopups:      !narrow && !in.RouteMode,
		FiltersEnabled: !in.RouteMode,
	}
	l.ShowMapControls = l.ShowMap
	l.ShowRouteStats = in.RouteMode && in.RouteStops > 0 && l.ShowMapControls

	if in.HasSelection && !in.RouteMode {
		if narrow {
			l.Detail = PlacementBottomSheet
		} else {
			l.Detail = PlacementInline
		}
	}
	return l
}
