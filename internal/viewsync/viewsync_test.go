package viewsync

import "testing"

func TestMachineTransitions(t *testing.T) {
	m := NewMachine()
	if m.Mode() != ModeMap {
		t.Fatalf("expected initial map mode, got %s", m.Mode())
	}

	m.Toggle(ModeList)
	m.Selected(false)
	if m.Mode() != ModeList {
		t.Errorf("wide selection must not change mode, got %s", m.Mode())
	}

	m.Selected(true)
	if m.Mode() != ModeMap {
		t.Errorf("narrow selection must force map, got %s", m.Mode())
	}

	m.Toggle(ModeList)
	m.EnteredRouteMode(true)
	if m.Mode() != ModeMap {
		t.Errorf("narrow route mode must force map, got %s", m.Mode())
	}
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want Layout
	}{
		{
			name: "wide shows both panes with inline detail",
			in:   Input{ViewportWidth: 1440, Mode: ModeList, HasSelection: true},
			want: Layout{Narrow: false, Mode: ModeList, ShowList: true, ShowMap: true, ShowMapControls: true,
				Detail: PlacementInline, MapPopups: true, FiltersEnabled: true},
		},
		{
			name: "narrow list hides map",
			in:   Input{ViewportWidth: 390, Mode: ModeList},
			want: Layout{Narrow: true, Mode: ModeList, ShowList: true, Detail: PlacementNone, FiltersEnabled: true},
		},
		{
			name: "narrow map with selection uses bottom sheet",
			in:   Input{ViewportWidth: 390, Mode: ModeMap, HasSelection: true},
			want: Layout{Narrow: true, Mode: ModeMap, ShowMap: true, ShowMapControls: true,
				Detail: PlacementBottomSheet, FiltersEnabled: true},
		},
		{
			name: "route mode hides detail and shows stats",
			in:   Input{ViewportWidth: 1440, Mode: ModeMap, HasSelection: true, RouteMode: true, RouteStops: 2},
			want: Layout{Mode: ModeMap, ShowList: true, ShowMap: true, ShowMapControls: true,
				Detail: PlacementNone, ShowRouteStats: true},
		},
		{
			name: "route stats hidden behind narrow list",
			in:   Input{ViewportWidth: 390, Mode: ModeList, RouteMode: true, RouteStops: 3},
			want: Layout{Narrow: true, Mode: ModeList, ShowList: true, Detail: PlacementNone},
		},
		{
			name: "custom breakpoint",
			in:   Input{ViewportWidth: 800, NarrowBreakpoint: 768, Mode: ModeList},
			want: Layout{Mode: ModeList, ShowList: true, ShowMap: true, ShowMapControls: true,
				Detail: PlacementNone, MapPopups: true, FiltersEnabled: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Derive(tt.in); got != tt.want {
				t.Errorf("Derive() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	if _, err := ParseMode("grid"); err == nil {
		t.Error("expected error for unknown mode")
	}
	if m, err := ParseMode("list"); err != nil || m != ModeList {
		t.Errorf("expected list, got %s (%v)", m, err)
	}
}
