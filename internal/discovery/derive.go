// Package discovery owns what the user currently sees on the orchard
// discovery screen: filters, sort, search, selection and the route being
// planned, plus the derived list of visible orchards.
package discovery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/intelligrit/durian-map/internal/geo"
	"github.com/intelligrit/durian-map/internal/model"
)

// SortMode orders the visible list.
type SortMode uint8

const (
	SortDefault SortMode = iota
	SortNearest

	sortModeCount
)

var sortModeNames = [...]string{
	SortDefault: "default",
	SortNearest: "nearest",
}

var _ = [1]struct{}{}[len(sortModeNames)-int(sortModeCount)]

func (m SortMode) String() string {
	if m >= sortModeCount {
		return fmt.Sprintf("SortMode(%d)", uint8(m))
	}
	return sortModeNames[m]
}

// ParseSortMode maps "default" or "nearest" to a SortMode.
func ParseSortMode(s string) (SortMode, error) {
	for m := SortMode(0); m < sortModeCount; m++ {
		if sortModeNames[m] == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown sort mode %q", s)
}

func (m SortMode) MarshalText() ([]byte, error) {
	if m >= sortModeCount {
		return nil, fmt.Errorf("invalid sort mode %d", uint8(m))
	}
	return []byte(sortModeNames[m]), nil
}

func (m *SortMode) UnmarshalText(b []byte) error {
	v, err := ParseSortMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// FilterState is the user's filter, search and sort choice.
// An empty SelectedTypes means no type filter.
type FilterState struct {
	SelectedTypes []model.OrchardType `json:"selectedTypes"`
	SearchQuery   string              `json:"searchQuery"`
	SortMode      SortMode            `json:"sortMode"`
}

// ActiveCount is the number shown on the filter button badge.
func (f FilterState) ActiveCount() int {
	n := len(f.SelectedTypes)
	if f.SortMode != SortDefault {
		n++
	}
	return n
}

// Derive returns the orchards of source that pass the filter, in display
// order. source is not modified. ref is the nearest-sort reference point;
// when it is nil the filtered order is kept.
func Derive(source []model.Orchard, f FilterState, ref *geo.LatLng) []model.Orchard {
	out := make([]model.Orchard, 0, len(source))
	query := strings.ToLower(f.SearchQuery)
	for i := range source {
		o := &source[i]
		if !hasAllTypes(o, f.SelectedTypes) {
			continue
		}
		if query != "" && !matches(o, query) {
			continue
		}
		out = append(out, *o)
	}

	if f.SortMode == SortNearest && ref != nil {
		sortByDistance(out, *ref)
	}
	return out
}

func sortByDistance(list []model.Orchard, ref geo.LatLng) {
	type ranked struct {
		orchard model.Orchard
		km      float64
	}
	rs := make([]ranked, len(list))
	for i, o := range list {
		rs[i] = ranked{o, geo.DistanceKm(ref.Lat, ref.Lng, o.Lat, o.Lng)}
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].km < rs[j].km })
	for i := range rs {
		list[i] = rs[i].orchard
	}
}

func hasAllTypes(o *model.Orchard, types []model.OrchardType) bool {
	for _, t := range types {
		if !o.HasType(t) {
			return false
		}
	}
	return true
}

// matches reports a case-insensitive substring hit on name, description
// or address. query must already be lower case.
func matches(o *model.Orchard, query string) bool {
	return strings.Contains(strings.ToLower(o.Name), query) ||
		strings.Contains(strings.ToLower(o.Description), query) ||
		strings.Contains(strings.ToLower(o.Address), query)
}

// ReferencePoint resolves the point nearest-sort measures from: the last
// route waypoint while planning a route, otherwise the user location.
// It is nil unless sorting by nearest.
func ReferencePoint(sortMode SortMode, routeMode bool, waypoints []geo.LatLng, user *geo.LatLng) *geo.LatLng {
	if sortMode != SortNearest {
		return nil
	}
	if routeMode && len(waypoints) > 0 {
		last := waypoints[len(waypoints)-1]
		return &last
	}
	return user
}
