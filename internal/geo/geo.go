package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// LatLng is a WGS84 coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Pt is a shorthand constructor for LatLng.
func Pt(lat, lng float64) LatLng {
	return LatLng{Lat: lat, Lng: lng}
}

// ParseLatLng parses "lat,lng" in decimal degrees.
func ParseLatLng(s string) (LatLng, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return LatLng{}, fmt.Errorf("expected lat,lng, got %q", s)
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return LatLng{}, fmt.Errorf("parsing latitude: %w", err)
	}
	ln, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return LatLng{}, fmt.Errorf("parsing longitude: %w", err)
	}
	return Pt(la, ln), nil
}

// DistanceKm returns the Haversine great-circle distance in kilometers.
// NaN inputs propagate to a NaN result.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// DistanceTo returns the great-circle distance from p to q in kilometers.
func (p LatLng) DistanceTo(q LatLng) float64 {
	return DistanceKm(p.Lat, p.Lng, q.Lat, q.Lng)
}

// Offset returns p shifted by dLat degrees of latitude.
func (p LatLng) Offset(dLat float64) LatLng {
	return LatLng{Lat: p.Lat + dLat, Lng: p.Lng}
}

// Point converts p to an orb.Point, which is ordered [lng, lat].
func (p LatLng) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// FromPoint converts an orb.Point ([lng, lat]) to a LatLng.
func FromPoint(pt orb.Point) LatLng {
	return LatLng{Lat: pt.Lat(), Lng: pt.Lon()}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// Nearest returns the index of the point in pts closest to from. ok is
// false when pts is empty. Ties keep the earliest point.
func Nearest(from LatLng, pts []LatLng) (idx int, ok bool) {
	best := math.Inf(1)
	idx = -1
	for i, p := range pts {
		if d := from.DistanceTo(p); d < best {
			best, idx = d, i
		}
	}
	return idx, idx >= 0
}
