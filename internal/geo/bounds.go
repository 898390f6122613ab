package geo

import "github.com/paulmach/orb"

// Bounds is a lat/lng bounding box.
type Bounds struct {
	SouthWest LatLng `json:"southWest"`
	NorthEast LatLng `json:"northEast"`
}

// Center returns the midpoint of the box.
func (b Bounds) Center() LatLng {
	return FromPoint(b.bound().Center())
}

// Contains reports whether p lies inside the box, edges included.
func (b Bounds) Contains(p LatLng) bool {
	return b.bound().Contains(p.Point())
}

func (b Bounds) bound() orb.Bound {
	return orb.Bound{Min: b.SouthWest.Point(), Max: b.NorthEast.Point()}
}

// BoundsOf returns the smallest box covering every point in the given sets.
// ok is false when no points were supplied.
func BoundsOf(sets ...[]LatLng) (b Bounds, ok bool) {
	var mp orb.MultiPoint
	for _, set := range sets {
		for _, p := range set {
			mp = append(mp, p.Point())
		}
	}
	if len(mp) == 0 {
		return Bounds{}, false
	}
	bound := mp.Bound()
	return Bounds{
		SouthWest: FromPoint(bound.Min),
		NorthEast: FromPoint(bound.Max),
	}, true
}

// LineString converts an ordered path into an orb.LineString.
func LineString(path []LatLng) orb.LineString {
	ls := make(orb.LineString, 0, len(path))
	for _, p := range path {
		ls = append(ls, p.Point())
	}
	return ls
}
