package routing

import (
	"strconv"
	"strings"

	"github.com/intelligrit/durian-map/internal/geo"
)

const googleMapsDirURL = "https://www.google.com/maps/dir"

// GoogleMapsURL builds a Google Maps directions link that starts at the
// user's current location and visits waypoints in order. It returns ""
// when there are no waypoints.
func GoogleMapsURL(waypoints []geo.LatLng) string {
	if len(waypoints) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(googleMapsDirURL)
	b.WriteString("/My+Location")
	for _, w := range waypoints {
		b.WriteString("/")
		b.WriteString(strconv.FormatFloat(w.Lat, 'f', -1, 64))
		b.WriteString(",")
		b.WriteString(strconv.FormatFloat(w.Lng, 'f', -1, 64))
	}
	return b.String()
}
