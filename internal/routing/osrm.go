package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/intelligrit/durian-map/internal/geo"
)

// DefaultOSRMURL is the public OSRM demo server.
const DefaultOSRMURL = "https://router.project-osrm.org"

// OSRMClient calls the OSRM HTTP route service.
type OSRMClient struct {
	BaseURL    string
	Profile    string
	HTTPClient *http.Client
	Limiter    *RateLimiter
}

// NewOSRMClient creates a client for baseURL using the given profile
// ("driving" when empty) and request timeout.
func NewOSRMClient(baseURL, profile string, timeout time.Duration, limiter *RateLimiter) *OSRMClient {
	if baseURL == "" {
		baseURL = DefaultOSRMURL
	}
	if profile == "" {
		profile = "driving"
	}
	return &OSRMClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Profile:    profile,
		HTTPClient: &http.Client{Timeout: timeout},
		Limiter:    limiter,
	}
}

type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Geometry struct {
		Coordinates [][]float64 `json:"coordinates"`
	} `json:"geometry"`
	Distance float64 `json:"distance"` // meters
	Duration float64 `json:"duration"` // seconds
}

// Route requests a full-overview GeoJSON route through waypoints in order.
func (c *OSRMClient) Route(ctx context.Context, waypoints []geo.LatLng) (*Route, error) {
	if len(waypoints) < 2 {
		return nil, ErrTooFewWaypoints
	}

	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	url := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson",
		c.BaseURL, c.Profile, CoordinateString(waypoints))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("routing request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var out osrmResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("routing service returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	if out.Code != "Ok" {
		return nil, &StatusError{Code: out.Code, Message: out.Message}
	}
	if len(out.Routes) == 0 {
		return nil, ErrNoRoute
	}

	return decodeRoute(out.Routes[0])
}

func decodeRoute(r osrmRoute) (*Route, error) {
	path := make([]geo.LatLng, 0, len(r.Geometry.Coordinates))
	for i, c := range r.Geometry.Coordinates {
		if len(c) < 2 {
			return nil, fmt.Errorf("malformed coordinate %d in route geometry", i)
		}
		// GeoJSON positions are [lon, lat].
		path = append(path, geo.LatLng{Lat: c[1], Lng: c[0]})
	}
	return &Route{
		Path: path,
		Stats: Stats{
			DistanceKm: r.Distance / 1000,
			ETAMinutes: r.Duration / 60,
		},
	}, nil
}

// CoordinateString renders waypoints as "lng,lat;lng,lat", the order OSRM expects.
func CoordinateString(waypoints []geo.LatLng) string {
	parts := make([]string, len(waypoints))
	for i, w := range waypoints {
		parts[i] = strconv.FormatFloat(w.Lng, 'f', -1, 64) + "," + strconv.FormatFloat(w.Lat, 'f', -1, 64)
	}
	return strings.Join(parts, ";")
}
