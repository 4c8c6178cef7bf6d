package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	catalogBaseURL = "https://catalog.api.2gis.com"
	routingBaseURL = "https://routing.api.2gis.com"
)

// Provider IDs used when enqueueing work on the rate-limited client.
// The catalog (geocoding) API tolerates at most one request per second,
// the routing API about five per second.
const (
	ProviderGeocoder = "dgis-geocoder"
	ProviderRouter   = "dgis-router"
)

// ErrInvalidQuery is returned for an empty or blank geocode query.
var ErrInvalidQuery = errors.New("geo: empty geocode query")

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point is within WGS84 bounds.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// LocationPoint is one geocoding candidate. Immutable once returned.
type LocationPoint struct {
	Point   Point  `json:"point"`
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// Limiter serializes provider calls. Satisfied by ratelimit.Client.
type Limiter interface {
	Enqueue(ctx context.Context, providerID string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error)
}

// DGISClient provides access to 2GIS geocoding and routing APIs. All calls
// go through the limiter so provider rate limits hold across concurrent
// callers.
type DGISClient struct {
	httpClient *http.Client
	limiter    Limiter
	apiKey     string
	regionID   string
	timeout    time.Duration
}

// NewDGISClient constructs a new 2GIS client. timeout bounds each provider
// call; zero means 7 seconds.
func NewDGISClient(httpClient *http.Client, limiter Limiter, apiKey, regionID string, timeout time.Duration) *DGISClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if timeout <= 0 {
		timeout = 7 * time.Second
	}
	return &DGISClient{httpClient: httpClient, limiter: limiter, apiKey: apiKey, regionID: regionID, timeout: timeout}
}

// tryParseLonLat returns lon,lat if query looks like "lon,lat" (WGS84),
// otherwise (0,0,false).
func tryParseLonLat(query string) (float64, float64, bool) {
	q := strings.TrimSpace(query)
	sep := ","
	if strings.Contains(q, ";") {
		sep = ";"
	}
	parts := strings.Split(q, sep)
	if len(parts) != 2 {
		return 0, 0, false
	}
	lon, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lat, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return 0, 0, false
	}
	return lon, lat, true
}

// Geocode resolves a free-text query to up to maxResults candidate points.
// Zero matches yield an empty slice and a nil error; the caller decides
// whether that is a user-facing failure. Multiple matches are returned
// as-is: picking a "best" one among ambiguous places is the caller's call.
func (c *DGISClient) Geocode(ctx context.Context, query, countryHint string, maxResults int) ([]LocationPoint, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrInvalidQuery
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	// "lon,lat" input short-circuits without hitting the API
	if lon, lat, ok := tryParseLonLat(query); ok {
		return []LocationPoint{{Point: Point{Lat: lat, Lon: lon}, Address: strings.TrimSpace(query)}}, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("key", c.apiKey)
	params.Set("fields", "items.point,items.full_name")
	params.Set("page_size", strconv.Itoa(maxResults))
	params.Set("search_is_query_text_complete", "true")
	if countryHint != "" {
		params.Set("country_code", strings.ToLower(countryHint))
	}
	if c.regionID != "" {
		params.Set("region_id", c.regionID)
	}
	endpoint := fmt.Sprintf("%s/3.0/items/geocode?%s", catalogBaseURL, params.Encode())

	// The timeout bounds the provider call itself, not time spent waiting in
	// the rate-limit queue; the caller's context bounds the total wait.
	value, err := c.limiter.Enqueue(ctx, ProviderGeocoder, func(ctx context.Context) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.fetchGeocode(ctx, endpoint)
	})
	if err != nil {
		if errors.Is(err, errNoMatch) {
			return []LocationPoint{}, nil
		}
		return nil, err
	}

	points := value.([]LocationPoint)
	if len(points) > maxResults {
		points = points[:maxResults]
	}
	return points, nil
}

// errNoMatch signals an empty provider result set; it is translated to an
// empty candidate list, never surfaced to callers.
var errNoMatch = errors.New("geo: no geocode match")

func (c *DGISClient) fetchGeocode(ctx context.Context, endpoint string) ([]LocationPoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("geocode: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransport("geocode", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// 2GIS answers 404 for queries with no match
		return nil, errNoMatch
	}
	if resp.StatusCode >= 300 {
		return nil, statusError("geocode", resp)
	}

	var payload struct {
		Result struct {
			Items []struct {
				Name     string `json:"name"`
				FullName string `json:"full_name"`
				Point    struct {
					Lon float64 `json:"lon"`
					Lat float64 `json:"lat"`
				} `json:"point"`
			} `json:"items"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("geocode: decode: %w", err)
	}
	if len(payload.Result.Items) == 0 {
		return nil, errNoMatch
	}

	points := make([]LocationPoint, 0, len(payload.Result.Items))
	for _, item := range payload.Result.Items {
		if item.Point.Lon == 0 && item.Point.Lat == 0 {
			continue
		}
		address := item.FullName
		if address == "" {
			address = item.Name
		}
		points = append(points, LocationPoint{
			Point:   Point{Lat: item.Point.Lat, Lon: item.Point.Lon},
			Address: address,
			Name:    item.Name,
		})
	}
	if len(points) == 0 {
		return nil, errNoMatch
	}
	return points, nil
}

// routeResult carries raw provider route figures.
type routeResult struct {
	DistanceM int
	DurationS int
	Geometry  []Point
}

// Route returns driving distance (meters), duration (seconds) and path
// geometry between two points.
func (c *DGISClient) Route(ctx context.Context, origin, destination Point) (int, int, []Point, error) {
	if !origin.Valid() || !destination.Valid() {
		return 0, 0, nil, fmt.Errorf("route: coordinates out of range")
	}

	payload := struct {
		Points []struct {
			Type string  `json:"type"`
			Lon  float64 `json:"lon"`
			Lat  float64 `json:"lat"`
		} `json:"points"`
		Transport string `json:"transport"`
		RouteMode string `json:"route_mode"`
		Output    string `json:"output"`
	}{
		Transport: "driving",
		RouteMode: "fastest",
		Output:    "detailed",
	}
	payload.Points = append(payload.Points,
		struct {
			Type string  `json:"type"`
			Lon  float64 `json:"lon"`
			Lat  float64 `json:"lat"`
		}{Type: "stop", Lon: origin.Lon, Lat: origin.Lat},
		struct {
			Type string  `json:"type"`
			Lon  float64 `json:"lon"`
			Lat  float64 `json:"lat"`
		}{Type: "stop", Lon: destination.Lon, Lat: destination.Lat},
	)

	body, err := json.Marshal(&payload)
	if err != nil {
		return 0, 0, nil, err
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	endpoint := fmt.Sprintf("%s/routing/7.0.0/global?%s", routingBaseURL, q.Encode())

	value, err := c.limiter.Enqueue(ctx, ProviderRouter, func(ctx context.Context) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.fetchRoute(ctx, endpoint, body)
	})
	if err != nil {
		return 0, 0, nil, err
	}
	res := value.(routeResult)
	return res.DistanceM, res.DurationS, res.Geometry, nil
}

func (c *DGISClient) fetchRoute(ctx context.Context, endpoint string, body []byte) (routeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return routeResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return routeResult{}, wrapTransport("route", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return routeResult{}, errors.New("2gis: route not found (204)")
	}
	if resp.StatusCode >= 300 {
		return routeResult{}, statusError("route", resp)
	}

	var out struct {
		Result []struct {
			Status        string `json:"status"`
			TotalDistance int    `json:"total_distance"`
			TotalDuration int    `json:"total_duration"`
			Maneuvers     []struct {
				OutcomingPath struct {
					Geometry []struct {
						Selection string `json:"selection"`
					} `json:"geometry"`
				} `json:"outcoming_path"`
			} `json:"maneuvers"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return routeResult{}, fmt.Errorf("route: decode: %w", err)
	}
	if len(out.Result) == 0 {
		return routeResult{}, errors.New("2gis: empty route result")
	}
	route := out.Result[0]
	if route.Status != "" && !strings.EqualFold(route.Status, "OK") {
		return routeResult{}, fmt.Errorf("2gis: status=%s", route.Status)
	}

	var geometry []Point
	for _, m := range route.Maneuvers {
		for _, g := range m.OutcomingPath.Geometry {
			pts, err := parseLineString(g.Selection)
			if err != nil {
				continue
			}
			geometry = append(geometry, pts...)
		}
	}
	return routeResult{DistanceM: route.TotalDistance, DurationS: route.TotalDuration, Geometry: geometry}, nil
}

// parseLineString decodes a WKT "LINESTRING(lon lat, lon lat, ...)" selection.
func parseLineString(s string) ([]Point, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "LINESTRING(") || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("geo: not a linestring: %q", s)
	}
	inner := s[len("LINESTRING(") : len(s)-1]
	pairs := strings.Split(inner, ",")
	points := make([]Point, 0, len(pairs))
	for _, pair := range pairs {
		fields := strings.Fields(strings.TrimSpace(pair))
		if len(fields) < 2 {
			return nil, fmt.Errorf("geo: malformed linestring pair %q", pair)
		}
		lon, err1 := strconv.ParseFloat(fields[0], 64)
		lat, err2 := strconv.ParseFloat(fields[1], 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("geo: malformed linestring pair %q", pair)
		}
		points = append(points, Point{Lat: lat, Lon: lon})
	}
	return points, nil
}
