package geo

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestHTTPClient(t *testing.T, server *httptest.Server) *http.Client {
	t.Helper()

	parsedURL, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("failed to parse server url: %v", err)
	}

	proxyClient := server.Client()
	return &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			clone := req.Clone(req.Context())
			clone.URL.Scheme = parsedURL.Scheme
			clone.URL.Host = parsedURL.Host
			clone.Host = parsedURL.Host
			clone.RequestURI = ""
			return proxyClient.Do(clone)
		}),
	}
}

// passLimiter dispatches immediately; rate limiting is covered by the
// ratelimit package tests.
type passLimiter struct{}

func (passLimiter) Enqueue(ctx context.Context, providerID string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	return fn(ctx)
}

// delayLimiter holds each job before dispatching it, like a busy
// rate-limit worker with a deep queue would.
type delayLimiter struct{ delay time.Duration }

func (d delayLimiter) Enqueue(ctx context.Context, providerID string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	select {
	case <-time.After(d.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return fn(ctx)
}

func TestTimeoutExcludesQueueWait(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"result":{"items":[{"full_name":"Almaty, Abay 10","point":{"lon":76.91,"lat":43.25}}]}}`)
	}))
	defer server.Close()

	// The queue wait is longer than the per-call timeout; the call must
	// still succeed because the timeout only starts once the provider
	// call is dispatched.
	client := NewDGISClient(newTestHTTPClient(t, server), delayLimiter{delay: 120 * time.Millisecond}, "k", "", 40*time.Millisecond)
	points, err := client.Geocode(context.Background(), "Abay 10", "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(points))
	}
}

func TestRouteTimeoutExcludesQueueWait(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"result":[{"status":"OK","total_distance":15300,"total_duration":1260,
			"maneuvers":[{"outcoming_path":{"geometry":[
				{"selection":"LINESTRING(76.91 43.25, 76.95 43.28)"}
			]}}]}]}`)
	}))
	defer server.Close()

	client := NewDGISClient(newTestHTTPClient(t, server), delayLimiter{delay: 120 * time.Millisecond}, "k", "", 40*time.Millisecond)
	dist, _, _, err := client.Route(context.Background(), Point{Lat: 43.25, Lon: 76.91}, Point{Lat: 43.28, Lon: 76.95})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dist != 15300 {
		t.Fatalf("unexpected distance: %d", dist)
	}
}

func TestGeocode(t *testing.T) {
	apiKey := "test-api-key"

	tests := []struct {
		name       string
		query      string
		maxResults int
		handler    func(t *testing.T, w http.ResponseWriter, r *http.Request)
		wantCount  int
		wantErr    bool
	}{
		{
			name:  "single match",
			query: "Abay 10, Almaty",
			handler: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("q"); got != "Abay 10, Almaty" {
					t.Fatalf("unexpected q param: %s", got)
				}
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, `{"result":{"items":[{"name":"Abay 10","full_name":"Almaty, Abay 10","point":{"lon":76.91,"lat":43.25}}]}}`)
			},
			wantCount: 1,
		},
		{
			name:  "ambiguous returns both candidates",
			query: "Lenina 1",
			handler: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, `{"result":{"items":[
					{"name":"Lenina 1","full_name":"Kostanay, Lenina 1","point":{"lon":63.62,"lat":53.21}},
					{"name":"Lenina 1","full_name":"Taraz, Lenina 1","point":{"lon":71.36,"lat":42.90}}
				]}}`)
			},
			wantCount: 2,
		},
		{
			name:       "capped at max results",
			query:      "Central street",
			maxResults: 2,
			handler: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("page_size"); got != "2" {
					t.Fatalf("unexpected page_size: %s", got)
				}
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, `{"result":{"items":[
					{"full_name":"A","point":{"lon":70.1,"lat":50.1}},
					{"full_name":"B","point":{"lon":70.2,"lat":50.2}},
					{"full_name":"C","point":{"lon":70.3,"lat":50.3}}
				]}}`)
			},
			wantCount: 2,
		},
		{
			name:  "no match yields empty list",
			query: "nonexistent place xyzzy",
			handler: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantCount: 0,
		},
		{
			name:  "empty items yields empty list",
			query: "empty result",
			handler: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, `{"result":{"items":[]}}`)
			},
			wantCount: 0,
		},
		{
			name:  "client error surfaces",
			query: "bad key",
			handler: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				io.WriteString(w, "key rejected")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/3.0/items/geocode" {
					t.Fatalf("unexpected path: %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("key"); got != apiKey {
					t.Fatalf("unexpected key param: %s", got)
				}
				tt.handler(t, w, r)
			}))
			defer server.Close()

			client := NewDGISClient(newTestHTTPClient(t, server), passLimiter{}, apiKey, "", 0)
			points, err := client.Geocode(context.Background(), tt.query, "", tt.maxResults)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(points) != tt.wantCount {
				t.Fatalf("expected %d candidates, got %d", tt.wantCount, len(points))
			}
			for _, p := range points {
				if !p.Point.Valid() {
					t.Fatalf("candidate out of WGS84 bounds: %+v", p)
				}
			}
		})
	}
}

func TestGeocodeEmptyQuery(t *testing.T) {
	client := NewDGISClient(nil, passLimiter{}, "k", "", 0)
	if _, err := client.Geocode(context.Background(), "   ", "", 5); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestGeocodeLonLatShortCircuit(t *testing.T) {
	// no server: a coordinate literal must not hit the API
	client := NewDGISClient(&http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		t.Fatal("unexpected provider call")
		return nil, nil
	})}, passLimiter{}, "k", "", 0)

	points, err := client.Geocode(context.Background(), "76.91, 43.25", "", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}
	if points[0].Point.Lon != 76.91 || points[0].Point.Lat != 43.25 {
		t.Fatalf("unexpected point: %+v", points[0].Point)
	}
}

func TestRoute(t *testing.T) {
	apiKey := "test-api-key"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != "/routing/7.0.0/global" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != apiKey {
			t.Fatalf("unexpected key param: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"result":[{"status":"OK","total_distance":15300,"total_duration":1260,
			"maneuvers":[{"outcoming_path":{"geometry":[
				{"selection":"LINESTRING(76.91 43.25, 76.92 43.26)"},
				{"selection":"LINESTRING(76.92 43.26, 76.95 43.28)"}
			]}}]}]}`)
	}))
	defer server.Close()

	client := NewDGISClient(newTestHTTPClient(t, server), passLimiter{}, apiKey, "", 0)
	dist, dur, geometry, err := client.Route(context.Background(), Point{Lat: 43.25, Lon: 76.91}, Point{Lat: 43.28, Lon: 76.95})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dist != 15300 || dur != 1260 {
		t.Fatalf("unexpected result: dist=%d dur=%d", dist, dur)
	}
	if len(geometry) != 4 {
		t.Fatalf("expected 4 geometry points, got %d", len(geometry))
	}
	if geometry[0].Lon != 76.91 || geometry[0].Lat != 43.25 {
		t.Fatalf("unexpected first geometry point: %+v", geometry[0])
	}
}

func TestRouteNoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewDGISClient(newTestHTTPClient(t, server), passLimiter{}, "k", "", 0)
	_, _, _, err := client.Route(context.Background(), Point{Lat: 43.25, Lon: 76.91}, Point{Lat: 43.28, Lon: 76.95})
	if err == nil || !strings.Contains(err.Error(), "route not found") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRouteInvalidCoordinates(t *testing.T) {
	client := NewDGISClient(nil, passLimiter{}, "k", "", 0)
	if _, _, _, err := client.Route(context.Background(), Point{Lat: 99, Lon: 0}, Point{Lat: 43, Lon: 76}); err == nil {
		t.Fatal("expected error for out-of-range latitude")
	}
}

func TestParseLineString(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantLen int
		wantErr bool
	}{
		{"ok", "LINESTRING(76.91 43.25, 76.92 43.26)", 2, false},
		{"not linestring", "POINT(76.91 43.25)", 0, true},
		{"malformed pair", "LINESTRING(76.91)", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pts, err := parseLineString(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(pts) != tc.wantLen {
				t.Fatalf("expected %d points, got %d", tc.wantLen, len(pts))
			}
		})
	}
}
