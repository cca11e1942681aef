package distance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truck-dispatch-service/internal/domain"
	"truck-dispatch-service/internal/ports"
)

var (
	nyc    = domain.Coordinates{Lat: 40.7128, Lon: -74.0060}
	newark = domain.Coordinates{Lat: 40.7357, Lon: -74.1724}
)

func instantRetry() *RetryPolicy {
	p := NewRetryPolicy(1)
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

type memRouteCache struct {
	mu   sync.Mutex
	data map[string]ports.RouteResult
}

func (c *memRouteCache) Get(_ context.Context, key string) (ports.RouteResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.data[key]
	return r, ok, nil
}

func (c *memRouteCache) Put(_ context.Context, key string, r ports.RouteResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]ports.RouteResult{}
	}
	c.data[key] = r
	return nil
}

const directionsOK = `{"routes":[{"summary":{"distance":16000,"duration":1200},
"segments":[{"distance":16000,"duration":1200}],"geometry":"_p~iF~ps|U_ulLnnqC"}]}`

func newTestProvider(t *testing.T, url string, opts ...ORSOption) *ORSRouteProvider {
	t.Helper()
	opts = append([]ORSOption{WithBaseURL(url), WithRetryPolicy(instantRetry())}, opts...)
	p, err := NewORSRouteProvider("test-key", opts...)
	require.NoError(t, err)
	return p
}

func TestNewORSRouteProviderRequiresKey(t *testing.T) {
	_, err := NewORSRouteProvider("  ")
	assert.Error(t, err)
}

func TestRouteParsesDirections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/directions/driving-car", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))

		var body directionsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, [][]float64{{-74.0060, 40.7128}, {-74.1724, 40.7357}}, body.Coordinates)

		_, _ = w.Write([]byte(directionsOK))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	res, err := p.Route(context.Background(), []domain.Coordinates{nyc, newark})
	require.NoError(t, err)

	assert.False(t, res.Estimated)
	assert.Len(t, res.Legs, 1)
	assert.InDelta(t, 16000, res.DistanceMeters(), 1e-9)
	assert.InDelta(t, 1200, res.DurationSeconds(), 1e-9)
	assert.Equal(t, "_p~iF~ps|U_ulLnnqC", res.Geometry)
}

func TestRouteUsesSummaryWithoutSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"routes":[{"summary":{"distance":500,"duration":60}}]}`))
	}))
	defer srv.Close()

	res, err := newTestProvider(t, srv.URL).Route(context.Background(), []domain.Coordinates{nyc, newark})
	require.NoError(t, err)
	assert.InDelta(t, 500, res.DistanceMeters(), 1e-9)
}

func TestRouteNoRoutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"routes":[]}`))
	}))
	defer srv.Close()

	_, err := newTestProvider(t, srv.URL).Route(context.Background(), []domain.Coordinates{nyc, newark})
	assert.ErrorIs(t, err, ports.ErrNoRoute)
}

func TestRouteRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(directionsOK))
	}))
	defer srv.Close()

	res, err := newTestProvider(t, srv.URL).Route(context.Background(), []domain.Coordinates{nyc, newark})
	require.NoError(t, err)
	assert.InDelta(t, 16000, res.DistanceMeters(), 1e-9)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRouteGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestProvider(t, srv.URL).Route(context.Background(), []domain.Coordinates{nyc, newark})
	require.Error(t, err)

	var he *httpStatusError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusTooManyRequests, he.Code)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRouteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad coordinates", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestProvider(t, srv.URL).Route(context.Background(), []domain.Coordinates{nyc, newark})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRouteServedFromCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(directionsOK))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, WithRouteCache(&memRouteCache{}))
	points := []domain.Coordinates{nyc, newark}

	first, err := p.Route(context.Background(), points)
	require.NoError(t, err)
	second, err := p.Route(context.Background(), points)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRouteRejectsShortOrInvalidChains(t *testing.T) {
	p := newTestProvider(t, "http://127.0.0.1:0")

	_, err := p.Route(context.Background(), []domain.Coordinates{nyc})
	assert.Error(t, err)

	_, err = p.Route(context.Background(), []domain.Coordinates{nyc, {Lat: 91, Lon: 0}})
	assert.Error(t, err)
}

func TestRouteKeyRoundsToPolylinePrecision(t *testing.T) {
	a := RouteKey("driving-car", []domain.Coordinates{{Lat: 40.712801, Lon: -74.006}, newark})
	b := RouteKey("driving-car", []domain.Coordinates{{Lat: 40.712804, Lon: -74.006}, newark})
	assert.Equal(t, a, b)
	assert.Equal(t, "route:driving-car:40.71280,-74.00600;40.73570,-74.17240", a)
}

func TestBackoffGrowsWithinJitter(t *testing.T) {
	p := NewRetryPolicy(42)

	for attempt := 1; attempt <= 3; attempt++ {
		base := time.Duration(1<<attempt) * 250 * time.Millisecond
		d := p.Backoff(attempt)
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+250*time.Millisecond)
	}
}

func TestBackoffDeterministicForSeed(t *testing.T) {
	a, b := NewRetryPolicy(7), NewRetryPolicy(7)
	for attempt := 1; attempt <= 3; attempt++ {
		assert.Equal(t, a.Backoff(attempt), b.Backoff(attempt))
	}
}

func TestGreatCircleProvider(t *testing.T) {
	res, err := GreatCircleProvider{}.Route(context.Background(), []domain.Coordinates{nyc, newark, nyc})
	require.NoError(t, err)

	assert.True(t, res.Estimated)
	assert.Len(t, res.Legs, 2)
	assert.InDelta(t, 2*nyc.DistanceKm(newark)*1000, res.DistanceMeters(), 1e-6)
	assert.Zero(t, res.DurationSeconds())
}

type memGeocodeCache struct {
	data map[string]domain.Coordinates
}

func (c *memGeocodeCache) GetMany(_ context.Context, addrs []string) (map[string]domain.Coordinates, error) {
	out := map[string]domain.Coordinates{}
	for _, a := range addrs {
		if v, ok := c.data[a]; ok {
			out[a] = v
		}
	}
	return out, nil
}

func (c *memGeocodeCache) PutMany(_ context.Context, res map[string]domain.Coordinates) error {
	for k, v := range res {
		c.data[k] = v
	}
	return nil
}

func TestGeocodeManyUsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/geocode/search", r.URL.Path)
		assert.Equal(t, "1 Main St", r.URL.Query().Get("text"))
		_, _ = w.Write([]byte(`{"features":[{"geometry":{"coordinates":[-74.1,40.7]}}]}`))
	}))
	defer srv.Close()

	cache := &memGeocodeCache{data: map[string]domain.Coordinates{"Warehouse A": nyc}}
	p := newTestProvider(t, srv.URL, WithGeocodeCache(cache))

	out, err := p.GeocodeMany(context.Background(), []string{"Warehouse  A", "1 Main St", "1 Main St"})
	require.NoError(t, err)

	assert.Equal(t, nyc, out["Warehouse A"])
	assert.Equal(t, domain.Coordinates{Lon: -74.1, Lat: 40.7}, out["1 Main St"])
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, cache.data, "1 Main St")

	c, err := p.Geocode(context.Background(), "1 Main St")
	require.NoError(t, err)
	assert.Equal(t, 40.7, c.Lat)
	assert.Equal(t, int32(1), calls.Load())
}
