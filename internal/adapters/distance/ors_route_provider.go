package distance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"truck-dispatch-service/internal/domain"
	"truck-dispatch-service/internal/platform/metrics"
	"truck-dispatch-service/internal/platform/obs"
	"truck-dispatch-service/internal/ports"
)

// ORSRouteProvider implements ports.RouteProvider using the OpenRouteService
// directions API.
//
// It coordinates:
//   - Persistent route caching keyed by waypoint chain
//   - Outbound rate limiting
//   - External API calls with retry/backoff
//
// The provider is safe for concurrent use.
type ORSRouteProvider struct {
	session      *http.Client
	apiKey       string
	baseURL      string
	profile      string
	limiter      *rate.Limiter
	retry        *RetryPolicy
	routeCache   ports.RouteCache
	geocodeCache GeocodeCache
	log          zerolog.Logger
}

// GeocodeCache is the batch address cache consulted before geocoding.
type GeocodeCache interface {
	GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error)
	PutMany(ctx context.Context, results map[string]domain.Coordinates) error
}

type ORSOption func(*ORSRouteProvider)

func WithBaseURL(u string) ORSOption {
	return func(o *ORSRouteProvider) { o.baseURL = strings.TrimRight(u, "/") }
}

func WithProfile(p string) ORSOption {
	return func(o *ORSRouteProvider) { o.profile = p }
}

func WithHTTPClient(c *http.Client) ORSOption {
	return func(o *ORSRouteProvider) { o.session = c }
}

// WithRateLimit caps outbound requests; perSec <= 0 disables limiting.
func WithRateLimit(perSec float64, burst int) ORSOption {
	return func(o *ORSRouteProvider) {
		if perSec <= 0 {
			o.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

func WithRetryPolicy(p *RetryPolicy) ORSOption {
	return func(o *ORSRouteProvider) { o.retry = p }
}

func WithRouteCache(c ports.RouteCache) ORSOption {
	return func(o *ORSRouteProvider) { o.routeCache = c }
}

func WithGeocodeCache(c GeocodeCache) ORSOption {
	return func(o *ORSRouteProvider) { o.geocodeCache = c }
}

func WithLogger(l zerolog.Logger) ORSOption {
	return func(o *ORSRouteProvider) { o.log = l }
}

func NewORSRouteProvider(apiKey string, opts ...ORSOption) (*ORSRouteProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ORS api key is empty")
	}

	provider := &ORSRouteProvider{
		session: &http.Client{Timeout: 10 * time.Second},
		apiKey:  apiKey,
		baseURL: "https://api.openrouteservice.org",
		profile: "driving-car",
		retry:   NewRetryPolicy(uint64(time.Now().UnixNano())),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(provider)
	}

	return provider, nil
}

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Routes []struct {
		Summary struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"summary"`
		Segments []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"segments"`
		Geometry string `json:"geometry"`
	} `json:"routes"`
}

// RouteKey builds the cache key for a waypoint chain at polyline precision.
func RouteKey(profile string, points []domain.Coordinates) string {
	var sb strings.Builder
	sb.WriteString("route:")
	sb.WriteString(profile)
	for i, p := range points {
		if i == 0 {
			sb.WriteByte(':')
		} else {
			sb.WriteByte(';')
		}
		sb.WriteString(strconv.FormatFloat(p.Lat, 'f', 5, 64))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(p.Lon, 'f', 5, 64))
	}
	return sb.String()
}

// Route requests a driving route through points in order.
// ports.ErrNoRoute is returned when the response holds no usable route.
func (o *ORSRouteProvider) Route(
	ctx context.Context,
	points []domain.Coordinates,
) (_ ports.RouteResult, err error) {
	defer obs.Time(ctx, "ors.Route")(&err)

	if len(points) < 2 {
		return ports.RouteResult{}, errors.New("ors route: at least two points are required")
	}
	for i, p := range points {
		if !p.Valid() {
			return ports.RouteResult{}, fmt.Errorf("ors route: invalid coordinate at index %d", i)
		}
	}

	key := RouteKey(o.profile, points)

	// Check persistent route cache before issuing external API calls.
	if o.routeCache != nil {
		cached, ok, err := o.routeCache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.RouteCacheLookups.WithLabelValues("error").Inc()
			o.log.Warn().Err(err).Msg("route cache read failed")
		case ok:
			metrics.RouteCacheLookups.WithLabelValues("hit").Inc()
			return cached, nil
		default:
			metrics.RouteCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	result, err := o.fetchDirections(ctx, points)
	if err != nil {
		return ports.RouteResult{}, err
	}

	if o.routeCache != nil {
		if err := o.routeCache.Put(ctx, key, result); err != nil {
			o.log.Warn().Err(err).Msg("route cache write failed")
		}
	}

	return result, nil
}

func (o *ORSRouteProvider) fetchDirections(
	ctx context.Context,
	points []domain.Coordinates,
) (ports.RouteResult, error) {
	endpoint := fmt.Sprintf("%s/v2/directions/%s", o.baseURL, o.profile)

	coords := make([][]float64, 0, len(points))
	for _, p := range points {
		coords = append(coords, p.CoordsToList())
	}

	payload, err := json.Marshal(directionsRequest{Coordinates: coords})
	if err != nil {
		return ports.RouteResult{}, fmt.Errorf("marshal directions request: %w", err)
	}

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		return o.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return ports.RouteResult{}, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return ports.RouteResult{}, fmt.Errorf("decode directions response: %w", err)
	}

	if len(dr.Routes) == 0 {
		return ports.RouteResult{}, ports.ErrNoRoute
	}
	route := dr.Routes[0]

	legs := make([]ports.RouteLeg, 0, len(route.Segments))
	for _, s := range route.Segments {
		legs = append(legs, ports.RouteLeg{DistanceMeters: s.Distance, DurationSeconds: s.Duration})
	}

	// Some profiles omit segments; the summary still covers the whole chain.
	if len(legs) == 0 {
		if route.Summary.Distance <= 0 {
			return ports.RouteResult{}, ports.ErrNoRoute
		}
		legs = append(legs, ports.RouteLeg{
			DistanceMeters:  route.Summary.Distance,
			DurationSeconds: route.Summary.Duration,
		})
	}

	return ports.RouteResult{Legs: legs, Geometry: route.Geometry}, nil
}
