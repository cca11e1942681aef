package services

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog"

	"truck-dispatch-service/internal/domain"
	"truck-dispatch-service/internal/platform/metrics"
	"truck-dispatch-service/internal/ports"
)

// DistanceResolver turns routing-provider answers into kilometers and route
// summaries. It never fails: when the provider errors or has no usable
// route, it falls back to great-circle distance.
type DistanceResolver struct {
	provider ports.RouteProvider
}

func NewDistanceResolver(provider ports.RouteProvider) *DistanceResolver {
	return &DistanceResolver{provider: provider}
}

func fallbackReason(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, ports.ErrNoRoute):
		return "no_route"
	case ctx.Err() != nil:
		return "canceled"
	default:
		return "provider_error"
	}
}

// route asks the provider and validates the answer. ok is false when the
// caller must fall back.
func (r *DistanceResolver) route(ctx context.Context, points []domain.Coordinates) (ports.RouteResult, bool) {
	if r.provider == nil {
		return ports.RouteResult{}, false
	}

	res, err := r.provider.Route(ctx, points)
	if err != nil {
		reason := fallbackReason(ctx, err)
		metrics.RoutingFallbacks.WithLabelValues(reason).Inc()
		zerolog.Ctx(ctx).Warn().Err(err).Str("reason", reason).Int("points", len(points)).
			Msg("routing failed, using great-circle distance")
		return ports.RouteResult{}, false
	}

	meters := res.DistanceMeters()
	if math.IsNaN(meters) || math.IsInf(meters, 0) || meters < 0 {
		metrics.RoutingFallbacks.WithLabelValues("invalid_result").Inc()
		zerolog.Ctx(ctx).Warn().Float64("meters", meters).Msg("routing returned an invalid distance, using great-circle distance")
		return ports.RouteResult{}, false
	}

	return res, true
}

// ResolveDistance returns the driving distance in km between two points, or
// the great-circle distance when routing is unavailable.
func (r *DistanceResolver) ResolveDistance(ctx context.Context, origin, destination domain.Coordinates) float64 {
	if res, ok := r.route(ctx, []domain.Coordinates{origin, destination}); ok {
		return res.DistanceMeters() / 1000
	}
	return origin.DistanceKm(destination)
}

// ResolvePath summarizes a route through points in order. Fewer than two
// points yield a zero summary without calling the provider.
func (r *DistanceResolver) ResolvePath(ctx context.Context, points []domain.Coordinates) domain.RouteSummary {
	if len(points) < 2 {
		return domain.RouteSummary{Source: domain.SourceGreatCircle}
	}

	res, ok := r.route(ctx, points)
	if !ok || res.Estimated {
		dist := domain.PathDistanceKm(points)
		if ok {
			dist = res.DistanceMeters() / 1000
		}
		return domain.RouteSummary{DistanceKm: dist, Source: domain.SourceGreatCircle}
	}

	minutes := res.DurationSeconds() / 60
	summary := domain.RouteSummary{
		DistanceKm:  res.DistanceMeters() / 1000,
		DurationMin: &minutes,
		Source:      domain.SourceRoutingService,
	}
	if res.Geometry != "" {
		geometry := res.Geometry
		summary.Polyline = &geometry
	}
	return summary
}
