package distance

import (
	"context"
	"errors"

	"truck-dispatch-service/internal/domain"
	"truck-dispatch-service/internal/ports"
)

// GreatCircleProvider estimates routes as straight haversine legs. It never
// calls out and never fails for two or more points.
type GreatCircleProvider struct{}

func (GreatCircleProvider) Route(_ context.Context, points []domain.Coordinates) (ports.RouteResult, error) {
	if len(points) < 2 {
		return ports.RouteResult{}, errors.New("great circle route: at least two points are required")
	}

	legs := make([]ports.RouteLeg, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		legs = append(legs, ports.RouteLeg{DistanceMeters: points[i-1].DistanceKm(points[i]) * 1000})
	}

	return ports.RouteResult{Legs: legs, Estimated: true}, nil
}
