package ports

import (
	"context"
	"errors"

	"truck-dispatch-service/internal/domain"
)

// ErrNoRoute is returned by a RouteProvider whose response held no usable
// route for the requested waypoints.
var ErrNoRoute = errors.New("no usable route")

// Distance and travel duration of one leg between consecutive waypoints.
type RouteLeg struct {
	DistanceMeters  float64
	DurationSeconds float64
}

// RouteResult is the answer to a route request over an ordered waypoint
// chain. Estimated is set when the legs are straight-line estimates, in which
// case durations are zero and Geometry is empty.
type RouteResult struct {
	Legs      []RouteLeg
	Geometry  string
	Estimated bool
}

// DistanceMeters sums the leg distances.
func (r RouteResult) DistanceMeters() float64 {
	total := 0.0
	for _, l := range r.Legs {
		total += l.DistanceMeters
	}
	return total
}

// DurationSeconds sums the leg durations.
func (r RouteResult) DurationSeconds() float64 {
	total := 0.0
	for _, l := range r.Legs {
		total += l.DurationSeconds
	}
	return total
}

// Contract for routing a truck through an ordered list of waypoints
// (origin, interior waypoints, destination).
type RouteProvider interface {
	Route(ctx context.Context, points []domain.Coordinates) (RouteResult, error)
}
