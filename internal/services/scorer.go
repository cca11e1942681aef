package services

import (
	"context"
	"fmt"
	"math"

	"truck-dispatch-service/internal/domain"
)

const (
	capacityWeight = 0.4
	distanceWeight = 0.4
	sizeWeight     = 0.2

	// Assumed distance when either side has no position.
	unknownDistanceKm = 50.0
	// Distance at which the distance score reaches zero.
	distanceHorizonKm = 100.0
	// Penalty factor for a SMALL truck on a large-truck-only job.
	smallTruckPenalty = 0.5
)

// DistanceSource resolves the travel distance between two points in km.
type DistanceSource interface {
	ResolveDistance(ctx context.Context, origin, destination domain.Coordinates) float64
}

// ScoreOutcome carries either a suitability score in [0, 1] or the reason the
// pair could not be scored.
type ScoreOutcome struct {
	Score float64
	Err   error
}

type Scorer struct {
	distances DistanceSource
}

func NewScorer(distances DistanceSource) *Scorer {
	return &Scorer{distances: distances}
}

// Score rates how well truck fits job. Higher is better.
func (s *Scorer) Score(ctx context.Context, truck *domain.Truck, job *domain.Job) ScoreOutcome {
	if truck == nil || job == nil {
		return ScoreOutcome{Err: fmt.Errorf("score: truck and job must be non-nil")}
	}
	if !truck.SizeClass.Valid() {
		return ScoreOutcome{Err: fmt.Errorf("score truck %d: invalid size class %q", truck.ID, truck.SizeClass)}
	}

	maxWeight := domain.Finite(truck.MaxWeightLbs)
	capacity := domain.Finite(truck.CapacityCuFt)
	if maxWeight < 0 || capacity < 0 {
		return ScoreOutcome{Err: fmt.Errorf("score truck %d: negative capacity", truck.ID)}
	}

	load := domain.ComputeLoad(job)
	weightScore := math.Min(1, maxWeight/math.Max(1, load.WeightLbs))
	volumeScore := math.Min(1, capacity/math.Max(1, load.VolumeCuFt))
	capacityScore := (weightScore + volumeScore) / 2

	sizePenalty := 1.0
	if job.LargeTruckOnly && truck.SizeClass == domain.SizeSmall {
		sizePenalty = smallTruckPenalty
	}

	distanceKm := unknownDistanceKm
	if pos, ok := job.Position(); ok && truck.LastKnown != nil {
		distanceKm = s.distances.ResolveDistance(ctx, *truck.LastKnown, pos)
	}
	distanceScore := math.Max(0, 1-distanceKm/distanceHorizonKm)

	score := capacityWeight*capacityScore + distanceWeight*distanceScore + sizeWeight*sizePenalty
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return ScoreOutcome{Err: fmt.Errorf("score truck %d job %d: non-finite result", truck.ID, job.ID)}
	}

	return ScoreOutcome{Score: score}
}
