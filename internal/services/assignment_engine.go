package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/rs/zerolog"

	"truck-dispatch-service/internal/domain"
	"truck-dispatch-service/internal/platform/obs"
	"truck-dispatch-service/internal/ports"
)

// Assignment is one committed job-to-truck decision.
type Assignment struct {
	JobID      int64   `json:"jobId"`
	Title      string  `json:"title"`
	TruckID    int64   `json:"truckId"`
	TruckName  string  `json:"truckName"`
	DriverName string  `json:"driverName"`
	Score      float64 `json:"score"`
}

// Skip records a candidate or commit that was passed over, with the reason.
type Skip struct {
	JobID   int64  `json:"jobId"`
	TruckID int64  `json:"truckId,omitempty"`
	Reason  string `json:"reason"`
}

// AssignmentResult summarizes one optimization run.
type AssignmentResult struct {
	TotalJobs     int          `json:"totalJobs"`
	AssignedCount int          `json:"assigned"`
	Assignments   []Assignment `json:"assignments"`
	Skipped       []Skip       `json:"skipped"`
}

type EngineOptions struct {
	// AvailableOnly restricts the candidate pool to trucks whose status is
	// AVAILABLE. By default every active truck is a candidate.
	AvailableOnly bool
}

// AssignmentEngine greedily assigns unassigned jobs, highest priority first,
// to the best-scoring eligible truck. It is not globally optimal.
type AssignmentEngine struct {
	store  ports.DispatchStore
	scorer *Scorer
	opts   EngineOptions
}

func NewAssignmentEngine(store ports.DispatchStore, scorer *Scorer, opts EngineOptions) *AssignmentEngine {
	return &AssignmentEngine{store: store, scorer: scorer, opts: opts}
}

type candidate struct {
	truck int
	score float64
}

// selectBest folds candidates into the highest score. Comparison is strictly
// greater, so the first candidate seen wins a tie.
func selectBest(cands []candidate) (candidate, bool) {
	if len(cands) == 0 {
		return candidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.score > best.score {
			best = c
		}
	}
	return best, true
}

func eligible(t *domain.Truck, open int, job *domain.Job) bool {
	if open >= domain.MaxOpenJobs {
		return false
	}
	if job.RequiredSizeClass != nil && !t.SizeClass.Satisfies(*job.RequiredSizeClass) {
		return false
	}
	return true
}

func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}

func driverClasses(c domain.SizeClass) []domain.SizeClass {
	if c == domain.SizeMedium {
		return []domain.SizeClass{domain.SizeMedium}
	}
	return []domain.SizeClass{c, domain.SizeMedium}
}

// Run executes one optimization pass. It returns an error only when a store
// read fails up front or a commit fails for a reason other than a lost race;
// assignments committed before the failure stay committed.
func (e *AssignmentEngine) Run(ctx context.Context) (_ AssignmentResult, err error) {
	defer obs.Time(ctx, "engine.Run")(&err)
	log := zerolog.Ctx(ctx)

	jobs, err := e.store.ListUnassignedJobs(ctx)
	if err != nil {
		return AssignmentResult{}, fmt.Errorf("optimize: list unassigned jobs: %w", err)
	}
	slices.SortStableFunc(jobs, func(a, b domain.Job) int { return cmp.Compare(b.Priority, a.Priority) })

	all, err := e.store.ListActiveTrucks(ctx)
	if err != nil {
		return AssignmentResult{}, fmt.Errorf("optimize: list active trucks: %w", err)
	}
	trucks := make([]domain.Truck, 0, len(all))
	for _, t := range all {
		if e.opts.AvailableOnly && t.Status != domain.TruckAvailable {
			continue
		}
		trucks = append(trucks, t)
	}

	open := make([]int, len(trucks))
	for i, t := range trucks {
		n, err := e.store.CountOpenJobs(ctx, t.ID)
		if err != nil {
			return AssignmentResult{}, fmt.Errorf("optimize: count open jobs truck=%d: %w", t.ID, err)
		}
		open[i] = n
	}

	result := AssignmentResult{
		TotalJobs:   len(jobs),
		Assignments: []Assignment{},
		Skipped:     []Skip{},
	}

	for ji := range jobs {
		job := &jobs[ji]

		cands := make([]candidate, 0, len(trucks))
		for ti := range trucks {
			t := &trucks[ti]
			if !eligible(t, open[ti], job) {
				continue
			}

			out := e.scorer.Score(ctx, t, job)
			if out.Err != nil {
				log.Warn().Err(out.Err).Int64("job_id", job.ID).Int64("truck_id", t.ID).Msg("candidate skipped")
				result.Skipped = append(result.Skipped, Skip{JobID: job.ID, TruckID: t.ID, Reason: out.Err.Error()})
				continue
			}
			cands = append(cands, candidate{truck: ti, score: out.Score})
		}

		best, ok := selectBest(cands)
		if !ok {
			log.Debug().Int64("job_id", job.ID).Msg("no eligible truck")
			continue
		}

		a, skip, err := e.commit(ctx, job, &trucks[best.truck], best.score)
		if err != nil {
			return result, err
		}
		if skip != nil {
			result.Skipped = append(result.Skipped, *skip)
			// The truck may have filled up behind our back.
			n, err := e.store.CountOpenJobs(ctx, trucks[best.truck].ID)
			if err != nil {
				return result, fmt.Errorf("optimize: recount open jobs truck=%d: %w", trucks[best.truck].ID, err)
			}
			open[best.truck] = n
			continue
		}

		open[best.truck]++
		result.Assignments = append(result.Assignments, a)
		result.AssignedCount++
	}

	return result, nil
}

// commit pairs a driver if the truck has none, then assigns the job. A lost
// compare-and-set on the job yields a Skip instead of an error.
func (e *AssignmentEngine) commit(
	ctx context.Context,
	job *domain.Job,
	truck *domain.Truck,
	score float64,
) (Assignment, *Skip, error) {
	log := zerolog.Ctx(ctx)

	if truck.Driver == nil {
		d, err := e.store.FindAvailableDriver(ctx, driverClasses(truck.SizeClass))
		if err != nil {
			return Assignment{}, nil, fmt.Errorf("optimize: find driver for truck=%d: %w", truck.ID, err)
		}
		if d != nil {
			err := e.store.PairDriverWithTruck(ctx, d.ID, truck.ID)
			switch {
			case errors.Is(err, ports.ErrConflict):
				log.Warn().Err(err).Int64("driver_id", d.ID).Int64("truck_id", truck.ID).Msg("driver pairing lost a race")
			case err != nil:
				return Assignment{}, nil, fmt.Errorf("optimize: pair driver=%d truck=%d: %w", d.ID, truck.ID, err)
			default:
				truck.AttachDriver(d)
			}
		}
	}

	var driverID *int64
	if truck.Driver != nil {
		id := truck.Driver.ID
		driverID = &id
	}

	err := e.store.AssignJob(ctx, job.ID, truck.ID, driverID, domain.MaxOpenJobs)
	if errors.Is(err, ports.ErrConflict) {
		log.Warn().Err(err).Int64("job_id", job.ID).Int64("truck_id", truck.ID).Msg("assignment lost a race")
		return Assignment{}, &Skip{JobID: job.ID, TruckID: truck.ID, Reason: err.Error()}, nil
	}
	if err != nil {
		return Assignment{}, nil, fmt.Errorf("optimize: assign job=%d truck=%d: %w", job.ID, truck.ID, err)
	}

	log.Info().Int64("job_id", job.ID).Str("truck", truck.Name).Float64("score", score).Msg("job assigned")

	return Assignment{
		JobID:      job.ID,
		Title:      job.Title,
		TruckID:    truck.ID,
		TruckName:  truck.Name,
		DriverName: truck.DriverName(),
		Score:      roundScore(score),
	}, nil, nil
}
