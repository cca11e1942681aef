package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"truck-dispatch-service/internal/platform/metrics"
	"truck-dispatch-service/internal/ports"
)

// ErrRunInProgress is returned when another instance holds the run lock.
var ErrRunInProgress = errors.New("optimization run already in progress")

// Runner executes one optimization pass.
type Runner interface {
	Run(ctx context.Context) (AssignmentResult, error)
}

// Dispatcher serializes optimization runs. Concurrent callers in this process
// share a single run; across processes the run lock admits one run at a time.
type Dispatcher struct {
	runner Runner
	locker ports.RunLocker
	group  singleflight.Group
}

func NewDispatcher(runner Runner, locker ports.RunLocker) *Dispatcher {
	return &Dispatcher{runner: runner, locker: locker}
}

const optimizeKey = "optimize"

// Optimize runs the assignment engine once. A caller whose ctx ends stops
// waiting, but the shared run continues for the others.
func (d *Dispatcher) Optimize(ctx context.Context) (AssignmentResult, error) {
	runCtx := context.WithoutCancel(ctx)

	ch := d.group.DoChan(optimizeKey, func() (any, error) {
		return d.run(runCtx)
	})

	select {
	case <-ctx.Done():
		return AssignmentResult{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return AssignmentResult{}, res.Err
		}
		return res.Val.(AssignmentResult), nil
	}
}

func (d *Dispatcher) run(ctx context.Context) (AssignmentResult, error) {
	log := zerolog.Ctx(ctx)
	start := time.Now()

	release, acquired, err := d.locker.TryLock(ctx)
	if err != nil {
		metrics.DispatchRuns.WithLabelValues("error").Inc()
		return AssignmentResult{}, fmt.Errorf("optimize: %w", err)
	}
	if !acquired {
		metrics.DispatchRuns.WithLabelValues("busy").Inc()
		return AssignmentResult{}, ErrRunInProgress
	}
	defer func() {
		if err := release(ctx); err != nil {
			log.Warn().Err(err).Msg("run lock release failed")
		}
	}()

	res, err := d.runner.Run(ctx)
	metrics.DispatchRunDuration.Observe(time.Since(start).Seconds())
	metrics.DispatchAssignments.Add(float64(res.AssignedCount))
	if err != nil {
		metrics.DispatchRuns.WithLabelValues("error").Inc()
		return AssignmentResult{}, err
	}
	metrics.DispatchRuns.WithLabelValues("ok").Inc()

	log.Info().
		Int("total_jobs", res.TotalJobs).
		Int("assigned", res.AssignedCount).
		Int("skipped", len(res.Skipped)).
		Dur("took", time.Since(start)).
		Msg("optimization run finished")

	return res, nil
}
