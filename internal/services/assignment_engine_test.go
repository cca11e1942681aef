package services

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truck-dispatch-service/internal/adapters/distance"
	"truck-dispatch-service/internal/adapters/repositories"
	"truck-dispatch-service/internal/domain"
	"truck-dispatch-service/internal/ports"
)

func newEngine(store ports.DispatchStore) *AssignmentEngine {
	scorer := NewScorer(NewDistanceResolver(distance.GreatCircleProvider{}))
	return NewAssignmentEngine(store, scorer, EngineOptions{})
}

func sizeClass(c domain.SizeClass) *domain.SizeClass { return &c }

func TestRunTieGoesToFirstTruck(t *testing.T) {
	store := repositories.NewMemoryDispatchStore()
	t1 := store.AddTruck(domain.Truck{Name: "T1", SizeClass: domain.SizeSmall, IsActive: true, Status: domain.TruckAvailable, CapacityCuFt: 100, MaxWeightLbs: 100})
	store.AddTruck(domain.Truck{Name: "T2", SizeClass: domain.SizeMedium, IsActive: true, Status: domain.TruckAvailable, CapacityCuFt: 100, MaxWeightLbs: 100})
	j1 := store.AddJob(domain.Job{Title: "J1", Priority: 5, RequiredSizeClass: sizeClass(domain.SizeSmall)})

	res, err := newEngine(store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.TotalJobs)
	assert.Equal(t, 1, res.AssignedCount)
	require.Len(t, res.Assignments, 1)
	a := res.Assignments[0]
	assert.Equal(t, j1, a.JobID)
	assert.Equal(t, "T1", a.TruckName)
	assert.Equal(t, "Unassigned", a.DriverName)
	assert.Equal(t, 0.8, a.Score)

	job, err := store.Job(j1)
	require.NoError(t, err)
	require.NotNil(t, job.AssignedTruckID)
	assert.Equal(t, t1, *job.AssignedTruckID)
	assert.Nil(t, job.AssignedDriverID)
}

func TestSelectBestFirstSeenWinsTies(t *testing.T) {
	best, ok := selectBest([]candidate{{truck: 0, score: 0.5}, {truck: 1, score: 0.7}, {truck: 2, score: 0.7}})
	require.True(t, ok)
	assert.Equal(t, 1, best.truck)

	_, ok = selectBest(nil)
	assert.False(t, ok)
}

func TestRunAttemptsHighestPriorityFirst(t *testing.T) {
	store := repositories.NewMemoryDispatchStore()
	truck := store.AddTruck(domain.Truck{Name: "Only", SizeClass: domain.SizeMedium, IsActive: true, CapacityCuFt: 100, MaxWeightLbs: 100})
	// Two open jobs leave room for exactly one more.
	for range 2 {
		id := store.AddJob(domain.Job{Title: "busy"})
		require.NoError(t, store.AssignJob(context.Background(), id, truck, nil, 3))
	}

	store.AddJob(domain.Job{Title: "p1", Priority: 1})
	p5 := store.AddJob(domain.Job{Title: "p5", Priority: 5})
	store.AddJob(domain.Job{Title: "p3", Priority: 3})

	res, err := newEngine(store).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalJobs)
	require.Len(t, res.Assignments, 1)
	assert.Equal(t, p5, res.Assignments[0].JobID)
}

func TestRunOrdersExtremePriorities(t *testing.T) {
	store := repositories.NewMemoryDispatchStore()
	truck := store.AddTruck(domain.Truck{Name: "Only", SizeClass: domain.SizeMedium, IsActive: true, CapacityCuFt: 100, MaxWeightLbs: 100})
	for range 2 {
		id := store.AddJob(domain.Job{Title: "busy"})
		require.NoError(t, store.AssignJob(context.Background(), id, truck, nil, 3))
	}

	store.AddJob(domain.Job{Title: "low", Priority: -2})
	high := store.AddJob(domain.Job{Title: "high", Priority: math.MaxInt})

	res, err := newEngine(store).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Assignments, 1)
	assert.Equal(t, high, res.Assignments[0].JobID)
	assert.Equal(t, "high", res.Assignments[0].Title)
}

func TestRunNeverSelectsFullTruck(t *testing.T) {
	store := repositories.NewMemoryDispatchStore()
	ctx := context.Background()

	// The full truck sits on top of the job and would otherwise score highest.
	full := store.AddTruck(domain.Truck{Name: "Full", SizeClass: domain.SizeMedium, IsActive: true, CapacityCuFt: 1000, MaxWeightLbs: 1000, LastKnown: &nyc})
	store.AddTruck(domain.Truck{Name: "Far", SizeClass: domain.SizeMedium, IsActive: true, CapacityCuFt: 1, MaxWeightLbs: 1})
	for range 3 {
		id := store.AddJob(domain.Job{Title: "busy"})
		require.NoError(t, store.AssignJob(ctx, id, full, nil, 3))
	}
	store.AddJob(domain.Job{Title: "next door", Location: &domain.Location{Coordinates: nyc}})

	res, err := newEngine(store).Run(ctx)
	require.NoError(t, err)
	require.Len(t, res.Assignments, 1)
	assert.Equal(t, "Far", res.Assignments[0].TruckName)
}

func TestRunRespectsOpenJobCap(t *testing.T) {
	store := repositories.NewMemoryDispatchStore()
	ctx := context.Background()
	truck := store.AddTruck(domain.Truck{Name: "T", SizeClass: domain.SizeLarge, IsActive: true})
	for range 5 {
		store.AddJob(domain.Job{Title: "j"})
	}

	res, err := newEngine(store).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, res.TotalJobs)
	assert.Equal(t, 3, res.AssignedCount)

	n, err := store.CountOpenJobs(ctx, truck)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxOpenJobs, n)
}

func TestRunSizeClassFilter(t *testing.T) {
	store := repositories.NewMemoryDispatchStore()
	store.AddTruck(domain.Truck{Name: "Small", SizeClass: domain.SizeSmall, IsActive: true, CapacityCuFt: 1e4, MaxWeightLbs: 1e4, LastKnown: &nyc})
	store.AddTruck(domain.Truck{Name: "Medium", SizeClass: domain.SizeMedium, IsActive: true})
	store.AddJob(domain.Job{Title: "bulk", RequiredSizeClass: sizeClass(domain.SizeLarge), Location: &domain.Location{Coordinates: nyc}})

	res, err := newEngine(store).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Assignments, 1)
	assert.Equal(t, "Medium", res.Assignments[0].TruckName)
}

func TestRunLeavesJobWithoutQualifyingTruck(t *testing.T) {
	store := repositories.NewMemoryDispatchStore()
	store.AddTruck(domain.Truck{Name: "Small", SizeClass: domain.SizeSmall, IsActive: true})
	id := store.AddJob(domain.Job{Title: "bulk", RequiredSizeClass: sizeClass(domain.SizeLarge)})

	res, err := newEngine(store).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalJobs)
	assert.Zero(t, res.AssignedCount)
	assert.Empty(t, res.Assignments)

	job, err := store.Job(id)
	require.NoError(t, err)
	assert.Nil(t, job.AssignedTruckID)
}

func TestRunPairsAvailableDriver(t *testing.T) {
	store := repositories.NewMemoryDispatchStore()
	ctx := context.Background()
	truck := store.AddTruck(domain.Truck{Name: "Big", SizeClass: domain.SizeLarge, IsActive: true, Status: domain.TruckAvailable})
	store.AddDriver(domain.Driver{Name: "Small Sam", Status: domain.DriverAvailable, SizeClass: domain.SizeSmall})
	jane := store.AddDriver(domain.Driver{Name: "Jane", Status: domain.DriverAvailable, SizeClass: domain.SizeMedium})
	job := store.AddJob(domain.Job{Title: "haul"})

	res, err := newEngine(store).Run(ctx)
	require.NoError(t, err)
	require.Len(t, res.Assignments, 1)
	assert.Equal(t, "Jane", res.Assignments[0].DriverName)

	tr, err := store.Truck(truck)
	require.NoError(t, err)
	assert.Equal(t, domain.TruckInTransit, tr.Status)
	require.NotNil(t, tr.Driver)
	assert.Equal(t, jane, tr.Driver.ID)

	j, err := store.Job(job)
	require.NoError(t, err)
	require.NotNil(t, j.AssignedDriverID)
	assert.Equal(t, jane, *j.AssignedDriverID)
}

func TestRunReportsScoringFailures(t *testing.T) {
	store := repositories.NewMemoryDispatchStore()
	broken := store.AddTruck(domain.Truck{Name: "Broken", SizeClass: "HUGE", IsActive: true})
	store.AddTruck(domain.Truck{Name: "Good", SizeClass: domain.SizeSmall, IsActive: true})
	job := store.AddJob(domain.Job{Title: "j"})

	res, err := newEngine(store).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Assignments, 1)
	assert.Equal(t, "Good", res.Assignments[0].TruckName)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, job, res.Skipped[0].JobID)
	assert.Equal(t, broken, res.Skipped[0].TruckID)
}

func TestRunAvailableOnly(t *testing.T) {
	store := repositories.NewMemoryDispatchStore()
	store.AddTruck(domain.Truck{Name: "Busy", SizeClass: domain.SizeMedium, IsActive: true, Status: domain.TruckInTransit})
	store.AddTruck(domain.Truck{Name: "Idle", SizeClass: domain.SizeMedium, IsActive: true, Status: domain.TruckAvailable})
	store.AddJob(domain.Job{Title: "j"})

	scorer := NewScorer(NewDistanceResolver(distance.GreatCircleProvider{}))
	res, err := NewAssignmentEngine(store, scorer, EngineOptions{AvailableOnly: true}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Assignments, 1)
	assert.Equal(t, "Idle", res.Assignments[0].TruckName)
}

// flakyStore fails AssignJob for selected jobs.
type flakyStore struct {
	*repositories.MemoryDispatchStore
	fail map[int64]error
}

func (s *flakyStore) AssignJob(ctx context.Context, jobID, truckID int64, driverID *int64, maxOpen int) error {
	if err, ok := s.fail[jobID]; ok {
		return err
	}
	return s.MemoryDispatchStore.AssignJob(ctx, jobID, truckID, driverID, maxOpen)
}

func TestRunSkipsLostRaces(t *testing.T) {
	mem := repositories.NewMemoryDispatchStore()
	mem.AddTruck(domain.Truck{Name: "T", SizeClass: domain.SizeMedium, IsActive: true})
	a := mem.AddJob(domain.Job{Title: "a", Priority: 2})
	b := mem.AddJob(domain.Job{Title: "b", Priority: 1})

	store := &flakyStore{MemoryDispatchStore: mem, fail: map[int64]error{a: ports.ErrConflict}}
	res, err := newEngine(store).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Assignments, 1)
	assert.Equal(t, b, res.Assignments[0].JobID)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, a, res.Skipped[0].JobID)
}

func TestRunAbortsOnPersistenceFailure(t *testing.T) {
	mem := repositories.NewMemoryDispatchStore()
	mem.AddTruck(domain.Truck{Name: "T", SizeClass: domain.SizeMedium, IsActive: true})
	first := mem.AddJob(domain.Job{Title: "first", Priority: 3})
	second := mem.AddJob(domain.Job{Title: "second", Priority: 2})
	third := mem.AddJob(domain.Job{Title: "third", Priority: 1})

	boom := errors.New("connection reset")
	store := &flakyStore{MemoryDispatchStore: mem, fail: map[int64]error{second: boom}}
	_, err := newEngine(store).Run(context.Background())
	require.ErrorIs(t, err, boom)

	j, err := mem.Job(first)
	require.NoError(t, err)
	assert.NotNil(t, j.AssignedTruckID, "earlier commit stays")

	j, err = mem.Job(third)
	require.NoError(t, err)
	assert.Nil(t, j.AssignedTruckID, "later jobs untried")
}
