package ports

import (
	"context"
	"errors"

	"truck-dispatch-service/internal/domain"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a conditional write lost a race: the job was
	// already taken, the truck filled up, or the driver was paired elsewhere.
	ErrConflict = errors.New("conflicting update")
)

// Port: the data store the dispatch engine reads from and writes to.
// Entity lifecycle belongs to the CRUD layer; the engine only updates
// assignment fields.
type DispatchStore interface {
	// Incomplete jobs without a truck, highest priority first, with location
	// and items loaded.
	ListUnassignedJobs(ctx context.Context) ([]domain.Job, error)

	// Active trucks with their drivers loaded.
	ListActiveTrucks(ctx context.Context) ([]domain.Truck, error)

	// Number of assigned, incomplete jobs held by a truck.
	CountOpenJobs(ctx context.Context, truckID int64) (int, error)

	// Assigned, incomplete jobs held by a truck, highest priority first,
	// with location loaded.
	ListOpenJobs(ctx context.Context, truckID int64) ([]domain.Job, error)

	// First AVAILABLE driver whose affinity is one of classes; nil when none.
	FindAvailableDriver(ctx context.Context, classes []domain.SizeClass) (*domain.Driver, error)

	// Atomically pair a driver with a truck: driver -> ASSIGNED + truck,
	// truck -> driver + IN_TRANSIT. ErrConflict if either side changed.
	PairDriverWithTruck(ctx context.Context, driverID, truckID int64) error

	// Assign a job to a truck (and optional driver) if the job is still
	// unassigned and the truck holds fewer than maxOpen open jobs.
	// ErrConflict otherwise.
	AssignJob(ctx context.Context, jobID, truckID int64, driverID *int64, maxOpen int) error
}
