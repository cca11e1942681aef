//go:build postgres_integration

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truck-dispatch-service/internal/domain"
	"truck-dispatch-service/internal/ports"
)

// Run with: TEST_DATABASE_URL=postgres://... go test -tags postgres_integration ./...
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("pgx", url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, InitSchema(context.Background(), db))
	return db
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	f, err := LoadFixture(seedPath(t))
	require.NoError(t, err)
	require.NoError(t, SeedFixture(ctx, db, f))

	store := NewPostgresDispatchStore(db)

	jobs, err := store.ListUnassignedJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "Bulk Delivery", jobs[0].Title)
	require.NotNil(t, jobs[0].RequiredSizeClass)
	assert.Equal(t, domain.SizeLarge, *jobs[0].RequiredSizeClass)
	assert.Len(t, jobs[0].Items, 1)

	trucks, err := store.ListActiveTrucks(ctx)
	require.NoError(t, err)
	require.Len(t, trucks, 3)
	assert.Equal(t, "John Doe", trucks[0].DriverName())
	truck2 := trucks[1]

	d, err := store.FindAvailableDriver(ctx, []domain.SizeClass{domain.SizeLarge, domain.SizeMedium})
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "Jane Smith", d.Name)

	require.NoError(t, store.PairDriverWithTruck(ctx, d.ID, truck2.ID))
	assert.ErrorIs(t, store.PairDriverWithTruck(ctx, d.ID, truck2.ID), ports.ErrConflict)

	require.NoError(t, store.AssignJob(ctx, jobs[0].ID, truck2.ID, &d.ID, 1))
	assert.ErrorIs(t, store.AssignJob(ctx, jobs[1].ID, truck2.ID, &d.ID, 1), ports.ErrConflict)

	n, err := store.CountOpenJobs(ctx, truck2.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	open, err := store.ListOpenJobs(ctx, truck2.ID)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, jobs[0].ID, open[0].ID)
}

func TestPostgresAssignJobHoldsCapUnderConcurrency(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	f, err := LoadFixture(seedPath(t))
	require.NoError(t, err)
	require.NoError(t, SeedFixture(ctx, db, f))

	store := NewPostgresDispatchStore(db)
	jobs, err := store.ListUnassignedJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	trucks, err := store.ListActiveTrucks(ctx)
	require.NoError(t, err)
	truck := trucks[1]

	// Each job is distinct, so only the truck lock keeps the cap at 2.
	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = store.AssignJob(ctx, j.ID, truck.ID, nil, 2)
		}()
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ports.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, conflicts)

	n, err := store.CountOpenJobs(ctx, truck.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPostgresAssignJobUnknownTruck(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	f, err := LoadFixture(seedPath(t))
	require.NoError(t, err)
	require.NoError(t, SeedFixture(ctx, db, f))

	store := NewPostgresDispatchStore(db)
	jobs, err := store.ListUnassignedJobs(ctx)
	require.NoError(t, err)

	err = store.AssignJob(ctx, jobs[0].ID, -1, nil, 3)
	assert.ErrorIs(t, err, ports.ErrNotFound)
}
