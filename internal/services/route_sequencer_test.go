package services

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truck-dispatch-service/internal/adapters/distance"
	"truck-dispatch-service/internal/adapters/repositories"
	"truck-dispatch-service/internal/domain"
	"truck-dispatch-service/internal/polyline"
	"truck-dispatch-service/internal/ports"
)

func assign(t *testing.T, store *repositories.MemoryDispatchStore, truck int64, job domain.Job) int64 {
	t.Helper()
	id := store.AddJob(job)
	require.NoError(t, store.AssignJob(context.Background(), id, truck, nil, domain.MaxOpenJobs))
	return id
}

func at(c domain.Coordinates) *domain.Location { return &domain.Location{Coordinates: c} }

func TestPlanRoutesOmitsIdleTrucks(t *testing.T) {
	store := repositories.NewMemoryDispatchStore()
	store.AddTruck(domain.Truck{Name: "Idle", SizeClass: domain.SizeSmall, IsActive: true})
	busy := store.AddTruck(domain.Truck{Name: "Busy", SizeClass: domain.SizeLarge, IsActive: true, LastKnown: &nyc})
	assign(t, store, busy, domain.Job{Title: "drop", Location: at(newark)})

	seq := NewRouteSequencer(store, NewDistanceResolver(distance.GreatCircleProvider{}), 2)
	routes, err := seq.PlanRoutes(context.Background(), PlanOptions{})
	require.NoError(t, err)

	require.Len(t, routes, 1)
	assert.Equal(t, "Busy", routes[0].TruckName)
	assert.Equal(t, "Unassigned", routes[0].DriverName)
	assert.Equal(t, domain.SourceGreatCircle, routes[0].Summary.Source)
	assert.InDelta(t, nyc.DistanceKm(newark), routes[0].Summary.DistanceKm, 1e-9)
}

func TestPlanRoutesOrdersStopsByDistanceFromTruck(t *testing.T) {
	store := repositories.NewMemoryDispatchStore()
	truck := store.AddTruck(domain.Truck{Name: "T", SizeClass: domain.SizeMedium, IsActive: true, LastKnown: &nyc})
	far := assign(t, store, truck, domain.Job{Title: "far", Priority: 9, Location: at(newark)})
	nowhere := assign(t, store, truck, domain.Job{Title: "nowhere", Priority: 8})
	near := assign(t, store, truck, domain.Job{Title: "near", Priority: 1, Location: at(bklyn)})

	mock := distance.NewMockRouteProvider(ports.RouteResult{
		Legs:     []ports.RouteLeg{{DistanceMeters: 8000, DurationSeconds: 900}, {DistanceMeters: 24000, DurationSeconds: 2100}},
		Geometry: polyline.Encode([]domain.Coordinates{nyc, bklyn, newark}),
	}, nil)
	seq := NewRouteSequencer(store, NewDistanceResolver(mock), 4)

	routes, err := seq.PlanRoutes(context.Background(), PlanOptions{DecodeGeometry: true})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	r := routes[0]

	require.Len(t, r.Stops, 3)
	assert.Equal(t, []int64{near, far, nowhere}, []int64{r.Stops[0].JobID, r.Stops[1].JobID, r.Stops[2].JobID})
	assert.Nil(t, r.Stops[2].Coordinates)

	require.Len(t, mock.Calls(), 1)
	assert.Equal(t, []domain.Coordinates{nyc, bklyn, newark}, mock.Calls()[0])

	assert.Equal(t, domain.SourceRoutingService, r.Summary.Source)
	assert.InDelta(t, 32, r.Summary.DistanceKm, 1e-9)
	require.NotNil(t, r.Summary.DurationMin)
	assert.InDelta(t, 50, *r.Summary.DurationMin, 1e-9)
	require.Len(t, r.Summary.Path, 3)
	assert.InDelta(t, bklyn.Lat, r.Summary.Path[1].Lat, 1e-5)

	u, err := url.Parse(r.MapURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "40.7128,-74.006", q.Get("origin"))
	assert.Equal(t, "40.7357,-74.1724", q.Get("destination"))
	assert.Equal(t, "40.684,-73.9776", q.Get("waypoints"))
}

func TestPlanRoutesWithoutDecodeKeepsPathEmpty(t *testing.T) {
	store := repositories.NewMemoryDispatchStore()
	truck := store.AddTruck(domain.Truck{Name: "T", SizeClass: domain.SizeMedium, IsActive: true, LastKnown: &nyc})
	assign(t, store, truck, domain.Job{Title: "a", Location: at(newark)})

	mock := distance.NewMockRouteProvider(ports.RouteResult{
		Legs:     []ports.RouteLeg{{DistanceMeters: 1000}},
		Geometry: polyline.Encode([]domain.Coordinates{nyc, newark}),
	}, nil)

	routes, err := NewRouteSequencer(store, NewDistanceResolver(mock), 1).PlanRoutes(context.Background(), PlanOptions{})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.NotNil(t, routes[0].Summary.Polyline)
	assert.Nil(t, routes[0].Summary.Path)
}

func TestPlanRoutesWithoutTruckPositionKeepsPriorityOrder(t *testing.T) {
	store := repositories.NewMemoryDispatchStore()
	truck := store.AddTruck(domain.Truck{Name: "T", SizeClass: domain.SizeMedium, IsActive: true})
	high := assign(t, store, truck, domain.Job{Title: "high", Priority: 5, Location: at(newark)})
	low := assign(t, store, truck, domain.Job{Title: "low", Priority: 1, Location: at(bklyn)})

	mock := distance.NewMockRouteProvider(ports.RouteResult{Legs: []ports.RouteLeg{{DistanceMeters: 20000}}}, nil)
	routes, err := NewRouteSequencer(store, NewDistanceResolver(mock), 1).PlanRoutes(context.Background(), PlanOptions{})
	require.NoError(t, err)
	require.Len(t, routes, 1)

	assert.Equal(t, high, routes[0].Stops[0].JobID)
	assert.Equal(t, low, routes[0].Stops[1].JobID)
	require.Len(t, mock.Calls(), 1)
	assert.Equal(t, []domain.Coordinates{newark, bklyn}, mock.Calls()[0])
}

func TestPlanRoutesKeepsTruckOrder(t *testing.T) {
	store := repositories.NewMemoryDispatchStore()
	var ids []int64
	for range 6 {
		id := store.AddTruck(domain.Truck{Name: "T", SizeClass: domain.SizeMedium, IsActive: true, LastKnown: &nyc})
		assign(t, store, id, domain.Job{Title: "j", Location: at(newark)})
		ids = append(ids, id)
	}

	routes, err := NewRouteSequencer(store, NewDistanceResolver(distance.GreatCircleProvider{}), 3).
		PlanRoutes(context.Background(), PlanOptions{})
	require.NoError(t, err)

	got := make([]int64, 0, len(routes))
	for _, r := range routes {
		got = append(got, r.TruckID)
	}
	assert.Equal(t, ids, got)
}

type failingOpenJobs struct {
	*repositories.MemoryDispatchStore
}

func (failingOpenJobs) ListOpenJobs(context.Context, int64) ([]domain.Job, error) {
	return nil, errors.New("db down")
}

func TestPlanRoutesPropagatesStoreErrors(t *testing.T) {
	mem := repositories.NewMemoryDispatchStore()
	mem.AddTruck(domain.Truck{Name: "T", SizeClass: domain.SizeMedium, IsActive: true})

	_, err := NewRouteSequencer(failingOpenJobs{mem}, NewDistanceResolver(distance.GreatCircleProvider{}), 1).
		PlanRoutes(context.Background(), PlanOptions{})
	assert.Error(t, err)
}

func TestMapURL(t *testing.T) {
	assert.Empty(t, MapURL(nil))
	assert.Equal(t,
		"https://www.google.com/maps/dir/?api=1&destination=40.7128%2C-74.006",
		MapURL([]domain.Coordinates{nyc}),
	)
	assert.Equal(t,
		"https://www.google.com/maps/dir/?api=1&destination=40.684%2C-73.9776&origin=40.7128%2C-74.006&waypoints=40.7357%2C-74.1724",
		MapURL([]domain.Coordinates{nyc, newark, bklyn}),
	)
}
