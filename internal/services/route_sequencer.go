package services

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"truck-dispatch-service/internal/domain"
	"truck-dispatch-service/internal/platform/obs"
	"truck-dispatch-service/internal/polyline"
	"truck-dispatch-service/internal/ports"
)

const mapsDirectionsURL = "https://www.google.com/maps/dir/"

// PathResolver summarizes a route through an ordered waypoint chain.
type PathResolver interface {
	ResolvePath(ctx context.Context, points []domain.Coordinates) domain.RouteSummary
}

type PlanOptions struct {
	DecodeGeometry bool
}

// RouteSequencer builds a route descriptor for every active truck that holds
// open jobs. Stops are a single sort by straight-line distance from the
// truck, not a re-optimized tour.
type RouteSequencer struct {
	store       ports.DispatchStore
	paths       PathResolver
	concurrency int
}

func NewRouteSequencer(store ports.DispatchStore, paths PathResolver, concurrency int) *RouteSequencer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &RouteSequencer{store: store, paths: paths, concurrency: concurrency}
}

// PlanRoutes returns descriptors in truck order. Trucks with no open jobs are
// omitted.
func (s *RouteSequencer) PlanRoutes(ctx context.Context, opts PlanOptions) (_ []domain.RouteDescriptor, err error) {
	defer obs.Time(ctx, "sequencer.PlanRoutes")(&err)

	trucks, err := s.store.ListActiveTrucks(ctx)
	if err != nil {
		return nil, fmt.Errorf("plan routes: list active trucks: %w", err)
	}

	planned := make([]*domain.RouteDescriptor, len(trucks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range trucks {
		g.Go(func() error {
			truck := &trucks[i]

			jobs, err := s.store.ListOpenJobs(gctx, truck.ID)
			if err != nil {
				return fmt.Errorf("plan routes: list open jobs truck=%d: %w", truck.ID, err)
			}
			if len(jobs) == 0 {
				return nil
			}

			d := s.planTruck(gctx, truck, jobs, opts)
			planned[i] = &d
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.RouteDescriptor, 0, len(planned))
	for _, d := range planned {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out, nil
}

type locatedJob struct {
	job    *domain.Job
	pos    domain.Coordinates
	fromKm float64
}

func (s *RouteSequencer) planTruck(
	ctx context.Context,
	truck *domain.Truck,
	jobs []domain.Job,
	opts PlanOptions,
) domain.RouteDescriptor {
	located := make([]locatedJob, 0, len(jobs))
	var unlocated []*domain.Job
	for i := range jobs {
		pos, ok := jobs[i].Position()
		if !ok {
			unlocated = append(unlocated, &jobs[i])
			continue
		}
		lj := locatedJob{job: &jobs[i], pos: pos}
		if truck.LastKnown != nil {
			lj.fromKm = truck.LastKnown.DistanceKm(pos)
		}
		located = append(located, lj)
	}

	// Without a truck position every distance is zero and the stable sort
	// keeps priority order.
	slices.SortStableFunc(located, func(a, b locatedJob) int {
		switch {
		case a.fromKm < b.fromKm:
			return -1
		case a.fromKm > b.fromKm:
			return 1
		}
		return 0
	})

	chain := make([]domain.Coordinates, 0, len(located)+1)
	if truck.LastKnown != nil {
		chain = append(chain, *truck.LastKnown)
	}

	stops := make([]domain.RouteStop, 0, len(jobs))
	for _, lj := range located {
		pos := lj.pos
		chain = append(chain, pos)
		stops = append(stops, domain.RouteStop{JobID: lj.job.ID, Title: lj.job.Title, Coordinates: &pos})
	}
	for _, j := range unlocated {
		stops = append(stops, domain.RouteStop{JobID: j.ID, Title: j.Title})
	}

	summary := s.paths.ResolvePath(ctx, chain)
	if opts.DecodeGeometry && summary.Polyline != nil {
		path, err := polyline.Decode(*summary.Polyline)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Int64("truck_id", truck.ID).Msg("route geometry could not be decoded")
		} else {
			summary.Path = path
		}
	}

	return domain.RouteDescriptor{
		TruckID:    truck.ID,
		TruckName:  truck.Name,
		DriverName: truck.DriverName(),
		SizeClass:  truck.SizeClass,
		Status:     truck.Status,
		Stops:      stops,
		Summary:    summary,
		MapURL:     MapURL(chain),
	}
}

func formatPoint(c domain.Coordinates) string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

// MapURL builds a Google Maps directions link for the chain: the first point
// is the origin, the last the destination, the rest waypoints. A single point
// becomes a destination only; an empty chain yields "".
func MapURL(chain []domain.Coordinates) string {
	if len(chain) == 0 {
		return ""
	}

	q := url.Values{}
	q.Set("api", "1")
	q.Set("destination", formatPoint(chain[len(chain)-1]))
	if len(chain) > 1 {
		q.Set("origin", formatPoint(chain[0]))
	}
	if len(chain) > 2 {
		waypoints := make([]string, 0, len(chain)-2)
		for _, c := range chain[1 : len(chain)-1] {
			waypoints = append(waypoints, formatPoint(c))
		}
		q.Set("waypoints", strings.Join(waypoints, "|"))
	}

	return mapsDirectionsURL + "?" + q.Encode()
}
