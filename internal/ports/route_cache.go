package ports

import "context"

// RouteCache stores routing-service answers keyed by a normalized waypoint key.
type RouteCache interface {
	// Get returns the cached result and whether it was present.
	Get(ctx context.Context, key string) (RouteResult, bool, error)
	Put(ctx context.Context, key string, result RouteResult) error
}
