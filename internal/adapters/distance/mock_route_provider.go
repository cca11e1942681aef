package distance

import (
	"context"
	"sync"

	"truck-dispatch-service/internal/domain"
	"truck-dispatch-service/internal/ports"
)

// MockRouteProvider answers every request with a fixed result or error and
// records the waypoint chains it was asked for.
type MockRouteProvider struct {
	Result ports.RouteResult
	Err    error

	mu    sync.Mutex
	calls [][]domain.Coordinates
}

func NewMockRouteProvider(result ports.RouteResult, err error) *MockRouteProvider {
	return &MockRouteProvider{Result: result, Err: err}
}

func (p *MockRouteProvider) Route(_ context.Context, points []domain.Coordinates) (ports.RouteResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, append([]domain.Coordinates(nil), points...))
	p.mu.Unlock()

	if p.Err != nil {
		return ports.RouteResult{}, p.Err
	}
	return p.Result, nil
}

// Calls returns a copy of the recorded requests.
func (p *MockRouteProvider) Calls() [][]domain.Coordinates {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]domain.Coordinates(nil), p.calls...)
}
