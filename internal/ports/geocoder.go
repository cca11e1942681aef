package ports

import (
	"context"

	"truck-dispatch-service/internal/domain"
)

// Geocoder resolves free-form addresses to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (domain.Coordinates, error)
}
