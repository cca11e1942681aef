package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"truck-dispatch-service/internal/domain"
	"truck-dispatch-service/internal/platform/obs"
)

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// normalize ensures consistent cache keys by collapsing whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Geocode resolves a single address.
func (o *ORSRouteProvider) Geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	norm := normalize(address)
	if norm == "" {
		return domain.Coordinates{}, fmt.Errorf("geocode: address must be non-empty")
	}

	out, err := o.GeocodeMany(ctx, []string{norm})
	if err != nil {
		return domain.Coordinates{}, err
	}

	c, ok := out[norm]
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("geocode: no result for %q", address)
	}
	return c, nil
}

// GeocodeMany resolves addresses, consulting the geocode cache first and
// calling /geocode/search once per miss. Keys of the result are normalized.
func (o *ORSRouteProvider) GeocodeMany(
	ctx context.Context,
	addresses []string,
) (_ map[string]domain.Coordinates, err error) {
	defer obs.Time(ctx, "ors.GeocodeMany")(&err)

	seen := make(map[string]struct{}, len(addresses))
	needed := make([]string, 0, len(addresses))
	for _, a := range addresses {
		n := normalize(a)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		needed = append(needed, n)
	}

	out := make(map[string]domain.Coordinates, len(needed))
	if len(needed) == 0 {
		return out, nil
	}

	if o.geocodeCache != nil {
		hits, err := o.geocodeCache.GetMany(ctx, needed)
		if err != nil {
			o.log.Warn().Err(err).Msg("geocode cache read failed")
		}
		for k, v := range hits {
			out[k] = v
		}
	}

	fresh := make(map[string]domain.Coordinates)
	for _, a := range needed {
		if _, ok := out[a]; ok {
			continue
		}

		c, err := o.geocodeOne(ctx, a)
		if err != nil {
			return nil, err
		}
		fresh[a] = c
		out[a] = c
	}

	if o.geocodeCache != nil && len(fresh) > 0 {
		if err := o.geocodeCache.PutMany(ctx, fresh); err != nil {
			o.log.Warn().Err(err).Msg("geocode cache write failed")
		}
	}

	return out, nil
}

func (o *ORSRouteProvider) geocodeOne(ctx context.Context, address string) (domain.Coordinates, error) {
	endpoint := o.baseURL + "/geocode/search"

	resp, err := o.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := o.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("text", address)
		q.Set("size", "1")
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Coordinates{}, fmt.Errorf("decode geocode response: %w", err)
	}

	if len(decoded.Features) == 0 {
		return domain.Coordinates{}, fmt.Errorf("no geocode results for %q", address)
	}

	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) != 2 {
		return domain.Coordinates{}, fmt.Errorf("invalid coordinate format for %q", address)
	}

	return domain.Coordinates{Lon: coords[0], Lat: coords[1]}, nil
}
