// Package polyline implements the encoded polyline algorithm format used by
// routing services to ship route geometry: signed, zig-zag encoded deltas at
// 1e-5 degree precision, written as 5-bit chunks offset into printable ASCII.
package polyline

import (
	"errors"
	"math"
	"strings"

	"truck-dispatch-service/internal/domain"
)

const (
	precision    = 1e5
	chunkBits    = 5
	chunkMask    = 0x1f
	continuation = 0x20
	asciiOffset  = 63
)

// ErrTruncated is returned when the input ends in the middle of a value or
// holds a latitude without its longitude.
var ErrTruncated = errors.New("polyline: truncated input")

// ErrInvalidChar is returned for bytes outside the encoding alphabet.
var ErrInvalidChar = errors.New("polyline: invalid character")

// Decode turns an encoded polyline into coordinates.
func Decode(encoded string) ([]domain.Coordinates, error) {
	out := make([]domain.Coordinates, 0, len(encoded)/4)

	var lat, lng int64
	for i := 0; i < len(encoded); {
		dLat, next, err := decodeValue(encoded, i)
		if err != nil {
			return nil, err
		}
		if next >= len(encoded) {
			return nil, ErrTruncated
		}

		dLng, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		i = next

		lat += dLat
		lng += dLng
		out = append(out, domain.Coordinates{
			Lat: float64(lat) / precision,
			Lon: float64(lng) / precision,
		})
	}

	return out, nil
}

// decodeValue reads one zig-zag encoded delta starting at i and returns it
// with the index of the following byte.
func decodeValue(s string, i int) (int64, int, error) {
	var result uint64
	var shift uint

	for {
		if i >= len(s) {
			return 0, i, ErrTruncated
		}
		b := int(s[i]) - asciiOffset
		if b < 0 || b > 0x3f {
			return 0, i, ErrInvalidChar
		}
		i++

		result |= uint64(b&chunkMask) << shift
		shift += chunkBits
		if b&continuation == 0 {
			break
		}
		if shift > 60 {
			return 0, i, ErrInvalidChar
		}
	}

	if result&1 != 0 {
		return ^int64(result >> 1), i, nil
	}
	return int64(result >> 1), i, nil
}

// Encode is the inverse of Decode.
func Encode(points []domain.Coordinates) string {
	var sb strings.Builder

	var prevLat, prevLng int64
	for _, p := range points {
		lat := int64(math.Round(p.Lat * precision))
		lng := int64(math.Round(p.Lon * precision))

		encodeValue(&sb, lat-prevLat)
		encodeValue(&sb, lng-prevLng)

		prevLat, prevLng = lat, lng
	}

	return sb.String()
}

func encodeValue(sb *strings.Builder, v int64) {
	u := uint64(v) << 1
	if v < 0 {
		u = ^u
	}

	for u >= continuation {
		sb.WriteByte(byte((continuation | (u & chunkMask)) + asciiOffset))
		u >>= chunkBits
	}
	sb.WriteByte(byte(u + asciiOffset))
}
