package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func TestComputeLoadNoItems(t *testing.T) {
	got := ComputeLoad(&Job{ID: 1})
	assert.Equal(t, Load{}, got)
}

func TestComputeLoadCubicFoot(t *testing.T) {
	job := &Job{Items: []Item{
		{WeightLbs: ptr(5), LengthIn: ptr(12), WidthIn: ptr(12), HeightIn: ptr(12)},
	}}

	got := ComputeLoad(job)
	assert.InDelta(t, 5.0, got.WeightLbs, 1e-9)
	assert.InDelta(t, 1.0, got.VolumeCuFt, 1e-9)
}

func TestComputeLoadMissingAndInvalidValues(t *testing.T) {
	job := &Job{Items: []Item{
		// Missing weight, full dimensions: 24*12*6 = 1728 in^3.
		{LengthIn: ptr(24), WidthIn: ptr(12), HeightIn: ptr(6)},
		// Missing height: no volume contribution.
		{WeightLbs: ptr(10), LengthIn: ptr(100), WidthIn: ptr(100)},
		// Non-finite values are coerced to zero.
		{WeightLbs: ptr(math.NaN()), LengthIn: ptr(math.Inf(1)), WidthIn: ptr(1), HeightIn: ptr(1)},
	}}

	got := ComputeLoad(job)
	assert.InDelta(t, 10.0, got.WeightLbs, 1e-9)
	assert.InDelta(t, 1.0, got.VolumeCuFt, 1e-9)
}
