package domain

import "math"

// Cubic inches per cubic foot.
const cubicInchesPerFoot = 1728.0

// Item is a physical good attached to one or more jobs.
// Weight is in pounds, dimensions in inches; any of them may be unknown.
type Item struct {
	ID        int64
	Name      string
	WeightLbs *float64
	LengthIn  *float64
	WidthIn   *float64
	HeightIn  *float64
}

// Load is the aggregate weight and volume of a job's items.
type Load struct {
	WeightLbs  float64
	VolumeCuFt float64
}

// ComputeLoad sums item weights and volumes for a job.
// Missing or non-finite values count as zero.
func ComputeLoad(job *Job) Load {
	var l Load
	if job == nil {
		return l
	}

	for _, it := range job.Items {
		l.WeightLbs += finite(it.WeightLbs)
		l.VolumeCuFt += finite(it.LengthIn) * finite(it.WidthIn) * finite(it.HeightIn) / cubicInchesPerFoot
	}

	return l
}

func finite(v *float64) float64 {
	if v == nil {
		return 0
	}
	return Finite(*v)
}

// Finite returns v, or 0 when v is NaN or infinite.
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
