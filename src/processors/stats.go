package processors

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats is the reduction of one group of values.
type Stats struct {
	Count   int     `json:"count"`
	Sum     float64 `json:"sum"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Summarize reduces values to count, sum, mean, min and max.
// Values are sorted first so the result does not depend on input order;
// NaN and infinities count as 0.
func Summarize(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	sorted := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		sorted[i] = v
	}
	slices.Sort(sorted)

	return Stats{
		Count:   len(sorted),
		Sum:     floats.Sum(sorted),
		Average: stat.Mean(sorted, nil),
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
	}
}

// sum is the order-independent total of values.
func sum(values []float64) float64 {
	return Summarize(values).Sum
}
