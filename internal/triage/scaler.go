package triage

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Standardize rescales values to zero mean and unit population variance,
// computed over exactly the supplied slice. Constant input yields zeros.
func Standardize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 || floats.Min(values) == floats.Max(values) {
		return out
	}
	mean, variance := stat.PopMeanVariance(values, nil)
	std := math.Sqrt(variance)
	if std == 0 || math.IsNaN(std) {
		return out
	}
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}
