package triage

import "gonum.org/v1/gonum/floats"

// Normalize maps scores linearly onto [-1, 1] using their own minimum and
// maximum: the minimum lands on exactly -1 and the maximum on exactly 1.
// Equal scores all map to 0.
func Normalize(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	lo, hi := floats.Min(scores), floats.Max(scores)
	span := hi - lo
	if span == 0 {
		return out
	}
	for i, s := range scores {
		out[i] = 2*((s-lo)/span) - 1
	}
	return out
}
