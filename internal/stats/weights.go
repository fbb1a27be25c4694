package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Normalize divides each weight by the sum of all weights.
// It returns the raw sum alongside the normalized weights so callers can report it.
// Negative entries and zero or non-finite sums are rejected rather than turned into NaN.
func Normalize(weights []float64) ([]float64, float64, error) {
	if len(weights) == 0 {
		return nil, 0, ErrEmptySample
	}
	for i, w := range weights {
		if w < 0 {
			return nil, 0, fmt.Errorf("%w at index %d: %v", ErrNegativeWeight, i, w)
		}
	}

	sum := floats.Sum(weights)
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, sum, ErrDegenerateSum
	}

	// Divide rather than scale by 1/sum, which overflows for subnormal sums.
	normalized := make([]float64, len(weights))
	for i, w := range weights {
		normalized[i] = w / sum
	}
	return normalized, sum, nil
}

// EffectiveSampleSize returns 1 / sum(w_i^2) for normalized weights w.
// The result lies in [1, len(w)]; values near 1 mean the mass sits on few samples.
func EffectiveSampleSize(normalized []float64) float64 {
	if len(normalized) == 0 {
		return 0
	}
	sq := floats.Dot(normalized, normalized)
	if sq == 0 {
		return 0
	}
	return 1 / sq
}

// WeightedMean returns sum(w_i * x_i) for normalized weights w
func WeightedMean(normalized, x []float64) float64 {
	return floats.Dot(normalized, x)
}
