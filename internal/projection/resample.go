package projection

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/jonathan/survival-calibration/internal/stats"
)

// Resample draws n indices in [0, len(weights)) with replacement, each index chosen
// with probability proportional to its weight. Zero-weight indices are never drawn.
func Resample(weights []float64, n int, src rand.Source) ([]int, error) {
	if n < 1 {
		return nil, &InvalidRequestError{Field: "num_cohorts", Message: fmt.Sprintf("must be at least 1, got %d", n)}
	}
	if _, _, err := stats.Normalize(weights); err != nil {
		return nil, fmt.Errorf("cannot resample: %w", err)
	}

	cat := distuv.NewCategorical(weights, src)
	indices := make([]int, n)
	for i := range indices {
		idx := int(cat.Rand())
		// A draw of exactly zero can land on a leading zero-weight index.
		for weights[idx] == 0 {
			idx = int(cat.Rand())
		}
		indices[i] = idx
	}
	return indices, nil
}
