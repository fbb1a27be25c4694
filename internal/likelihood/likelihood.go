// Package likelihood provides likelihood strategies that turn a simulated summary
// statistic into an importance weight.
package likelihood

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/jonathan/survival-calibration/internal/types"
)

// Func maps a simulated summary statistic to a non-negative likelihood weight
type Func func(simulated float64) float64

// Gaussian returns the normal density of the observed mean under N(simulated, observed.StDev).
// Only the first moment of the observed data enters the likelihood.
func Gaussian(observed types.ObservedStatistic) (Func, error) {
	if !(observed.StDev > 0) || math.IsInf(observed.StDev, 0) {
		return nil, fmt.Errorf("observed standard deviation must be positive and finite, got %v", observed.StDev)
	}
	if math.IsNaN(observed.Mean) || math.IsInf(observed.Mean, 0) {
		return nil, fmt.Errorf("observed mean must be finite, got %v", observed.Mean)
	}

	return func(simulated float64) float64 {
		n := distuv.Normal{Mu: simulated, Sigma: observed.StDev}
		return n.Prob(observed.Mean)
	}, nil
}
