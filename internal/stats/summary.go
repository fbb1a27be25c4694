// Package stats provides the summary statistics and importance-sampling diagnostics
// shared by calibration and projection.
package stats

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/jonathan/survival-calibration/internal/types"
)

// Mean returns the arithmetic mean of x
func Mean(x []float64) (float64, error) {
	if len(x) == 0 {
		return 0, ErrEmptySample
	}
	return stat.Mean(x, nil), nil
}

// PercentileInterval returns the [alpha/2, 1-alpha/2] percentile interval of x.
// x is not modified.
func PercentileInterval(x []float64, alpha float64) (types.Interval, error) {
	if len(x) == 0 {
		return types.Interval{}, ErrEmptySample
	}
	if !(alpha > 0 && alpha < 1) {
		return types.Interval{}, fmt.Errorf("%w: got %v", ErrInvalidAlpha, alpha)
	}

	sorted := slices.Clone(x)
	slices.Sort(sorted)

	return types.Interval{
		Lower: stat.Quantile(alpha/2, stat.LinInterp, sorted, nil),
		Upper: stat.Quantile(1-alpha/2, stat.LinInterp, sorted, nil),
	}, nil
}

// Summarize returns the mean of x together with its percentile interval at alpha.
// The interval is widened to include the mean when the percentiles alone exclude it.
func Summarize(x []float64, alpha float64) (types.PosteriorSummary, error) {
	interval, err := PercentileInterval(x, alpha)
	if err != nil {
		return types.PosteriorSummary{}, err
	}
	mean, err := Mean(x)
	if err != nil {
		return types.PosteriorSummary{}, err
	}
	if math.IsNaN(mean) {
		return types.PosteriorSummary{}, fmt.Errorf("mean of sample is NaN")
	}
	// A percentile interval of a skewed sample can exclude the mean at large alpha;
	// widen it so lower <= mean <= upper always holds.
	if !interval.Contains(mean) {
		interval.Lower = math.Min(interval.Lower, mean)
		interval.Upper = math.Max(interval.Upper, mean)
	}
	return types.PosteriorSummary{Mean: mean, Interval: interval, Alpha: alpha}, nil
}
