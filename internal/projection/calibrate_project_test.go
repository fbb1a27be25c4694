package projection_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/survival-calibration/internal/calibration"
	"github.com/jonathan/survival-calibration/internal/projection"
	"github.com/jonathan/survival-calibration/internal/store"
	"github.com/jonathan/survival-calibration/internal/survival"
	"github.com/jonathan/survival-calibration/internal/types"
)

// Mean survival under per-step mortality p is 1/p, so an observed mean of 10 should
// concentrate the posterior around p = 0.1.
func TestCalibrateThenProject_RecoversParameter(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "CalibrationResults.csv")

	cal := calibration.New(survival.NewSimulator(11, 4, nil), store.NewCSVStore(path), calibration.Options{Seed: 3})
	res, err := cal.SamplePosterior(ctx, calibration.Settings{
		NumSamples: 300,
		Prior:      types.Prior{Low: 0.05, High: 0.25},
		PopSize:    200,
		TimeSteps:  500,
		Observed:   types.ObservedStatistic{Mean: 10, StDev: 1},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.1, res.PosteriorMean, 0.015)

	p, err := projection.NewFromFile(path, survival.NewSimulator(12, 4, nil), projection.Options{Seed: 5})
	require.NoError(t, err)
	req := projection.Request{NumCohorts: 200, CohortSize: 200, TimeSteps: 500}
	require.NoError(t, p.Simulate(ctx, req))

	param, err := p.ParameterCredibleInterval(0.05)
	require.NoError(t, err)
	assert.True(t, param.Interval.Contains(0.1), "credible interval %v", param.Interval)
	assert.InDelta(t, 0.1, param.Mean, 0.015)

	outcome, err := p.MeanOutcomeInterval(0.05)
	require.NoError(t, err)
	assert.InDelta(t, 10, outcome.Mean, 1.5)
	assert.True(t, outcome.Interval.Contains(10), "projection interval %v", outcome.Interval)

	// halving mortality roughly doubles survival
	treated, err := projection.NewFromFile(path, survival.NewSimulator(12, 4, nil), projection.Options{Seed: 5, DrugEffectivenessRatio: 0.5})
	require.NoError(t, err)
	require.NoError(t, treated.Simulate(ctx, req))
	treatedOutcome, err := treated.MeanOutcomeInterval(0.05)
	require.NoError(t, err)
	assert.InDelta(t, 2*outcome.Mean, treatedOutcome.Mean, 3)
}
