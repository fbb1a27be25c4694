package projection

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/survival-calibration/internal/results"
	"github.com/jonathan/survival-calibration/internal/types"
)

// linearSimulator maps parameter p to mean outcome 20*(1-p)
type linearSimulator struct {
	cohorts []types.CohortSpec
	err     error
}

func (s *linearSimulator) Simulate(_ context.Context, cohorts []types.CohortSpec, _ int) (*types.SimulationResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.cohorts = cohorts
	res := &types.SimulationResult{}
	for _, c := range cohorts {
		res.IDs = append(res.IDs, c.ID)
		res.MeanOutcomes = append(res.MeanOutcomes, 20*(1-c.Parameter))
	}
	return res, nil
}

func twoRows() []types.CalibrationRow {
	return []types.CalibrationRow{
		{CohortID: 0, Weight: 0.5, Parameter: 0.2},
		{CohortID: 1, Weight: 0.5, Parameter: 0.8},
	}
}

func width(iv types.Interval) float64 {
	return iv.Upper - iv.Lower
}

func spreadRows() []types.CalibrationRow {
	return []types.CalibrationRow{
		{CohortID: 0, Weight: 0.05, Parameter: 0.05},
		{CohortID: 1, Weight: 0.2, Parameter: 0.08},
		{CohortID: 2, Weight: 0.4, Parameter: 0.1},
		{CohortID: 3, Weight: 0.25, Parameter: 0.12},
		{CohortID: 4, Weight: 0.1, Parameter: 0.15},
	}
}

func TestNew_AppliesEffectivenessRatio(t *testing.T) {
	p, err := New(twoRows(), &linearSimulator{}, Options{DrugEffectivenessRatio: 0.5})
	require.NoError(t, err)
	params := p.Parameters()
	require.Len(t, params, 2)
	assert.InDelta(t, 0.1, params[0], 1e-12)
	assert.InDelta(t, 0.4, params[1], 1e-12)
}

func TestNew_DefaultRatioLeavesParameters(t *testing.T) {
	p, err := New(twoRows(), &linearSimulator{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2, 0.8}, p.Parameters())
}

func TestNew_Rejects(t *testing.T) {
	var pe *results.ParseError

	_, err := New(nil, &linearSimulator{}, Options{})
	assert.ErrorAs(t, err, &pe)

	_, err = New([]types.CalibrationRow{{CohortID: 0, Weight: 0.4, Parameter: 0.1}}, &linearSimulator{}, Options{})
	assert.ErrorAs(t, err, &pe)

	var reqErr *InvalidRequestError
	_, err = New(twoRows(), &linearSimulator{}, Options{DrugEffectivenessRatio: -1})
	assert.ErrorAs(t, err, &reqErr)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.csv")
	require.NoError(t, os.WriteFile(path, []byte("Cohort ID,Likelihood Weights,Mortality Prob\n0,0.5,0.2\n1,0.5,0.8\n"), 0644))

	p, err := NewFromFile(path, &linearSimulator{}, Options{DrugEffectivenessRatio: 0.5})
	require.NoError(t, err)
	params := p.Parameters()
	assert.InDelta(t, 0.1, params[0], 1e-12)
	assert.InDelta(t, 0.4, params[1], 1e-12)

	bad := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("a,b,c\n0,0.5\n"), 0644))
	_, err = NewFromFile(bad, &linearSimulator{}, Options{})
	var pe *results.ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestSimulate_ResamplesByWeight(t *testing.T) {
	rows := []types.CalibrationRow{
		{CohortID: 10, Weight: 1, Parameter: 0.3},
		{CohortID: 11, Weight: 0, Parameter: 0.9},
	}
	sim := &linearSimulator{}
	p, err := New(rows, sim, Options{Seed: 1})
	require.NoError(t, err)

	require.NoError(t, p.Simulate(context.Background(), Request{NumCohorts: 25, CohortSize: 100, TimeSteps: 10}))
	require.Len(t, sim.cohorts, 25)
	for _, c := range sim.cohorts {
		assert.Equal(t, 10, c.ID)
		assert.Equal(t, 0.3, c.Parameter)
		assert.Equal(t, 100, c.PopSize)
	}
	for _, v := range p.ResampledParameters() {
		assert.Equal(t, 0.3, v)
	}
}

func TestSimulate_CohortIDOverride(t *testing.T) {
	sim := &linearSimulator{}
	p, err := New(twoRows(), sim, Options{Seed: 1})
	require.NoError(t, err)

	ids := []int{100, 101, 102}
	require.NoError(t, p.Simulate(context.Background(), Request{NumCohorts: 3, CohortSize: 5, TimeSteps: 5, CohortIDs: ids}))
	assert.Equal(t, ids, p.ResampledIDs())
	for i, c := range sim.cohorts {
		assert.Equal(t, ids[i], c.ID)
		assert.Contains(t, []float64{0.2, 0.8}, c.Parameter)
	}
}

func TestSimulate_CohortIDCountMismatch(t *testing.T) {
	p, err := New(twoRows(), &linearSimulator{}, Options{})
	require.NoError(t, err)

	err = p.Simulate(context.Background(), Request{NumCohorts: 3, CohortSize: 5, TimeSteps: 5, CohortIDs: []int{1, 2}})
	var mismatch *ResampleCountMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Expected)
	assert.Equal(t, 2, mismatch.Got)
	assert.Empty(t, p.ResampledParameters())
}

func TestSimulate_InvalidRequest(t *testing.T) {
	p, err := New(twoRows(), &linearSimulator{}, Options{})
	require.NoError(t, err)

	for _, req := range []Request{
		{NumCohorts: 0, CohortSize: 5, TimeSteps: 5},
		{NumCohorts: 2, CohortSize: 0, TimeSteps: 5},
		{NumCohorts: 2, CohortSize: 5, TimeSteps: 0},
		{NumCohorts: 2, CohortSize: 5, TimeSteps: 5, Mode: Mode(7)},
	} {
		var reqErr *InvalidRequestError
		assert.ErrorAs(t, p.Simulate(context.Background(), req), &reqErr, "%+v", req)
	}
}

func TestSimulate_ReplaceAndExtend(t *testing.T) {
	p, err := New(twoRows(), &linearSimulator{}, Options{Seed: 3})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, p.Simulate(ctx, Request{NumCohorts: 4, CohortSize: 5, TimeSteps: 5}))
	assert.Len(t, p.ResampledParameters(), 4)
	assert.Len(t, p.Outcomes(), 4)

	require.NoError(t, p.Simulate(ctx, Request{NumCohorts: 6, CohortSize: 5, TimeSteps: 5, Mode: ModeExtend}))
	assert.Len(t, p.ResampledParameters(), 10)
	assert.Len(t, p.Outcomes(), 10)
	assert.Len(t, p.ResampledIDs(), 10)

	require.NoError(t, p.Simulate(ctx, Request{NumCohorts: 3, CohortSize: 5, TimeSteps: 5, Mode: ModeReplace}))
	assert.Len(t, p.ResampledParameters(), 3)
	assert.Len(t, p.Outcomes(), 3)
}

func TestSimulate_SimulatorFailureKeepsState(t *testing.T) {
	sim := &linearSimulator{}
	p, err := New(twoRows(), sim, Options{})
	require.NoError(t, err)
	require.NoError(t, p.Simulate(context.Background(), Request{NumCohorts: 4, CohortSize: 5, TimeSteps: 5}))

	boom := errors.New("boom")
	sim.err = boom
	err = p.Simulate(context.Background(), Request{NumCohorts: 2, CohortSize: 5, TimeSteps: 5})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, p.ResampledParameters(), 4)
}

func TestIntervals_RequireSimulation(t *testing.T) {
	p, err := New(twoRows(), &linearSimulator{}, Options{})
	require.NoError(t, err)

	_, err = p.MeanOutcomeInterval(0.05)
	assert.ErrorIs(t, err, ErrNotSimulated)
	_, err = p.ParameterCredibleInterval(0.05)
	assert.ErrorIs(t, err, ErrNotSimulated)
}

func TestIntervals_OrderedAndMonotone(t *testing.T) {
	p, err := New(spreadRows(), &linearSimulator{}, Options{Seed: 11})
	require.NoError(t, err)
	require.NoError(t, p.Simulate(context.Background(), Request{NumCohorts: 2000, CohortSize: 10, TimeSteps: 10}))

	prevOutcome, prevParam := -1.0, -1.0
	for _, alpha := range []float64{0.5, 0.2, 0.1, 0.05, 0.01} {
		outcome, err := p.MeanOutcomeInterval(alpha)
		require.NoError(t, err)
		assert.LessOrEqual(t, outcome.Interval.Lower, outcome.Mean)
		assert.LessOrEqual(t, outcome.Mean, outcome.Interval.Upper)
		assert.GreaterOrEqual(t, width(outcome.Interval), prevOutcome)
		prevOutcome = width(outcome.Interval)

		param, err := p.ParameterCredibleInterval(alpha)
		require.NoError(t, err)
		assert.LessOrEqual(t, param.Interval.Lower, param.Mean)
		assert.LessOrEqual(t, param.Mean, param.Interval.Upper)
		assert.GreaterOrEqual(t, width(param.Interval), prevParam)
		prevParam = width(param.Interval)
	}

	param, err := p.ParameterCredibleInterval(0.05)
	require.NoError(t, err)
	// Posterior mean of spreadRows is sum(w*p) = 0.1035.
	assert.InDelta(t, 0.1035, param.Mean, 0.003)
	assert.GreaterOrEqual(t, param.Interval.Lower, 0.05)
	assert.LessOrEqual(t, param.Interval.Upper, 0.15)

	_, err = p.MeanOutcomeInterval(0)
	assert.Error(t, err)
}

func TestIntervals_ContainMeanAtLargeAlpha(t *testing.T) {
	p, err := New(spreadRows(), &linearSimulator{}, Options{Seed: 11})
	require.NoError(t, err)
	require.NoError(t, p.Simulate(context.Background(), Request{NumCohorts: 2000, CohortSize: 10, TimeSteps: 10}))

	for _, alpha := range []float64{0.5, 0.8, 0.95, 0.99} {
		param, err := p.ParameterCredibleInterval(alpha)
		require.NoError(t, err)
		assert.True(t, param.Interval.Contains(param.Mean), "alpha=%v mean=%v interval=%v", alpha, param.Mean, param.Interval)

		outcome, err := p.MeanOutcomeInterval(alpha)
		require.NoError(t, err)
		assert.True(t, outcome.Interval.Contains(outcome.Mean), "alpha=%v mean=%v interval=%v", alpha, outcome.Mean, outcome.Interval)
	}
}

func TestSummary(t *testing.T) {
	p, err := New(spreadRows(), &linearSimulator{}, Options{Seed: 2, DrugEffectivenessRatio: 0.8})
	require.NoError(t, err)
	req := Request{NumCohorts: 200, CohortSize: 50, TimeSteps: 100}
	require.NoError(t, p.Simulate(context.Background(), req))

	s, err := p.Summary("calibration.csv", req, 0.05)
	require.NoError(t, err)
	assert.Equal(t, "calibration.csv", s.CalibrationSource)
	assert.Equal(t, 200, s.NumCohorts)
	assert.Equal(t, 0.8, s.DrugEffectivenessRatio)
	assert.Equal(t, 0.05, s.MortalityProbability.Alpha)
	assert.InDelta(t, 20*(1-s.MortalityProbability.Mean), s.MeanSurvivalTime.Mean, 1e-9)
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeReplace, "replace": ModeReplace, "extend": ModeExtend} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseMode("append")
	var reqErr *InvalidRequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "mode", reqErr.Field)
}
