// Package calibration performs sampling-importance calibration of a stochastic survival
// simulator against an observed summary statistic.
package calibration

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/jonathan/survival-calibration/internal/likelihood"
	"github.com/jonathan/survival-calibration/internal/logging"
	"github.com/jonathan/survival-calibration/internal/stats"
	"github.com/jonathan/survival-calibration/internal/types"
)

// Simulator runs one cohort per spec and returns a mean outcome per cohort
type Simulator interface {
	Simulate(ctx context.Context, cohorts []types.CohortSpec, timeSteps int) (*types.SimulationResult, error)
}

// Writer persists the rows of a finished calibration
type Writer interface {
	SaveCalibration(ctx context.Context, run types.CalibrationRun, rows []types.CalibrationRow) error
}

// Options configures a Calibrator
type Options struct {
	// Seed initializes the calibrator's own random stream
	Seed uint64
	// Likelihood overrides the Gaussian likelihood built from the observed statistic
	Likelihood likelihood.Func
	Logger     *slog.Logger
}

// Calibrator samples the posterior of the mortality parameter once
type Calibrator struct {
	sim        Simulator
	writer     Writer
	seed       uint64
	src        rand.Source
	likelihood likelihood.Func
	logger     *slog.Logger
	sampled    bool
}

// New creates a Calibrator. A nil writer skips persistence.
func New(sim Simulator, writer Writer, opts Options) *Calibrator {
	logger := logging.OrDiscard(opts.Logger)
	return &Calibrator{
		sim:        sim,
		writer:     writer,
		seed:       opts.Seed,
		src:        rand.NewPCG(opts.Seed, opts.Seed),
		likelihood: opts.Likelihood,
		logger:     logger,
	}
}

// Result is the outcome of SamplePosterior
type Result struct {
	Run                 types.CalibrationRun
	Samples             []types.WeightedSample
	EffectiveSampleSize float64
	// LowESS is set when the effective sample size fell below the warning fraction
	LowESS        bool
	MaxWeight     float64
	PosteriorMean float64
}

// Rows returns the persisted projection of the weighted samples, ordered by id
func (r *Result) Rows() []types.CalibrationRow {
	rows := make([]types.CalibrationRow, len(r.Samples))
	for i, s := range r.Samples {
		rows[i] = s.Row()
	}
	return rows
}

// ESSFraction returns EffectiveSampleSize / NumSamples
func (r *Result) ESSFraction() float64 {
	if r.Run.NumSamples == 0 {
		return 0
	}
	return r.EffectiveSampleSize / float64(r.Run.NumSamples)
}

// Summary builds the JSON artifact for this result
func (r *Result) Summary(location string) types.CalibrationSummary {
	return types.CalibrationSummary{
		Run:             r.Run,
		ESSFraction:     r.ESSFraction(),
		LowESS:          r.LowESS,
		MaxWeight:       r.MaxWeight,
		PosteriorMean:   r.PosteriorMean,
		ResultsLocation: location,
	}
}

// SamplePosterior draws candidates from the uniform prior, simulates each, weights them by
// the likelihood of the observed statistic and persists the normalized weights.
func (c *Calibrator) SamplePosterior(ctx context.Context, s Settings) (*Result, error) {
	if c.sampled {
		return nil, ErrAlreadySampled
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	weigh, err := c.likelihoodFor(s)
	if err != nil {
		return nil, err
	}
	c.sampled = true

	run := types.CalibrationRun{
		ID:         uuid.New(),
		Prior:      s.Prior,
		Observed:   s.Observed,
		NumSamples: s.NumSamples,
		PopSize:    s.PopSize,
		TimeSteps:  s.TimeSteps,
		Seed:       c.seed,
		CreatedAt:  time.Now().UTC(),
	}
	logger := c.logger.With("run_id", run.ID.String())

	candidates := c.drawCandidates(s.NumSamples, s.Prior)
	logger.Info("drew prior candidates", "n", len(candidates), "low", s.Prior.Low, "high", s.Prior.High)

	specs := make([]types.CohortSpec, len(candidates))
	for i, cand := range candidates {
		specs[i] = types.CohortSpec{ID: cand.ID, Parameter: cand.Parameter, PopSize: s.PopSize}
	}
	sim, err := c.sim.Simulate(ctx, specs, s.TimeSteps)
	if err != nil {
		return nil, fmt.Errorf("failed to simulate candidate cohorts: %w", err)
	}
	if len(sim.MeanOutcomes) != len(candidates) {
		return nil, fmt.Errorf("simulator returned %d outcomes for %d cohorts", len(sim.MeanOutcomes), len(candidates))
	}

	raw := make([]float64, len(candidates))
	for i, mean := range sim.MeanOutcomes {
		raw[i] = weigh(mean)
		logger.Log(ctx, logging.LevelTrace, "weighted candidate",
			"id", candidates[i].ID,
			"parameter", candidates[i].Parameter,
			"simulated_mean", mean,
			"weight", raw[i])
	}
	normalized, sum, err := stats.Normalize(raw)
	if err != nil {
		return nil, &DegenerateWeightsError{Sum: sum, Cause: err}
	}

	samples := make([]types.WeightedSample, len(candidates))
	params := make([]float64, len(candidates))
	for i, cand := range candidates {
		samples[i] = types.WeightedSample{
			ID:               cand.ID,
			Parameter:        cand.Parameter,
			RawWeight:        raw[i],
			NormalizedWeight: normalized[i],
		}
		params[i] = cand.Parameter
	}

	run.EffectiveSampleSize = stats.EffectiveSampleSize(normalized)
	result := &Result{
		Run:                 run,
		Samples:             samples,
		EffectiveSampleSize: run.EffectiveSampleSize,
		MaxWeight:           slices.Max(normalized),
		PosteriorMean:       stats.WeightedMean(normalized, params),
	}
	result.LowESS = result.ESSFraction() < s.essWarnFraction()

	if result.LowESS {
		logger.Warn("effective sample size is low; weights are concentrated on few candidates",
			"ess", result.EffectiveSampleSize,
			"n", s.NumSamples,
			"max_weight", result.MaxWeight)
	}

	if c.writer != nil {
		if err := c.writer.SaveCalibration(ctx, run, result.Rows()); err != nil {
			return nil, fmt.Errorf("failed to persist calibration results: %w", err)
		}
	}

	logger.Info("calibration complete",
		"ess", result.EffectiveSampleSize,
		"posterior_mean", result.PosteriorMean)

	return result, nil
}

func (c *Calibrator) likelihoodFor(s Settings) (likelihood.Func, error) {
	if c.likelihood != nil {
		return c.likelihood, nil
	}
	weigh, err := likelihood.Gaussian(s.Observed)
	if err != nil {
		return nil, &ConfigurationError{Field: "observed", Message: err.Error()}
	}
	return weigh, nil
}

// drawCandidates draws n uniform prior values with ids 0..n-1
func (c *Calibrator) drawCandidates(n int, prior types.Prior) []types.CandidateSample {
	u := distuv.Uniform{Min: prior.Low, Max: prior.High, Src: c.src}
	out := make([]types.CandidateSample, n)
	for i := range out {
		out[i] = types.CandidateSample{ID: i, Parameter: u.Rand()}
	}
	return out
}
