// Package projection runs the survival simulator under a posterior sample of the calibrated
// parameter and summarizes the projected outcomes.
package projection

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/jonathan/survival-calibration/internal/logging"
	"github.com/jonathan/survival-calibration/internal/results"
	"github.com/jonathan/survival-calibration/internal/stats"
	"github.com/jonathan/survival-calibration/internal/types"
)

// Simulator runs one cohort per spec and returns a mean outcome per cohort
type Simulator interface {
	Simulate(ctx context.Context, cohorts []types.CohortSpec, timeSteps int) (*types.SimulationResult, error)
}

// Mode controls whether Simulate replaces or extends earlier resamples
type Mode int

const (
	// ModeReplace discards resamples and outcomes from earlier Simulate calls
	ModeReplace Mode = iota
	// ModeExtend appends to resamples and outcomes from earlier Simulate calls
	ModeExtend
)

func (m Mode) String() string {
	switch m {
	case ModeReplace:
		return "replace"
	case ModeExtend:
		return "extend"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode maps "replace" or "extend" to a Mode; the empty string means ModeReplace
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "replace":
		return ModeReplace, nil
	case "extend":
		return ModeExtend, nil
	default:
		return ModeReplace, &InvalidRequestError{Field: "mode", Message: fmt.Sprintf("unknown mode %q", s)}
	}
}

// Options configures a Projector
type Options struct {
	// DrugEffectivenessRatio scales every calibrated parameter; zero means 1 (no effect)
	DrugEffectivenessRatio float64
	// Seed initializes the projector's resampling stream
	Seed   uint64
	Logger *slog.Logger
}

// Request describes one Simulate call
type Request struct {
	NumCohorts int
	CohortSize int
	TimeSteps  int
	// CohortIDs, when set, relabels the resampled cohorts; its length must equal NumCohorts
	CohortIDs []int
	Mode      Mode
}

// Projector resamples calibrated parameters by weight and simulates cohorts under them
type Projector struct {
	sim    Simulator
	src    rand.Source
	logger *slog.Logger

	ids     []int
	weights []float64
	params  []float64
	ratio   float64

	resampledIDs    []int
	resampledParams []float64
	outcomes        []float64
}

// New creates a Projector from calibration rows. Rows whose weights do not sum to 1
// are rejected with a results.ParseError rather than renormalized.
func New(rows []types.CalibrationRow, sim Simulator, opts Options) (*Projector, error) {
	if len(rows) == 0 {
		return nil, &results.ParseError{Message: "calibration has no rows"}
	}
	if err := results.ValidateWeights(rows); err != nil {
		return nil, err
	}

	ratio := opts.DrugEffectivenessRatio
	if ratio == 0 {
		ratio = 1
	}
	if !(ratio > 0) || math.IsInf(ratio, 0) {
		return nil, &InvalidRequestError{Field: "drug_effectiveness_ratio", Message: fmt.Sprintf("must be positive, got %v", ratio)}
	}

	logger := logging.OrDiscard(opts.Logger)

	p := &Projector{
		sim:     sim,
		src:     rand.NewPCG(opts.Seed, opts.Seed),
		logger:  logger,
		ids:     make([]int, len(rows)),
		weights: make([]float64, len(rows)),
		params:  make([]float64, len(rows)),
		ratio:   ratio,
	}
	for i, row := range rows {
		p.ids[i] = row.CohortID
		p.weights[i] = row.Weight
		p.params[i] = row.Parameter * ratio
	}
	return p, nil
}

// NewFromFile loads a calibration results table and creates a Projector from it
func NewFromFile(path string, sim Simulator, opts Options) (*Projector, error) {
	rows, err := results.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return New(rows, sim, opts)
}

// Parameters returns the loaded parameters after applying the effectiveness ratio
func (p *Projector) Parameters() []float64 {
	return append([]float64(nil), p.params...)
}

// ResampledParameters returns the accumulated posterior sample of the parameter
func (p *Projector) ResampledParameters() []float64 {
	return append([]float64(nil), p.resampledParams...)
}

// ResampledIDs returns the cohort ids used for the simulated cohorts
func (p *Projector) ResampledIDs() []int {
	return append([]int(nil), p.resampledIDs...)
}

// Outcomes returns the mean outcome of every simulated cohort
func (p *Projector) Outcomes() []float64 {
	return append([]float64(nil), p.outcomes...)
}

// Simulate resamples NumCohorts parameters by weight and simulates one cohort per draw
func (p *Projector) Simulate(ctx context.Context, req Request) error {
	if req.CohortIDs != nil && len(req.CohortIDs) != req.NumCohorts {
		return &ResampleCountMismatchError{Expected: req.NumCohorts, Got: len(req.CohortIDs)}
	}
	if req.CohortSize < 1 {
		return &InvalidRequestError{Field: "cohort_size", Message: fmt.Sprintf("must be at least 1, got %d", req.CohortSize)}
	}
	if req.TimeSteps < 1 {
		return &InvalidRequestError{Field: "time_steps", Message: fmt.Sprintf("must be at least 1, got %d", req.TimeSteps)}
	}
	if req.Mode != ModeReplace && req.Mode != ModeExtend {
		return &InvalidRequestError{Field: "mode", Message: req.Mode.String()}
	}

	indices, err := Resample(p.weights, req.NumCohorts, p.src)
	if err != nil {
		return err
	}

	ids := make([]int, len(indices))
	params := make([]float64, len(indices))
	specs := make([]types.CohortSpec, len(indices))
	for i, idx := range indices {
		ids[i] = p.ids[idx]
		if req.CohortIDs != nil {
			ids[i] = req.CohortIDs[i]
		}
		params[i] = p.params[idx]
		specs[i] = types.CohortSpec{ID: ids[i], Parameter: params[i], PopSize: req.CohortSize}
	}

	res, err := p.sim.Simulate(ctx, specs, req.TimeSteps)
	if err != nil {
		return fmt.Errorf("failed to simulate resampled cohorts: %w", err)
	}
	if len(res.MeanOutcomes) != len(specs) {
		return fmt.Errorf("simulator returned %d outcomes for %d cohorts", len(res.MeanOutcomes), len(specs))
	}

	if req.Mode == ModeReplace {
		p.resampledIDs = p.resampledIDs[:0]
		p.resampledParams = p.resampledParams[:0]
		p.outcomes = p.outcomes[:0]
	}
	p.resampledIDs = append(p.resampledIDs, ids...)
	p.resampledParams = append(p.resampledParams, params...)
	p.outcomes = append(p.outcomes, res.MeanOutcomes...)

	p.logger.Info("simulated resampled cohorts",
		"cohorts", req.NumCohorts,
		"cohort_size", req.CohortSize,
		"time_steps", req.TimeSteps,
		"mode", req.Mode.String(),
		"accumulated", len(p.outcomes))
	return nil
}

// MeanOutcomeInterval returns the mean of the simulated cohort outcomes and their
// projection interval at significance level alpha
func (p *Projector) MeanOutcomeInterval(alpha float64) (types.PosteriorSummary, error) {
	if len(p.outcomes) == 0 {
		return types.PosteriorSummary{}, ErrNotSimulated
	}
	return stats.Summarize(p.outcomes, alpha)
}

// ParameterCredibleInterval returns the posterior mean of the parameter and its credible
// interval at significance level alpha, from the resampled parameter values
func (p *Projector) ParameterCredibleInterval(alpha float64) (types.PosteriorSummary, error) {
	if len(p.resampledParams) == 0 {
		return types.PosteriorSummary{}, ErrNotSimulated
	}
	return stats.Summarize(p.resampledParams, alpha)
}

// Summary collects both intervals into the projection artifact
func (p *Projector) Summary(source string, req Request, alpha float64) (*types.ProjectionSummary, error) {
	outcome, err := p.MeanOutcomeInterval(alpha)
	if err != nil {
		return nil, fmt.Errorf("failed to compute projection interval: %w", err)
	}
	param, err := p.ParameterCredibleInterval(alpha)
	if err != nil {
		return nil, fmt.Errorf("failed to compute credible interval: %w", err)
	}
	return &types.ProjectionSummary{
		CalibrationSource:      source,
		NumCohorts:             len(p.outcomes),
		CohortSize:             req.CohortSize,
		TimeSteps:              req.TimeSteps,
		DrugEffectivenessRatio: p.ratio,
		MeanSurvivalTime:       outcome,
		MortalityProbability:   param,
	}, nil
}
