package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/survival-calibration/internal/config"
	"github.com/jonathan/survival-calibration/internal/observability"
	"github.com/jonathan/survival-calibration/internal/projection"
	"github.com/jonathan/survival-calibration/internal/store"
	"github.com/jonathan/survival-calibration/internal/survival"
	artifactschemas "github.com/jonathan/survival-calibration/schemas"
)

type projectOptions struct {
	results    string
	runID      string
	numCohorts int
	cohortSize int
	timeSteps  int
	ratio      float64
	alpha      float64
	mode       string
	repeats    int
	seed       uint64
	workers    int
	summaryOut string
}

func newProjectCmd(root *rootOptions) *cobra.Command {
	opts := &projectOptions{}
	def := config.Defaults()
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project survival outcomes from a stored calibration",
		Long:  "Loads a stored calibration, resamples mortality parameters by weight, optionally rescales them by a drug effectiveness ratio, simulates one cohort per draw, and reports the mean survival time and mortality probability with intervals.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProject(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.results, "results", "i", def.Results, "Results location: CSV path, sqlite://path or postgres:// URL")
	f.StringVar(&opts.runID, "run-id", "", "Calibration run to load from a database store (default latest)")
	f.IntVar(&opts.numCohorts, "num-cohorts", def.NumCohorts, "Resampled cohorts per simulation")
	f.IntVar(&opts.cohortSize, "cohort-size", def.CohortSize, "Patients per projected cohort")
	f.IntVar(&opts.timeSteps, "time-steps", def.TimeSteps, "Simulation horizon in steps")
	f.Float64Var(&opts.ratio, "drug-effectiveness-ratio", def.DrugEffectivenessRatio, "Multiplier applied to every calibrated mortality probability")
	f.Float64Var(&opts.alpha, "alpha", def.Alpha, "Significance level of the reported intervals")
	f.StringVar(&opts.mode, "mode", def.Mode, "How repeated simulations combine: replace or extend")
	f.IntVar(&opts.repeats, "repeats", def.Repeats, "Number of simulation rounds")
	f.Uint64Var(&opts.seed, "seed", def.Seed, "Random seed")
	f.IntVar(&opts.workers, "workers", def.Workers, "Concurrent cohort simulations (0 = GOMAXPROCS)")
	f.StringVar(&opts.summaryOut, "summary-out", "", "Write a JSON projection summary to this path")
	return cmd
}

func runProject(cmd *cobra.Command, root *rootOptions, opts *projectOptions) error {
	cfg, err := root.resolveConfig(cmd)
	if err != nil {
		return err
	}
	override(cmd, "results", &cfg.Results, opts.results)
	override(cmd, "run-id", &cfg.RunID, opts.runID)
	override(cmd, "num-cohorts", &cfg.NumCohorts, opts.numCohorts)
	override(cmd, "cohort-size", &cfg.CohortSize, opts.cohortSize)
	override(cmd, "time-steps", &cfg.TimeSteps, opts.timeSteps)
	override(cmd, "drug-effectiveness-ratio", &cfg.DrugEffectivenessRatio, opts.ratio)
	override(cmd, "alpha", &cfg.Alpha, opts.alpha)
	override(cmd, "mode", &cfg.Mode, opts.mode)
	override(cmd, "repeats", &cfg.Repeats, opts.repeats)
	override(cmd, "seed", &cfg.Seed, opts.seed)
	override(cmd, "workers", &cfg.Workers, opts.workers)
	override(cmd, "summary-out", &cfg.SummaryOut, opts.summaryOut)
	if err := cfg.Validate(); err != nil {
		return err
	}
	req, err := cfg.ProjectionRequest()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	logger := newLogger(cmd, cfg)

	st, err := store.Open(ctx, cfg.Results)
	if err != nil {
		return fmt.Errorf("failed to open results store: %w", err)
	}
	defer func() { _ = st.Close() }()

	rows, err := st.LoadCalibration(ctx, cfg.RunID)
	if err != nil {
		return fmt.Errorf("failed to load calibration: %w", err)
	}

	sim := survival.NewSimulator(cfg.Seed^simulatorSeedSalt, cfg.Workers, logger)
	projector, err := projection.New(rows, sim, projection.Options{
		DrugEffectivenessRatio: cfg.DrugEffectivenessRatio,
		Seed:                   cfg.Seed,
		Logger:                 logger,
	})
	if err != nil {
		return fmt.Errorf("invalid calibration at %s: %w", st.Location(), err)
	}

	for i := 0; i < cfg.Repeats; i++ {
		if err := projector.Simulate(ctx, req); err != nil {
			return fmt.Errorf("projection round %d failed: %w", i+1, err)
		}
	}

	summary, err := projector.Summary(st.Location(), req, cfg.Alpha)
	if err != nil {
		return err
	}
	if cfg.SummaryOut != "" {
		if err := writeArtifact(logger, artifactschemas.ProjectionSummary, cfg.SummaryOut, summary); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if cfg.Verbose {
		observability.NewPrinter(out).PrintProjectionSummary(summary)
	}
	level := 100 * (1 - cfg.Alpha)
	_, _ = fmt.Fprintf(out, "Mean survival time %.3f, %.0f%% projection interval [%.3f, %.3f]\n",
		summary.MeanSurvivalTime.Mean, level,
		summary.MeanSurvivalTime.Interval.Lower, summary.MeanSurvivalTime.Interval.Upper)
	_, _ = fmt.Fprintf(out, "Mortality probability %.5f, %.0f%% credible interval [%.5f, %.5f]\n",
		summary.MortalityProbability.Mean, level,
		summary.MortalityProbability.Interval.Lower, summary.MortalityProbability.Interval.Upper)
	return nil
}
