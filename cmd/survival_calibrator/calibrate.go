package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/survival-calibration/internal/calibration"
	"github.com/jonathan/survival-calibration/internal/config"
	"github.com/jonathan/survival-calibration/internal/observability"
	"github.com/jonathan/survival-calibration/internal/store"
	"github.com/jonathan/survival-calibration/internal/survival"
	artifactschemas "github.com/jonathan/survival-calibration/schemas"
)

type calibrateOptions struct {
	priorLow        float64
	priorHigh       float64
	numSamples      int
	popSize         int
	timeSteps       int
	observedMean    float64
	observedStDev   float64
	essWarnFraction float64
	seed            uint64
	workers         int
	results         string
	summaryOut      string
}

func newCalibrateCmd(root *rootOptions) *cobra.Command {
	opts := &calibrateOptions{}
	def := config.Defaults()
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Sample the posterior of the mortality parameter and store the weighted sample",
		Long:  "Draws candidate mortality probabilities from a uniform prior, simulates one cohort per candidate, weights each candidate by the likelihood of the observed mean survival time, and stores the normalized weights.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCalibrate(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.priorLow, "prior-low", def.PriorLow, "Lower bound of the uniform prior")
	f.Float64Var(&opts.priorHigh, "prior-high", def.PriorHigh, "Upper bound of the uniform prior")
	f.IntVarP(&opts.numSamples, "num-samples", "n", def.NumSamples, "Number of prior candidates")
	f.IntVar(&opts.popSize, "pop-size", def.PopSize, "Patients per simulated cohort")
	f.IntVar(&opts.timeSteps, "time-steps", def.TimeSteps, "Simulation horizon in steps")
	f.Float64Var(&opts.observedMean, "observed-mean", def.ObservedMean, "Observed mean survival time")
	f.Float64Var(&opts.observedStDev, "observed-stdev", def.ObservedStDev, "Standard deviation of the observed mean")
	f.Float64Var(&opts.essWarnFraction, "ess-warn-fraction", def.ESSWarnFraction, "Warn when ESS falls below this fraction of candidates")
	f.Uint64Var(&opts.seed, "seed", def.Seed, "Random seed")
	f.IntVar(&opts.workers, "workers", def.Workers, "Concurrent cohort simulations (0 = GOMAXPROCS)")
	f.StringVarP(&opts.results, "results", "o", def.Results, "Results location: CSV path, sqlite://path or postgres:// URL")
	f.StringVar(&opts.summaryOut, "summary-out", "", "Write a JSON calibration summary to this path")
	return cmd
}

func runCalibrate(cmd *cobra.Command, root *rootOptions, opts *calibrateOptions) error {
	cfg, err := root.resolveConfig(cmd)
	if err != nil {
		return err
	}
	override(cmd, "prior-low", &cfg.PriorLow, opts.priorLow)
	override(cmd, "prior-high", &cfg.PriorHigh, opts.priorHigh)
	override(cmd, "num-samples", &cfg.NumSamples, opts.numSamples)
	override(cmd, "pop-size", &cfg.PopSize, opts.popSize)
	override(cmd, "time-steps", &cfg.TimeSteps, opts.timeSteps)
	override(cmd, "observed-mean", &cfg.ObservedMean, opts.observedMean)
	override(cmd, "observed-stdev", &cfg.ObservedStDev, opts.observedStDev)
	override(cmd, "ess-warn-fraction", &cfg.ESSWarnFraction, opts.essWarnFraction)
	override(cmd, "seed", &cfg.Seed, opts.seed)
	override(cmd, "workers", &cfg.Workers, opts.workers)
	override(cmd, "results", &cfg.Results, opts.results)
	override(cmd, "summary-out", &cfg.SummaryOut, opts.summaryOut)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := commandContext(cmd)
	logger := newLogger(cmd, cfg)

	st, err := store.Open(ctx, cfg.Results)
	if err != nil {
		return fmt.Errorf("failed to open results store: %w", err)
	}
	defer func() { _ = st.Close() }()

	sim := survival.NewSimulator(cfg.Seed^simulatorSeedSalt, cfg.Workers, logger)
	calibrator := calibration.New(sim, st, calibration.Options{Seed: cfg.Seed, Logger: logger})

	result, err := calibrator.SamplePosterior(ctx, cfg.CalibrationSettings())
	if err != nil {
		return fmt.Errorf("calibration failed: %w", err)
	}

	summary := result.Summary(st.Location())
	if cfg.SummaryOut != "" {
		if err := writeArtifact(logger, artifactschemas.CalibrationSummary, cfg.SummaryOut, summary); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if cfg.Verbose {
		printer := observability.NewPrinter(out)
		printer.PrintCalibrationSummary(&summary)
		printer.PrintTopCandidates(result.Rows())
	}
	_, _ = fmt.Fprintf(out, "Calibration run %s: ESS %.1f of %d candidates, posterior mean %.5f, results at %s\n",
		summary.Run.ID, summary.Run.EffectiveSampleSize, summary.Run.NumSamples, summary.PosteriorMean, summary.ResultsLocation)
	if summary.LowESS {
		_, _ = fmt.Fprintln(out, "Warning: low effective sample size")
	}
	return nil
}
