package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonathan/survival-calibration/internal/config"
	"github.com/jonathan/survival-calibration/internal/observability"
	"github.com/jonathan/survival-calibration/internal/schemas"
	"github.com/jonathan/survival-calibration/internal/store"
	artifactschemas "github.com/jonathan/survival-calibration/schemas"
)

type inspectOptions struct {
	results string
	runID   string
	list    int

	calibrationSummary string
	projectionSummary  string
}

func newInspectCmd(root *rootOptions) *cobra.Command {
	opts := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Report ESS and weight statistics of a stored calibration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.results, "results", "i", config.Defaults().Results, "Results location: CSV path, sqlite://path or postgres:// URL")
	cmd.Flags().StringVar(&opts.runID, "run-id", "", "Calibration run to load from a database store (default latest)")
	cmd.Flags().IntVar(&opts.list, "list", 0, "Also list up to this many stored runs (database stores only)")
	cmd.Flags().StringVar(&opts.calibrationSummary, "calibration-summary", "", "Check a calibration summary JSON against its schema")
	cmd.Flags().StringVar(&opts.projectionSummary, "projection-summary", "", "Check a projection summary JSON against its schema")
	return cmd
}

func runInspect(cmd *cobra.Command, root *rootOptions, opts *inspectOptions) error {
	cfg, err := root.resolveConfig(cmd)
	if err != nil {
		return err
	}
	override(cmd, "results", &cfg.Results, opts.results)
	override(cmd, "run-id", &cfg.RunID, opts.runID)
	if err := cfg.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := checkSummaries(out, opts); err != nil {
		return err
	}

	ctx := commandContext(cmd)
	st, err := store.Open(ctx, cfg.Results)
	if err != nil {
		return fmt.Errorf("failed to open results store: %w", err)
	}
	defer func() { _ = st.Close() }()

	rows, err := st.LoadCalibration(ctx, cfg.RunID)
	if err != nil {
		return fmt.Errorf("failed to load calibration: %w", err)
	}

	printer := observability.NewPrinter(out)
	if catalog, ok := st.(store.RunCatalog); ok {
		if opts.list > 0 {
			runs, err := catalog.ListRuns(ctx, opts.list)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			printer.PrintRuns(runs)
		}
		run, err := catalog.Run(ctx, cfg.RunID)
		if err != nil {
			return fmt.Errorf("failed to load run metadata: %w", err)
		}
		printer.PrintRun(run)
	}
	printer.PrintWeightDiagnostics(st.Location(), rows)
	printer.PrintTopCandidates(rows)
	return nil
}

// checkSummaries validates the summary artifacts named on the command line.
// LoadCalibration has already rejected weights that do not form a posterior sample.
func checkSummaries(out io.Writer, opts *inspectOptions) error {
	checks := []struct {
		schema string
		path   string
	}{
		{artifactschemas.CalibrationSummary, opts.calibrationSummary},
		{artifactschemas.ProjectionSummary, opts.projectionSummary},
	}
	for _, c := range checks {
		if c.path == "" {
			continue
		}
		if err := schemas.ValidateFile(c.schema, c.path); err != nil {
			return fmt.Errorf("invalid summary %s: %w", c.path, err)
		}
		_, _ = fmt.Fprintf(out, "%s matches %s\n", c.path, c.schema)
	}
	return nil
}
