// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/jonathan/survival-calibration/internal/stats"
	"github.com/jonathan/survival-calibration/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintCalibrationSummary outputs the run parameters and importance-sampling diagnostics.
func (p *Printer) PrintCalibrationSummary(summary *types.CalibrationSummary) {
	if summary == nil {
		return
	}

	run := summary.Run
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:        %s\n", run.ID))
	sb.WriteString(fmt.Sprintf("Prior:      U[%.4g, %.4g]\n", run.Prior.Low, run.Prior.High))
	sb.WriteString(fmt.Sprintf("Observed:   mean %.4g, sd %.4g\n", run.Observed.Mean, run.Observed.StDev))
	sb.WriteString(fmt.Sprintf("Candidates: %d (pop %d, %d steps)\n", run.NumSamples, run.PopSize, run.TimeSteps))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("ESS:        %.1f (%.1f%% of candidates)\n", run.EffectiveSampleSize, 100*summary.ESSFraction))
	sb.WriteString(fmt.Sprintf("Max weight: %.4g\n", summary.MaxWeight))
	sb.WriteString(fmt.Sprintf("Posterior:  mean %.4g\n", summary.PosteriorMean))
	if summary.LowESS {
		sb.WriteString("\nWARNING: low effective sample size; widen the prior\nor increase the number of candidates\n")
	}
	sb.WriteString(fmt.Sprintf("\nResults:    %s", summary.ResultsLocation))

	p.printBox("CALIBRATION", sb.String())
}

// PrintTopCandidates outputs the highest-weighted calibration rows.
func (p *Printer) PrintTopCandidates(rows []types.CalibrationRow) {
	if len(rows) == 0 {
		return
	}

	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b types.CalibrationRow) int {
		return cmp.Compare(b.Weight, a.Weight)
	})

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total candidates: %d\n\n", len(rows)))
	count := min(len(sorted), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("#%d  cohort %-6d p=%.5f  w=%.4g\n", i+1, sorted[i].CohortID, sorted[i].Parameter, sorted[i].Weight))
	}
	if len(sorted) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more candidates", len(sorted)-maxItemsToShow))
	}

	p.printBox("TOP WEIGHTED CANDIDATES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintWeightDiagnostics outputs ESS and weighted parameter statistics of stored rows.
func (p *Printer) PrintWeightDiagnostics(source string, rows []types.CalibrationRow) {
	if len(rows) == 0 {
		return
	}

	weights := make([]float64, len(rows))
	params := make([]float64, len(rows))
	nonZero := 0
	for i, r := range rows {
		weights[i] = r.Weight
		params[i] = r.Parameter
		if r.Weight > 0 {
			nonZero++
		}
	}
	ess := stats.EffectiveSampleSize(weights)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Source:          %s\n", source))
	sb.WriteString(fmt.Sprintf("Rows:            %d (%d with positive weight)\n", len(rows), nonZero))
	sb.WriteString(fmt.Sprintf("ESS:             %.1f\n", ess))
	sb.WriteString(fmt.Sprintf("Max weight:      %.4g\n", slices.Max(weights)))
	sb.WriteString(fmt.Sprintf("Posterior mean:  %.5g", stats.WeightedMean(weights, params)))

	p.printBox("STORED CALIBRATION", sb.String())
}

// PrintRun outputs the stored metadata of one calibration run.
func (p *Printer) PrintRun(run *types.CalibrationRun) {
	if run == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:        %s\n", run.ID))
	sb.WriteString(fmt.Sprintf("Created:    %s\n", run.CreatedAt.UTC().Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Prior:      U[%.4g, %.4g]\n", run.Prior.Low, run.Prior.High))
	sb.WriteString(fmt.Sprintf("Observed:   mean %.4g, sd %.4g\n", run.Observed.Mean, run.Observed.StDev))
	sb.WriteString(fmt.Sprintf("Candidates: %d (pop %d, %d steps, seed %d)\n", run.NumSamples, run.PopSize, run.TimeSteps, run.Seed))
	sb.WriteString(fmt.Sprintf("ESS:        %.1f", run.EffectiveSampleSize))

	p.printBox("CALIBRATION RUN", sb.String())
}

// PrintRuns outputs one line per stored calibration run, newest first.
func (p *Printer) PrintRuns(runs []types.RunListing) {
	if len(runs) == 0 {
		p.printBox("CALIBRATION RUNS", "No runs stored")
		return
	}

	lines := make([]string, 0, len(runs))
	for _, r := range runs {
		lines = append(lines, fmt.Sprintf("%s  %s  n=%d ess=%.1f",
			r.ID.String()[:8], r.CreatedAt.UTC().Format("2006-01-02 15:04"), r.NumSamples, r.EffectiveSampleSize))
	}
	p.printBox(fmt.Sprintf("CALIBRATION RUNS (%d)", len(runs)), strings.Join(lines, "\n"))
}

// PrintProjectionSummary outputs the projected outcome and the parameter estimate.
func (p *Printer) PrintProjectionSummary(summary *types.ProjectionSummary) {
	if summary == nil {
		return
	}

	level := 100 * (1 - summary.MeanSurvivalTime.Alpha)
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Calibration: %s\n", summary.CalibrationSource))
	sb.WriteString(fmt.Sprintf("Cohorts:     %d x %d patients, %d steps\n", summary.NumCohorts, summary.CohortSize, summary.TimeSteps))
	if summary.DrugEffectivenessRatio != 1 {
		sb.WriteString(fmt.Sprintf("Drug effect: mortality x %.4g\n", summary.DrugEffectivenessRatio))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Mean survival time: %.3f\n", summary.MeanSurvivalTime.Mean))
	sb.WriteString(fmt.Sprintf("  %.0f%% projection interval: [%.3f, %.3f]\n", level,
		summary.MeanSurvivalTime.Interval.Lower, summary.MeanSurvivalTime.Interval.Upper))
	sb.WriteString(fmt.Sprintf("Mortality probability: %.5f\n", summary.MortalityProbability.Mean))
	sb.WriteString(fmt.Sprintf("  %.0f%% credible interval: [%.5f, %.5f]", level,
		summary.MortalityProbability.Interval.Lower, summary.MortalityProbability.Interval.Upper))

	p.printBox("PROJECTION", sb.String())
}
