// Package survival simulates cohorts of patients under a constant per-step mortality
// probability and reports each cohort's mean survival time.
package survival

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/survival-calibration/internal/logging"
	"github.com/jonathan/survival-calibration/internal/types"
)

// Simulator runs multi-cohort survival simulations.
// Random streams are derived from Seed so results do not depend on scheduling.
type Simulator struct {
	seed    uint64
	workers int
	calls   atomic.Uint64
	logger  *slog.Logger
}

// NewSimulator creates a simulator. workers <= 0 uses GOMAXPROCS.
func NewSimulator(seed uint64, workers int, logger *slog.Logger) *Simulator {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Simulator{seed: seed, workers: workers, logger: logging.OrDiscard(logger)}
}

// Simulate runs every cohort for timeSteps steps and returns mean survival times in input order.
// Each call draws fresh streams, so invoking it repeatedly in one process is safe.
func (s *Simulator) Simulate(ctx context.Context, cohorts []types.CohortSpec, timeSteps int) (*types.SimulationResult, error) {
	if timeSteps < 1 {
		return nil, &InputError{CohortID: -1, Message: fmt.Sprintf("time steps must be at least 1, got %d", timeSteps)}
	}
	for _, c := range cohorts {
		if c.PopSize < 1 {
			return nil, &InputError{CohortID: c.ID, Message: fmt.Sprintf("population size must be at least 1, got %d", c.PopSize)}
		}
		if math.IsNaN(c.Parameter) || c.Parameter < 0 || c.Parameter > 1 {
			return nil, &InputError{CohortID: c.ID, Message: fmt.Sprintf("mortality probability must be in [0, 1], got %v", c.Parameter)}
		}
	}

	// Seeds are drawn sequentially before any goroutine starts.
	call := s.calls.Add(1)
	master := rand.New(rand.NewPCG(s.seed, call))
	seeds := make([]uint64, len(cohorts))
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	start := time.Now()
	means := make([]float64, len(cohorts))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, c := range cohorts {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(seeds[i], uint64(i)))
			means[i] = simulateCohort(rng, c.Parameter, c.PopSize, timeSteps)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to simulate cohorts: %w", err)
	}

	ids := make([]int, len(cohorts))
	for i, c := range cohorts {
		ids[i] = c.ID
	}

	s.logger.Debug("simulated cohorts",
		"cohorts", len(cohorts),
		"time_steps", timeSteps,
		"workers", s.workers,
		"elapsed", time.Since(start))

	return &types.SimulationResult{IDs: ids, MeanOutcomes: means}, nil
}
