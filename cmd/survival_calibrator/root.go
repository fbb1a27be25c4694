package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/survival-calibration/internal/config"
	"github.com/jonathan/survival-calibration/internal/logging"
	"github.com/jonathan/survival-calibration/internal/schemas"
)

// simulatorSeedSalt separates the simulator's random stream from the sampler's when both
// are seeded from the same configured seed
const simulatorSeedSalt = 0x9E3779B97F4A7C15

// rootOptions holds the persistent flags shared by every subcommand
type rootOptions struct {
	configPath string
	logLevel   string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "survival_calibrator",
		Short:         "Bayesian calibration and projection of a survival simulator",
		Long:          "survival_calibrator calibrates a stochastic survival simulator against an observed mean survival time by sampling-importance-resampling, stores the weighted posterior sample, and projects survival outcomes from it.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (.yaml, .yml or .json)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: info, debug or trace")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print boxed summaries")

	cmd.AddCommand(newCalibrateCmd(opts))
	cmd.AddCommand(newProjectCmd(opts))
	cmd.AddCommand(newInspectCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// resolveConfig builds the effective configuration for cmd: defaults, config file,
// environment, then the persistent flags that were set explicitly.
// Command-specific flags are applied by the caller before validation.
func (o *rootOptions) resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Resolve(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	override(cmd, "log-level", &cfg.LogLevel, o.logLevel)
	override(cmd, "verbose", &cfg.Verbose, o.verbose)
	return cfg, nil
}

// override copies v into dst when the flag called name was set on the command line
func override[T any](cmd *cobra.Command, name string, dst *T, v T) {
	if cmd.Flags().Changed(name) {
		*dst = v
	}
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.NewLogger(cfg.LogLevel, cmd.ErrOrStderr())
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// writeArtifact validates v against the named embedded schema and writes it as indented
// JSON to path. A schema mismatch is logged and the artifact is still written.
func writeArtifact(logger *slog.Logger, schemaName, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	if err := schemas.Validate(schemaName, data); err != nil {
		logger.Warn("artifact does not match its schema", "path", path, "schema", schemaName, "error", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.Info("wrote artifact", "path", path)
	return nil
}
