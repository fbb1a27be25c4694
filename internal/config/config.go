// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/survival-calibration/internal/calibration"
	"github.com/jonathan/survival-calibration/internal/projection"
	"github.com/jonathan/survival-calibration/internal/types"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv
const EnvPrefix = "SURVCAL_"

// Config holds the settings shared by the calibrate and project commands.
// Values come from Defaults, then a config file, then SURVCAL_* environment variables,
// then CLI flags.
type Config struct {
	// Prior and calibration sampling
	PriorLow        float64 `json:"prior_low" yaml:"prior_low" env:"PRIOR_LOW"`
	PriorHigh       float64 `json:"prior_high" yaml:"prior_high" env:"PRIOR_HIGH" validate:"gtfield=PriorLow"`
	NumSamples      int     `json:"num_samples" yaml:"num_samples" env:"NUM_SAMPLES" validate:"gte=1"`
	PopSize         int     `json:"pop_size" yaml:"pop_size" env:"POP_SIZE" validate:"gte=1"`
	TimeSteps       int     `json:"time_steps" yaml:"time_steps" env:"TIME_STEPS" validate:"gte=1"`
	ObservedMean    float64 `json:"observed_mean" yaml:"observed_mean" env:"OBSERVED_MEAN"`
	ObservedStDev   float64 `json:"observed_stdev" yaml:"observed_stdev" env:"OBSERVED_STDEV" validate:"gt=0"`
	ESSWarnFraction float64 `json:"ess_warn_fraction" yaml:"ess_warn_fraction" env:"ESS_WARN_FRACTION" validate:"gte=0,lte=1"`
	Seed            uint64  `json:"seed" yaml:"seed" env:"SEED"`
	Workers         int     `json:"workers" yaml:"workers" env:"WORKERS" validate:"gte=0"`

	// Storage: a CSV path, sqlite://path or postgres:// URL
	Results string `json:"results" yaml:"results" env:"RESULTS" validate:"required"`
	RunID   string `json:"run_id,omitempty" yaml:"run_id,omitempty" env:"RUN_ID" validate:"omitempty,uuid"`

	// Projection
	NumCohorts             int     `json:"num_cohorts" yaml:"num_cohorts" env:"NUM_COHORTS" validate:"gte=1"`
	CohortSize             int     `json:"cohort_size" yaml:"cohort_size" env:"COHORT_SIZE" validate:"gte=1"`
	DrugEffectivenessRatio float64 `json:"drug_effectiveness_ratio" yaml:"drug_effectiveness_ratio" env:"DRUG_EFFECTIVENESS_RATIO" validate:"gt=0"`
	Alpha                  float64 `json:"alpha" yaml:"alpha" env:"ALPHA" validate:"gt=0,lt=1"`
	Mode                   string  `json:"mode" yaml:"mode" env:"MODE" validate:"omitempty,oneof=replace extend"`
	Repeats                int     `json:"repeats" yaml:"repeats" env:"REPEATS" validate:"gte=1"`

	// Output
	SummaryOut string `json:"summary_out,omitempty" yaml:"summary_out,omitempty" env:"SUMMARY_OUT"`
	LogLevel   string `json:"log_level" yaml:"log_level" env:"LOG_LEVEL" validate:"omitempty,oneof=info debug trace"`
	Verbose    bool   `json:"verbose,omitempty" yaml:"verbose,omitempty" env:"VERBOSE"`
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		PriorLow:               0.05,
		PriorHigh:              0.25,
		NumSamples:             1000,
		PopSize:                500,
		TimeSteps:              1000,
		ObservedMean:           10,
		ObservedStDev:          2,
		ESSWarnFraction:        calibration.DefaultESSWarnFraction,
		Seed:                   1,
		Results:                "CalibrationResults.csv",
		NumCohorts:             500,
		CohortSize:             500,
		DrugEffectivenessRatio: 1,
		Alpha:                  0.05,
		Mode:                   projection.ModeReplace.String(),
		Repeats:                1,
		LogLevel:               "info",
	}
}

// LoadConfig loads configuration from a YAML or JSON file on top of Defaults.
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// Resolve builds the effective configuration: Defaults, then the file at path when
// path is non-empty, then environment variables.
func Resolve(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from SURVCAL_* environment variables that are set
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their config-file key
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks that the configuration has valid values.
// The first violated rule is returned as a calibration.ConfigurationError.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("config error: %w", err)
	}
	fe := verrs[0]
	return &calibration.ConfigurationError{Field: fe.Field(), Message: describe(fe)}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gtfield":
		return fmt.Sprintf("must be greater than prior_low, got %v", fe.Value())
	case "gt":
		return fmt.Sprintf("must be greater than %s, got %v", fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "lt":
		return fmt.Sprintf("must be less than %s, got %v", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be at most %s, got %v", fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value())
	case "uuid":
		return fmt.Sprintf("must be a UUID, got %q", fe.Value())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// CalibrationSettings returns the settings for a calibration run
func (c *Config) CalibrationSettings() calibration.Settings {
	return calibration.Settings{
		NumSamples:      c.NumSamples,
		Prior:           types.Prior{Low: c.PriorLow, High: c.PriorHigh},
		PopSize:         c.PopSize,
		TimeSteps:       c.TimeSteps,
		Observed:        types.ObservedStatistic{Mean: c.ObservedMean, StDev: c.ObservedStDev},
		ESSWarnFraction: c.ESSWarnFraction,
	}
}

// ProjectionRequest returns the request for one projection run
func (c *Config) ProjectionRequest() (projection.Request, error) {
	mode, err := projection.ParseMode(c.Mode)
	if err != nil {
		return projection.Request{}, err
	}
	return projection.Request{
		NumCohorts: c.NumCohorts,
		CohortSize: c.CohortSize,
		TimeSteps:  c.TimeSteps,
		Mode:       mode,
	}, nil
}
