// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load(ctx) layers an optional YAML file and FHS_ env vars over the defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/okian/fetalhealth/internal/domain/forest"
	"github.com/okian/fetalhealth/internal/domain/training"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBDriver is "ql" for a database file or "ql-mem" for a transient one.
	DBDriver string `koanf:"db_driver"`
	DBPath   string `koanf:"db_path"`

	// ModelPath is the artifact file loaded at start and written on save.
	ModelPath string `koanf:"model_path"`

	// Seed drives the split and every fitted forest.
	Seed         int64   `koanf:"seed"`
	TestFraction float64 `koanf:"test_fraction"`
	CVFolds      int     `koanf:"cv_folds"`

	// Grid axes searched by training. Empty axes are left out of the grid.
	GridNEstimators     []int `koanf:"grid_n_estimators"`
	GridMaxDepth        []int `koanf:"grid_max_depth"`
	GridMinSamplesSplit []int `koanf:"grid_min_samples_split"`
	GridMinSamplesLeaf  []int `koanf:"grid_min_samples_leaf"`

	// BaselineNEstimators sizes the untuned reference forest.
	BaselineNEstimators int `koanf:"baseline_n_estimators"`

	// FitWorkers bounds concurrent tree growth per fit.
	FitWorkers int `koanf:"fit_workers"`

	// TrainQueueSize bounds pending training jobs.
	TrainQueueSize int `koanf:"train_queue_size"`

	// TrainWorkerCount sets the number of concurrent training jobs.
	TrainWorkerCount int `koanf:"train_worker_count"`

	SessionTTLSeconds int `koanf:"session_ttl_seconds"`

	// MaxJobsRetained caps finished jobs kept for polling.
	MaxJobsRetained int `koanf:"max_jobs_retained"`
}

// New creates a Config with defaults.
func New() *Config {
	grid := training.DefaultGrid()
	c := &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		DBDriver:            "ql",
		DBPath:              "fetal_health.ql",
		ModelPath:           "model.fhs",
		Seed:                training.DefaultSeed,
		TestFraction:        training.DefaultTestFraction,
		CVFolds:             training.DefaultFolds,
		GridNEstimators:     grid[0].Values,
		GridMaxDepth:        grid[1].Values,
		GridMinSamplesSplit: grid[2].Values,
		GridMinSamplesLeaf:  grid[3].Values,
		BaselineNEstimators: forest.DefaultParams().NEstimators,
		FitWorkers:          runtime.NumCPU(),
		TrainQueueSize:      8,
		TrainWorkerCount:    1,
		SessionTTLSeconds:   8 * 60 * 60,
		MaxJobsRetained:     50,
	}
	return c
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DBDriver != "ql" && c.DBDriver != "ql-mem":
		return fmt.Errorf("%w: db_driver must be ql or ql-mem, got %q", ErrInvalidConfig, c.DBDriver)
	case strings.TrimSpace(c.DBPath) == "":
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.ModelPath) == "":
		return fmt.Errorf("%w: model_path must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.TestFraction <= 0 || c.TestFraction >= 1:
		return fmt.Errorf("%w: test_fraction must be in (0,1), got %v", ErrInvalidConfig, c.TestFraction)
	case c.CVFolds < 2:
		return fmt.Errorf("%w: cv_folds must be >= 2, got %d", ErrInvalidConfig, c.CVFolds)
	case c.BaselineNEstimators < 1:
		return fmt.Errorf("%w: baseline_n_estimators must be >= 1, got %d", ErrInvalidConfig, c.BaselineNEstimators)
	case c.TrainQueueSize < 1:
		return fmt.Errorf("%w: train_queue_size must be >= 1, got %d", ErrInvalidConfig, c.TrainQueueSize)
	case c.TrainWorkerCount < 1:
		return fmt.Errorf("%w: train_worker_count must be >= 1, got %d", ErrInvalidConfig, c.TrainWorkerCount)
	case c.SessionTTLSeconds < 1:
		return fmt.Errorf("%w: session_ttl_seconds must be >= 1, got %d", ErrInvalidConfig, c.SessionTTLSeconds)
	}
	points, err := c.Grid().Combinations(c.BaselineParams())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for _, p := range points {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: grid point %s: %w", ErrInvalidConfig, p, err)
		}
	}
	return nil
}

// Grid assembles the search grid from the non-empty grid_* settings.
func (c *Config) Grid() training.Grid {
	axes := []training.Axis{
		{Name: training.AxisNEstimators, Values: c.GridNEstimators},
		{Name: training.AxisMaxDepth, Values: c.GridMaxDepth},
		{Name: training.AxisMinSamplesSplit, Values: c.GridMinSamplesSplit},
		{Name: training.AxisMinSamplesLeaf, Values: c.GridMinSamplesLeaf},
	}
	g := make(training.Grid, 0, len(axes))
	for _, a := range axes {
		if len(a.Values) > 0 {
			g = append(g, a)
		}
	}
	return g
}

// BaselineParams returns the untuned forest configuration.
func (c *Config) BaselineParams() forest.Params {
	p := forest.DefaultParams()
	p.NEstimators = c.BaselineNEstimators
	p.Seed = c.Seed
	return p
}

// ModelFile returns the model artifact path. A relative model_path is taken
// relative to the directory holding the running executable, so the artifact
// stays next to the install regardless of the working directory.
func (c *Config) ModelFile() string {
	return resolveNextTo(c.ModelPath, os.Executable)
}

func resolveNextTo(p string, executable func() (string, error)) string {
	if filepath.IsAbs(p) {
		return p
	}
	exe, err := executable()
	if err != nil {
		return p
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), p)
}

// SessionTTL returns the session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

// TrainingOptions converts the training settings into pipeline options.
func (c *Config) TrainingOptions() []training.Option {
	return []training.Option{
		training.WithSeed(c.Seed),
		training.WithTestFraction(c.TestFraction),
		training.WithFolds(c.CVFolds),
		training.WithGrid(c.Grid()),
		training.WithBaselineParams(c.BaselineParams()),
		training.WithWorkers(c.FitWorkers),
	}
}
