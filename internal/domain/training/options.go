package training

import (
	"github.com/okian/fetalhealth/internal/domain/forest"
	"github.com/okian/fetalhealth/pkg/logger"
)

// Default training settings.
const (
	DefaultTestFraction = 0.2
	DefaultSeed         = 42
	DefaultFolds        = 5
)

// ProgressFunc receives the number of finished and total grid points.
type ProgressFunc func(done, total int)

// Option configures the training functions and the Pipeline.
type Option func(*config)

type config struct {
	testFraction float64
	seed         int64
	folds        int
	workers      int
	grid         Grid
	baseline     forest.Params
	progress     ProgressFunc
	logger       logger.Logger
}

func newConfig(opts []Option) config {
	c := config{
		testFraction: DefaultTestFraction,
		seed:         DefaultSeed,
		folds:        DefaultFolds,
		grid:         DefaultGrid(),
		baseline:     forest.DefaultParams(),
		progress:     func(int, int) {},
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithTestFraction sets the share of rows held out for evaluation.
func WithTestFraction(f float64) Option {
	return func(c *config) {
		if f > 0 && f < 1 {
			c.testFraction = f
		}
	}
}

// WithSeed sets the seed for the split permutation and every fitted forest.
func WithSeed(seed int64) Option {
	return func(c *config) {
		c.seed = seed
		c.baseline.Seed = seed
	}
}

// WithFolds sets the number of cross-validation folds.
func WithFolds(k int) Option {
	return func(c *config) {
		if k >= 2 {
			c.folds = k
		}
	}
}

// WithWorkers bounds how many trees each fit grows concurrently.
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithGrid sets the hyperparameter grid searched by the Pipeline.
func WithGrid(g Grid) Option {
	return func(c *config) {
		c.grid = g
	}
}

// WithBaselineParams sets the untuned configuration. The seed set by WithSeed wins.
func WithBaselineParams(p forest.Params) Option {
	return func(c *config) {
		seed := c.baseline.Seed
		c.baseline = p
		c.baseline.Seed = seed
	}
}

// WithProgress registers a callback invoked after every grid point.
func WithProgress(fn ProgressFunc) Option {
	return func(c *config) {
		if fn != nil {
			c.progress = fn
		}
	}
}

// ProgressOf returns the progress callback set by opts, or a no-op.
func ProgressOf(opts ...Option) ProgressFunc {
	return newConfig(opts).progress
}

// WithLogger sets the logger used for stage transitions.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func (c config) fitOptions() []forest.Option {
	if c.workers > 0 {
		return []forest.Option{forest.WithWorkers(c.workers)}
	}
	return nil
}
