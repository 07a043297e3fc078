package forest

import "runtime"

// Option configures a Fit call.
type Option func(*fitConfig)

type fitConfig struct {
	workers int
}

func defaultFitConfig() fitConfig {
	return fitConfig{workers: runtime.GOMAXPROCS(0)}
}

// WithWorkers bounds how many trees are grown concurrently.
func WithWorkers(n int) Option {
	return func(c *fitConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}
