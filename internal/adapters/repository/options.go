package repository

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/okian/fetalhealth/pkg/logger"
)

// Driver names registered by modernc.org/ql/driver.
const (
	DriverFile   = "ql"
	DriverMemory = "ql-mem"
)

// Option applies a configuration option to the QLStore.
type Option func(*QLStore)

// WithDriver selects the ql driver, DriverFile or DriverMemory.
func WithDriver(name string) Option {
	return func(s *QLStore) {
		if name != "" {
			s.driver = name
		}
	}
}

// WithPath sets the database file, or the database name for DriverMemory.
func WithPath(path string) Option {
	return func(s *QLStore) {
		if path != "" {
			s.path = path
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *QLStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBcryptCost sets the cost used when hashing new passwords.
func WithBcryptCost(cost int) Option {
	return func(s *QLStore) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *QLStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}
