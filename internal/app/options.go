package service

import (
	"time"

	"github.com/okian/fetalhealth/internal/domain/training"
	"github.com/okian/fetalhealth/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDatabase sets the ql driver and database path.
func WithDatabase(driver, path string) Option {
	return func(s *Service) {
		if driver != "" {
			s.dbDriver = driver
		}
		if path != "" {
			s.dbPath = path
		}
	}
}

// WithModelPath sets the model artifact file. The path is used as given;
// config.Config.ModelFile anchors relative paths at the executable.
func WithModelPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.modelPath = path
		}
	}
}

// WithWorkerCount sets the number of training workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of waiting training jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithSessionTTL sets how long an idle session lives.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithMaxJobsRetained caps how many finished jobs are kept for polling.
func WithMaxJobsRetained(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxJobs = n
		}
	}
}

// WithBcryptCost sets the password hashing cost for users created through the service.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// WithTrainingOptions sets the options every training run uses.
func WithTrainingOptions(opts ...training.Option) Option {
	return func(s *Service) {
		s.trainingOpts = append(s.trainingOpts, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
