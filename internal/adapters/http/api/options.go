package api

import "github.com/okian/fetalhealth/pkg/logger"

type config struct {
	logger logger.Logger
}

// Option configures the Server.
type Option func(*config)

// WithLogger sets the logger used for failed requests.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
