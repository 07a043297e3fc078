package artifact

import (
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/okian/fetalhealth/pkg/logger"
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCompressionLevel sets the zstd encoder level used by Save.
func WithCompressionLevel(level zstd.EncoderLevel) Option {
	return func(s *Store) {
		if level >= zstd.SpeedFastest && level <= zstd.SpeedBestCompression {
			s.level = level
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}
