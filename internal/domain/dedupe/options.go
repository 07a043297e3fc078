package dedupe

import "time"

// Option applies a configuration option to the InMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithTTL sets how long a key is remembered.
func WithTTL(ttl time.Duration) Option {
	return func(d *inMemoryDeduper) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithCleanupInterval sets how often expired keys are purged.
func WithCleanupInterval(interval time.Duration) Option {
	return func(d *inMemoryDeduper) {
		if interval > 0 {
			d.cleanupInterval = interval
		}
	}
}
