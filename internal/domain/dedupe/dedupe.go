// Package dedupe tracks idempotency keys so a retried request is applied once.
package dedupe

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	defaultTTL             = 24 * time.Hour
	defaultCleanupInterval = 10 * time.Minute
)

// Deduper records seen keys to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so the request can be retried. Use it when the
	// work guarded by id failed after the key was recorded.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper implements Deduper on a TTL cache; keys expire after ttl.
type inMemoryDeduper struct {
	seen            *cache.Cache
	ttl             time.Duration
	cleanupInterval time.Duration
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		ttl:             defaultTTL,
		cleanupInterval: defaultCleanupInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = cache.New(d.ttl, d.cleanupInterval)
	return d
}

// SeenAndRecord relies on cache.Add failing for keys that are present and unexpired.
func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	return d.seen.Add(id, struct{}{}, cache.DefaultExpiration) != nil
}

// Unrecord removes an ID from the seen set, allowing it to be retried.
func (d *inMemoryDeduper) Unrecord(ctx context.Context, id string) {
	d.seen.Delete(id)
}

// Size returns the number of remembered keys, including expired keys not yet purged.
func (d *inMemoryDeduper) Size() int64 {
	return int64(d.seen.ItemCount())
}
