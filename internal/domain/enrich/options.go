package enrich

import "time"

type options struct {
	ttl         time.Duration
	negativeTTL time.Duration
	cacheSize   int
	concurrency int
	now         func() time.Time
}

// Option applies a configuration option to the Enricher.
type Option func(*options)

// WithTTL sets the lifetime of successful lookups.
func WithTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// WithNegativeTTL sets the lifetime of failed lookups.
func WithNegativeTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.negativeTTL = d
		}
	}
}

// WithCacheSize bounds the number of cached tables.
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// WithConcurrency caps in-flight lookups per batch. 0 means unbounded.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.concurrency = n
		}
	}
}

// WithClock overrides the cache time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
