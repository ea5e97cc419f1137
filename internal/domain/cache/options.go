package cache

import "time"

type options struct {
	maxSize int
	now     func() time.Time
}

// Option applies a configuration option to the cache.
type Option func(*options)

// WithMaxSize bounds the number of entries.
// If maxSize <= 0 the cache is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(o *options) {
		o.maxSize = maxSize
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
