package repository

import "time"

// MemoryOption applies a configuration option to the MemoryStorage.
type MemoryOption func(*MemoryStorage)

// WithMemoryClock overrides the time source used for age filters.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStorage) {
		if now != nil {
			s.now = now
		}
	}
}

// ConnOption applies a configuration option to the ConnectionManager.
type ConnOption func(*ConnectionManager)

// WithDialer replaces the pgxpool dialer.
func WithDialer(d Dialer) ConnOption {
	return func(m *ConnectionManager) {
		if d != nil {
			m.dial = d
		}
	}
}

// WithSafetyMargin sets how long before token expiry a pool is retired.
func WithSafetyMargin(d time.Duration) ConnOption {
	return func(m *ConnectionManager) {
		if d >= 0 {
			m.margin = d
		}
	}
}

// WithConnClock overrides the time source.
func WithConnClock(now func() time.Time) ConnOption {
	return func(m *ConnectionManager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithCandidates replaces the credential candidates.
func WithCandidates(c ...Candidate) ConnOption {
	return func(m *ConnectionManager) {
		m.candidates = c
	}
}

// SchemaOption applies a configuration option to the SchemaRegistry.
type SchemaOption func(*SchemaRegistry)

// WithReadyTTL sets how long a successful schema check is trusted.
func WithReadyTTL(d time.Duration) SchemaOption {
	return func(r *SchemaRegistry) {
		if d > 0 {
			r.ttl = d
		}
	}
}

// WithSchemaClock overrides the time source.
func WithSchemaClock(now func() time.Time) SchemaOption {
	return func(r *SchemaRegistry) {
		if now != nil {
			r.now = now
		}
	}
}

// GatewayOption applies a configuration option to the Gateway.
type GatewayOption func(*Gateway)

// WithRetryAfter sets how long calls without a request token stay on memory
// after a credential failure.
func WithRetryAfter(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.retryAfter = d
		}
	}
}

// WithGatewayClock overrides the time source.
func WithGatewayClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}
