package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/genieiq/genieiq/internal/domain/types"
	"github.com/genieiq/genieiq/pkg/logger"
	"github.com/genieiq/genieiq/pkg/metrics"
)

// Pool lifetimes.
const (
	DefaultSafetyMargin = 2 * time.Minute
	// opaqueTokenLifetime applies when a credential carries no expiry.
	opaqueTokenLifetime = time.Hour
)

type pooled struct {
	db        DB
	expiresAt time.Time
}

// ConnectionManager hands out pools, negotiating credentials in priority
// order and caching each pool by (user, database, token hash) until the
// token expires minus a safety margin.
type ConnectionManager struct {
	cfg        ConnConfig
	candidates []Candidate
	dial       Dialer
	margin     time.Duration
	now        func() time.Time
	log        logger.Logger

	mu       sync.Mutex
	pools    map[string]pooled
	failures []types.CredentialFailure
}

// NewConnectionManager creates a manager for cfg.
func NewConnectionManager(cfg ConnConfig, opts ...ConnOption) *ConnectionManager {
	m := &ConnectionManager{
		cfg:    cfg,
		dial:   PgxDialer,
		margin: DefaultSafetyMargin,
		now:    time.Now,
		log:    logger.Named("storage.conn"),
		pools:  make(map[string]pooled),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the connection address.
func (m *ConnectionManager) Config() ConnConfig { return m.cfg }

// Acquire returns a pool for the first candidate that authenticates.
// When every candidate fails the error wraps ErrNoCredentials and the
// per-candidate reasons are kept for Failures.
func (m *ConnectionManager) Acquire(ctx context.Context) (DB, error) {
	var failures []types.CredentialFailure
	var errs []error
	tried := 0

	for _, c := range m.candidates {
		cred, err := c.Fetch(ctx)
		if err == nil && cred.Token == "" {
			continue
		}
		tried++
		if err != nil {
			failures = append(failures, types.CredentialFailure{Candidate: c.Name, Error: err.Error()})
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
			metrics.RecordCredentialFailure(c.Name)
			continue
		}

		db, err := m.poolFor(ctx, cred)
		if err != nil {
			m.log.Warn(ctx, "database credential rejected",
				logger.String("candidate", c.Name),
				logger.Error(err),
			)
			failures = append(failures, types.CredentialFailure{Candidate: c.Name, Error: err.Error()})
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
			metrics.RecordCredentialFailure(c.Name)
			continue
		}
		m.setFailures(failures)
		return db, nil
	}

	if tried == 0 {
		failures = append(failures, types.CredentialFailure{Candidate: "none", Error: "no credential candidate available"})
	}
	m.setFailures(failures)
	if len(errs) == 0 {
		return nil, ErrNoCredentials
	}
	return nil, fmt.Errorf("%w: %w", ErrNoCredentials, errors.Join(errs...))
}

func (m *ConnectionManager) poolFor(ctx context.Context, cred Credential) (DB, error) {
	key := m.poolKey(cred.Token)
	now := m.now()

	m.mu.Lock()
	if p, ok := m.pools[key]; ok {
		if now.Before(p.expiresAt) {
			m.mu.Unlock()
			return p.db, nil
		}
		delete(m.pools, key)
		p.db.Close()
	}
	m.mu.Unlock()

	db, err := m.dial(ctx, m.cfg.DSN(cred.Token), m.cfg.MaxConns)
	if err != nil {
		return nil, err
	}

	expiresAt := m.expiry(cred, now)
	m.mu.Lock()
	if existing, ok := m.pools[key]; ok && now.Before(existing.expiresAt) {
		// lost a race with a concurrent dial for the same key
		m.mu.Unlock()
		db.Close()
		return existing.db, nil
	}
	m.pools[key] = pooled{db: db, expiresAt: expiresAt}
	n := len(m.pools)
	m.mu.Unlock()
	metrics.UpdatePoolsCached(n)
	return db, nil
}

func (m *ConnectionManager) expiry(cred Credential, now time.Time) time.Time {
	exp := cred.ExpiresAt
	if jwtExp, ok := TokenExpiry(cred.Token); ok {
		exp = jwtExp
	}
	if exp.IsZero() {
		return now.Add(opaqueTokenLifetime)
	}
	return exp.Add(-m.margin)
}

func (m *ConnectionManager) poolKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return m.cfg.User + "|" + m.cfg.Database + "|" + hex.EncodeToString(sum[:8])
}

func (m *ConnectionManager) setFailures(f []types.CredentialFailure) {
	m.mu.Lock()
	m.failures = f
	m.mu.Unlock()
}

// Failures returns the candidate failures of the most recent Acquire.
func (m *ConnectionManager) Failures() []types.CredentialFailure {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.CredentialFailure(nil), m.failures...)
}

// Close closes every cached pool.
func (m *ConnectionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, p := range m.pools {
		p.db.Close()
		delete(m.pools, k)
	}
	metrics.UpdatePoolsCached(0)
}
