package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/genieiq/genieiq/internal/domain/model"
	"github.com/genieiq/genieiq/internal/domain/types"
	"github.com/genieiq/genieiq/pkg/logger"
	"github.com/genieiq/genieiq/pkg/metrics"
)

// DefaultRetryAfter is how long calls without a request token are served from
// memory before the database is tried again.
const DefaultRetryAfter = time.Minute

// Gateway routes calls to SQLStorage and falls back to MemoryStorage when no
// credential authenticates. Calls carrying a request token always try the
// database; other calls retry it once the backoff has passed. Without a SQL
// backend it serves from memory from the start.
type Gateway struct {
	sql        *SQLStorage
	memory     *MemoryStorage
	retryAfter time.Duration
	now        func() time.Time
	log        logger.Logger

	mu           sync.RWMutex
	fallback     bool
	retryAt      time.Time
	fallbackErr  string
	fallbackFail []types.CredentialFailure
}

// NewGateway creates a gateway. sql may be nil.
func NewGateway(sql *SQLStorage, memory *MemoryStorage, opts ...GatewayOption) *Gateway {
	if memory == nil {
		memory = NewMemoryStorage()
	}
	g := &Gateway{
		sql:        sql,
		memory:     memory,
		retryAfter: DefaultRetryAfter,
		now:        time.Now,
		log:        logger.Named("storage"),
	}
	for _, opt := range opts {
		opt(g)
	}
	metrics.UpdateStorageMode(sql == nil)
	return g
}

// active picks the store for a call and reports whether it is the database.
func (g *Gateway) active(ctx context.Context) (Storage, bool) {
	if g.sql == nil {
		return g.memory, false
	}
	if RequestToken(ctx) != "" {
		return g.sql, true
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.fallback && g.now().Before(g.retryAt) {
		return g.memory, false
	}
	return g.sql, true
}

// degrade records a fallback if err means no credential worked. It reports
// whether the caller should retry on memory.
func (g *Gateway) degrade(ctx context.Context, err error) bool {
	if !errors.Is(err, ErrNoCredentials) {
		return false
	}
	g.mu.Lock()
	first := !g.fallback
	g.fallback = true
	g.retryAt = g.now().Add(g.retryAfter)
	g.fallbackErr = err.Error()
	g.fallbackFail = g.sql.conns.Failures()
	g.mu.Unlock()
	if first {
		g.log.Warn(ctx, "database unavailable, using in-memory storage",
			logger.Duration("retry_after", g.retryAfter),
			logger.Error(err),
		)
		metrics.UpdateStorageMode(true)
	}
	metrics.RecordErrorByComponent("storage", "no_credentials")
	return true
}

// restore clears the fallback after the database answered a call made with
// process credentials. Success on a request token says nothing about those.
func (g *Gateway) restore(ctx context.Context) {
	if RequestToken(ctx) != "" {
		return
	}
	g.mu.Lock()
	was := g.fallback
	g.fallback = false
	g.fallbackErr = ""
	g.fallbackFail = nil
	g.mu.Unlock()
	if was {
		g.log.Info(ctx, "database available again")
		metrics.UpdateStorageMode(false)
	}
}

// call runs fn on the active store. A credential failure on the database is
// retried once on memory.
func call[T any](ctx context.Context, g *Gateway, fn func(Storage) (T, error)) (T, error) {
	st, onSQL := g.active(ctx)
	v, err := fn(st)
	if !onSQL {
		return v, err
	}
	if err != nil {
		g.sql.noteError(err)
		if g.degrade(ctx, err) {
			return fn(g.memory)
		}
	}
	g.restore(ctx)
	return v, err
}

// Mode returns the backend serving calls without a request token.
func (g *Gateway) Mode() string {
	if g.sql == nil {
		return g.memory.Mode()
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.fallback {
		return g.memory.Mode()
	}
	return g.sql.Mode()
}

// Health reports the active backend. While falling back the credential
// failures that caused it are included.
func (g *Gateway) Health(ctx context.Context) types.Health {
	g.mu.RLock()
	fallback, ferr, ffail := g.fallback, g.fallbackErr, g.fallbackFail
	g.mu.RUnlock()

	switch {
	case g.sql == nil:
		return g.memory.Health(ctx)
	case fallback:
		return types.Health{
			Status:   types.StatusDegraded,
			Mode:     types.ModeMemory,
			Host:     g.sql.conns.Config().Host,
			Error:    ferr,
			Failures: ffail,
		}
	}
	return g.sql.Health(ctx)
}

func (g *Gateway) SaveScanResult(ctx context.Context, r *model.ScanResult) (model.HistoryRow, error) {
	return call(ctx, g, func(s Storage) (model.HistoryRow, error) { return s.SaveScanResult(ctx, r) })
}

func (g *Gateway) GetLatest(ctx context.Context, spaceID string) (types.LatestRow, error) {
	return call(ctx, g, func(s Storage) (types.LatestRow, error) { return s.GetLatest(ctx, spaceID) })
}

func (g *Gateway) GetLatestBulk(ctx context.Context, spaceIDs []string) (map[string]types.LatestRow, error) {
	return call(ctx, g, func(s Storage) (map[string]types.LatestRow, error) { return s.GetLatestBulk(ctx, spaceIDs) })
}

func (g *Gateway) ListLatest(ctx context.Context, f types.ListFilter) (types.Page, error) {
	return call(ctx, g, func(s Storage) (types.Page, error) { return s.ListLatest(ctx, f) })
}

func (g *Gateway) CountLatest(ctx context.Context, f types.ListFilter) (int, error) {
	return call(ctx, g, func(s Storage) (int, error) { return s.CountLatest(ctx, f) })
}

func (g *Gateway) GetHistory(ctx context.Context, spaceID string, days, limit int) ([]model.HistoryRow, error) {
	return call(ctx, g, func(s Storage) ([]model.HistoryRow, error) { return s.GetHistory(ctx, spaceID, days, limit) })
}

func (g *Gateway) SetStar(ctx context.Context, spaceID, user string, starred bool) error {
	_, err := call(ctx, g, func(s Storage) (struct{}, error) { return struct{}{}, s.SetStar(ctx, spaceID, user, starred) })
	return err
}

func (g *Gateway) IsStarred(ctx context.Context, spaceID, user string) (bool, error) {
	return call(ctx, g, func(s Storage) (bool, error) { return s.IsStarred(ctx, spaceID, user) })
}

func (g *Gateway) ListStars(ctx context.Context, user string) ([]string, error) {
	return call(ctx, g, func(s Storage) ([]string, error) { return s.ListStars(ctx, user) })
}

func (g *Gateway) ObserveSpace(ctx context.Context, spaceID, name string, at time.Time) error {
	_, err := call(ctx, g, func(s Storage) (struct{}, error) { return struct{}{}, s.ObserveSpace(ctx, spaceID, name, at) })
	return err
}

func (g *Gateway) GetSeen(ctx context.Context, spaceID string) (model.SeenRecord, error) {
	return call(ctx, g, func(s Storage) (model.SeenRecord, error) { return s.GetSeen(ctx, spaceID) })
}

func (g *Gateway) ListNewSpaces(ctx context.Context, days, limit int) ([]model.SeenRecord, error) {
	return call(ctx, g, func(s Storage) ([]model.SeenRecord, error) { return s.ListNewSpaces(ctx, days, limit) })
}

func (g *Gateway) OrgStats(ctx context.Context) (types.OrgStats, error) {
	return call(ctx, g, func(s Storage) (types.OrgStats, error) { return s.OrgStats(ctx) })
}
