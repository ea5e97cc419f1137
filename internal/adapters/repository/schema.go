package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/genieiq/genieiq/pkg/logger"
	"github.com/genieiq/genieiq/pkg/metrics"
)

// DefaultSchemaReadyTTL is how long a successful schema check is trusted.
const DefaultSchemaReadyTTL = 5 * time.Minute

// schemaInitTimeout bounds a shared initialization, which outlives the
// request that started it.
const schemaInitTimeout = 30 * time.Second

const probeSQL = `SELECT to_regclass('public.latest_scores') IS NOT NULL`

// schemaDDL is applied in order when the probe fails. Every statement is
// idempotent.
var schemaDDL = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS audit_results (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		space_id TEXT NOT NULL,
		space_name TEXT NOT NULL DEFAULT '',
		description TEXT,
		owner TEXT,
		warehouse_id TEXT,
		warehouse_type TEXT,
		warehouse_serverless BOOLEAN NOT NULL DEFAULT FALSE,
		total_score INTEGER NOT NULL,
		maturity_level TEXT NOT NULL,
		breakdown JSONB NOT NULL DEFAULT '{}'::jsonb,
		findings JSONB NOT NULL DEFAULT '[]'::jsonb,
		next_steps JSONB NOT NULL DEFAULT '[]'::jsonb,
		raw JSONB,
		table_count INTEGER NOT NULL DEFAULT 0,
		scanned_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS space_stars (
		space_id TEXT NOT NULL,
		user_email TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (space_id, user_email)
	)`,
	`CREATE TABLE IF NOT EXISTS spaces_seen (
		space_id TEXT PRIMARY KEY,
		first_seen_at TIMESTAMPTZ NOT NULL,
		last_seen_at TIMESTAMPTZ NOT NULL,
		last_name TEXT NOT NULL DEFAULT ''
	)`,
	`ALTER TABLE audit_results ADD COLUMN IF NOT EXISTS owner TEXT`,
	`ALTER TABLE audit_results ADD COLUMN IF NOT EXISTS warehouse_serverless BOOLEAN NOT NULL DEFAULT FALSE`,
	`ALTER TABLE audit_results ADD COLUMN IF NOT EXISTS table_count INTEGER NOT NULL DEFAULT 0`,
	`CREATE INDEX IF NOT EXISTS idx_audit_results_space_scanned ON audit_results (space_id, scanned_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_spaces_seen_first_seen ON spaces_seen (first_seen_at DESC)`,
	`CREATE OR REPLACE VIEW latest_scores AS
		SELECT DISTINCT ON (space_id)
			id, space_id, space_name, description, owner, warehouse_id, warehouse_type,
			warehouse_serverless, total_score, maturity_level, breakdown, findings,
			next_steps, table_count, scanned_at
		FROM audit_results
		ORDER BY space_id, scanned_at DESC`,
	`CREATE OR REPLACE VIEW org_stats AS
		SELECT
			COUNT(*)::int AS total_spaces,
			COALESCE(AVG(total_score), 0)::float8 AS average_score,
			COUNT(*) FILTER (WHERE maturity_level = 'emerging')::int AS emerging,
			COUNT(*) FILTER (WHERE maturity_level = 'developing')::int AS developing,
			COUNT(*) FILTER (WHERE maturity_level = 'maturing')::int AS maturing,
			COUNT(*) FILTER (WHERE maturity_level = 'optimized')::int AS optimized,
			COUNT(*) FILTER (WHERE COALESCE(warehouse_id, '') <> '' AND NOT warehouse_serverless)::int AS non_serverless_warehouses
		FROM latest_scores`,
}

// SchemaRegistry makes sure each database has the schema before it is
// queried. Concurrent first callers share one initialization; failures are
// not cached.
type SchemaRegistry struct {
	ttl   time.Duration
	now   func() time.Time
	log   logger.Logger
	group singleflight.Group

	mu    sync.Mutex
	ready map[string]time.Time
}

// NewSchemaRegistry creates a registry.
func NewSchemaRegistry(opts ...SchemaOption) *SchemaRegistry {
	r := &SchemaRegistry{
		ttl:   DefaultSchemaReadyTTL,
		now:   time.Now,
		log:   logger.Named("storage.schema"),
		ready: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ensure checks, and if needed creates, the schema of the database named key.
// Errors wrap ErrSchemaInit.
func (r *SchemaRegistry) Ensure(ctx context.Context, key string, db DB) error {
	r.mu.Lock()
	until, ok := r.ready[key]
	r.mu.Unlock()
	if ok && r.now().Before(until) {
		return nil
	}

	_, err, _ := r.group.Do(key, func() (any, error) {
		ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), schemaInitTimeout)
		defer cancel()
		if err := r.initialize(ictx, db); err != nil {
			metrics.RecordSchemaInit("error")
			return nil, err
		}
		r.mu.Lock()
		r.ready[key] = r.now().Add(r.ttl)
		r.mu.Unlock()
		return nil, nil
	})
	return err
}

// Invalidate forgets the ready state of key; the next Ensure probes again.
func (r *SchemaRegistry) Invalidate(key string) {
	r.mu.Lock()
	delete(r.ready, key)
	r.mu.Unlock()
}

func (r *SchemaRegistry) initialize(ctx context.Context, db DB) error {
	var exists bool
	if err := db.QueryRow(ctx, probeSQL).Scan(&exists); err != nil {
		return fmt.Errorf("%w: probe: %w", ErrSchemaInit, err)
	}
	if exists {
		metrics.RecordSchemaInit("present")
		return nil
	}

	r.log.Info(ctx, "creating schema")
	for i, stmt := range schemaDDL {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: statement %d: %w", ErrSchemaInit, i+1, err)
		}
	}
	metrics.RecordSchemaInit("created")
	return nil
}
