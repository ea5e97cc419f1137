// Package repository persists scan history, stars and the seen registry.
//
// Storage has two implementations with identical contracts: SQLStorage for the
// managed Postgres database and MemoryStorage for local development. Gateway
// selects between them and falls back to memory when no credential works.
package repository

import (
	"context"
	"time"

	"github.com/genieiq/genieiq/internal/domain/model"
	"github.com/genieiq/genieiq/internal/domain/types"
)

// Storage provides read/write access to scan history and related records.
type Storage interface {
	// SaveScanResult appends one history row. Rows are never updated.
	SaveScanResult(ctx context.Context, r *model.ScanResult) (model.HistoryRow, error)

	// GetLatest returns the row with the greatest scannedAt for a space.
	// Returns ErrNotFound if the space was never scanned.
	GetLatest(ctx context.Context, spaceID string) (types.LatestRow, error)
	// GetLatestBulk returns latest rows keyed by space id; unknown ids are absent.
	GetLatestBulk(ctx context.Context, spaceIDs []string) (map[string]types.LatestRow, error)
	// ListLatest returns one page of latest rows and the unpaged total.
	ListLatest(ctx context.Context, f types.ListFilter) (types.Page, error)
	// CountLatest counts latest rows matching f.
	CountLatest(ctx context.Context, f types.ListFilter) (int, error)
	// GetHistory returns rows of a space newest first. days <= 0 means no
	// age bound.
	GetHistory(ctx context.Context, spaceID string, days, limit int) ([]model.HistoryRow, error)

	SetStar(ctx context.Context, spaceID, user string, starred bool) error
	IsStarred(ctx context.Context, spaceID, user string) (bool, error)
	ListStars(ctx context.Context, user string) ([]string, error)

	// ObserveSpace records a sighting. firstSeenAt is set once.
	ObserveSpace(ctx context.Context, spaceID, name string, at time.Time) error
	// GetSeen returns ErrNotFound for unseen spaces.
	GetSeen(ctx context.Context, spaceID string) (model.SeenRecord, error)
	// ListNewSpaces returns spaces first seen within days, newest first.
	ListNewSpaces(ctx context.Context, days, limit int) ([]model.SeenRecord, error)

	OrgStats(ctx context.Context) (types.OrgStats, error)

	Health(ctx context.Context) types.Health
	Mode() string
}

// Default listing bounds.
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
	DefaultNewSpaceDays = 7
	DefaultNewLimit     = 50
)

func clampLimit(limit, def, upper int) int {
	if limit <= 0 {
		return def
	}
	if limit > upper {
		return upper
	}
	return limit
}
