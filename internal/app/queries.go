package service

import (
	"context"
	"strings"

	"github.com/genieiq/genieiq/internal/domain/model"
	"github.com/genieiq/genieiq/internal/domain/types"
)

// ListLatest returns one page of latest scores.
func (s *Service) ListLatest(ctx context.Context, f types.ListFilter) (types.Page, error) {
	return s.store.ListLatest(ctx, f)
}

// GetLatest returns the latest scan of a space with the user's star.
func (s *Service) GetLatest(ctx context.Context, spaceID, user string) (types.LatestRow, error) {
	row, err := s.store.GetLatest(ctx, spaceID)
	if err != nil {
		return types.LatestRow{}, err
	}
	if user != "" {
		row.Starred, err = s.store.IsStarred(ctx, spaceID, user)
		if err != nil {
			return types.LatestRow{}, err
		}
	}
	return row, nil
}

// GetHistory returns scans of a space, newest first.
func (s *Service) GetHistory(ctx context.Context, spaceID string, days, limit int) ([]model.HistoryRow, error) {
	if strings.TrimSpace(spaceID) == "" {
		return nil, ErrSpaceIDRequired
	}
	return s.store.GetHistory(ctx, spaceID, days, limit)
}

// SetStar stars or unstars a space for a user.
func (s *Service) SetStar(ctx context.Context, spaceID, user string, starred bool) error {
	return s.store.SetStar(ctx, spaceID, user, starred)
}

// ListNewSpaces returns spaces first seen within days.
func (s *Service) ListNewSpaces(ctx context.Context, days, limit int) ([]model.SeenRecord, error) {
	return s.store.ListNewSpaces(ctx, days, limit)
}

// OrgStats returns organization-wide aggregates over latest scores.
func (s *Service) OrgStats(ctx context.Context) (types.OrgStats, error) {
	return s.store.OrgStats(ctx)
}

// Health reports the persistence backend.
func (s *Service) Health(ctx context.Context) types.Health {
	return s.store.Health(ctx)
}
