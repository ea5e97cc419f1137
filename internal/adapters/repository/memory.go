package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/genieiq/genieiq/internal/domain/model"
	"github.com/genieiq/genieiq/internal/domain/types"
)

type starKey struct {
	spaceID string
	user    string
}

// MemoryStorage implements Storage in process memory.
type MemoryStorage struct {
	mu      sync.RWMutex
	history map[string][]model.HistoryRow // per space, insertion order
	stars   map[starKey]time.Time
	seen    map[string]model.SeenRecord
	now     func() time.Time
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage(opts ...MemoryOption) *MemoryStorage {
	s := &MemoryStorage{
		history: make(map[string][]model.HistoryRow),
		stars:   make(map[starKey]time.Time),
		seen:    make(map[string]model.SeenRecord),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the storage mode.
func (s *MemoryStorage) Mode() string { return types.ModeMemory }

// Health always reports ok.
func (s *MemoryStorage) Health(context.Context) types.Health {
	return types.Health{Status: types.StatusOK, Mode: types.ModeMemory}
}

func (s *MemoryStorage) SaveScanResult(_ context.Context, r *model.ScanResult) (model.HistoryRow, error) {
	if r == nil || r.ID == "" {
		return model.HistoryRow{}, fmt.Errorf("%w: scan result without space id", ErrInvalidInput)
	}
	row := cloneRow(model.NewHistoryRow(uuid.NewString(), r))
	if row.ScannedAt.IsZero() {
		row.ScannedAt = s.now()
	}
	s.mu.Lock()
	s.history[row.SpaceID] = append(s.history[row.SpaceID], row)
	s.mu.Unlock()
	return cloneRow(row), nil
}

// latest picks max(scannedAt); on ties the later insertion wins.
// Must be called with s.mu held.
func (s *MemoryStorage) latest(spaceID string) (model.HistoryRow, bool) {
	rows := s.history[spaceID]
	if len(rows) == 0 {
		return model.HistoryRow{}, false
	}
	best := rows[0]
	for _, r := range rows[1:] {
		if !r.ScannedAt.Before(best.ScannedAt) {
			best = r
		}
	}
	return best, true
}

func (s *MemoryStorage) GetLatest(_ context.Context, spaceID string) (types.LatestRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.latest(spaceID)
	if !ok {
		return types.LatestRow{}, ErrNotFound
	}
	return types.LatestRow{HistoryRow: cloneRow(row)}, nil
}

func (s *MemoryStorage) GetLatestBulk(_ context.Context, spaceIDs []string) (map[string]types.LatestRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]types.LatestRow, len(spaceIDs))
	for _, id := range spaceIDs {
		if row, ok := s.latest(id); ok {
			out[id] = types.LatestRow{HistoryRow: cloneRow(row)}
		}
	}
	return out, nil
}

// filtered returns the latest rows matching f, sorted. Must be called with
// s.mu held.
func (s *MemoryStorage) filtered(f types.ListFilter) []types.LatestRow {
	search := strings.ToLower(f.Search)
	var rows []types.LatestRow
	for id := range s.history {
		row, _ := s.latest(id)
		_, starred := s.stars[starKey{spaceID: id, user: f.User}]
		starred = starred && f.User != ""
		if f.StarredOnly && !starred {
			continue
		}
		if f.Owner != "" && !strings.EqualFold(row.Owner, f.Owner) {
			continue
		}
		if f.Maturity != "" && row.MaturityLevel != f.Maturity {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(row.SpaceName), search) &&
			!strings.Contains(strings.ToLower(row.Owner), search) {
			continue
		}
		rows = append(rows, types.LatestRow{HistoryRow: row, Starred: starred})
	}
	sort.SliceStable(rows, func(i, j int) bool { return lessLatest(f.Sort, rows[i], rows[j]) })
	return rows
}

func lessLatest(order string, a, b types.LatestRow) bool {
	switch order {
	case types.SortScoreAsc:
		if a.TotalScore != b.TotalScore {
			return a.TotalScore < b.TotalScore
		}
	case types.SortName:
		if a.SpaceName != b.SpaceName {
			return a.SpaceName < b.SpaceName
		}
		return a.SpaceID < b.SpaceID
	case types.SortScannedDesc:
		if !a.ScannedAt.Equal(b.ScannedAt) {
			return a.ScannedAt.After(b.ScannedAt)
		}
	default:
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
	}
	if a.SpaceName != b.SpaceName {
		return a.SpaceName < b.SpaceName
	}
	return a.SpaceID < b.SpaceID
}

func (s *MemoryStorage) ListLatest(_ context.Context, f types.ListFilter) (types.Page, error) {
	f = f.Normalize()
	s.mu.RLock()
	rows := s.filtered(f)
	s.mu.RUnlock()

	page := types.Page{Rows: []types.LatestRow{}, Total: len(rows)}
	if f.Offset >= len(rows) {
		return page, nil
	}
	end := min(f.Offset+f.Limit, len(rows))
	for _, r := range rows[f.Offset:end] {
		r.HistoryRow = cloneRow(r.HistoryRow)
		page.Rows = append(page.Rows, r)
	}
	return page, nil
}

func (s *MemoryStorage) CountLatest(_ context.Context, f types.ListFilter) (int, error) {
	f = f.Normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.filtered(f)), nil
}

func (s *MemoryStorage) GetHistory(_ context.Context, spaceID string, days, limit int) ([]model.HistoryRow, error) {
	limit = clampLimit(limit, DefaultHistoryLimit, MaxHistoryLimit)
	var since time.Time
	if days > 0 {
		since = s.now().AddDate(0, 0, -days)
	}
	s.mu.RLock()
	src := s.history[spaceID]
	rows := make([]model.HistoryRow, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		if days > 0 && src[i].ScannedAt.Before(since) {
			continue
		}
		rows = append(rows, cloneRow(src[i]))
	}
	s.mu.RUnlock()

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ScannedAt.After(rows[j].ScannedAt) })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *MemoryStorage) SetStar(_ context.Context, spaceID, user string, starred bool) error {
	if spaceID == "" || user == "" {
		return fmt.Errorf("%w: star requires space and user", ErrInvalidInput)
	}
	k := starKey{spaceID: spaceID, user: user}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !starred {
		delete(s.stars, k)
		return nil
	}
	if _, ok := s.stars[k]; !ok {
		s.stars[k] = s.now()
	}
	return nil
}

func (s *MemoryStorage) IsStarred(_ context.Context, spaceID, user string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.stars[starKey{spaceID: spaceID, user: user}]
	return ok, nil
}

func (s *MemoryStorage) ListStars(_ context.Context, user string) ([]string, error) {
	s.mu.RLock()
	out := []string{}
	for k := range s.stars {
		if k.user == user {
			out = append(out, k.spaceID)
		}
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStorage) ObserveSpace(_ context.Context, spaceID, name string, at time.Time) error {
	if spaceID == "" {
		return fmt.Errorf("%w: observation without space id", ErrInvalidInput)
	}
	if at.IsZero() {
		at = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.seen[spaceID]
	if !ok {
		s.seen[spaceID] = model.SeenRecord{SpaceID: spaceID, FirstSeenAt: at, LastSeenAt: at, LastName: name}
		return nil
	}
	if at.After(rec.LastSeenAt) {
		rec.LastSeenAt = at
	}
	if name != "" {
		rec.LastName = name
	}
	s.seen[spaceID] = rec
	return nil
}

func (s *MemoryStorage) GetSeen(_ context.Context, spaceID string) (model.SeenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.seen[spaceID]
	if !ok {
		return model.SeenRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStorage) ListNewSpaces(_ context.Context, days, limit int) ([]model.SeenRecord, error) {
	if days <= 0 {
		days = DefaultNewSpaceDays
	}
	limit = clampLimit(limit, DefaultNewLimit, MaxHistoryLimit)
	since := s.now().AddDate(0, 0, -days)

	s.mu.RLock()
	out := []model.SeenRecord{}
	for _, rec := range s.seen {
		if !rec.FirstSeenAt.Before(since) {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].FirstSeenAt.Equal(out[j].FirstSeenAt) {
			return out[i].FirstSeenAt.After(out[j].FirstSeenAt)
		}
		return out[i].SpaceID < out[j].SpaceID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStorage) OrgStats(context.Context) (types.OrgStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := types.OrgStats{ByMaturity: emptyMaturity()}
	byWarehouse := make(map[string]int)
	total := 0
	for id := range s.history {
		row, _ := s.latest(id)
		st.TotalSpaces++
		total += row.TotalScore
		st.ByMaturity[string(row.MaturityLevel)]++
		if row.WarehouseID != "" {
			byWarehouse[row.WarehouseID]++
			if !row.Serverless {
				st.NonServerlessWarehouses++
			}
		}
	}
	for _, n := range byWarehouse {
		if n > 1 {
			st.SharedWarehouses++
		}
	}
	if st.TotalSpaces > 0 {
		st.AverageScore = float64(total) / float64(st.TotalSpaces)
	}
	return st, nil
}

func emptyMaturity() map[string]int {
	return map[string]int{
		string(model.MaturityEmerging):   0,
		string(model.MaturityDeveloping): 0,
		string(model.MaturityMaturing):   0,
		string(model.MaturityOptimized):  0,
	}
}

// cloneRow copies the slices and map of a row so callers cannot alias
// stored state.
func cloneRow(r model.HistoryRow) model.HistoryRow {
	if r.Breakdown != nil {
		b := make(map[string]model.CategoryScore, len(r.Breakdown))
		for k, v := range r.Breakdown {
			b[k] = v
		}
		r.Breakdown = b
	}
	r.Findings = append([]model.Finding(nil), r.Findings...)
	r.NextSteps = append([]model.Finding(nil), r.NextSteps...)
	return r
}
