package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/genieiq/genieiq/internal/domain/model"
	"github.com/genieiq/genieiq/internal/domain/types"
	"github.com/genieiq/genieiq/pkg/logger"
	"github.com/genieiq/genieiq/pkg/metrics"
)

// SQLStorage implements Storage on Postgres.
type SQLStorage struct {
	conns  *ConnectionManager
	schema *SchemaRegistry
	now    func() time.Time
	log    logger.Logger
}

// NewSQLStorage creates a store that acquires pools from conns and checks the
// schema through schema before use.
func NewSQLStorage(conns *ConnectionManager, schema *SchemaRegistry) *SQLStorage {
	return &SQLStorage{
		conns:  conns,
		schema: schema,
		now:    time.Now,
		log:    logger.Named("storage.sql"),
	}
}

// Mode returns the storage mode.
func (s *SQLStorage) Mode() string { return types.ModeSQL }

func (s *SQLStorage) schemaKey() string {
	cfg := s.conns.Config()
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)) + "/" + cfg.Database
}

// db acquires a pool and makes sure the schema exists.
func (s *SQLStorage) db(ctx context.Context) (DB, error) {
	db, err := s.conns.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.schema.Ensure(ctx, s.schemaKey(), db); err != nil {
		return nil, err
	}
	return db, nil
}

// undefinedTable is the Postgres code for "relation does not exist".
const undefinedTable = "42P01"

// noteError forgets the schema ready state when a query hits a missing
// relation, so the next call re-creates it.
func (s *SQLStorage) noteError(err error) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		s.log.Warn(context.Background(), "schema missing, will re-create",
			logger.String("relation", pgErr.TableName),
			logger.Error(err),
		)
		s.schema.Invalidate(s.schemaKey())
	}
}

func observe(op string, start time.Time) {
	metrics.RecordStorageLatency(op, float64(time.Since(start).Milliseconds()))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHistory(sc scanner, extra ...any) (model.HistoryRow, error) {
	var (
		row                            model.HistoryRow
		maturity                       string
		breakdown, findings, nextSteps []byte
	)
	dest := []any{
		&row.RowID, &row.SpaceID, &row.SpaceName, &row.Description, &row.Owner,
		&row.WarehouseID, &row.WarehouseType, &row.Serverless, &row.TotalScore, &maturity,
		&breakdown, &findings, &nextSteps, &row.TableCount, &row.ScannedAt,
	}
	if err := sc.Scan(append(dest, extra...)...); err != nil {
		return model.HistoryRow{}, err
	}
	row.MaturityLevel = model.Maturity(maturity)
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &row.Breakdown); err != nil {
			return model.HistoryRow{}, fmt.Errorf("decode breakdown: %w", err)
		}
	}
	if len(findings) > 0 {
		if err := json.Unmarshal(findings, &row.Findings); err != nil {
			return model.HistoryRow{}, fmt.Errorf("decode findings: %w", err)
		}
	}
	if len(nextSteps) > 0 {
		if err := json.Unmarshal(nextSteps, &row.NextSteps); err != nil {
			return model.HistoryRow{}, fmt.Errorf("decode next steps: %w", err)
		}
	}
	return row, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *SQLStorage) SaveScanResult(ctx context.Context, r *model.ScanResult) (model.HistoryRow, error) {
	defer observe("save_scan", time.Now())
	if r == nil || r.ID == "" {
		return model.HistoryRow{}, fmt.Errorf("%w: scan result without space id", ErrInvalidInput)
	}
	db, err := s.db(ctx)
	if err != nil {
		return model.HistoryRow{}, err
	}

	row := model.NewHistoryRow("", r)
	if row.ScannedAt.IsZero() {
		row.ScannedAt = s.now()
	}
	breakdown, err := json.Marshal(row.Breakdown)
	if err != nil {
		return model.HistoryRow{}, fmt.Errorf("encode breakdown: %w", err)
	}
	findings, err := json.Marshal(nonNilFindings(row.Findings))
	if err != nil {
		return model.HistoryRow{}, fmt.Errorf("encode findings: %w", err)
	}
	nextSteps, err := json.Marshal(nonNilFindings(row.NextSteps))
	if err != nil {
		return model.HistoryRow{}, fmt.Errorf("encode next steps: %w", err)
	}
	raw, err := json.Marshal(r.Raw)
	if err != nil {
		return model.HistoryRow{}, fmt.Errorf("encode raw: %w", err)
	}

	const q = `INSERT INTO audit_results (
		space_id, space_name, description, owner, warehouse_id, warehouse_type,
		warehouse_serverless, total_score, maturity_level, breakdown, findings,
		next_steps, raw, table_count, scanned_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	RETURNING id::text`
	err = db.QueryRow(ctx, q,
		row.SpaceID, row.SpaceName, nullable(row.Description), nullable(row.Owner),
		nullable(row.WarehouseID), nullable(row.WarehouseType), row.Serverless,
		row.TotalScore, string(row.MaturityLevel), breakdown, findings, nextSteps,
		raw, row.TableCount, row.ScannedAt,
	).Scan(&row.RowID)
	if err != nil {
		return model.HistoryRow{}, fmt.Errorf("insert scan result: %w", err)
	}
	return row, nil
}

func nonNilFindings(f []model.Finding) []model.Finding {
	if f == nil {
		return []model.Finding{}
	}
	return f
}

func (s *SQLStorage) GetLatest(ctx context.Context, spaceID string) (types.LatestRow, error) {
	defer observe("get_latest", time.Now())
	db, err := s.db(ctx)
	if err != nil {
		return types.LatestRow{}, err
	}
	q := "SELECT " + columns("") + " FROM latest_scores WHERE space_id = $1"
	row, err := scanHistory(db.QueryRow(ctx, q, spaceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.LatestRow{}, ErrNotFound
	}
	if err != nil {
		return types.LatestRow{}, fmt.Errorf("get latest: %w", err)
	}
	return types.LatestRow{HistoryRow: row}, nil
}

func (s *SQLStorage) GetLatestBulk(ctx context.Context, spaceIDs []string) (map[string]types.LatestRow, error) {
	defer observe("get_latest_bulk", time.Now())
	out := make(map[string]types.LatestRow, len(spaceIDs))
	if len(spaceIDs) == 0 {
		return out, nil
	}
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	q := "SELECT " + columns("") + " FROM latest_scores WHERE space_id = ANY($1)"
	rows, err := db.Query(ctx, q, spaceIDs)
	if err != nil {
		return nil, fmt.Errorf("get latest bulk: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		row, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("get latest bulk: %w", err)
		}
		out[row.SpaceID] = types.LatestRow{HistoryRow: row}
	}
	return out, rows.Err()
}

func (s *SQLStorage) ListLatest(ctx context.Context, f types.ListFilter) (types.Page, error) {
	defer observe("list_latest", time.Now())
	f = f.Normalize()
	page := types.Page{Rows: []types.LatestRow{}}
	if f.StarredOnly && f.User == "" {
		return page, nil
	}
	db, err := s.db(ctx)
	if err != nil {
		return page, err
	}

	cq, cargs := buildCountQuery(f)
	if err := db.QueryRow(ctx, cq, cargs...).Scan(&page.Total); err != nil {
		return page, fmt.Errorf("count latest: %w", err)
	}

	q, qargs := buildLatestQuery(f)
	rows, err := db.Query(ctx, q, qargs...)
	if err != nil {
		return page, fmt.Errorf("list latest: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var starred bool
		row, err := scanHistory(rows, &starred)
		if err != nil {
			return page, fmt.Errorf("list latest: %w", err)
		}
		page.Rows = append(page.Rows, types.LatestRow{HistoryRow: row, Starred: starred})
	}
	return page, rows.Err()
}

func (s *SQLStorage) CountLatest(ctx context.Context, f types.ListFilter) (int, error) {
	defer observe("count_latest", time.Now())
	f = f.Normalize()
	if f.StarredOnly && f.User == "" {
		return 0, nil
	}
	db, err := s.db(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	q, qargs := buildCountQuery(f)
	if err := db.QueryRow(ctx, q, qargs...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count latest: %w", err)
	}
	return n, nil
}

func (s *SQLStorage) GetHistory(ctx context.Context, spaceID string, days, limit int) ([]model.HistoryRow, error) {
	defer observe("get_history", time.Now())
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	var since time.Time
	if days > 0 {
		since = s.now().AddDate(0, 0, -days)
	}
	q, qargs := buildHistoryQuery(spaceID, since, clampLimit(limit, DefaultHistoryLimit, MaxHistoryLimit))
	rows, err := db.Query(ctx, q, qargs...)
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer rows.Close()
	out := []model.HistoryRow{}
	for rows.Next() {
		row, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("get history: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *SQLStorage) SetStar(ctx context.Context, spaceID, user string, starred bool) error {
	defer observe("set_star", time.Now())
	if spaceID == "" || user == "" {
		return fmt.Errorf("%w: star requires space and user", ErrInvalidInput)
	}
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	if starred {
		_, err = db.Exec(ctx, `INSERT INTO space_stars (space_id, user_email) VALUES ($1, $2)
			ON CONFLICT (space_id, user_email) DO NOTHING`, spaceID, user)
	} else {
		_, err = db.Exec(ctx, `DELETE FROM space_stars WHERE space_id = $1 AND user_email = $2`, spaceID, user)
	}
	if err != nil {
		return fmt.Errorf("set star: %w", err)
	}
	return nil
}

func (s *SQLStorage) IsStarred(ctx context.Context, spaceID, user string) (bool, error) {
	defer observe("is_starred", time.Now())
	db, err := s.db(ctx)
	if err != nil {
		return false, err
	}
	var ok bool
	err = db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM space_stars WHERE space_id = $1 AND user_email = $2)`,
		spaceID, user).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("is starred: %w", err)
	}
	return ok, nil
}

func (s *SQLStorage) ListStars(ctx context.Context, user string) ([]string, error) {
	defer observe("list_stars", time.Now())
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(ctx, `SELECT space_id FROM space_stars WHERE user_email = $1 ORDER BY space_id`, user)
	if err != nil {
		return nil, fmt.Errorf("list stars: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list stars: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLStorage) ObserveSpace(ctx context.Context, spaceID, name string, at time.Time) error {
	defer observe("observe_space", time.Now())
	if spaceID == "" {
		return fmt.Errorf("%w: observation without space id", ErrInvalidInput)
	}
	if at.IsZero() {
		at = s.now()
	}
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `INSERT INTO spaces_seen (space_id, first_seen_at, last_seen_at, last_name)
		VALUES ($1, $2, $2, $3)
		ON CONFLICT (space_id) DO UPDATE SET
			last_seen_at = GREATEST(spaces_seen.last_seen_at, EXCLUDED.last_seen_at),
			last_name = CASE WHEN EXCLUDED.last_name <> '' THEN EXCLUDED.last_name ELSE spaces_seen.last_name END`,
		spaceID, at, name)
	if err != nil {
		return fmt.Errorf("observe space: %w", err)
	}
	return nil
}

func (s *SQLStorage) GetSeen(ctx context.Context, spaceID string) (model.SeenRecord, error) {
	defer observe("get_seen", time.Now())
	db, err := s.db(ctx)
	if err != nil {
		return model.SeenRecord{}, err
	}
	var rec model.SeenRecord
	err = db.QueryRow(ctx, `SELECT space_id, first_seen_at, last_seen_at, last_name FROM spaces_seen WHERE space_id = $1`,
		spaceID).Scan(&rec.SpaceID, &rec.FirstSeenAt, &rec.LastSeenAt, &rec.LastName)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SeenRecord{}, ErrNotFound
	}
	if err != nil {
		return model.SeenRecord{}, fmt.Errorf("get seen: %w", err)
	}
	return rec, nil
}

func (s *SQLStorage) ListNewSpaces(ctx context.Context, days, limit int) ([]model.SeenRecord, error) {
	defer observe("list_new_spaces", time.Now())
	if days <= 0 {
		days = DefaultNewSpaceDays
	}
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(ctx, `SELECT space_id, first_seen_at, last_seen_at, last_name FROM spaces_seen
		WHERE first_seen_at >= $1 ORDER BY first_seen_at DESC, space_id ASC LIMIT $2`,
		s.now().AddDate(0, 0, -days), clampLimit(limit, DefaultNewLimit, MaxHistoryLimit))
	if err != nil {
		return nil, fmt.Errorf("list new spaces: %w", err)
	}
	defer rows.Close()
	out := []model.SeenRecord{}
	for rows.Next() {
		var rec model.SeenRecord
		if err := rows.Scan(&rec.SpaceID, &rec.FirstSeenAt, &rec.LastSeenAt, &rec.LastName); err != nil {
			return nil, fmt.Errorf("list new spaces: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLStorage) OrgStats(ctx context.Context) (types.OrgStats, error) {
	defer observe("org_stats", time.Now())
	db, err := s.db(ctx)
	if err != nil {
		return types.OrgStats{}, err
	}
	st := types.OrgStats{ByMaturity: emptyMaturity()}
	var emerging, developing, maturing, optimized int
	err = db.QueryRow(ctx, `SELECT total_spaces, average_score, emerging, developing, maturing, optimized,
		non_serverless_warehouses FROM org_stats`).Scan(
		&st.TotalSpaces, &st.AverageScore, &emerging, &developing, &maturing, &optimized,
		&st.NonServerlessWarehouses)
	if err != nil {
		return types.OrgStats{}, fmt.Errorf("org stats: %w", err)
	}
	st.ByMaturity[string(model.MaturityEmerging)] = emerging
	st.ByMaturity[string(model.MaturityDeveloping)] = developing
	st.ByMaturity[string(model.MaturityMaturing)] = maturing
	st.ByMaturity[string(model.MaturityOptimized)] = optimized

	err = db.QueryRow(ctx, `SELECT COUNT(*) FROM (
		SELECT warehouse_id FROM latest_scores WHERE COALESCE(warehouse_id, '') <> ''
		GROUP BY warehouse_id HAVING COUNT(*) > 1) shared`).Scan(&st.SharedWarehouses)
	if err != nil {
		return types.OrgStats{}, fmt.Errorf("shared warehouses: %w", err)
	}
	return st, nil
}

// Health acquires a pool, checks the schema and pings.
func (s *SQLStorage) Health(ctx context.Context) types.Health {
	h := types.Health{Mode: types.ModeSQL, Host: s.conns.Config().Host}
	db, err := s.db(ctx)
	if err == nil {
		err = db.Ping(ctx)
	}
	if err != nil {
		h.Status = types.StatusError
		h.Error = err.Error()
		h.Failures = s.conns.Failures()
		return h
	}
	h.Status = types.StatusOK
	return h
}
