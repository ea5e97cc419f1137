package service

import (
	"context"
	"strings"
	"time"

	"github.com/genieiq/genieiq/internal/adapters/upstream"
	"github.com/genieiq/genieiq/internal/domain/extract"
	"github.com/genieiq/genieiq/internal/domain/model"
	"github.com/genieiq/genieiq/internal/domain/normalize"
	"github.com/genieiq/genieiq/internal/domain/payload"
	"github.com/genieiq/genieiq/pkg/logger"
	"github.com/genieiq/genieiq/pkg/metrics"
)

// Scan modes, used as a metrics label.
const (
	modeSingle = "single"
	modeBulk   = "bulk"
)

// ScanOptions tune a single scan.
type ScanOptions struct {
	// ForceRefreshUC bypasses the catalog metadata cache.
	ForceRefreshUC bool
}

// ScanOne scans, scores and persists one space. Only a failed primary read
// is returned as an error (*UpstreamReadError); every other stage degrades.
func (s *Service) ScanOne(ctx context.Context, spaceID string, opts ScanOptions) (*model.ScanResult, error) {
	return s.scan(ctx, spaceID, opts.ForceRefreshUC, modeSingle)
}

// ScanTask scans one bulk unit with the catalog cache enabled.
func (s *Service) ScanTask(ctx context.Context, t model.ScanTask) error {
	_, err := s.scan(ctx, t.SpaceID, false, modeBulk)
	return err
}

func (s *Service) scan(ctx context.Context, spaceID string, forceRefresh bool, mode string) (*model.ScanResult, error) {
	spaceID = strings.TrimSpace(spaceID)
	if spaceID == "" {
		return nil, ErrSpaceIDRequired
	}
	start := time.Now()
	defer func() {
		metrics.RecordScanLatency(float64(time.Since(start).Milliseconds()))
	}()

	primary, err := s.upstream.ReadSpace(ctx, spaceID)
	if err != nil {
		outcome := "error"
		if upstream.Classify(err).Skippable() {
			outcome = "skipped"
		}
		metrics.RecordScan(mode, outcome)
		return nil, &UpstreamReadError{SpaceID: spaceID, Err: err}
	}

	src := normalize.Sources{ID: spaceID, Primary: primary}
	src.Rich = s.bestEffort(ctx, spaceID, "rich_read", func() (payload.Value, error) {
		return s.upstream.ReadSpaceRich(ctx, spaceID)
	})
	src.Export = s.bestEffort(ctx, spaceID, "export_read", func() (payload.Value, error) {
		return s.upstream.ExportSpace(ctx, spaceID)
	})
	if whID := warehouseID(src); whID != "" {
		src.Warehouse = s.bestEffort(ctx, spaceID, "warehouse_read", func() (payload.Value, error) {
			return s.upstream.ReadWarehouse(ctx, whID)
		})
	}

	sp := normalize.Normalize(src)
	if s.enricher != nil && len(sp.Tables) > 0 {
		details := s.enricher.Enrich(ctx, sp.TableNames(), forceRefresh)
		sp.Tables = normalize.MergeTables(sp.Tables, details)
	}

	scored := s.scorer.Score(&sp)
	result := &model.ScanResult{
		ID:            sp.ID,
		Name:          sp.Name,
		Description:   sp.Description,
		Owner:         sp.Owner,
		Warehouse:     sp.Warehouse,
		TotalScore:    scored.TotalScore,
		Breakdown:     scored.Breakdown,
		Findings:      scored.Findings,
		MaturityLevel: scored.MaturityLevel,
		NextSteps:     scored.NextSteps,
		ScannedAt:     s.now().UTC(),
		Raw:           sp,
	}

	if _, err := s.store.SaveScanResult(ctx, result); err != nil {
		s.degraded(ctx, spaceID, "persist", err)
	}
	if err := s.store.ObserveSpace(ctx, result.ID, result.Name, result.ScannedAt); err != nil {
		s.degraded(ctx, spaceID, "observe", err)
	}

	metrics.RecordScan(mode, "ok")
	metrics.RecordScanScore(result.TotalScore)
	s.logger.Debug(ctx, "space scanned",
		logger.String("space_id", spaceID),
		logger.Int("score", result.TotalScore),
		logger.String("maturity", string(result.MaturityLevel)),
		logger.Bool("force_refresh_uc", forceRefresh),
	)
	return result, nil
}

// bestEffort runs a secondary read. Failures are logged and yield null.
func (s *Service) bestEffort(ctx context.Context, spaceID, stage string, read func() (payload.Value, error)) payload.Value {
	v, err := read()
	if err != nil {
		s.degraded(ctx, spaceID, stage, err)
		return payload.Value{}
	}
	return v
}

func (s *Service) degraded(ctx context.Context, spaceID, stage string, err error) {
	metrics.RecordDegradedStage(stage)
	s.logger.Warn(ctx, "scan stage degraded",
		logger.String("space_id", spaceID),
		logger.String("stage", stage),
		logger.Error(err),
	)
}

// warehouseID returns the first warehouse id carried by the space reads,
// most preferred source first.
func warehouseID(src normalize.Sources) string {
	for _, v := range []payload.Value{src.Rich, src.Primary, src.Export} {
		if id := extract.WarehouseID(v); id != "" {
			return id
		}
	}
	return ""
}
