package model

import "time"

// Maturity is the tier derived from a total score.
type Maturity string

// Maturity tiers in ascending order.
const (
	MaturityEmerging   Maturity = "emerging"
	MaturityDeveloping Maturity = "developing"
	MaturityMaturing   Maturity = "maturing"
	MaturityOptimized  Maturity = "optimized"
)

// Rank orders tiers: emerging < developing < maturing < optimized.
func (m Maturity) Rank() int {
	switch m {
	case MaturityDeveloping:
		return 1
	case MaturityMaturing:
		return 2
	case MaturityOptimized:
		return 3
	default:
		return 0
	}
}

// CategoryScore is the per-category breakdown entry.
type CategoryScore struct {
	Score    int `json:"score"`
	MaxScore int `json:"maxScore"`
}

// Finding is the evaluation of one rubric criterion.
type Finding struct {
	ID             string  `json:"id"`
	Category       string  `json:"category"`
	Name           string  `json:"name"`
	Passed         bool    `json:"passed"`
	Points         int     `json:"points"`
	Recommendation *string `json:"recommendation"`
}

// ScanResult is the output of one scan. It is never mutated after being returned.
type ScanResult struct {
	ID            string                   `json:"id"`
	Name          string                   `json:"name"`
	Description   string                   `json:"description"`
	Owner         *string                  `json:"owner"`
	Warehouse     *Warehouse               `json:"warehouse"`
	TotalScore    int                      `json:"totalScore"`
	Breakdown     map[string]CategoryScore `json:"breakdown"`
	Findings      []Finding                `json:"findings"`
	MaturityLevel Maturity                 `json:"maturityLevel"`
	NextSteps     []Finding                `json:"nextSteps"`
	ScannedAt     time.Time                `json:"scannedAt"`
	Raw           CanonicalSpace           `json:"raw"`
}

// HistoryRow is one persisted scan projected to storage columns.
type HistoryRow struct {
	RowID         string                   `json:"rowId"`
	SpaceID       string                   `json:"spaceId"`
	SpaceName     string                   `json:"spaceName"`
	Description   string                   `json:"description,omitempty"`
	Owner         string                   `json:"owner,omitempty"`
	WarehouseID   string                   `json:"warehouseId,omitempty"`
	WarehouseType string                   `json:"warehouseType,omitempty"`
	Serverless    bool                     `json:"serverless"`
	TotalScore    int                      `json:"totalScore"`
	MaturityLevel Maturity                 `json:"maturityLevel"`
	Breakdown     map[string]CategoryScore `json:"breakdown"`
	Findings      []Finding                `json:"findings,omitempty"`
	NextSteps     []Finding                `json:"nextSteps,omitempty"`
	TableCount    int                      `json:"tableCount"`
	ScannedAt     time.Time                `json:"scannedAt"`
}

// NewHistoryRow projects a scan result onto storage columns.
func NewHistoryRow(rowID string, r *ScanResult) HistoryRow {
	row := HistoryRow{
		RowID:         rowID,
		SpaceID:       r.ID,
		SpaceName:     r.Name,
		Description:   r.Description,
		TotalScore:    r.TotalScore,
		MaturityLevel: r.MaturityLevel,
		Breakdown:     r.Breakdown,
		Findings:      r.Findings,
		NextSteps:     r.NextSteps,
		TableCount:    len(r.Raw.Tables),
		ScannedAt:     r.ScannedAt,
	}
	if r.Owner != nil {
		row.Owner = *r.Owner
	}
	if r.Warehouse != nil {
		row.WarehouseID = r.Warehouse.ID
		row.WarehouseType = r.Warehouse.Type
		row.Serverless = r.Warehouse.Serverless
	}
	return row
}

// SeenRecord tracks when a space was first and last observed.
type SeenRecord struct {
	SpaceID     string    `json:"spaceId"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
	LastName    string    `json:"lastName"`
}
