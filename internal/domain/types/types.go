// Package types contains read-side shapes shared by storage and the HTTP layer.
package types

import (
	"strings"

	"github.com/genieiq/genieiq/internal/domain/model"
)

// Sort orders for latest-score listings.
const (
	SortScoreDesc   = "score_desc"
	SortScoreAsc    = "score_asc"
	SortName        = "name"
	SortScannedDesc = "scanned_desc"
)

// Paging bounds.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// ListFilter selects and orders latest scores.
type ListFilter struct {
	Search      string // case-insensitive substring of name or owner
	Sort        string
	StarredOnly bool
	User        string // star owner; also sets LatestRow.Starred
	Owner       string // owner email, case-insensitive
	Maturity    model.Maturity
	Limit       int
	Offset      int
}

// Normalize clamps paging and defaults the sort order.
func (f ListFilter) Normalize() ListFilter {
	f.Search = strings.TrimSpace(f.Search)
	f.Owner = strings.TrimSpace(f.Owner)
	switch f.Sort {
	case SortScoreDesc, SortScoreAsc, SortName, SortScannedDesc:
	default:
		f.Sort = SortScoreDesc
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// LatestRow is the most recent scan of a space.
type LatestRow struct {
	model.HistoryRow
	Starred bool `json:"starred"`
}

// Page is one page of latest rows plus the unpaged total.
type Page struct {
	Rows  []LatestRow `json:"rows"`
	Total int         `json:"total"`
}

// OrgStats summarizes the latest scores of all spaces.
// NonServerlessWarehouses counts spaces on non-serverless compute;
// SharedWarehouses counts warehouses referenced by more than one space.
type OrgStats struct {
	TotalSpaces             int            `json:"totalSpaces"`
	AverageScore            float64        `json:"averageScore"`
	ByMaturity              map[string]int `json:"byMaturity"`
	NonServerlessWarehouses int            `json:"nonServerlessWarehouses"`
	SharedWarehouses        int            `json:"sharedWarehouses"`
}

// CredentialFailure records why a credential candidate was rejected.
type CredentialFailure struct {
	Candidate string `json:"candidate"`
	Error     string `json:"error"`
}

// Health reports the persistence status.
type Health struct {
	Status   string              `json:"status"`
	Mode     string              `json:"mode"`
	Host     string              `json:"host,omitempty"`
	Error    string              `json:"error,omitempty"`
	Failures []CredentialFailure `json:"failures,omitempty"`
}

// Storage modes and health states.
const (
	ModeSQL    = "lakebase"
	ModeMemory = "memory"

	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)
