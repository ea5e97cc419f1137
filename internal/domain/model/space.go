// Package model contains domain models passed between layers.
package model

// Warehouse describes the compute attached to a space.
type Warehouse struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Type        string `json:"type"`
	Serverless  bool   `json:"serverless"`
	ClusterSize string `json:"clusterSize,omitempty"`
	MinClusters *int   `json:"minClusters,omitempty"`
	MaxClusters *int   `json:"maxClusters,omitempty"`
}

// Column is one column of an enriched table.
type Column struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Table is a table identifier enriched with catalog metadata.
type Table struct {
	FullName    string   `json:"fullName"`
	Description string   `json:"description"`
	Columns     []Column `json:"columns"`
}

// SQLItem is a SQL expression (measure, filter, dimension) or a trusted query.
type SQLItem struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Kind     string `json:"kind,omitempty"`
	SQL      string `json:"sql"`
	Question string `json:"question,omitempty"`
}

// CanonicalSpace is the normalized record the scoring engine consumes.
// List fields are never nil and never contain duplicates.
type CanonicalSpace struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Instructions    string     `json:"instructions"`
	Warehouse       *Warehouse `json:"warehouse"`
	Tables          []Table    `json:"tables"`
	Joins           []any      `json:"joins"`
	SampleQuestions []string   `json:"sampleQuestions"`
	SQLExpressions  []SQLItem  `json:"sqlExpressions"`
	SQLQueries      []SQLItem  `json:"sqlQueries"`
	FeedbackEnabled bool       `json:"feedbackEnabled"`
	Owner           *string    `json:"owner"`
}

// TableNames returns the table identifiers in order.
func (s *CanonicalSpace) TableNames() []string {
	out := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		out = append(out, t.FullName)
	}
	return out
}

// EnsureLists replaces nil list fields with empty ones.
func (s *CanonicalSpace) EnsureLists() {
	if s.Tables == nil {
		s.Tables = []Table{}
	}
	for i := range s.Tables {
		if s.Tables[i].Columns == nil {
			s.Tables[i].Columns = []Column{}
		}
	}
	if s.Joins == nil {
		s.Joins = []any{}
	}
	if s.SampleQuestions == nil {
		s.SampleQuestions = []string{}
	}
	if s.SQLExpressions == nil {
		s.SQLExpressions = []SQLItem{}
	}
	if s.SQLQueries == nil {
		s.SQLQueries = []SQLItem{}
	}
}

// OwnerEmail returns the owner or "".
func (s *CanonicalSpace) OwnerEmail() string {
	if s.Owner == nil {
		return ""
	}
	return *s.Owner
}
