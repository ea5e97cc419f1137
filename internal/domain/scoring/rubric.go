package scoring

import (
	"strings"
	"unicode/utf8"

	"github.com/genieiq/genieiq/internal/domain/model"
)

// Category ids.
const (
	CategoryFoundation   = "foundation"
	CategoryDataSetup    = "data_setup"
	CategorySQLAssets    = "sql_assets"
	CategoryOptimization = "optimization"
)

// Thresholds used by the rubric.
const (
	LeanInstructionsLimit   = 500
	DedicatedMinClusters    = 5
	TableCoverageMin        = 0.5
	ColumnCoverageMin       = 0.3
	ColumnCoverageFull      = 0.8
	SampleQuestionsMin      = 5
	ExpressionVarietyMin    = 3
	IterationDescriptionMin = 50
)

// Predicate decides whether a space meets a criterion.
type Predicate func(sp *model.CanonicalSpace) bool

// Criterion is one weighted pass/fail check.
type Criterion struct {
	ID             string
	Name           string
	Points         int
	Recommendation string
	Check          Predicate
}

// Category groups criteria. MaxScore is the sum of its criteria points.
type Category struct {
	ID       string
	Name     string
	Criteria []Criterion
}

// MaxScore returns the sum of criterion points.
func (c Category) MaxScore() int {
	total := 0
	for _, cr := range c.Criteria {
		total += cr.Points
	}
	return total
}

// DefaultRubric returns the standard rubric (30/25/25/20).
func DefaultRubric() []Category {
	return []Category{
		{
			ID:   CategoryFoundation,
			Name: "Foundation",
			Criteria: []Criterion{
				{
					ID: "instructions_present", Name: "Instructions present", Points: 10,
					Recommendation: "Add general instructions describing the business context of this space.",
					Check: func(sp *model.CanonicalSpace) bool {
						return strings.TrimSpace(sp.Instructions) != ""
					},
				},
				{
					ID: "lean_instructions", Name: "Lean instructions", Points: 5,
					Recommendation: "Keep instructions under 500 characters; move logic into SQL expressions and trusted queries.",
					Check: func(sp *model.CanonicalSpace) bool {
						n := utf8.RuneCountInString(sp.Instructions)
						return strings.TrimSpace(sp.Instructions) != "" && n > 0 && n < LeanInstructionsLimit
					},
				},
				{
					ID: "serverless_warehouse", Name: "Serverless warehouse", Points: 5,
					Recommendation: "Attach a serverless SQL warehouse for fast start-up.",
					Check: func(sp *model.CanonicalSpace) bool {
						return sp.Warehouse != nil && sp.Warehouse.Serverless
					},
				},
				{
					ID: "dedicated_warehouse", Name: "Dedicated warehouse capacity", Points: 10,
					Recommendation: "Use a serverless warehouse that can scale to at least 5 clusters.",
					Check:          dedicatedWarehouse,
				},
			},
		},
		{
			ID:   CategoryDataSetup,
			Name: "Data setup",
			Criteria: []Criterion{
				{
					ID: "has_join", Name: "Join relationships", Points: 5,
					Recommendation: "Define join relationships between the tables in this space.",
					Check: func(sp *model.CanonicalSpace) bool {
						return len(sp.Joins) > 0
					},
				},
				{
					ID: "table_descriptions", Name: "Table descriptions", Points: 5,
					Recommendation: "Describe at least half of the tables.",
					Check: func(sp *model.CanonicalSpace) bool {
						return TableCoverage(sp) >= TableCoverageMin
					},
				},
				{
					ID: "sample_questions_5", Name: "Five sample questions", Points: 10,
					Recommendation: "Add at least 5 sample questions to guide users.",
					Check: func(sp *model.CanonicalSpace) bool {
						return len(sp.SampleQuestions) >= SampleQuestionsMin
					},
				},
				{
					ID: "column_descriptions", Name: "Column descriptions", Points: 5,
					Recommendation: "Describe at least 30% of the columns.",
					Check: func(sp *model.CanonicalSpace) bool {
						return ColumnCoverage(sp) >= ColumnCoverageMin
					},
				},
			},
		},
		{
			ID:   CategorySQLAssets,
			Name: "SQL assets",
			Criteria: []Criterion{
				{
					ID: "sql_expressions", Name: "SQL expressions", Points: 10,
					Recommendation: "Add SQL expressions (measures, filters or dimensions) for core business terms.",
					Check: func(sp *model.CanonicalSpace) bool {
						return len(sp.SQLExpressions) >= 1
					},
				},
				{
					ID: "sql_expression_variety", Name: "SQL expression variety", Points: 5,
					Recommendation: "Define at least 3 SQL expressions.",
					Check: func(sp *model.CanonicalSpace) bool {
						return len(sp.SQLExpressions) >= ExpressionVarietyMin
					},
				},
				{
					ID: "trusted_queries", Name: "Trusted queries", Points: 10,
					Recommendation: "Add example SQL queries for common questions.",
					Check: func(sp *model.CanonicalSpace) bool {
						return len(sp.SQLQueries) >= 1
					},
				},
			},
		},
		{
			ID:   CategoryOptimization,
			Name: "Optimization",
			Criteria: []Criterion{
				{
					ID: "feedback_enabled", Name: "Feedback enabled", Points: 5,
					Recommendation: "Enable user feedback to learn where answers fall short.",
					Check: func(sp *model.CanonicalSpace) bool {
						return sp.FeedbackEnabled
					},
				},
				{
					ID: "iteration_documented", Name: "Iteration documented", Points: 5,
					Recommendation: "Write a space description of at least 50 characters covering scope and changes.",
					Check: func(sp *model.CanonicalSpace) bool {
						return utf8.RuneCountInString(strings.TrimSpace(sp.Description)) >= IterationDescriptionMin
					},
				},
				{
					ID: "trusted_query_coverage", Name: "Trusted query coverage", Points: 5,
					Recommendation: "Back at least half of the sample questions with trusted queries.",
					Check: func(sp *model.CanonicalSpace) bool {
						n := len(sp.SQLQueries)
						return n >= 1 && n*2 >= len(sp.SampleQuestions)
					},
				},
				{
					ID: "column_descriptions_full", Name: "Full column descriptions", Points: 5,
					Recommendation: "Describe at least 80% of the columns.",
					Check: func(sp *model.CanonicalSpace) bool {
						return ColumnCoverage(sp) >= ColumnCoverageFull
					},
				},
			},
		},
	}
}

func dedicatedWarehouse(sp *model.CanonicalSpace) bool {
	w := sp.Warehouse
	if w == nil || !w.Serverless || w.MaxClusters == nil {
		return false
	}
	if *w.MaxClusters < DedicatedMinClusters {
		return false
	}
	return w.MinClusters == nil || *w.MaxClusters > *w.MinClusters
}

// TableCoverage is the share of tables with a description.
func TableCoverage(sp *model.CanonicalSpace) float64 {
	if len(sp.Tables) == 0 {
		return 0
	}
	described := 0
	for _, t := range sp.Tables {
		if strings.TrimSpace(t.Description) != "" {
			described++
		}
	}
	return float64(described) / float64(len(sp.Tables))
}

// ColumnCoverage is the share of columns, across all tables, with a description.
func ColumnCoverage(sp *model.CanonicalSpace) float64 {
	total, described := 0, 0
	for _, t := range sp.Tables {
		for _, c := range t.Columns {
			total++
			if strings.TrimSpace(c.Description) != "" {
				described++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(described) / float64(total)
}
