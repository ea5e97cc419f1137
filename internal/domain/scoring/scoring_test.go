package scoring_test

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/genieiq/genieiq/internal/domain/model"
	"github.com/genieiq/genieiq/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func intp(n int) *int { return &n }

func tablesWith(n, described, columnsPer, columnsDescribed int) []model.Table {
	out := make([]model.Table, 0, n)
	left := columnsDescribed
	for i := 0; i < n; i++ {
		t := model.Table{FullName: fmt.Sprintf("c.s.t%d", i)}
		if i < described {
			t.Description = "described"
		}
		for j := 0; j < columnsPer; j++ {
			c := model.Column{Name: fmt.Sprintf("c%d", j)}
			if left > 0 {
				c.Description = "col"
				left--
			}
			t.Columns = append(t.Columns, c)
		}
		out = append(out, t)
	}
	return out
}

func passedIDs(r scoring.Result) []string {
	var ids []string
	for _, f := range r.Findings {
		if f.Passed {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

func findingPassed(r scoring.Result, id string) bool {
	for _, f := range r.Findings {
		if f.ID == id {
			return f.Passed
		}
	}
	panic("unknown finding " + id)
}

func TestEndToEndScenario(t *testing.T) {
	Convey("Given a partially configured space on a classic warehouse", t, func() {
		// 6 tables, 4 described, 20 columns of which 2 are described
		tables := tablesWith(6, 4, 0, 0)
		tables[0].Columns = tablesWith(1, 0, 10, 2)[0].Columns
		tables[1].Columns = tablesWith(1, 0, 10, 0)[0].Columns
		sp := &model.CanonicalSpace{
			ID:              "s1",
			Instructions:    strings.Repeat("x", 50),
			Tables:          tables,
			Joins:           []any{map[string]any{"l": "a"}},
			SampleQuestions: []string{"a?", "b?", "c?"},
			FeedbackEnabled: true,
			Warehouse:       &model.Warehouse{ID: "wh", Type: "PRO"},
		}

		r := scoring.NewRubricScorer().Score(sp)

		Convey("Then the total and pass list are exact", func() {
			So(r.TotalScore, ShouldEqual, 30)
			So(passedIDs(r), ShouldResemble, []string{
				"instructions_present", "lean_instructions",
				"has_join", "table_descriptions",
				"feedback_enabled",
			})
			So(r.Breakdown[scoring.CategoryFoundation], ShouldResemble, model.CategoryScore{Score: 15, MaxScore: 30})
			So(r.Breakdown[scoring.CategoryDataSetup], ShouldResemble, model.CategoryScore{Score: 10, MaxScore: 25})
			So(r.Breakdown[scoring.CategorySQLAssets], ShouldResemble, model.CategoryScore{Score: 0, MaxScore: 25})
			So(r.Breakdown[scoring.CategoryOptimization], ShouldResemble, model.CategoryScore{Score: 5, MaxScore: 20})
			So(r.MaturityLevel, ShouldEqual, model.MaturityEmerging)
		})

		Convey("Then next steps are the highest-value failures", func() {
			So(r.NextSteps, ShouldHaveLength, 5)
			ids := make([]string, 0, 5)
			for _, f := range r.NextSteps {
				So(f.Passed, ShouldBeFalse)
				So(f.Recommendation, ShouldNotBeNil)
				ids = append(ids, f.ID)
			}
			So(ids, ShouldResemble, []string{
				"dedicated_warehouse", "sample_questions_5", "sql_expressions", "trusted_queries",
				"serverless_warehouse",
			})
		})
	})
}

func TestWarehouseCriterion(t *testing.T) {
	Convey("Given serverless warehouses with different cluster bounds", t, func() {
		s := scoring.NewRubricScorer()
		score := func(w *model.Warehouse) scoring.Result {
			return s.Score(&model.CanonicalSpace{Warehouse: w})
		}

		Convey("Then max equal to min fails", func() {
			r := score(&model.Warehouse{Type: "SERVERLESS", Serverless: true, MaxClusters: intp(5), MinClusters: intp(5)})
			So(findingPassed(r, "dedicated_warehouse"), ShouldBeFalse)
			So(findingPassed(r, "serverless_warehouse"), ShouldBeTrue)
		})

		Convey("Then max above min passes", func() {
			r := score(&model.Warehouse{Type: "SERVERLESS", Serverless: true, MaxClusters: intp(10), MinClusters: intp(2)})
			So(findingPassed(r, "dedicated_warehouse"), ShouldBeTrue)
		})

		Convey("Then an unset min passes", func() {
			r := score(&model.Warehouse{Serverless: true, MaxClusters: intp(5)})
			So(findingPassed(r, "dedicated_warehouse"), ShouldBeTrue)
		})

		Convey("Then small or classic warehouses fail", func() {
			So(findingPassed(score(&model.Warehouse{Serverless: true, MaxClusters: intp(4)}), "dedicated_warehouse"), ShouldBeFalse)
			So(findingPassed(score(&model.Warehouse{Type: "PRO", MaxClusters: intp(10)}), "dedicated_warehouse"), ShouldBeFalse)
			So(findingPassed(score(nil), "dedicated_warehouse"), ShouldBeFalse)
		})
	})
}

func TestLeanInstructionsBoundary(t *testing.T) {
	Convey("Given instructions around the length limit", t, func() {
		s := scoring.NewRubricScorer()
		lean := func(n int) bool {
			return findingPassed(s.Score(&model.CanonicalSpace{Instructions: strings.Repeat("a", n)}), "lean_instructions")
		}

		So(lean(499), ShouldBeTrue)
		So(lean(500), ShouldBeFalse)
		So(lean(0), ShouldBeFalse)
	})
}

func TestDeterminismAndBounds(t *testing.T) {
	Convey("Given a range of spaces", t, func() {
		s := scoring.NewRubricScorer()
		spaces := []*model.CanonicalSpace{
			{},
			{Instructions: "x", FeedbackEnabled: true},
			{
				Instructions:    "short",
				Description:     strings.Repeat("d", 60),
				Warehouse:       &model.Warehouse{Serverless: true, MaxClusters: intp(8)},
				Tables:          tablesWith(2, 2, 5, 10),
				Joins:           []any{1},
				SampleQuestions: []string{"1", "2", "3", "4", "5", "6"},
				SQLExpressions:  []model.SQLItem{{ID: "a"}, {ID: "b"}, {ID: "c"}},
				SQLQueries:      []model.SQLItem{{SQL: "1"}, {SQL: "2"}, {SQL: "3"}},
				FeedbackEnabled: true,
			},
		}

		for _, sp := range spaces {
			a, _ := json.Marshal(s.Score(sp))
			b, _ := json.Marshal(s.Score(sp))
			So(string(a), ShouldEqual, string(b))

			r := s.Score(sp)
			sum := 0
			for _, cs := range r.Breakdown {
				sum += cs.Score
			}
			So(r.TotalScore, ShouldEqual, sum)
			So(r.TotalScore, ShouldBeBetweenOrEqual, 0, 100)
			So(len(r.NextSteps), ShouldBeLessThanOrEqualTo, scoring.MaxNextSteps)
		}

		Convey("Then a fully configured space scores 100", func() {
			r := s.Score(spaces[2])
			So(r.TotalScore, ShouldEqual, 100)
			So(r.MaturityLevel, ShouldEqual, model.MaturityOptimized)
			So(r.NextSteps, ShouldBeEmpty)
		})
	})
}

func TestTierMonotonic(t *testing.T) {
	Convey("Given every score from 0 to 100", t, func() {
		prev := -1
		for s := 0; s <= 100; s++ {
			rank := scoring.Tier(s).Rank()
			So(rank, ShouldBeGreaterThanOrEqualTo, prev)
			prev = rank
		}

		So(scoring.Tier(30), ShouldEqual, model.MaturityEmerging)
		So(scoring.Tier(31), ShouldEqual, model.MaturityDeveloping)
		So(scoring.Tier(51), ShouldEqual, model.MaturityMaturing)
		So(scoring.Tier(76), ShouldEqual, model.MaturityOptimized)
	})
}

func TestPanickingPredicate(t *testing.T) {
	Convey("Given a rubric whose predicate panics", t, func() {
		s := scoring.NewRubricScorer(scoring.WithRubric([]scoring.Category{{
			ID: "x",
			Criteria: []scoring.Criterion{
				{ID: "boom", Points: 7, Check: func(sp *model.CanonicalSpace) bool { return sp.Warehouse.Serverless }},
				{ID: "ok", Points: 3, Check: func(*model.CanonicalSpace) bool { return true }},
			},
		}}))

		r := s.Score(&model.CanonicalSpace{})

		Convey("Then it counts as failed and scoring continues", func() {
			So(r.TotalScore, ShouldEqual, 3)
			So(r.Findings[0].Passed, ShouldBeFalse)
			So(r.NextSteps[0].ID, ShouldEqual, "boom")
		})
	})
}
