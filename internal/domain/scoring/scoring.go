// Package scoring evaluates a canonical space against the rubric.
package scoring

import (
	"sort"

	"github.com/genieiq/genieiq/internal/domain/model"
)

// MaxNextSteps caps the recommendations returned with a result.
const MaxNextSteps = 5

// Tier thresholds.
const (
	optimizedMin  = 76
	maturingMin   = 51
	developingMin = 31
)

// Option applies a configuration option to the RubricScorer.
type Option func(*RubricScorer)

// WithRubric replaces the default rubric.
func WithRubric(categories []Category) Option {
	return func(s *RubricScorer) {
		if len(categories) > 0 {
			s.rubric = categories
		}
	}
}

// Result contains the scoring fields of a scan result.
type Result struct {
	TotalScore    int
	Breakdown     map[string]model.CategoryScore
	Findings      []model.Finding
	MaturityLevel model.Maturity
	NextSteps     []model.Finding
}

// Scorer computes a score from a canonical space.
type Scorer interface {
	// Score is a pure function of sp.
	Score(sp *model.CanonicalSpace) Result
}

// RubricScorer implements Scorer over a fixed rubric.
type RubricScorer struct {
	rubric []Category
}

// NewRubricScorer creates a scorer with the default rubric.
func NewRubricScorer(opts ...Option) *RubricScorer {
	s := &RubricScorer{rubric: DefaultRubric()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score evaluates every criterion in order. A panicking predicate counts as
// failed.
func (s *RubricScorer) Score(sp *model.CanonicalSpace) Result {
	if sp == nil {
		sp = &model.CanonicalSpace{}
	}
	res := Result{
		Breakdown: make(map[string]model.CategoryScore, len(s.rubric)),
		Findings:  make([]model.Finding, 0, 16),
	}
	for _, cat := range s.rubric {
		cs := model.CategoryScore{MaxScore: cat.MaxScore()}
		for _, cr := range cat.Criteria {
			passed := evaluate(cr.Check, sp)
			f := model.Finding{
				ID:       cr.ID,
				Category: cat.ID,
				Name:     cr.Name,
				Passed:   passed,
				Points:   cr.Points,
			}
			if passed {
				cs.Score += cr.Points
			} else {
				rec := cr.Recommendation
				f.Recommendation = &rec
			}
			res.Findings = append(res.Findings, f)
		}
		res.Breakdown[cat.ID] = cs
		res.TotalScore += cs.Score
	}
	res.MaturityLevel = Tier(res.TotalScore)
	res.NextSteps = NextSteps(res.Findings)
	return res
}

func evaluate(p Predicate, sp *model.CanonicalSpace) (passed bool) {
	if p == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			passed = false
		}
	}()
	return p(sp)
}

// Tier maps a total score to a maturity tier.
func Tier(score int) model.Maturity {
	switch {
	case score >= optimizedMin:
		return model.MaturityOptimized
	case score >= maturingMin:
		return model.MaturityMaturing
	case score >= developingMin:
		return model.MaturityDeveloping
	default:
		return model.MaturityEmerging
	}
}

// NextSteps returns failed findings by points descending, ties in original
// order, capped at MaxNextSteps.
func NextSteps(findings []model.Finding) []model.Finding {
	out := make([]model.Finding, 0, MaxNextSteps)
	for _, f := range findings {
		if !f.Passed {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Points > out[j].Points })
	if len(out) > MaxNextSteps {
		out = out[:MaxNextSteps]
	}
	return out
}
