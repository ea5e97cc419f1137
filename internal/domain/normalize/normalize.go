// Package normalize merges the upstream reads of a space into one
// CanonicalSpace.
package normalize

import (
	"strings"

	"github.com/genieiq/genieiq/internal/domain/extract"
	"github.com/genieiq/genieiq/internal/domain/model"
	"github.com/genieiq/genieiq/internal/domain/payload"
)

// Sources are the payloads available for one space. Any of them may be null.
type Sources struct {
	// ID is used when no payload carries the space id.
	ID string
	// Primary is the base read.
	Primary payload.Value
	// Export is the serialized space of the export read.
	Export payload.Value
	// Rich is the secondary "get" read.
	Rich payload.Value
	// Warehouse is the warehouse read.
	Warehouse payload.Value
}

// byPreference returns the non-null documents, most preferred first:
// rich, primary, export.
func (s Sources) byPreference() []payload.Value {
	out := make([]payload.Value, 0, 3)
	for _, v := range []payload.Value{s.Rich, s.Primary, s.Export} {
		if !v.IsNull() {
			out = append(out, v)
		}
	}
	return out
}

// Normalize builds the canonical space. Table details are merged from every
// source, least preferred first, so later sources win per field.
func Normalize(src Sources) model.CanonicalSpace {
	docs := src.byPreference()

	sp := model.CanonicalSpace{
		ID:              firstString(docs, extract.SpaceID),
		Name:            firstString(docs, extract.Name),
		Description:     firstString(docs, extract.Description),
		Instructions:    firstString(docs, extract.Instructions),
		Joins:           first(docs, extract.Joins),
		SampleQuestions: first(docs, extract.SampleQuestions),
		SQLExpressions:  first(docs, extract.SQLExpressions),
		SQLQueries:      first(docs, extract.TrustedQueries),
		FeedbackEnabled: feedback(docs),
		Owner:           owner(docs),
	}
	if sp.ID == "" {
		sp.ID = src.ID
	}

	ids := first(docs, extract.Tables)
	if len(ids) == 0 && !anyHas(docs, extract.HasTableSource) {
		ids = first(docs, extract.GenericTables)
	}
	if len(sp.SampleQuestions) == 0 && !anyHas(docs, extract.HasQuestionSource) {
		sp.SampleQuestions = first(docs, extract.GenericSampleQuestions)
	}
	sp.Tables = tables(ids, docs)

	sp.Warehouse = extract.Warehouse(src.Warehouse)
	if sp.Warehouse == nil {
		if id := firstString(docs, extract.WarehouseID); id != "" {
			sp.Warehouse = &model.Warehouse{ID: id, Type: "UNKNOWN"}
		}
	}

	sp.EnsureLists()
	return sp
}

// MergeTables overlays details onto base per field: a non-empty description
// or column comment in details replaces the one in base, and unknown columns
// are appended. Tables absent from base are not added.
func MergeTables(base, details []model.Table) []model.Table {
	byID := make(map[string]model.Table, len(details))
	for _, d := range details {
		byID[d.FullName] = d
	}
	out := make([]model.Table, len(base))
	for i, t := range base {
		out[i] = overlay(t, byID[t.FullName])
	}
	return out
}

func overlay(t, d model.Table) model.Table {
	cols := make([]model.Column, len(t.Columns))
	copy(cols, t.Columns)
	t.Columns = cols
	if d.FullName == "" {
		return t
	}
	if strings.TrimSpace(d.Description) != "" {
		t.Description = d.Description
	}
	index := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		index[c.Name] = i
	}
	for _, c := range d.Columns {
		i, ok := index[c.Name]
		if !ok {
			index[c.Name] = len(t.Columns)
			t.Columns = append(t.Columns, c)
			continue
		}
		if strings.TrimSpace(c.Description) != "" {
			t.Columns[i].Description = c.Description
		}
	}
	return t
}

func tables(ids []string, docs []payload.Value) []model.Table {
	out := make([]model.Table, 0, len(ids))
	for _, id := range ids {
		t := model.Table{FullName: id, Columns: []model.Column{}}
		for i := len(docs) - 1; i >= 0; i-- {
			if d, ok := extract.TableDetails(docs[i])[id]; ok {
				t = overlay(t, d)
			}
		}
		out = append(out, t)
	}
	return out
}

func firstString(docs []payload.Value, f func(payload.Value) string) string {
	for _, d := range docs {
		if s := f(d); s != "" {
			return s
		}
	}
	return ""
}

func first[T any](docs []payload.Value, f func(payload.Value) []T) []T {
	for _, d := range docs {
		if got := f(d); len(got) > 0 {
			return got
		}
	}
	return []T{}
}

func anyHas(docs []payload.Value, f func(payload.Value) bool) bool {
	for _, d := range docs {
		if f(d) {
			return true
		}
	}
	return false
}

func feedback(docs []payload.Value) bool {
	for _, d := range docs {
		if enabled, found := extract.FeedbackEnabled(d); found {
			return enabled
		}
	}
	return true
}

func owner(docs []payload.Value) *string {
	for _, d := range docs {
		if o := extract.Owner(d); o != nil {
			return o
		}
	}
	for _, d := range docs {
		if o := extract.GenericOwner(d); o != nil {
			return o
		}
	}
	return nil
}
