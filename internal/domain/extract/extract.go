// Package extract pulls typed facts out of loosely shaped space payloads.
//
// Every function is total: malformed or missing input yields the empty value
// of the result type and never an error.
package extract

import (
	"strings"

	"github.com/genieiq/genieiq/internal/domain/model"
	"github.com/genieiq/genieiq/internal/domain/payload"
)

// snippetBuckets are the named lists under instructions.sql_snippets.
var snippetBuckets = []string{"expressions", "measures", "filters", "dimensions"}

var ownerKeys = []string{"owner", "owner_email", "creator", "creator_email", "created_by", "user_email", "run_as"}

// Name returns the space title.
func Name(v payload.Value) string {
	return strings.TrimSpace(v.First("title", "name", "display_name").String())
}

// Description returns the space description.
func Description(v payload.Value) string {
	return v.First("description").Text("\n")
}

// SpaceID returns the space id.
func SpaceID(v payload.Value) string {
	return strings.TrimSpace(v.First("space_id", "id", "room_id").String())
}

// WarehouseID returns the id of the attached warehouse.
func WarehouseID(v payload.Value) string {
	return strings.TrimSpace(v.First("warehouse_id", "sql_warehouse_id").String())
}

// Instructions returns the text instructions joined by newline. The rich
// read stores them as a plain string.
func Instructions(v payload.Value) string {
	ins := v.Get("instructions")
	if ins.Kind() == payload.String || len(ins.Strings()) > 0 {
		return strings.TrimSpace(ins.Text("\n"))
	}
	var parts []string
	for _, item := range ins.Get("text_instructions").Items() {
		content := item.First("content", "text")
		if content.IsNull() && item.Kind() == payload.String {
			content = item
		}
		if s := strings.TrimSpace(content.Text("\n")); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// Tables returns table identifiers in first-seen order. Only identifiers
// containing a '.' are kept.
func Tables(v payload.Value) []string {
	var raw []payload.Value
	for _, t := range v.Path("data_sources", "tables").Items() {
		if t.Kind() == payload.String {
			raw = append(raw, t)
			continue
		}
		raw = append(raw, t.First("identifier", "full_name", "name"))
	}
	raw = append(raw, v.Get("table_identifiers").Items()...)
	return validTables(raw)
}

// HasTableSource reports whether any structured table list is present.
func HasTableSource(v payload.Value) bool {
	return !v.Path("data_sources", "tables").IsNull() || !v.Get("table_identifiers").IsNull()
}

func validTables(vals []payload.Value) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, val := range vals {
		s, ok := val.Str()
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if !ValidTableID(s) {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ValidTableID reports whether s has the catalog.schema.table shape closely
// enough to be accepted: at least one separator.
func ValidTableID(s string) bool {
	return strings.Contains(s, ".")
}

// TableDetails returns descriptions and column comments carried inline with
// the table list, keyed by identifier.
func TableDetails(v payload.Value) map[string]model.Table {
	out := make(map[string]model.Table)
	for _, t := range v.Path("data_sources", "tables").Items() {
		id := strings.TrimSpace(t.First("identifier", "full_name", "name").String())
		if !ValidTableID(id) {
			continue
		}
		tbl, ok := out[id]
		if !ok {
			tbl = model.Table{FullName: id, Columns: []model.Column{}}
		}
		if d := strings.TrimSpace(t.First("description", "comment").Text("\n")); d != "" {
			tbl.Description = d
		}
		if cols := columns(t.First("column_configs", "columns")); len(cols) > 0 {
			tbl.Columns = cols
		}
		out[id] = tbl
	}
	return out
}

func columns(v payload.Value) []model.Column {
	out := []model.Column{}
	seen := make(map[string]int)
	for _, c := range v.Items() {
		name := strings.TrimSpace(c.First("column_name", "name").String())
		if name == "" {
			continue
		}
		desc := strings.TrimSpace(c.First("description", "comment").Text("\n"))
		if i, dup := seen[name]; dup {
			if desc != "" {
				out[i].Description = desc
			}
			continue
		}
		seen[name] = len(out)
		out = append(out, model.Column{Name: name, Description: desc})
	}
	return out
}

// Joins returns the join specs, dropping null and empty entries.
func Joins(v payload.Value) []any {
	src := v.Path("instructions", "join_specs")
	if src.IsNull() {
		src = v.Get("join_specs")
	}
	out := []any{}
	for _, j := range src.Items() {
		if j.Empty() {
			continue
		}
		out = append(out, j.Raw())
	}
	return out
}

// exampleList returns the combined question/SQL list.
func exampleList(v payload.Value) payload.Value {
	src := v.Path("instructions", "example_question_sqls")
	if src.IsNull() {
		src = v.Get("example_question_sqls")
	}
	return src
}

func exampleSQL(item payload.Value) string {
	return strings.TrimSpace(item.First("sql", "query").Text("\n"))
}

// SampleQuestions returns the sample questions. The structured
// config.sample_questions list wins; otherwise entries of the question/SQL
// list that carry no SQL are used. Entries with SQL are trusted queries.
func SampleQuestions(v payload.Value) []string {
	d := newDedup()
	structured := v.Path("config", "sample_questions")
	if structured.IsNull() {
		structured = v.Get("sample_questions")
	}
	for _, item := range structured.Items() {
		q := item
		if item.Kind() == payload.Object {
			q = item.First("question", "text")
		}
		for _, s := range q.Strings() {
			d.add(s)
		}
	}
	if len(d.out) > 0 {
		return d.out
	}
	for _, item := range exampleList(v).Items() {
		if exampleSQL(item) != "" {
			continue
		}
		for _, s := range item.Get("question").Strings() {
			d.add(s)
		}
	}
	return d.out
}

// HasQuestionSource reports whether any structured question list is present.
func HasQuestionSource(v payload.Value) bool {
	return !v.Path("config", "sample_questions").IsNull() ||
		!v.Get("sample_questions").IsNull() ||
		!exampleList(v).IsNull()
}

// TrustedQueries returns the question/SQL entries that carry non-blank SQL,
// de-duplicated by question::sql.
func TrustedQueries(v payload.Value) []model.SQLItem {
	out := []model.SQLItem{}
	seen := make(map[string]struct{})
	for _, item := range exampleList(v).Items() {
		sql := exampleSQL(item)
		if sql == "" {
			continue
		}
		q := strings.TrimSpace(item.Get("question").Text(" "))
		key := q + "::" + sql
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, model.SQLItem{
			ID:       strings.TrimSpace(item.Get("id").String()),
			Question: q,
			SQL:      sql,
		})
	}
	return out
}

// SQLExpressions flattens all snippet buckets into one list, de-duplicated by
// id, falling back to name::sql.
func SQLExpressions(v payload.Value) []model.SQLItem {
	container := v.Path("instructions", "sql_snippets")
	if container.IsNull() {
		container = v.Get("sql_snippets")
	}
	out := []model.SQLItem{}
	seen := make(map[string]struct{})
	for _, bucket := range snippetBuckets {
		for _, item := range container.Get(bucket).Items() {
			if item.Kind() != payload.Object {
				continue
			}
			it := model.SQLItem{
				ID:   strings.TrimSpace(item.Get("id").String()),
				Name: strings.TrimSpace(item.First("alias", "name", "display_name").String()),
				Kind: bucket,
				SQL:  strings.TrimSpace(item.First("sql", "expression").Text("\n")),
			}
			if it.ID == "" && it.Name == "" && it.SQL == "" {
				continue
			}
			key := it.ID
			if key == "" {
				key = it.Name + "::" + it.SQL
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, it)
		}
	}
	return out
}

// FeedbackEnabled reads the feedback flag. found is false when neither
// location carries a boolean; callers default to enabled.
func FeedbackEnabled(v payload.Value) (enabled, found bool) {
	if b, ok := v.Path("config", "feedback_enabled").BoolValue(); ok {
		return b, true
	}
	if b, ok := v.Get("feedback_enabled").BoolValue(); ok {
		return b, true
	}
	return true, false
}

// Owner returns the owner email from well-known keys, or nil.
func Owner(v payload.Value) *string {
	for _, k := range ownerKeys {
		if s := strings.TrimSpace(v.Get(k).String()); strings.Contains(s, "@") {
			return &s
		}
	}
	return nil
}

// Warehouse maps a warehouse read. A payload without an id yields nil.
func Warehouse(v payload.Value) *model.Warehouse {
	id := strings.TrimSpace(v.First("id", "warehouse_id").String())
	if id == "" {
		return nil
	}
	w := &model.Warehouse{
		ID:          id,
		Name:        strings.TrimSpace(v.Get("name").String()),
		Type:        strings.ToUpper(strings.TrimSpace(v.First("warehouse_type", "type").String())),
		ClusterSize: strings.TrimSpace(v.Get("cluster_size").String()),
	}
	if b, ok := v.First("enable_serverless_compute", "serverless").BoolValue(); ok && b {
		w.Serverless = true
	}
	if w.Type == "SERVERLESS" {
		w.Serverless = true
	}
	if w.Serverless {
		w.Type = "SERVERLESS"
	}
	if w.Type == "" {
		w.Type = "UNKNOWN"
	}
	if n, ok := v.Get("min_num_clusters").Int(); ok {
		w.MinClusters = &n
	}
	if n, ok := v.Get("max_num_clusters").Int(); ok {
		w.MaxClusters = &n
	}
	return w
}

type dedup struct {
	seen map[string]struct{}
	out  []string
}

func newDedup() *dedup {
	return &dedup{seen: make(map[string]struct{}), out: []string{}}
}

func (d *dedup) add(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if _, ok := d.seen[s]; ok {
		return
	}
	d.seen[s] = struct{}{}
	d.out = append(d.out, s)
}
