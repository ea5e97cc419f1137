package repository

import (
	"strconv"
	"strings"
	"time"

	"github.com/genieiq/genieiq/internal/domain/types"
)

// rowColumns lists the history columns in scan order.
var rowColumns = []string{
	"id::text",
	"space_id",
	"space_name",
	"COALESCE(description, '')",
	"COALESCE(owner, '')",
	"COALESCE(warehouse_id, '')",
	"COALESCE(warehouse_type, '')",
	"COALESCE(warehouse_serverless, FALSE)",
	"total_score",
	"maturity_level",
	"breakdown",
	"findings",
	"next_steps",
	"COALESCE(table_count, 0)",
	"scanned_at",
}

// columns qualifies rowColumns with alias.
func columns(alias string) string {
	if alias == "" {
		return strings.Join(rowColumns, ", ")
	}
	out := make([]string, len(rowColumns))
	for i, c := range rowColumns {
		out[i] = qualify(c, alias)
	}
	return strings.Join(out, ", ")
}

// qualify prefixes the bare column inside a select expression.
func qualify(expr, alias string) string {
	if inner, ok := strings.CutPrefix(expr, "COALESCE("); ok {
		return "COALESCE(" + alias + "." + inner
	}
	return alias + "." + expr
}

// args accumulates positional parameters.
type args struct {
	vals []any
}

func (a *args) add(v any) string {
	a.vals = append(a.vals, v)
	return "$" + strconv.Itoa(len(a.vals))
}

// escapeLike escapes LIKE wildcards in s.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// latestWhere builds the FROM/JOIN/WHERE clause shared by list and count.
// The star join always binds the user as $1.
func latestWhere(f types.ListFilter, a *args) string {
	var b strings.Builder
	b.WriteString(" FROM latest_scores l LEFT JOIN space_stars st ON st.space_id = l.space_id AND st.user_email = ")
	b.WriteString(a.add(f.User))

	var conds []string
	if f.StarredOnly {
		conds = append(conds, "st.user_email IS NOT NULL")
	}
	if f.Owner != "" {
		conds = append(conds, "lower(l.owner) = lower("+a.add(f.Owner)+")")
	}
	if f.Maturity != "" {
		conds = append(conds, "l.maturity_level = "+a.add(string(f.Maturity)))
	}
	if f.Search != "" {
		p := a.add("%" + escapeLike(f.Search) + "%")
		conds = append(conds, "(l.space_name ILIKE "+p+" OR COALESCE(l.owner, '') ILIKE "+p+")")
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	return b.String()
}

func latestOrder(sort string) string {
	switch sort {
	case types.SortScoreAsc:
		return " ORDER BY l.total_score ASC, l.space_name ASC, l.space_id ASC"
	case types.SortName:
		return " ORDER BY l.space_name ASC, l.space_id ASC"
	case types.SortScannedDesc:
		return " ORDER BY l.scanned_at DESC, l.space_name ASC, l.space_id ASC"
	default:
		return " ORDER BY l.total_score DESC, l.space_name ASC, l.space_id ASC"
	}
}

// buildLatestQuery returns the paged latest-score query for f.
func buildLatestQuery(f types.ListFilter) (string, []any) {
	f = f.Normalize()
	a := &args{}
	where := latestWhere(f, a)
	q := "SELECT " + columns("l") + ", (st.user_email IS NOT NULL) AS starred" +
		where + latestOrder(f.Sort) +
		" LIMIT " + a.add(f.Limit) + " OFFSET " + a.add(f.Offset)
	return q, a.vals
}

// buildCountQuery returns the unpaged count query for f.
func buildCountQuery(f types.ListFilter) (string, []any) {
	f = f.Normalize()
	a := &args{}
	q := "SELECT COUNT(*)" + latestWhere(f, a)
	return q, a.vals
}

// buildHistoryQuery returns the history query for a space. since is ignored
// when zero.
func buildHistoryQuery(spaceID string, since time.Time, limit int) (string, []any) {
	a := &args{}
	q := "SELECT " + columns("") + " FROM audit_results WHERE space_id = " + a.add(spaceID)
	if !since.IsZero() {
		q += " AND scanned_at >= " + a.add(since)
	}
	q += " ORDER BY scanned_at DESC LIMIT " + a.add(limit)
	return q, a.vals
}
