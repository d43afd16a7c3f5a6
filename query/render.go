package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Render produces the SQL text for stmt. It is used to materialize the
// pre-flight/parallel/merge templates; table names are rendered as written
// (db.table), and qproc's Builder substitutes the per-chunk table names
// into the rendered text afterwards.
func Render(s *SelectStmt) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if s.Distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(renderSelectList(s.SelectList))
	if len(s.From) > 0 {
		b.WriteString(" FROM ")
		b.WriteString(renderFrom(s.Arena, s.From))
	}
	if s.HasWhere() {
		b.WriteString(" WHERE ")
		b.WriteString(s.Where.String())
	}
	if len(s.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(renderExprList(s.GroupBy))
	}
	if s.HasHaving() {
		b.WriteString(" HAVING ")
		b.WriteString(s.Having.String())
	}
	if len(s.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		parts := make([]string, len(s.OrderBy))
		for i, ot := range s.OrderBy {
			dir := "ASC"
			if ot.Dir == OrderDesc {
				dir = "DESC"
			}
			parts[i] = ot.Expr.CompareString() + " " + dir
		}
		b.WriteString(strings.Join(parts, ", "))
	}
	if s.Limit >= 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(s.Limit))
	}
	return b.String()
}

func renderSelectList(exprs []ValueExpr) string {
	if len(exprs) == 0 {
		return "*"
	}
	return renderExprListWithAlias(exprs)
}

func renderExprListWithAlias(exprs []ValueExpr) string {
	parts := make([]string, len(exprs))
	for i := range exprs {
		parts[i] = exprs[i].String()
	}
	return strings.Join(parts, ", ")
}

func renderExprList(exprs []ValueExpr) string {
	parts := make([]string, len(exprs))
	for i := range exprs {
		parts[i] = exprs[i].CompareString()
	}
	return strings.Join(parts, ", ")
}

func renderFrom(arena *Arena, ids []TableRefID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = renderTableRef(arena, id)
	}
	return strings.Join(parts, ", ")
}

func renderTableRef(arena *Arena, id TableRefID) string {
	t := arena.Table(id)
	s := t.DbTable(Unmodified)
	if t.HasAlias() {
		s += " AS " + t.Alias.Get(WithQuotes)
	}
	for _, j := range t.Joins {
		s += renderJoin(arena, j)
	}
	return s
}

func renderJoin(arena *Arena, j JoinRef) string {
	kw := "JOIN"
	switch j.Type {
	case JoinInner:
		kw = "INNER JOIN"
	case JoinLeft:
		kw = "LEFT JOIN"
	case JoinRight:
		kw = "RIGHT JOIN"
	case JoinNatural:
		kw = "NATURAL JOIN"
	}
	s := fmt.Sprintf(" %s %s", kw, renderTableRef(arena, j.Ref))
	if j.On != nil {
		if _, unknown := j.On.(Unknown); !unknown {
			s += " ON " + j.On.String()
		}
	}
	return s
}
