package qana

import (
	"strings"

	"github.com/provingground-moe/qserv-sub000/qcontext"
	"github.com/provingground-moe/qserv-sub000/query"
)

// OrderByPlugin strips ORDER BY out of the parallel and merge templates and
// records it as a "proxy" clause instead: rows only attain their final
// global order once every worker's partial result has been merged into one
// table, so ordering is meaningless applied chunk-by-chunk and is instead
// re-applied by the front end against the merged result.
type OrderByPlugin struct{ BasePlugin }

func (p *OrderByPlugin) Name() string { return "OrderByPlugin" }

func (p *OrderByPlugin) Logical(parallel, merge *query.SelectStmt, qc *qcontext.Context) error {
	if len(merge.OrderBy) == 0 {
		return nil
	}
	qc.ProxyOrderBy = renderOrderBy(merge.OrderBy)
	parallel.OrderBy = nil
	merge.OrderBy = nil
	return nil
}

func (p *OrderByPlugin) Physical(plan *Plan, parallel, merge *query.SelectStmt, qc *qcontext.Context) error {
	plan.ProxyOrderBy = qc.ProxyOrderBy
	return nil
}

func renderOrderBy(terms []query.OrderTerm) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		dir := "ASC"
		if t.Dir == query.OrderDesc {
			dir = "DESC"
		}
		parts[i] = t.Expr.CompareString() + " " + dir
	}
	return strings.Join(parts, ", ")
}
