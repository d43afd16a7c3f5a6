package qana

import (
	"strings"

	"github.com/provingground-moe/qserv-sub000/internal/qerrors"
	"github.com/provingground-moe/qserv-sub000/qcontext"
	"github.com/provingground-moe/qserv-sub000/query"
)

// DuplSelectExprPlugin rejects a query whose SELECT list contains two
// expressions with the same resolved output name (case-insensitive).
type DuplSelectExprPlugin struct{ BasePlugin }

func (p *DuplSelectExprPlugin) Name() string { return "DuplSelectExprPlugin" }

func (p *DuplSelectExprPlugin) Logical(parallel, merge *query.SelectStmt, qc *qcontext.Context) error {
	names := make([]string, len(parallel.SelectList))
	for i := range parallel.SelectList {
		names[i] = resolvedOutputName(parallel.SelectList[i])
	}

	positions := map[string][]int{}
	for i, n := range names {
		key := strings.ToLower(n)
		positions[key] = append(positions[key], i+1)
	}

	for i, n := range names {
		key := strings.ToLower(n)
		if len(positions[key]) > 1 && positions[key][0] == i+1 {
			return qerrors.ErrAnalysisDuplicateSelectExpr.New(n, positions[key])
		}
	}
	return nil
}

// resolvedOutputName is the name a SELECT-list expression is known by
// downstream: its alias if set, else the column name for a bare column
// reference, else its rendered text.
func resolvedOutputName(ve query.ValueExpr) string {
	if alias, ok := ve.GetAlias(); ok {
		return alias.String()
	}
	if cr, ok := ve.IsColumnRef(); ok {
		return cr.Column.String()
	}
	return ve.CompareString()
}
