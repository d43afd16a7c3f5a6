package qana

import (
	"github.com/provingground-moe/qserv-sub000/internal/qerrors"
	"github.com/provingground-moe/qserv-sub000/qcontext"
	"github.com/provingground-moe/qserv-sub000/query"
)

// GroupByPlugin enforces that a query mixing aggregate and non-aggregate
// SELECT-list expressions names every non-aggregate expression in its
// GROUP BY list: Qserv has no notion of an implementation-defined pick
// among rows in a group the way MySQL's relaxed ONLY_FULL_GROUP_BY mode
// does, since each worker groups its own chunk independently and the czar
// cannot arbitrate which worker's pick wins.
type GroupByPlugin struct{ BasePlugin }

func (p *GroupByPlugin) Name() string { return "GroupByPlugin" }

func (p *GroupByPlugin) Logical(parallel, merge *query.SelectStmt, qc *qcontext.Context) error {
	if !parallel.HasAggregates() || len(parallel.SelectList) == 0 {
		return nil
	}

	grouped := make(map[string]bool, len(parallel.GroupBy))
	for _, ve := range parallel.GroupBy {
		grouped[ve.CompareString()] = true
	}

	for _, ve := range parallel.SelectList {
		if hasAggregateFactor(ve) {
			continue
		}
		if !grouped[ve.CompareString()] {
			return qerrors.ErrAnalysisUnsupportedFeature.New(
				"non-aggregate select expression \"" + ve.CompareString() + "\" is not in GROUP BY")
		}
	}
	return nil
}

func hasAggregateFactor(ve query.ValueExpr) bool {
	for _, f := range ve.Factors() {
		if f.Kind == query.FactorAggregateFunctionCall {
			return true
		}
	}
	return false
}
