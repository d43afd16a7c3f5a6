package qana

import (
	"github.com/provingground-moe/qserv-sub000/qcontext"
	"github.com/provingground-moe/qserv-sub000/query"
)

// WhereRestrictorPlugin recognizes "col IN (...)" predicates over a
// director table's secondary-indexed column and pulls them out of the
// WHERE clause into a secondary-index Restrictor: instead of scanning
// every chunk for the listed values, the czar can consult the secondary
// index to learn exactly which chunks could contain them and prune the
// rest before dispatch.
type WhereRestrictorPlugin struct{ BasePlugin }

func (p *WhereRestrictorPlugin) Name() string { return "WhereRestrictorPlugin" }

func (p *WhereRestrictorPlugin) Logical(parallel, merge *query.SelectStmt, qc *qcontext.Context) error {
	if len(qc.SecondaryIndexColumn) == 0 || !parallel.HasWhere() {
		return nil
	}

	isCandidate := func(bf query.BoolFactor) (query.Restrictor, bool) {
		if bf.Op != query.CmpIn || bf.Negate {
			return query.Restrictor{}, false
		}
		cr, ok := bf.Left.IsColumnRef()
		if !ok {
			return query.Restrictor{}, false
		}
		table := cr.Table.String()
		col, ok := qc.SecondaryIndexColumn[dbTableKey(qc, table)]
		if !ok || col != cr.Column.String() {
			return query.Restrictor{}, false
		}
		args := make([]string, 0, len(bf.Values))
		for _, v := range bf.Values {
			factors := v.Factors()
			if len(factors) != 1 || factors[0].Kind != query.FactorConst {
				return query.Restrictor{}, false
			}
			args = append(args, factors[0].Const)
		}
		dt, _ := qc.TableAliases.Get(table)
		return query.Restrictor{
			Kind:   query.RestrictorSecondaryIndex,
			Db:     dt.Db,
			Table:  dt.Table,
			Column: cr.Column.String(),
			Args:   args,
		}, true
	}

	where, restrictors := extractRestrictorFactors(parallel.Where, isCandidate)
	if len(restrictors) == 0 {
		return nil
	}
	parallel.Where = where
	merge.Where = query.CloneTerm(where)
	parallel.Restrictors = append(parallel.Restrictors, restrictors...)
	merge.Restrictors = append(merge.Restrictors, restrictors...)
	qc.Restrictors = append(qc.Restrictors, restrictors...)
	return nil
}

func dbTableKey(qc *qcontext.Context, alias string) string {
	dt, ok := qc.TableAliases.Get(alias)
	if !ok {
		return alias
	}
	return dt.Db + "." + dt.Table
}

// extractRestrictorFactors walks a conjunctive WHERE tree, pulling out
// every BoolFactor isCandidate accepts, and returns the remaining
// predicate (Unknown{} if nothing is left) plus the extracted restrictors
// in left-to-right order.
func extractRestrictorFactors(t query.BoolTerm, isCandidate func(query.BoolFactor) (query.Restrictor, bool)) (query.BoolTerm, []query.Restrictor) {
	switch v := t.(type) {
	case query.BoolFactor:
		if r, ok := isCandidate(v); ok {
			return query.Unknown{}, []query.Restrictor{r}
		}
		return t, nil
	case query.AndTerm:
		var kept []query.BoolTerm
		var restrictors []query.Restrictor
		for _, child := range v.Terms {
			rem, rs := extractRestrictorFactors(child, isCandidate)
			restrictors = append(restrictors, rs...)
			if _, unknown := rem.(query.Unknown); !unknown {
				kept = append(kept, rem)
			}
		}
		switch len(kept) {
		case 0:
			return query.Unknown{}, restrictors
		case 1:
			return kept[0], restrictors
		default:
			return query.AndTerm{Terms: kept}, restrictors
		}
	default:
		return t, nil
	}
}
