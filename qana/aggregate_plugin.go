package qana

import (
	"strings"

	"github.com/provingground-moe/qserv-sub000/qcontext"
	"github.com/provingground-moe/qserv-sub000/query"
)

// AggregatePlugin splits every aggregate SELECT-list expression into its
// worker-side partial computation and its czar-side finishing computation.
// SUM and MAX and MIN re-apply themselves over the worker partials; COUNT
// finishes as SUM over a worker-side COUNT (summing per-chunk counts, not
// re-counting chunks); AVG is the odd one out, since averaging a set of
// per-chunk averages is not the average of the whole: the parallel template
// computes COUNT and SUM under synthetic aliases, and the merge template
// divides their sums. Every partial gets a synthetic alias so the merge
// table's schema (built from the worker's declared output columns, see
// rproc.TableManager.Create) actually has a column for the merge side to
// reference.
type AggregatePlugin struct{ BasePlugin }

func (p *AggregatePlugin) Name() string { return "AggregatePlugin" }

func (p *AggregatePlugin) Logical(parallel, merge *query.SelectStmt, qc *qcontext.Context) error {
	var newParallel []query.ValueExpr
	var newMerge []query.ValueExpr

	for i := range parallel.SelectList {
		pe := parallel.SelectList[i]
		me := merge.SelectList[i]

		agg, ok := soleAggregate(pe)
		if !ok {
			newParallel = append(newParallel, pe)
			newMerge = append(newMerge, me)
			continue
		}

		alias, hasAlias := pe.GetAlias()

		if strings.EqualFold(agg.Name, "avg") {
			countAlias := qc.NextSyntheticAlias("COUNT")
			sumAlias := qc.NextSyntheticAlias("SUM")

			countExpr := aggregateCallExpr("COUNT", agg.Args, agg.Distinct, countAlias)
			sumExpr := aggregateCallExpr("SUM", agg.Args, agg.Distinct, sumAlias)
			newParallel = append(newParallel, countExpr, sumExpr)

			sumOf := func(name string) query.ValueFactor {
				return query.ValueFactor{
					Kind: query.FactorAggregateFunctionCall,
					Func: &query.FunctionCall{Name: "SUM", Args: []query.ValueExpr{valueExprFromColumn(name)}, IsAggregate: true},
				}
			}
			mergeExpr := query.NewValueExpr()
			mergeExpr.AppendFactor(sumOf(sumAlias))
			if err := mergeExpr.AppendOp(query.OpDiv); err != nil {
				return err
			}
			mergeExpr.AppendFactor(sumOf(countAlias))
			if hasAlias {
				mergeExpr.SetAlias(alias)
			}
			newMerge = append(newMerge, mergeExpr)
			continue
		}

		// COUNT/SUM/MIN/MAX: the worker computes the same aggregate under a
		// synthetic partial alias, and the merge side finishes it -- SUM over
		// the partials for COUNT and SUM (a SUM of per-chunk sums, or a SUM of
		// per-chunk counts, is the total), or MIN/MAX re-applied for MIN/MAX.
		finishOp := strings.ToUpper(agg.Name)
		if finishOp == "COUNT" {
			finishOp = "SUM"
		}
		partialAlias := qc.NextSyntheticAlias(strings.ToUpper(agg.Name))
		partialExpr := aggregateCallExpr(strings.ToUpper(agg.Name), agg.Args, agg.Distinct, partialAlias)
		newParallel = append(newParallel, partialExpr)

		mergeExpr := query.NewValueExpr()
		mergeExpr.AppendFactor(query.ValueFactor{
			Kind: query.FactorAggregateFunctionCall,
			Func: &query.FunctionCall{
				Name:        finishOp,
				Args:        []query.ValueExpr{valueExprFromColumn(partialAlias)},
				IsAggregate: true,
			},
		})
		if hasAlias {
			mergeExpr.SetAlias(alias)
		}
		newMerge = append(newMerge, mergeExpr)
	}

	parallel.SelectList = newParallel
	merge.SelectList = newMerge
	return nil
}

// soleAggregate returns the aggregate function call ve carries, and true,
// only when ve is exactly that one aggregate factor (no surrounding
// arithmetic) -- the only shape AggregatePlugin rewrites.
func soleAggregate(ve query.ValueExpr) (*query.FunctionCall, bool) {
	factors := ve.Factors()
	if len(factors) != 1 || factors[0].Kind != query.FactorAggregateFunctionCall {
		return nil, false
	}
	return factors[0].Func, true
}

func aggregateCallExpr(name string, args []query.ValueExpr, distinct bool, alias string) query.ValueExpr {
	ve := query.NewValueExpr()
	fc := &query.FunctionCall{Name: name, Args: args, IsAggregate: true, Distinct: distinct}
	ve.AppendFactor(query.ValueFactor{Kind: query.FactorAggregateFunctionCall, Func: fc})
	ve.SetAlias(query.NewIdentifier(alias))
	return ve
}

func colFactor(name string) query.ValueFactor {
	return query.ValueFactor{Kind: query.FactorColumnRef, Column: query.ColumnRef{Column: query.NewIdentifier(name)}}
}

func valueExprFromColumn(name string) query.ValueExpr {
	ve := query.NewValueExpr()
	ve.AppendFactor(colFactor(name))
	return ve
}
