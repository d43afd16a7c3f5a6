package parser

import (
	"strconv"
	"strings"

	"github.com/dolthub/vitess/go/vt/sqlparser"

	"github.com/provingground-moe/qserv-sub000/query"
)

// Parse converts SQL text into a SelectStmt IR. Only SELECT is supported;
// every other statement kind raises AdapterExecutionError, as do the
// dialect restrictions named in §4.B (sub-queries as predicates, CROSS
// JOIN, HAVING without aggregation). Node kinds the builder does not model
// structurally fall back to a PassTerm/Const carrying their raw SQL text
// rather than failing the parse outright.
func Parse(sql string) (*query.SelectStmt, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, execErr("syntax error", sql)
	}
	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return nil, execErr("DML other than SELECT is not supported", sql)
	}
	ctx := newContext()
	defer ctx.Enter("Select", sql)()
	return buildSelect(ctx, sel)
}

func buildSelect(ctx *Context, sel *sqlparser.Select) (*query.SelectStmt, error) {
	out := query.NewSelectStmt(ctx.Arena)
	out.Distinct = sel.Distinct != ""

	for _, te := range sel.From {
		id, err := buildTableExpr(ctx, te)
		if err != nil {
			return nil, err
		}
		out.From = append(out.From, id)
	}

	for _, se := range sel.SelectExprs {
		switch v := se.(type) {
		case *sqlparser.StarExpr:
			ve := query.NewValueExpr()
			col := query.ColumnRef{Column: query.NewIdentifier("*")}
			if !v.TableName.IsEmpty() {
				col.Table = query.NewIdentifier(v.TableName.Name.String())
			}
			ve.AppendFactor(query.ValueFactor{Kind: query.FactorStar, Column: col})
			out.SelectList = append(out.SelectList, ve)
		case *sqlparser.AliasedExpr:
			closer := ctx.Enter("AliasedExpr", sqlparser.String(v))
			ve, err := buildValueExpr(ctx, v.Expr)
			closer()
			if err != nil {
				return nil, err
			}
			if !v.As.IsEmpty() {
				ve.SetAlias(query.NewIdentifier(v.As.String()))
			}
			out.SelectList = append(out.SelectList, ve)
		default:
			return nil, orderErr("Select", "SelectExpr")
		}
	}

	if sel.Where != nil {
		term, err := buildBoolExpr(ctx, sel.Where.Expr)
		if err != nil {
			return nil, err
		}
		clean, restrictors := extractRestrictors(term)
		out.Where = clean
		out.Restrictors = restrictors
	}

	for _, e := range sel.GroupBy {
		ve, err := buildValueExpr(ctx, e)
		if err != nil {
			return nil, err
		}
		out.GroupBy = append(out.GroupBy, ve)
	}

	if sel.Having != nil {
		term, err := buildBoolExpr(ctx, sel.Having.Expr)
		if err != nil {
			return nil, err
		}
		if !out.HasAggregates() {
			return nil, execErr("HAVING without aggregation", sqlparser.String(sel.Having.Expr))
		}
		out.Having = term
	}

	for _, o := range sel.OrderBy {
		ve, err := buildValueExpr(ctx, o.Expr)
		if err != nil {
			return nil, err
		}
		dir := query.OrderAsc
		if o.Direction == sqlparser.DescScr {
			dir = query.OrderDesc
		}
		out.OrderBy = append(out.OrderBy, query.OrderTerm{Expr: ve, Dir: dir})
	}

	if sel.Limit != nil && sel.Limit.Rowcount != nil {
		n, err := limitValue(sel.Limit.Rowcount)
		if err != nil {
			return nil, err
		}
		out.Limit = n
	}

	return out, nil
}

func limitValue(e sqlparser.Expr) (int, error) {
	v, ok := e.(*sqlparser.SQLVal)
	if !ok {
		return 0, execErr("non-literal LIMIT", sqlparser.String(e))
	}
	n, err := strconv.Atoi(string(v.Val))
	if err != nil {
		return 0, execErr("malformed LIMIT", sqlparser.String(e))
	}
	return n, nil
}

func buildTableExpr(ctx *Context, te sqlparser.TableExpr) (query.TableRefID, error) {
	switch v := te.(type) {
	case *sqlparser.AliasedTableExpr:
		closer := ctx.Enter("AliasedTableExpr", sqlparser.String(v))
		defer closer()
		switch inner := v.Expr.(type) {
		case sqlparser.TableName:
			alias := v.As.String()
			id := ctx.Arena.NewTableRef(
				query.NewIdentifier(inner.Qualifier.String()),
				query.NewIdentifier(inner.Name.String()),
				query.NewIdentifier(alias),
			)
			return id, nil
		default:
			return 0, execErr("sub-query in FROM clause", sqlparser.String(v))
		}
	case *sqlparser.JoinTableExpr:
		if strings.Contains(strings.ToUpper(v.Join), "CROSS") {
			return 0, execErr("CROSS JOIN", sqlparser.String(v))
		}
		closer := ctx.Enter("JoinTableExpr", sqlparser.String(v))
		defer closer()
		left, err := buildTableExpr(ctx, v.LeftExpr)
		if err != nil {
			return 0, err
		}
		right, err := buildTableExpr(ctx, v.RightExpr)
		if err != nil {
			return 0, err
		}
		var on query.BoolTerm = query.Unknown{}
		if v.On != nil {
			on, err = buildBoolExpr(ctx, v.On)
			if err != nil {
				return 0, err
			}
		}
		t := ctx.Arena.Table(left)
		t.Joins = append(t.Joins, query.JoinRef{Ref: right, Type: mapJoinType(v.Join), On: on})
		return left, nil
	case *sqlparser.ParenTableExpr:
		if len(v.Exprs) != 1 {
			return 0, execErr("parenthesized multi-table FROM expression", sqlparser.String(v))
		}
		return buildTableExpr(ctx, v.Exprs[0])
	default:
		return 0, orderErr("Select", "TableExpr")
	}
}

func mapJoinType(join string) query.JoinType {
	switch strings.ToLower(join) {
	case "left join", "left outer join":
		return query.JoinLeft
	case "right join", "right outer join":
		return query.JoinRight
	case "natural join":
		return query.JoinNatural
	case "join", "inner join":
		return query.JoinInner
	default:
		return query.JoinDefault
	}
}

func buildValueExpr(ctx *Context, e sqlparser.Expr) (query.ValueExpr, error) {
	ve := query.NewValueExpr()
	if err := appendFactors(ctx, &ve, e); err != nil {
		return ve, err
	}
	return ve, nil
}

func appendFactors(ctx *Context, ve *query.ValueExpr, e sqlparser.Expr) error {
	if bin, ok := e.(*sqlparser.BinaryExpr); ok {
		if err := appendFactors(ctx, ve, bin.Left); err != nil {
			return err
		}
		if err := ve.AppendOp(mapBinOp(bin.Operator)); err != nil {
			return err
		}
		return appendFactors(ctx, ve, bin.Right)
	}
	f, err := buildFactor(ctx, e)
	if err != nil {
		return err
	}
	ve.AppendFactor(f)
	return nil
}

func mapBinOp(op string) query.BinOp {
	switch op {
	case "+":
		return query.OpPlus
	case "-":
		return query.OpMinus
	case "*":
		return query.OpMul
	case "/":
		return query.OpDiv
	case "%":
		return query.OpMod
	case "&":
		return query.OpBitAnd
	case "|":
		return query.OpBitOr
	case "^":
		return query.OpBitXor
	default:
		return query.OpNone
	}
}

var aggregateFuncNames = map[string]bool{
	"count": true, "sum": true, "avg": true, "min": true, "max": true,
}

func buildFactor(ctx *Context, e sqlparser.Expr) (query.ValueFactor, error) {
	switch v := e.(type) {
	case *sqlparser.ColName:
		col := query.ColumnRef{Column: query.NewIdentifier(v.Name.String())}
		if !v.Qualifier.IsEmpty() {
			col.Table = query.NewIdentifier(v.Qualifier.Name.String())
			if !v.Qualifier.Qualifier.IsEmpty() {
				col.Db = query.NewIdentifier(v.Qualifier.Qualifier.String())
			}
		}
		return query.ValueFactor{Kind: query.FactorColumnRef, Column: col}, nil
	case *sqlparser.SQLVal:
		return query.ValueFactor{Kind: query.FactorConst, Const: string(v.Val)}, nil
	case *sqlparser.NullVal:
		return query.ValueFactor{Kind: query.FactorConst, Const: "NULL"}, nil
	case *sqlparser.FuncExpr:
		name := v.Name.String()
		isAgg := aggregateFuncNames[strings.ToLower(name)]
		args := make([]query.ValueExpr, 0, len(v.Exprs))
		for _, se := range v.Exprs {
			switch a := se.(type) {
			case *sqlparser.StarExpr:
				star := query.NewValueExpr()
				star.AppendFactor(query.ValueFactor{Kind: query.FactorStar})
				args = append(args, star)
			case *sqlparser.AliasedExpr:
				ave, err := buildValueExpr(ctx, a.Expr)
				if err != nil {
					return query.ValueFactor{}, err
				}
				args = append(args, ave)
			}
		}
		fc := &query.FunctionCall{Name: name, Args: args, IsAggregate: isAgg, Distinct: v.Distinct}
		kind := query.FactorFunctionCall
		if isAgg {
			kind = query.FactorAggregateFunctionCall
		}
		return query.ValueFactor{Kind: kind, Func: fc}, nil
	case *sqlparser.ParenExpr:
		nested, err := buildValueExpr(ctx, v.Expr)
		if err != nil {
			return query.ValueFactor{}, err
		}
		return query.ValueFactor{Kind: query.FactorNestedValueExpr, Nested: &nested}, nil
	case *sqlparser.Subquery:
		return query.ValueFactor{}, execErr("sub-query used as a value expression", sqlparser.String(e))
	default:
		return query.ValueFactor{Kind: query.FactorConst, Const: sqlparser.String(e)}, nil
	}
}

func buildBoolExpr(ctx *Context, e sqlparser.Expr) (query.BoolTerm, error) {
	switch v := e.(type) {
	case *sqlparser.AndExpr:
		l, err := buildBoolExpr(ctx, v.Left)
		if err != nil {
			return nil, err
		}
		r, err := buildBoolExpr(ctx, v.Right)
		if err != nil {
			return nil, err
		}
		return query.Reduce(query.AndTerm{Terms: []query.BoolTerm{l, r}}), nil
	case *sqlparser.OrExpr:
		l, err := buildBoolExpr(ctx, v.Left)
		if err != nil {
			return nil, err
		}
		r, err := buildBoolExpr(ctx, v.Right)
		if err != nil {
			return nil, err
		}
		return query.Reduce(query.OrTerm{Terms: []query.BoolTerm{l, r}}), nil
	case *sqlparser.ParenExpr:
		inner, err := buildBoolExpr(ctx, v.Expr)
		if err != nil {
			return nil, err
		}
		return query.BoolTermFactor{Term: inner}, nil
	case *sqlparser.NotExpr:
		inner, err := buildBoolExpr(ctx, v.Expr)
		if err != nil {
			return nil, err
		}
		if bf, ok := inner.(query.BoolFactor); ok {
			bf.Negate = !bf.Negate
			return bf, nil
		}
		return query.PassTerm{Text: "NOT (" + inner.String() + ")"}, nil
	case *sqlparser.RangeCond:
		left, err := buildValueExpr(ctx, v.Left)
		if err != nil {
			return nil, err
		}
		min, err := buildValueExpr(ctx, v.From)
		if err != nil {
			return nil, err
		}
		max, err := buildValueExpr(ctx, v.To)
		if err != nil {
			return nil, err
		}
		return query.BoolFactor{
			Left: left, Op: query.CmpBetween, Min: min, Max: max,
			Negate: strings.EqualFold(v.Operator, "not between"),
		}, nil
	case *sqlparser.ComparisonExpr:
		return buildComparison(ctx, v)
	case *sqlparser.FuncExpr:
		if kind, ok := isSpatialRestrictorFunc(v.Name.String()); ok {
			return query.RestrictorTerm{R: restrictorFromFuncExpr(kind, v)}, nil
		}
		return query.PassTerm{Text: sqlparser.String(v)}, nil
	case *sqlparser.Subquery:
		return nil, execErr("sub-query used as a predicate", sqlparser.String(e))
	default:
		return query.PassTerm{Text: sqlparser.String(e)}, nil
	}
}

func buildComparison(ctx *Context, v *sqlparser.ComparisonExpr) (query.BoolTerm, error) {
	left, err := buildValueExpr(ctx, v.Left)
	if err != nil {
		return nil, err
	}
	op := strings.ToLower(v.Operator)
	negate := strings.HasPrefix(op, "not ")
	op = strings.TrimPrefix(op, "not ")

	if op == "in" {
		tuple, ok := v.Right.(sqlparser.ValTuple)
		if !ok {
			return nil, execErr("IN predicate with a non-literal list", sqlparser.String(v))
		}
		values := make([]query.ValueExpr, 0, len(tuple))
		for _, e := range tuple {
			ve, err := buildValueExpr(ctx, e)
			if err != nil {
				return nil, err
			}
			values = append(values, ve)
		}
		return query.BoolFactor{Left: left, Op: query.CmpIn, Values: values, Negate: negate}, nil
	}

	right, err := buildValueExpr(ctx, v.Right)
	if err != nil {
		return nil, err
	}
	cmp, ok := map[string]query.CmpOp{
		"=": query.CmpEq, "!=": query.CmpNe, "<>": query.CmpNe,
		"<": query.CmpLt, "<=": query.CmpLe, ">": query.CmpGt, ">=": query.CmpGe,
		"like": query.CmpLike,
	}[op]
	if !ok {
		return query.PassTerm{Text: sqlparser.String(v)}, nil
	}
	return query.BoolFactor{Left: left, Op: cmp, Right: right, Negate: negate}, nil
}

func restrictorFromFuncExpr(kind string, v *sqlparser.FuncExpr) query.Restrictor {
	r := query.Restrictor{Kind: restrictorKind(kind)}
	for _, se := range v.Exprs {
		if a, ok := se.(*sqlparser.AliasedExpr); ok {
			r.Args = append(r.Args, sqlparser.String(a.Expr))
		}
	}
	return r
}

func restrictorKind(kind string) query.RestrictorKind {
	switch kind {
	case "box":
		return query.RestrictorBox
	case "circle":
		return query.RestrictorCircle
	case "ellipse":
		return query.RestrictorEllipse
	case "poly":
		return query.RestrictorPoly
	case "hull":
		return query.RestrictorHull
	default:
		return query.RestrictorSecondaryIndex
	}
}

// extractRestrictors pulls every RestrictorTerm out of a conjunctive (AND)
// WHERE tree, returning the remaining predicate (Unknown{} if nothing is
// left) and the restrictor list in left-to-right order.
func extractRestrictors(t query.BoolTerm) (query.BoolTerm, []query.Restrictor) {
	switch v := t.(type) {
	case query.RestrictorTerm:
		return query.Unknown{}, []query.Restrictor{v.R}
	case query.AndTerm:
		var kept []query.BoolTerm
		var restrictors []query.Restrictor
		for _, child := range v.Terms {
			rem, rs := extractRestrictors(child)
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
