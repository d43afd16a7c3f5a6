package qana

import (
	"github.com/provingground-moe/qserv-sub000/internal/qerrors"
	"github.com/provingground-moe/qserv-sub000/qcontext"
	"github.com/provingground-moe/qserv-sub000/query"
)

// TablePlugin resolves every FROM table to an alias (synthesizing
// `db.table` when the query left it unaliased), registers unaliased
// SELECT-list expressions under their rendered text so later clauses can
// refer back to them, and rewrites every ColumnRef in the statement to
// point at the resolved FROM alias. Its physical phase turns the resolved
// FROM list into the chunk substitution mapping consumed by qproc.
type TablePlugin struct{ BasePlugin }

func (p *TablePlugin) Name() string { return "TablePlugin" }

// tableCandidate is one resolvable (db, table) -> alias binding, built from
// the FROM clause (including joined-in tables) before columns are patched.
type tableCandidate struct {
	db    string
	table string
	alias string

	// qualifiers is every name a column reference in the original SQL may
	// legally use to qualify a column onto this table: the real table name,
	// plus the explicit alias if the query gave it one (a qualified column
	// ref never uses the synthesized db.table alias, since that name did
	// not exist in the source text).
	qualifiers []string
}

func (p *TablePlugin) Logical(parallel, merge *query.SelectStmt, qc *qcontext.Context) error {
	record := qc.DominantDb == ""

	pCands, err := resolveFromAliases(parallel, qc, record)
	if err != nil {
		return err
	}
	mCands, err := resolveFromAliases(merge, qc, false)
	if err != nil {
		return err
	}

	registerSelectListAliases(parallel.SelectList, qc)

	patchStmt(parallel, pCands, qc)
	patchStmt(merge, mCands, qc)

	return nil
}

// resolveFromAliases walks stmt's FROM list (and nested joins), assigns a
// synthesized alias to every table that lacks one, registers the binding in
// qc.TableAliases, and -- when record is set (the first, parallel pass) --
// records the dominant database and the flattened resolver table list.
func resolveFromAliases(stmt *query.SelectStmt, qc *qcontext.Context, record bool) ([]tableCandidate, error) {
	ids := flattenTableRefs(stmt.Arena, stmt.From)
	cands := make([]tableCandidate, 0, len(ids))

	for _, id := range ids {
		t := stmt.Arena.Table(id)
		db := t.Db
		if db.IsEmpty() {
			db = query.NewIdentifier(qc.DefaultDb)
		}
		if record && qc.DominantDb == "" {
			qc.DominantDb = db.String()
		}

		dt := qcontext.DbTable{Db: db.String(), Table: t.Table.String()}
		qualifiers := []string{dt.Table}
		var aliasName string
		if t.HasAlias() {
			aliasName = t.Alias.Get(query.NoQuotes)
			qualifiers = append(qualifiers, aliasName)
		} else {
			aliasName = dt.Db + "." + dt.Table
			t.Alias = query.NewIdentifier(aliasName)
		}
		if !qc.TableAliases.Set(aliasName, dt) {
			existing, _ := qc.TableAliases.Get(aliasName)
			return nil, qerrors.ErrAnalysisDuplicateTableAlias.New(aliasName, existing.Db+"."+existing.Table, dt.Db+"."+dt.Table)
		}

		cands = append(cands, tableCandidate{db: dt.Db, table: dt.Table, alias: aliasName, qualifiers: qualifiers})

		if record {
			qc.ResolverTables = append(qc.ResolverTables, id)
		}
	}
	return cands, nil
}

// flattenTableRefs returns every TableRefID reachable from roots, in
// depth-first FROM/JOIN order.
func flattenTableRefs(arena *query.Arena, roots []query.TableRefID) []query.TableRefID {
	var out []query.TableRefID
	var walk func(id query.TableRefID)
	walk = func(id query.TableRefID) {
		out = append(out, id)
		t := arena.Table(id)
		for _, j := range t.Joins {
			walk(j.Ref)
		}
	}
	for _, id := range roots {
		walk(id)
	}
	return out
}

// registerSelectListAliases records every unaliased, non-star SELECT-list
// expression under its own rendered text, so ORDER BY/GROUP BY/HAVING
// clauses that repeat the expression verbatim can be recognized as
// referring to that output column.
func registerSelectListAliases(selectList []query.ValueExpr, qc *qcontext.Context) {
	for _, ve := range selectList {
		if _, isStar := isStarOnly(ve); isStar {
			continue
		}
		name := ve.CompareString()
		if alias, ok := ve.GetAlias(); ok {
			name = alias.String()
		}
		qc.SelectListAliases.Set(name, ve)
	}
}

func isStarOnly(ve query.ValueExpr) (query.ValueFactor, bool) {
	factors := ve.Factors()
	if len(factors) == 1 && factors[0].Kind == query.FactorStar {
		return factors[0], true
	}
	return query.ValueFactor{}, false
}

// patchStmt rewrites every ColumnRef/qualified-star factor in stmt to the
// resolved FROM alias, and resolves a bare GROUP BY/ORDER BY/HAVING column
// that cannot be resolved against a FROM table onto a matching SELECT-list
// alias instead.
func patchStmt(stmt *query.SelectStmt, cands []tableCandidate, qc *qcontext.Context) {
	resolve := func(cr query.ColumnRef) (query.ColumnRef, bool) {
		for _, c := range cands {
			for _, q := range c.qualifiers {
				full := query.ColumnRef{Db: query.NewIdentifier(c.db), Table: query.NewIdentifier(q), Column: cr.Column}
				if cr.IsSubsetOf(full) {
					return cr.WithTable(query.NewIdentifier(c.alias)), true
				}
			}
		}
		return cr, false
	}
	resolveTable := func(db, table query.Identifier) (string, bool) {
		for _, c := range cands {
			for _, q := range c.qualifiers {
				if (db.IsEmpty() || db.Equal(query.NewIdentifier(c.db))) && table.Equal(query.NewIdentifier(q)) {
					return c.alias, true
				}
			}
		}
		return "", false
	}

	patchFactor := func(f query.ValueFactor) query.ValueFactor {
		return patchFactorColumns(f, resolve, resolveTable)
	}
	patchExpr := func(ve query.ValueExpr) query.ValueExpr {
		return patchValueExprFactors(ve, patchFactor)
	}

	// preferAlias resolves a bare column (no table qualifier) onto a
	// matching SELECT-list output first, since GROUP BY/ORDER BY/HAVING may
	// refer to a computed output column by the name it was given rather
	// than by its source table; anything qualified, or with no alias match,
	// falls back to ordinary FROM-table resolution.
	preferAlias := func(ve query.ValueExpr) query.ValueExpr {
		if cr, ok := ve.IsColumnRef(); ok && cr.Table.IsEmpty() {
			if aliased, ok2 := qc.SelectListAliases.Get(cr.Column.String()); ok2 {
				out := ve
				out.ReplaceContent(aliased)
				return out
			}
			if alias, ok2 := qc.SelectListAliases.AliasBySubset(cr); ok2 {
				if aliased, ok3 := qc.SelectListAliases.Get(alias); ok3 {
					out := ve
					out.ReplaceContent(aliased)
					return out
				}
			}
		}
		return patchExpr(ve)
	}

	for i := range stmt.SelectList {
		stmt.SelectList[i] = patchExpr(stmt.SelectList[i])
	}
	for i := range stmt.GroupBy {
		stmt.GroupBy[i] = preferAlias(stmt.GroupBy[i])
	}
	for i := range stmt.OrderBy {
		stmt.OrderBy[i].Expr = preferAlias(stmt.OrderBy[i].Expr)
	}
	stmt.Where = query.MapValueExprs(stmt.Where, patchExpr)
	stmt.Having = query.MapValueExprs(stmt.Having, preferAlias)

	for _, id := range flattenTableRefs(stmt.Arena, stmt.From) {
		t := stmt.Arena.Table(id)
		for i := range t.Joins {
			t.Joins[i].On = query.MapValueExprs(t.Joins[i].On, patchExpr)
		}
	}
}

func patchValueExprFactors(ve query.ValueExpr, patchFactor func(query.ValueFactor) query.ValueFactor) query.ValueExpr {
	for i, f := range ve.Factors() {
		ve.SetFactor(i, patchFactor(f))
	}
	return ve
}

func patchFactorColumns(
	f query.ValueFactor,
	resolve func(query.ColumnRef) (query.ColumnRef, bool),
	resolveTable func(db, table query.Identifier) (string, bool),
) query.ValueFactor {
	switch f.Kind {
	case query.FactorColumnRef:
		if resolved, ok := resolve(f.Column); ok {
			f.Column = resolved
		}
	case query.FactorStar:
		if !f.Column.Table.IsEmpty() {
			if alias, ok := resolveTable(f.Column.Db, f.Column.Table); ok {
				f.Column.Db = query.Identifier{}
				f.Column.Table = query.NewIdentifier(alias)
			}
		}
	case query.FactorFunctionCall, query.FactorAggregateFunctionCall:
		if f.Func != nil {
			for j := range f.Func.Args {
				for k, fac := range f.Func.Args[j].Factors() {
					f.Func.Args[j].SetFactor(k, patchFactorColumns(fac, resolve, resolveTable))
				}
			}
		}
	case query.FactorNestedValueExpr:
		if f.Nested != nil {
			for k, fac := range f.Nested.Factors() {
				f.Nested.SetFactor(k, patchFactorColumns(fac, resolve, resolveTable))
			}
		}
	}
	return f
}

// Physical builds the chunk substitution mapping from the resolved FROM
// list: every resolver table that css reported as partitioned gets a
// TableSubst entry; a partitioned table appearing more than once (a
// self-join, e.g. a near-neighbor match against the same director table)
// needs the full-overlap shadow copy on every occurrence, since a match
// straddling a chunk boundary must see its neighbor's overlap rows.
func (p *TablePlugin) Physical(plan *Plan, parallel, merge *query.SelectStmt, qc *qcontext.Context) error {
	counts := map[string]int{}
	for _, id := range qc.ResolverTables {
		t := parallel.Arena.Table(id)
		db := t.Db
		if db.IsEmpty() {
			db = query.NewIdentifier(qc.DefaultDb)
		}
		key := db.String() + "." + t.Table.String()
		if qc.PartitionedTables[key] {
			counts[key]++
		}
	}

	for _, id := range qc.ResolverTables {
		t := parallel.Arena.Table(id)
		db := t.Db
		if db.IsEmpty() {
			db = query.NewIdentifier(qc.DefaultDb)
		}
		key := db.String() + "." + t.Table.String()
		if !qc.PartitionedTables[key] {
			continue
		}
		needsOverlap := counts[key] > 1
		plan.Mapping.AddTable(db.String(), t.Table.String(), needsOverlap)
		if needsOverlap {
			plan.Mapping.RequiresSubChunk = true
		}
	}
	return nil
}
