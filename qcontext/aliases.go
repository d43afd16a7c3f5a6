// Package qcontext holds the per-query mutable planning context: default
// and dominant database, the resolver table list, and the two bidirectional
// alias maps the plan plugins populate and consult.
package qcontext

import "github.com/provingground-moe/qserv-sub000/query"

// DbTable is a (db, table) pair used as a TableAliases lookup key.
type DbTable struct {
	Db    string
	Table string
}

// TableAliases is a bidirectional map between an alias and the (db, table)
// it stands for. Set rejects an alias already registered to a different
// (db, table) by returning false, leaving the map unchanged.
type TableAliases struct {
	byAlias map[string]DbTable
	byTable map[DbTable]string
}

// NewTableAliases returns an empty TableAliases.
func NewTableAliases() *TableAliases {
	return &TableAliases{byAlias: map[string]DbTable{}, byTable: map[DbTable]string{}}
}

// Set registers alias -> (db, table). Returns false without modifying the
// map if alias is already registered to a different (db, table).
func (a *TableAliases) Set(alias string, dt DbTable) bool {
	if existing, ok := a.byAlias[alias]; ok {
		return existing == dt
	}
	a.byAlias[alias] = dt
	a.byTable[dt] = alias
	return true
}

// Alias returns the alias registered for (db, table), if any.
func (a *TableAliases) Alias(dt DbTable) (string, bool) {
	alias, ok := a.byTable[dt]
	return alias, ok
}

// Get returns the (db, table) registered for alias, if any.
func (a *TableAliases) Get(alias string) (DbTable, bool) {
	dt, ok := a.byAlias[alias]
	return dt, ok
}

// SelectListAliases maps a SELECT-list alias to the ValueExpr it names, and
// supports "alias-by-subset" lookup for patching ORDER BY/GROUP BY/HAVING
// column references back onto a SELECT-list alias.
type SelectListAliases struct {
	byAlias map[string]query.ValueExpr
	order   []string // insertion order, for deterministic subset scans
}

// NewSelectListAliases returns an empty SelectListAliases.
func NewSelectListAliases() *SelectListAliases {
	return &SelectListAliases{byAlias: map[string]query.ValueExpr{}}
}

// Set registers alias -> expr. Returns false without modifying the map if
// alias is already registered.
func (s *SelectListAliases) Set(alias string, expr query.ValueExpr) bool {
	if _, ok := s.byAlias[alias]; ok {
		return false
	}
	s.byAlias[alias] = expr
	s.order = append(s.order, alias)
	return true
}

// Get returns the expression registered under alias.
func (s *SelectListAliases) Get(alias string) (query.ValueExpr, bool) {
	v, ok := s.byAlias[alias]
	return v, ok
}

// AliasBySubset returns the first alias, in insertion order, whose
// single-factor ValueExpr is a column reference c' such that
// c.IsSubsetOf(c'). An exact match (c equals c') is preferred over a
// looser subset match: the first pass only considers exact matches, and
// only if none is found does a second pass accept any subset match.
func (s *SelectListAliases) AliasBySubset(c query.ColumnRef) (string, bool) {
	for _, alias := range s.order {
		expr := s.byAlias[alias]
		cr, ok := expr.IsColumnRef()
		if !ok {
			continue
		}
		if cr.Equal(c) {
			return alias, true
		}
	}
	for _, alias := range s.order {
		expr := s.byAlias[alias]
		cr, ok := expr.IsColumnRef()
		if !ok {
			continue
		}
		if c.IsSubsetOf(cr) {
			return alias, true
		}
	}
	return "", false
}
