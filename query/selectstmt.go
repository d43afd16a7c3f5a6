package query

// OrderDir is ASC or DESC.
type OrderDir int

const (
	OrderAsc OrderDir = iota
	OrderDesc
)

// OrderTerm is one ORDER BY entry.
type OrderTerm struct {
	Expr ValueExpr
	Dir  OrderDir
}

// RestrictorKind tags the variant of a spatial/secondary-index restrictor
// extracted from the WHERE clause.
type RestrictorKind int

const (
	RestrictorBox RestrictorKind = iota
	RestrictorCircle
	RestrictorEllipse
	RestrictorPoly
	RestrictorHull
	RestrictorSecondaryIndex
)

// Restrictor is a chunk-pruning predicate recognized at parse time: one of
// Qserv's QSERV_AREASPEC_* spatial functions, or a secondary-index lookup
// (sIndex) synthesized by WhereRestrictorPlugin from an IN-list predicate
// over a director table's secondary-indexed column.
type Restrictor struct {
	Kind   RestrictorKind
	Db     string
	Table  string
	Column string
	Args   []string
}

// SelectStmt owns every clause of a single SELECT. FROM is a sequence of
// TableRef handles into the arena the statement was built in.
type SelectStmt struct {
	Arena       *Arena
	From        []TableRefID
	SelectList  []ValueExpr
	Where       BoolTerm
	GroupBy     []ValueExpr
	Having      BoolTerm
	OrderBy     []OrderTerm
	Limit       int // -1 means "no limit"
	Distinct    bool
	Restrictors []Restrictor
}

// NewSelectStmt returns an empty statement bound to arena.
func NewSelectStmt(arena *Arena) *SelectStmt {
	return &SelectStmt{Arena: arena, Limit: -1, Where: Unknown{}, Having: Unknown{}}
}

// HasWhere reports whether a (non-Unknown) WHERE clause is present.
func (s *SelectStmt) HasWhere() bool {
	_, unknown := s.Where.(Unknown)
	return !unknown
}

// HasHaving reports whether a (non-Unknown) HAVING clause is present.
func (s *SelectStmt) HasHaving() bool {
	_, unknown := s.Having.(Unknown)
	return !unknown
}

// HasAggregates reports whether any SELECT-list expression contains an
// aggregate function factor.
func (s *SelectStmt) HasAggregates() bool {
	for i := range s.SelectList {
		for _, f := range s.SelectList[i].Factors() {
			if f.Kind == FactorAggregateFunctionCall {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy of the statement, with its own arena, so that
// plan plugins may rewrite a parallel-template copy without perturbing the
// merge-template copy (or vice versa).
func (s *SelectStmt) Clone() *SelectStmt {
	out := &SelectStmt{
		Arena:    s.Arena.Clone(),
		From:     append([]TableRefID(nil), s.From...),
		Limit:    s.Limit,
		Distinct: s.Distinct,
	}
	out.SelectList = cloneExprs(s.SelectList)
	out.GroupBy = cloneExprs(s.GroupBy)
	out.Where = CloneTerm(s.Where)
	out.Having = CloneTerm(s.Having)
	out.OrderBy = make([]OrderTerm, len(s.OrderBy))
	for i, ot := range s.OrderBy {
		out.OrderBy[i] = OrderTerm{Expr: ot.Expr.Clone(), Dir: ot.Dir}
	}
	out.Restrictors = append([]Restrictor(nil), s.Restrictors...)
	return out
}

func cloneExprs(in []ValueExpr) []ValueExpr {
	out := make([]ValueExpr, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
