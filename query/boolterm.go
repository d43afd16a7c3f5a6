package query

import "strings"

// CmpOp enumerates the comparison operators a BoolFactor may carry.
type CmpOp int

const (
	CmpEq CmpOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
	CmpLike
	CmpBetween
	CmpIn
)

// BoolTerm is the sum type of {OrTerm, AndTerm, BoolFactor, BoolTermFactor,
// PassTerm, PassListTerm, Unknown}. Every variant implements String for
// rendering into a worker/merge template.
type BoolTerm interface {
	boolTerm()
	String() string
}

// OrTerm is a disjunction of child terms.
type OrTerm struct{ Terms []BoolTerm }

func (OrTerm) boolTerm() {}
func (t OrTerm) String() string {
	return joinTerms(t.Terms, " OR ")
}

// AndTerm is a conjunction of child terms.
type AndTerm struct{ Terms []BoolTerm }

func (AndTerm) boolTerm() {}
func (t AndTerm) String() string {
	return joinTerms(t.Terms, " AND ")
}

// BoolFactor is a leaf comparison: Left <op> Right, or Left BETWEEN Min AND
// Max when Op == CmpBetween, or Left IN (Values...) when Op == CmpIn.
type BoolFactor struct {
	Left   ValueExpr
	Op     CmpOp
	Right  ValueExpr
	Min    ValueExpr
	Max    ValueExpr
	Values []ValueExpr
	Negate bool
}

func (BoolFactor) boolTerm() {}
func (f BoolFactor) String() string {
	not := ""
	if f.Negate {
		not = "NOT "
	}
	switch f.Op {
	case CmpBetween:
		return f.Left.CompareString() + " " + not + "BETWEEN " + f.Min.CompareString() + " AND " + f.Max.CompareString()
	case CmpIn:
		vals := make([]string, len(f.Values))
		for i := range f.Values {
			vals[i] = f.Values[i].CompareString()
		}
		return f.Left.CompareString() + " " + not + "IN (" + strings.Join(vals, ",") + ")"
	default:
		return not + f.Left.CompareString() + " " + cmpOpString(f.Op) + " " + f.Right.CompareString()
	}
}

func cmpOpString(op CmpOp) string {
	switch op {
	case CmpEq:
		return "="
	case CmpNe:
		return "!="
	case CmpLt:
		return "<"
	case CmpLe:
		return "<="
	case CmpGt:
		return ">"
	case CmpGe:
		return ">="
	case CmpLike:
		return "LIKE"
	default:
		return "="
	}
}

// BoolTermFactor wraps a nested BoolTerm in parentheses, e.g. the result of
// parsing "(a AND b)" used as a single factor of an outer OrTerm.
type BoolTermFactor struct{ Term BoolTerm }

func (BoolTermFactor) boolTerm() {}
func (f BoolTermFactor) String() string {
	return "(" + f.Term.String() + ")"
}

// PassTerm carries a raw SQL fragment the planner does not need to
// understand structurally (e.g. an opaque function predicate).
type PassTerm struct{ Text string }

func (PassTerm) boolTerm()        {}
func (t PassTerm) String() string { return t.Text }

// PassListTerm is a comma-joined list of raw fragments, used for predicate
// argument lists such as a spatial restrictor's coordinate arguments.
type PassListTerm struct{ Items []string }

func (PassListTerm) boolTerm() {}
func (t PassListTerm) String() string {
	return strings.Join(t.Items, ", ")
}

// RestrictorTerm wraps a spatial/secondary-index Restrictor recognized in
// the WHERE clause. It is extracted out of the BoolTerm tree by the
// parser/plugins before the remaining tree is used to build the parallel
// template (the restrictor itself prunes the chunk list rather than
// appearing as an ordinary predicate at the worker).
type RestrictorTerm struct{ R Restrictor }

func (RestrictorTerm) boolTerm() {}
func (t RestrictorTerm) String() string {
	parts := append([]string{t.R.Column}, t.R.Args...)
	return strings.Join(parts, ", ")
}

// Unknown is the zero-information term, used for a WHERE clause not
// present in the query (and for one left empty once its restrictors are
// extracted) — it renders to nothing and callers must special-case it when
// composing clauses.
type Unknown struct{}

func (Unknown) boolTerm()        {}
func (Unknown) String() string   { return "" }
func (t Unknown) IsUnknown() bool { return true }

func joinTerms(terms []BoolTerm, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, sep)
}

// Reduce collapses a single-child OrTerm/AndTerm to its child, and flattens
// nested terms of the same kind (associative flattening), recursively.
func Reduce(t BoolTerm) BoolTerm {
	switch v := t.(type) {
	case OrTerm:
		flat := flatten(v.Terms, func(bt BoolTerm) ([]BoolTerm, bool) {
			if o, ok := bt.(OrTerm); ok {
				return o.Terms, true
			}
			return nil, false
		})
		if len(flat) == 1 {
			return Reduce(flat[0])
		}
		for i := range flat {
			flat[i] = Reduce(flat[i])
		}
		return OrTerm{Terms: flat}
	case AndTerm:
		flat := flatten(v.Terms, func(bt BoolTerm) ([]BoolTerm, bool) {
			if a, ok := bt.(AndTerm); ok {
				return a.Terms, true
			}
			return nil, false
		})
		if len(flat) == 1 {
			return Reduce(flat[0])
		}
		for i := range flat {
			flat[i] = Reduce(flat[i])
		}
		return AndTerm{Terms: flat}
	case BoolTermFactor:
		return BoolTermFactor{Term: Reduce(v.Term)}
	default:
		return t
	}
}

// CloneTerm returns a deep copy of a BoolTerm tree: every ValueExpr it
// carries is cloned, so patching one statement's clause tree (e.g. to
// resolve column references to a table alias) never perturbs another
// statement that started from the same parsed tree.
func CloneTerm(t BoolTerm) BoolTerm {
	switch v := t.(type) {
	case OrTerm:
		out := make([]BoolTerm, len(v.Terms))
		for i := range v.Terms {
			out[i] = CloneTerm(v.Terms[i])
		}
		return OrTerm{Terms: out}
	case AndTerm:
		out := make([]BoolTerm, len(v.Terms))
		for i := range v.Terms {
			out[i] = CloneTerm(v.Terms[i])
		}
		return AndTerm{Terms: out}
	case BoolTermFactor:
		return BoolTermFactor{Term: CloneTerm(v.Term)}
	case BoolFactor:
		out := v
		out.Left = v.Left.Clone()
		out.Right = v.Right.Clone()
		out.Min = v.Min.Clone()
		out.Max = v.Max.Clone()
		out.Values = make([]ValueExpr, len(v.Values))
		for i := range v.Values {
			out.Values[i] = v.Values[i].Clone()
		}
		return out
	default:
		return t
	}
}

// MapValueExprs rebuilds t with every ValueExpr it carries passed through
// fn, e.g. to resolve bare column references onto a FROM-table alias.
// BoolFactor's Left/Right/Min/Max/Values are value fields, not pointers, so
// patching requires reconstructing the tree rather than mutating in place.
func MapValueExprs(t BoolTerm, fn func(ValueExpr) ValueExpr) BoolTerm {
	switch v := t.(type) {
	case OrTerm:
		out := make([]BoolTerm, len(v.Terms))
		for i := range v.Terms {
			out[i] = MapValueExprs(v.Terms[i], fn)
		}
		return OrTerm{Terms: out}
	case AndTerm:
		out := make([]BoolTerm, len(v.Terms))
		for i := range v.Terms {
			out[i] = MapValueExprs(v.Terms[i], fn)
		}
		return AndTerm{Terms: out}
	case BoolTermFactor:
		return BoolTermFactor{Term: MapValueExprs(v.Term, fn)}
	case BoolFactor:
		out := v
		out.Left = fn(v.Left)
		out.Right = fn(v.Right)
		out.Min = fn(v.Min)
		out.Max = fn(v.Max)
		out.Values = make([]ValueExpr, len(v.Values))
		for i := range v.Values {
			out.Values[i] = fn(v.Values[i])
		}
		return out
	default:
		return t
	}
}

func flatten(terms []BoolTerm, match func(BoolTerm) ([]BoolTerm, bool)) []BoolTerm {
	out := make([]BoolTerm, 0, len(terms))
	for _, t := range terms {
		if children, ok := match(t); ok {
			out = append(out, flatten(children, match)...)
			continue
		}
		out = append(out, t)
	}
	return out
}
