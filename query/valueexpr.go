package query

import (
	"fmt"
	"strings"
)

// BinOp is the operator joining two consecutive ValueFactors in a
// ValueExpr's factor/op chain.
type BinOp int

const (
	OpNone BinOp = iota
	OpPlus
	OpMinus
	OpMul
	OpDiv
	OpMod
	OpBitAnd
	OpBitOr
	OpBitXor
)

func (op BinOp) String() string {
	switch op {
	case OpPlus:
		return "+"
	case OpMinus:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpBitAnd:
		return "&"
	case OpBitOr:
		return "|"
	case OpBitXor:
		return "^"
	default:
		return ""
	}
}

// FactorKind tags the variant carried by a ValueFactor.
type FactorKind int

const (
	FactorColumnRef FactorKind = iota
	FactorFunctionCall
	FactorAggregateFunctionCall
	FactorStar
	FactorConst
	FactorNestedValueExpr
)

// FunctionCall is a named function invocation with an ordered argument
// list. Distinct applies only when IsAggregate is set (e.g. COUNT(DISTINCT
// x)).
type FunctionCall struct {
	Name       string
	Args       []ValueExpr
	IsAggregate bool
	Distinct   bool
}

func (f *FunctionCall) String() string {
	args := make([]string, len(f.Args))
	for i := range f.Args {
		args[i] = f.Args[i].CompareString()
	}
	prefix := ""
	if f.IsAggregate && f.Distinct {
		prefix = "DISTINCT "
	}
	return fmt.Sprintf("%s(%s%s)", f.Name, prefix, strings.Join(args, ", "))
}

// ValueFactor is a tagged variant: exactly one of the typed fields is
// meaningful, selected by Kind.
type ValueFactor struct {
	Kind   FactorKind
	Column ColumnRef
	Func   *FunctionCall
	Const  string
	Nested *ValueExpr
}

func (f ValueFactor) String() string {
	switch f.Kind {
	case FactorColumnRef:
		return f.Column.Render(NoQuotes)
	case FactorFunctionCall, FactorAggregateFunctionCall:
		return f.Func.String()
	case FactorStar:
		return f.Column.Render(NoQuotes) + ".*"
	case FactorConst:
		return f.Const
	case FactorNestedValueExpr:
		return "(" + f.Nested.CompareString() + ")"
	default:
		return ""
	}
}

// Clone returns a deep copy of the factor.
func (f ValueFactor) Clone() ValueFactor {
	out := f
	if f.Func != nil {
		fc := *f.Func
		fc.Args = make([]ValueExpr, len(f.Func.Args))
		for i := range f.Func.Args {
			fc.Args[i] = f.Func.Args[i].Clone()
		}
		out.Func = &fc
	}
	if f.Nested != nil {
		n := f.Nested.Clone()
		out.Nested = &n
	}
	return out
}

// ValueExpr is an ordered sequence of (factor, operator) pairs describing
// "f1 op1 f2 op2 ...", with an optional alias.
type ValueExpr struct {
	factors  []ValueFactor
	ops      []BinOp
	alias    Identifier
	hasAlias bool
}

// NewValueExpr returns an empty expression (no factors yet).
func NewValueExpr() ValueExpr {
	return ValueExpr{}
}

// AppendFactor appends a factor. The first AppendFactor call need not be
// preceded by AppendOp; every subsequent one must be.
func (v *ValueExpr) AppendFactor(f ValueFactor) {
	v.factors = append(v.factors, f)
}

// AppendOp appends an operator joining the most recent factor to the next
// one. It is an error to call this before any factor has been appended.
func (v *ValueExpr) AppendOp(op BinOp) error {
	if len(v.factors) == 0 {
		return fmt.Errorf("query: AppendOp called before any factor was appended")
	}
	v.ops = append(v.ops, op)
	return nil
}

// Factors returns the factor sequence.
func (v *ValueExpr) Factors() []ValueFactor { return v.factors }

// SetFactor replaces the i'th factor in place, used by plan plugins that
// patch a single column reference (e.g. to a resolved table alias)
// without disturbing the rest of the expression chain.
func (v *ValueExpr) SetFactor(i int, f ValueFactor) {
	v.factors[i] = f
}

// ReplaceContent overwrites v's factor/op chain with other's, preserving
// v's own alias (if any) unless v carries none, in which case other's
// alias is adopted. Used by TablePlugin when a bare column reference
// resolves to a SELECT-list alias and the whole expression is swapped for
// the aliased one.
func (v *ValueExpr) ReplaceContent(other ValueExpr) {
	keepAlias, hadAlias := v.alias, v.hasAlias
	v.factors = other.factors
	v.ops = other.ops
	if hadAlias {
		v.alias, v.hasAlias = keepAlias, true
	} else {
		v.alias, v.hasAlias = other.alias, other.hasAlias
	}
}

// Ops returns the operator sequence (len(Ops) == len(Factors)-1 when well
// formed).
func (v *ValueExpr) Ops() []BinOp { return v.ops }

// SetAlias sets the expression's output alias.
func (v *ValueExpr) SetAlias(id Identifier) {
	v.alias = id
	v.hasAlias = true
}

// GetAlias returns the alias and whether one has been set.
func (v *ValueExpr) GetAlias() (Identifier, bool) {
	return v.alias, v.hasAlias
}

// IsColumnRef returns the single column reference this expression denotes,
// and true, only when it carries exactly one factor and that factor is a
// plain column reference. Otherwise it returns the zero value and false.
func (v *ValueExpr) IsColumnRef() (ColumnRef, bool) {
	if len(v.factors) == 1 && v.factors[0].Kind == FactorColumnRef {
		return v.factors[0].Column, true
	}
	return ColumnRef{}, false
}

// CompareValue performs a structural comparison of the factor/op chain,
// ignoring alias.
func (v *ValueExpr) CompareValue(other *ValueExpr) bool {
	if len(v.factors) != len(other.factors) || len(v.ops) != len(other.ops) {
		return false
	}
	for i := range v.factors {
		if v.factors[i].String() != other.factors[i].String() {
			return false
		}
	}
	for i := range v.ops {
		if v.ops[i] != other.ops[i] {
			return false
		}
	}
	return true
}

// CompareString renders the factor/op chain (no alias) for comparison and
// debugging purposes.
func (v *ValueExpr) CompareString() string {
	var b strings.Builder
	for i, f := range v.factors {
		if i > 0 {
			b.WriteString(" ")
			b.WriteString(v.ops[i-1].String())
			b.WriteString(" ")
		}
		b.WriteString(f.String())
	}
	return b.String()
}

// String renders the full expression including "AS alias" when present.
func (v *ValueExpr) String() string {
	s := v.CompareString()
	if v.hasAlias {
		return s + " AS " + v.alias.Get(NoQuotes)
	}
	return s
}

// Clone returns a deep copy of the expression.
func (v *ValueExpr) Clone() ValueExpr {
	out := ValueExpr{
		ops:      append([]BinOp(nil), v.ops...),
		alias:    v.alias,
		hasAlias: v.hasAlias,
	}
	out.factors = make([]ValueFactor, len(v.factors))
	for i := range v.factors {
		out.factors[i] = v.factors[i].Clone()
	}
	return out
}
