package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func passExpr(text string) ValueExpr {
	v := NewValueExpr()
	v.AppendFactor(ValueFactor{Kind: FactorConst, Const: text})
	return v
}

func TestReduceCollapsesSingleChildOr(t *testing.T) {
	inner := BoolFactor{Left: passExpr("a"), Op: CmpEq, Right: passExpr("1")}
	reduced := Reduce(OrTerm{Terms: []BoolTerm{inner}})
	assert.Equal(t, inner, reduced)
}

func TestReduceFlattensNestedAnd(t *testing.T) {
	a := BoolFactor{Left: passExpr("a"), Op: CmpEq, Right: passExpr("1")}
	b := BoolFactor{Left: passExpr("b"), Op: CmpEq, Right: passExpr("2")}
	c := BoolFactor{Left: passExpr("c"), Op: CmpEq, Right: passExpr("3")}

	nested := AndTerm{Terms: []BoolTerm{a, AndTerm{Terms: []BoolTerm{b, c}}}}
	reduced := Reduce(nested)

	flat, ok := reduced.(AndTerm)
	if assert.True(t, ok) {
		assert.Len(t, flat.Terms, 3)
	}
}

func TestUnknownRendersEmpty(t *testing.T) {
	assert.Equal(t, "", Unknown{}.String())
}
