package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueExprAppendOpBeforeFactorFails(t *testing.T) {
	v := NewValueExpr()
	err := v.AppendOp(OpPlus)
	require.Error(t, err)
}

func TestValueExprAppendFactorThenOp(t *testing.T) {
	v := NewValueExpr()
	v.AppendFactor(ValueFactor{Kind: FactorConst, Const: "1"})
	require.NoError(t, v.AppendOp(OpPlus))
	v.AppendFactor(ValueFactor{Kind: FactorConst, Const: "2"})
	assert.Equal(t, "1 + 2", v.CompareString())
}

func TestValueExprIsColumnRef(t *testing.T) {
	v := NewValueExpr()
	v.AppendFactor(ValueFactor{Kind: FactorColumnRef, Column: col("", "T", "x")})
	cr, ok := v.IsColumnRef()
	require.True(t, ok)
	assert.Equal(t, "x", cr.Column.String())

	v2 := NewValueExpr()
	v2.AppendFactor(ValueFactor{Kind: FactorColumnRef, Column: col("", "T", "x")})
	require.NoError(t, v2.AppendOp(OpPlus))
	v2.AppendFactor(ValueFactor{Kind: FactorConst, Const: "1"})
	_, ok = v2.IsColumnRef()
	assert.False(t, ok)
}

func TestValueExprCompareValueIgnoresAlias(t *testing.T) {
	a := NewValueExpr()
	a.AppendFactor(ValueFactor{Kind: FactorColumnRef, Column: col("", "T", "x")})
	a.SetAlias(NewIdentifier("a1"))

	b := NewValueExpr()
	b.AppendFactor(ValueFactor{Kind: FactorColumnRef, Column: col("", "T", "x")})

	assert.True(t, a.CompareValue(&b))
}

func TestValueExprCloneIsDeep(t *testing.T) {
	a := NewValueExpr()
	a.AppendFactor(ValueFactor{Kind: FactorColumnRef, Column: col("", "T", "x")})
	b := a.Clone()
	b.AppendFactor(ValueFactor{Kind: FactorConst, Const: "1"})
	assert.Equal(t, 1, len(a.Factors()))
	assert.Equal(t, 2, len(b.Factors()))
}
