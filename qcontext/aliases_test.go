package qcontext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provingground-moe/qserv-sub000/query"
)

func TestTableAliasesRejectsDuplicate(t *testing.T) {
	a := NewTableAliases()
	require.True(t, a.Set("o", DbTable{Db: "LSST", Table: "Object"}))
	assert.False(t, a.Set("o", DbTable{Db: "LSST", Table: "Source"}))
}

func TestTableAliasesBidirectional(t *testing.T) {
	a := NewTableAliases()
	a.Set("o", DbTable{Db: "LSST", Table: "Object"})

	dt, ok := a.Get("o")
	require.True(t, ok)
	assert.Equal(t, "Object", dt.Table)

	alias, ok := a.Alias(DbTable{Db: "LSST", Table: "Object"})
	require.True(t, ok)
	assert.Equal(t, "o", alias)
}

func colRef(column string) query.ColumnRef {
	return query.ColumnRef{Column: query.NewIdentifier(column)}
}

func TestSelectListAliasesBySubsetPrefersExact(t *testing.T) {
	s := NewSelectListAliases()
	// Registered first, and a looser subset match for a bare chunkId, so
	// only the exact-match pass can pick "chunkId" over it.
	loose := query.NewValueExpr()
	loose.AppendFactor(query.ValueFactor{Kind: query.FactorColumnRef, Column: query.ColumnRef{Table: query.NewIdentifier("Object"), Column: query.NewIdentifier("chunkId")}})
	s.Set("objectChunkId", loose)
	exact := query.NewValueExpr()
	exact.AppendFactor(query.ValueFactor{Kind: query.FactorColumnRef, Column: colRef("chunkId")})
	s.Set("chunkId", exact)

	alias, ok := s.AliasBySubset(colRef("chunkId"))
	require.True(t, ok)
	assert.Equal(t, "chunkId", alias)
}

func TestSelectListAliasesRejectsDuplicate(t *testing.T) {
	s := NewSelectListAliases()
	v := query.NewValueExpr()
	v.AppendFactor(query.ValueFactor{Kind: query.FactorConst, Const: "1"})
	require.True(t, s.Set("a", v))
	assert.False(t, s.Set("a", v))
}
