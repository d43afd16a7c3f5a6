package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provingground-moe/qserv-sub000/query"
)

func TestParseSimpleSelect(t *testing.T) {
	stmt, err := Parse("SELECT objectId FROM LSST.Object WHERE objectId > 1")
	require.NoError(t, err)
	require.Len(t, stmt.From, 1)
	tbl := stmt.Arena.Table(stmt.From[0])
	assert.Equal(t, "LSST", tbl.Db.String())
	assert.Equal(t, "Object", tbl.Table.String())
	require.Len(t, stmt.SelectList, 1)

	bf, ok := stmt.Where.(query.BoolFactor)
	require.True(t, ok)
	assert.Equal(t, query.CmpGt, bf.Op)
}

func TestParseInPredicate(t *testing.T) {
	stmt, err := Parse("SELECT COUNT(*) AS N FROM Source WHERE objectId IN (386950783579546, 386942193651348)")
	require.NoError(t, err)
	bf, ok := stmt.Where.(query.BoolFactor)
	require.True(t, ok)
	assert.Equal(t, query.CmpIn, bf.Op)
	assert.Len(t, bf.Values, 2)
}

func TestParseAggregateDetected(t *testing.T) {
	stmt, err := Parse("SELECT chunkId, avg(bMagF2) bmf2 FROM LSST.Object WHERE bMagF > 20.0")
	require.NoError(t, err)
	assert.True(t, stmt.HasAggregates())
}

func TestParseSpatialRestrictorExtracted(t *testing.T) {
	stmt, err := Parse("SELECT * FROM Object WHERE QSERV_AREASPEC_BOX(0, 0, 1, 1) AND objectId > 1")
	require.NoError(t, err)
	require.Len(t, stmt.Restrictors, 1)
	assert.Equal(t, query.RestrictorBox, stmt.Restrictors[0].Kind)
	// the remaining predicate no longer carries the restrictor call.
	_, isFactor := stmt.Where.(query.BoolFactor)
	assert.True(t, isFactor)
}

func TestParseRejectsNonSelect(t *testing.T) {
	_, err := Parse("DELETE FROM Object WHERE objectId = 1")
	require.Error(t, err)
}

func TestParseRejectsCrossJoin(t *testing.T) {
	_, err := Parse("SELECT * FROM A CROSS JOIN B")
	require.Error(t, err)
}
