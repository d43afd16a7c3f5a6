package qproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderSubstitutesChunkAndAliasIsUntouched(t *testing.T) {
	tmpl := "SELECT COUNT(*) AS QS1_COUNT FROM LSST.Source AS `LSST.Source` WHERE `LSST.Source`.objectId IN (386950783579546,386942193651348)"
	mapping := QueryMapping{}
	mapping.AddTable("LSST", "Source", false)

	b := NewBuilder(tmpl, mapping, "LSST")
	specs := b.Build([]int32{100})

	require.Len(t, specs, 1)
	require.Len(t, specs[0].Queries, 1)
	q := specs[0].Queries[0]
	assert.Contains(t, q, "FROM LSST.Source_100 AS `LSST.Source`")
	assert.Contains(t, q, "WHERE `LSST.Source`.objectId")
}

func TestBuilderDedupesAndSortsChunks(t *testing.T) {
	b := NewBuilder("SELECT 1", QueryMapping{}, "LSST")
	specs := b.Build([]int32{3, 1, 3, 2})
	require.Len(t, specs, 3)
	assert.Equal(t, []int32{1, 2, 3}, []int32{specs[0].Chunk, specs[1].Chunk, specs[2].Chunk})
}

func TestBuilderOverlapEmitsSecondQuery(t *testing.T) {
	tmpl := "SELECT * FROM LSST.Object AS o, LSST.Object AS s WHERE o.x = s.x"
	mapping := QueryMapping{}
	mapping.AddTable("LSST", "Object", true)

	b := NewBuilder(tmpl, mapping, "LSST")
	specs := b.Build([]int32{5})

	require.Len(t, specs, 1)
	assert.Len(t, specs[0].Queries, 2)
	assert.Contains(t, specs[0].Queries[1], "LSST.Object_5FullOverlap")
}

func TestBuilderSubChunkExpansion(t *testing.T) {
	tmpl := "SELECT * FROM LSST.Object_{subChunk}"
	b := NewBuilder(tmpl, QueryMapping{}, "LSST")
	specs := b.BuildWithSubChunks([]int32{7}, map[int32][]int32{7: {1, 2}})
	require.Len(t, specs, 1)
	assert.Equal(t, []int32{1, 2}, specs[0].SubChunks)
	assert.Len(t, specs[0].Queries, 2)
}
