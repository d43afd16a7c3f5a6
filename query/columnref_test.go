package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func col(db, table, column string) ColumnRef {
	return ColumnRef{Db: NewIdentifier(db), Table: NewIdentifier(table), Column: NewIdentifier(column)}
}

func TestColumnRefIsSubsetOf(t *testing.T) {
	bare := col("", "", "objectId")
	full := col("db", "T", "objectId")

	assert.True(t, bare.IsSubsetOf(full))
	assert.False(t, full.IsSubsetOf(bare))
}

func TestColumnRefIsSubsetOfTableMismatch(t *testing.T) {
	a := col("", "T1", "objectId")
	b := col("", "T2", "objectId")
	assert.False(t, a.IsSubsetOf(b))
}

func TestColumnRefIsSubsetOfRequiresColumn(t *testing.T) {
	empty := ColumnRef{}
	full := col("db", "T", "objectId")
	assert.False(t, empty.IsSubsetOf(full))
}

func TestColumnRefIsSubsetOfSameColumnDifferentDb(t *testing.T) {
	a := col("db1", "T", "objectId")
	b := col("db2", "T", "objectId")
	assert.False(t, a.IsSubsetOf(b))
}
