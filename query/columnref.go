package query

// ColumnRefID is a stable handle into an Arena. The zero value denotes "no
// reference".
type ColumnRefID int

// ColumnRef is a (tableRef, column) pair. ResolvedTable is a lookup
// relation into a TableRef owned by the statement's FROM list -- it does
// not own that TableRef. No plan plugin sets it: TablePlugin resolves a
// reference by rewriting its Table/Db to the FROM-table alias (WithTable)
// instead. Db/Table carry the literal (possibly empty) name
// components as written in the original SQL, used for subset-of matching
// before resolution happens.
type ColumnRef struct {
	ID            ColumnRefID
	Db            Identifier
	Table         Identifier
	Column        Identifier
	ResolvedTable TableRefID
}

// IsSubsetOf reports whether c is a subset of other: every field c has set
// (column always, then table, then db, in that significance order) equals
// the corresponding field of other. A ColumnRef with only Column set is a
// subset of any ColumnRef carrying the same Column, regardless of what
// Table/Db that other reference carries.
func (c ColumnRef) IsSubsetOf(other ColumnRef) bool {
	if c.Column.IsEmpty() || !c.Column.Equal(other.Column) {
		return false
	}
	if c.Table.IsEmpty() {
		return true
	}
	if !c.Table.Equal(other.Table) {
		return false
	}
	if c.Db.IsEmpty() {
		return true
	}
	return c.Db.Equal(other.Db)
}

// Equal is structural equality of all three name fields; ID and
// ResolvedTable are not compared.
func (c ColumnRef) Equal(other ColumnRef) bool {
	return c.Db.Equal(other.Db) && c.Table.Equal(other.Table) && c.Column.Equal(other.Column)
}

// Render renders "db.table.column" using whichever of db/table are set.
func (c ColumnRef) Render(mode RenderMode) string {
	return JoinDotted(mode, c.Db, c.Table, c.Column)
}

// WithTable returns a copy of c with Table/Db replaced by alias, used by
// TablePlugin when it patches a ColumnRef to point at a FROM-table alias.
func (c ColumnRef) WithTable(alias Identifier) ColumnRef {
	c.Db = Identifier{}
	c.Table = alias
	return c
}
