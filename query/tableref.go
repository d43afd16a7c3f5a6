package query

// JoinType enumerates the join operators a TableRef's children may carry.
type JoinType int

const (
	JoinDefault JoinType = iota
	JoinInner
	JoinLeft
	JoinRight
	JoinNatural
)

// TableRefID is a stable handle into an Arena. The zero value
// denotes "no reference".
type TableRefID int

// JoinRef is a single joined-in table plus the join clause tying it to its
// left-hand sibling.
type JoinRef struct {
	Ref  TableRefID
	Type JoinType
	On   BoolTerm
}

// TableRef owns (db, table, alias) and an ordered sequence of JoinRef
// children. Invariant: if Db is set, Table must be set; Table must be set
// before planning completes; aliases, when present, are unique within a
// statement (enforced by qcontext.TableAliases, not here).
type TableRef struct {
	ID    TableRefID
	Db    Identifier
	Table Identifier
	Alias Identifier
	Joins []JoinRef
}

// HasAlias reports whether this reference carries an explicit alias.
func (t *TableRef) HasAlias() bool {
	return !t.Alias.IsEmpty()
}

// DbTable renders "db.table" (or just "table" if Db is unset).
func (t *TableRef) DbTable(mode RenderMode) string {
	return JoinDotted(mode, t.Db, t.Table)
}

// Arena owns every TableRef and ColumnRef created while building one
// statement's IR. Using integer handles instead of shared pointers removes
// the aliasing/cycle hazards of the source's pointer graph; cloning becomes a structural copy of the slices.
type Arena struct {
	tables  []TableRef
	columns []ColumnRef
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// NewTableRef allocates a TableRef in the arena and returns its handle.
func (a *Arena) NewTableRef(db, table, alias Identifier) TableRefID {
	id := TableRefID(len(a.tables) + 1)
	a.tables = append(a.tables, TableRef{ID: id, Db: db, Table: table, Alias: alias})
	return id
}

// Table dereferences a handle. The zero handle is invalid; callers must not
// pass it.
func (a *Arena) Table(id TableRefID) *TableRef {
	return &a.tables[id-1]
}

// Tables returns every TableRef owned by the arena, in allocation order.
func (a *Arena) Tables() []*TableRef {
	out := make([]*TableRef, len(a.tables))
	for i := range a.tables {
		out[i] = &a.tables[i]
	}
	return out
}

// NewColumnRef allocates a ColumnRef in the arena and returns its handle.
func (a *Arena) NewColumnRef(db, table, column Identifier) ColumnRefID {
	id := ColumnRefID(len(a.columns) + 1)
	a.columns = append(a.columns, ColumnRef{ID: id, Db: db, Table: table, Column: column})
	return id
}

// Column dereferences a handle.
func (a *Arena) Column(id ColumnRefID) *ColumnRef {
	return &a.columns[id-1]
}

// Clone returns a structural deep copy of the arena: no node is shared with
// the receiver, so mutating one plan's IR (e.g. a plugin patching aliases)
// never affects another.
func (a *Arena) Clone() *Arena {
	out := &Arena{
		tables:  make([]TableRef, len(a.tables)),
		columns: make([]ColumnRef, len(a.columns)),
	}
	copy(out.tables, a.tables)
	copy(out.columns, a.columns)
	for i := range out.tables {
		joins := make([]JoinRef, len(a.tables[i].Joins))
		for j, jr := range a.tables[i].Joins {
			jr.On = CloneTerm(jr.On)
			joins[j] = jr
		}
		out.tables[i].Joins = joins
	}
	return out
}
