// Package qproc builds, from a planner-produced parallel template and a
// set of chunk (or chunk x sub-chunk) ids, the concrete per-chunk SQL
// strings a worker is asked to execute (§4.E).
package qproc

// TableSubst is one partitioned-table substitution rule: every literal
// occurrence of Db.Table in a template is replaced by Db.Table_<chunk>,
// and -- when NeedsOverlap is set -- the template is additionally emitted
// against the Db.Table_<chunk>FullOverlap shadow table.
type TableSubst struct {
	Db           string
	Table        string
	NeedsOverlap bool
}

// QueryMapping lists the partitioned tables a template references, with
// their per-chunk substitution rules, and whether sub-chunk expansion is
// required; produced by TablePlugin's physical phase and consumed by the
// chunk query spec Builder. It holds no placeholder tokens: the Builder
// expands {chunk}/{subChunk} found in the template text itself, and no
// {overlap} token is recognized.
type QueryMapping struct {
	Tables          []TableSubst
	RequiresSubChunk bool
}

// AddTable registers db.table as a partitioned table referenced by the
// template, requiring chunk substitution (and, if needsOverlap, an
// overlap-table copy of the template).
func (m *QueryMapping) AddTable(db, table string, needsOverlap bool) {
	for i := range m.Tables {
		if m.Tables[i].Db == db && m.Tables[i].Table == table {
			m.Tables[i].NeedsOverlap = m.Tables[i].NeedsOverlap || needsOverlap
			return
		}
	}
	m.Tables = append(m.Tables, TableSubst{Db: db, Table: table, NeedsOverlap: needsOverlap})
}
