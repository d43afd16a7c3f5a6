package qcontext

import (
	"strconv"

	"github.com/provingground-moe/qserv-sub000/query"
	"github.com/provingground-moe/qserv-sub000/qproc"
)

// Context is the per-query mutable planning state threaded through the
// plan plugins (§3 QueryContext).
type Context struct {
	DefaultDb  string
	DominantDb string

	// ResolverTables is the list of tables a bare column reference may
	// resolve against -- populated from the FROM clause by TablePlugin's
	// logical phase.
	ResolverTables []query.TableRefID

	TableAliases      *TableAliases
	SelectListAliases *SelectListAliases

	Restrictors []query.Restrictor

	// ChunkMapping is not written by the plan plugins: TablePlugin's
	// physical phase records the chunk substitution rules in Plan.Mapping.
	ChunkMapping qproc.QueryMapping

	// PartitionedTables is populated ahead of planning (from css) with
	// every db.table name that is partitioned -- TablePlugin's physical
	// phase consults it to decide which FROM tables need chunk
	// substitution.
	PartitionedTables map[string]bool

	// SecondaryIndexColumn maps "db.table" to the name of that director
	// table's secondary-indexed column (populated ahead of planning from
	// css), consulted by WhereRestrictorPlugin to recognize which IN-list
	// predicates it may turn into a chunk-pruning restrictor.
	SecondaryIndexColumn map[string]string

	// ProxyOrderBy is the ORDER BY clause text OrderByPlugin strips out of
	// the parallel/merge templates, to be re-applied by the front end once
	// it has the fully merged result set in hand.
	ProxyOrderBy string

	// syntheticAliasSeq feeds AggregatePlugin's QSn_<op> naming.
	syntheticAliasSeq int
}

// NewContext returns an empty Context for defaultDb.
func NewContext(defaultDb string) *Context {
	return &Context{
		DefaultDb:            defaultDb,
		TableAliases:         NewTableAliases(),
		SelectListAliases:    NewSelectListAliases(),
		PartitionedTables:    map[string]bool{},
		SecondaryIndexColumn: map[string]string{},
	}
}

// NextSyntheticAlias returns the next globally-unique QS<N>_<op> alias
// name for op (e.g. "QS1_COUNT"), used by AggregatePlugin.
func (c *Context) NextSyntheticAlias(op string) string {
	c.syntheticAliasSeq++
	return "QS" + strconv.Itoa(c.syntheticAliasSeq) + "_" + op
}
