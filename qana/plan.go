// Package qana implements the plan plugins of §4.D: an ordered sequence
// of rewrite passes that turn a parsed SelectStmt into a Plan carrying the
// worker-side parallel template(s) and the czar-side merge template.
package qana

import (
	"github.com/provingground-moe/qserv-sub000/qcontext"
	"github.com/provingground-moe/qserv-sub000/qproc"
	"github.com/provingground-moe/qserv-sub000/query"
)

// Plan is the planner's physical-phase output: the pre-flight template,
// the list of parallel (worker-executed) templates, the merge
// (czar-executed) template, the chunk substitution mapping, the dominant
// database, and the proxy ORDER BY string applied by the front end after
// merge.
type Plan struct {
	PreFlight    string
	Parallel     []string
	Merge        string
	Mapping      qproc.QueryMapping
	DominantDb   string
	ProxyOrderBy string
}

// Plugin is one rewrite pass. Logical operates on the parallel and merge
// statements (independent clones of the parsed input) before chunk
// materialization; Physical operates on the Plan once both have been
// rendered to text. Plugins that do not need one of the phases embed
// BasePlugin to get a no-op default.
type Plugin interface {
	Name() string
	Logical(parallel, merge *query.SelectStmt, qc *qcontext.Context) error
	Physical(plan *Plan, parallel, merge *query.SelectStmt, qc *qcontext.Context) error
}

// BasePlugin supplies no-op Logical/Physical implementations; plugins
// embed it and override only the phase they need.
type BasePlugin struct{}

func (BasePlugin) Logical(*query.SelectStmt, *query.SelectStmt, *qcontext.Context) error {
	return nil
}
func (BasePlugin) Physical(*Plan, *query.SelectStmt, *query.SelectStmt, *qcontext.Context) error {
	return nil
}

// DefaultPlugins returns the minimum required plugin sequence of §4.D, in
// the fixed order the spec mandates.
func DefaultPlugins() []Plugin {
	return []Plugin{
		&DuplSelectExprPlugin{},
		&TablePlugin{},
		&AggregatePlugin{},
		&GroupByPlugin{},
		&OrderByPlugin{},
		&LimitPlugin{},
		&WhereRestrictorPlugin{},
	}
}
