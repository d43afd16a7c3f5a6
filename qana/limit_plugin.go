package qana

import (
	"github.com/provingground-moe/qserv-sub000/qcontext"
	"github.com/provingground-moe/qserv-sub000/query"
)

// LimitPlugin pushes LIMIT down to every worker so no chunk need return more
// rows than the query could ever need, EXCEPT when the query also groups:
// a worker-side LIMIT on a grouped query would cut off groups before they
// are known to be complete (a group's rows can be split across chunks), so
// in that case the limit is dropped from the parallel template and kept
// only on the merge template, applied once all partial groups are combined.
type LimitPlugin struct{ BasePlugin }

func (p *LimitPlugin) Name() string { return "LimitPlugin" }

func (p *LimitPlugin) Logical(parallel, merge *query.SelectStmt, qc *qcontext.Context) error {
	if merge.Limit < 0 {
		return nil
	}
	n := merge.Limit
	if n < 0 {
		n = 0
	}
	merge.Limit = n
	if len(merge.GroupBy) > 0 {
		parallel.Limit = -1
	} else {
		parallel.Limit = n
	}
	return nil
}
