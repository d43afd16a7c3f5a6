package qana

import (
	"github.com/provingground-moe/qserv-sub000/qcontext"
	"github.com/provingground-moe/qserv-sub000/query"
)

// Planner drives the fixed plugin sequence over one parsed statement.
type Planner struct {
	Plugins []Plugin
}

// NewPlanner returns a Planner running DefaultPlugins in order.
func NewPlanner() *Planner {
	return &Planner{Plugins: DefaultPlugins()}
}

// Plan runs every plugin's logical phase over independent parallel/merge
// clones of stmt, renders both to text, then runs every plugin's physical
// phase over the resulting Plan.
func (p *Planner) Plan(stmt *query.SelectStmt, qc *qcontext.Context) (*Plan, error) {
	parallel := stmt.Clone()
	merge := stmt.Clone()

	for _, plugin := range p.Plugins {
		if err := plugin.Logical(parallel, merge, qc); err != nil {
			return nil, err
		}
	}

	plan := &Plan{
		DominantDb: qc.DominantDb,
	}

	preFlight := parallel.Clone()
	preFlight.Limit = 0
	plan.PreFlight = query.Render(preFlight)
	plan.Parallel = []string{query.Render(parallel)}
	plan.Merge = query.Render(merge)

	for _, plugin := range p.Plugins {
		if err := plugin.Physical(plan, parallel, merge, qc); err != nil {
			return nil, err
		}
	}

	// Parallel/Merge are not re-rendered after the physical phases; the
	// text rendered above is final.
	return plan, nil
}
