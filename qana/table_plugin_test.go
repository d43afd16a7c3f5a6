package qana

import (
	"testing"

	"github.com/provingground-moe/qserv-sub000/parser"
	"github.com/provingground-moe/qserv-sub000/qcontext"
	"github.com/provingground-moe/qserv-sub000/query"
)

func mustParse(t *testing.T, sql string) *query.SelectStmt {
	t.Helper()
	stmt, err := parser.Parse(sql)
	if err != nil {
		t.Fatalf("Parse(%q): %v", sql, err)
	}
	return stmt
}

func TestTablePluginSynthesizesAliasForUnaliasedTable(t *testing.T) {
	stmt := mustParse(t, "SELECT objectId FROM LSST.Object WHERE objectId > 1")
	qc := qcontext.NewContext("LSST")

	plugin := &TablePlugin{}
	if err := plugin.Logical(stmt, stmt.Clone(), qc); err != nil {
		t.Fatalf("Logical: %v", err)
	}

	ref := stmt.Arena.Table(stmt.From[0])
	if got, want := ref.Alias.Get(query.NoQuotes), "LSST.Object"; got != want {
		t.Fatalf("synthesized alias = %q, want %q", got, want)
	}

	col, ok := stmt.SelectList[0].IsColumnRef()
	if !ok {
		t.Fatalf("select-list expr is not a bare column ref")
	}
	if got, want := col.Table.String(), "LSST.Object"; got != want {
		t.Fatalf("select-list column patched to table %q, want %q", got, want)
	}

	bf, ok := stmt.Where.(query.BoolFactor)
	if !ok {
		t.Fatalf("WHERE is not a BoolFactor: %T", stmt.Where)
	}
	wcol, ok := bf.Left.IsColumnRef()
	if !ok || wcol.Table.String() != "LSST.Object" {
		t.Fatalf("WHERE column not patched to FROM alias: %+v", wcol)
	}
}

func TestTablePluginPreservesExplicitAlias(t *testing.T) {
	stmt := mustParse(t, "SELECT o.objectId FROM LSST.Object AS o WHERE o.objectId > 1")
	qc := qcontext.NewContext("LSST")

	plugin := &TablePlugin{}
	if err := plugin.Logical(stmt, stmt.Clone(), qc); err != nil {
		t.Fatalf("Logical: %v", err)
	}

	ref := stmt.Arena.Table(stmt.From[0])
	if got, want := ref.Alias.Get(query.NoQuotes), "o"; got != want {
		t.Fatalf("alias = %q, want %q (explicit alias must survive)", got, want)
	}
	col, _ := stmt.SelectList[0].IsColumnRef()
	if got, want := col.Table.String(), "o"; got != want {
		t.Fatalf("select column qualifier = %q, want %q", got, want)
	}
}

func TestTablePluginResolvesGroupByOutputAlias(t *testing.T) {
	stmt := mustParse(t, "SELECT COUNT(*) AS n FROM LSST.Object GROUP BY n")
	qc := qcontext.NewContext("LSST")

	plugin := &TablePlugin{}
	if err := plugin.Logical(stmt, stmt.Clone(), qc); err != nil {
		t.Fatalf("Logical: %v", err)
	}

	if len(stmt.GroupBy) != 1 {
		t.Fatalf("expected 1 GROUP BY expr, got %d", len(stmt.GroupBy))
	}
	if got, want := stmt.GroupBy[0].CompareString(), stmt.SelectList[0].CompareString(); got != want {
		t.Fatalf("GROUP BY n not resolved onto SELECT-list expr: got %q, want %q", got, want)
	}
}

func TestTablePluginPhysicalMarksPartitionedTable(t *testing.T) {
	stmt := mustParse(t, "SELECT objectId FROM LSST.Object")
	qc := qcontext.NewContext("LSST")
	qc.PartitionedTables["LSST.Object"] = true

	plugin := &TablePlugin{}
	if err := plugin.Logical(stmt, stmt.Clone(), qc); err != nil {
		t.Fatalf("Logical: %v", err)
	}
	plan := &Plan{}
	if err := plugin.Physical(plan, stmt, stmt, qc); err != nil {
		t.Fatalf("Physical: %v", err)
	}
	if len(plan.Mapping.Tables) != 1 {
		t.Fatalf("expected 1 chunk substitution entry, got %d", len(plan.Mapping.Tables))
	}
	if plan.Mapping.Tables[0].NeedsOverlap {
		t.Fatalf("single reference to a partitioned table should not need overlap")
	}
}

func TestTablePluginPhysicalDetectsSelfJoinOverlap(t *testing.T) {
	stmt := mustParse(t, "SELECT o1.objectId FROM LSST.Object AS o1 JOIN LSST.Object AS o2 ON o1.objectId = o2.objectId")
	qc := qcontext.NewContext("LSST")
	qc.PartitionedTables["LSST.Object"] = true

	plugin := &TablePlugin{}
	if err := plugin.Logical(stmt, stmt.Clone(), qc); err != nil {
		t.Fatalf("Logical: %v", err)
	}
	plan := &Plan{}
	if err := plugin.Physical(plan, stmt, stmt, qc); err != nil {
		t.Fatalf("Physical: %v", err)
	}
	if len(plan.Mapping.Tables) != 1 {
		t.Fatalf("expected self-join to collapse to 1 TableSubst entry, got %d", len(plan.Mapping.Tables))
	}
	if !plan.Mapping.Tables[0].NeedsOverlap {
		t.Fatalf("self-join on a partitioned table must require overlap")
	}
	if !plan.Mapping.RequiresSubChunk {
		t.Fatalf("self-join overlap should require sub-chunk decomposition")
	}
}
