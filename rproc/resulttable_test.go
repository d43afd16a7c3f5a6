package rproc

import (
	"strings"
	"testing"

	"github.com/dolthub/vitess/go/sqltypes"

	"github.com/provingground-moe/qserv-sub000/qdisp"
)

func TestChooseJobIDColumnAvoidsCollision(t *testing.T) {
	cols := []qdisp.ColumnDescriptor{{Name: "objectId", Type: sqltypes.Int64}, {Name: "jobId", Type: sqltypes.Int64}}
	got := chooseJobIDColumn(cols)
	if got != "jobId0" {
		t.Fatalf("chooseJobIDColumn = %q, want \"jobId0\"", got)
	}
}

func TestChooseJobIDColumnDefaultsWhenNoCollision(t *testing.T) {
	cols := []qdisp.ColumnDescriptor{{Name: "objectId", Type: sqltypes.Int64}}
	got := chooseJobIDColumn(cols)
	if got != "jobId" {
		t.Fatalf("chooseJobIDColumn = %q, want \"jobId\"", got)
	}
}

func TestNewTableManagerNamesMergeTableBySession(t *testing.T) {
	m := NewTableManager(nil, "qservResult", 42, "qservResult.final")
	if !strings.HasPrefix(m.MergeTable(), "qservResult.result_42_") {
		t.Fatalf("MergeTable() = %q, want prefix \"qservResult.result_42_\"", m.MergeTable())
	}
}

func TestNewTableManagerSuffixIsCollisionResistant(t *testing.T) {
	m1 := NewTableManager(nil, "qservResult", 1, "")
	m2 := NewTableManager(nil, "qservResult", 1, "")
	if m1.MergeTable() == m2.MergeTable() {
		t.Fatalf("two managers for the same sessionId got identical merge table names: %q", m1.MergeTable())
	}
}
