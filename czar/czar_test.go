package czar

import (
	"context"
	"testing"

	"github.com/provingground-moe/qserv-sub000/css"
	"github.com/provingground-moe/qserv-sub000/qana"
	"github.com/provingground-moe/qserv-sub000/qcontext"
	"github.com/provingground-moe/qserv-sub000/qproc"
)

func TestStatusStrings(t *testing.T) {
	cases := map[Status]string{
		StatusCreated:   "CREATED",
		StatusExecuting: "EXECUTING",
		StatusSuccess:   "SUCCESS",
		StatusError:     "ERROR",
		StatusCancelled: "CANCELLED",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Fatalf("Status(%d).String() = %q, want %q", s, got, want)
		}
	}
}

func TestSessionRegistryAssignsMonotonicIDs(t *testing.T) {
	r := newSessionRegistry()
	uq1 := &UserQuery{}
	uq2 := &UserQuery{}

	id1 := r.register(uq1)
	id2 := r.register(uq2)
	if id2 <= id1 {
		t.Fatalf("session ids not monotonic: %d then %d", id1, id2)
	}
	if got, ok := r.get(id1); !ok || got != uq1 {
		t.Fatalf("get(%d) did not return the registered session", id1)
	}
	r.forget(id1)
	if _, ok := r.get(id1); ok {
		t.Fatalf("forget(%d) did not remove the session", id1)
	}
}

func TestAggregatedMergeDetectsAggregates(t *testing.T) {
	cases := map[string]bool{
		"SELECT SUM(QS1_SUM)/SUM(QS1_COUNT) AS m FROM result_1": true,
		"SELECT objectId, ra, decl FROM result_1":               false,
		"SELECT objectId FROM result_1 GROUP BY objectId":       true,
	}
	for sql, want := range cases {
		if got := aggregatedMerge(sql); got != want {
			t.Fatalf("aggregatedMerge(%q) = %v, want %v", sql, got, want)
		}
	}
}

func TestResolveDispatchListPrunesEmptyChunks(t *testing.T) {
	client := css.NewStaticClient()
	client.AddPartitionedTable("LSST", "Object",
		css.DirectorInfo{Table: "Object", KeyColumn: "objectId", ChunkColumn: "chunkId"},
		map[int32]string{1: "worker1", 2: "worker2", 3: "worker1"})
	client.Empty["LSST"] = map[int32]bool{2: true}

	c := &Czar{css: client}
	uq := &UserQuery{
		czar: c,
		plan: &qana.Plan{Mapping: qproc.QueryMapping{Tables: []qproc.TableSubst{{Db: "LSST", Table: "Object"}}}},
		qc:   qcontext.NewContext("LSST"),
	}

	chunks, _, err := uq.resolveDispatchList(context.Background())
	if err != nil {
		t.Fatalf("resolveDispatchList: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 non-empty chunks, got %v", chunks)
	}
	for _, c := range chunks {
		if c == 2 {
			t.Fatalf("empty chunk 2 should have been pruned, got %v", chunks)
		}
	}
}

func TestResolveDispatchListUnpartitionedQueryIsSingleChunk(t *testing.T) {
	uq := &UserQuery{
		czar: &Czar{css: css.NewStaticClient()},
		plan: &qana.Plan{},
		qc:   qcontext.NewContext("LSST"),
	}
	chunks, _, err := uq.resolveDispatchList(context.Background())
	if err != nil {
		t.Fatalf("resolveDispatchList: %v", err)
	}
	if len(chunks) != 1 || chunks[0] != 0 {
		t.Fatalf("expected [0], got %v", chunks)
	}
}
