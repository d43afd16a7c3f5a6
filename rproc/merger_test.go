package rproc

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/provingground-moe/qserv-sub000/qdisp"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(discardW{})
	return logrus.NewEntry(l)
}

type discardW struct{}

func (discardW) Write(p []byte) (int, error) { return len(p), nil }

func newTestTableManager() *TableManager {
	return &TableManager{mergeTable: "result.result_1", targetTable: "result.final", jobIDCol: "jobId"}
}

func TestMergerDiscardsInvalidatedAttempt(t *testing.T) {
	var loaded []qdisp.JobIdAttempt
	var mu sync.Mutex
	load := func(col string, jia qdisp.JobIdAttempt, resp *qdisp.ResponsePayload) error {
		mu.Lock()
		loaded = append(loaded, jia)
		mu.Unlock()
		return nil
	}
	m := NewMerger(newTestTableManager(), Config{MaxResultTableSizeMB: 1000, CheckSizeEveryXRows: 1000000},
		load, func() (int64, error) { return 0, nil }, func(string, []qdisp.JobIdAttempt) error { return nil }, testLogger())

	jia, _ := qdisp.MakeJobIdAttempt(1, 0)
	m.PrepScrub(jia)

	if err := m.Merge(1, &qdisp.ResponsePayload{AttemptCount: 0, RowCount: 10}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected invalidated attempt's rows to be discarded, loadFn was called %d times", len(loaded))
	}
}

func TestMergerLoadsValidAttempt(t *testing.T) {
	var loaded []qdisp.JobIdAttempt
	load := func(col string, jia qdisp.JobIdAttempt, resp *qdisp.ResponsePayload) error {
		loaded = append(loaded, jia)
		return nil
	}
	m := NewMerger(newTestTableManager(), Config{MaxResultTableSizeMB: 1000, CheckSizeEveryXRows: 1000000},
		load, func() (int64, error) { return 0, nil }, func(string, []qdisp.JobIdAttempt) error { return nil }, testLogger())

	if err := m.Merge(1, &qdisp.ResponsePayload{AttemptCount: 0, RowCount: 10}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 load, got %d", len(loaded))
	}
}

func TestMergerFailsQueryWhenStillOverSizeAfterReclaim(t *testing.T) {
	load := func(col string, jia qdisp.JobIdAttempt, resp *qdisp.ResponsePayload) error { return nil }
	m := NewMerger(newTestTableManager(), Config{MaxResultTableSizeMB: 10, CheckSizeEveryXRows: 1},
		load, func() (int64, error) { return 9999, nil }, func(string, []qdisp.JobIdAttempt) error { return nil }, testLogger())

	err := m.Merge(1, &qdisp.ResponsePayload{AttemptCount: 0, RowCount: 5})
	if err == nil {
		t.Fatalf("expected a result-too-large failure")
	}
	if err2 := m.Err(); err2 == nil {
		t.Fatalf("expected Err() to surface the fatal error on subsequent calls")
	}
}

func TestHoldMergingForRowDeleteWaitsForConcurrentMerges(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	load := func(col string, jia qdisp.JobIdAttempt, resp *qdisp.ResponsePayload) error {
		close(started)
		<-release
		return nil
	}
	var deletedIDs []qdisp.JobIdAttempt
	deleteBatch := func(col string, ids []qdisp.JobIdAttempt) error {
		deletedIDs = append(deletedIDs, ids...)
		return nil
	}
	m := NewMerger(newTestTableManager(), Config{MaxResultTableSizeMB: 1000, CheckSizeEveryXRows: 1000000},
		load, func() (int64, error) { return 0, nil }, deleteBatch, testLogger())

	jia, _ := qdisp.MakeJobIdAttempt(5, 0)

	go func() {
		m.Merge(5, &qdisp.ResponsePayload{AttemptCount: 0, RowCount: 1})
	}()
	<-started
	m.PrepScrub(jia)

	done := make(chan struct{})
	go func() {
		if err := m.HoldMergingForRowDelete(); err != nil {
			t.Errorf("HoldMergingForRowDelete: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("HoldMergingForRowDelete returned before the in-flight merge completed")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for HoldMergingForRowDelete")
	}

	if len(deletedIDs) != 1 || deletedIDs[0] != jia {
		t.Fatalf("deletedIDs = %v, want [%v]", deletedIDs, jia)
	}
}

func TestMergerFinalizeFlushesPendingInvalidation(t *testing.T) {
	load := func(col string, jia qdisp.JobIdAttempt, resp *qdisp.ResponsePayload) error { return nil }
	var deletedIDs []qdisp.JobIdAttempt
	deleteBatch := func(col string, ids []qdisp.JobIdAttempt) error {
		deletedIDs = append(deletedIDs, ids...)
		return nil
	}
	table := &TableManager{mergeTable: "result.result_1", jobIDCol: "jobId"}
	m := NewMerger(table, Config{MaxResultTableSizeMB: 1000, CheckSizeEveryXRows: 1000000},
		load, func() (int64, error) { return 0, nil }, deleteBatch, testLogger())

	jia, _ := qdisp.MakeJobIdAttempt(7, 0)
	if err := m.Merge(7, &qdisp.ResponsePayload{AttemptCount: 0, RowCount: 3}); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	// A retry invalidates the attempt that already wrote rows, same as
	// Executive.fail does before redispatching.
	m.PrepScrub(jia)

	if err := m.Finalize("SELECT * FROM result.result_1", false); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(deletedIDs) != 1 || deletedIDs[0] != jia {
		t.Fatalf("Finalize did not flush the pending invalidation: deletedIDs = %v, want [%v]", deletedIDs, jia)
	}
}

func TestBatchJobIdAttemptsRespectsByteLimit(t *testing.T) {
	ids := make([]qdisp.JobIdAttempt, 0, 100)
	for i := 0; i < 100; i++ {
		ids = append(ids, qdisp.JobIdAttempt(i))
	}
	batches := batchJobIdAttempts(ids, 50)
	if len(batches) < 2 {
		t.Fatalf("expected multiple batches under a tight byte limit, got %d", len(batches))
	}
	var total int
	for _, b := range batches {
		total += len(b)
	}
	if total != len(ids) {
		t.Fatalf("batching dropped ids: got %d total, want %d", total, len(ids))
	}
}
