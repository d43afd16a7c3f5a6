package qdisp

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/provingground-moe/qserv-sub000/qproc"
)

// scriptedConn answers SendRequest according to a per-worker script:
// "ok", or "err" to fail every send against it.
type scriptedConn struct {
	behavior string
}

func (c *scriptedConn) SendRequest(id uint64, payload []byte) (*ResponsePayload, error) {
	if c.behavior == "err" {
		return nil, fmt.Errorf("scripted failure")
	}
	return &ResponsePayload{JobID: int64(id), RowCount: 1}, nil
}

func (c *scriptedConn) Close() error { return nil }

func buildHeaderPayload(req *Request) (header, payload []byte, err error) {
	return []byte("h"), []byte(req.Query), nil
}

func TestExecutiveAllSucceed(t *testing.T) {
	dial := func(worker string) (Conn, error) { return &scriptedConn{behavior: "ok"}, nil }
	msgr := NewMessenger(dial, discardLogger())

	var mu sync.Mutex
	var results []int32
	onResult := func(req *Request, resp *ResponsePayload) error {
		mu.Lock()
		results = append(results, req.Chunk)
		mu.Unlock()
		return nil
	}

	exec := NewExecutive(1, msgr, buildHeaderPayload, onResult, nil, discardLogger())
	exec.Add("worker1", qproc.ChunkQuerySpec{Chunk: 1, Queries: []string{"SELECT 1"}})
	exec.Add("worker2", qproc.ChunkQuerySpec{Chunk: 2, Queries: []string{"SELECT 1"}})

	errs := waitWithTimeout(t, exec)
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestExecutiveOneWorkerErrorsOthersSucceed(t *testing.T) {
	dial := func(worker string) (Conn, error) {
		if worker == "bad" {
			return &scriptedConn{behavior: "err"}, nil
		}
		return &scriptedConn{behavior: "ok"}, nil
	}
	msgr := NewMessenger(dial, discardLogger())
	onResult := func(req *Request, resp *ResponsePayload) error { return nil }

	exec := NewExecutive(2, msgr, buildHeaderPayload, onResult, nil, discardLogger())
	exec.Add("good1", qproc.ChunkQuerySpec{Chunk: 1, Queries: []string{"SELECT 1"}})
	exec.Add("bad", qproc.ChunkQuerySpec{Chunk: 2, Queries: []string{"SELECT 1"}})
	exec.Add("good2", qproc.ChunkQuerySpec{Chunk: 3, Queries: []string{"SELECT 1"}})

	errs := waitWithTimeout(t, exec)
	if len(errs) != 1 {
		t.Fatalf("expected exactly 1 attributed error, got %d: %v", len(errs), errs)
	}
}

func TestExecutiveCancelFinishesOutstandingRequests(t *testing.T) {
	gate := make(chan struct{})
	dial := func(worker string) (Conn, error) { return &gatedConn{gate: gate}, nil }
	msgr := NewMessenger(dial, discardLogger())
	onResult := func(req *Request, resp *ResponsePayload) error { return nil }

	var mu sync.Mutex
	var invalidated []JobIdAttempt
	invalidate := func(jia JobIdAttempt) {
		mu.Lock()
		invalidated = append(invalidated, jia)
		mu.Unlock()
	}

	exec := NewExecutive(3, msgr, buildHeaderPayload, onResult, invalidate, discardLogger())
	exec.Add("w1", qproc.ChunkQuerySpec{Chunk: 1, Queries: []string{"SELECT 1"}})

	exec.mu.Lock()
	var req *Request
	for _, r := range exec.requests {
		req = r
	}
	exec.mu.Unlock()

	exec.Cancel()
	close(gate)

	select {
	case <-exec.doneCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cancellation to finish the job")
	}
	if req.State != StateFinished || req.Ext != ExtCancelled {
		t.Fatalf("request state = %s/%s, want FINISHED/CANCELLED", req.State, req.Ext)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(invalidated) != 1 {
		t.Fatalf("expected cancel to invalidate exactly 1 job-attempt, got %d", len(invalidated))
	}
}

// flakyConn fails its first N sends, then succeeds.
type flakyConn struct {
	mu        sync.Mutex
	failTimes int
	calls     int
}

func (c *flakyConn) SendRequest(id uint64, payload []byte) (*ResponsePayload, error) {
	c.mu.Lock()
	c.calls++
	n := c.calls
	c.mu.Unlock()
	if n <= c.failTimes {
		return nil, fmt.Errorf("flaky failure %d", n)
	}
	return &ResponsePayload{JobID: int64(id), RowCount: 1}, nil
}
func (c *flakyConn) Close() error { return nil }

func TestExecutiveRetryInvalidatesPreviousAttempt(t *testing.T) {
	// Messenger itself absorbs one transient failure per Send via its own
	// reconnect-once retry (messenger.go's run loop), so the conn must fail
	// twice in a row -- across Messenger's internal reconnect -- before the
	// failure surfaces to the Executive and triggers an Executive-level
	// retry. It must also survive being dialed more than once, so a single
	// shared instance (not a fresh one per dial call) is required.
	conn := &flakyConn{failTimes: 2}
	dial := func(worker string) (Conn, error) { return conn, nil }
	msgr := NewMessenger(dial, discardLogger())
	onResult := func(req *Request, resp *ResponsePayload) error { return nil }

	var mu sync.Mutex
	var invalidated []JobIdAttempt
	invalidate := func(jia JobIdAttempt) {
		mu.Lock()
		invalidated = append(invalidated, jia)
		mu.Unlock()
	}

	exec := NewExecutive(4, msgr, buildHeaderPayload, onResult, invalidate, discardLogger())
	exec.Add("w1", qproc.ChunkQuerySpec{Chunk: 1, Queries: []string{"SELECT 1"}})

	errs := waitWithTimeout(t, exec)
	if len(errs) != 0 {
		t.Fatalf("expected the retry to succeed with no attributed errors, got %v", errs)
	}

	wantJia, _ := MakeJobIdAttempt(4, 0)
	mu.Lock()
	defer mu.Unlock()
	if len(invalidated) != 1 || invalidated[0] != wantJia {
		t.Fatalf("invalidated = %v, want exactly [%v] (the superseded first attempt)", invalidated, wantJia)
	}
}

type gatedConn struct{ gate chan struct{} }

func (g *gatedConn) SendRequest(id uint64, payload []byte) (*ResponsePayload, error) {
	<-g.gate
	return &ResponsePayload{JobID: int64(id)}, nil
}
func (g *gatedConn) Close() error { return nil }

func waitWithTimeout(t *testing.T, exec *Executive) []error {
	t.Helper()
	done := make(chan []error, 1)
	go func() { done <- exec.Wait() }()
	select {
	case errs := <-done:
		return errs
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for executive to finish")
		return nil
	}
}
