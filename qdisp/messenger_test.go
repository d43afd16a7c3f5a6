package qdisp

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// fakeConn records every SendRequest call against it and can be told to
// fail its next N sends, to exercise the reconnect path.
type fakeConn struct {
	mu       sync.Mutex
	failNext int
	order    *[]uint64
	closed   bool
}

func (c *fakeConn) SendRequest(id uint64, payload []byte) (*ResponsePayload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext > 0 {
		c.failNext--
		return nil, fmt.Errorf("fake socket error")
	}
	*c.order = append(*c.order, id)
	return &ResponsePayload{JobID: int64(id)}, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return logrus.NewEntry(l)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestMessengerOrdersSendsPerWorker(t *testing.T) {
	var order []uint64
	conn := &fakeConn{order: &order}
	dial := func(worker string) (Conn, error) { return conn, nil }
	m := NewMessenger(dial, discardLogger())

	var wg sync.WaitGroup
	for i := uint64(1); i <= 5; i++ {
		wg.Add(1)
		req := NewRequest(i, 1, 0, "worker1", "", nil)
		m.Send("worker1", req, []byte("payload"), func(resp *ResponsePayload, err error) {
			defer wg.Done()
			if err != nil {
				t.Errorf("unexpected send error: %v", err)
			}
		})
	}
	wg.Wait()

	if len(order) != 5 {
		t.Fatalf("got %d sends, want 5", len(order))
	}
	for i, id := range order {
		if id != uint64(i+1) {
			t.Fatalf("send order = %v, want strictly ascending 1..5", order)
		}
	}
}

func TestMessengerReconnectsOnceOnSocketBreak(t *testing.T) {
	var order []uint64
	var dialCount int
	var mu sync.Mutex
	dial := func(worker string) (Conn, error) {
		mu.Lock()
		dialCount++
		n := dialCount
		mu.Unlock()
		c := &fakeConn{order: &order}
		if n == 1 {
			c.failNext = 1
		}
		return c, nil
	}
	m := NewMessenger(dial, discardLogger())

	done := make(chan struct{})
	req := NewRequest(1, 1, 0, "worker1", "", nil)
	m.Send("worker1", req, []byte("payload"), func(resp *ResponsePayload, err error) {
		if err != nil {
			t.Errorf("expected success after one reconnect, got %v", err)
		}
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for response")
	}
	if dialCount < 2 {
		t.Fatalf("dialCount = %d, want at least 2 (initial connect + reconnect)", dialCount)
	}
}

func TestMessengerCancelSkipsUnsentRequest(t *testing.T) {
	var order []uint64
	conn := &fakeConn{order: &order}
	dial := func(worker string) (Conn, error) { return conn, nil }
	m := NewMessenger(dial, discardLogger())

	// Block the queue with one in-flight send via a conn that blocks, so
	// Cancel can race ahead of the dequeue for request 2.
	gate := make(chan struct{})
	blocker := &blockingConn{gate: gate, order: &order}
	blockDial := func(worker string) (Conn, error) { return blocker, nil }
	bm := NewMessenger(blockDial, discardLogger())

	req1 := NewRequest(1, 1, 0, "w", "", nil)
	bm.Send("w", req1, nil, func(*ResponsePayload, error) {})

	req2 := NewRequest(2, 1, 0, "w", "", nil)
	called := make(chan bool, 1)
	bm.Send("w", req2, nil, func(resp *ResponsePayload, err error) { called <- true })
	bm.Cancel("w", 2)
	close(gate)

	select {
	case <-called:
		t.Fatal("cancelled request's callback should not fire")
	case <-time.After(200 * time.Millisecond):
	}
	_ = m
}

type blockingConn struct {
	gate  chan struct{}
	order *[]uint64
}

func (b *blockingConn) SendRequest(id uint64, payload []byte) (*ResponsePayload, error) {
	<-b.gate
	*b.order = append(*b.order, id)
	return &ResponsePayload{JobID: int64(id)}, nil
}

func (b *blockingConn) Close() error { return nil }
