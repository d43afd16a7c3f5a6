package qdisp

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Conn is one physical connection to a worker: a synchronous,
// request/response round trip correlated by requestID. Real
// implementations dial the worker's listen socket; tests substitute a
// fake.
type Conn interface {
	SendRequest(requestID uint64, payload []byte) (*ResponsePayload, error)
	Close() error
}

// Dialer opens a fresh Conn to worker.
type Dialer func(worker string) (Conn, error)

// pendingSend is one queued Messenger.Send call awaiting its worker's
// connection to become available.
type pendingSend struct {
	req        *Request
	payload    []byte
	onResponse func(*ResponsePayload, error)
}

// workerQueue serializes every send to one worker through a single
// goroutine, satisfying §4.F's "messages on a single socket are strictly
// ordered" and "at most one connect attempt in flight per worker".
type workerQueue struct {
	ch        chan *pendingSend
	mu        sync.Mutex
	cancelled map[uint64]bool
}

// Messenger is the per-worker connection multiplexer of §4.F.
type Messenger struct {
	dial Dialer
	log  *logrus.Entry

	mu     sync.Mutex
	queues map[string]*workerQueue
}

// NewMessenger returns a Messenger that opens connections via dial.
func NewMessenger(dial Dialer, log *logrus.Entry) *Messenger {
	return &Messenger{dial: dial, log: log, queues: map[string]*workerQueue{}}
}

func (m *Messenger) queueFor(worker string) *workerQueue {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[worker]
	if !ok {
		q = &workerQueue{ch: make(chan *pendingSend, 256), cancelled: map[uint64]bool{}}
		m.queues[worker] = q
		go m.run(worker, q)
	}
	return q
}

// Send enqueues a request for worker; onResponse is invoked exactly once,
// from the worker's serializing goroutine, with either a successful
// ResponsePayload or the error that prevented one. A send whose request
// was cancelled before it was dequeued is dropped, and its onResponse is
// never invoked.
func (m *Messenger) Send(worker string, req *Request, payload []byte, onResponse func(*ResponsePayload, error)) {
	m.queueFor(worker).ch <- &pendingSend{req: req, payload: payload, onResponse: onResponse}
}

// Cancel removes requestID from worker's queue if it has not yet been
// dequeued for sending; otherwise it is a best-effort no-op, per §4.F --
// the caller (Executive) is responsible for issuing a STOP management
// frame for an already-sent request.
func (m *Messenger) Cancel(worker string, requestID uint64) {
	q := m.queueFor(worker)
	q.mu.Lock()
	q.cancelled[requestID] = true
	q.mu.Unlock()
}

func (m *Messenger) run(worker string, q *workerQueue) {
	var conn Conn
	for ps := range q.ch {
		q.mu.Lock()
		skip := q.cancelled[ps.req.ID]
		delete(q.cancelled, ps.req.ID)
		q.mu.Unlock()
		if skip {
			continue
		}

		if conn == nil {
			c, err := m.dial(worker)
			if err != nil {
				m.log.WithField("worker", worker).WithError(err).Warn("messenger: connect failed")
				ps.onResponse(nil, fmt.Errorf("qdisp: connect to %s: %w", worker, err))
				continue
			}
			conn = c
		}

		resp, err := conn.SendRequest(ps.req.ID, ps.payload)
		if err != nil {
			conn.Close()
			conn = nil
			m.log.WithField("worker", worker).WithError(err).Warn("messenger: socket broke, reconnecting once")
			conn, err = m.dial(worker)
			if err == nil {
				resp, err = conn.SendRequest(ps.req.ID, ps.payload)
			}
			if err != nil {
				if conn != nil {
					conn.Close()
					conn = nil
				}
				ps.onResponse(nil, fmt.Errorf("qdisp: %s: send failed after one reconnect attempt: %w", worker, err))
				continue
			}
		}
		ps.onResponse(resp, nil)
	}
}
