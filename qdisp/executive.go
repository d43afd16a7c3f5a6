package qdisp

import (
	"fmt"
	"sync"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/provingground-moe/qserv-sub000/qproc"
)

// PayloadBuilder renders the concrete wire header+payload bytes for one
// chunk query send; supplied by the caller so qdisp stays agnostic of the
// actual request/response encoding used by a given worker protocol
// version.
type PayloadBuilder func(req *Request) (header, payload []byte, err error)

// ResultHandler consumes one successful worker response for a request --
// typically forwarding it to the merger (rproc). It is called at most
// once per request attempt. Calls for requests sent to different workers
// come from different Messenger goroutines and may run concurrently.
type ResultHandler func(req *Request, resp *ResponsePayload) error

// InvalidateFunc marks a prior job-attempt's merged rows for scrubbing
// (rproc.Merger.PrepScrub), invoked before a failed request's retry is
// redispatched and before a cancelled request's in-flight response can
// land, so neither attempt's rows are double-counted or smuggled into the
// result table.
type InvalidateFunc func(JobIdAttempt)

// Executive tracks every Request belonging to one user query (§4.G's Job)
// and drives it to completion or failure.
type Executive struct {
	mu       sync.Mutex
	log      *logrus.Entry
	msgr     *Messenger
	build    PayloadBuilder
	onResult ResultHandler
	tracer   opentracing.Tracer

	jobID      int64
	nextID     uint64
	requests   map[uint64]*Request
	pending    int
	errs       []error
	done       bool
	doneCh     chan struct{}
	invalidate InvalidateFunc
}

// NewExecutive returns an Executive for jobID, dispatching through msgr,
// invoking build to render each request's wire frame and onResult for
// every successful response. invalidate, if non-nil, is called with a
// request's current JobIdAttempt before that attempt's rows could reach
// the merger again -- once before a retried request's previous attempt is
// redispatched, and once for every outstanding request when Cancel is
// called (§4.G, §5). Spans are reported through
// opentracing.GlobalTracer(); callers that never call
// opentracing.SetGlobalTracer get opentracing.NoopTracer{}, matching how
// the engine's own test harness opts out of tracing.
func NewExecutive(jobID int64, msgr *Messenger, build PayloadBuilder, onResult ResultHandler, invalidate InvalidateFunc, log *logrus.Entry) *Executive {
	return &Executive{
		log:        log,
		msgr:       msgr,
		build:      build,
		onResult:   onResult,
		invalidate: invalidate,
		tracer:     opentracing.GlobalTracer(),
		jobID:      jobID,
		requests:   map[uint64]*Request{},
		doneCh:     make(chan struct{}),
	}
}

// Add registers one ChunkQuerySpec's queries against worker and dispatches
// them. Must be called before Wait.
func (e *Executive) Add(worker string, spec qproc.ChunkQuerySpec) {
	e.mu.Lock()
	if e.done {
		e.mu.Unlock()
		return
	}
	var reqs []*Request
	for range spec.Queries {
		e.nextID++
		id := e.nextID
		req := NewRequest(id, e.jobID, spec.Chunk, worker, "", e.onRequestComplete)
		e.requests[id] = req
		e.pending++
		reqs = append(reqs, req)
	}
	for i, q := range spec.Queries {
		reqs[i].Query = q
	}
	e.mu.Unlock()

	for _, req := range reqs {
		e.dispatch(req)
	}
}

func (e *Executive) dispatch(req *Request) {
	if err := req.Start(); err != nil {
		e.log.WithField("requestId", req.ID).WithError(err).Error("executive: cannot start request")
		return
	}
	span := e.tracer.StartSpan("qdisp.dispatch",
		opentracing.Tag{Key: "worker", Value: req.Worker},
		opentracing.Tag{Key: "chunk", Value: req.Chunk},
		opentracing.Tag{Key: "attempt", Value: req.AttemptCount})

	header, payload, err := e.build(req)
	if err != nil {
		span.Finish()
		e.fail(req, fmt.Errorf("qdisp: building request %d: %w", req.ID, err))
		return
	}
	var frame []byte
	frame = append(frame, header...)
	frame = append(frame, payload...)
	e.msgr.Send(req.Worker, req, frame, func(resp *ResponsePayload, sendErr error) {
		defer span.Finish()
		if req.Finished() {
			// Cancelled (or otherwise already finished) out from under this
			// in-flight send: Cancel already invalidated this attempt, so the
			// merger scrubs it if it somehow still lands; don't hand it to
			// onResult at all.
			return
		}
		if sendErr != nil {
			e.fail(req, sendErr)
			return
		}
		if resp.ErrorCode != 0 {
			e.fail(req, fmt.Errorf("qdisp: worker %s request %d: %s", req.Worker, req.ID, resp.ErrorMsg))
			return
		}
		if e.onResult != nil {
			if err := e.onResult(req, resp); err != nil {
				e.fail(req, err)
				return
			}
		}
		req.Succeed()
	})
}

// fail reports a transport/server-observed failure for req, always as the
// transient ExtClientError. While the request has attempts left, the
// attempt about to be superseded is invalidated and the request is
// redispatched in place (§4.G); once its attempts are exhausted it
// finishes and the attributed error is recorded.
func (e *Executive) fail(req *Request, err error) {
	jia, jiaErr := req.JobIdAttempt()
	if retry := req.Fail(ExtClientError); retry {
		if jiaErr == nil && e.invalidate != nil {
			e.invalidate(jia)
		}
		e.log.WithField("requestId", req.ID).WithField("attempt", req.AttemptCount).
			WithError(err).Warn("executive: retrying request")
		e.dispatch(req)
		return
	}
	e.mu.Lock()
	e.errs = append(e.errs, err)
	e.mu.Unlock()
}

// onRequestComplete is the Request.onComplete callback: it decrements the
// pending count and, once every registered request has finished, closes
// doneCh exactly once.
func (e *Executive) onRequestComplete(req *Request) {
	e.mu.Lock()
	e.pending--
	finished := e.pending <= 0
	alreadyDone := e.done
	if finished {
		e.done = true
	}
	e.mu.Unlock()
	if finished && !alreadyDone {
		close(e.doneCh)
	}
}

// Wait blocks until every registered request has reached FINISHED, then
// returns the accumulated attributed errors (empty on full success).
func (e *Executive) Wait() []error {
	<-e.doneCh
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errs
}

// Cancel marks every not-yet-finished request FINISHED[CANCELLED] and asks
// the Messenger to drop any not-yet-sent sends, satisfying §5's "user
// cancels mid-merge: finalize() never called, every outstanding Request
// ends FINISHED[CANCELLED]". Before finishing each request it invalidates
// that request's current job-attempt, so a response already in flight is
// scrubbed by the merger instead of landing in the result table.
func (e *Executive) Cancel() {
	e.mu.Lock()
	reqs := make([]*Request, 0, len(e.requests))
	for _, r := range e.requests {
		reqs = append(reqs, r)
	}
	e.mu.Unlock()

	for _, r := range reqs {
		if r.Finished() {
			continue
		}
		if e.invalidate != nil {
			if jia, err := r.JobIdAttempt(); err == nil {
				e.invalidate(jia)
			}
		}
		e.msgr.Cancel(r.Worker, r.ID)
		r.Cancel()
	}
}
