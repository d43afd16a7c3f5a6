package czar

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/provingground-moe/qserv-sub000/internal/qerrors"
	"github.com/provingground-moe/qserv-sub000/qana"
	"github.com/provingground-moe/qserv-sub000/qcontext"
	"github.com/provingground-moe/qserv-sub000/qdisp"
	"github.com/provingground-moe/qserv-sub000/qproc"
	"github.com/provingground-moe/qserv-sub000/rproc"
)

// UserQuery is one session's full pipeline state, from plan through
// merge. It is only ever mutated by its own goroutine (run by submit)
// plus the handful of accessor methods the Czar exposes, guarded by mu.
type UserQuery struct {
	czar        *Czar
	id          int64
	sql         string
	defaultDb   string
	resultTable string
	plan        *qana.Plan
	qc          *qcontext.Context

	mu       sync.Mutex
	status   Status
	queryErr *qerrors.QueryError
	done     chan struct{}

	exec   *qdisp.Executive
	table  *rproc.TableManager
	merger *rproc.Merger

	schemaOnce sync.Once
	aggregated bool
}

func newUserQuery(c *Czar, sql_, defaultDb, resultTable string, plan *qana.Plan, qc *qcontext.Context) *UserQuery {
	return &UserQuery{
		czar:        c,
		sql:         sql_,
		defaultDb:   defaultDb,
		resultTable: resultTable,
		plan:        plan,
		qc:          qc,
		status:      StatusCreated,
		done:        make(chan struct{}),
	}
}

// submit resolves the dispatch list and fans the query's chunk queries
// out; it returns once dispatch has begun, not once it completes (join
// blocks for that).
func (uq *UserQuery) submit(ctx context.Context) error {
	uq.mu.Lock()
	if uq.status != StatusCreated {
		uq.mu.Unlock()
		return fmt.Errorf("czar: session %d already submitted", uq.id)
	}
	uq.status = StatusExecuting
	uq.mu.Unlock()

	chunks, subChunksByChunk, err := uq.resolveDispatchList(ctx)
	if err != nil {
		uq.fail(qerrors.ErrAnalysisMissingMetadata.New(err.Error()))
		return err
	}

	builder := qproc.NewBuilder(uq.plan.Parallel[0], uq.plan.Mapping, uq.qc.DominantDb)
	var specs []qproc.ChunkQuerySpec
	if uq.plan.Mapping.RequiresSubChunk {
		specs = builder.BuildWithSubChunks(chunks, subChunksByChunk)
	} else {
		specs = builder.Build(chunks)
	}

	uq.table = rproc.NewTableManager(uq.czar.resultDB, uq.czar.resultDb, uq.id, uq.resultTable)
	uq.aggregated = aggregatedMerge(uq.plan.Merge)

	uq.exec = qdisp.NewExecutive(uq.id, uq.czar.msgr, uq.buildPayload, uq.onResult, uq.invalidateAttempt, uq.czar.log)

	for _, spec := range specs {
		worker, werr := uq.workerFor(ctx, spec.Chunk)
		if werr != nil {
			uq.fail(qerrors.ErrAnalysisMissingMetadata.New(werr.Error()))
			return werr
		}
		uq.exec.Add(worker, spec)
	}

	go uq.awaitCompletion()
	return nil
}

// resolveDispatchList returns every non-empty chunk id of the query's
// partitioned table(s), pruning via css.EmptyChunks (§4.I/§6).
func (uq *UserQuery) resolveDispatchList(ctx context.Context) ([]int32, map[int32][]int32, error) {
	if len(uq.plan.Mapping.Tables) == 0 {
		// An unpartitioned query still runs as a single "chunk 0" dispatch
		// against the dominant database's default worker assignment.
		return []int32{0}, nil, nil
	}
	director := uq.plan.Mapping.Tables[0]
	all, err := uq.czar.css.Chunks(ctx, director.Db, director.Table)
	if err != nil {
		return nil, nil, err
	}
	empty, err := uq.czar.css.EmptyChunks(ctx, director.Db)
	if err != nil {
		return nil, nil, err
	}
	var out []int32
	for _, c := range all {
		if !empty[c] {
			out = append(out, c)
		}
	}
	return out, nil, nil
}

func (uq *UserQuery) workerFor(ctx context.Context, chunk int32) (string, error) {
	director := uq.plan.Mapping.Tables[0]
	return uq.czar.css.ChunkToWorker(ctx, director.Db, director.Table, chunk)
}

// buildPayload renders req.Query as a QUEUED/SQL request frame.
func (uq *UserQuery) buildPayload(req *qdisp.Request) (header, payload []byte, err error) {
	h := qdisp.Header{ID: req.ID, Type: qdisp.HeaderRequest, QueuedType: qdisp.QueuedSQL}
	return encodeHeader(h), []byte(req.Query), nil
}

// onResult is the Executive's ResultHandler: it lazily creates the merge
// table from the first response's declared schema, then merges the row
// payload.
func (uq *UserQuery) onResult(req *qdisp.Request, resp *qdisp.ResponsePayload) error {
	var createErr error
	uq.schemaOnce.Do(func() {
		createErr = uq.table.Create(resp.Columns)
		merger := rproc.NewMerger(
			uq.table,
			rproc.Config{MaxResultTableSizeMB: uq.czar.merger.MaxResultTableSizeMB, CheckSizeEveryXRows: uq.czar.merger.CheckSizeEveryXRows},
			uq.loadResponse,
			rproc.DefaultSizeQuery(uq.czar.resultDB, uq.table.MergeTable()),
			rproc.DefaultDeleteBatch(uq.czar.resultDB, uq.table.MergeTable()),
			uq.czar.log,
		)
		uq.mu.Lock()
		uq.merger = merger
		uq.mu.Unlock()
	})
	if createErr != nil {
		return createErr
	}
	return uq.mergerOrNil().Merge(req.JobID, resp)
}

// mergerOrNil safely reads the lazily-created Merger; nil until the first
// response's onResult call runs schemaOnce.
func (uq *UserQuery) mergerOrNil() *rproc.Merger {
	uq.mu.Lock()
	defer uq.mu.Unlock()
	return uq.merger
}

// invalidateAttempt is qdisp.Executive's InvalidateFunc hook: it marks jia
// for scrubbing on the session's merger, a no-op if no response has
// arrived yet (and so nothing could have been merged under jia).
func (uq *UserQuery) invalidateAttempt(jia qdisp.JobIdAttempt) {
	if m := uq.mergerOrNil(); m != nil {
		m.PrepScrub(jia)
	}
}

// loadResponse is the merger's loadFn: it issues the LOAD DATA LOCAL
// INFILE call against the result connection, registering resp.Rows as
// the local data stream prefixed by jobIDAttempt per row.
func (uq *UserQuery) loadResponse(jobIDCol string, jia qdisp.JobIdAttempt, resp *qdisp.ResponsePayload) error {
	return loadDataLocalInfile(uq.czar.resultDB, uq.table.MergeTable(), jobIDCol, strconv.FormatInt(int64(jia), 10), resp.Rows)
}

func (uq *UserQuery) awaitCompletion() {
	errs := uq.exec.Wait()

	uq.mu.Lock()
	cancelled := uq.status == StatusCancelled
	uq.mu.Unlock()
	if cancelled {
		close(uq.done)
		return
	}

	if len(errs) > 0 {
		qerr := qerrors.NewQueryError(qerrors.ErrDispatchClient.New(errs[0].Error()))
		for _, e := range errs[1:] {
			qerr.AddCause(e)
		}
		uq.fail(qerr)
		return
	}

	if m := uq.mergerOrNil(); m != nil {
		if err := m.Finalize(uq.plan.Merge, uq.aggregated); err != nil {
			uq.fail(qerrors.NewQueryError(err))
			return
		}
	}

	uq.mu.Lock()
	uq.status = StatusSuccess
	uq.mu.Unlock()
	if uq.czar.meta != nil {
		uq.czar.meta.RecordStatus(context.Background(), uq.id, uq.status.String())
	}
	close(uq.done)
}

// fail records err as the session's terminal error, drops the result
// table (§7(c): "every failed query ... the result table is dropped as
// part of cleanup"), and signals done.
func (uq *UserQuery) fail(err error) {
	uq.mu.Lock()
	if uq.status == StatusError || uq.status == StatusCancelled {
		uq.mu.Unlock()
		return
	}
	uq.status = StatusError
	if qerr, ok := err.(*qerrors.QueryError); ok {
		uq.queryErr = qerr
	} else {
		uq.queryErr = qerrors.NewQueryError(err)
	}
	uq.mu.Unlock()

	if uq.table != nil {
		uq.table.Drop()
	}
	if uq.czar.meta != nil {
		uq.czar.meta.RecordStatus(context.Background(), uq.id, uq.status.String())
	}
	close(uq.done)
}

// join blocks until the session reaches a terminal status.
func (uq *UserQuery) join() (Status, error) {
	<-uq.done
	uq.mu.Lock()
	defer uq.mu.Unlock()
	if uq.queryErr != nil {
		return uq.status, uq.queryErr
	}
	return uq.status, nil
}

// cancel marks the session cancelled, stops outstanding requests, and
// drops the result table (§5: "every outstanding Request ends
// FINISHED[CANCELLED]"; §7(c)).
func (uq *UserQuery) cancel() {
	uq.mu.Lock()
	if uq.status == StatusSuccess || uq.status == StatusError || uq.status == StatusCancelled {
		uq.mu.Unlock()
		return
	}
	wasCreated := uq.status == StatusCreated
	uq.status = StatusCancelled
	uq.mu.Unlock()

	if uq.exec != nil {
		uq.exec.Cancel()
	}
	if uq.table != nil {
		uq.table.Drop()
	}
	if wasCreated {
		close(uq.done)
	}
}

// aggregatedMerge reports whether mergeSQL performs aggregation, deciding
// Finalize's CREATE-TABLE-AS-SELECT vs. ALTER-TABLE-DROP-COLUMN path.
func aggregatedMerge(mergeSQL string) bool {
	upper := strings.ToUpper(mergeSQL)
	for _, marker := range []string{"SUM(", "COUNT(", "AVG(", "MIN(", "MAX(", "GROUP BY"} {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}
