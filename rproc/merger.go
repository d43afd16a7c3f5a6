package rproc

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/provingground-moe/qserv-sub000/internal/qerrors"
	"github.com/provingground-moe/qserv-sub000/qdisp"
)

// maxDeleteBatchBytes bounds the SQL text of one invalidation DELETE
// batch (§4.H: "in chunks <= ~950 kB of SQL text"), leaving headroom
// under typical max_allowed_packet defaults.
const maxDeleteBatchBytes = 950 * 1024

// Merger ingests worker responses into one query's merge table via
// LOAD DATA LOCAL INFILE, and implements the invalidation protocol that
// lets a retried attempt's earlier rows be scrubbed without blocking
// every concurrent merge.
type Merger struct {
	log     *logrus.Entry
	table   *TableManager
	loadFn  func(jobIDCol string, jobIDAttempt qdisp.JobIdAttempt, resp *qdisp.ResponsePayload) error

	checkSizeEveryXRows int
	maxResultTableSizeMB int
	sizeQuery           func() (int64, error)
	deleteBatch         func(jobIDCol string, ids []qdisp.JobIdAttempt) error

	mu                sync.Mutex
	cond              *sync.Cond
	invalidAttempts   map[qdisp.JobIdAttempt]bool
	attemptsWithRows  map[qdisp.JobIdAttempt]bool
	concurrentMerges  int
	wait              bool
	rowsSinceCheck    int
	err               error
}

// Config bundles the merger's tunables, sourced from the
// merger.maxResultTableSizeMB / merger.checkSizeEveryXRows config keys.
type Config struct {
	MaxResultTableSizeMB int
	CheckSizeEveryXRows  int
}

// NewMerger returns a Merger over table, loading response payloads via
// loadFn (the LOAD DATA LOCAL INFILE call, parameterized so tests can
// substitute a fake), sizing the table via sizeQuery and batch-deleting
// invalidated rows via deleteBatch.
func NewMerger(
	table *TableManager,
	cfg Config,
	loadFn func(jobIDCol string, jobIDAttempt qdisp.JobIdAttempt, resp *qdisp.ResponsePayload) error,
	sizeQuery func() (int64, error),
	deleteBatch func(jobIDCol string, ids []qdisp.JobIdAttempt) error,
	log *logrus.Entry,
) *Merger {
	m := &Merger{
		log:                   log,
		table:                 table,
		loadFn:                loadFn,
		checkSizeEveryXRows:   cfg.CheckSizeEveryXRows,
		maxResultTableSizeMB:  cfg.MaxResultTableSizeMB,
		sizeQuery:             sizeQuery,
		deleteBatch:           deleteBatch,
		invalidAttempts:       map[qdisp.JobIdAttempt]bool{},
		attemptsWithRows:      map[qdisp.JobIdAttempt]bool{},
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Err returns the first fatal error encountered by a prior Merge or
// Finalize call, if any (§7: "surfaces on the next merge() or
// finalize() call").
func (m *Merger) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Merge ingests one worker response (§4.H steps 1-5). Safe to call
// concurrently from many responses at once.
func (m *Merger) Merge(jobID int64, resp *qdisp.ResponsePayload) error {
	jia, err := qdisp.MakeJobIdAttempt(jobID, resp.AttemptCount)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.err != nil {
		defer m.mu.Unlock()
		return m.err
	}
	if m.invalidAttempts[jia] {
		m.mu.Unlock()
		return nil
	}
	for m.wait {
		m.cond.Wait()
	}
	m.concurrentMerges++
	m.attemptsWithRows[jia] = true
	m.mu.Unlock()

	loadErr := m.loadFn(m.table.JobIDColumn(), jia, resp)

	m.mu.Lock()
	m.concurrentMerges--
	if m.concurrentMerges == 0 {
		m.cond.Broadcast()
	}
	if loadErr != nil {
		m.err = qerrors.ErrMergeResultImport.New(loadErr.Error())
		m.mu.Unlock()
		return m.err
	}
	m.rowsSinceCheck += int(resp.RowCount)
	needCheck := m.checkSizeEveryXRows > 0 && m.rowsSinceCheck >= m.checkSizeEveryXRows
	if needCheck {
		m.rowsSinceCheck = 0
	}
	m.mu.Unlock()

	if needCheck {
		return m.checkSize()
	}
	return nil
}

// checkSize implements §4.H step 5: if the table exceeds the configured
// limit, reclaim invalidated rows once and re-check before failing.
func (m *Merger) checkSize() error {
	sizeMB, err := m.sizeQuery()
	if err != nil {
		return errors.Wrap(err, "rproc: size check")
	}
	if sizeMB <= int64(m.maxResultTableSizeMB) {
		return nil
	}
	if err := m.HoldMergingForRowDelete(); err != nil {
		return err
	}
	sizeMB, err = m.sizeQuery()
	if err != nil {
		return errors.Wrap(err, "rproc: size re-check")
	}
	if sizeMB > int64(m.maxResultTableSizeMB) {
		m.mu.Lock()
		m.err = qerrors.ErrMergeResultTooLarge.New(m.maxResultTableSizeMB)
		m.mu.Unlock()
		return m.err
	}
	return nil
}

// PrepScrub marks jobIDAttempt invalid: future Merge calls for it are
// discarded, and if it already wrote rows those rows are queued for
// deletion by the next HoldMergingForRowDelete (§4.H invalidation
// protocol). Callers must call this before redispatching a retried
// request, per §4.F.
func (m *Merger) PrepScrub(jia qdisp.JobIdAttempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidAttempts[jia] = true
}

// HoldMergingForRowDelete blocks new merges, waits for in-flight merges
// to drain, then deletes every row belonging to an invalidated attempt
// that wrote rows, in batches bounded by maxDeleteBatchBytes.
func (m *Merger) HoldMergingForRowDelete() error {
	m.mu.Lock()
	m.wait = true
	for m.concurrentMerges > 0 {
		m.cond.Wait()
	}
	var toDelete []qdisp.JobIdAttempt
	for jia := range m.invalidAttempts {
		if m.attemptsWithRows[jia] {
			toDelete = append(toDelete, jia)
		}
	}
	m.mu.Unlock()

	var delErr error
	for _, batch := range batchJobIdAttempts(toDelete, maxDeleteBatchBytes) {
		if err := m.deleteBatch(m.table.JobIDColumn(), batch); err != nil {
			delErr = errors.Wrap(err, "rproc: invalidation delete batch")
			break
		}
	}

	m.mu.Lock()
	if delErr == nil {
		for _, jia := range toDelete {
			delete(m.attemptsWithRows, jia)
		}
	}
	m.wait = false
	m.cond.Broadcast()
	m.mu.Unlock()
	return delErr
}

// batchJobIdAttempts groups ids into batches whose rendered
// "id1,id2,..." text stays under maxBytes, matching §4.H's ~950 kB cap
// on one DELETE statement's IN-list text.
func batchJobIdAttempts(ids []qdisp.JobIdAttempt, maxBytes int) [][]qdisp.JobIdAttempt {
	if len(ids) == 0 {
		return nil
	}
	var batches [][]qdisp.JobIdAttempt
	var cur []qdisp.JobIdAttempt
	size := 0
	for _, id := range ids {
		s := strconv.FormatInt(int64(id), 10)
		if size+len(s)+1 > maxBytes && len(cur) > 0 {
			batches = append(batches, cur)
			cur = nil
			size = 0
		}
		cur = append(cur, id)
		size += len(s) + 1
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}

// Finalize flushes any attempt invalidated by PrepScrub since the last
// flush, materializes the result table from the merge table, and reports
// any error recorded by a prior Merge call (§7: merge errors are fatal, no
// partial result table is returned). Flushing here, rather than leaving a
// scrub pending indefinitely, is what makes the invalidation protocol's
// guarantee (§3's testable property: no rows survive with an invalidated
// jobIdCol once holdMergingForRowDelete returns) actually hold by the time
// the merge table is read.
func (m *Merger) Finalize(mergeSQL string, aggregated bool) error {
	if err := m.Err(); err != nil {
		return err
	}
	if err := m.HoldMergingForRowDelete(); err != nil {
		return err
	}
	return m.table.Finalize(mergeSQL, aggregated)
}

// DefaultSizeQuery returns a sizeQuery implementation that sums
// data_length+index_length from information_schema for table (a
// "db.table" string).
func DefaultSizeQuery(db *sql.DB, table string) func() (int64, error) {
	parts := strings.SplitN(table, ".", 2)
	return func() (int64, error) {
		var bytes int64
		row := db.QueryRow(
			`SELECT COALESCE(data_length + index_length, 0) FROM information_schema.tables
			   WHERE table_schema = ? AND table_name = ?`, parts[0], parts[1])
		if err := row.Scan(&bytes); err != nil {
			return 0, err
		}
		return bytes / (1024 * 1024), nil
	}
}

// DefaultDeleteBatch returns a deleteBatch implementation issuing a
// single `DELETE ... WHERE <jobIdCol> IN (...)` against table for one
// batch of ids.
func DefaultDeleteBatch(db *sql.DB, table string) func(jobIDCol string, ids []qdisp.JobIdAttempt) error {
	return func(jobIDCol string, ids []qdisp.JobIdAttempt) error {
		if len(ids) == 0 {
			return nil
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "DELETE FROM %s WHERE `%s` IN (", table, jobIDCol)
		for i, id := range ids {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.FormatInt(int64(id), 10))
		}
		sb.WriteByte(')')
		_, err := db.Exec(sb.String())
		return err
	}
}
