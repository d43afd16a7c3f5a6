// Package rproc implements §4.H/§4.I: the infile merger that ingests
// worker responses into a transient per-query result table, and the
// result table manager that names, creates, and drops that table.
package rproc

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"

	"github.com/provingground-moe/qserv-sub000/qdisp"
)

// jobIDColBase is the undecorated name tried first for the merge table's
// leading bookkeeping column.
const jobIDColBase = "jobId"

// TableManager names, creates, and drops the transient result table for
// one user query (§4.I). Orphaned tables from a prior czar process are
// left in place; garbage-collecting them is out of scope here.
type TableManager struct {
	db        *sql.DB
	resultDb  string
	sessionID int64

	mergeTable  string
	targetTable string
	jobIDCol    string
}

// NewTableManager returns a manager naming its merge table
// `<resultDb>.result_<sessionId>_<suffix>`. sessionId alone is only
// unique within one czar process lifetime; the appended uuid segment
// keeps naming collision-free across a restart that resets the session
// counter, without requiring every caller to persist the counter's
// high-water mark.
func NewTableManager(db *sql.DB, resultDb string, sessionID int64, targetTable string) *TableManager {
	suffix := strings.ReplaceAll(uuid.NewV4().String(), "-", "")[:8]
	return &TableManager{
		db:          db,
		resultDb:    resultDb,
		sessionID:   sessionID,
		mergeTable:  fmt.Sprintf("%s.result_%d_%s", resultDb, sessionID, suffix),
		targetTable: targetTable,
		jobIDCol:    jobIDColBase,
	}
}

// MergeTable is the table merge() writes rows into.
func (m *TableManager) MergeTable() string { return m.mergeTable }

// JobIDColumn is the name chosen for the leading jobId-attempt column,
// resolved by Create to avoid colliding with a worker output column.
func (m *TableManager) JobIDColumn() string { return m.jobIDCol }

// Create issues the `CREATE TABLE` for the merge table: one integer
// jobIDCol column followed by cols, using an append-only engine without
// crash recovery (MyISAM, matching the teacher's use of storage-engine
// selection as a first-class knob rather than always defaulting to
// transactional InnoDB).
func (m *TableManager) Create(cols []qdisp.ColumnDescriptor) error {
	m.jobIDCol = chooseJobIDColumn(cols)

	var defs []string
	defs = append(defs, fmt.Sprintf("`%s` BIGINT NOT NULL", m.jobIDCol))
	for _, c := range cols {
		defs = append(defs, fmt.Sprintf("`%s` %s", c.Name, sqlTypeFor(c.Type)))
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s) ENGINE=MyISAM", m.mergeTable, joinComma(defs))
	if _, err := m.db.Exec(stmt); err != nil {
		return errors.Wrapf(err, "rproc: create merge table %s", m.mergeTable)
	}
	return nil
}

// chooseJobIDColumn returns "jobId", or the first "jobId0", "jobId1", …
// that does not collide with a worker-declared column name.
func chooseJobIDColumn(cols []qdisp.ColumnDescriptor) string {
	taken := map[string]bool{}
	for _, c := range cols {
		taken[c.Name] = true
	}
	if !taken[jobIDColBase] {
		return jobIDColBase
	}
	for i := 0; ; i++ {
		cand := fmt.Sprintf("%s%d", jobIDColBase, i)
		if !taken[cand] {
			return cand
		}
	}
}

// Finalize executes §4.H's finalize step. When mergeSQL performs
// aggregation (non-trivial), the target table is materialized by
// `CREATE TABLE ... AS <mergeSQL>` against the merge table, which is then
// dropped; otherwise the merge table is simply stripped of its jobId
// column and becomes the target table directly. Idempotent: calling it a
// second time is a no-op. A manager created with an empty target table
// name does nothing here, so its merge table keeps the jobId column.
func (m *TableManager) Finalize(mergeSQL string, aggregated bool) error {
	if m.targetTable == "" {
		return nil
	}
	if aggregated {
		stmt := fmt.Sprintf("CREATE TABLE %s ENGINE=MyISAM AS %s", m.targetTable, mergeSQL)
		if _, err := m.db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "rproc: finalize create %s", m.targetTable)
		}
		if _, err := m.db.Exec(fmt.Sprintf("DROP TABLE %s", m.mergeTable)); err != nil {
			return errors.Wrapf(err, "rproc: finalize drop merge table %s", m.mergeTable)
		}
	} else {
		if _, err := m.db.Exec(fmt.Sprintf("ALTER TABLE %s DROP COLUMN `%s`", m.mergeTable, m.jobIDCol)); err != nil {
			return errors.Wrapf(err, "rproc: finalize drop jobId column on %s", m.mergeTable)
		}
	}
	m.targetTable = ""
	return nil
}

// Drop removes whichever of the merge/target tables still exists, used
// on any top-level query failure (§7(c)).
func (m *TableManager) Drop() error {
	for _, t := range []string{m.mergeTable, m.targetTable} {
		if t == "" {
			continue
		}
		if _, err := m.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", t)); err != nil {
			return errors.Wrapf(err, "rproc: drop table %s", t)
		}
	}
	return nil
}

func joinComma(ss []string) string {
	out := ss[0]
	for _, s := range ss[1:] {
		out += ", " + s
	}
	return out
}
