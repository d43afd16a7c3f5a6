package czar

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/provingground-moe/qserv-sub000/css"
	"github.com/provingground-moe/qserv-sub000/internal/qerrors"
	"github.com/provingground-moe/qserv-sub000/internal/qlog"
	"github.com/provingground-moe/qserv-sub000/internal/qmeta"
	"github.com/provingground-moe/qserv-sub000/parser"
	"github.com/provingground-moe/qserv-sub000/qana"
	"github.com/provingground-moe/qserv-sub000/qcontext"
	"github.com/provingground-moe/qserv-sub000/qdisp"
)

// Czar is the top-level orchestrator: one process-wide instance owning
// the CSS client, the result-db connection, the worker messenger, and the
// live session registry.
type Czar struct {
	log      *logrus.Entry
	css      css.Client
	meta     *qmeta.Store
	resultDB *sql.DB
	resultDb string
	msgr     *qdisp.Messenger
	merger   Config

	sessions *sessionRegistry
}

// Config bundles the merger tunables a Czar applies to every session's
// Merger (§4.H).
type Config struct {
	MaxResultTableSizeMB int
	CheckSizeEveryXRows  int
}

// New returns a Czar dispatching worker requests via dial, merging
// results into resultDB/resultDb, and consulting cssClient for
// partitioning metadata. meta may be nil (qmeta bookkeeping is then
// skipped, per its own nil-Store contract).
func New(cssClient css.Client, meta *qmeta.Store, resultDB *sql.DB, resultDb string, dial qdisp.Dialer, cfg Config) *Czar {
	log := qlog.With("component", "czar")
	return &Czar{
		log:      log,
		css:      cssClient,
		meta:     meta,
		resultDB: resultDB,
		resultDb: resultDb,
		msgr:     qdisp.NewMessenger(dial, log),
		merger:   cfg,
		sessions: newSessionRegistry(),
	}
}

// NewUserQuery is §6's `newUserQuery(sql, defaultDb, resultTable)`: it
// parses and plans sql, consulting css for partitioning metadata, and
// returns the new session's id plus the front end's proxy ORDER BY text.
// The query is not yet dispatched; call Submit next.
func (c *Czar) NewUserQuery(ctx context.Context, sql_, defaultDb, resultTable string) (sessionID int64, proxyOrderBy string, err error) {
	stmt, err := parser.Parse(sql_)
	if err != nil {
		return 0, "", qerrors.ErrParse.New(err.Error())
	}

	qc := qcontext.NewContext(defaultDb)
	if err := c.populateMetadata(ctx, defaultDb, qc); err != nil {
		return 0, "", err
	}

	plan, err := qana.NewPlanner().Plan(stmt, qc)
	if err != nil {
		return 0, "", err
	}

	uq := newUserQuery(c, sql_, defaultDb, resultTable, plan, qc)
	id := c.sessions.register(uq)

	if c.meta != nil {
		c.meta.RecordSubmit(ctx, id, sql_, time.Now())
	}

	return id, plan.ProxyOrderBy, nil
}

// populateMetadata fills qc.PartitionedTables and qc.SecondaryIndexColumn
// for every partitioned table of defaultDb, ahead of planning (§4.C/§6).
func (c *Czar) populateMetadata(ctx context.Context, defaultDb string, qc *qcontext.Context) error {
	tables, err := c.css.PartitionedTables(ctx, defaultDb)
	if err != nil {
		return qerrors.ErrAnalysisMissingMetadata.New(err.Error())
	}
	for _, table := range tables {
		key := defaultDb + "." + table
		qc.PartitionedTables[key] = true
		dir, err := c.css.Director(ctx, defaultDb, table)
		if err != nil {
			continue
		}
		qc.SecondaryIndexColumn[key] = dir.KeyColumn
	}
	return nil
}

// Submit is §6's `submit(sessionId)`: it resolves the dispatch list
// (chunks minus empties, each assigned to a worker), wires the merger,
// and fans the ChunkQuerySpecs out asynchronously. Join blocks for
// completion.
func (c *Czar) Submit(ctx context.Context, sessionID int64) error {
	uq, ok := c.sessions.get(sessionID)
	if !ok {
		return fmt.Errorf("czar: unknown session %d", sessionID)
	}
	return uq.submit(ctx)
}

// Join is §6's `join(sessionId) -> status`: it blocks until the session
// finishes (success, error, or cancellation) and returns its final
// status.
func (c *Czar) Join(sessionID int64) (Status, error) {
	uq, ok := c.sessions.get(sessionID)
	if !ok {
		return StatusError, fmt.Errorf("czar: unknown session %d", sessionID)
	}
	return uq.join()
}

// Cancel is §6's `cancel(sessionId)`.
func (c *Czar) Cancel(sessionID int64) error {
	uq, ok := c.sessions.get(sessionID)
	if !ok {
		return fmt.Errorf("czar: unknown session %d", sessionID)
	}
	uq.cancel()
	return nil
}

