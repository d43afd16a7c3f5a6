// Package qmeta is an operational-observability store: a thin wrapper
// recording query session bookkeeping (submission time, text, final
// status) for administrative tooling. It is never consulted for
// correctness -- a qmeta write failure is logged, not fatal.
package qmeta

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/provingground-moe/qserv-sub000/internal/qlog"
)

// Store records czar session lifecycle events.
type Store struct {
	db *sql.DB
}

// Config matches the qmeta.* configuration keys of §6.
type Config struct {
	Host       string
	Port       string
	User       string
	Passwd     string
	UnixSocket string
	Db         string
}

// Open connects to the qmeta database and pings it. On a connection
// failure it returns a nil Store and the error, without logging it;
// callers should treat a nil Store as "qmeta unavailable" and skip
// bookkeeping rather than fail the query.
func Open(cfg Config) (*Store, error) {
	dsn := dsn(cfg)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func dsn(cfg Config) string {
	if cfg.UnixSocket != "" {
		return fmt.Sprintf("%s:%s@unix(%s)/%s", cfg.User, cfg.Passwd, cfg.UnixSocket, cfg.Db)
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s", cfg.User, cfg.Passwd, cfg.Host, cfg.Port, cfg.Db)
}

// RecordSubmit inserts a new session row. Failures are logged and
// swallowed.
func (s *Store) RecordSubmit(ctx context.Context, sessionID int64, sql_ string, submittedAt time.Time) {
	if s == nil {
		return
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO qmeta_query (session_id, query_text, submitted_at, status) VALUES (?, ?, ?, ?)`,
		sessionID, sql_, submittedAt, "SUBMITTED")
	if err != nil {
		qlog.With("sessionId", sessionID).WithError(err).Warn("qmeta: failed to record submission")
	}
}

// RecordStatus updates a session's final status.
func (s *Store) RecordStatus(ctx context.Context, sessionID int64, status string) {
	if s == nil {
		return
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE qmeta_query SET status = ? WHERE session_id = ?`, status, sessionID)
	if err != nil {
		qlog.With("sessionId", sessionID).WithError(err).Warn("qmeta: failed to record status")
	}
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
