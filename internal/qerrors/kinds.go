// Package qerrors is the error-kind catalog of §7: one errors.Kind per
// leaf error category, plus QueryError, the top-level/multi-cause envelope
// every failed query surfaces.
package qerrors

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	goerrors "gopkg.in/src-d/go-errors.v1"
)

var (
	// Config errors: a required config key is missing or malformed.
	ErrConfig = goerrors.NewKind("config error: %s")

	// Parse errors: the SQL text could not be parsed.
	ErrParse = goerrors.NewKind("parse error: %s")

	// Analysis errors, §7 AnalysisError sub-kinds.
	ErrAnalysisDuplicateSelectExpr  = goerrors.NewKind("duplicate select expression %q at positions %v")
	ErrAnalysisDuplicateTableAlias  = goerrors.NewKind("table alias %q already refers to %s, cannot also refer to %s")
	ErrAnalysisUnsupportedFeature   = goerrors.NewKind("unsupported feature: %s")
	ErrAnalysisMissingMetadata      = goerrors.NewKind("missing metadata: %s")

	// Dispatch errors, §7 DispatchError sub-kinds.
	ErrDispatchClient    = goerrors.NewKind("dispatch client error: %s")
	ErrDispatchTimeout   = goerrors.NewKind("dispatch timeout: %s")
	ErrDispatchCancelled = goerrors.NewKind("dispatch cancelled: %s")

	// Worker errors, §7 WorkerError sub-kinds.
	ErrWorkerServerError     = goerrors.NewKind("worker %s chunk %d: server error: %s")
	ErrWorkerServerBad       = goerrors.NewKind("worker %s chunk %d: bad response: %s")
	ErrWorkerServerCancelled = goerrors.NewKind("worker %s chunk %d: cancelled by server: %s")

	// Merge errors, §7 MergeError sub-kinds.
	ErrMergeMySQLConnect  = goerrors.NewKind("merge: mysql connect: %s")
	ErrMergeMySQLExec     = goerrors.NewKind("merge: mysql exec: %s")
	ErrMergeHeaderImport  = goerrors.NewKind("merge: header import: %s")
	ErrMergeResultImport  = goerrors.NewKind("merge: result import: %s")
	ErrMergeCreateTable   = goerrors.NewKind("merge: create table: %s")
	ErrMergeResultTooLarge = goerrors.NewKind("merge: result table exceeds size limit of %d MB")

	// Internal is the catch-all for invariant violations.
	ErrInternal = goerrors.NewKind("internal error: %s")
)

// QueryError is the top-level, user-visible error a failed query produces:
// a single top-level kind/message plus the multi-error list of underlying
// per-(worker,chunk) causes referenced in §7.
type QueryError struct {
	Top    error
	Causes *multierror.Error
}

// NewQueryError wraps top as the primary error with an empty cause list.
func NewQueryError(top error) *QueryError {
	return &QueryError{Top: top}
}

// AddCause appends an underlying cause (e.g. one worker's reported error).
func (e *QueryError) AddCause(cause error) {
	e.Causes = multierror.Append(e.Causes, cause)
}

// HasCauses reports whether any cause has been recorded.
func (e *QueryError) HasCauses() bool {
	return e.Causes != nil && len(e.Causes.Errors) > 0
}

func (e *QueryError) Error() string {
	if e.HasCauses() {
		return fmt.Sprintf("%s (%d underlying cause(s): %s)", e.Top, len(e.Causes.Errors), e.Causes.Error())
	}
	return e.Top.Error()
}

func (e *QueryError) Unwrap() error {
	return e.Top
}
