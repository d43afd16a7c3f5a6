package parser

import goerrors "gopkg.in/src-d/go-errors.v1"

// AdapterOrderError is raised when an adapter encounters a grammar node
// type it was never told how to handle at this position in the tree (an
// unreachable-in-practice defensive check; every node kind the grammar can
// produce at a given position has an adapter).
var AdapterOrderError = goerrors.NewKind("adapter_order_error: %s has no adapter for child of kind %s")

// AdapterExecutionError is raised at enter-time for any restriction of the
// underlying SQL dialect that Qserv does not support: DML other than
// SELECT, sub-queries as predicates, CROSS JOIN, HAVING without
// aggregation, etc. The originating SQL fragment is embedded in the
// message.
var AdapterExecutionError = goerrors.NewKind("adapter_execution_error: %s: %s")

func orderErr(parentKind, childKind string) error {
	return AdapterOrderError.New(parentKind, childKind)
}

func execErr(reason, fragment string) error {
	return AdapterExecutionError.New(reason, fragment)
}
