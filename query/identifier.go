// Package query implements the typed SQL intermediate representation used
// by the planner: identifiers, table/column references, value expressions,
// boolean terms and the select statement they compose into.
package query

import "strings"

// RenderMode controls how an Identifier is rendered back to SQL text.
type RenderMode int

const (
	// Unmodified renders the identifier exactly as it was constructed,
	// including its original quoting.
	Unmodified RenderMode = iota
	// NoQuotes renders the bare name with no surrounding backticks.
	NoQuotes
	// WithQuotes always wraps the name in backticks.
	WithQuotes
)

// Identifier is a normalized SQL name. Quoting is stripped at construction
// time but whether the name was originally quoted is preserved so that
// Unmodified rendering round-trips exactly. Equality ignores quoting.
type Identifier struct {
	name          string
	originQuoted  bool
}

// NewIdentifier builds an Identifier from raw SQL text, which may carry
// surrounding backticks. The backticks are stripped; whether they were
// present is remembered for Unmodified rendering.
func NewIdentifier(raw string) Identifier {
	if len(raw) >= 2 && raw[0] == '`' && raw[len(raw)-1] == '`' {
		return Identifier{name: raw[1 : len(raw)-1], originQuoted: true}
	}
	return Identifier{name: raw}
}

// IsEmpty reports whether the identifier carries no name, i.e. the field it
// represents (db, table, column, alias) was never set.
func (id Identifier) IsEmpty() bool {
	return id.name == ""
}

// Equal compares two identifiers ignoring quoting.
func (id Identifier) Equal(other Identifier) bool {
	return id.name == other.name
}

// Less provides a total order over identifiers for deterministic output
// (e.g. sorting duplicate-alias error messages).
func (id Identifier) Less(other Identifier) bool {
	return id.name < other.name
}

// Get renders the identifier according to mode.
func (id Identifier) Get(mode RenderMode) string {
	switch mode {
	case WithQuotes:
		return "`" + id.name + "`"
	case NoQuotes:
		return id.name
	default: // Unmodified
		if id.originQuoted {
			return "`" + id.name + "`"
		}
		return id.name
	}
}

// String renders with NoQuotes, the common case for internal comparisons
// and log messages.
func (id Identifier) String() string {
	return id.Get(NoQuotes)
}

// QuoteStripped reports whether the raw string this identifier was built
// from carried surrounding backticks.
func (id Identifier) QuoteStripped() bool {
	return id.originQuoted
}

// JoinDotted renders a dotted db.table (or db.table.column) style path from
// a sequence of identifiers, skipping empty leading components.
func JoinDotted(mode RenderMode, ids ...Identifier) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if id.IsEmpty() {
			continue
		}
		parts = append(parts, id.Get(mode))
	}
	return strings.Join(parts, ".")
}
