// Package parser is the SQL text -> IR front end: a tree-walking adapter
// layer over the grammar produced by github.com/dolthub/vitess's
// generated sqlparser, per §4.B.
package parser

import (
	"fmt"

	"github.com/provingground-moe/qserv-sub000/query"
)

// frame is one entry of the adapter context stack: the grammar node kind
// currently being visited and the SQL fragment it covers, used to embed
// the originating fragment in adapter_execution_error / adapter_order_error.
type frame struct {
	kind     string
	fragment string
}

// Context is the adapter stack threaded through one parse call. Adapters
// push themselves on enter and pop on exit (via the Enter helper below);
// they otherwise hand their results back to their caller as return
// values, never by reaching across the stack.
type Context struct {
	Arena *query.Arena
	stack []frame
}

// newContext returns a Context bound to a fresh arena.
func newContext() *Context {
	return &Context{Arena: query.NewArena()}
}

// Enter pushes (kind, fragment) and returns a closer to be deferred,
// realizing the adapter's onEnter/onExit pair as a single call site:
//
//	defer ctx.Enter("ComparisonExpr", sqlparser.String(expr))()
func (c *Context) Enter(kind, fragment string) func() {
	c.stack = append(c.stack, frame{kind: kind, fragment: fragment})
	return func() {
		c.stack = c.stack[:len(c.stack)-1]
	}
}

// Parent returns the kind of the adapter directly enclosing the current
// one, or "" at the root.
func (c *Context) Parent() string {
	if len(c.stack) < 2 {
		return ""
	}
	return c.stack[len(c.stack)-2].kind
}

// Current returns the fragment of the innermost active adapter.
func (c *Context) Current() string {
	if len(c.stack) == 0 {
		return ""
	}
	return c.stack[len(c.stack)-1].fragment
}

func (c *Context) String() string {
	return fmt.Sprintf("%v", c.stack)
}
