// Package sparql compiles redacted shapes into SPARQL graph-pattern
// fragments and resolves dotted edge paths to the sub-shapes and query
// variables the compiler binds. The tree, path, and hook probes share one
// anchor-naming convention and one traversal order: a change to any of
// them requires a matching change to the others.
package sparql

import "strconv"

// Anchor is the query-variable identifier bound to a shape's focus during
// one compilation run.
type Anchor string

// Root is the reserved anchor for the resource a query is rooted at.
const Root = Anchor("this")

// Var renders the anchor as a SPARQL variable.
func (a Anchor) Var() string { return "?" + string(a) }

// Scope allocates the anchors for one compilation run: forward edge
// targets count up through v1, v2, …, inverse aliases through a1, a2, …,
// and cardinality counters through c1, c2, …, all off one shared counter
// so allocation order is deterministic per run. Scopes are never shared
// across runs or goroutines.
type Scope struct {
	n int
}

// NewScope starts a fresh allocation scope.
func NewScope() *Scope { return &Scope{} }

// Forward allocates the target anchor for a direct edge.
func (s *Scope) Forward() Anchor {
	s.n++
	return Anchor("v" + strconv.Itoa(s.n))
}

// Inverse allocates the alias anchor for an inverse edge.
func (s *Scope) Inverse() Anchor {
	s.n++
	return Anchor("a" + strconv.Itoa(s.n))
}

// Count allocates the counting variable for a cardinality sub-select.
func (s *Scope) Count() Anchor {
	s.n++
	return Anchor("c" + strconv.Itoa(s.n))
}
