// Package callgraph holds the on-the-fly context-sensitive call graph
// (spec.md §3): a directed graph of CSMethod nodes whose edges are labeled
// by Kind. The Solver is the sole producer; the TFG builder and result
// surface are downstream consumers of the same edge-kind vocabulary used
// for the ICFG (spec.md §3, "ICFG edge").
//
// This graph is method-granularity (CSMethod to CSMethod, one edge per
// call site/callee pair): it has no per-statement CFG to hang a LOCAL
// (intraprocedural normal-flow) or RETURN (callee-exit-to-call-site)
// edge kind on -- spec.md §1 places the statement-level IR/CFG front-end
// out of scope, and nothing downstream (TFG builder, result surface)
// distinguishes a resolved call from its matching return. Kind is
// therefore scoped to the two kinds this graph actually produces: Call
// for a resolved static/virtual dispatch, Other for a reflective or
// otherwise-unresolved callee (internal/reflection's unknown-invoke
// modeling).
package callgraph

import (
	"sync"

	"github.com/o2lab/taint/internal/cs"
)

// Kind classifies a call-graph edge.
type Kind int

const (
	Call Kind = iota
	Other
)

func (k Kind) String() string {
	switch k {
	case Call:
		return "CALL"
	case Other:
		return "OTHER"
	default:
		return "?"
	}
}

// Edge is one (caller, site, callee) call-graph edge.
type Edge struct {
	Caller *cs.CSMethod
	Site   *cs.CSCallSite
	Callee *cs.CSMethod
	Kind   Kind
}

// Graph is the mutable, append-only call graph built during solving.
type Graph struct {
	mu sync.Mutex

	edges []*Edge
	seen  map[edgeKey]bool
	out   map[*cs.CSMethod][]*Edge
	in    map[*cs.CSMethod][]*Edge

	reachable map[*cs.CSMethod]bool
}

type edgeKey struct {
	site   *cs.CSCallSite
	callee *cs.CSMethod
}

func New() *Graph {
	return &Graph{
		seen:      make(map[edgeKey]bool),
		out:       make(map[*cs.CSMethod][]*Edge),
		in:        make(map[*cs.CSMethod][]*Edge),
		reachable: make(map[*cs.CSMethod]bool),
	}
}

// AddEdge inserts e if its (site, callee) pair hasn't been seen before,
// reporting whether it was newly added.
func (g *Graph) AddEdge(e *Edge) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	k := edgeKey{e.Site, e.Callee}
	if g.seen[k] {
		return false
	}
	g.seen[k] = true
	g.edges = append(g.edges, e)
	g.out[e.Caller] = append(g.out[e.Caller], e)
	g.in[e.Callee] = append(g.in[e.Callee], e)
	return true
}

// MarkReachable records m as reachable, reporting whether it was newly
// discovered.
func (g *Graph) MarkReachable(m *cs.CSMethod) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reachable[m] {
		return false
	}
	g.reachable[m] = true
	return true
}

func (g *Graph) IsReachable(m *cs.CSMethod) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reachable[m]
}

func (g *Graph) Reachable() []*cs.CSMethod {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*cs.CSMethod, 0, len(g.reachable))
	for m := range g.reachable {
		out = append(out, m)
	}
	return out
}

func (g *Graph) Out(m *cs.CSMethod) []*Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Edge(nil), g.out[m]...)
}

func (g *Graph) In(m *cs.CSMethod) []*Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Edge(nil), g.in[m]...)
}

func (g *Graph) Edges() []*Edge {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Edge(nil), g.edges...)
}
