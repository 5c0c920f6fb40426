// Package tfg implements the TFG Builder (spec.md §4.6): the post-solve
// pass that turns the solver's object flow graph, the taint transfer
// index and the set of witnessed TaintFlows into a pruned, immutable
// source-to-sink flow graph.
package tfg

import (
	"github.com/o2lab/taint/internal/cs"
	"github.com/o2lab/taint/internal/pta"
	"github.com/o2lab/taint/internal/taint"
)

// Edge is one edge of a built TaintFlowGraph: either an OFG edge (kind is
// one of pta's OFGEdgeKind names) or a synthetic transfer edge (kind
// "TRANSFER").
type Edge struct {
	From, To cs.Pointer
	Kind     string
}

// TaintFlowGraph is the immutable result of Build (spec.md §4.6, "Result
// is returned as an immutable TaintFlowGraph(sources, sinks, edges)").
type TaintFlowGraph struct {
	sources []cs.Pointer
	sinks   []cs.Pointer
	edges   []Edge
}

func (g *TaintFlowGraph) Sources() []cs.Pointer { return append([]cs.Pointer(nil), g.sources...) }
func (g *TaintFlowGraph) Sinks() []cs.Pointer    { return append([]cs.Pointer(nil), g.sinks...) }
func (g *TaintFlowGraph) Edges() []Edge          { return append([]Edge(nil), g.edges...) }

// Config bundles Build's inputs (spec.md §4.6, "Input: the object flow
// graph (OFG) produced by the solver, the recorded varTransfers index,
// the set of collected TaintFlows, and the Taint Manager").
type Config struct {
	CSManager *cs.Manager
	OFG       *pta.OFG
	Transfers []taint.TransferRecord
	Flows     []taint.TaintFlow
	Manager   *taint.Manager

	// OnlyApp activates the onlyApp pruning policy (spec.md §4.6 step 4).
	// Non-CSVar targets (instance fields, array slots, static fields) are
	// never pruned by this policy: the IR contract (spec.md §6) does not
	// expose which method allocated a given heap object, so there is no
	// sound way to classify those nodes as application or library code.
	// This is the asymmetric reading spec.md §9 leaves open ("whether
	// onlyApp ... applies to edges or nodes asymmetrically").
	OnlyApp bool
}

type candidateEdge struct {
	to          cs.Pointer
	kind        string
	conditional bool
}

// Build runs the five-step algorithm of spec.md §4.6 and returns the
// pruned, immutable result.
func Build(cfg Config) *TaintFlowGraph {
	sourceNodes := collectSourceNodes(cfg)
	sinkNodes := collectSinkNodes(cfg)
	adj := buildAdjacency(cfg)

	completeEdges := forwardReachable(sourceNodes, adj, cfg)
	r := reachesSink(completeEdges, sinkNodes)

	keptSources, keptEdges := prune(sourceNodes, completeEdges, r)

	return &TaintFlowGraph{
		sources: keptSources,
		sinks:   sinkNodes,
		edges:   keptEdges,
	}
}

// collectSourceNodes implements step 1: the OFG var-node of the source
// variable of every taint object, deduplicated.
func collectSourceNodes(cfg Config) []cs.Pointer {
	var out []cs.Pointer
	seen := make(map[cs.Pointer]bool)
	for _, obj := range cfg.Manager.GetTaintObjs() {
		sp, ok := cfg.Manager.GetSourcePoint(obj)
		if !ok {
			continue
		}
		node, ok := taint.SourceNode(cfg.CSManager, sp)
		if !ok || seen[node] {
			continue
		}
		seen[node] = true
		out = append(out, node)
	}
	return out
}

// collectSinkNodes implements step 2: the OFG var-node of every sink
// call's indexed actual, deduplicated.
func collectSinkNodes(cfg Config) []cs.Pointer {
	var out []cs.Pointer
	seen := make(map[cs.Pointer]bool)
	for _, f := range cfg.Flows {
		node, ok := taint.SinkNode(cfg.CSManager, f.Sink)
		if !ok || seen[node] {
			continue
		}
		seen[node] = true
		out = append(out, node)
	}
	return out
}

// buildAdjacency merges OFG edges with synthetic TransferEdges (spec.md
// §4.6 step 3).
func buildAdjacency(cfg Config) map[cs.Pointer][]candidateEdge {
	adj := make(map[cs.Pointer][]candidateEdge)
	if cfg.OFG != nil {
		for _, e := range cfg.OFG.Edges() {
			adj[e.From] = append(adj[e.From], candidateEdge{to: e.To, kind: e.Kind.String(), conditional: e.Kind.Conditional()})
		}
	}
	for _, tr := range cfg.Transfers {
		adj[tr.From] = append(adj[tr.From], candidateEdge{to: tr.To, kind: "TRANSFER", conditional: false})
	}
	return adj
}

// forwardReachable runs the BFS of step 3, applying the
// unconditional/conditional edge classification and the onlyApp policy of
// step 4, and returns the complete forward graph's edges.
func forwardReachable(sources []cs.Pointer, adj map[cs.Pointer][]candidateEdge, cfg Config) []Edge {
	visited := make(map[cs.Pointer]bool)
	var queue []cs.Pointer
	for _, s := range sources {
		if !visited[s] {
			visited[s] = true
			queue = append(queue, s)
		}
	}

	var edges []Edge
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		for _, ce := range adj[n] {
			if ce.conditional && !targetCarriesTaint(ce.to, cfg.Manager) {
				continue
			}
			if cfg.OnlyApp && !isApplication(ce.to) {
				continue
			}
			edges = append(edges, Edge{From: n, To: ce.to, Kind: ce.kind})
			if !visited[ce.to] {
				visited[ce.to] = true
				queue = append(queue, ce.to)
			}
		}
	}
	return edges
}

func targetCarriesTaint(p cs.Pointer, mgr *taint.Manager) bool {
	for _, o := range p.PointsTo().Objects() {
		if mgr.IsTaint(o.Obj) {
			return true
		}
	}
	return false
}

// isApplication reports whether p should be kept under the onlyApp policy.
// Non-CSVar nodes, and CSVars whose owning method the front-end left
// untracked, default to "application" (permissive) since the IR contract
// gives no sound basis to exclude them.
func isApplication(p cs.Pointer) bool {
	v, ok := p.(*cs.CSVar)
	if !ok {
		return true
	}
	if v.Var.Owner == nil {
		return true
	}
	return v.Var.Owner.IsApplication
}

// reachesSink computes R, the set of nodes that can reach a sink in the
// complete forward graph (spec.md §4.6 step 5), via reverse BFS from the
// sink nodes. A sink node trivially reaches itself.
func reachesSink(edges []Edge, sinks []cs.Pointer) map[cs.Pointer]bool {
	rev := make(map[cs.Pointer][]cs.Pointer)
	for _, e := range edges {
		rev[e.To] = append(rev[e.To], e.From)
	}

	r := make(map[cs.Pointer]bool)
	var queue []cs.Pointer
	for _, sk := range sinks {
		if !r[sk] {
			r[sk] = true
			queue = append(queue, sk)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, pred := range rev[n] {
			if !r[pred] {
				r[pred] = true
				queue = append(queue, pred)
			}
		}
	}
	return r
}

// prune runs the final BFS of step 5 from the source nodes, keeping only
// edges whose target is in r, and reports which sources survive (can
// themselves reach a sink).
func prune(sources []cs.Pointer, edges []Edge, r map[cs.Pointer]bool) ([]cs.Pointer, []Edge) {
	fwd := make(map[cs.Pointer][]Edge)
	for _, e := range edges {
		fwd[e.From] = append(fwd[e.From], e)
	}

	var keptSources []cs.Pointer
	visited := make(map[cs.Pointer]bool)
	var queue []cs.Pointer
	for _, s := range sources {
		if !r[s] {
			continue
		}
		keptSources = append(keptSources, s)
		if !visited[s] {
			visited[s] = true
			queue = append(queue, s)
		}
	}

	var kept []Edge
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range fwd[n] {
			if !r[e.To] {
				continue
			}
			kept = append(kept, e)
			if !visited[e.To] {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return keptSources, kept
}
