package pta

import "github.com/o2lab/taint/internal/cs"

// OFGEdgeKind classifies an object-flow-graph edge the way spec.md §4.6
// classifies them for TFG construction: an "unconditional" kind is always
// kept when building the taint flow graph; a "conditional" kind is kept
// only when its target's points-to set already contains a taint object.
type OFGEdgeKind int

const (
	LocalAssign OFGEdgeKind = iota
	Cast
	InstanceStore
	InstanceLoad
	ArrayStore
	ArrayLoad
	ThisPassing
	ParameterPassing
	ReturnPassing
)

func (k OFGEdgeKind) String() string {
	switch k {
	case LocalAssign:
		return "LOCAL_ASSIGN"
	case Cast:
		return "CAST"
	case InstanceStore:
		return "INSTANCE_STORE"
	case InstanceLoad:
		return "INSTANCE_LOAD"
	case ArrayStore:
		return "ARRAY_STORE"
	case ArrayLoad:
		return "ARRAY_LOAD"
	case ThisPassing:
		return "THIS_PASSING"
	case ParameterPassing:
		return "PARAMETER_PASSING"
	case ReturnPassing:
		return "RETURN"
	default:
		return "?"
	}
}

// Conditional reports whether this kind is kept during TFG construction
// only when its target already carries a taint object (spec.md §4.6 step
// 3). CAST, INSTANCE_LOAD, ARRAY_LOAD and RETURN are conditional; every
// other kind is unconditional.
func (k OFGEdgeKind) Conditional() bool {
	switch k {
	case Cast, InstanceLoad, ArrayLoad, ReturnPassing:
		return true
	default:
		return false
	}
}

// OFGEdge is one edge of the object flow graph (spec.md §4.6, glossary
// "OFG"): the solver's PFG plus enough kind information for TFG
// construction, but stripped of type filters -- TFG conditioning happens
// on the target's live points-to set, not on a type predicate.
type OFGEdge struct {
	From, To cs.Pointer
	Kind     OFGEdgeKind
}

// OFG is the immutable-after-solve object flow graph exposed to
// downstream consumers (internal/tfg, internal/result).
type OFG struct {
	edges []*OFGEdge
	out   map[cs.Pointer][]*OFGEdge
}

func newOFG() *OFG {
	return &OFG{out: make(map[cs.Pointer][]*OFGEdge)}
}

func (g *OFG) add(e *OFGEdge) {
	g.edges = append(g.edges, e)
	g.out[e.From] = append(g.out[e.From], e)
}

// Out returns the edges leaving p.
func (g *OFG) Out(p cs.Pointer) []*OFGEdge { return g.out[p] }

// Edges returns every edge, in insertion order.
func (g *OFG) Edges() []*OFGEdge { return append([]*OFGEdge(nil), g.edges...) }
