package pta

import (
	"github.com/o2lab/taint/internal/callgraph"
	"github.com/o2lab/taint/internal/cs"
	"github.com/o2lab/taint/internal/ir"
	"github.com/o2lab/taint/internal/plugin"
)

// pfgEdge is one directed pointer-flow-graph edge, optionally carrying a
// type filter (spec.md §4.2: "CAST edges drop objects whose type is
// incompatible with the cast target").
type pfgEdge struct {
	to     cs.Pointer
	filter func(*cs.PointsToSet) *cs.PointsToSet
	kind   OFGEdgeKind
}

type edgeKey struct {
	from, to cs.Pointer
}

// workItem is a worklist entry: `(Pointer p, PointsToSet delta)` where
// delta is the candidate set of newly-seen objects for p (spec.md §4.2).
type workItem struct {
	p     cs.Pointer
	delta *cs.PointsToSet
}

// fieldAccess binds a load/store field-or-array statement to the method
// context it runs under, so that once the statement's base variable gains
// a new object, the solver can unfold the access against that concrete
// object (spec.md §4.2: "load/store edges unfold field/array access").
type fieldAccess struct {
	csMethod *cs.CSMethod
	stmt     ir.Stmt
}

// pendingVirtualCall binds a virtual Invoke to the CSMethod it runs under,
// awaiting dispatch resolution against new objects arriving at its
// receiver (spec.md §4.2 step 5).
type pendingVirtualCall struct {
	csMethod *cs.CSMethod
	invoke   *ir.Invoke
	site     *cs.CSCallSite
}

type dispatchKey struct {
	obj *cs.CSObj
	ref *ir.MethodRef
}

type dispatchResult struct {
	method *ir.Method
	ok     bool
}

// argWatcher fires a plugin's registered PointsToHook whenever its watched
// actual-argument CSVar gains new objects (spec.md §4.2, "Plugin API").
type argWatcher struct {
	edge  *callgraph.Edge
	index int
	spec  *plugin.HookSpec
}

// Warning is a non-fatal analysis diagnostic (spec.md §7).
type Warning struct {
	Message string
}

// UnsoundInvoke records an invoke site whose dispatch could not be
// resolved soundly (spec.md §4.2, §7, §8 scenario 5).
type UnsoundInvoke struct {
	Site   *cs.CSCallSite
	Reason string
}

// Result is the raw output of Solve: everything internal/result's public
// PointerAnalysisResult surface is built from.
type Result struct {
	CSManager      *cs.Manager
	CallGraph      *callgraph.Graph
	OFG            *OFG
	Warnings       []Warning
	UnsoundInvokes []UnsoundInvoke
	Cancelled      bool
}
