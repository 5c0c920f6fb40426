// Package pta implements the Solver (spec.md §4.2): a worklist-driven
// monotone fixpoint over a pointer-flow graph built on the fly, with
// on-demand call-graph expansion and virtual dispatch resolution, and a
// plugin-dispatch table invoked on new call edges and new points-to
// deltas. Grounded on gopta/go/pointer's solveDefault (difference
// propagation over a sparse worklist) generalized from 0-CFA/Andersen to
// the spec's context-sensitive elements.
package pta

import (
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/o2lab/taint/internal/callgraph"
	"github.com/o2lab/taint/internal/classes"
	"github.com/o2lab/taint/internal/context"
	"github.com/o2lab/taint/internal/cs"
	"github.com/o2lab/taint/internal/heap"
	"github.com/o2lab/taint/internal/ir"
	"github.com/o2lab/taint/internal/plugin"
	"github.com/o2lab/taint/internal/pta/queue"
)

// Config formulates a single pointer/taint-analysis run.
type Config struct {
	Hierarchy       classes.Hierarchy
	Heap            *heap.Model
	ContextSelector context.Selector
	Plugins         *plugin.Table
	Entries         []*ir.Method
}

// Solver is the fixpoint engine. It is not safe for concurrent external
// use: per spec.md §5, "single-threaded cooperative inside the solver."
type Solver struct {
	hierarchy classes.Hierarchy
	heapModel *heap.Model
	ctxSel    context.Selector
	plugins   *plugin.Table

	csMgr *cs.Manager
	cg    *callgraph.Graph

	work queue.Queue[workItem]

	pfgOut  map[cs.Pointer][]*pfgEdge
	pfgSeen map[edgeKey]bool
	ofg     *OFG

	fieldWatchers map[*cs.CSVar][]*fieldAccess
	virtualSites  map[*cs.CSVar][]*pendingVirtualCall
	argWatchers   map[*cs.CSVar][]*argWatcher

	dispatchCache map[dispatchKey]dispatchResult

	methodBody map[*cs.CSMethod]bool // not read or written after construction; body processing is gated by cg.MarkReachable

	warnings  []Warning
	unsound   []UnsoundInvoke
	cancelled int32 // atomic bool, per §5 "single atomic stop flag"
}

func newSolver(cfg Config) *Solver {
	return &Solver{
		hierarchy:     cfg.Hierarchy,
		heapModel:     cfg.Heap,
		ctxSel:        cfg.ContextSelector,
		plugins:       cfg.Plugins,
		csMgr:         cs.NewManager(),
		cg:            callgraph.New(),
		pfgOut:        make(map[cs.Pointer][]*pfgEdge),
		pfgSeen:       make(map[edgeKey]bool),
		ofg:           newOFG(),
		fieldWatchers: make(map[*cs.CSVar][]*fieldAccess),
		virtualSites:  make(map[*cs.CSVar][]*pendingVirtualCall),
		argWatchers:   make(map[*cs.CSVar][]*argWatcher),
		dispatchCache: make(map[dispatchKey]dispatchResult),
		methodBody:    make(map[*cs.CSMethod]bool),
	}
}

// Cancel requests that the solver stop at the next worklist item,
// returning a partial (internally consistent) result (spec.md §5).
func (s *Solver) Cancel() { atomic.StoreInt32(&s.cancelled, 1) }

func (s *Solver) isCancelled() bool { return atomic.LoadInt32(&s.cancelled) != 0 }

// Solve runs the fixpoint to quiescence and returns the result. A handler
// panic is fatal to the solve and surfaces as a non-nil error (spec.md
// §4.2 "Failure semantics"); malformed IR likewise surfaces as an error
// rather than a partial result.
func Solve(cfg Config) (result *Result, err error) {
	s := newSolver(cfg)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pta: fatal: %v", r)
			result = nil
		}
	}()

	for _, m := range cfg.Entries {
		s.discoverMethod(context.Empty, m)
	}
	s.run()

	return &Result{
		CSManager:      s.csMgr,
		CallGraph:      s.cg,
		OFG:            s.ofg,
		Warnings:       s.warnings,
		UnsoundInvokes: s.unsound,
		Cancelled:      s.isCancelled(),
	}, nil
}

func (s *Solver) fatalf(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}

func (s *Solver) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Warn(msg)
	s.warnings = append(s.warnings, Warning{Message: msg})
}

func (s *Solver) recordUnsound(site *cs.CSCallSite, reason string) {
	log.Debugf("unsound invoke at %s: %s", site, reason)
	s.unsound = append(s.unsound, UnsoundInvoke{Site: site, Reason: reason})
}

// run drains the worklist to quiescence (spec.md §4.2 "Main loop").
func (s *Solver) run() {
	for !s.work.Empty() {
		if s.isCancelled() {
			return
		}

		item := s.work.Pop()
		p := item.p

		newObjs := p.PointsTo().Merge(item.delta)
		if newObjs == nil || newObjs.IsEmpty() {
			continue // no new objects actually added: drop the item
		}

		for _, e := range s.pfgOut[p] {
			var out *cs.PointsToSet
			if e.filter != nil {
				out = e.filter(newObjs)
			} else {
				out = newObjs
			}
			s.pushWork(e.to, out)
		}

		if v, ok := p.(*cs.CSVar); ok {
			for _, fa := range s.fieldWatchers[v] {
				s.applyFieldAccess(fa, newObjs)
			}
			for _, aw := range s.argWatchers[v] {
				if aw.spec.OnPointsTo != nil {
					aw.spec.OnPointsTo(s.api(), aw.edge, aw.index, newObjs)
				}
			}
			s.attemptDispatch(v, newObjs)
		}
	}
}

func (s *Solver) pushWork(p cs.Pointer, delta *cs.PointsToSet) {
	if delta == nil || delta.IsEmpty() {
		return
	}
	s.work.Push(workItem{p: p, delta: delta})
}

func (s *Solver) singleton(o *cs.CSObj) *cs.PointsToSet {
	pts := s.csMgr.MakePointsToSet()
	pts.Add(o)
	return pts
}

// addPFGEdge installs a new PFG edge from -> to (with optional filter) if
// it hasn't been installed before, and immediately seeds the worklist with
// from's current points-to set passed through the filter. kind records the
// OFG classification spec.md §4.6 uses to build the taint flow graph.
func (s *Solver) addPFGEdge(from, to cs.Pointer, filter func(*cs.PointsToSet) *cs.PointsToSet, kind OFGEdgeKind) {
	k := edgeKey{from, to}
	if s.pfgSeen[k] {
		return
	}
	s.pfgSeen[k] = true
	s.pfgOut[from] = append(s.pfgOut[from], &pfgEdge{to: to, filter: filter, kind: kind})
	s.ofg.add(&OFGEdge{From: from, To: to, Kind: kind})

	cur := from.PointsTo()
	if cur.IsEmpty() {
		return
	}
	if filter != nil {
		cur = filter(cur)
	}
	s.pushWork(to, cur)
}

// recordOFGOnly records a structural OFG edge that the solver propagates
// through some mechanism other than a generic PFG edge -- namely the
// per-object receiver binding of a resolved virtual dispatch (spec.md §4.2
// step 5), where propagation must stay scoped to the one dispatched object
// rather than flowing every object on the receiver's points-to set.
func (s *Solver) recordOFGOnly(from, to cs.Pointer, kind OFGEdgeKind) {
	k := edgeKey{from, to}
	if s.pfgSeen[k] {
		return
	}
	s.pfgSeen[k] = true
	s.ofg.add(&OFGEdge{From: from, To: to, Kind: kind})
}
