package pta

import (
	"github.com/o2lab/taint/internal/callgraph"
	"github.com/o2lab/taint/internal/context"
	"github.com/o2lab/taint/internal/cs"
	"github.com/o2lab/taint/internal/heap"
	"github.com/o2lab/taint/internal/ir"
	"github.com/o2lab/taint/internal/plugin"
)

// api returns the plugin.API view of the solver. Declared as a method
// (rather than a field) so every call site gets the same underlying
// *Solver without an extra allocation.
func (s *Solver) api() plugin.API { return solverAPI{s} }

// solverAPI wraps a *Solver so the plugin.API surface stays separate from
// the solver's internal methods.
type solverAPI struct{ s *Solver }

func (a solverAPI) AddVarPointsTo(ctx context.Context, v *ir.Var, objs ...*cs.CSObj) {
	a.AddPointsTo(a.s.csMgr.GetCSVar(ctx, v), objs...)
}

func (a solverAPI) AddPointsTo(pointer cs.Pointer, objs ...*cs.CSObj) {
	pts := a.s.csMgr.MakePointsToSet()
	for _, o := range objs {
		pts.Add(o)
	}
	a.s.pushWork(pointer, pts)
}

func (a solverAPI) AddStmts(csMethod *cs.CSMethod, stmts []ir.Stmt) {
	for _, st := range stmts {
		a.s.processStmt(csMethod, st)
		for _, hook := range a.s.plugins.NewStmtHooks() {
			hook(a, csMethod, st)
		}
	}
}

func (a solverAPI) MakePointsToSet() *cs.PointsToSet { return a.s.csMgr.MakePointsToSet() }

func (a solverAPI) GetPointsToSetOf(pointer cs.Pointer) *cs.PointsToSet { return pointer.PointsTo() }

func (a solverAPI) CSManager() *cs.Manager { return a.s.csMgr }

func (a solverAPI) Heap() *heap.Model { return a.s.heapModel }

func (a solverAPI) AddCallEdge(caller *cs.CSMethod, site *cs.CSCallSite, callee *ir.Method, kind callgraph.Kind) {
	csCallee := a.s.csMgr.GetCSMethod(context.Empty, callee)
	a.s.onNewCallEdge(site, caller, csCallee, kind)
}

func (a solverAPI) RecordUnsound(site *cs.CSCallSite, reason string) { a.s.recordUnsound(site, reason) }

func (a solverAPI) Warn(format string, args ...any) { a.s.warnf(format, args...) }
