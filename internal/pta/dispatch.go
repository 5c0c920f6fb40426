package pta

import (
	"fmt"

	"github.com/o2lab/taint/internal/callgraph"
	"github.com/o2lab/taint/internal/cs"
	"github.com/o2lab/taint/internal/ir"
)

// attemptDispatch re-resolves every virtual call site parked on csBase
// against the objects in newObjs (spec.md §4.2 step 5, "virtual dispatch
// resolution"). A no-op when csBase isn't a receiver of any pending call.
func (s *Solver) attemptDispatch(csBase *cs.CSVar, newObjs *cs.PointsToSet) {
	pendings := s.virtualSites[csBase]
	if len(pendings) == 0 {
		return
	}
	for _, pc := range pendings {
		s.attemptDispatchFor(pc, newObjs)
	}
}

// attemptDispatchFor resolves pc.invoke against each object in objs,
// caching the (receiver CSObj, method-ref) -> method lookup since the
// hierarchy's dispatch rule never changes for a fixed pair (spec.md §4.1,
// "dispatch cache" design note).
func (s *Solver) attemptDispatchFor(pc *pendingVirtualCall, objs *cs.PointsToSet) {
	for _, o := range objs.Objects() {
		key := dispatchKey{obj: o, ref: pc.invoke.Ref}
		var dr dispatchResult
		if cached, ok := s.dispatchCache[key]; ok {
			dr = cached
		} else {
			m, ok := s.hierarchy.Dispatch(o.Type(), pc.invoke.Ref)
			dr = dispatchResult{method: m, ok: ok}
			s.dispatchCache[key] = dr
		}
		if !dr.ok {
			s.recordUnsound(pc.site, fmt.Sprintf("no override of %s on receiver type %s", pc.invoke.Ref, o.Type()))
			continue
		}

		calleeCtx := s.ctxSel.SelectMethodContext(pc.csMethod.Ctx, pc.invoke, o.Obj, o.Ctx)
		csCallee := s.csMgr.GetCSMethod(calleeCtx, dr.method)
		s.onNewCallEdge(pc.site, pc.csMethod, csCallee, callgraph.Call)

		if dr.method.This != nil {
			thisVar := s.csMgr.GetCSVar(calleeCtx, dr.method.This)
			singleton := s.singleton(o)
			if filter := s.plugins.ParamFilterFor(dr.method.Signature, ir.Base); filter != nil {
				singleton = filter(singleton)
			}
			s.pushWork(thisVar, singleton)

			// A generic PFG edge from the receiver to thisVar would be
			// unsound here: pc.invoke's base CSVar may carry many dynamic
			// types, but this dispatch resolved one concrete object o to
			// one concrete callee. Record the OFG edge for TFG traversal
			// without wiring it as a live propagation edge.
			s.recordOFGOnly(s.csMgr.GetCSVar(pc.csMethod.Ctx, pc.invoke.Base), thisVar, ThisPassing)
		}
	}
}
