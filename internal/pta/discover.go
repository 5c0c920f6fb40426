package pta

import (
	"fmt"

	"github.com/o2lab/taint/internal/callgraph"
	"github.com/o2lab/taint/internal/context"
	"github.com/o2lab/taint/internal/cs"
	"github.com/o2lab/taint/internal/ir"
	"github.com/o2lab/taint/internal/plugin"
)

// discoverMethod marks (ctx, method) reachable if it wasn't already, fires
// any registered MethodReachedHooks exactly once, and walks its body
// (spec.md §4.2 "on-the-fly call-graph construction").
func (s *Solver) discoverMethod(ctx context.Context, method *ir.Method) *cs.CSMethod {
	csMethod := s.csMgr.GetCSMethod(ctx, method)
	if !s.cg.MarkReachable(csMethod) {
		return csMethod
	}

	for _, hook := range s.plugins.MethodReachedHooksFor(method.Signature) {
		hook(s.api(), csMethod)
	}

	for _, stmt := range method.Body {
		s.processStmt(csMethod, stmt)
		for _, hook := range s.plugins.NewStmtHooks() {
			hook(s.api(), csMethod, stmt)
		}
	}
	return csMethod
}

// processStmt installs the PFG edges (or watchers) a single statement
// contributes, under csMethod's context (spec.md §4.2, §6).
func (s *Solver) processStmt(csMethod *cs.CSMethod, stmt ir.Stmt) {
	ctx := csMethod.Ctx

	switch st := stmt.(type) {
	case *ir.CopyStmt:
		s.addPFGEdge(s.csMgr.GetCSVar(ctx, st.RHS), s.csMgr.GetCSVar(ctx, st.LHS), nil, LocalAssign)

	case *ir.CastStmt:
		castType := st.CastType
		filter := func(in *cs.PointsToSet) *cs.PointsToSet {
			out := s.csMgr.MakePointsToSet()
			for _, o := range in.Objects() {
				if s.hierarchy.IsSubtype(o.Type(), castType) {
					out.Add(o)
				}
			}
			return out
		}
		s.addPFGEdge(s.csMgr.GetCSVar(ctx, st.RHS), s.csMgr.GetCSVar(ctx, st.LHS), filter, Cast)

	case *ir.LoadFieldStmt:
		if st.Base == nil {
			s.addPFGEdge(s.csMgr.GetStaticField(st.FieldRef), s.csMgr.GetCSVar(ctx, st.LHS), nil, InstanceLoad)
			return
		}
		s.registerFieldAccess(csMethod, st, st.Base)

	case *ir.StoreFieldStmt:
		if st.Base == nil {
			s.addPFGEdge(s.csMgr.GetCSVar(ctx, st.RHS), s.csMgr.GetStaticField(st.FieldRef), nil, InstanceStore)
			return
		}
		s.registerFieldAccess(csMethod, st, st.Base)

	case *ir.LoadArrayStmt:
		s.registerFieldAccess(csMethod, st, st.Base)

	case *ir.StoreArrayStmt:
		s.registerFieldAccess(csMethod, st, st.Base)

	case *ir.InvokeStmt:
		s.processInvoke(csMethod, st.Call)

	case *ir.NewStmt:
		heapCtx := s.ctxSel.SelectHeapContext(ctx, st)
		obj := s.heapModel.Alloc(st)
		csObj := s.csMgr.GetCSObj(heapCtx, obj)
		s.pushWork(s.csMgr.GetCSVar(ctx, st.LHS), s.singleton(csObj))

	case *ir.ReturnStmt:
		if st.Value == nil || csMethod.Method.Ret == nil {
			return
		}
		s.addPFGEdge(s.csMgr.GetCSVar(ctx, st.Value), s.csMgr.GetCSVar(ctx, csMethod.Method.Ret), nil, LocalAssign)

	default:
		s.fatalf("pta: unknown statement kind %v", stmt.Kind())
	}
}

// registerFieldAccess binds stmt to baseVar's CSVar, so that new objects
// arriving at the base unfold the field/array access against each one
// (spec.md §4.2 "load/store edges unfold field/array access").
func (s *Solver) registerFieldAccess(csMethod *cs.CSMethod, stmt ir.Stmt, baseVar *ir.Var) {
	csBase := s.csMgr.GetCSVar(csMethod.Ctx, baseVar)
	fa := &fieldAccess{csMethod: csMethod, stmt: stmt}
	s.fieldWatchers[csBase] = append(s.fieldWatchers[csBase], fa)

	if cur := csBase.PointsTo(); !cur.IsEmpty() {
		s.applyFieldAccess(fa, cur)
	}
}

// applyFieldAccess unfolds fa.stmt against each newly-seen base object.
func (s *Solver) applyFieldAccess(fa *fieldAccess, newObjs *cs.PointsToSet) {
	ctx := fa.csMethod.Ctx
	for _, o := range newObjs.Objects() {
		switch st := fa.stmt.(type) {
		case *ir.LoadFieldStmt:
			instField := s.csMgr.GetInstanceField(o, st.FieldRef)
			s.addPFGEdge(instField, s.csMgr.GetCSVar(ctx, st.LHS), nil, InstanceLoad)
		case *ir.StoreFieldStmt:
			instField := s.csMgr.GetInstanceField(o, st.FieldRef)
			s.addPFGEdge(s.csMgr.GetCSVar(ctx, st.RHS), instField, nil, InstanceStore)
		case *ir.LoadArrayStmt:
			arrIdx := s.csMgr.GetArrayIndex(o)
			s.addPFGEdge(arrIdx, s.csMgr.GetCSVar(ctx, st.LHS), nil, ArrayLoad)
		case *ir.StoreArrayStmt:
			arrIdx := s.csMgr.GetArrayIndex(o)
			s.addPFGEdge(s.csMgr.GetCSVar(ctx, st.RHS), arrIdx, nil, ArrayStore)
		}
	}
}

// processInvoke handles a call site: virtual calls are parked against
// their receiver's CSVar awaiting dispatch resolution, static/special
// calls are resolved immediately against the hierarchy.
func (s *Solver) processInvoke(csMethod *cs.CSMethod, invoke *ir.Invoke) {
	ctx := csMethod.Ctx
	site := s.csMgr.GetCSCallSite(ctx, invoke)

	if invoke.Virtual {
		if invoke.Base == nil {
			s.fatalf("pta: virtual invoke %s has no receiver", invoke)
		}
		csBase := s.csMgr.GetCSVar(ctx, invoke.Base)
		pc := &pendingVirtualCall{csMethod: csMethod, invoke: invoke, site: site}
		s.virtualSites[csBase] = append(s.virtualSites[csBase], pc)

		if cur := csBase.PointsTo(); !cur.IsEmpty() {
			s.attemptDispatchFor(pc, cur)
		}
		return
	}

	callee, ok := s.hierarchy.ResolveMethod(invoke.Ref.Signature)
	if !ok {
		s.recordUnsound(site, fmt.Sprintf("unresolvable callee %s", invoke.Ref))
		return
	}
	calleeCtx := s.ctxSel.SelectMethodContext(ctx, invoke, nil, context.Empty)
	csCallee := s.csMgr.GetCSMethod(calleeCtx, callee)
	s.onNewCallEdge(site, csMethod, csCallee, callgraph.Call)

	if invoke.Base != nil && callee.This != nil {
		filter := paramFilter(s.plugins.ParamFilterFor(callee.Signature, ir.Base))
		s.addPFGEdge(s.csMgr.GetCSVar(ctx, invoke.Base), s.csMgr.GetCSVar(calleeCtx, callee.This), filter, ThisPassing)
	}
}

// onNewCallEdge installs the call graph edge (if new), wires the
// parameter/return PFG edges, expands the callee, and fires any plugin
// hooks registered against it (spec.md §4.2, §4.5).
func (s *Solver) onNewCallEdge(site *cs.CSCallSite, caller, callee *cs.CSMethod, kind callgraph.Kind) {
	edge := &callgraph.Edge{Caller: caller, Site: site, Callee: callee, Kind: kind}
	if !s.cg.AddEdge(edge) {
		return
	}

	s.discoverMethod(callee.Ctx, callee.Method)

	sig := callee.Method.Signature
	invoke := site.Invoke
	for i, param := range callee.Method.Params {
		actual := invoke.Actual(i)
		if actual == nil {
			continue
		}
		filter := paramFilter(s.plugins.ParamFilterFor(sig, i))
		s.addPFGEdge(s.csMgr.GetCSVar(site.Ctx, actual), s.csMgr.GetCSVar(callee.Ctx, param), filter, ParameterPassing)
	}
	if invoke.Result != nil && callee.Method.Ret != nil {
		filter := paramFilter(s.plugins.ParamFilterFor(sig, ir.Result))
		s.addPFGEdge(s.csMgr.GetCSVar(callee.Ctx, callee.Method.Ret), s.csMgr.GetCSVar(site.Ctx, invoke.Result), filter, ReturnPassing)
	}

	for _, spec := range s.plugins.HooksFor(sig) {
		if spec.OnCallEdge != nil {
			spec.OnCallEdge(s.api(), edge)
		}
		for _, index := range spec.Indices {
			actual := invoke.Actual(index)
			if actual == nil {
				continue
			}
			csArg := s.csMgr.GetCSVar(site.Ctx, actual)
			aw := &argWatcher{edge: edge, index: index, spec: spec}
			s.argWatchers[csArg] = append(s.argWatchers[csArg], aw)
			if cur := csArg.PointsTo(); !cur.IsEmpty() && spec.OnPointsTo != nil {
				spec.OnPointsTo(s.api(), edge, index, cur)
			}
		}
	}
}

// paramFilter adapts a possibly-nil plugin.ParamFilter to the pfgEdge
// filter signature (a nil plugin.ParamFilter means "no filter").
func paramFilter(f plugin.ParamFilter) func(*cs.PointsToSet) *cs.PointsToSet {
	if f == nil {
		return nil
	}
	return func(in *cs.PointsToSet) *cs.PointsToSet { return f(in) }
}
