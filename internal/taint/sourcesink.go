package taint

import (
	log "github.com/sirupsen/logrus"

	"github.com/o2lab/taint/internal/callgraph"
	"github.com/o2lab/taint/internal/classes"
	"github.com/o2lab/taint/internal/config"
	"github.com/o2lab/taint/internal/context"
	"github.com/o2lab/taint/internal/cs"
	"github.com/o2lab/taint/internal/ir"
	"github.com/o2lab/taint/internal/plugin"
)

// formalVar resolves index (BASE/RESULT/n>=0) against m's own formal
// slots, as opposed to ir.Invoke.Actual which resolves against a call
// site's arguments. Used by ParamSource rules and by SourceNode, both of
// which name a formal directly rather than a call-site actual.
func formalVar(m *ir.Method, index int) *ir.Var {
	switch {
	case index == ir.Base:
		return m.This
	case index == ir.Result:
		return m.Ret
	case index >= 0 && index < len(m.Params):
		return m.Params[index]
	default:
		return nil
	}
}

// RegisterSources installs CallSource and ParamSource handlers (spec.md
// §4.5) for every resolvable rule.
func RegisterSources(table *plugin.Table, hierarchy classes.Hierarchy, mgr *Manager, rules []config.SourceRule) {
	for _, rule := range rules {
		method, ok := hierarchy.ResolveMethod(rule.Method)
		if !ok {
			log.Warnf("taint: source rule references unresolvable method %q, skipping", rule.Method)
			continue
		}
		index := rule.Index
		typ := ir.NamedType(rule.Type)

		switch rule.Kind {
		case config.CallSource:
			table.Register(method.Signature, &plugin.HookSpec{
				OnCallEdge: func(api plugin.API, edge *callgraph.Edge) {
					actual := edge.Site.Invoke.Actual(index)
					if actual == nil {
						api.RecordUnsound(edge.Site, "call-source index has no matching actual")
						return
					}
					sp := CallSourcePoint{Site: edge.Site, Index: index}
					obj := mgr.MakeTaint(sp, typ)
					csObj := api.CSManager().GetCSObj(context.Empty, obj)
					api.AddVarPointsTo(edge.Site.Ctx, actual, csObj)
				},
			})

		case config.ParamSource:
			table.RegisterMethodReached(method.Signature, func(api plugin.API, callee *cs.CSMethod) {
				formal := formalVar(callee.Method, index)
				if formal == nil {
					api.Warn("taint: param-source rule for %s has no formal at index %d", method.Signature, index)
					return
				}
				sp := ParamSourcePoint{Method: callee, Index: index}
				obj := mgr.MakeTaint(sp, typ)
				csObj := api.CSManager().GetCSObj(context.Empty, obj)
				api.AddVarPointsTo(callee.Ctx, formal, csObj)
			})
		}
	}
}

// RegisterSinks installs sink-hit recording (spec.md §4.5) for every
// resolvable rule, appending witnessed flows to flows.
func RegisterSinks(table *plugin.Table, hierarchy classes.Hierarchy, mgr *Manager, flows *FlowSet, rules []config.SinkRule) {
	for _, rule := range rules {
		method, ok := hierarchy.ResolveMethod(rule.Method)
		if !ok {
			log.Warnf("taint: sink rule references unresolvable method %q, skipping", rule.Method)
			continue
		}
		index := rule.Index
		table.Register(method.Signature, &plugin.HookSpec{
			Indices: []int{index},
			OnPointsTo: func(api plugin.API, edge *callgraph.Edge, idx int, delta *cs.PointsToSet) {
				for _, o := range delta.Objects() {
					if !mgr.IsTaint(o.Obj) {
						continue
					}
					sp, ok := mgr.GetSourcePoint(o.Obj)
					if !ok {
						continue
					}
					flows.Add(TaintFlow{Source: sp, Sink: SinkPoint{Site: edge.Site, Index: idx}})
				}
			},
		})
	}
}
