// Package reflection is the minimal Solar-style reflection plugin spec.md
// §1 alludes to ("Reflection modeling (Solar) is described only at the
// level of the solver hooks it uses; its rule set is an illustrative
// instance, not the core"). It recognizes two well-known reflective call
// shapes -- Class.forName and Class.newInstance -- plus, when
// Config.InvokeSignature is set, a Method.invoke-style call, and models
// everything else about reflective dispatch as an
// UnknownReflectiveObj, recording the call site as unsound rather than
// guessing at a target class (spec.md §8 scenario 5).
package reflection

import (
	"github.com/o2lab/taint/internal/callgraph"
	"github.com/o2lab/taint/internal/context"
	"github.com/o2lab/taint/internal/cs"
	"github.com/o2lab/taint/internal/heap"
	"github.com/o2lab/taint/internal/ir"
	"github.com/o2lab/taint/internal/plugin"
)

// Config names the reflective method signatures this plugin recognizes and
// the types it should tag its mock objects with.
type Config struct {
	ForNameSignature     string
	NewInstanceSignature string
	// InvokeSignature, if set, names a java.lang.reflect.Method.invoke-style
	// call: one whose target method cannot be resolved from the receiver's
	// declared type at all. Left empty, no such hook is installed.
	InvokeSignature string
	ClassType       ir.Type
	ObjectType      ir.Type
}

// unknownReflectiveCallee is the shared sentinel callee for reflective
// calls whose real target cannot be determined (supplemented feature:
// "Call-graph edge kind OTHER... the one concrete producer of it in the
// core"). It has no parameters or body: plugins reading this edge should
// treat it as an opaque unresolved call, not dispatch into it further.
var unknownReflectiveCallee = &ir.Method{Signature: "<reflective: unresolved target>()"}

// Register installs the forName/newInstance/invoke hooks into table.
func Register(table *plugin.Table, cfg Config) {
	table.Register(cfg.ForNameSignature, &plugin.HookSpec{
		OnCallEdge: func(api plugin.API, edge *callgraph.Edge) { onForName(api, edge, cfg) },
	})

	table.Register(cfg.NewInstanceSignature, &plugin.HookSpec{
		Indices: []int{ir.Base},
		OnPointsTo: func(api plugin.API, edge *callgraph.Edge, index int, delta *cs.PointsToSet) {
			onNewInstance(api, edge, cfg)
		},
	})

	if cfg.InvokeSignature != "" {
		table.Register(cfg.InvokeSignature, &plugin.HookSpec{
			OnCallEdge: func(api plugin.API, edge *callgraph.Edge) {
				api.AddCallEdge(edge.Caller, edge.Site, unknownReflectiveCallee, callgraph.Other)
				api.RecordUnsound(edge.Site, "reflective Method.invoke target cannot be resolved")
			},
		})
	}
}

// onForName resolves the argument to Class.forName. A string-constant
// argument yields the corresponding ClassConstant mock object; anything
// else is unsound -- recorded, and modeled as a class-shaped
// UnknownReflectiveObj so downstream newInstance() calls still get
// *something* to dispatch against.
func onForName(api plugin.API, edge *callgraph.Edge, cfg Config) {
	arg := edge.Site.Invoke.Actual(0)
	result := edge.Site.Invoke.Result
	if arg == nil || result == nil {
		return
	}

	argCSVar := api.CSManager().GetCSVar(edge.Site.Ctx, arg)
	resolved := false
	for _, o := range argCSVar.PointsTo().Objects() {
		mo, ok := o.Obj.(*heap.MockObj)
		if !ok || mo.Kind != "string-const" {
			continue
		}
		name, _ := mo.Key.(string)
		cls := api.Heap().ClassConstant(name, cfg.ClassType)
		csObj := api.CSManager().GetCSObj(context.Empty, cls)
		api.AddVarPointsTo(edge.Site.Ctx, result, csObj)
		resolved = true
	}
	if resolved {
		return
	}

	api.RecordUnsound(edge.Site, "Class.forName argument is not a string constant")
	unknown := api.Heap().Mock("reflect-unknown-class", edge.Site, cfg.ClassType)
	csObj := api.CSManager().GetCSObj(context.Empty, unknown)
	api.AddVarPointsTo(edge.Site.Ctx, result, csObj)
}

// onNewInstance never attempts real class-loading: any receiver reaching
// a newInstance() call site yields exactly one UnknownReflectiveObj at
// the call's result, keyed by call site so repeated firings stay
// idempotent (spec.md §8 scenario 5, "o's points-to set contains exactly
// one UnknownReflectiveObj").
func onNewInstance(api plugin.API, edge *callgraph.Edge, cfg Config) {
	result := edge.Site.Invoke.Result
	if result == nil {
		return
	}
	unknown := api.Heap().Mock("reflect-unknown-obj", edge.Site, cfg.ObjectType)
	csObj := api.CSManager().GetCSObj(context.Empty, unknown)
	api.AddVarPointsTo(edge.Site.Ctx, result, csObj)
}
