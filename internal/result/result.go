// Package result implements the public read surface a driver queries after
// a solve: PointerAnalysisResult and its taint-specific extension,
// TaintAnalysisResult (spec.md §6, "Result surface (to downstream)").
package result

import (
	"github.com/o2lab/taint/internal/callgraph"
	"github.com/o2lab/taint/internal/context"
	"github.com/o2lab/taint/internal/cs"
	"github.com/o2lab/taint/internal/ir"
	"github.com/o2lab/taint/internal/pta"
	"github.com/o2lab/taint/internal/taint"
	"github.com/o2lab/taint/internal/tfg"
)

// PointerAnalysisResult wraps a completed *pta.Result with the query
// surface spec.md §6 names, plus the supplemented getContextsOf and
// first-class UnsoundInvokes accessors (SUPPLEMENTED FEATURES 1, 2).
type PointerAnalysisResult struct {
	raw *pta.Result
}

func NewPointerAnalysisResult(raw *pta.Result) *PointerAnalysisResult {
	return &PointerAnalysisResult{raw: raw}
}

// GetPointsToSet returns the union, over every context v was analyzed
// under, of v's points-to set.
func (r *PointerAnalysisResult) GetPointsToSet(v *ir.Var) *cs.PointsToSet {
	out := r.raw.CSManager.MakePointsToSet()
	for _, cv := range r.raw.CSManager.CSVarsOf(v) {
		out.AddSet(cv.PointsTo())
	}
	return out
}

// GetFieldPointsToSet returns the union, over every object any
// context-sensitive variant of base may point to, of that object's field
// points-to set -- i.e. the points-to set of `base.field`.
func (r *PointerAnalysisResult) GetFieldPointsToSet(base *ir.Var, field *ir.Field) *cs.PointsToSet {
	out := r.raw.CSManager.MakePointsToSet()
	for _, cv := range r.raw.CSManager.CSVarsOf(base) {
		for _, o := range cv.PointsTo().Objects() {
			out.AddSet(r.raw.CSManager.GetInstanceField(o, field).PointsTo())
		}
	}
	return out
}

// GetObjectFlowGraph exposes the solver's OFG for downstream consumers
// (e.g. a driver that wants to re-run TFG construction with a different
// onlyApp policy without resolving).
func (r *PointerAnalysisResult) GetObjectFlowGraph() *pta.OFG { return r.raw.OFG }

// CallGraph exposes the call-graph accessors (spec.md §6).
func (r *PointerAnalysisResult) CallGraph() *callgraph.Graph { return r.raw.CallGraph }

// GetContextsOf enumerates every context method was ever analyzed under
// (SUPPLEMENTED FEATURES item 1, Tai-e's PointerAnalysisResult.getContextsOf).
func (r *PointerAnalysisResult) GetContextsOf(method *ir.Method) []context.Context {
	var out []context.Context
	for _, cm := range r.raw.CSManager.CSMethodsOf(method) {
		out = append(out, cm.Ctx)
	}
	return out
}

func (r *PointerAnalysisResult) Warnings() []pta.Warning { return r.raw.Warnings }

// UnsoundInvokes promotes unsound-dispatch reporting to a first-class
// result field (SUPPLEMENTED FEATURES item 2, Tai-e's
// PointerAnalysisResultEx).
func (r *PointerAnalysisResult) UnsoundInvokes() []pta.UnsoundInvoke { return r.raw.UnsoundInvokes }

func (r *PointerAnalysisResult) Cancelled() bool { return r.raw.Cancelled }

// TaintAnalysisResult extends PointerAnalysisResult with the taint-specific
// surface spec.md §6 adds: "the set of TaintFlows and the pruned
// TaintFlowGraph".
type TaintAnalysisResult struct {
	*PointerAnalysisResult
	flows []taint.TaintFlow
	graph *tfg.TaintFlowGraph
}

// NewTaintAnalysisResult builds the taint result surface, running the TFG
// Builder once over the solve's recorded OFG, transfer index and flows.
func NewTaintAnalysisResult(raw *pta.Result, plug *taint.Plugin, onlyApp bool) *TaintAnalysisResult {
	flows := plug.Flows.Flows()
	graph := tfg.Build(tfg.Config{
		CSManager: raw.CSManager,
		OFG:       raw.OFG,
		Transfers: plug.Transfer.Transfers(),
		Flows:     flows,
		Manager:   plug.Manager,
		OnlyApp:   onlyApp,
	})
	return &TaintAnalysisResult{
		PointerAnalysisResult: NewPointerAnalysisResult(raw),
		flows:                 flows,
		graph:                 graph,
	}
}

func (r *TaintAnalysisResult) TaintFlows() []taint.TaintFlow {
	return append([]taint.TaintFlow(nil), r.flows...)
}

func (r *TaintAnalysisResult) TaintFlowGraph() *tfg.TaintFlowGraph { return r.graph }
