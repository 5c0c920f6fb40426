// Package plugin defines the hook registration API that the Solver
// dispatches through (spec.md §4.2 "Plugin API", design note §9 "plugin
// dispatch"). The teacher's annotation-based registration (Tai-e scans
// classes for @OnCall / @OnFinish-style annotations) is re-expressed here
// as a plain table built once at plugin-set construction time, keyed by
// callee signature, exactly as the design note prescribes.
package plugin

import (
	"github.com/o2lab/taint/internal/callgraph"
	"github.com/o2lab/taint/internal/context"
	"github.com/o2lab/taint/internal/cs"
	"github.com/o2lab/taint/internal/heap"
	"github.com/o2lab/taint/internal/ir"
)

// Argument index convention shared with ir.Invoke.Actual: BASE=-1,
// RESULT=-2, n>=0 is the n-th actual argument.
const (
	Base   = ir.Base
	Result = ir.Result
)

// API is the set of public mutators a plugin hook may call (spec.md §4.2,
// "Public mutators available to plugins"). The Solver implements it; it is
// declared here, not in package pta, so that taint/reflection plugins
// never need to import the solver.
type API interface {
	// AddVarPointsTo adds objs to the CSVar (ctx, v).
	AddVarPointsTo(ctx context.Context, v *ir.Var, objs ...*cs.CSObj)

	// AddPointsTo adds objs to an arbitrary pointer (CSVar, InstanceField,
	// ArrayIndex or StaticField).
	AddPointsTo(pointer cs.Pointer, objs ...*cs.CSObj)

	// AddStmts injects synthetic IR statements into csMethod's reachable
	// body, re-triggering statement-level hooks for them (§4.4, §9).
	AddStmts(csMethod *cs.CSMethod, stmts []ir.Stmt)

	// MakePointsToSet allocates an empty points-to set.
	MakePointsToSet() *cs.PointsToSet

	// GetPointsToSetOf reads a pointer's current points-to set. Never nil.
	GetPointsToSetOf(pointer cs.Pointer) *cs.PointsToSet

	// CSManager exposes the shared CS Manager, e.g. so a plugin can turn a
	// formal parameter into its CSVar under a callee's context.
	CSManager() *cs.Manager

	// Heap exposes the shared Heap Model, so a plugin can mint mock
	// objects (taint carriers, reflection unknowns).
	Heap() *heap.Model

	// AddCallEdge installs a call-graph edge of the given kind from caller
	// through site to callee (under the empty context, since the callee is
	// typically a synthetic sentinel rather than a resolved method), wiring
	// its parameter/return PFG edges and firing any hooks registered
	// against it, exactly as a solver-discovered edge would. Used by the
	// reflection plugin to record reflective dispatch as an OTHER-kind
	// call-graph edge (spec.md §3 call-graph edge kinds).
	AddCallEdge(caller *cs.CSMethod, site *cs.CSCallSite, callee *ir.Method, kind callgraph.Kind)

	// RecordUnsound records a site whose dispatch/resolution a plugin
	// could not handle soundly (e.g. a CallSource rule whose index names no
	// actual at the call site). Surfaces in Result.UnsoundInvokes.
	RecordUnsound(site *cs.CSCallSite, reason string)

	// Warn records a non-fatal diagnostic (§7), logged and surfaced in
	// Result.Warnings.
	Warn(format string, args ...any)
}

// PointsToHook fires whenever the points-to set of an argument CSVar the
// plugin registered interest in (via HookSpec.Indices) gains new objects.
// The full edge is passed (not just site/callee) so a handler can reach
// the caller's CSMethod, e.g. to scan its IR for the transfer handler's
// back-propagation rewrite (spec.md §4.4).
type PointsToHook func(api API, edge *callgraph.Edge, index int, delta *cs.PointsToSet)

// CallEdgeHook fires once per new call edge to the callee signature the
// plugin registered against.
type CallEdgeHook func(api API, edge *callgraph.Edge)

// MethodReachedHook fires once per newly reachable CSMethod, i.e. the
// first time callee becomes reachable under each distinct context,
// regardless of how it was reached (direct call, virtual dispatch, or an
// analysis entry point). Grounds
// ParamSource's "on first reach of method" semantics (spec.md §4.5).
type MethodReachedHook func(api API, callee *cs.CSMethod)

// NewStmtHook fires once per IR statement the solver encounters while
// expanding a newly reachable method (including synthetic statements
// injected via API.AddStmts).
type NewStmtHook func(api API, csMethod *cs.CSMethod, stmt ir.Stmt)

// HookSpec is one registration: the argument indices a PointsToHook cares
// about, plus the hook functions themselves (any of which may be nil).
type HookSpec struct {
	Indices    []int
	OnPointsTo PointsToHook
	OnCallEdge CallEdgeHook
}

// ParamFilter conditionally drops objects flowing into one specific
// formal parameter across the structural parameter/this/result-passing
// PFG edge, rather than merely observing what already arrived. This is
// the "hook-filter" sanitizer implementation of spec.md §4.5 -- the one
// capable of guaranteeing the sanitized formal never observes a taint
// object, matching the strict reading of the sanitizer-removal property
// (spec.md §8).
type ParamFilter func(in *cs.PointsToSet) *cs.PointsToSet

type paramFilterKey struct {
	sig   string
	index int
}

// Table is the dispatch table: callee signature -> registered hooks.
// Built once at plugin-set construction time (design note §9).
type Table struct {
	bySignature     map[string][]*HookSpec
	onNewStmt       []NewStmtHook
	onMethodReached map[string][]MethodReachedHook
	paramFilters    map[paramFilterKey]ParamFilter
}

func NewTable() *Table {
	return &Table{
		bySignature:     make(map[string][]*HookSpec),
		onMethodReached: make(map[string][]MethodReachedHook),
		paramFilters:    make(map[paramFilterKey]ParamFilter),
	}
}

// RegisterParamFilter installs f on the structural edge feeding the
// index-th formal of every method with signature sig.
func (t *Table) RegisterParamFilter(sig string, index int, f ParamFilter) {
	t.paramFilters[paramFilterKey{sig, index}] = f
}

// ParamFilterFor returns the filter installed for (sig, index), or nil.
func (t *Table) ParamFilterFor(sig string, index int) ParamFilter {
	return t.paramFilters[paramFilterKey{sig, index}]
}

// Register adds spec under method signature sig.
func (t *Table) Register(sig string, spec *HookSpec) {
	t.bySignature[sig] = append(t.bySignature[sig], spec)
}

// RegisterNewStmt adds a statement-level callback, fired once per IR
// statement the solver encounters during reachable-method expansion.
func (t *Table) RegisterNewStmt(hook NewStmtHook) {
	t.onNewStmt = append(t.onNewStmt, hook)
}

// RegisterMethodReached adds a callback fired the first time sig becomes
// reachable under each distinct context.
func (t *Table) RegisterMethodReached(sig string, hook MethodReachedHook) {
	t.onMethodReached[sig] = append(t.onMethodReached[sig], hook)
}

// HooksFor returns the hooks registered against sig.
func (t *Table) HooksFor(sig string) []*HookSpec {
	return t.bySignature[sig]
}

// NewStmtHooks returns every registered statement-level callback.
func (t *Table) NewStmtHooks() []NewStmtHook {
	return t.onNewStmt
}

// MethodReachedHooksFor returns the method-reached callbacks registered
// against sig.
func (t *Table) MethodReachedHooksFor(sig string) []MethodReachedHook {
	return t.onMethodReached[sig]
}
