package taint

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/o2lab/taint/internal/callgraph"
	"github.com/o2lab/taint/internal/classes"
	"github.com/o2lab/taint/internal/config"
	"github.com/o2lab/taint/internal/context"
	"github.com/o2lab/taint/internal/cs"
	"github.com/o2lab/taint/internal/ir"
	"github.com/o2lab/taint/internal/plugin"
)

// Handler applies TaintTransfer rules and their back-propagation rewrite
// (spec.md §4.4). It owns the temp-var counter and the memo of
// already-synthesized back-propagation sites, both of which must survive
// across repeated firings of the same rule.
type Handler struct {
	mgr     *Manager
	tempSeq int
	done    map[backPropKey]bool

	transfers    []TransferRecord
	transferSeen map[transferKey]bool
}

type backPropKey struct {
	caller *cs.CSMethod
	stmt   ir.Stmt
}

// TransferRecord is one instance of a TaintTransfer rule firing at a
// concrete call site: a synthetic edge from the watched actual argument to
// the rule's target variable, exposed so internal/tfg can fold it into the
// taint flow graph as spec.md §4.6 requires ("the recorded varTransfers
// index").
type TransferRecord struct {
	From, To cs.Pointer
}

type transferKey struct {
	from, to cs.Pointer
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{mgr: mgr, done: make(map[backPropKey]bool), transferSeen: make(map[transferKey]bool)}
}

// Transfers returns every TaintTransfer firing recorded so far.
func (h *Handler) Transfers() []TransferRecord {
	return append([]TransferRecord(nil), h.transfers...)
}

// RegisterTransfers installs one HookSpec per resolvable rule. Because the
// solver already re-fires a HookSpec's OnPointsTo both at call-edge
// creation (with the then-current points-to set) and on every later delta
// of the watched actual, a single registration covers both halves of
// spec.md §4.4 ("on new call edge" and "on new points-to delta").
func (h *Handler) RegisterTransfers(table *plugin.Table, hierarchy classes.Hierarchy, rules []config.TransferRule) {
	for _, rule := range rules {
		method, ok := hierarchy.ResolveMethod(rule.Method)
		if !ok {
			log.Warnf("taint: transfer rule references unresolvable method %q, skipping", rule.Method)
			continue
		}
		toIndex := rule.To
		newType := ir.NamedType(rule.Type)
		table.Register(method.Signature, &plugin.HookSpec{
			Indices:    []int{rule.From},
			OnPointsTo: h.transferHook(toIndex, newType),
		})
	}
}

func (h *Handler) transferHook(toIndex int, newType ir.Type) plugin.PointsToHook {
	return func(api plugin.API, edge *callgraph.Edge, index int, delta *cs.PointsToSet) {
		toVar := edge.Site.Invoke.Actual(toIndex)
		if toVar == nil {
			// RESULT requested but the call discards its result: spec.md
			// §4.4 says skip the rule for this site.
			return
		}

		var propagated []*cs.CSObj
		for _, o := range delta.Objects() {
			if !h.mgr.IsTaint(o.Obj) {
				continue
			}
			sp, ok := h.mgr.GetSourcePoint(o.Obj)
			if !ok {
				continue
			}
			newTaint := h.mgr.MakeTaint(sp, newType)
			propagated = append(propagated, api.CSManager().GetCSObj(context.Empty, newTaint))
		}
		if len(propagated) == 0 {
			return
		}

		toCSVar := api.CSManager().GetCSVar(edge.Site.Ctx, toVar)
		api.AddPointsTo(toCSVar, propagated...)

		if fromVar := edge.Site.Invoke.Actual(index); fromVar != nil {
			fromCSVar := api.CSManager().GetCSVar(edge.Site.Ctx, fromVar)
			tk := transferKey{from: fromCSVar, to: toCSVar}
			if !h.transferSeen[tk] {
				h.transferSeen[tk] = true
				h.transfers = append(h.transfers, TransferRecord{From: fromCSVar, To: toCSVar})
			}
		}

		h.backPropagate(api, edge, toIndex, toVar)
	}
}

// backPropagate implements spec.md §4.4's back-propagation rewrite: when a
// transfer writes into BASE or an argument, synthesize the field-write
// IR that a real mutation would have produced, so ordinary points-to
// propagation carries the taint through the aliased object.
func (h *Handler) backPropagate(api plugin.API, edge *callgraph.Edge, toIndex int, toVar *ir.Var) {
	if toIndex == ir.Base && edge.Callee.Method.IsConstructor {
		return
	}

	caller := edge.Caller
	for _, stmt := range caller.Method.Body {
		lf, ok := stmt.(*ir.LoadFieldStmt)
		if !ok || lf.Base == nil || lf.LHS != toVar {
			continue
		}

		key := backPropKey{caller: caller, stmt: stmt}
		if h.done[key] {
			continue
		}
		h.done[key] = true

		h.tempSeq++
		tmpBase := &ir.Var{Name: fmt.Sprintf("%%taint-temp-base-%d", h.tempSeq), Type: lf.Base.Type}
		copyBase := &ir.CopyStmt{LHS: tmpBase, RHS: lf.Base}

		if lf.FieldRef.Type != toVar.Type {
			h.tempSeq++
			tmpFrom := &ir.Var{Name: fmt.Sprintf("%%taint-temp-cast-%d", h.tempSeq), Type: lf.FieldRef.Type}
			api.AddStmts(caller, []ir.Stmt{
				copyBase,
				&ir.CastStmt{LHS: tmpFrom, RHS: toVar, CastType: lf.FieldRef.Type},
				&ir.StoreFieldStmt{Base: tmpBase, FieldRef: lf.FieldRef, RHS: tmpFrom, Synthetic: true},
			})
			continue
		}

		api.AddStmts(caller, []ir.Stmt{
			copyBase,
			&ir.StoreFieldStmt{Base: tmpBase, FieldRef: lf.FieldRef, RHS: toVar, Synthetic: true},
		})
	}
}
