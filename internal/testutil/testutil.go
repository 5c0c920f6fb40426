// Package testutil stands in for the out-of-scope bytecode/type-system
// front-end (spec.md §1): a minimal named Type, a small in-memory
// classes.Hierarchy built directly over hand-written *ir.Method values, and
// a couple of IR construction helpers, all used across the other
// packages' _test.go files.
package testutil

import (
	"fmt"
	"strings"

	"github.com/o2lab/taint/internal/ir"
)

// Type is a minimal named ir.Type for hand-built fixtures, comparable by
// value like ir.NamedType.
type Type string

func (t Type) String() string { return string(t) }

type overrideKey struct {
	dynType Type
	sig     string
}

// Hierarchy is a small in-memory classes.Hierarchy. Nothing here is
// inferred from real class files; every method, override and subtype
// relationship a test needs is registered explicitly.
type Hierarchy struct {
	methods   map[string]*ir.Method
	overrides map[overrideKey]*ir.Method
	subtypes  map[Type]map[Type]bool // sub -> {sup, ..., sub} (reflexive)
}

func NewHierarchy() *Hierarchy {
	return &Hierarchy{
		methods:   make(map[string]*ir.Method),
		overrides: make(map[overrideKey]*ir.Method),
		subtypes:  make(map[Type]map[Type]bool),
	}
}

// AddMethod registers m, resolvable afterward via its own signature.
func (h *Hierarchy) AddMethod(m *ir.Method) { h.methods[m.Signature] = m }

// AddOverride records that a receiver of dynamic type dynType dispatches a
// virtual call naming refSignature to m.
func (h *Hierarchy) AddOverride(dynType Type, refSignature string, m *ir.Method) {
	h.overrides[overrideKey{dynType, refSignature}] = m
}

// AddSubtype records sub <: sup.
func (h *Hierarchy) AddSubtype(sub, sup Type) {
	h.ensure(sub)
	h.subtypes[sub][sup] = true
}

func (h *Hierarchy) ensure(t Type) {
	if h.subtypes[t] == nil {
		h.subtypes[t] = map[Type]bool{t: true}
	}
}

func (h *Hierarchy) ResolveMethod(signature string) (*ir.Method, bool) {
	m, ok := h.methods[signature]
	return m, ok
}

func (h *Hierarchy) Dispatch(t ir.Type, ref *ir.MethodRef) (*ir.Method, bool) {
	dt, ok := t.(Type)
	if !ok {
		return nil, false
	}
	m, ok := h.overrides[overrideKey{dt, ref.Signature}]
	return m, ok
}

func (h *Hierarchy) IsSubtype(sub, sup ir.Type) bool {
	if sub == sup {
		return true
	}
	st, ok1 := sub.(Type)
	pt, ok2 := sup.(Type)
	if !ok1 || !ok2 {
		return false
	}
	h.ensure(st)
	return h.subtypes[st][pt]
}

// Signature builds the "<classType: returnType name(paramTypes)>" string
// spec.md §6 prescribes.
func Signature(declType Type, ret Type, name string, params ...Type) string {
	ps := make([]string, len(params))
	for i, p := range params {
		ps[i] = string(p)
	}
	return fmt.Sprintf("<%s: %s %s(%s)>", declType, ret, name, strings.Join(ps, ","))
}

// Var is a convenience constructor for an ir.Var with no tracked owner.
func Var(name string, t ir.Type) *ir.Var {
	return &ir.Var{Name: name, Type: t}
}

// Method builds an *ir.Method and registers it with h in one step.
func (h *Hierarchy) Method(signature string, declType Type, this *ir.Var, params []*ir.Var, ret *ir.Var, body []ir.Stmt) *ir.Method {
	m := &ir.Method{
		Signature:     signature,
		DeclaringType: declType,
		This:          this,
		Params:        params,
		Ret:           ret,
		Body:          body,
	}
	for _, p := range params {
		p.Owner = m
	}
	if this != nil {
		this.Owner = m
	}
	if ret != nil {
		ret.Owner = m
	}
	h.AddMethod(m)
	return m
}
