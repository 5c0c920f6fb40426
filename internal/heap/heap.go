// Package heap implements the Heap Model (spec.md §2): it maps allocation
// sites and synthetic descriptors onto abstract objects (Obj), and
// recognizes the handful of constants (string literals, class literals)
// that the solver needs to mint as mock objects rather than real
// allocations.
package heap

import (
	"fmt"
	"sync"

	"github.com/o2lab/taint/internal/ir"
)

// Obj is the analysis-level abstraction of something a pointer can point
// to: a real allocation site, or a synthetic ("mock") object such as a
// string/class constant, a reflection unknown, or a taint carrier.
type Obj interface {
	Type() ir.Type
	String() string
	// IsMock reports whether this Obj is synthesized by the analysis
	// rather than corresponding to a real `new` in the program.
	IsMock() bool
}

// AllocObj is a real allocation: its identity is the *ir.NewStmt pointer
// that created it, so two references to the same New statement always
// yield the same Obj.
type AllocObj struct {
	Site *ir.NewStmt
}

func (o *AllocObj) Type() ir.Type  { return o.Site.Type }
func (o *AllocObj) IsMock() bool   { return false }
func (o *AllocObj) String() string { return fmt.Sprintf("new %s@%p", o.Site.Type, o.Site) }

// MockObj is any analyzer-synthesized object: string/class constants,
// reflection unknowns (internal/reflection), and taint carriers
// (internal/taint). Two MockObjs with equal (Kind, Key) are the same
// object, mirroring the taint-identity invariant (spec.md §3 invariant 4)
// generalized to every mock kind.
type MockObj struct {
	Kind string
	Key  any
	Typ  ir.Type
}

func (o *MockObj) Type() ir.Type  { return o.Typ }
func (o *MockObj) IsMock() bool   { return true }
func (o *MockObj) String() string { return fmt.Sprintf("mock:%s[%v]", o.Kind, o.Key) }

type mockKey struct {
	kind string
	key  any
}

// Model is the heap model: the sole factory for Obj values. Like the CS
// Manager it is a pure, idempotent cache -- getters never replace a
// previously minted Obj.
type Model struct {
	mu     sync.Mutex
	allocs map[*ir.NewStmt]*AllocObj
	mocks  map[mockKey]*MockObj
	byKind map[string][]*MockObj
}

func NewModel() *Model {
	return &Model{
		allocs: make(map[*ir.NewStmt]*AllocObj),
		mocks:  make(map[mockKey]*MockObj),
		byKind: make(map[string][]*MockObj),
	}
}

// Alloc returns the canonical Obj for a `new` statement.
func (m *Model) Alloc(site *ir.NewStmt) *AllocObj {
	if site == nil {
		panic("heap: nil allocation site")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.allocs[site]; ok {
		return o
	}
	o := &AllocObj{Site: site}
	m.allocs[site] = o
	return o
}

// Mock returns the canonical mock Obj for (kind, key), minting a new one
// the first time (kind, key) is seen.
func (m *Model) Mock(kind string, key any, t ir.Type) *MockObj {
	mk := mockKey{kind, key}
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.mocks[mk]; ok {
		return o
	}
	o := &MockObj{Kind: kind, Key: key, Typ: t}
	m.mocks[mk] = o
	m.byKind[kind] = append(m.byKind[kind], o)
	return o
}

// MocksOfKind streams every mock object minted so far under kind, in
// minting order. Used by internal/taint to implement getTaintObjs().
func (m *Model) MocksOfKind(kind string) []*MockObj {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockObj(nil), m.byKind[kind]...)
}

// StringConstant recognizes a string literal appearing in the IR as a mock
// object, so that e.g. `Class.forName("a.b.C")` can be resolved to a known
// class constant rather than an unknown reflective object.
func (m *Model) StringConstant(value string, stringType ir.Type) *MockObj {
	return m.Mock("string-const", value, stringType)
}

// ClassConstant recognizes a class literal (`C.class` / `typeof(C)`).
func (m *Model) ClassConstant(name string, classType ir.Type) *MockObj {
	return m.Mock("class-const", name, classType)
}
