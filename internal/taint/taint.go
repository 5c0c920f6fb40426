// Package taint implements the taint propagation plugin (spec.md §4.3,
// §4.4, §4.5): the Taint Manager, the Transfer Handler and its
// back-propagation rewrite, and the Source/Sink Handler. It is wired into
// a Solver purely through internal/plugin.Table registrations — it never
// imports internal/pta, mirroring the way gopta's gorace subpackage rides
// on top of the pointer analysis through its own handler registration
// rather than reaching into the solver's internals.
package taint

import (
	"fmt"
	"sync"

	"github.com/o2lab/taint/internal/cs"
	"github.com/o2lab/taint/internal/heap"
	"github.com/o2lab/taint/internal/ir"
)

const mockKind = "taint"

// SourcePoint identifies where a taint object originated (spec.md §3).
type SourcePoint interface {
	sourcePoint()
	String() string
}

// CallSourcePoint: the returned value or an argument of a source call.
type CallSourcePoint struct {
	Site  *cs.CSCallSite
	Index int
}

func (CallSourcePoint) sourcePoint() {}
func (p CallSourcePoint) String() string {
	return fmt.Sprintf("call-source(%s#%d)", p.Site, p.Index)
}

// ParamSourcePoint: a tainted formal parameter on method entry.
type ParamSourcePoint struct {
	Method *cs.CSMethod
	Index  int
}

func (ParamSourcePoint) sourcePoint() {}
func (p ParamSourcePoint) String() string {
	return fmt.Sprintf("param-source(%s#%d)", p.Method, p.Index)
}

// SinkPoint = (Invoke, index).
type SinkPoint struct {
	Site  *cs.CSCallSite
	Index int
}

func (p SinkPoint) String() string { return fmt.Sprintf("sink(%s#%d)", p.Site, p.Index) }

// TaintFlow = (SourcePoint, SinkPoint), the analysis's ultimate witness.
type TaintFlow struct {
	Source SourcePoint
	Sink   SinkPoint
}

func (f TaintFlow) String() string { return fmt.Sprintf("%s -> %s", f.Source, f.Sink) }

// taintKey is the (SourcePoint, Type) identity pair a taint mock object is
// keyed on (spec.md §3 invariant 4).
type taintKey struct {
	source SourcePoint
	typ    ir.Type
}

// Manager mints and deduplicates taint objects (spec.md §4.3). Object
// identity lives in the shared Heap Model, so MakeTaint is idempotent
// across repeated calls for the same (source, type) for free; the Manager
// itself only keeps a per-SourcePoint index of minted objects, guarded by
// its own mutex.
type Manager struct {
	heap *heap.Model

	mu      sync.Mutex
	sources map[SourcePoint][]*heap.MockObj
}

func NewManager(h *heap.Model) *Manager {
	return &Manager{heap: h, sources: make(map[SourcePoint][]*heap.MockObj)}
}

// MakeTaint returns the canonical taint Obj for (source, typ), always
// under the empty heap context per spec.md §4.3 ("Taint objects are
// always wrapped in the empty heap context when inserted into points-to
// sets" -- enforced by the caller using context.Empty with this Obj).
func (m *Manager) MakeTaint(source SourcePoint, typ ir.Type) *heap.MockObj {
	obj := m.heap.Mock(mockKind, taintKey{source: source, typ: typ}, typ)

	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.sources[source]
	for _, o := range list {
		if o == obj {
			return obj
		}
	}
	m.sources[source] = append(list, obj)
	return obj
}

// IsTaint reports whether obj is a taint object minted by this manager.
func (m *Manager) IsTaint(obj heap.Obj) bool {
	mo, ok := obj.(*heap.MockObj)
	return ok && mo.Kind == mockKind
}

// GetSourcePoint returns the SourcePoint of a taint object. ok is false
// when obj is not a taint object (defined only when IsTaint(obj)).
func (m *Manager) GetSourcePoint(obj heap.Obj) (SourcePoint, bool) {
	mo, ok := obj.(*heap.MockObj)
	if !ok || mo.Kind != mockKind {
		return nil, false
	}
	tk, ok := mo.Key.(taintKey)
	if !ok {
		return nil, false
	}
	return tk.source, true
}

// GetTaintObjs streams every taint object minted so far.
func (m *Manager) GetTaintObjs() []heap.Obj {
	mocks := m.heap.MocksOfKind(mockKind)
	out := make([]heap.Obj, len(mocks))
	for i, mo := range mocks {
		out[i] = mo
	}
	return out
}
