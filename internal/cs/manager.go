// Package cs implements the CS Manager (spec.md §4.1): the sole factory
// for context-sensitive elements (CSVar, CSObj, CSCallSite, CSMethod,
// InstanceField, ArrayIndex, StaticField) and the owner of every Pointer's
// PointsToSet. It is a pure cache: the same (entity, context) pair always
// yields the same CS element (invariant 1, "canonicalization").
package cs

import (
	"errors"
	"sync"

	"github.com/o2lab/taint/internal/context"
	"github.com/o2lab/taint/internal/heap"
	"github.com/o2lab/taint/internal/ir"
)

// ErrInvalidArgument is the failure mode for nil entity arguments
// (spec.md §4.1, "Error conditions").
var ErrInvalidArgument = errors.New("cs: invalid argument")

// Manager owns the seven nested mappings described in spec.md §4.1. All
// mutation goes through its factory methods, which are the atomic unit of
// element creation (spec.md §5, "shared-resource policy").
type Manager struct {
	mu sync.Mutex

	vars       map[*ir.Var]*smallMap[string, *CSVar]
	objs       map[heap.Obj]*smallMap[string, *CSObj]
	callSites  map[*ir.Invoke]*smallMap[string, *CSCallSite]
	methods    map[*ir.Method]*smallMap[string, *CSMethod]
	instFields map[*CSObj]*smallMap[*ir.Field, *InstanceField]
	arrIndexes map[*CSObj]*ArrayIndex
	statFields map[*ir.Field]*StaticField

	objIdx  map[*CSObj]int
	objList []*CSObj
}

func NewManager() *Manager {
	return &Manager{
		vars:       make(map[*ir.Var]*smallMap[string, *CSVar]),
		objs:       make(map[heap.Obj]*smallMap[string, *CSObj]),
		callSites:  make(map[*ir.Invoke]*smallMap[string, *CSCallSite]),
		methods:    make(map[*ir.Method]*smallMap[string, *CSMethod]),
		instFields: make(map[*CSObj]*smallMap[*ir.Field, *InstanceField]),
		arrIndexes: make(map[*CSObj]*ArrayIndex),
		statFields: make(map[*ir.Field]*StaticField),
		objIdx:     make(map[*CSObj]int),
	}
}

// MakePointsToSet allocates an empty points-to set backed by this manager's
// object index (§4.2, "makePointsToSet()").
func (m *Manager) MakePointsToSet() *PointsToSet {
	return &PointsToSet{mgr: m}
}

func (m *Manager) indexOf(o *CSObj) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexOfLocked(o)
}

func (m *Manager) indexOfLocked(o *CSObj) int {
	if i, ok := m.objIdx[o]; ok {
		return i
	}
	i := len(m.objList)
	m.objList = append(m.objList, o)
	m.objIdx[o] = i
	return i
}

func (m *Manager) objAt(i int) *CSObj { return m.objList[i] }

// GetCSVar returns the canonical CSVar for (ctx, v), creating it (with a
// fresh PointsToSet) on first reference.
func (m *Manager) GetCSVar(ctx context.Context, v *ir.Var) *CSVar {
	if v == nil {
		panic(ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	inner, ok := m.vars[v]
	if !ok {
		inner = &smallMap[string, *CSVar]{}
		m.vars[v] = inner
	}
	key := ctx.String()
	if cv, ok := inner.Get(key); ok {
		return cv
	}
	cv := &CSVar{Ctx: ctx, Var: v, pts: &PointsToSet{mgr: m}}
	inner.Set(key, cv)
	return cv
}

// CSVarsOf streams every context-sensitive variant of v created so far.
func (m *Manager) CSVarsOf(v *ir.Var) []*CSVar {
	m.mu.Lock()
	defer m.mu.Unlock()
	inner, ok := m.vars[v]
	if !ok {
		return nil
	}
	return inner.Values()
}

// CSVars streams every CSVar created so far.
func (m *Manager) CSVars() []*CSVar {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*CSVar
	for _, inner := range m.vars {
		out = append(out, inner.Values()...)
	}
	return out
}

// GetCSObj returns the canonical CSObj for (heapCtx, obj).
func (m *Manager) GetCSObj(heapCtx context.Context, obj heap.Obj) *CSObj {
	if obj == nil {
		panic(ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	inner, ok := m.objs[obj]
	if !ok {
		inner = &smallMap[string, *CSObj]{}
		m.objs[obj] = inner
	}
	key := heapCtx.String()
	if co, ok := inner.Get(key); ok {
		return co
	}
	co := &CSObj{Ctx: heapCtx, Obj: obj}
	inner.Set(key, co)
	m.indexOfLocked(co)
	return co
}

// Objects streams every CSObj minted so far, in creation order.
func (m *Manager) Objects() []*CSObj {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*CSObj(nil), m.objList...)
}

// GetCSCallSite returns the canonical CSCallSite for (ctx, invoke).
func (m *Manager) GetCSCallSite(ctx context.Context, invoke *ir.Invoke) *CSCallSite {
	if invoke == nil {
		panic(ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	inner, ok := m.callSites[invoke]
	if !ok {
		inner = &smallMap[string, *CSCallSite]{}
		m.callSites[invoke] = inner
	}
	key := ctx.String()
	if cs, ok := inner.Get(key); ok {
		return cs
	}
	cs := &CSCallSite{Ctx: ctx, Invoke: invoke}
	inner.Set(key, cs)
	return cs
}

// GetCSMethod returns the canonical CSMethod for (ctx, method).
func (m *Manager) GetCSMethod(ctx context.Context, method *ir.Method) *CSMethod {
	if method == nil {
		panic(ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	inner, ok := m.methods[method]
	if !ok {
		inner = &smallMap[string, *CSMethod]{}
		m.methods[method] = inner
	}
	key := ctx.String()
	if cm, ok := inner.Get(key); ok {
		return cm
	}
	cm := &CSMethod{Ctx: ctx, Method: method}
	inner.Set(key, cm)
	return cm
}

// CSMethodsOf streams every context-sensitive variant of method created so
// far. Backs PointerAnalysisResult.getContextsOf (SUPPLEMENTED FEATURES,
// §6 result surface).
func (m *Manager) CSMethodsOf(method *ir.Method) []*CSMethod {
	m.mu.Lock()
	defer m.mu.Unlock()
	inner, ok := m.methods[method]
	if !ok {
		return nil
	}
	return inner.Values()
}

// GetInstanceField returns the canonical InstanceField for (csObj, field).
func (m *Manager) GetInstanceField(csObj *CSObj, field *ir.Field) *InstanceField {
	if csObj == nil || field == nil {
		panic(ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	inner, ok := m.instFields[csObj]
	if !ok {
		inner = &smallMap[*ir.Field, *InstanceField]{}
		m.instFields[csObj] = inner
	}
	if f, ok := inner.Get(field); ok {
		return f
	}
	f := &InstanceField{Base: csObj, F: field, pts: &PointsToSet{mgr: m}}
	inner.Set(field, f)
	return f
}

// InstanceFields streams every InstanceField created so far.
func (m *Manager) InstanceFields() []*InstanceField {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*InstanceField
	for _, inner := range m.instFields {
		out = append(out, inner.Values()...)
	}
	return out
}

// GetArrayIndex returns the canonical ArrayIndex for csObj (indices are
// collapsed, so there is exactly one per CSObj).
func (m *Manager) GetArrayIndex(csObj *CSObj) *ArrayIndex {
	if csObj == nil {
		panic(ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.arrIndexes[csObj]; ok {
		return a
	}
	a := &ArrayIndex{Base: csObj, pts: &PointsToSet{mgr: m}}
	m.arrIndexes[csObj] = a
	return a
}

// ArrayIndexes streams every ArrayIndex created so far.
func (m *Manager) ArrayIndexes() []*ArrayIndex {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ArrayIndex, 0, len(m.arrIndexes))
	for _, a := range m.arrIndexes {
		out = append(out, a)
	}
	return out
}

// GetStaticField returns the canonical StaticField for field.
func (m *Manager) GetStaticField(field *ir.Field) *StaticField {
	if field == nil {
		panic(ErrInvalidArgument)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.statFields[field]; ok {
		return f
	}
	f := &StaticField{F: field, pts: &PointsToSet{mgr: m}}
	m.statFields[field] = f
	return f
}

// StaticFields streams every StaticField created so far.
func (m *Manager) StaticFields() []*StaticField {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*StaticField, 0, len(m.statFields))
	for _, f := range m.statFields {
		out = append(out, f)
	}
	return out
}
