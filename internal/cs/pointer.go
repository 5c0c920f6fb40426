package cs

import (
	"fmt"

	"github.com/o2lab/taint/internal/context"
	"github.com/o2lab/taint/internal/heap"
	"github.com/o2lab/taint/internal/ir"
)

// Pointer is the tagged-variant union of the four pointer kinds (spec.md
// §3, design note §9 "polymorphic pointers"): CSVar, InstanceField,
// ArrayIndex, StaticField. Each owns exactly one PointsToSet, installed on
// first creation and never replaced (invariant 3).
type Pointer interface {
	PointsTo() *PointsToSet
	Type() ir.Type
	String() string
}

// CSObj = (Context, Obj): a context-sensitive heap object.
type CSObj struct {
	Ctx context.Context
	Obj heap.Obj
}

func (o *CSObj) Type() ir.Type  { return o.Obj.Type() }
func (o *CSObj) IsMock() bool   { return o.Obj.IsMock() }
func (o *CSObj) String() string { return fmt.Sprintf("%s%s", o.Ctx, o.Obj) }

// CSVar = (Context, Var).
type CSVar struct {
	Ctx context.Context
	Var *ir.Var
	pts *PointsToSet
}

func (v *CSVar) PointsTo() *PointsToSet { return v.pts }
func (v *CSVar) Type() ir.Type          { return v.Var.Type }
func (v *CSVar) String() string         { return fmt.Sprintf("%s%s", v.Ctx, v.Var) }

// CSCallSite = (Context, Invoke).
type CSCallSite struct {
	Ctx    context.Context
	Invoke *ir.Invoke
}

func (s *CSCallSite) String() string { return fmt.Sprintf("%s%s", s.Ctx, s.Invoke) }

// CSMethod = (Context, Method).
type CSMethod struct {
	Ctx    context.Context
	Method *ir.Method
}

func (m *CSMethod) String() string { return fmt.Sprintf("%s%s", m.Ctx, m.Method) }

// InstanceField = (CSObj base, Field).
type InstanceField struct {
	Base *CSObj
	F    *ir.Field
	pts  *PointsToSet
}

func (f *InstanceField) PointsTo() *PointsToSet { return f.pts }
func (f *InstanceField) Type() ir.Type           { return f.F.Type }
func (f *InstanceField) String() string          { return fmt.Sprintf("%s.%s", f.Base, f.F.Name) }

// ArrayIndex = a CSObj (the array); indices are collapsed (spec.md §3).
type ArrayIndex struct {
	Base *CSObj
	pts  *PointsToSet
}

func (a *ArrayIndex) PointsTo() *PointsToSet { return a.pts }
func (a *ArrayIndex) Type() ir.Type           { return a.Base.Type() }
func (a *ArrayIndex) String() string          { return fmt.Sprintf("%s[*]", a.Base) }

// StaticField = a Field (no base object, no context).
type StaticField struct {
	F   *ir.Field
	pts *PointsToSet
}

func (f *StaticField) PointsTo() *PointsToSet { return f.pts }
func (f *StaticField) Type() ir.Type           { return f.F.Type }
func (f *StaticField) String() string          { return f.F.String() }
