package reflection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o2lab/taint/internal/callgraph"
	"github.com/o2lab/taint/internal/context"
	"github.com/o2lab/taint/internal/cs"
	"github.com/o2lab/taint/internal/heap"
	"github.com/o2lab/taint/internal/ir"
	"github.com/o2lab/taint/internal/plugin"
	"github.com/o2lab/taint/internal/reflection"
	"github.com/o2lab/taint/internal/testutil"
)

// fakeAPI is a minimal plugin.API double: it backs every mutator with a
// real cs.Manager/heap.Model so hook logic under test runs against the
// genuine canonicalization and points-to machinery, while recording the
// calls a full Solver would otherwise make reactively (AddCallEdge,
// RecordUnsound) for assertions.
type fakeAPI struct {
	mgr  *cs.Manager
	heap *heap.Model

	calledEdges []callgraph.Edge
	unsound     []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{mgr: cs.NewManager(), heap: heap.NewModel()}
}

func (f *fakeAPI) AddVarPointsTo(ctx context.Context, v *ir.Var, objs ...*cs.CSObj) {
	f.mgr.GetCSVar(ctx, v).PointsTo().AddSet(f.setOf(objs))
}
func (f *fakeAPI) AddPointsTo(p cs.Pointer, objs ...*cs.CSObj) { p.PointsTo().AddSet(f.setOf(objs)) }
func (f *fakeAPI) AddStmts(*cs.CSMethod, []ir.Stmt)            {}
func (f *fakeAPI) MakePointsToSet() *cs.PointsToSet            { return f.mgr.MakePointsToSet() }
func (f *fakeAPI) GetPointsToSetOf(p cs.Pointer) *cs.PointsToSet { return p.PointsTo() }
func (f *fakeAPI) CSManager() *cs.Manager                      { return f.mgr }
func (f *fakeAPI) Heap() *heap.Model                            { return f.heap }
func (f *fakeAPI) AddCallEdge(caller *cs.CSMethod, site *cs.CSCallSite, callee *ir.Method, kind callgraph.Kind) {
	f.calledEdges = append(f.calledEdges, callgraph.Edge{Caller: caller, Site: site, Callee: f.mgr.GetCSMethod(context.Empty, callee), Kind: kind})
}
func (f *fakeAPI) RecordUnsound(site *cs.CSCallSite, reason string) {
	f.unsound = append(f.unsound, reason)
}
func (f *fakeAPI) Warn(format string, args ...any) {}

func (f *fakeAPI) setOf(objs []*cs.CSObj) *cs.PointsToSet {
	s := f.mgr.MakePointsToSet()
	for _, o := range objs {
		s.Add(o)
	}
	return s
}

var (
	classType  = testutil.Type("java.lang.Class")
	objectType = testutil.Type("java.lang.Object")
	stringType = testutil.Type("String")
)

func testConfig() reflection.Config {
	return reflection.Config{
		ForNameSignature:     "<java.lang.Class: java.lang.Class forName(java.lang.String)>",
		NewInstanceSignature: "<java.lang.Class: java.lang.Object newInstance()>",
		InvokeSignature:      "<java.lang.reflect.Method: java.lang.Object invoke(java.lang.Object,java.lang.Object[])>",
		ClassType:            classType,
		ObjectType:            objectType,
	}
}

func TestForNameResolvesStringConstantArgument(t *testing.T) {
	table := plugin.NewTable()
	cfg := testConfig()
	reflection.Register(table, cfg)

	api := newFakeAPI()
	argVar := testutil.Var("name", stringType)
	resultVar := testutil.Var("cls", classType)
	invoke := &ir.Invoke{Ref: &ir.MethodRef{Signature: cfg.ForNameSignature}, Args: []*ir.Var{argVar}, Result: resultVar}
	site := api.mgr.GetCSCallSite(context.Empty, invoke)

	strConst := api.heap.StringConstant("com.example.Target", stringType)
	api.mgr.GetCSVar(context.Empty, argVar).PointsTo().Add(api.mgr.GetCSObj(context.Empty, strConst))

	edge := &callgraph.Edge{Site: site, Kind: callgraph.Call}
	for _, spec := range table.HooksFor(cfg.ForNameSignature) {
		require.NotNil(t, spec.OnCallEdge)
		spec.OnCallEdge(api, edge)
	}

	resultPts := api.mgr.GetCSVar(context.Empty, resultVar).PointsTo()
	require.Equal(t, 1, resultPts.Len())
	obj := resultPts.Objects()[0].Obj.(*heap.MockObj)
	assert.Equal(t, "class-const", obj.Kind)
	assert.Equal(t, "com.example.Target", obj.Key)
	assert.Empty(t, api.unsound)
}

func TestForNameRecordsUnsoundOnNonConstantArgument(t *testing.T) {
	table := plugin.NewTable()
	cfg := testConfig()
	reflection.Register(table, cfg)

	api := newFakeAPI()
	argVar := testutil.Var("name", stringType)
	resultVar := testutil.Var("cls", classType)
	invoke := &ir.Invoke{Ref: &ir.MethodRef{Signature: cfg.ForNameSignature}, Args: []*ir.Var{argVar}, Result: resultVar}
	site := api.mgr.GetCSCallSite(context.Empty, invoke)
	// argVar stays empty: not a string constant.

	edge := &callgraph.Edge{Site: site, Kind: callgraph.Call}
	for _, spec := range table.HooksFor(cfg.ForNameSignature) {
		spec.OnCallEdge(api, edge)
	}

	require.Len(t, api.unsound, 1)
	resultPts := api.mgr.GetCSVar(context.Empty, resultVar).PointsTo()
	require.Equal(t, 1, resultPts.Len())
	obj := resultPts.Objects()[0].Obj.(*heap.MockObj)
	assert.Equal(t, "reflect-unknown-class", obj.Kind)
}

func TestNewInstanceYieldsExactlyOneUnknownObjectPerCallSite(t *testing.T) {
	table := plugin.NewTable()
	cfg := testConfig()
	reflection.Register(table, cfg)

	api := newFakeAPI()
	baseVar := testutil.Var("cls", classType)
	resultVar := testutil.Var("obj", objectType)
	invoke := &ir.Invoke{Ref: &ir.MethodRef{Signature: cfg.NewInstanceSignature}, Base: baseVar, Result: resultVar, Virtual: true}
	site := api.mgr.GetCSCallSite(context.Empty, invoke)

	edge := &callgraph.Edge{Site: site, Kind: callgraph.Call}
	for _, spec := range table.HooksFor(cfg.NewInstanceSignature) {
		require.Len(t, spec.Indices, 1)
		spec.OnPointsTo(api, edge, plugin.Base, api.mgr.MakePointsToSet())
	}

	resultPts := api.mgr.GetCSVar(context.Empty, resultVar).PointsTo()
	require.Equal(t, 1, resultPts.Len())
	obj := resultPts.Objects()[0].Obj.(*heap.MockObj)
	assert.Equal(t, "reflect-unknown-obj", obj.Kind)
	assert.Equal(t, objectType, obj.Typ)
}

func TestInvokeUnknownInstallsOtherEdgeAndRecordsUnsound(t *testing.T) {
	table := plugin.NewTable()
	cfg := testConfig()
	reflection.Register(table, cfg)

	api := newFakeAPI()
	invoke := &ir.Invoke{Ref: &ir.MethodRef{Signature: cfg.InvokeSignature}}
	site := api.mgr.GetCSCallSite(context.Empty, invoke)
	caller := api.mgr.GetCSMethod(context.Empty, &ir.Method{Signature: "<Demo: void main()>"})

	edge := &callgraph.Edge{Caller: caller, Site: site, Kind: callgraph.Call}
	specs := table.HooksFor(cfg.InvokeSignature)
	require.Len(t, specs, 1)
	specs[0].OnCallEdge(api, edge)

	require.Len(t, api.calledEdges, 1)
	assert.Equal(t, callgraph.Other, api.calledEdges[0].Kind)
	require.Len(t, api.unsound, 1)
}
