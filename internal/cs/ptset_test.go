package cs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o2lab/taint/internal/context"
	"github.com/o2lab/taint/internal/cs"
	"github.com/o2lab/taint/internal/heap"
	"github.com/o2lab/taint/internal/ir"
	"github.com/o2lab/taint/internal/testutil"
)

func TestPointsToSetMonotone(t *testing.T) {
	mgr := cs.NewManager()
	h := heap.NewModel()
	v := testutil.Var("x", testutil.Type("T"))
	cv := mgr.GetCSVar(context.Empty, v)

	site := &ir.NewStmt{LHS: v, Type: testutil.Type("T")}
	o1 := mgr.GetCSObj(context.Empty, h.Alloc(site))

	added := cv.PointsTo().Add(o1)
	assert.True(t, added, "first insertion should report change")
	addedAgain := cv.PointsTo().Add(o1)
	assert.False(t, addedAgain, "re-inserting the same object must not report change")
	assert.Equal(t, 1, cv.PointsTo().Len())
}

func TestPointsToSetDiffAndMerge(t *testing.T) {
	mgr := cs.NewManager()
	h := heap.NewModel()
	site1 := &ir.NewStmt{Type: testutil.Type("T")}
	site2 := &ir.NewStmt{Type: testutil.Type("T")}
	o1 := mgr.GetCSObj(context.Empty, h.Alloc(site1))
	o2 := mgr.GetCSObj(context.Empty, h.Alloc(site2))

	old := mgr.MakePointsToSet()
	old.Add(o1)

	incoming := mgr.MakePointsToSet()
	incoming.Add(o1)
	incoming.Add(o2)

	delta := old.Diff(incoming)
	require.Equal(t, 1, delta.Len())
	assert.True(t, delta.Contains(o2))
	assert.False(t, delta.Contains(o1))

	newOnes := old.Merge(incoming)
	require.NotNil(t, newOnes)
	assert.True(t, newOnes.Contains(o2))
	assert.Equal(t, 2, old.Len(), "merge should have folded the delta into old")

	assert.Nil(t, old.Merge(incoming), "merging an already-subsumed set should report no new objects")
}

func TestPointsToSetFilter(t *testing.T) {
	mgr := cs.NewManager()
	h := heap.NewModel()
	site := &ir.NewStmt{Type: testutil.Type("T")}
	o := mgr.GetCSObj(context.Empty, h.Alloc(site))

	pts := mgr.MakePointsToSet()
	pts.Add(o)

	kept := pts.Filter(func(*cs.CSObj) bool { return true })
	assert.Equal(t, 1, kept.Len())

	dropped := pts.Filter(func(*cs.CSObj) bool { return false })
	assert.True(t, dropped.IsEmpty())
}

func TestManagerCanonicalizesByContextAndEntity(t *testing.T) {
	mgr := cs.NewManager()
	v := testutil.Var("x", testutil.Type("T"))

	a := mgr.GetCSVar(context.Empty, v)
	b := mgr.GetCSVar(context.Empty, v)
	assert.Same(t, a, b, "the same (ctx, var) pair must yield the same CSVar")

	ctx1 := context.Empty.Append("site1", 1)
	c := mgr.GetCSVar(ctx1, v)
	assert.NotSame(t, a, c, "distinct contexts must yield distinct CSVars for the same var")

	assert.ElementsMatch(t, []*cs.CSVar{a, c}, mgr.CSVarsOf(v))
}
