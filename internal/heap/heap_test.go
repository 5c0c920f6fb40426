package heap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/o2lab/taint/internal/heap"
	"github.com/o2lab/taint/internal/ir"
)

type namedType string

func (t namedType) String() string { return string(t) }

func TestAllocIsKeyedBySiteIdentity(t *testing.T) {
	m := heap.NewModel()
	site := &ir.NewStmt{Type: namedType("T")}

	o1 := m.Alloc(site)
	o2 := m.Alloc(site)
	assert.Same(t, o1, o2, "the same allocation site must yield the same Obj")

	other := &ir.NewStmt{Type: namedType("T")}
	o3 := m.Alloc(other)
	assert.NotSame(t, o1, o3, "distinct allocation sites must yield distinct Objs even with the same type")
}

func TestMockDedupsByKindAndKey(t *testing.T) {
	m := heap.NewModel()
	a := m.Mock("string-const", "hello", namedType("String"))
	b := m.Mock("string-const", "hello", namedType("String"))
	assert.Same(t, a, b)

	c := m.Mock("string-const", "world", namedType("String"))
	assert.NotSame(t, a, c)

	d := m.Mock("class-const", "hello", namedType("Class"))
	assert.NotSame(t, a, d, "differing kind with the same key must be a distinct object")
}

func TestMocksOfKindStreamsInMintingOrder(t *testing.T) {
	m := heap.NewModel()
	first := m.Mock("taint", "s1", namedType("String"))
	second := m.Mock("taint", "s2", namedType("String"))
	m.Mock("string-const", "irrelevant", namedType("String"))

	got := m.MocksOfKind("taint")
	assert.Equal(t, []*heap.MockObj{first, second}, got)
}

func TestStringAndClassConstantHelpers(t *testing.T) {
	m := heap.NewModel()
	sc := m.StringConstant("a.b.C", namedType("String"))
	assert.True(t, sc.IsMock())
	cc := m.ClassConstant("a.b.C", namedType("Class"))
	assert.NotSame(t, sc, cc, "a string constant and a class constant with the same text differ")
}
