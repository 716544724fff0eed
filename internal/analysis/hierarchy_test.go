package analysis

import (
	"testing"

	"github.com/mvp-joe/docmint/internal/diag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Hierarchy:
// - Ancestors are depth-first in declaration order, each class once
// - Lineage starts with the class itself and skips external bases
// - FindAttribute and FindMethod return the nearest definition
// - Registered and builtin bases are not unknown
// - Three-class cycles are marked on every member and walks terminate

func TestHierarchy_Walks(t *testing.T) {
	t.Parallel()

	table, collector := buildTable(t, map[string]string{
		"app/classes.py": `from vendor import Mixin


class Root(object):
    flag = "root"

    def run(self):
        pass


class Left(Root):
    flag = "left"


class Right(Root, Mixin):
    def run(self):
        pass


class Leaf(Left, Right):
    pass
`,
	})
	h := NewHierarchy(table, DefaultRegistry(), collector)
	leaf, ok := table.Get("app.classes.Leaf")
	require.True(t, ok)

	var refs []string
	for _, a := range h.Ancestors(leaf) {
		refs = append(refs, a.Ref)
	}
	assert.Equal(t, []string{"Left", "Root", "object", "Right", "Mixin"}, refs)

	var lineage []string
	for _, s := range h.Lineage(leaf) {
		lineage = append(lineage, s.Name)
	}
	assert.Equal(t, []string{"Leaf", "Left", "Root", "Right"}, lineage)

	attr, owner, ok := h.FindAttribute(leaf, "flag")
	require.True(t, ok)
	assert.Equal(t, "Left", owner.Name)
	v, _ := attr.Value.StringValue()
	assert.Equal(t, "left", v)

	run, ok := h.FindMethod(leaf, "run")
	require.True(t, ok)
	assert.Equal(t, "app.classes.Root.run", run.QualifiedName, "depth-first reaches Root before Right")

	unknown := h.UnknownBases(leaf)
	require.Len(t, unknown, 1)
	assert.Equal(t, "Mixin", unknown[0].Ref)
	assert.Zero(t, collector.Count(diag.KindCycle))
}

func TestHierarchy_ThreeClassCycle(t *testing.T) {
	t.Parallel()

	table, collector := buildTable(t, map[string]string{
		"app/cycle.py": `class A(C):
    pass


class B(A):
    pass


class C(B):
    pass


class D(A):
    pass
`,
	})
	h := NewHierarchy(table, DefaultRegistry(), collector)

	for _, name := range []string{"A", "B", "C"} {
		sym, ok := table.Get("app.cycle." + name)
		require.True(t, ok)
		assert.True(t, h.Cyclic(sym), name)
	}
	d, _ := table.Get("app.cycle.D")
	assert.False(t, h.Cyclic(d))
	assert.Len(t, h.Ancestors(d), 3)
	assert.Equal(t, 3, collector.Count(diag.KindCycle))
}
