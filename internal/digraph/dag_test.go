package digraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddStep(t *testing.T) {
	t.Run("NoDependency", func(t *testing.T) {
		dag := New("test")
		require.True(t, dag.AddStep("a", ""))
		assert.Equal(t, 1, dag.Len())
		assert.Zero(t, dag.EdgeCount())
	})

	t.Run("CommitsEdgeOnce", func(t *testing.T) {
		dag := New("test")
		require.True(t, dag.AddStep("a", ""))
		require.True(t, dag.AddStep("b", "a"))

		assert.Equal(t, []string{"b"}, dag.Successors("a"))
		assert.Equal(t, 1, dag.EdgeCount())
		assert.Equal(t, map[string]int{"a": 0, "b": 1}, dag.InDegrees())
	})

	t.Run("RejectsSelfDependency", func(t *testing.T) {
		dag := New("test")
		require.True(t, dag.AddStep("a", ""))

		before := dag.InDegrees()
		assert.False(t, dag.AddStep("a", "a"))
		assert.Equal(t, before, dag.InDegrees())
		assert.Zero(t, dag.EdgeCount())
	})

	t.Run("RejectsDuplicateEdge", func(t *testing.T) {
		dag := New("test")
		require.True(t, dag.AddStep("b", "a"))

		assert.False(t, dag.AddStep("b", "a"))
		assert.Equal(t, 1, dag.EdgeCount())
		assert.Equal(t, 1, dag.InDegrees()["b"])
	})

	t.Run("RejectsCycle", func(t *testing.T) {
		dag := New("test")
		require.True(t, dag.AddStep("b", "a"))

		assert.False(t, dag.AddStep("a", "b"))

		// The graph retains only the edge committed before the rejection.
		assert.Equal(t, []string{"b"}, dag.Successors("a"))
		assert.Empty(t, dag.Successors("b"))
		assert.Equal(t, 1, dag.EdgeCount())
		assert.False(t, dag.DetectCycle())
	})

	t.Run("RejectsLongerCycle", func(t *testing.T) {
		dag := New("test")
		require.True(t, dag.AddStep("b", "a"))
		require.True(t, dag.AddStep("c", "b"))

		assert.False(t, dag.AddStep("a", "c"))
		assert.Equal(t, 2, dag.EdgeCount())
		assert.False(t, dag.DetectCycle())
	})
}

func TestStepsSortedByName(t *testing.T) {
	dag := New("test")
	require.True(t, dag.AddStep("zeta", ""))
	require.True(t, dag.AddStep("alpha", ""))
	require.True(t, dag.AddStep("mid", "zeta"))

	var names []string
	for _, step := range dag.Steps() {
		names = append(names, step.Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestDetectCycle(t *testing.T) {
	t.Run("EmptyGraph", func(t *testing.T) {
		assert.False(t, New("test").DetectCycle())
	})

	t.Run("DisconnectedComponents", func(t *testing.T) {
		dag := New("test")
		require.True(t, dag.AddStep("b", "a"))
		require.True(t, dag.AddStep("d", "c"))
		require.True(t, dag.AddStep("e", ""))

		assert.False(t, dag.DetectCycle())
	})

	t.Run("Diamond", func(t *testing.T) {
		dag := New("test")
		require.True(t, dag.AddStep("b", "a"))
		require.True(t, dag.AddStep("c", "a"))
		require.True(t, dag.AddStep("d", "b"))
		require.True(t, dag.AddStep("d", "c"))

		assert.False(t, dag.DetectCycle())
		assert.Equal(t, 2, dag.InDegrees()["d"])
	})
}

func TestDescendants(t *testing.T) {
	dag := New("test")
	require.True(t, dag.AddStep("b", "a"))
	require.True(t, dag.AddStep("c", "b"))
	require.True(t, dag.AddStep("d", "b"))
	require.True(t, dag.AddStep("e", ""))

	descendants := dag.Descendants("a")
	assert.ElementsMatch(t, []string{"b", "c", "d"}, descendants)
	assert.Empty(t, dag.Descendants("e"))
}

func TestInDegreesReturnsCopy(t *testing.T) {
	dag := New("test")
	require.True(t, dag.AddStep("b", "a"))

	degrees := dag.InDegrees()
	degrees["b"] = 99

	assert.Equal(t, 1, dag.InDegrees()["b"])
}
