package toposort

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func index(names []string, v string) int {
	for i, n := range names {
		if n == v {
			return i
		}
	}
	return -1
}

func TestToposortWikipediaExample(t *testing.T) {
	g := NewGraph()
	for _, n := range []string{"2", "3", "5", "7", "8", "9", "10", "11"} {
		g.AddNode(n)
	}

	for _, e := range [][2]string{
		{"7", "8"}, {"7", "11"},
		{"5", "11"},
		{"3", "8"}, {"3", "10"},
		{"11", "2"}, {"11", "9"}, {"11", "10"},
		{"8", "9"},
	} {
		g.AddEdge(e[0], e[1])
	}

	order, ok := g.Toposort()
	require := assert.New(t)
	require.True(ok)
	require.Len(order, 8)

	for _, e := range [][2]string{
		{"7", "8"}, {"7", "11"}, {"5", "11"}, {"3", "8"}, {"3", "10"},
		{"11", "2"}, {"11", "9"}, {"11", "10"}, {"8", "9"},
	} {
		assert.Less(t, index(order, e[0]), index(order, e[1]))
	}
}

func TestToposortDetectsCycle(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")

	_, ok := g.Toposort()
	assert.False(t, ok)

	cycle := g.FindCycle("a")
	assert.NotEmpty(t, cycle)
}

func TestToposortIndependentNodesInInsertionOrder(t *testing.T) {
	g := NewGraph()
	g.AddNode("z")
	g.AddNode("a")
	g.AddNode("m")

	order, ok := g.Toposort()
	require := assert.New(t)
	require.True(ok)
	require.Equal([]string{"z", "a", "m"}, order)
}

func TestSerializeIncludesEdges(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b")

	order, ok := g.Toposort()
	assert.True(t, ok)

	dot := g.Serialize(order)
	assert.Contains(t, dot, "digraph Collection")
	assert.Contains(t, dot, " a\" -> ")
}
