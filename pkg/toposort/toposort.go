// Package toposort orders a named directed acyclic graph for sequential
// scheduling. pkg/collection uses it to flatten a Collection's lazily built
// operator DAG into the order internal/engine drives operators in: every
// node appears only after all of its upstream dependencies.
package toposort

import (
	"fmt"
	"sort"
	"strings"
)

// Graph is a directed graph over string-named nodes.
type Graph struct {
	symbols *symbolTable
	edges   *intGraph
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{symbols: newSymbolTable(), edges: newIntGraph()}
}

// AddNode registers name, a no-op if it is already present.
func (g *Graph) AddNode(name string) {
	g.edges.addNode(g.symbols.intern(name))
}

// AddEdge records that from must be scheduled before to.
func (g *Graph) AddEdge(from, to string) {
	g.edges.addEdge(g.symbols.intern(from), g.symbols.intern(to))
}

// Toposort returns node names in dependency order. ok is false if the graph
// has a cycle, in which case order holds whatever prefix sorted cleanly.
func (g *Graph) Toposort() (order []string, ok bool) {
	ids, ok := g.edges.topoSort()

	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = g.symbols.resolve(id)
	}

	return names, ok
}

// FindCycle returns the cycle containing seed, or nil if seed isn't part of
// one. Used to build an actionable error when Toposort reports !ok.
func (g *Graph) FindCycle(seed string) []string {
	id, ok := g.symbols.strToID[seed]
	if !ok {
		return nil
	}

	cycleIDs := g.edges.findCycle(id)
	if len(cycleIDs) > 1 && cycleIDs[0] == cycleIDs[len(cycleIDs)-1] {
		cycleIDs = cycleIDs[:len(cycleIDs)-1]
	}

	names := make([]string, len(cycleIDs))
	for i, id := range cycleIDs {
		names[i] = g.symbols.resolve(id)
	}

	return names
}

// FindChildren returns the sorted set of nodes with an edge from "from".
func (g *Graph) FindChildren(from string) []string {
	id, ok := g.symbols.strToID[from]
	if !ok || id >= len(g.edges.nodes) {
		return nil
	}

	out := make([]string, len(g.edges.nodes[id]))
	for i, child := range g.edges.nodes[id] {
		out[i] = g.symbols.resolve(child)
	}
	sort.Strings(out)

	return out
}

// Serialize renders the graph in Graphviz dot format, node labels prefixed
// with their position in sorted (the order Toposort returned).
func (g *Graph) Serialize(sorted []string) string {
	index := make(map[string]int, len(sorted))
	for i, name := range sorted {
		index[name] = i
	}

	names := make([]string, len(g.symbols.idToStr))
	copy(names, g.symbols.idToStr)
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("digraph Collection {\n")

	for _, from := range names {
		for _, to := range g.FindChildren(from) {
			fmt.Fprintf(&b, "  \"%d %s\" -> \"%d %s\"\n", index[from], from, index[to], to)
		}
	}

	b.WriteString("}")

	return b.String()
}
