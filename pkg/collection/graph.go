// Package collection is the program-facing builder: Map/Filter/FlatMap/
// Concat/Negate/Distinct/Reduce/Enter/Leave/Probe compose a lazy DAG of
// operator nodes. Graph.Compile topologically sorts the DAG using
// pkg/toposort; the individual combinators are thin
// batch-to-batch transforms built on internal/trace's cursor wrappers and
// internal/reduce's operators.
package collection

import (
	"context"
	"fmt"

	"github.com/flowcore/differential/pkg/toposort"
)

// Node is the engine-facing handle every combinator's Collection
// implements: a name for scheduling/diagnostics and a per-round step that
// consumes whatever upstream produced and emits (at most) one sealed batch
// of its own.
type Node interface {
	Name() string
	Step(ctx context.Context) (bool, error)
}

// Frontiered is implemented by every Collection, exposing its current
// frontier size for internal/engine's capabilities-held metric. A type
// switch against this (rather than a larger interface) lets the engine stay
// agnostic to a node's K/V/T/D.
type Frontiered interface {
	Node
	FrontierSize() int
}

// Instrumented is also implemented by every Collection, exposing the
// underlying reducer's interesting-set size (0 for a node without a
// reducer) for internal/engine's interesting-size metric.
type Instrumented interface {
	Frontiered
	InterestingSize() int
}

// Graph accumulates the nodes and edges built by a pipeline of combinator
// calls sharing a common root, and orders them for scheduling.
type Graph struct {
	g     *toposort.Graph
	nodes []Node
}

// NewGraph returns an empty graph. Collection sources are attached to it via
// Source; every combinator built from a source (directly or transitively)
// registers itself on the same graph.
func NewGraph() *Graph {
	return &Graph{g: toposort.NewGraph()}
}

func (gr *Graph) register(name string, upstream []string, n Node) {
	gr.g.AddNode(name)
	for _, u := range upstream {
		gr.g.AddEdge(u, name)
	}

	gr.nodes = append(gr.nodes, n)
}

// Compile topologically sorts the graph's nodes so that every node appears
// after all of its upstream dependencies, ready to hand to
// internal/engine.Engine for per-round scheduling.
func (gr *Graph) Compile() ([]Node, error) {
	order, ok := gr.g.Toposort()
	if !ok {
		for _, n := range gr.nodes {
			if cycle := gr.g.FindCycle(n.Name()); len(cycle) > 0 {
				return nil, fmt.Errorf("collection: dependency cycle: %v", cycle)
			}
		}

		return nil, fmt.Errorf("collection: dependency graph has a cycle")
	}

	byName := make(map[string]Node, len(gr.nodes))
	for _, n := range gr.nodes {
		byName[n.Name()] = n
	}

	sorted := make([]Node, 0, len(order))
	for _, name := range order {
		if n, ok := byName[name]; ok {
			sorted = append(sorted, n)
		}
	}

	return sorted, nil
}
