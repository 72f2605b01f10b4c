// Package graphbuild compiles a pkg/config-validated YAML graph description
// into a runnable collection.Graph, fixed to the CLI's
// string-key/float64-value/lattice.Nat-time/diff.Int-diff instantiation —
// see DESIGN.md for why cmd/reduceflow offers this one concrete
// instantiation rather than a fully generic config-driven builder (Go
// generics give every operator's K/V/T/D at compile time, not from a YAML
// file read at runtime).
package graphbuild

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flowcore/differential/internal/diff"
	"github.com/flowcore/differential/internal/lattice"
	"github.com/flowcore/differential/internal/reduce"
	"github.com/flowcore/differential/pkg/collection"
)

// Coll is the concrete Collection instantiation every node in a built graph
// shares.
type Coll = collection.Collection[string, float64, lattice.Nat, diff.Int]

// Sentinel errors surfaced while compiling a graph description.
var (
	ErrUnknownOp       = errors.New("graphbuild: unknown operator")
	ErrUnknownUpstream = errors.New("graphbuild: upstream node not yet defined")
	ErrWrongUpstream   = errors.New("graphbuild: wrong number of upstream references for this operator")
	ErrUnsupportedOp   = errors.New("graphbuild: operator not supported by this CLI's flat single-scope graph")
	ErrBadParam        = errors.New("graphbuild: malformed operator parameter")
	ErrNoSource        = errors.New("graphbuild: graph description has no source node")
)

// Built is the result of compiling a graph description.
type Built struct {
	Graph  *collection.Graph
	Nodes  map[string]*Coll
	Source *Coll
	Sink   *Coll
}

type upstreamList []string

// UnmarshalYAML accepts the schema's `oneOf: [string, array of string]`
// shape for a node's upstream reference.
func (u *upstreamList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return fmt.Errorf("graphbuild: decode upstream scalar: %w", err)
		}

		if s != "" {
			*u = []string{s}
		}

		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return fmt.Errorf("graphbuild: decode upstream list: %w", err)
		}

		*u = list

		return nil
	default:
		return fmt.Errorf("graphbuild: upstream: unsupported yaml node kind %v", node.Kind)
	}
}

type nodeSpec struct {
	Name     string            `yaml:"name"`
	Op       string            `yaml:"op"`
	Upstream upstreamList      `yaml:"upstream"`
	Params   map[string]string `yaml:"params"`
}

type graphSpec struct {
	Nodes []nodeSpec `yaml:"nodes"`
}

func strLess(a, b string) bool { return a < b }

func floatLess(a, b float64) bool { return a < b }

func natLess(a, b lattice.Nat) bool { return a < b }

// ParseFile reads and compiles the graph description at path. The caller is
// expected to have already run it through pkg/config.ValidateGraphFile.
func ParseFile(path string) (*Built, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("graphbuild: read %s: %w", path, err)
	}

	var spec graphSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("graphbuild: parse %s: %w", path, err)
	}

	return Build(spec.Nodes)
}

// Build compiles a parsed node list into a runnable graph.
func Build(specNodes []nodeSpec) (*Built, error) {
	g := collection.NewGraph()
	nodes := make(map[string]*Coll, len(specNodes))

	var source, sink *Coll

	for _, n := range specNodes {
		out, err := buildNode(g, nodes, n)
		if err != nil {
			return nil, err
		}

		if n.Op == "source" && source == nil {
			source = out
		}

		nodes[n.Name] = out
		sink = out
	}

	if source == nil {
		return nil, ErrNoSource
	}

	return &Built{Graph: g, Nodes: nodes, Source: source, Sink: sink}, nil
}

func buildNode(g *collection.Graph, nodes map[string]*Coll, n nodeSpec) (*Coll, error) {
	switch n.Op {
	case "source":
		lower := lattice.New(lattice.Nat(0))
		return collection.Source[string, float64, lattice.Nat, diff.Int](g, n.Name, lower, strLess, floatLess, natLess), nil

	case "map":
		src, err := single(nodes, n)
		if err != nil {
			return nil, err
		}

		fn, err := mapFn(n.Params["fn"])
		if err != nil {
			return nil, err
		}

		return collection.Map[string, float64, lattice.Nat, diff.Int, string, float64](src, n.Name, fn, strLess, floatLess), nil

	case "filter":
		src, err := single(nodes, n)
		if err != nil {
			return nil, err
		}

		pred, err := filterPred(n.Params["predicate"])
		if err != nil {
			return nil, err
		}

		return collection.Filter[string, float64, lattice.Nat, diff.Int](src, n.Name, pred), nil

	case "flat_map":
		src, err := single(nodes, n)
		if err != nil {
			return nil, err
		}

		repeat, err := flatMapRepeat(n.Params["repeat"])
		if err != nil {
			return nil, err
		}

		f := func(k string, v float64, d diff.Int) []collection.FlatItem[string, float64, diff.Int] {
			items := make([]collection.FlatItem[string, float64, diff.Int], 0, repeat)
			for i := 0; i < repeat; i++ {
				items = append(items, collection.FlatItem[string, float64, diff.Int]{Key: k, Val: v, Diff: d})
			}

			return items
		}

		return collection.FlatMap[string, float64, lattice.Nat, diff.Int, string, float64](src, n.Name, f, strLess, floatLess), nil

	case "negate":
		src, err := single(nodes, n)
		if err != nil {
			return nil, err
		}

		return collection.Negate[string, float64, lattice.Nat, diff.Int](src, n.Name), nil

	case "concat":
		a, b, err := twoUpstream(nodes, n)
		if err != nil {
			return nil, err
		}

		return collection.Concat[string, float64, lattice.Nat, diff.Int](n.Name, a, b), nil

	case "distinct":
		src, err := single(nodes, n)
		if err != nil {
			return nil, err
		}

		return collection.Reduce[string, float64, lattice.Nat, diff.Int, float64](src, n.Name, reduce.AbelianLogic(floatLess, distinctAbelian), floatLess, nil), nil

	case "distinct_total":
		src, err := single(nodes, n)
		if err != nil {
			return nil, err
		}

		return collection.ReduceTotal[string, float64, lattice.Nat, float64](src, n.Name, presenceThresh, keyOfString, floatLess), nil

	case "reduce":
		src, err := single(nodes, n)
		if err != nil {
			return nil, err
		}

		logic, err := reduceLogic(n.Params["logic"])
		if err != nil {
			return nil, err
		}

		return collection.Reduce[string, float64, lattice.Nat, diff.Int, float64](src, n.Name, logic, floatLess, nil), nil

	case "reduce_total":
		src, err := single(nodes, n)
		if err != nil {
			return nil, err
		}

		if l := n.Params["logic"]; l != "" && l != "count" {
			return nil, fmt.Errorf(
				"%w: reduce_total only supports logic=count (the totally-ordered fast path emits one row per event, with no way to retract-then-insert an arbitrary changing value — use op=reduce for %q)",
				ErrUnsupportedOp, l,
			)
		}

		return collection.ReduceTotal[string, float64, lattice.Nat, float64](src, n.Name, presenceThresh, keyOfString, floatLess), nil

	case "enter", "leave":
		return nil, fmt.Errorf("%w: %q (op %q needs nested-scope time refinement, which this CLI's flat graph does not model)", ErrUnsupportedOp, n.Name, n.Op)

	case "probe":
		src, err := single(nodes, n)
		if err != nil {
			return nil, err
		}

		return collection.Probe[string, float64, lattice.Nat, diff.Int](src, n.Name, nil), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, n.Op)
	}
}

func keyOfString(k string) string { return k }

// presenceThresh is the shared reduce_total/distinct_total fast-path logic:
// the totally-ordered Threshold operator emits one row per event with no way
// to retract-then-insert an arbitrary changing value, so both ops collapse
// to the same "is this key currently present" signal distinct_total's name
// promises, with the running count surfaced as the emitted value for
// reduce_total's benefit.
func presenceThresh(_ string, newCount int64, oldCount *int64) (float64, diff.Int) {
	present := newCount > 0
	wasPresent := oldCount != nil && *oldCount > 0

	switch {
	case present && !wasPresent:
		return float64(newCount), 1
	case !present && wasPresent:
		return 0, -1
	default:
		return float64(newCount), 0
	}
}

func single(nodes map[string]*Coll, n nodeSpec) (*Coll, error) {
	if len(n.Upstream) != 1 {
		return nil, fmt.Errorf("%w: %q (op %q) needs exactly one upstream, got %d", ErrWrongUpstream, n.Name, n.Op, len(n.Upstream))
	}

	c, ok := nodes[n.Upstream[0]]
	if !ok {
		return nil, fmt.Errorf("%w: %q references %q", ErrUnknownUpstream, n.Name, n.Upstream[0])
	}

	return c, nil
}

func twoUpstream(nodes map[string]*Coll, n nodeSpec) (*Coll, *Coll, error) {
	if len(n.Upstream) != 2 {
		return nil, nil, fmt.Errorf("%w: %q (op concat) needs exactly two upstream, got %d", ErrWrongUpstream, n.Name, len(n.Upstream))
	}

	a, ok := nodes[n.Upstream[0]]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q references %q", ErrUnknownUpstream, n.Name, n.Upstream[0])
	}

	b, ok := nodes[n.Upstream[1]]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q references %q", ErrUnknownUpstream, n.Name, n.Upstream[1])
	}

	return a, b, nil
}

func mapFn(name string) (func(k string, v float64) (string, float64), error) {
	switch name {
	case "", "identity":
		return func(k string, v float64) (string, float64) { return k, v }, nil
	case "double":
		return func(k string, v float64) (string, float64) { return k, v * 2 }, nil
	case "negate_value":
		return func(k string, v float64) (string, float64) { return k, -v }, nil
	case "increment":
		return func(k string, v float64) (string, float64) { return k, v + 1 }, nil
	default:
		return nil, fmt.Errorf("%w: map fn %q", ErrBadParam, name)
	}
}

func flatMapRepeat(raw string) (int, error) {
	if raw == "" {
		return 1, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: flat_map repeat must be a non-negative integer, got %q", ErrBadParam, raw)
	}

	return n, nil
}

// filterPred parses a "value <op> <number>" predicate string — the small
// subset of filter predicates this config-driven CLI exposes; anything
// richer is reached through an embedding program building the Collection
// graph in Go directly rather than through YAML.
func filterPred(expr string) (func(k string, v float64) bool, error) {
	if expr == "" {
		return func(string, float64) bool { return true }, nil
	}

	fields := strings.Fields(expr)
	if len(fields) != 3 || fields[0] != "value" {
		return nil, fmt.Errorf("%w: filter predicate %q (want \"value <op> <number>\")", ErrBadParam, expr)
	}

	threshold, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: filter predicate %q: %v", ErrBadParam, expr, err)
	}

	op := fields[1]

	cmp, ok := comparisons[op]
	if !ok {
		return nil, fmt.Errorf("%w: filter predicate %q: unknown operator %q", ErrBadParam, expr, op)
	}

	return func(_ string, v float64) bool { return cmp(v, threshold) }, nil
}

var comparisons = map[string]func(a, b float64) bool{
	"!=": func(a, b float64) bool { return a != b },
	"==": func(a, b float64) bool { return a == b },
	">":  func(a, b float64) bool { return a > b },
	">=": func(a, b float64) bool { return a >= b },
	"<":  func(a, b float64) bool { return a < b },
	"<=": func(a, b float64) bool { return a <= b },
}

// distinctAbelian, countAbelian and sumAbelian are all Abelian-form user
// logic: each populates the full new output from scratch rather than
// computing a delta against the previous one. reduce.AbelianLogic adapts
// them into the delta form collection.Reduce takes.
func distinctAbelian(_ string, input []diff.Item[float64, diff.Int]) []diff.Item[float64, diff.Int] {
	var total int64
	for _, it := range input {
		total += int64(it.Diff)
	}

	if total <= 0 {
		return nil
	}

	return []diff.Item[float64, diff.Int]{{Value: 1, Diff: 1}}
}

// reduceLogic resolves a named aggregation for the general reduce op.
func reduceLogic(name string) (reduce.Logic[string, float64, diff.Int, float64], error) {
	switch name {
	case "", "count":
		return reduce.AbelianLogic(floatLess, countAbelian), nil
	case "sum":
		return reduce.AbelianLogic(floatLess, sumAbelian), nil
	default:
		return nil, fmt.Errorf("%w: reduce logic %q (want \"count\" or \"sum\")", ErrBadParam, name)
	}
}

func countAbelian(_ string, input []diff.Item[float64, diff.Int]) []diff.Item[float64, diff.Int] {
	var total int64
	for _, it := range input {
		total += int64(it.Diff)
	}

	if total == 0 {
		return nil
	}

	return []diff.Item[float64, diff.Int]{{Value: float64(total), Diff: 1}}
}

func sumAbelian(_ string, input []diff.Item[float64, diff.Int]) []diff.Item[float64, diff.Int] {
	var total float64
	for _, it := range input {
		total += it.Value * float64(it.Diff)
	}

	if total == 0 {
		return nil
	}

	return []diff.Item[float64, diff.Int]{{Value: total, Diff: 1}}
}
