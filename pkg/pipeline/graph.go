package pipeline

import "github.com/ravi-parthasarathy/conduit/pkg/node"

// Source tokens: the recognized entry points of a pipeline.
const (
	SourceQuery = "Query"
	SourceFile  = "File"
)

// SourceKind identifies which source token a pipeline reads from.
type SourceKind int

const (
	QuerySource SourceKind = iota
	FileSource
)

func (s SourceKind) String() string {
	if s == FileSource {
		return SourceFile
	}
	return SourceQuery
}

// NodeSpec is one configured node in a built graph. Immutable after build;
// per-run overrides are layered at invocation time and never written back.
type NodeSpec struct {
	Name     string
	Type     string
	Params   node.Params
	Replicas int
	// Inputs as declared, including source tokens, in declaration order.
	Inputs []string
}

// Edge is a directed producer→consumer connection between two nodes.
// Source-token inputs are not edges; they are recorded on the NodeSpec.
type Edge struct {
	From string
	To   string
}

// Graph is an immutable, validated pipeline: a DAG of NodeSpecs with one
// source kind and at least one sink. Safe for concurrent use.
type Graph struct {
	Name        string
	Distributed bool
	Source      SourceKind

	nodes map[string]*NodeSpec
	order []string // declaration order
	edges []Edge

	// aux holds components referenced through KindComponent params that
	// are not themselves pipeline nodes (a document store shared by a
	// retriever, typically). Validated and defaulted like node specs.
	aux map[string]*NodeSpec
}

// Aux returns the spec of a param-referenced auxiliary component, or nil.
func (g *Graph) Aux(name string) *NodeSpec { return g.aux[name] }

// Node returns the spec for name, or nil.
func (g *Graph) Node(name string) *NodeSpec { return g.nodes[name] }

// Nodes returns all specs in declaration order.
func (g *Graph) Nodes() []*NodeSpec {
	out := make([]*NodeSpec, len(g.order))
	for i, name := range g.order {
		out[i] = g.nodes[name]
	}
	return out
}

// Edges returns all producer→consumer edges in declaration order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Producers returns the node names feeding name, in the order they appear
// in that node's declared inputs. Source tokens are excluded.
func (g *Graph) Producers(name string) []string {
	spec := g.nodes[name]
	if spec == nil {
		return nil
	}
	var out []string
	for _, in := range spec.Inputs {
		if in != SourceQuery && in != SourceFile {
			out = append(out, in)
		}
	}
	return out
}

// Consumers returns the node names fed by name, in declaration order.
func (g *Graph) Consumers(name string) []string {
	var out []string
	for _, e := range g.edges {
		if e.From == name {
			out = append(out, e.To)
		}
	}
	return out
}

// Roots returns the nodes wired directly to the source token, in
// declaration order.
func (g *Graph) Roots() []string {
	var out []string
	for _, name := range g.order {
		for _, in := range g.nodes[name].Inputs {
			if in == SourceQuery || in == SourceFile {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// Sinks returns the nodes with no consumers, in declaration order. Their
// outputs form the RunResult.
func (g *Graph) Sinks() []string {
	consumed := make(map[string]bool)
	for _, e := range g.edges {
		consumed[e.From] = true
	}
	var out []string
	for _, name := range g.order {
		if !consumed[name] {
			out = append(out, name)
		}
	}
	return out
}

// Waves groups nodes into execution waves via Kahn's algorithm: wave i
// holds every node whose producers all appear in earlier waves. Within a
// wave, nodes are listed in declaration order, so the result is
// deterministic for a given graph. Nodes in the same wave are independent
// and may execute concurrently. Build guarantees acyclicity, so the waves
// always cover every node.
func (g *Graph) Waves() [][]string {
	indeg := make(map[string]int, len(g.order))
	for _, name := range g.order {
		indeg[name] = len(g.Producers(name))
	}

	var waves [][]string
	done := make(map[string]bool, len(g.order))
	remaining := len(g.order)
	for remaining > 0 {
		var wave []string
		for _, name := range g.order {
			if !done[name] && indeg[name] == 0 {
				wave = append(wave, name)
			}
		}
		if len(wave) == 0 {
			break // unreachable on a built graph
		}
		for _, name := range wave {
			done[name] = true
			for _, c := range g.Consumers(name) {
				indeg[c]--
			}
		}
		waves = append(waves, wave)
		remaining -= len(wave)
	}
	return waves
}

// TopoOrder returns a full topological order: the waves flattened, ties
// among simultaneously-ready nodes broken by declaration order.
func (g *Graph) TopoOrder() []string {
	order := make([]string, 0, len(g.order))
	for _, wave := range g.Waves() {
		order = append(order, wave...)
	}
	return order
}
