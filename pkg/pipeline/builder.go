package pipeline

import (
	"fmt"

	"github.com/ravi-parthasarathy/conduit/pkg/node"
)

// Build resolves the named pipeline in def against the registry and returns
// an immutable, validated Graph. Every structural invariant is checked
// here, so a graph that builds is guaranteed executable: no cycle, one
// consistent source token, every input resolvable, every component type
// registered with schema-valid params, at least one sink.
//
// Build has no side effects and may be repeated safely; on failure it
// returns a *BuildError aggregating every problem found.
func Build(def *Definition, pipelineName string, reg *node.Registry) (*Graph, error) {
	pdef, err := def.Pipeline(pipelineName)
	if err != nil {
		return nil, err
	}

	var errs []error
	fail := func(e error) { errs = append(errs, e) }

	distributed := false
	switch pdef.Type {
	case TypeDistributed:
		distributed = true
	case TypeStandard, "":
	default:
		fail(fmt.Errorf("unknown pipeline type %q: use %s or %s", pdef.Type, TypeStandard, TypeDistributed))
	}

	components := make(map[string]*ComponentDef, len(def.Components))
	for i := range def.Components {
		c := &def.Components[i]
		if _, dup := components[c.Name]; dup {
			fail(fmt.Errorf("component %q declared more than once", c.Name))
			continue
		}
		components[c.Name] = c
	}

	g := &Graph{
		Name:        pdef.Name,
		Distributed: distributed,
		nodes:       make(map[string]*NodeSpec, len(pdef.Nodes)),
	}

	if len(pdef.Nodes) == 0 {
		fail(fmt.Errorf("pipeline %q declares no nodes", pdef.Name))
	}

	// First pass: node set, uniqueness, replica constraints.
	for _, nd := range pdef.Nodes {
		if _, dup := g.nodes[nd.Name]; dup {
			fail(fmt.Errorf("node %q declared more than once", nd.Name))
			continue
		}
		replicas := nd.Replicas
		if replicas == 0 {
			replicas = 1
		}
		if replicas < 1 {
			fail(fmt.Errorf("node %q: replicas must be positive, got %d", nd.Name, nd.Replicas))
			replicas = 1
		}
		if replicas > 1 && !distributed {
			fail(fmt.Errorf("node %q: replicas require pipeline type %s", nd.Name, TypeDistributed))
		}
		spec := &NodeSpec{
			Name:     nd.Name,
			Replicas: replicas,
			Inputs:   append([]string(nil), nd.Inputs...),
		}
		if c, ok := components[nd.Name]; ok {
			spec.Type = c.Type
			spec.Params = node.Params(c.Params)
		} else {
			fail(&UnknownNodeError{Node: nd.Name, Ref: nd.Name})
		}
		g.nodes[nd.Name] = spec
		g.order = append(g.order, nd.Name)
	}

	// Second pass: inputs, edges, source consistency.
	var sourceTokens []string
	seenToken := make(map[string]bool)
	for _, name := range g.order {
		spec := g.nodes[name]
		if len(spec.Inputs) == 0 {
			fail(fmt.Errorf("node %q declares no inputs; wire it to %s, %s or another node", name, SourceQuery, SourceFile))
			continue
		}
		for _, in := range spec.Inputs {
			switch in {
			case SourceQuery, SourceFile:
				if !seenToken[in] {
					seenToken[in] = true
					sourceTokens = append(sourceTokens, in)
				}
			default:
				if _, ok := g.nodes[in]; !ok {
					fail(&UnknownNodeError{Node: name, Ref: in})
					continue
				}
				g.edges = append(g.edges, Edge{From: in, To: name})
			}
		}
	}
	switch {
	case len(sourceTokens) > 1:
		fail(&MixedSourceError{Tokens: sourceTokens})
	case len(sourceTokens) == 0 && len(g.order) > 0:
		fail(fmt.Errorf("pipeline has no entry node reading from %s or %s", SourceQuery, SourceFile))
	case len(sourceTokens) == 1 && sourceTokens[0] == SourceFile:
		g.Source = FileSource
	}

	// Cycle detection: DFS with white/grey/black coloring over the edge set.
	if cycle := findCycle(g); cycle != nil {
		fail(&CycleError{Cycle: cycle})
	}

	if len(g.order) > 0 && len(g.Sinks()) == 0 {
		// Only possible when every node is on a cycle; reported alongside
		// the CycleError for a complete picture.
		fail(fmt.Errorf("pipeline has no sink node"))
	}

	// Registry resolution and param schema validation, walking component
	// references transitively so auxiliary components (param-referenced
	// but not pipeline nodes) are validated too. Params are completed
	// with schema defaults here so the built specs are self-contained.
	g.aux = make(map[string]*NodeSpec)
	validated := make(map[string]bool)
	onPath := make(map[string]bool)

	var validate func(spec *NodeSpec) // appends to errs; recurses into refs
	validate = func(spec *NodeSpec) {
		if validated[spec.Name] || spec.Type == "" {
			return
		}
		validated[spec.Name] = true
		registration, err := reg.Resolve(spec.Type)
		if err != nil {
			fail(fmt.Errorf("component %q: %w", spec.Name, err))
			return
		}
		if problems := validateComponentParams(registration.Schema, spec.Params, components); len(problems) > 0 {
			fail(&InvalidParamsError{Component: spec.Name, Type: spec.Type, Problems: problems})
			return
		}
		spec.Params = registration.Schema.ApplyDefaults(spec.Params)

		onPath[spec.Name] = true
		for field, f := range registration.Schema {
			if f.Kind != node.KindComponent {
				continue
			}
			ref, ok := spec.Params[field].(string)
			if !ok {
				continue
			}
			if onPath[ref] {
				fail(fmt.Errorf("component %q: param %q closes a component reference cycle through %q", spec.Name, field, ref))
				continue
			}
			refSpec := g.nodes[ref]
			if refSpec == nil {
				refSpec = g.aux[ref]
			}
			if refSpec == nil {
				c, ok := components[ref]
				if !ok {
					continue // undeclared ref already reported
				}
				refSpec = &NodeSpec{Name: c.Name, Type: c.Type, Params: node.Params(c.Params), Replicas: 1}
				g.aux[ref] = refSpec
			}
			validate(refSpec)
		}
		onPath[spec.Name] = false
	}

	for _, name := range g.order {
		validate(g.nodes[name])
	}

	if len(errs) > 0 {
		return nil, &BuildError{Pipeline: pipelineName, Errs: errs}
	}
	return g, nil
}

// validateComponentParams runs schema validation and additionally checks
// that KindComponent fields name a declared component.
func validateComponentParams(schema node.Schema, params node.Params, components map[string]*ComponentDef) []string {
	problems := schema.Validate(params)
	for field, f := range schema {
		if f.Kind != node.KindComponent {
			continue
		}
		ref, ok := params[field].(string)
		if !ok {
			continue // absence or wrong type already reported
		}
		if _, declared := components[ref]; !declared {
			problems = append(problems, fmt.Sprintf("param %q references undeclared component %q", field, ref))
		}
	}
	return problems
}

const (
	colorWhite = iota // unvisited
	colorGrey         // on the current DFS stack
	colorBlack        // fully explored
)

// findCycle returns the node names along the first cycle found, closed on
// the starting node, or nil if the graph is acyclic. Nodes are visited in
// declaration order so the reported cycle is deterministic.
func findCycle(g *Graph) []string {
	color := make(map[string]int, len(g.order))
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = colorGrey
		stack = append(stack, name)
		for _, c := range g.Consumers(name) {
			switch color[c] {
			case colorGrey:
				// Close the loop from c's position on the stack.
				for i, s := range stack {
					if s == c {
						cycle = append(append([]string(nil), stack[i:]...), c)
						return true
					}
				}
			case colorWhite:
				if visit(c) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = colorBlack
		return false
	}

	for _, name := range g.order {
		if color[name] == colorWhite && visit(name) {
			return cycle
		}
	}
	return nil
}
