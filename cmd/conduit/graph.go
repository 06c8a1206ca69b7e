package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/awalterschulze/gographviz"
	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/conduit/pkg/node"
	"github.com/ravi-parthasarathy/conduit/pkg/pipeline"
)

func graphCmd() *cobra.Command {
	var (
		format       string
		pipelineName string
	)

	cmd := &cobra.Command{
		Use:   "graph <pipeline.yml>",
		Short: "Print a human-readable summary of a pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := pipeline.LoadDefinition(args[0])
			if err != nil {
				return err
			}
			if pipelineName == "" {
				if len(def.Pipelines) == 0 {
					return fmt.Errorf("%s: no pipelines defined", args[0])
				}
				pipelineName = def.Pipelines[0].Name
			}
			g, err := pipeline.Build(def, pipelineName, node.Default)
			if err != nil {
				return err
			}

			switch strings.ToLower(format) {
			case "dot":
				s, err := renderDOT(g)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), s)
			case "yaml":
				out, err := def.Marshal()
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), string(out))
			case "text", "":
				fmt.Fprint(cmd.OutOrStdout(), renderText(g))
			default:
				return fmt.Errorf("unknown format %q: use text, dot or yaml", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format: text, dot or yaml")
	cmd.Flags().StringVar(&pipelineName, "pipeline", "", "pipeline name within the definition (default: first)")
	return cmd
}

// truncate shortens s to maxLen runes, appending "…" if needed.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "…"
}

// renderText produces the human-readable text summary: nodes in execution
// order with their wave number, then edges.
func renderText(g *pipeline.Graph) string {
	var sb strings.Builder

	kind := "query"
	if g.Source == pipeline.FileSource {
		kind = "indexing"
	}
	fmt.Fprintf(&sb, "Pipeline: %s  (%s, %d nodes, %d edges)\n",
		g.Name, kind, len(g.Nodes()), len(g.Edges()))

	maxNameLen := 4
	for _, spec := range g.Nodes() {
		if len(spec.Name) > maxNameLen {
			maxNameLen = len(spec.Name)
		}
	}

	fmt.Fprintf(&sb, "\nNodes:\n")
	for wave, names := range g.Waves() {
		for _, name := range names {
			spec := g.Node(name)
			var paramParts []string
			keys := make([]string, 0, len(spec.Params))
			for k := range spec.Params {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				paramParts = append(paramParts, fmt.Sprintf("%s=%v", k, truncateAny(spec.Params[k], 40)))
			}
			suffix := ""
			if spec.Replicas > 1 {
				suffix = fmt.Sprintf("  x%d", spec.Replicas)
			}
			fmt.Fprintf(&sb, "  [%d] %-*s  %-24s  %s%s\n",
				wave, maxNameLen, name, spec.Type, strings.Join(paramParts, " "), suffix)
		}
	}

	fmt.Fprintf(&sb, "\nEdges:\n")
	for _, name := range g.Roots() {
		fmt.Fprintf(&sb, "  %-*s  ->  %s\n", maxNameLen, g.Source, name)
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(&sb, "  %-*s  ->  %s\n", maxNameLen, e.From, e.To)
	}

	return sb.String()
}

func truncateAny(v any, maxLen int) string {
	return truncate(fmt.Sprintf("%v", v), maxLen)
}

// renderDOT produces a Graphviz digraph of the pipeline, source token
// included, for rendering with the dot tool.
func renderDOT(g *pipeline.Graph) (string, error) {
	viz := gographviz.NewGraph()
	name := strconv.Quote(g.Name)
	if err := viz.SetName(name); err != nil {
		return "", err
	}
	if err := viz.SetDir(true); err != nil {
		return "", err
	}

	source := strconv.Quote(g.Source.String())
	if err := viz.AddNode(name, source, map[string]string{"shape": "ellipse"}); err != nil {
		return "", err
	}
	for _, spec := range g.Nodes() {
		label := spec.Name
		if spec.Replicas > 1 {
			label = fmt.Sprintf("%s (x%d)", spec.Name, spec.Replicas)
		}
		attrs := map[string]string{
			"shape": "box",
			"label": strconv.Quote(label + "\n" + spec.Type),
		}
		if err := viz.AddNode(name, strconv.Quote(spec.Name), attrs); err != nil {
			return "", err
		}
	}
	for _, root := range g.Roots() {
		if err := viz.AddEdge(source, strconv.Quote(root), true, nil); err != nil {
			return "", err
		}
	}
	for _, e := range g.Edges() {
		if err := viz.AddEdge(strconv.Quote(e.From), strconv.Quote(e.To), true, nil); err != nil {
			return "", err
		}
	}
	return viz.String(), nil
}
