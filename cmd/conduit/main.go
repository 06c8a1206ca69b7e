package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/conduit/pkg/node"
	"github.com/ravi-parthasarathy/conduit/pkg/pipeline"

	// Register built-in node kinds and LLM providers via their init() functions.
	_ "github.com/ravi-parthasarathy/conduit/pkg/llm/providers"
	_ "github.com/ravi-parthasarathy/conduit/pkg/nodes"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "conduit",
		Short: "Conduit - declarative document pipeline runner",
		Long: `Conduit executes YAML-defined pipelines of document processing nodes.

A definition file declares configured components (converters, stores,
retrievers, readers, generators) and wires them into pipelines. Query
pipelines answer questions over indexed documents; indexing pipelines
write files into a document store.`,
		PersistentPreRun: func(*cobra.Command, []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelInfo
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log node execution to stderr")
	root.AddCommand(runCmd())
	root.AddCommand(indexCmd())
	root.AddCommand(lintCmd())
	root.AddCommand(graphCmd())
	return root
}

// ─── run ──────────────────────────────────────────────────────────────────────

func runCmd() *cobra.Command {
	var (
		pipelineName   string
		paramFlags     []string
		filterFlags    []string
		debug          bool
		maxInFlight    int64
		acquireTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run <pipeline.yml> <query>",
		Short: "Execute a query pipeline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(args[0], pipelineName, maxInFlight, acquireTimeout)
			if err != nil {
				return err
			}
			defer eng.Close()

			overrides, err := parseParamFlags(paramFlags)
			if err != nil {
				return err
			}
			filters, err := parsePairs(filterFlags)
			if err != nil {
				return err
			}

			result, err := eng.Run(signalContext(cmd.Context()), &pipeline.RunRequest{
				Query:   args[1],
				Filters: filters,
				Params:  overrides,
				Debug:   debug,
			})
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&pipelineName, "pipeline", "", "pipeline name within the definition (default: first)")
	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "per-run param override, Node.key=value (repeatable)")
	cmd.Flags().StringArrayVar(&filterFlags, "filter", nil, "metadata filter, key=value (repeatable)")
	cmd.Flags().BoolVar(&debug, "debug", false, "print per-node execution trace")
	cmd.Flags().Int64Var(&maxInFlight, "max-in-flight", 0, "cap on concurrent node invocations (0 = unbounded)")
	cmd.Flags().DurationVar(&acquireTimeout, "acquire-timeout", 30*time.Second, "wait limit for a free replica instance")
	return cmd
}

// ─── index ────────────────────────────────────────────────────────────────────

func indexCmd() *cobra.Command {
	var (
		pipelineName string
		paramFlags   []string
	)

	cmd := &cobra.Command{
		Use:   "index <pipeline.yml> <file>...",
		Short: "Run files through an indexing pipeline",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine(args[0], pipelineName, 0, 30*time.Second)
			if err != nil {
				return err
			}
			defer eng.Close()

			overrides, err := parseParamFlags(paramFlags)
			if err != nil {
				return err
			}

			result, err := eng.Run(signalContext(cmd.Context()), &pipeline.RunRequest{
				FilePaths: args[1:],
				Params:    overrides,
			})
			if err != nil {
				return err
			}
			for name, msg := range result.Outputs {
				if msg == nil {
					continue
				}
				if n, ok := msg.Meta["written"]; ok {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: wrote %v documents\n", name, n)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pipelineName, "pipeline", "", "pipeline name within the definition (default: first)")
	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "per-run param override, Node.key=value (repeatable)")
	return cmd
}

// ─── lint ─────────────────────────────────────────────────────────────────────

func lintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint <pipeline.yml>",
		Short: "Validate a pipeline definition without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := pipeline.LoadDefinition(args[0])
			if err != nil {
				return err
			}
			if len(def.Pipelines) == 0 {
				return fmt.Errorf("%s: no pipelines defined", args[0])
			}
			for _, pdef := range def.Pipelines {
				g, err := pipeline.Build(def, pdef.Name, node.Default)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "OK: pipeline %q is valid (%d nodes, %d edges)\n",
					g.Name, len(g.Nodes()), len(g.Edges()))
			}
			return nil
		},
		Args: cobra.ExactArgs(1),
	}
	return cmd
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// buildEngine loads a definition, builds the selected pipeline graph and
// activates it. An empty pipelineName selects the first pipeline in the file.
func buildEngine(path, pipelineName string, maxInFlight int64, acquireTimeout time.Duration) (*pipeline.Engine, error) {
	def, err := pipeline.LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	if pipelineName == "" {
		if len(def.Pipelines) == 0 {
			return nil, fmt.Errorf("%s: no pipelines defined", path)
		}
		pipelineName = def.Pipelines[0].Name
	}
	g, err := pipeline.Build(def, pipelineName, node.Default)
	if err != nil {
		return nil, err
	}
	return pipeline.NewEngine(g, node.Default,
		pipeline.WithMaxInFlight(maxInFlight),
		pipeline.WithAcquireTimeout(acquireTimeout),
	)
}

// parseParamFlags turns repeated "Node.key=value" flags into per-node
// override maps. Values parse as bool, int or float where possible and fall
// back to string.
func parseParamFlags(flags []string) (map[string]node.Params, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	out := make(map[string]node.Params)
	for _, f := range flags {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("--param %q: expected Node.key=value", f)
		}
		nodeName, paramKey, ok := strings.Cut(key, ".")
		if !ok || nodeName == "" || paramKey == "" {
			return nil, fmt.Errorf("--param %q: expected Node.key=value", f)
		}
		if out[nodeName] == nil {
			out[nodeName] = node.Params{}
		}
		out[nodeName][paramKey] = coerceValue(value)
	}
	return out, nil
}

func coerceValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func parsePairs(flags []string) (map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(flags))
	for _, f := range flags {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--filter %q: expected key=value", f)
		}
		out[k] = v
	}
	return out, nil
}

// printResult writes sink outputs: answers first, then documents, then any
// trace rows.
func printResult(w io.Writer, result *pipeline.RunResult) {
	for _, name := range sortedKeys(result.Outputs) {
		msg := result.Outputs[name]
		if msg == nil {
			continue
		}
		for _, a := range msg.Answers {
			fmt.Fprintf(w, "%s: %s  (score %.3f)\n", name, a.Answer, a.Score)
		}
		if len(msg.Answers) == 0 {
			for _, d := range msg.Documents {
				fmt.Fprintf(w, "%s: [%s] %s\n", name, d.ID, truncate(d.Content, 120))
			}
		}
	}
	for _, name := range sortedKeys(result.Trace) {
		t := result.Trace[name]
		fmt.Fprintf(w, "trace: %-20s %8s  in=%d docs=%d answers=%d replicas=%d\n",
			name, t.Duration.Round(time.Millisecond), t.Inputs, t.Documents, t.Answers, t.Replicas)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ch:
			fmt.Fprintln(os.Stderr, "\n[conduit] interrupted, cancelling run")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx
}
