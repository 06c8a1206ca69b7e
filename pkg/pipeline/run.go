package pipeline

import (
	"time"

	"github.com/ravi-parthasarathy/conduit/pkg/node"
)

// RunRequest is one execution of a pipeline. The source payload must match
// the graph's source kind: Query (plus optional Filters) for query
// pipelines, FilePaths for indexing pipelines. Params are per-node partial
// overrides applied field-by-field on top of static config for this run
// only. The request is owned by the caller and never outlives the run.
type RunRequest struct {
	Query     string
	Filters   map[string]string
	FilePaths []string

	// Params maps node name to a partial override of that node's params.
	Params map[string]node.Params

	// Debug enables per-node trace capture in the RunResult.
	Debug bool
}

// NodeTrace records one node invocation for debugging.
type NodeTrace struct {
	Duration  time.Duration
	Inputs    int
	Documents int // documents in the node's output
	Answers   int // answers in the node's output
	Replicas  int
}

// RunResult holds the output of every sink node, keyed by sink name.
type RunResult struct {
	Outputs map[string]*node.Message

	// Trace is populated per executed node when RunRequest.Debug is set.
	Trace map[string]NodeTrace
}

// Output returns the sink output for name, or nil.
func (r *RunResult) Output(name string) *node.Message {
	return r.Outputs[name]
}
