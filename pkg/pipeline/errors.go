package pipeline

import (
	"fmt"
	"strings"
)

// BuildError aggregates every structural problem found while building a
// graph. All validation runs to completion before Build fails, so one
// build reports all defects in a definition. The individual problems are
// reachable through errors.As / errors.Is via Unwrap.
type BuildError struct {
	Pipeline string
	Errs     []error
}

func (e *BuildError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("pipeline %q: build failed:\n  %s", e.Pipeline, strings.Join(msgs, "\n  "))
}

func (e *BuildError) Unwrap() []error { return e.Errs }

// CycleError reports a dependency cycle between nodes. Cycle lists the node
// names along the cycle, ending where it started.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// MixedSourceError reports a pipeline whose entry nodes disagree on the
// source token: some read from Query, others from File.
type MixedSourceError struct {
	Tokens []string
}

func (e *MixedSourceError) Error() string {
	return fmt.Sprintf("pipeline mixes source tokens %s; exactly one of %s or %s may be used",
		strings.Join(e.Tokens, " and "), SourceQuery, SourceFile)
}

// UnknownNodeError reports an input reference that names neither a node in
// the pipeline nor a recognized source token, or a pipeline node with no
// component definition.
type UnknownNodeError struct {
	Node string // the node whose declaration is at fault
	Ref  string // the unresolvable name
}

func (e *UnknownNodeError) Error() string {
	if e.Node == e.Ref {
		return fmt.Sprintf("node %q has no component definition", e.Node)
	}
	return fmt.Sprintf("node %q: input %q is not a node in this pipeline or a source token", e.Node, e.Ref)
}

// InvalidParamsError reports a component whose params violate its type's
// schema. Problems lists every violation.
type InvalidParamsError struct {
	Component string
	Type      string
	Problems  []string
}

func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("component %q (type %q): %s", e.Component, e.Type, strings.Join(e.Problems, "; "))
}

// ExecutionError reports a node invocation failure during a run. The run
// fails atomically from the caller's perspective; side effects already
// committed by completed upstream nodes are not rolled back.
type ExecutionError struct {
	Node string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("node %q: %v", e.Node, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// RoutingError reports that a replicated node had no free instance within
// the acquisition timeout.
type RoutingError struct {
	Node string
	Err  error
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("node %q: routing: %v", e.Node, e.Err)
}

func (e *RoutingError) Unwrap() error { return e.Err }

// CancelledError reports a run aborted by the caller. In-flight node
// invocations were allowed to finish; no further nodes were scheduled.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("run cancelled: %v", e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }
