package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ravi-parthasarathy/conduit/pkg/node"
)

const defaultAcquireTimeout = 30 * time.Second

// Engine executes runs of one built graph. Construction activates the
// graph: every component is instantiated through its registered factory,
// component references are resolved to shared instances, and replica pools
// are created for nodes declaring replicas > 1. The graph itself stays
// immutable; the replica pools are the only shared mutable state, so any
// number of runs may proceed concurrently against one Engine.
type Engine struct {
	graph  *Graph
	logger *slog.Logger

	acquireTimeout time.Duration
	inflight       *semaphore.Weighted // nil means unbounded

	invokers map[string]invoker
	shared   map[string]node.Handler // memoized shared component instances
	pools    []*replicaPool

	closeOnce sync.Once
	closeErr  error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithAcquireTimeout bounds how long an invocation of a replicated node
// waits for a free instance. Zero keeps the 30s default.
func WithAcquireTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.acquireTimeout = d
		}
	}
}

// WithMaxInFlight caps concurrent node invocations across all runs of this
// engine. Zero (the default) means unbounded.
func WithMaxInFlight(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.inflight = semaphore.NewWeighted(n)
		}
	}
}

// NewEngine activates graph: instantiates every component and creates
// replica pools. The registry must be the one the graph was built against.
// Call Close when done to release instance resources.
func NewEngine(graph *Graph, reg *node.Registry, opts ...Option) (*Engine, error) {
	e := &Engine{
		graph:          graph,
		logger:         slog.Default(),
		acquireTimeout: defaultAcquireTimeout,
		invokers:       make(map[string]invoker),
		shared:         make(map[string]node.Handler),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, spec := range graph.Nodes() {
		if spec.Replicas == 1 {
			h, err := e.instance(spec.Name, reg)
			if err != nil {
				e.closeInstances()
				return nil, err
			}
			e.invokers[spec.Name] = &directInvoker{handler: h}
			continue
		}

		// Replicated node: N independent instances over the same resolved
		// params. Referenced components stay shared so replicas of a
		// retriever all see the one document store.
		params, registration, err := e.resolveParams(spec, reg)
		if err != nil {
			e.closeInstances()
			return nil, err
		}
		instances := make([]node.Handler, spec.Replicas)
		for i := range instances {
			inst, err := registration.Factory(params)
			if err != nil {
				e.closeInstances()
				return nil, fmt.Errorf("node %q: replica %d: %w", spec.Name, i, err)
			}
			instances[i] = inst
		}
		pool := newReplicaPool(spec.Name, instances, e.acquireTimeout, e.logger)
		e.pools = append(e.pools, pool)
		e.invokers[spec.Name] = pool
	}
	return e, nil
}

// instance returns the memoized shared instance for a component,
// constructing it (and, through resolveParams, its referenced components)
// on first use. Build rejected reference cycles, so recursion terminates.
func (e *Engine) instance(name string, reg *node.Registry) (node.Handler, error) {
	if h, ok := e.shared[name]; ok {
		return h, nil
	}
	spec := e.graph.Node(name)
	if spec == nil {
		spec = e.graph.Aux(name)
	}
	if spec == nil {
		return nil, fmt.Errorf("no component %q in graph", name)
	}
	params, registration, err := e.resolveParams(spec, reg)
	if err != nil {
		return nil, err
	}
	h, err := registration.Factory(params)
	if err != nil {
		return nil, fmt.Errorf("component %q: %w", name, err)
	}
	e.shared[name] = h
	return h, nil
}

// resolveParams copies a spec's params with every KindComponent reference
// replaced by the referenced component's shared instance.
func (e *Engine) resolveParams(spec *NodeSpec, reg *node.Registry) (node.Params, node.Registration, error) {
	registration, err := reg.Resolve(spec.Type)
	if err != nil {
		return nil, node.Registration{}, fmt.Errorf("component %q: %w", spec.Name, err)
	}
	params := make(node.Params, len(spec.Params))
	for k, v := range spec.Params {
		params[k] = v
	}
	for field, f := range registration.Schema {
		if f.Kind != node.KindComponent {
			continue
		}
		ref, ok := params[field].(string)
		if !ok {
			continue
		}
		inst, err := e.instance(ref, reg)
		if err != nil {
			return nil, node.Registration{}, err
		}
		params[field] = inst
	}
	return params, registration, nil
}

// waveTask is one node's ready-to-run invocation: its inputs and merged
// params are resolved up front so the executing goroutine touches no
// shared per-run state besides the output map write.
type waveTask struct {
	spec   *NodeSpec
	inputs []*node.Message
	params node.Params
}

// Run pushes one request through the graph. Nodes execute in topological
// waves; nodes within a wave are independent and run concurrently. Each
// node's output is computed at most once per run and handed unchanged to
// every consumer. On any node failure the run fails atomically: in-flight
// siblings finish, nothing downstream is scheduled, and no partial result
// is returned. Side effects already committed by completed upstream nodes
// are not rolled back.
func (e *Engine) Run(ctx context.Context, req *RunRequest) (*RunResult, error) {
	if req == nil {
		req = &RunRequest{}
	}
	root, err := e.rootMessage(req)
	if err != nil {
		return nil, err
	}

	outputs := make(map[string]*node.Message, len(e.graph.order))
	var traces map[string]NodeTrace
	if req.Debug {
		traces = make(map[string]NodeTrace, len(e.graph.order))
	}
	var mu sync.Mutex

	for _, wave := range e.graph.Waves() {
		if err := ctx.Err(); err != nil {
			return nil, &CancelledError{Err: err}
		}

		// Gather every wave member's inputs and merged params before any
		// goroutine launches. Producer outputs all landed in earlier waves,
		// and nothing writes the map until the first g.Go below, so these
		// reads never overlap a sibling's write.
		tasks := make([]waveTask, len(wave))
		for i, name := range wave {
			spec := e.graph.Node(name)
			inputs := make([]*node.Message, len(spec.Inputs))
			for j, in := range spec.Inputs {
				if in == SourceQuery || in == SourceFile {
					inputs[j] = root
				} else {
					inputs[j] = outputs[in]
				}
			}
			tasks[i] = waveTask{
				spec:   spec,
				inputs: inputs,
				params: spec.Params.Merged(req.Params[spec.Name]),
			}
		}

		// Plain errgroup, not WithContext: a failing node must not preempt
		// its in-flight siblings, only stop later waves.
		var g errgroup.Group
		for _, t := range tasks {
			spec, inputs, params := t.spec, t.inputs, t.params

			g.Go(func() error {
				if e.inflight != nil {
					if err := e.inflight.Acquire(ctx, 1); err != nil {
						return &CancelledError{Err: err}
					}
					defer e.inflight.Release(1)
				}

				e.logger.Info("executing node", "pipeline", e.graph.Name, "node", spec.Name, "type", spec.Type)
				start := time.Now()
				out, err := e.invokers[spec.Name].invoke(ctx, inputs, params)
				if err != nil {
					return e.classify(ctx, spec.Name, err)
				}
				if out == nil {
					out = &node.Message{}
				}

				mu.Lock()
				outputs[spec.Name] = out
				if traces != nil {
					traces[spec.Name] = NodeTrace{
						Duration:  time.Since(start),
						Inputs:    len(inputs),
						Documents: len(out.Documents),
						Answers:   len(out.Answers),
						Replicas:  spec.Replicas,
					}
				}
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	result := &RunResult{Outputs: make(map[string]*node.Message), Trace: traces}
	for _, sink := range e.graph.Sinks() {
		result.Outputs[sink] = outputs[sink]
	}
	return result, nil
}

// rootMessage checks the request payload against the graph's source kind
// and builds the message entry nodes receive.
func (e *Engine) rootMessage(req *RunRequest) (*node.Message, error) {
	switch e.graph.Source {
	case FileSource:
		if len(req.FilePaths) == 0 {
			return nil, fmt.Errorf("pipeline %q reads from %s: RunRequest.FilePaths is empty", e.graph.Name, SourceFile)
		}
		return &node.Message{FilePaths: req.FilePaths}, nil
	default:
		if len(req.FilePaths) > 0 {
			return nil, fmt.Errorf("pipeline %q reads from %s: RunRequest.FilePaths must be empty", e.graph.Name, SourceQuery)
		}
		return &node.Message{Query: req.Query, Filters: req.Filters}, nil
	}
}

// classify maps a node invocation failure to the run-level error taxonomy.
func (e *Engine) classify(ctx context.Context, name string, err error) error {
	var routing *RoutingError
	if errors.As(err, &routing) {
		return err
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return &CancelledError{Err: err}
	}
	return &ExecutionError{Node: name, Err: err}
}

// Close releases every replica instance and shared component instance that
// holds external resources. The engine must not be used afterwards.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = e.closeInstances()
	})
	return e.closeErr
}

func (e *Engine) closeInstances() error {
	var errs []error
	for _, p := range e.pools {
		if err := p.close(); err != nil {
			errs = append(errs, err)
		}
	}
	for name, h := range e.shared {
		if c, ok := h.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("component %q: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}
