package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ravi-parthasarathy/conduit/pkg/node"
)

// invoker is the engine's uniform view of a node: either a single shared
// instance or a replica pool.
type invoker interface {
	invoke(ctx context.Context, inputs []*node.Message, params node.Params) (*node.Message, error)
	close() error
}

// directInvoker wraps a single-instance node; replicas = 1 bypasses the
// router entirely. The engine closes shared instances itself, so close is
// a no-op here.
type directInvoker struct {
	handler node.Handler
}

func (d *directInvoker) invoke(ctx context.Context, inputs []*node.Message, params node.Params) (*node.Message, error) {
	return d.handler.Invoke(ctx, inputs, params)
}

func (d *directInvoker) close() error { return nil }

// replicaPool routes invocations of one replicated node across N
// independently-constructed instances. A buffered channel serves as the
// free list: acquisition order follows release order, spreading load
// round-robin across idle instances, and the channel's capacity enforces
// mutual exclusion per instance. When all instances are busy the caller
// blocks up to acquireTimeout, giving bounded admission control rather
// than an unbounded queue.
type replicaPool struct {
	name           string
	instances      []node.Handler
	free           chan node.Handler
	acquireTimeout time.Duration
	logger         *slog.Logger
}

func newReplicaPool(name string, instances []node.Handler, acquireTimeout time.Duration, logger *slog.Logger) *replicaPool {
	p := &replicaPool{
		name:           name,
		instances:      instances,
		free:           make(chan node.Handler, len(instances)),
		acquireTimeout: acquireTimeout,
		logger:         logger,
	}
	for _, inst := range instances {
		p.free <- inst
	}
	return p
}

// invoke runs one invocation on a free instance. A failing instance stays
// in the pool, but the invocation is retried once on a different instance
// before the failure propagates: repeated failures usually indicate a
// systemic problem, not an instance-specific one.
func (p *replicaPool) invoke(ctx context.Context, inputs []*node.Message, params node.Params) (*node.Message, error) {
	first, err := p.acquire(ctx)
	if err != nil {
		return nil, &RoutingError{Node: p.name, Err: err}
	}

	out, invokeErr := first.Invoke(ctx, inputs, params)
	if invokeErr == nil {
		p.release(first)
		return out, nil
	}
	if ctx.Err() != nil {
		p.release(first)
		return nil, invokeErr
	}

	// Hold the failed instance until a different one is acquired, then
	// return both to the pool.
	second, acqErr := p.acquire(ctx)
	p.release(first)
	if acqErr != nil {
		// The node failed and the retry could not even start. The failure
		// stays the node's, with the lost retry attached as context.
		return nil, fmt.Errorf("%w (retry unavailable: %v)", invokeErr, acqErr)
	}
	p.logger.Warn("replica invocation failed, retrying on another instance",
		"node", p.name, "error", invokeErr)

	out, retryErr := second.Invoke(ctx, inputs, params)
	p.release(second)
	if retryErr != nil {
		return nil, errors.Join(invokeErr, retryErr)
	}
	return out, nil
}

func (p *replicaPool) acquire(ctx context.Context) (node.Handler, error) {
	select {
	case inst := <-p.free:
		return inst, nil
	default:
	}

	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()
	select {
	case inst := <-p.free:
		return inst, nil
	case <-timer.C:
		return nil, fmt.Errorf("no free replica within %s (%d replicas busy)", p.acquireTimeout, len(p.instances))
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *replicaPool) release(inst node.Handler) {
	p.free <- inst
}

// close tears down every instance that holds external resources.
func (p *replicaPool) close() error {
	var errs []error
	for _, inst := range p.instances {
		if c, ok := inst.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("replica of %q: %w", p.name, err))
			}
		}
	}
	return errors.Join(errs...)
}
