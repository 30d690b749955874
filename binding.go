package binding

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-binding/internal/merge"
	"github.com/google/uuid"
)

// lane separates fetches from submits. Each lane carries its own sequence so
// a hydration fetch never invalidates a submit and vice versa.
type lane int

const (
	laneLoading lane = iota
	laneSubmitting
)

func (l lane) mark(loading, submitting *bool, active bool) {
	if l == laneLoading {
		*loading = active
		return
	}
	*submitting = active
}

// core holds the state cell and request bookkeeping shared by every binding
// variant.
type core[T any] struct {
	factory  *Factory
	resource string
	cell     *Cell[State[T]]
	ctx      context.Context
	cancel   context.CancelFunc
	closed   atomic.Bool
	// seq is only read or written inside cell update callbacks, under the
	// cell lock.
	seq [2]uint64
}

func newCore[T any](f *Factory, resource string, initial State[T]) (*core[T], error) {
	resource = strings.TrimSpace(resource)
	if resource == "" {
		return nil, ErrResourceRequired
	}
	if initial.Errors == nil {
		initial.Errors = []ErrorDetail{}
	}
	ctx, cancel := context.WithCancel(f.cfg.ctx)
	return &core[T]{
		factory:  f,
		resource: resource,
		cell:     NewCell(initial),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// State returns a copy of the current state.
func (c *core[T]) State() State[T] {
	return merge.Clone(c.cell.Get())
}

// Subscribe registers fn for state changes. fn receives a copy of the state
// and must not call state-changing methods of the same binding synchronously.
func (c *core[T]) Subscribe(fn func(State[T])) func() {
	if fn == nil {
		return func() {}
	}
	return c.cell.Subscribe(func(state State[T]) {
		fn(merge.Clone(state))
	})
}

// Close cancels in-flight requests. Completions that arrive afterwards are
// discarded and later operations return ErrClosed.
func (c *core[T]) Close() {
	c.closed.Store(true)
	c.cancel()
}

// Closed reports whether Close was called or the factory context ended.
func (c *core[T]) Closed() bool {
	return c.closed.Load() || c.ctx.Err() != nil
}

// Resource returns the resource name of the binding.
func (c *core[T]) Resource() string {
	return c.resource
}

func (c *core[T]) begin(l lane) (uint64, error) {
	if c.Closed() {
		return 0, ErrClosed
	}
	var seq uint64
	var closed bool
	c.cell.UpdateIf(func(state State[T]) (State[T], bool) {
		if c.Closed() {
			closed = true
			return state, false
		}
		c.seq[l]++
		seq = c.seq[l]
		l.mark(&state.Loading, &state.Submitting, true)
		return state, true
	})
	if closed {
		return 0, ErrClosed
	}
	return seq, nil
}

// finish applies fn and clears the lane flag when seq is still the latest
// request of the lane and the binding is open.
func (c *core[T]) finish(l lane, seq uint64, fn func(State[T]) State[T]) bool {
	_, applied := c.cell.UpdateIf(func(state State[T]) (State[T], bool) {
		if c.Closed() || c.seq[l] != seq {
			return state, false
		}
		if fn != nil {
			state = fn(state)
		}
		l.mark(&state.Loading, &state.Submitting, false)
		if state.Errors == nil {
			state.Errors = []ErrorDetail{}
		}
		return state, true
	})
	return applied
}

// patch applies a local change without touching request bookkeeping.
func (c *core[T]) patch(fn func(State[T]) State[T]) bool {
	_, applied := c.cell.UpdateIf(func(state State[T]) (State[T], bool) {
		if c.Closed() {
			return state, false
		}
		return fn(state), true
	})
	return applied
}

// requestContext derives a context that ends with either ctx or the binding.
func (c *core[T]) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	rctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	return rctx, func() {
		stop()
		cancel()
	}
}

// request describes one client call issued by a binding.
type request[T, R any] struct {
	lane      lane
	operation Operation
	send      func(ctx context.Context, client Client) (Response[R], error)
	// reconcile runs outside the cell lock and returns the state transition
	// applied when the response is still current.
	reconcile func(resp Response[R]) (func(State[T]) State[T], error)
	broadcast bool
	// succeeded runs after a current response without errors was applied.
	succeeded func(ctx context.Context, resp Response[R], requestID string) error
}

// execute runs req through the binding lifecycle: mark the lane, send, then
// reconcile the response unless a newer request or Close superseded it.
func execute[T, R any](ctx context.Context, c *core[T], req request[T, R]) (Response[R], error) {
	if ctx == nil {
		ctx = context.Background()
	}
	seq, err := c.begin(req.lane)
	if err != nil {
		return Response[R]{}.Normalize(), err
	}

	requestID := uuid.NewString()
	event := RequestLogEvent{
		RequestID: requestID,
		Resource:  c.resource,
		Operation: req.operation,
		Sequence:  seq,
	}

	rctx, cancel := c.requestContext(ctx)
	start := time.Now()
	resp, err := req.send(rctx, c.factory.currentClient())
	event.Duration = time.Since(start)
	cancel()
	resp = resp.Normalize()

	if err != nil {
		return resp, c.fail(req.lane, seq, event, err)
	}

	event.Errors = len(resp.Errors)
	event.Records = len(resp.Records)

	var apply func(State[T]) State[T]
	if req.reconcile != nil {
		apply, err = req.reconcile(resp)
		if err != nil {
			return resp, c.fail(req.lane, seq, event, err)
		}
	}

	if !c.finish(req.lane, seq, apply) {
		event.Discarded = true
		c.factory.logRequest(event)
		return resp, nil
	}

	if req.broadcast {
		c.factory.broadcaster.Forward(resp.Records)
	}
	if resp.OK() && req.succeeded != nil {
		event.ActivityErr = req.succeeded(ctx, resp, requestID)
	}
	c.factory.logRequest(event)
	return resp, nil
}

// fail clears the lane flag, keeping data untouched, and wraps err.
func (c *core[T]) fail(ln lane, seq uint64, event RequestLogEvent, err error) error {
	event.Discarded = !c.finish(ln, seq, nil)
	if c.Closed() {
		err = fmt.Errorf("%w: %w", ErrClosed, err)
	} else {
		err = fmt.Errorf("binding: %s %s: %w", event.Operation, c.resource, err)
	}
	event.Err = err
	c.factory.logRequest(event)
	return err
}
