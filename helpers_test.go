package binding_test

import (
	"context"
	"sync"
	"testing"
	"time"

	binding "github.com/goliatone/go-binding"
)

type clientCall struct {
	Operation binding.Operation
	Resource  string
	Params    binding.Params
	Data      binding.Model
}

// fakeClient records calls and delegates to per-operation handlers. Handlers
// left nil return an empty successful response.
type fakeClient struct {
	mu         sync.Mutex
	calls      []clientCall
	configured []binding.ClientConfig

	index  func(ctx context.Context, params binding.Params) (binding.Response[binding.Collection], error)
	show   func(ctx context.Context, params binding.Params) (binding.Response[binding.Model], error)
	store  func(ctx context.Context, data binding.Model) (binding.Response[binding.Model], error)
	update func(ctx context.Context, data binding.Model) (binding.Response[binding.Model], error)
	remove func(ctx context.Context, params binding.Params) (binding.Response[binding.Model], error)
	login  func(ctx context.Context, data binding.Model) (binding.Response[binding.Model], error)
	logout func(ctx context.Context, data binding.Model) (binding.Response[binding.Model], error)
}

func (c *fakeClient) record(call clientCall) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *fakeClient) Calls() []clientCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]clientCall(nil), c.calls...)
}

func (c *fakeClient) Configs() []binding.ClientConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]binding.ClientConfig(nil), c.configured...)
}

func (c *fakeClient) Configure(cfg binding.ClientConfig) binding.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configured = append(c.configured, cfg)
	return c
}

func (c *fakeClient) Index(ctx context.Context, resource string, params binding.Params) (binding.Response[binding.Collection], error) {
	c.record(clientCall{Operation: binding.OpIndex, Resource: resource, Params: params})
	if c.index == nil {
		return binding.Response[binding.Collection]{}, nil
	}
	return c.index(ctx, params)
}

func (c *fakeClient) Show(ctx context.Context, resource string, params binding.Params) (binding.Response[binding.Model], error) {
	c.record(clientCall{Operation: binding.OpShow, Resource: resource, Params: params})
	return callModel(ctx, c.show, params)
}

func (c *fakeClient) Store(ctx context.Context, resource string, data binding.Model) (binding.Response[binding.Model], error) {
	c.record(clientCall{Operation: binding.OpStore, Resource: resource, Data: data})
	return callData(ctx, c.store, data)
}

func (c *fakeClient) Update(ctx context.Context, resource string, data binding.Model) (binding.Response[binding.Model], error) {
	c.record(clientCall{Operation: binding.OpUpdate, Resource: resource, Data: data})
	return callData(ctx, c.update, data)
}

func (c *fakeClient) Delete(ctx context.Context, resource string, params binding.Params) (binding.Response[binding.Model], error) {
	c.record(clientCall{Operation: binding.OpDelete, Resource: resource, Params: params})
	return callModel(ctx, c.remove, params)
}

func (c *fakeClient) Login(ctx context.Context, data binding.Model) (binding.Response[binding.Model], error) {
	c.record(clientCall{Operation: binding.OpLogin, Data: data})
	return callData(ctx, c.login, data)
}

func (c *fakeClient) Logout(ctx context.Context, data binding.Model) (binding.Response[binding.Model], error) {
	c.record(clientCall{Operation: binding.OpLogout, Data: data})
	return callData(ctx, c.logout, data)
}

func callModel(ctx context.Context, fn func(context.Context, binding.Params) (binding.Response[binding.Model], error), params binding.Params) (binding.Response[binding.Model], error) {
	if fn == nil {
		return binding.Response[binding.Model]{}, nil
	}
	return fn(ctx, params)
}

func callData(ctx context.Context, fn func(context.Context, binding.Model) (binding.Response[binding.Model], error), data binding.Model) (binding.Response[binding.Model], error) {
	if fn == nil {
		return binding.Response[binding.Model]{}, nil
	}
	return fn(ctx, data)
}

// gate blocks a handler until released so tests can observe in-flight state.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 8), release: make(chan struct{})}
}

// wait blocks until release is closed or ctx ends.
func (g *gate) wait(ctx context.Context) error {
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gate) awaitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("handler was not entered")
	}
}

func (g *gate) open() {
	close(g.release)
}

// broadcastRecorder captures every forwarded snapshot.
type broadcastRecorder struct {
	mu    sync.Mutex
	calls [][]binding.Record
	keys  []string
}

func (r *broadcastRecorder) set(records []binding.Record, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, records)
	r.keys = append(r.keys, key)
}

func (r *broadcastRecorder) Calls() ([][]binding.Record, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]binding.Record(nil), r.calls...), append([]string(nil), r.keys...)
}

// requestRecorder captures request log events.
type requestRecorder struct {
	mu     sync.Mutex
	events []binding.RequestLogEvent
}

func (r *requestRecorder) LogRequest(event binding.RequestLogEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *requestRecorder) Events() []binding.RequestLogEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]binding.RequestLogEvent(nil), r.events...)
}

func newFactory(t *testing.T, client binding.Client, opts ...binding.Option) *binding.Factory {
	t.Helper()
	factory, err := binding.New(client, opts...)
	if err != nil {
		t.Fatalf("new factory: %v", err)
	}
	return factory
}

type result[T any] struct {
	resp binding.Response[T]
	err  error
}

func async[T any](fn func() (binding.Response[T], error)) <-chan result[T] {
	out := make(chan result[T], 1)
	go func() {
		resp, err := fn()
		out <- result[T]{resp: resp, err: err}
	}()
	return out
}

func await[T any](t *testing.T, ch <-chan result[T]) result[T] {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("operation did not complete")
		return result[T]{}
	}
}
