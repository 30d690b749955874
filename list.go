package binding

import (
	"context"
	"sync"

	"github.com/goliatone/go-binding/internal/merge"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// List binds an index resource. Data is a collection, optionally accumulated
// across pages when a query appends.
type List struct {
	*core[Collection]

	mu      sync.Mutex
	query   QueryState
	fetched Params
	loaded  bool
}

func newList(c *core[Collection], params Params, preloaded bool) *List {
	return &List{
		core: c,
		query: QueryState{
			Params: merge.Clone(params),
			Skip:   preloaded,
		},
	}
}

// SetData replaces the list data locally. Flags and errors are untouched.
func (l *List) SetData(data Collection) {
	data = merge.Clone(data)
	if data == nil {
		data = Collection{}
	}
	l.patch(func(state State[Collection]) State[Collection] {
		state.Data = data
		return state
	})
}

// Params returns a copy of the current query params.
func (l *List) Params() Params {
	l.mu.Lock()
	defer l.mu.Unlock()
	return merge.Clone(l.query.Params)
}

// Query returns a copy of the current query state.
func (l *List) Query() QueryState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return merge.Clone(l.query)
}

// Load fetches the current query unless it is skipped or its params equal, by
// value, the params of the last fetch. It reports whether a fetch ran.
func (l *List) Load(ctx context.Context) (bool, error) {
	if l.Closed() {
		return false, ErrClosed
	}
	l.mu.Lock()
	if l.query.Skip || (l.loaded && paramsEqual(l.fetched, l.query.Params)) {
		l.mu.Unlock()
		return false, nil
	}
	query := l.markFetched()
	l.mu.Unlock()

	_, err := l.fetch(ctx, query)
	return true, err
}

// Requery replaces the query and always fetches, clearing any skip. With
// append the response data is concatenated after the current data.
func (l *List) Requery(ctx context.Context, params Params, appendData bool) (Response[Collection], error) {
	if l.Closed() {
		return Response[Collection]{}.Normalize(), ErrClosed
	}
	l.mu.Lock()
	l.query = QueryState{Params: merge.Clone(params), Append: appendData}
	query := l.markFetched()
	l.mu.Unlock()

	return l.fetch(ctx, query)
}

// Refresh re-runs the current query, replacing data.
func (l *List) Refresh(ctx context.Context) (Response[Collection], error) {
	if l.Closed() {
		return Response[Collection]{}.Normalize(), ErrClosed
	}
	l.mu.Lock()
	l.query.Append = false
	l.query.Skip = false
	query := l.markFetched()
	l.mu.Unlock()

	return l.fetch(ctx, query)
}

// markFetched must be called with l.mu held.
func (l *List) markFetched() QueryState {
	l.fetched = merge.Clone(l.query.Params)
	l.loaded = true
	return merge.Clone(l.query)
}

func (l *List) fetch(ctx context.Context, query QueryState) (Response[Collection], error) {
	var merged Collection
	resp, err := execute(ctx, l.core, request[Collection, Collection]{
		lane:      laneLoading,
		operation: OpIndex,
		broadcast: true,
		send: func(ctx context.Context, client Client) (Response[Collection], error) {
			return client.Index(ctx, l.resource, query.Params)
		},
		reconcile: func(resp Response[Collection]) (func(State[Collection]) State[Collection], error) {
			incoming := merge.Clone(resp.Data)
			return func(state State[Collection]) State[Collection] {
				if query.Append {
					merged = merge.Concat(state.Data, incoming)
				} else {
					merged = incoming
				}
				if merged == nil {
					merged = Collection{}
				}
				state.Data = merged
				state.Errors = merge.Clone(resp.Errors)
				return state
			}, nil
		},
	})
	if err != nil {
		l.forget(query.Params)
		return resp, err
	}
	if merged != nil {
		resp.Data = merge.Clone(merged)
	}
	return resp, nil
}

// forget clears the last fetched params after a failed request so the next
// Load retries.
func (l *List) forget(params Params) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if paramsEqual(l.fetched, params) {
		l.loaded = false
		l.fetched = nil
	}
}

var paramsCompare = []cmp.Option{cmpopts.EquateEmpty()}

// paramsEqual compares params by value. Nil and empty params are equal.
func paramsEqual(a, b Params) bool {
	return cmp.Equal(a, b, paramsCompare...)
}
