package binding

import (
	"context"
	"sync"

	"github.com/goliatone/go-binding/internal/merge"
)

// Single binds one record of a resource. It refetches whenever its params
// change by value.
type Single struct {
	*core[Model]

	mu      sync.Mutex
	params  Params
	fetched Params
	loaded  bool
}

func newSingle(c *core[Model], params Params) *Single {
	return &Single{core: c, params: merge.Clone(params)}
}

// SetData replaces the record data locally.
func (s *Single) SetData(data Model) {
	data = merge.Clone(data)
	if data == nil {
		data = Model{}
	}
	s.patch(func(state State[Model]) State[Model] {
		state.Data = data
		return state
	})
}

// Params returns a copy of the current params.
func (s *Single) Params() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return merge.Clone(s.params)
}

// SetParams replaces the params and fetches when they differ by value from
// the params of the last fetch. It reports whether a fetch ran.
func (s *Single) SetParams(ctx context.Context, params Params) (bool, error) {
	if s.Closed() {
		return false, ErrClosed
	}
	s.mu.Lock()
	s.params = merge.Clone(params)
	s.mu.Unlock()
	return s.Load(ctx)
}

// Load fetches on first use and whenever params changed since the last fetch.
func (s *Single) Load(ctx context.Context) (bool, error) {
	if s.Closed() {
		return false, ErrClosed
	}
	s.mu.Lock()
	if s.loaded && paramsEqual(s.fetched, s.params) {
		s.mu.Unlock()
		return false, nil
	}
	params := s.markFetched()
	s.mu.Unlock()

	_, err := s.fetch(ctx, params)
	return true, err
}

// Refresh fetches the current params unconditionally.
func (s *Single) Refresh(ctx context.Context) (Response[Model], error) {
	if s.Closed() {
		return Response[Model]{}.Normalize(), ErrClosed
	}
	s.mu.Lock()
	params := s.markFetched()
	s.mu.Unlock()
	return s.fetch(ctx, params)
}

// markFetched must be called with s.mu held.
func (s *Single) markFetched() Params {
	s.fetched = merge.Clone(s.params)
	s.loaded = true
	return merge.Clone(s.params)
}

func (s *Single) fetch(ctx context.Context, params Params) (Response[Model], error) {
	resp, err := execute(ctx, s.core, request[Model, Model]{
		lane:      laneLoading,
		operation: OpShow,
		broadcast: true,
		send: func(ctx context.Context, client Client) (Response[Model], error) {
			return client.Show(ctx, s.resource, params)
		},
		reconcile: func(resp Response[Model]) (func(State[Model]) State[Model], error) {
			data := merge.Clone(resp.Data)
			if data == nil {
				data = Model{}
			}
			errs := merge.Clone(resp.Errors)
			return func(state State[Model]) State[Model] {
				state.Data = data
				state.Errors = errs
				return state
			}, nil
		},
	})
	if err != nil {
		s.mu.Lock()
		if paramsEqual(s.fetched, params) {
			s.loaded = false
			s.fetched = nil
		}
		s.mu.Unlock()
	}
	return resp, err
}
