package binding

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/goliatone/go-binding/internal/merge"
	"github.com/goliatone/go-binding/pkg/activity"
)

type formKind int

const (
	formCreate formKind = iota
	formUpdate
	formLogin
	formLogout
)

func (k formKind) operation() Operation {
	switch k {
	case formUpdate:
		return OpUpdate
	case formLogin:
		return OpLogin
	case formLogout:
		return OpLogout
	default:
		return OpStore
	}
}

// resetsOnSuccess reports whether a successful submit restores the initial
// model. Update forms keep the submitted data.
func (k formKind) resetsOnSuccess() bool {
	return k != formUpdate
}

// broadcasts reports whether response records are forwarded. Session
// responses never are.
func (k formKind) broadcasts() bool {
	return k == formCreate || k == formUpdate
}

// Form binds a mutation or authentication payload. Local patches accumulate in
// Data until Submit sends them.
type Form struct {
	*core[Model]

	kind    formKind
	initial Model
}

// Initial returns a copy of the model the form resets to.
func (f *Form) Initial() Model {
	return merge.Clone(f.initial)
}

// Patch shallow-merges patch into Data. Flags and errors are untouched.
func (f *Form) Patch(patch Model) {
	if len(patch) == 0 {
		return
	}
	patch = merge.Clone(patch)
	f.patch(func(state State[Model]) State[Model] {
		state.Data = merge.Overlay(state.Data, patch)
		return state
	})
}

// Reset restores the initial model and clears errors.
func (f *Form) Reset() {
	initial := merge.Clone(f.initial)
	f.patch(func(state State[Model]) State[Model] {
		state.Data = initial
		state.Errors = []ErrorDetail{}
		return state
	})
}

// Submit sends Data overlaid with override. When the response has errors the
// data is kept so the caller can correct it; otherwise create and session
// forms reset to their initial model. The response is returned either way.
func (f *Form) Submit(ctx context.Context, override Model) (Response[Model], error) {
	if f.Closed() {
		return Response[Model]{}.Normalize(), ErrClosed
	}
	payload := merge.Overlay(f.cell.Get().Data, override)

	return execute(ctx, f.core, request[Model, Model]{
		lane:      laneSubmitting,
		operation: f.kind.operation(),
		broadcast: f.kind.broadcasts(),
		send: func(ctx context.Context, client Client) (Response[Model], error) {
			switch f.kind {
			case formUpdate:
				return client.Update(ctx, f.resource, payload)
			case formLogin:
				return client.Login(ctx, payload)
			case formLogout:
				return client.Logout(ctx, payload)
			default:
				return client.Store(ctx, f.resource, payload)
			}
		},
		reconcile: func(resp Response[Model]) (func(State[Model]) State[Model], error) {
			errs := merge.Clone(resp.Errors)
			reset := resp.OK() && f.kind.resetsOnSuccess()
			initial := merge.Clone(f.initial)
			return func(state State[Model]) State[Model] {
				if reset {
					state.Data = initial
				}
				state.Errors = errs
				return state
			}, nil
		},
		succeeded: f.emitSubmitted,
	})
}

func (f *Form) emitSubmitted(ctx context.Context, resp Response[Model], requestID string) error {
	key := f.factory.RecordKey()
	input := activity.MutationInput{
		Resource:  f.resource,
		RecordKey: key,
		RequestID: requestID,
		API:       f.factory.cfg.api,
	}
	if id, ok := resp.Data[key]; ok {
		input.RecordID = id
	}

	var event activity.Event
	switch f.kind {
	case formUpdate:
		event = activity.BuildUpdatedEvent(input)
	case formLogin:
		event = activity.BuildLoginEvent(input)
	case formLogout:
		event = activity.BuildLogoutEvent(input)
	default:
		event = activity.BuildCreatedEvent(input)
	}
	return f.factory.emit(ctx, event)
}

// UpdateForm is a Form that can hydrate its data from the stored record once.
type UpdateForm struct {
	*Form

	params   Params
	mapper   *FieldMapper
	hydrated atomic.Bool
}

// Params returns a copy of the hydration params.
func (u *UpdateForm) Params() Params {
	return merge.Clone(u.params)
}

// Hydrated reports whether a hydration fetch was issued.
func (u *UpdateForm) Hydrated() bool {
	return u.hydrated.Load()
}

// Hydrate fetches the record once and resolves every field of the initial
// model from the payload: a mapping entry first, then a same-named payload
// field, otherwise the field keeps its value. Later calls are no-ops and so is
// a form without hydration params. It reports whether a fetch ran.
func (u *UpdateForm) Hydrate(ctx context.Context) (bool, error) {
	if u.Closed() {
		return false, ErrClosed
	}
	if len(u.params) == 0 {
		return false, nil
	}
	if !u.hydrated.CompareAndSwap(false, true) {
		return false, nil
	}

	params := merge.Clone(u.params)
	_, err := execute(ctx, u.core, request[Model, Model]{
		lane:      laneLoading,
		operation: OpShow,
		broadcast: true,
		send: func(ctx context.Context, client Client) (Response[Model], error) {
			return client.Show(ctx, u.resource, params)
		},
		reconcile: func(resp Response[Model]) (func(State[Model]) State[Model], error) {
			errs := merge.Clone(resp.Errors)
			var patch Model
			if resp.OK() {
				var err error
				patch, err = u.mapper.Hydrate(u.initial, resp.Data)
				if err != nil {
					return nil, err
				}
			}
			return func(state State[Model]) State[Model] {
				if len(patch) > 0 {
					state.Data = merge.Overlay(state.Data, patch)
				}
				state.Errors = errs
				return state
			}, nil
		},
	})
	if err != nil && !errors.Is(err, ErrClosed) {
		u.hydrated.Store(false)
	}
	return true, err
}
