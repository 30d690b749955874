package binding

import (
	"context"

	"github.com/goliatone/go-binding/internal/merge"
	"github.com/goliatone/go-binding/pkg/activity"
)

// Delete binds record removal. Its state only tracks Submitting and Errors.
type Delete struct {
	*core[struct{}]

	params Params
}

// Params returns a copy of the base params.
func (d *Delete) Params() Params {
	return merge.Clone(d.params)
}

// Submit deletes using the base params overlaid with override.
func (d *Delete) Submit(ctx context.Context, override Params) (Response[Model], error) {
	if d.Closed() {
		return Response[Model]{}.Normalize(), ErrClosed
	}
	params := merge.Overlay(d.params, override)

	return execute(ctx, d.core, request[struct{}, Model]{
		lane:      laneSubmitting,
		operation: OpDelete,
		broadcast: true,
		send: func(ctx context.Context, client Client) (Response[Model], error) {
			return client.Delete(ctx, d.resource, params)
		},
		reconcile: func(resp Response[Model]) (func(State[struct{}]) State[struct{}], error) {
			errs := merge.Clone(resp.Errors)
			return func(state State[struct{}]) State[struct{}] {
				state.Errors = errs
				return state
			}, nil
		},
		succeeded: func(ctx context.Context, resp Response[Model], requestID string) error {
			key := d.factory.RecordKey()
			input := activity.MutationInput{
				Resource:  d.resource,
				RecordKey: key,
				RequestID: requestID,
				API:       d.factory.cfg.api,
			}
			if id, ok := params[key]; ok {
				input.RecordID = id
			} else if id, ok := resp.Data[key]; ok {
				input.RecordID = id
			}
			return d.factory.emit(ctx, activity.BuildDeletedEvent(input))
		},
	})
}
