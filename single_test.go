package binding_test

import (
	"context"
	"errors"
	"testing"

	binding "github.com/goliatone/go-binding"
	"github.com/google/go-cmp/cmp"
)

func TestSingleLoadAndSetParams(t *testing.T) {
	records := map[any]binding.Model{
		1: {"id": 1, "title": "one"},
		2: {"id": 2, "title": "two"},
	}
	client := &fakeClient{show: func(_ context.Context, params binding.Params) (binding.Response[binding.Model], error) {
		return binding.Response[binding.Model]{Data: records[params["id"]]}, nil
	}}
	single, err := newFactory(t, client).Single("posts", binding.Params{"id": 1})
	if err != nil {
		t.Fatalf("single: %v", err)
	}

	if fetched, err := single.Load(context.Background()); err != nil || !fetched {
		t.Fatalf("expected fetch, fetched=%v err=%v", fetched, err)
	}
	if diff := cmp.Diff(records[1], single.State().Data); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}

	if fetched, _ := single.SetParams(context.Background(), binding.Params{"id": 1}); fetched {
		t.Fatalf("expected equal params to skip the fetch")
	}
	if fetched, _ := single.SetParams(context.Background(), binding.Params{"id": 2}); !fetched {
		t.Fatalf("expected changed params to fetch")
	}
	if single.State().Data["title"] != "two" {
		t.Fatalf("expected record two, got %v", single.State().Data)
	}
	if len(client.Calls()) != 2 {
		t.Fatalf("expected two requests, got %d", len(client.Calls()))
	}
}

func TestSingleRefreshAlwaysFetches(t *testing.T) {
	client := &fakeClient{}
	single, _ := newFactory(t, client).Single("posts", binding.Params{"id": 1})

	for i := 0; i < 2; i++ {
		if _, err := single.Refresh(context.Background()); err != nil {
			t.Fatalf("refresh: %v", err)
		}
	}
	if len(client.Calls()) != 2 {
		t.Fatalf("expected two requests, got %d", len(client.Calls()))
	}
	data := single.State().Data
	if data == nil || len(data) != 0 {
		t.Fatalf("expected empty non-nil data, got %#v", data)
	}
}

func TestSingleDiscardsStaleResponse(t *testing.T) {
	slow := newGate()
	client := &fakeClient{show: func(ctx context.Context, params binding.Params) (binding.Response[binding.Model], error) {
		if params["id"] == 1 {
			if err := slow.wait(ctx); err != nil {
				return binding.Response[binding.Model]{}, err
			}
		}
		return binding.Response[binding.Model]{Data: binding.Model{"id": params["id"]}}, nil
	}}
	single, _ := newFactory(t, client).Single("posts", binding.Params{"id": 1})

	type loaded struct {
		fetched bool
		err     error
	}
	done := make(chan loaded, 1)
	go func() {
		fetched, err := single.Load(context.Background())
		done <- loaded{fetched, err}
	}()
	slow.awaitEntered(t)

	if _, err := single.SetParams(context.Background(), binding.Params{"id": 2}); err != nil {
		t.Fatalf("set params: %v", err)
	}
	slow.open()
	if r := <-done; r.err != nil {
		t.Fatalf("load: %v", r.err)
	}
	state := single.State()
	if state.Data["id"] != 2 || state.Loading {
		t.Fatalf("expected latest record applied, got %+v", state)
	}
}

func TestSingleErrorAllowsRetry(t *testing.T) {
	boom := errors.New("boom")
	fail := true
	client := &fakeClient{show: func(context.Context, binding.Params) (binding.Response[binding.Model], error) {
		if fail {
			return binding.Response[binding.Model]{}, boom
		}
		return binding.Response[binding.Model]{Data: binding.Model{"id": 1}}, nil
	}}
	single, _ := newFactory(t, client).Single("posts", binding.Params{"id": 1})
	single.SetData(binding.Model{"id": "local"})

	if _, err := single.Load(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if single.State().Data["id"] != "local" {
		t.Fatalf("expected local data kept")
	}
	fail = false
	if fetched, err := single.Load(context.Background()); err != nil || !fetched {
		t.Fatalf("expected retry, fetched=%v err=%v", fetched, err)
	}
	if single.State().Data["id"] != 1 {
		t.Fatalf("expected fetched data")
	}
}

func TestSingleClosed(t *testing.T) {
	single, _ := newFactory(t, &fakeClient{}).Single("posts", nil)
	single.Close()
	if _, err := single.SetParams(context.Background(), binding.Params{"id": 1}); !errors.Is(err, binding.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := single.Refresh(context.Background()); !errors.Is(err, binding.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
