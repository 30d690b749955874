package binding_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	binding "github.com/goliatone/go-binding"
	"github.com/goliatone/go-binding/pkg/activity"
	"github.com/google/go-cmp/cmp"
)

func showing(payload binding.Model) func(context.Context, binding.Params) (binding.Response[binding.Model], error) {
	return func(context.Context, binding.Params) (binding.Response[binding.Model], error) {
		return binding.Response[binding.Model]{Data: payload}, nil
	}
}

func TestUpdateHydrateResolvesMappedFields(t *testing.T) {
	payload := binding.Model{
		"id":     7,
		"title":  "Hello",
		"first":  "Ada",
		"last":   "Lovelace",
		"author": map[string]any{"email": "ada@example.com"},
		"tags":   []any{"go", "rust"},
		"views":  int64(41),
		"labels": binding.Collection{{"name": "featured"}},
	}
	client := &fakeClient{show: showing(payload)}
	factory := newFactory(t, client,
		binding.WithMapping(binding.Mapping{
			"email":   binding.Path("author.email"),
			"missing": binding.Path("author.phone"),
			"tag":     binding.Path("tags.1"),
			"label":   binding.Path("labels.0.name"),
			"name":    binding.Expr(`first + " " + last`),
			"visits":  binding.ExprWith(binding.EngineCEL, "views + 1"),
			"slug": binding.Transform(func(payload binding.Model) any {
				return strings.ToLower(payload["title"].(string))
			}),
		}),
	)
	form, err := factory.Update("posts", binding.Model{
		"title":   "",
		"email":   "",
		"missing": "keep?",
		"tag":     "",
		"label":   "",
		"name":    "",
		"visits":  0,
		"slug":    "",
		"draft":   true,
	}, binding.Params{"id": 7})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	fetched, err := form.Hydrate(context.Background())
	if err != nil || !fetched {
		t.Fatalf("expected hydration fetch, fetched=%v err=%v", fetched, err)
	}

	want := binding.Model{
		"title":   "Hello",
		"email":   "ada@example.com",
		"missing": "",
		"tag":     "rust",
		"label":   "featured",
		"name":    "Ada Lovelace",
		"visits":  int64(42),
		"slug":    "hello",
		"draft":   true,
	}
	if diff := cmp.Diff(want, form.State().Data); diff != "" {
		t.Fatalf("hydrated data mismatch (-want +got):\n%s", diff)
	}

	calls := client.Calls()
	if len(calls) != 1 || calls[0].Operation != binding.OpShow || calls[0].Params["id"] != 7 {
		t.Fatalf("unexpected calls: %+v", calls)
	}
}

func TestUpdateHydrateRunsOnce(t *testing.T) {
	client := &fakeClient{show: showing(binding.Model{"title": "Hello"})}
	form, _ := newFactory(t, client).Update("posts", binding.Model{"title": ""}, binding.Params{"id": 1})

	if fetched, _ := form.Hydrate(context.Background()); !fetched {
		t.Fatalf("expected first hydrate to fetch")
	}
	form.Patch(binding.Model{"title": "Edited"})
	if fetched, _ := form.Hydrate(context.Background()); fetched {
		t.Fatalf("expected second hydrate to be a no-op")
	}
	if form.State().Data["title"] != "Edited" {
		t.Fatalf("expected local edits kept")
	}
	if !form.Hydrated() || len(client.Calls()) != 1 {
		t.Fatalf("expected one hydration request")
	}
}

func TestUpdateWithoutParamsNeverHydrates(t *testing.T) {
	client := &fakeClient{}
	form, _ := newFactory(t, client).Update("posts", binding.Model{"title": ""}, nil)

	fetched, err := form.Hydrate(context.Background())
	if err != nil || fetched {
		t.Fatalf("expected no-op, fetched=%v err=%v", fetched, err)
	}
	if form.Hydrated() || len(client.Calls()) != 0 {
		t.Fatalf("expected no requests")
	}
}

func TestUpdateHydrateRetriesAfterClientError(t *testing.T) {
	boom := errors.New("unreachable")
	fail := true
	client := &fakeClient{show: func(context.Context, binding.Params) (binding.Response[binding.Model], error) {
		if fail {
			return binding.Response[binding.Model]{}, boom
		}
		return binding.Response[binding.Model]{Data: binding.Model{"title": "Hello"}}, nil
	}}
	form, _ := newFactory(t, client).Update("posts", binding.Model{"title": ""}, binding.Params{"id": 1})

	if _, err := form.Hydrate(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if form.Hydrated() || form.State().Loading {
		t.Fatalf("expected hydration flag and loading reset after failure")
	}

	fail = false
	if _, err := form.Hydrate(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if form.State().Data["title"] != "Hello" {
		t.Fatalf("expected retry to hydrate")
	}
}

func TestUpdateHydrateResponseErrorsKeepInitial(t *testing.T) {
	client := &fakeClient{show: func(context.Context, binding.Params) (binding.Response[binding.Model], error) {
		return binding.Response[binding.Model]{
			Data:   binding.Model{"title": "ignored"},
			Errors: []binding.ErrorDetail{{Code: "not_found", Message: "missing"}},
		}, nil
	}}
	form, _ := newFactory(t, client).Update("posts", binding.Model{"title": "initial"}, binding.Params{"id": 1})

	if _, err := form.Hydrate(context.Background()); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	state := form.State()
	if state.Data["title"] != "initial" {
		t.Fatalf("expected initial data kept, got %v", state.Data)
	}
	if len(state.Errors) != 1 || state.Errors[0].Code != "not_found" {
		t.Fatalf("expected errors stored, got %v", state.Errors)
	}
}

func TestUpdateHydrateEvaluationErrorSurfaces(t *testing.T) {
	client := &fakeClient{show: showing(binding.Model{"count": "x"})}
	factory := newFactory(t, client, binding.WithMapping(binding.Mapping{
		"total": binding.Expr(`boom()`),
	}), binding.WithCustomFunction("boom", func(...any) (any, error) {
		return nil, errors.New("exploded")
	}))
	form, _ := factory.Update("posts", binding.Model{"total": 0}, binding.Params{"id": 1})

	_, err := form.Hydrate(context.Background())
	var evalErr *binding.EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if evalErr.Field != "posts.total" {
		t.Fatalf("expected labelled field, got %q", evalErr.Field)
	}
	if form.State().Data["total"] != 0 || form.Hydrated() {
		t.Fatalf("expected form untouched and retryable")
	}
}

func TestUpdateHydrateLogsEvaluations(t *testing.T) {
	var events []binding.EvaluatorLogEvent
	client := &fakeClient{show: showing(binding.Model{"a": 2, "b": 3})}
	factory := newFactory(t, client,
		binding.WithMapping(binding.Mapping{"sum": binding.Expr("a + b")}),
		binding.WithEvaluatorLogger(binding.EvaluatorLoggerFunc(func(event binding.EvaluatorLogEvent) {
			events = append(events, event)
		})),
	)
	form, _ := factory.Update("totals", binding.Model{"sum": 0}, binding.Params{"id": 1})

	if _, err := form.Hydrate(context.Background()); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if form.State().Data["sum"] != 5 {
		t.Fatalf("expected sum 5, got %v", form.State().Data["sum"])
	}
	if len(events) != 1 || events[0].Engine != binding.EngineExpr || events[0].Field != "totals.sum" {
		t.Fatalf("unexpected evaluation events: %+v", events)
	}
}

func TestUpdateSubmitKeepsDataAndEmitsUpdated(t *testing.T) {
	capture := &activity.CaptureHook{}
	recorder := &broadcastRecorder{}
	client := &fakeClient{update: func(_ context.Context, data binding.Model) (binding.Response[binding.Model], error) {
		return binding.Response[binding.Model]{
			Data:    data,
			Records: []binding.Record{{"id": data["id"], "title": data["title"]}},
		}, nil
	}}
	factory := newFactory(t, client,
		binding.WithRecords(recorder.set, nil, ""),
		binding.WithActivityHooks(activity.Hooks{capture}, ""),
	)
	form, _ := factory.Update("posts", binding.Model{"id": 3, "title": ""}, nil)
	form.Patch(binding.Model{"title": "Renamed"})

	if _, err := form.Submit(context.Background(), nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if form.State().Data["title"] != "Renamed" {
		t.Fatalf("expected update form to keep submitted data")
	}
	if calls, _ := recorder.Calls(); len(calls) != 1 {
		t.Fatalf("expected update records broadcast, got %v", calls)
	}
	events := capture.Snapshot()
	if len(events) != 1 || events[0].Verb != activity.VerbUpdated || events[0].ObjectID != "3" {
		t.Fatalf("unexpected activity: %+v", events)
	}
}

func TestUpdateHydrateAndSubmitUseSeparateLanes(t *testing.T) {
	g := newGate()
	client := &fakeClient{
		show: func(ctx context.Context, _ binding.Params) (binding.Response[binding.Model], error) {
			if err := g.wait(ctx); err != nil {
				return binding.Response[binding.Model]{}, err
			}
			return binding.Response[binding.Model]{Data: binding.Model{"title": "server"}}, nil
		},
	}
	form, _ := newFactory(t, client).Update("posts", binding.Model{"title": ""}, binding.Params{"id": 1})

	type hydration struct {
		fetched bool
		err     error
	}
	done := make(chan hydration, 1)
	go func() {
		fetched, err := form.Hydrate(context.Background())
		done <- hydration{fetched, err}
	}()
	g.awaitEntered(t)

	if _, err := form.Submit(context.Background(), nil); err != nil {
		t.Fatalf("submit: %v", err)
	}
	state := form.State()
	if !state.Loading || state.Submitting {
		t.Fatalf("expected hydration still loading and submit finished, got %+v", state)
	}

	g.open()
	if r := <-done; r.err != nil || !r.fetched {
		t.Fatalf("hydrate: %+v", r)
	}
	if form.State().Data["title"] != "server" {
		t.Fatalf("expected hydration applied after submit")
	}
}
