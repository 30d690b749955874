package hydrate

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type post struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Author author   `json:"author"`
	Tags   []string `json:"tags"`
	Views  int      `json:"views"`
}

type author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func TestDecodeCases(t *testing.T) {
	cases := []struct {
		name      string
		ctx       Context
		input     map[string]any
		options   Options
		expect    post
		expectErr string
	}{
		{
			name: "nested record",
			ctx:  Record("posts", "show"),
			input: map[string]any{
				"id":     "p1",
				"title":  "Hello",
				"author": map[string]any{"name": "Ada", "email": "ada@example.com"},
				"tags":   []any{"go", "bindings"},
				"views":  float64(3),
			},
			expect: post{
				ID:     "p1",
				Title:  "Hello",
				Author: author{Name: "Ada", Email: "ada@example.com"},
				Tags:   []string{"go", "bindings"},
				Views:  3,
			},
		},
		{
			name:    "normalizer splits author string",
			ctx:     Record("posts", "show"),
			input:   map[string]any{"id": "p2", "author": "Ada <ada@example.com>"},
			options: Options{Normalizers: []Normalizer{splitAuthor}},
			expect:  post{ID: "p2", Author: author{Name: "Ada", Email: "ada@example.com"}},
		},
		{
			name:  "normalizers run in order",
			ctx:   Context{Resource: "posts", Operation: "index", Index: 4},
			input: map[string]any{"id": "p3"},
			options: Options{Normalizers: []Normalizer{
				func(ctx Context, record map[string]any) (map[string]any, error) {
					record["title"] = ctx.String()
					return record, nil
				},
				nil,
				func(_ Context, record map[string]any) (map[string]any, error) {
					record["title"] = record["title"].(string) + "!"
					return nil, nil
				},
			}},
			expect: post{ID: "p3", Title: "posts[4]!"},
		},
		{
			name:      "strict rejects unknown keys",
			ctx:       Record("posts", "show"),
			input:     map[string]any{"id": "p4", "extra": true},
			options:   Options{Strict: true},
			expectErr: `posts: json: unknown field "extra"`,
		},
		{
			name:      "normalizer failure names the record",
			ctx:       Context{Resource: "posts", Operation: "index", Index: 2},
			input:     map[string]any{"author": "nobody"},
			options:   Options{Normalizers: []Normalizer{splitAuthor}},
			expectErr: "posts[2]: normalize: invalid author",
		},
		{
			name:      "type mismatch",
			ctx:       Record("posts", "show"),
			input:     map[string]any{"views": "many"},
			expectErr: "hydrate: posts:",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Decode[post](tc.ctx, tc.input, tc.options)
			if tc.expectErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.expectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.expectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if diff := cmp.Diff(tc.expect, result); diff != "" {
				t.Fatalf("decoded mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeRejectsNilRecord(t *testing.T) {
	_, err := Decode[post](Record("posts", "show"), nil, Options{})
	if err == nil || !strings.Contains(err.Error(), "record is nil") {
		t.Fatalf("expected nil record error, got %v", err)
	}
}

func TestDecodeDoesNotMutateInput(t *testing.T) {
	input := map[string]any{"id": "p1", "author": "Ada <ada@example.com>"}
	if _, err := Decode[post](Record("posts", "show"), input, Options{Normalizers: []Normalizer{splitAuthor}}); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if input["author"] != "Ada <ada@example.com>" {
		t.Fatalf("expected input untouched, got %v", input["author"])
	}
}

func TestDecodeUseNumber(t *testing.T) {
	type counter struct {
		Views any `json:"views"`
	}
	result, err := Decode[counter](Record("posts", "show"), map[string]any{"views": 12}, Options{UseNumber: true})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Views != json.Number("12") {
		t.Fatalf("expected json.Number, got %T %v", result.Views, result.Views)
	}
}

func TestContextString(t *testing.T) {
	if got := Record("posts", "show").String(); got != "posts" {
		t.Fatalf("unexpected record label %q", got)
	}
	if got := (Context{Resource: "posts", Index: 0}).String(); got != "posts[0]" {
		t.Fatalf("unexpected indexed label %q", got)
	}
}

func TestEncode(t *testing.T) {
	out, err := Encode(post{ID: "p1", Title: "Hello", Views: 2})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if out["id"] != "p1" || out["title"] != "Hello" || out["views"] != float64(2) {
		t.Fatalf("unexpected payload: %#v", out)
	}
	if _, err := Encode([]string{"a"}); err == nil {
		t.Fatalf("expected error encoding a slice")
	}
	if _, err := Encode(nil); err == nil {
		t.Fatalf("expected error encoding nil")
	}
}

func splitAuthor(_ Context, record map[string]any) (map[string]any, error) {
	value, ok := record["author"].(string)
	if !ok || value == "" {
		return record, nil
	}
	name, email, found := strings.Cut(value, "<")
	if !found {
		return nil, fmt.Errorf("invalid author %q", value)
	}
	record["author"] = map[string]any{
		"name":  strings.TrimSpace(name),
		"email": strings.TrimSuffix(strings.TrimSpace(email), ">"),
	}
	return record, nil
}
