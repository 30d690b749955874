//go:build js_eval

package binding_test

import (
	"testing"

	binding "github.com/goliatone/go-binding"
)

func TestJSEvaluatorResolvesMapping(t *testing.T) {
	mapper := binding.NewFieldMapper(binding.Mapping{
		"headline": binding.ExprWith(binding.EngineJS, `title.toUpperCase() + " (" + tags.length + ")"`),
	})
	got, _, err := mapper.Resolve("headline", binding.Model{"title": "hello", "tags": []any{"a", "b"}})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "HELLO (2)" {
		t.Fatalf("expected HELLO (2), got %v", got)
	}
}
