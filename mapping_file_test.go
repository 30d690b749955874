package binding_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	binding "github.com/goliatone/go-binding"
)

const postMapping = `
email: author.email
title:
  path: headline
name:
  expr: first + " " + last
visits:
  expr: views + 1
  engine: cel
`

func TestParseMapping(t *testing.T) {
	mapping, err := binding.ParseMapping([]byte(postMapping))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(mapping) != 4 {
		t.Fatalf("expected four entries, got %d", len(mapping))
	}
	if mapping["email"].Path != "author.email" || mapping["title"].Path != "headline" {
		t.Fatalf("unexpected path entries: %+v", mapping)
	}
	if mapping["name"].Expr != `first + " " + last` || mapping["name"].Engine != "" {
		t.Fatalf("unexpected expr entry: %+v", mapping["name"])
	}
	if mapping["visits"].Engine != binding.EngineCEL {
		t.Fatalf("expected cel engine, got %+v", mapping["visits"])
	}

	mapper := binding.NewFieldMapper(mapping)
	patch, err := mapper.Hydrate(
		binding.Model{"email": "", "title": "", "name": "", "visits": 0},
		binding.Model{
			"headline": "Hello",
			"author":   map[string]any{"email": "ada@example.com"},
			"first":    "Ada",
			"last":     "Lovelace",
			"views":    int64(1),
		},
	)
	if err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if patch["email"] != "ada@example.com" || patch["title"] != "Hello" || patch["name"] != "Ada Lovelace" || patch["visits"] != int64(2) {
		t.Fatalf("unexpected patch: %v", patch)
	}
}

func TestParseMappingRejectsInvalidEntries(t *testing.T) {
	cases := map[string]string{
		"both":      "a:\n  path: x\n  expr: y\n",
		"neither":   "a:\n  engine: cel\n",
		"malformed": "a: [unterminated\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := binding.ParseMapping([]byte(doc)); err == nil {
				t.Fatalf("expected error")
			} else if !strings.HasPrefix(err.Error(), "binding: parse mapping") {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.yaml")
	if err := os.WriteFile(path, []byte(postMapping), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	mapping, err := binding.LoadMapping(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := mapping["visits"]; !ok {
		t.Fatalf("expected visits entry")
	}

	if _, err := binding.LoadMapping(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
