package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	binding "github.com/goliatone/go-binding"
	"github.com/goliatone/go-binding/internal/merge"
)

// ErrETagMismatch is returned by Save when the caller's ETag is stale.
var ErrETagMismatch = errors.New("memory: etag mismatch")

// Ref identifies one stored record.
type Ref struct {
	Resource string
	ID       string
}

// Identifier returns the deterministic storage key of the ref.
func (r Ref) Identifier() (string, error) {
	resource := strings.TrimSpace(r.Resource)
	id := strings.TrimSpace(r.ID)
	if resource == "" {
		return "", fmt.Errorf("memory: resource is required")
	}
	if id == "" {
		return "", fmt.Errorf("memory: id is required for resource %q", resource)
	}
	return resource + "/" + id, nil
}

// Meta is storage-owned metadata used for concurrency control.
type Meta struct {
	ETag      string            `json:"etag,omitempty"`
	Version   int               `json:"version,omitempty"`
	UpdatedAt time.Time         `json:"updated_at,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Store is a concurrency-safe record store. Models are copied on the way in
// and out.
type Store struct {
	mu      sync.RWMutex
	records map[string]storedRecord
	order   map[string][]string
	now     func() time.Time
}

type storedRecord struct {
	model binding.Model
	meta  Meta
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		records: map[string]storedRecord{},
		order:   map[string][]string{},
		now:     time.Now,
	}
}

// Load returns the record for ref. ok is false when no record exists.
func (s *Store) Load(ctx context.Context, ref Ref) (binding.Model, Meta, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, Meta{}, false, err
	}
	key, err := ref.Identifier()
	if err != nil {
		return nil, Meta{}, false, err
	}
	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, Meta{}, false, nil
	}
	return merge.Clone(record.model), cloneMeta(record.meta), true, nil
}

// Save stores model under ref. When meta.ETag is set it must match the stored
// ETag. The returned meta carries the new version and ETag.
func (s *Store) Save(ctx context.Context, ref Ref, model binding.Model, meta Meta) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.records[key]
	if exists && meta.ETag != "" && meta.ETag != current.meta.ETag {
		return cloneMeta(current.meta), fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, current.meta.ETag)
	}

	next := cloneMeta(meta)
	next.Version = current.meta.Version + 1
	next.ETag = fmt.Sprintf("%s@%d", key, next.Version)
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = s.now()
	}
	if next.Extra == nil {
		next.Extra = current.meta.Extra
	}
	s.records[key] = storedRecord{model: merge.Clone(model), meta: cloneMeta(next)}
	if !exists {
		s.order[ref.Resource] = append(s.order[ref.Resource], key)
	}
	return next, nil
}

// Delete removes the record for ref and returns it. ok is false when no record
// existed.
func (s *Store) Delete(ctx context.Context, ref Ref) (binding.Model, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	key, err := ref.Identifier()
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	delete(s.records, key)
	keys := s.order[ref.Resource]
	for i, candidate := range keys {
		if candidate == key {
			s.order[ref.Resource] = append(keys[:i:i], keys[i+1:]...)
			break
		}
	}
	return record.model, true, nil
}

// List returns every record of resource in insertion order.
func (s *Store) List(ctx context.Context, resource string) (binding.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.order[resource]
	out := make(binding.Collection, 0, len(keys))
	for _, key := range keys {
		out = append(out, merge.Clone(s.records[key].model))
	}
	return out, nil
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
