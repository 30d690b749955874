// Package records keeps an ordered, keyed set of broadcast records. Clients use
// it to produce authoritative snapshots after mutations and consumers use it
// as a RecordSetter target to reconcile those snapshots.
package records

import (
	"fmt"
	"sync"

	binding "github.com/goliatone/go-binding"
	"github.com/goliatone/go-binding/internal/merge"
)

// Set is an ordered collection of records unique by key. It is safe for
// concurrent use.
type Set struct {
	mu    sync.RWMutex
	key   string
	order []string
	items map[string]binding.Record
}

// New constructs a set keyed by key seeded with initial. Records without the
// key are dropped.
func New(key string, initial []binding.Record) *Set {
	if key == "" {
		key = binding.DefaultRecordKey
	}
	s := &Set{key: key, items: map[string]binding.Record{}}
	s.Upsert(initial...)
	return s
}

// Key returns the record key.
func (s *Set) Key() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// ID returns the normalized identity of record, or false when the record does
// not carry the key.
func (s *Set) ID(record binding.Record) (string, bool) {
	return identity(record, s.Key())
}

// Upsert inserts new records at the end and replaces existing ones in place.
func (s *Set) Upsert(records ...binding.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range records {
		id, ok := identity(record, s.key)
		if !ok {
			continue
		}
		if _, exists := s.items[id]; !exists {
			s.order = append(s.order, id)
		}
		s.items[id] = merge.Clone(record)
	}
}

// Remove deletes records by key value. Unknown ids are ignored.
func (s *Set) Remove(ids ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, raw := range ids {
		if raw == nil {
			continue
		}
		id := fmt.Sprint(raw)
		if _, ok := s.items[id]; !ok {
			continue
		}
		delete(s.items, id)
		for i, candidate := range s.order {
			if candidate == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// Replace discards the current contents and loads records.
func (s *Set) Replace(records []binding.Record) {
	s.mu.Lock()
	s.order = nil
	s.items = map[string]binding.Record{}
	s.mu.Unlock()
	s.Upsert(records...)
}

// Get returns a copy of the record with the given key value.
func (s *Set) Get(id any) (binding.Record, bool) {
	if id == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.items[fmt.Sprint(id)]
	if !ok {
		return nil, false
	}
	return merge.Clone(record), true
}

// Len returns the number of records.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Snapshot returns copies of every record in insertion order.
func (s *Set) Snapshot() []binding.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]binding.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, merge.Clone(s.items[id]))
	}
	return out
}

// Setter returns a RecordSetter that replaces the set contents with each
// broadcast snapshot. Snapshots keyed differently are reconciled on their own
// key.
func (s *Set) Setter() binding.RecordSetter {
	return func(records []binding.Record, key string) {
		if key != "" && key != s.key {
			s.mu.Lock()
			s.key = key
			s.mu.Unlock()
		}
		s.Replace(records)
	}
}

func identity(record binding.Record, key string) (string, bool) {
	value, ok := record.Value(key)
	if !ok || value == nil {
		return "", false
	}
	return fmt.Sprint(value), true
}
