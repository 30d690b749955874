package binding

import (
	"sync"

	"github.com/goliatone/go-binding/internal/merge"
)

// Broadcaster forwards response records to a single registered setter. A new
// registration silently replaces the previous one.
type Broadcaster struct {
	mu     sync.RWMutex
	setter RecordSetter
	key    string
}

// NewBroadcaster constructs a broadcaster with an optional initial setter.
func NewBroadcaster(setter RecordSetter, key string) *Broadcaster {
	b := &Broadcaster{}
	b.Register(setter, key)
	return b
}

// Register replaces the active setter and record key.
func (b *Broadcaster) Register(setter RecordSetter, key string) {
	if key == "" {
		key = DefaultRecordKey
	}
	b.mu.Lock()
	b.setter = setter
	b.key = key
	b.mu.Unlock()
}

// Key returns the configured record key.
func (b *Broadcaster) Key() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.key == "" {
		return DefaultRecordKey
	}
	return b.key
}

// Registered reports whether a setter is active.
func (b *Broadcaster) Registered() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.setter != nil
}

// Forward delivers records to the active setter. It reports false when records
// is empty or no setter is registered.
func (b *Broadcaster) Forward(records []Record) bool {
	if len(records) == 0 {
		return false
	}
	b.mu.RLock()
	setter, key := b.setter, b.key
	b.mu.RUnlock()
	if setter == nil {
		return false
	}
	if key == "" {
		key = DefaultRecordKey
	}
	setter(merge.Clone(records), key)
	return true
}
