package binding

import "sync"

// Cell is a reactive state cell. Subscribers are invoked after each change with
// the new value, outside of the cell lock. A subscriber must not update the
// same cell synchronously from its callback.
type Cell[T any] struct {
	mu        sync.RWMutex
	value     T
	version   uint64
	subs      map[uint64]func(T)
	nextSubID uint64

	notifyMu  sync.Mutex
	delivered uint64
}

// NewCell constructs a cell seeded with initial.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set replaces the value and notifies subscribers.
func (c *Cell[T]) Set(value T) {
	c.Update(func(T) T { return value })
}

// Update applies fn to the current value atomically and returns the result.
func (c *Cell[T]) Update(fn func(T) T) T {
	next, _ := c.UpdateIf(func(value T) (T, bool) {
		return fn(value), true
	})
	return next
}

// UpdateIf applies fn atomically and commits the result only when fn reports a
// change. Subscribers are notified only for committed changes.
func (c *Cell[T]) UpdateIf(fn func(T) (T, bool)) (T, bool) {
	c.mu.Lock()
	next, changed := fn(c.value)
	if !changed {
		current := c.value
		c.mu.Unlock()
		return current, false
	}
	c.value = next
	c.version++
	version := c.version
	subs := make([]func(T), 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	c.notify(version, next, subs)
	return next, true
}

// Subscribe registers fn for change notifications. The returned function
// removes the subscription.
func (c *Cell[T]) Subscribe(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	if c.subs == nil {
		c.subs = make(map[uint64]func(T))
	}
	c.nextSubID++
	id := c.nextSubID
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// notify delivers value unless a newer version was already delivered.
func (c *Cell[T]) notify(version uint64, value T, subs []func(T)) {
	if len(subs) == 0 {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if version <= c.delivered {
		return
	}
	c.delivered = version
	for _, sub := range subs {
		sub(value)
	}
}
