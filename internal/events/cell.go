package events

import (
	"sync"
)

// Change describes a value transition of a Cell. Handlers registered with
// OnBeforeChange may veto it with Prevent.
type Change[T any] struct {
	Old       T
	New       T
	prevented bool
}

// Prevent cancels the change. It has no effect after the value was stored.
func (c *Change[T]) Prevent() { c.prevented = true }

// Prevented reports whether a handler vetoed the change.
func (c *Change[T]) Prevented() bool { return c.prevented }

type subscriber[F any] struct {
	id uint64
	fn F
}

// Cell is a value with get/set access that notifies subscribers before and
// after every Set. Writes are serialized, so handlers run in the order the
// values were stored and must not write to the same cell.
type Cell[T any] struct {
	write  sync.Mutex
	mu     sync.RWMutex
	value  T
	nextID uint64
	before []subscriber[func(*Change[T])]
	after  []subscriber[func(Change[T])]
}

// NewCell creates a cell holding initial.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.value
}

// Set stores v unless a before-change handler prevents it. It reports
// whether the value was stored.
func (c *Cell[T]) Set(v T) bool {
	c.write.Lock()
	defer c.write.Unlock()

	return c.set(v)
}

// Update applies fn to the current value and stores the result. No other
// write lands between the read and the store.
func (c *Cell[T]) Update(fn func(T) T) bool {
	c.write.Lock()
	defer c.write.Unlock()

	return c.set(fn(c.Get()))
}

func (c *Cell[T]) set(v T) bool {
	c.mu.RLock()
	change := &Change[T]{Old: c.value, New: v}
	before := append([]subscriber[func(*Change[T])](nil), c.before...)
	c.mu.RUnlock()

	for _, s := range before {
		s.fn(change)
	}
	if change.Prevented() {
		return false
	}

	c.mu.Lock()
	c.value = v
	after := append([]subscriber[func(Change[T])](nil), c.after...)
	c.mu.Unlock()

	for _, s := range after {
		s.fn(Change[T]{Old: change.Old, New: v})
	}

	return true
}

// OnBeforeChange registers a handler that runs before each Set and may
// veto it. The returned func unsubscribes.
func (c *Cell[T]) OnBeforeChange(fn func(*Change[T])) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.before = append(c.before, subscriber[func(*Change[T])]{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.before = removeSubscriber(c.before, id)
	}
}

// OnChange registers a handler that runs after each stored value. The
// returned func unsubscribes.
func (c *Cell[T]) OnChange(fn func(Change[T])) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.after = append(c.after, subscriber[func(Change[T])]{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.after = removeSubscriber(c.after, id)
	}
}

func removeSubscriber[F any](subs []subscriber[F], id uint64) []subscriber[F] {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}

	return subs
}
