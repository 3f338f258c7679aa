// Package events keeps listeners in an explicit side table instead of on the
// objects that raise events, and provides Cell, an observable value.
package events

import (
	"sync"
)

// Handler is called with the arguments passed to Trigger.
type Handler func(args ...any)

// Listener is a registered handler. Pass it to Registry.Remove to
// unregister it.
type Listener[K comparable] struct {
	id      uint64
	source  K
	event   string
	handler Handler
}

// Source returns the handle the listener is attached to.
func (l *Listener[K]) Source() K { return l.source }

// Event returns the event name the listener waits for.
func (l *Listener[K]) Event() string { return l.event }

// Registry maps a source handle to its listeners, per event name. Tables are
// created on first use and dropped when their last listener goes away.
type Registry[K comparable] struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[K]map[string][]*Listener[K]
}

// NewRegistry creates an empty registry.
func NewRegistry[K comparable]() *Registry[K] {
	return &Registry[K]{
		listeners: make(map[K]map[string][]*Listener[K]),
	}
}

// Listen registers handler for event on source.
func (r *Registry[K]) Listen(source K, event string, handler Handler) *Listener[K] {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	l := &Listener[K]{
		id:      r.nextID,
		source:  source,
		event:   event,
		handler: handler,
	}

	byEvent, ok := r.listeners[source]
	if !ok {
		byEvent = make(map[string][]*Listener[K])
		r.listeners[source] = byEvent
	}
	byEvent[event] = append(byEvent[event], l)

	return l
}

// Trigger calls every listener of event on source, in registration order,
// and returns how many were called. Handlers run without the registry lock
// held, so they may register or remove listeners.
func (r *Registry[K]) Trigger(source K, event string, args ...any) int {
	r.mu.RLock()
	snapshot := append([]*Listener[K](nil), r.listeners[source][event]...)
	r.mu.RUnlock()

	for _, l := range snapshot {
		l.handler(args...)
	}

	return len(snapshot)
}

// Remove unregisters a listener. It reports false when the listener was
// already gone.
func (r *Registry[K]) Remove(l *Listener[K]) bool {
	if l == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byEvent := r.listeners[l.source]
	list := byEvent[l.event]
	for i, candidate := range list {
		if candidate.id != l.id {
			continue
		}
		list = append(list[:i:i], list[i+1:]...)
		if len(list) == 0 {
			delete(byEvent, l.event)
		} else {
			byEvent[l.event] = list
		}
		if len(byEvent) == 0 {
			delete(r.listeners, l.source)
		}

		return true
	}

	return false
}

// Clear removes every listener of event on source.
func (r *Registry[K]) Clear(source K, event string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byEvent, ok := r.listeners[source]
	if !ok {
		return
	}
	delete(byEvent, event)
	if len(byEvent) == 0 {
		delete(r.listeners, source)
	}
}

// ClearAll removes every listener attached to source.
func (r *Registry[K]) ClearAll(source K) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.listeners, source)
}

// Count returns the number of listeners of event on source.
func (r *Registry[K]) Count(source K, event string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.listeners[source][event])
}
