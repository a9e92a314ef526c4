package core

import "sync"

// Topic is a set of subscribers for change notifications.
// Publish may be called from any goroutine; handlers run synchronously
// on the publishing goroutine.
type Topic[E any] struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(E)
}

// Listen registers fn and returns the function that unregisters it.
// Calling the returned function more than once is harmless.
func (t *Topic[E]) Listen(fn func(E)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.subs == nil {
		t.subs = make(map[int]func(E))
	}
	id := t.nextID
	t.nextID++
	t.subs[id] = fn

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// Publish delivers e to every current subscriber.
func (t *Topic[E]) Publish(e E) {
	t.mu.RLock()
	handlers := make([]func(E), 0, len(t.subs))
	for _, fn := range t.subs {
		handlers = append(handlers, fn)
	}
	t.mu.RUnlock()

	for _, fn := range handlers {
		fn(e)
	}
}

// Len returns the number of subscribers.
func (t *Topic[E]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// Clear drops every subscriber.
func (t *Topic[E]) Clear() {
	t.mu.Lock()
	t.subs = nil
	t.mu.Unlock()
}
