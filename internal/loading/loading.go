// Package loading tracks in-flight operations so a single busy indicator can
// be shown while any of them is pending.
package loading

import "sync"

// Listener is called with the new busy state whenever it flips.
type Listener func(busy bool)

// Tracker counts pending operations. The zero value is ready to use.
type Tracker struct {
	mu        sync.Mutex
	pending   int
	nextID    int
	listeners map[int]Listener
}

// Begin marks one operation as started and returns the function that ends it.
// The returned function is safe to call more than once; only the first call
// counts, so it can be deferred unconditionally.
func (t *Tracker) Begin() (done func()) {
	t.mu.Lock()
	t.pending++
	notify := t.pending == 1
	listeners := t.snapshot()
	t.mu.Unlock()
	if notify {
		emit(listeners, true)
	}

	var once sync.Once
	return func() {
		once.Do(t.end)
	}
}

// Track runs fn as one pending operation, releasing it even if fn panics.
func (t *Tracker) Track(fn func() error) error {
	done := t.Begin()
	defer done()
	return fn()
}

func (t *Tracker) end() {
	t.mu.Lock()
	if t.pending > 0 {
		t.pending--
	}
	notify := t.pending == 0
	listeners := t.snapshot()
	t.mu.Unlock()
	if notify {
		emit(listeners, false)
	}
}

// Pending returns the number of operations still running.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Busy reports whether any operation is pending.
func (t *Tracker) Busy() bool {
	return t.Pending() > 0
}

// Subscribe registers l and immediately calls it with the current state.
// The returned function removes the listener.
func (t *Tracker) Subscribe(l Listener) (unsubscribe func()) {
	t.mu.Lock()
	if t.listeners == nil {
		t.listeners = make(map[int]Listener)
	}
	id := t.nextID
	t.nextID++
	t.listeners[id] = l
	busy := t.pending > 0
	t.mu.Unlock()

	l(busy)

	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

func (t *Tracker) snapshot() []Listener {
	out := make([]Listener, 0, len(t.listeners))
	for _, l := range t.listeners {
		out = append(out, l)
	}
	return out
}

func emit(listeners []Listener, busy bool) {
	for _, l := range listeners {
		l(busy)
	}
}
