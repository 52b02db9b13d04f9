package gpio

import "sync"

// FakeWatcher is a test double; Trigger simulates a falling edge.
type FakeWatcher struct {
	mu      sync.Mutex
	handler Handler
	closed  bool
	edges   int
}

// NewFakeWatcher creates a FakeWatcher delivering to h.
func NewFakeWatcher(h Handler) *FakeWatcher {
	return &FakeWatcher{handler: h}
}

// Trigger delivers one edge unless the watcher is closed.
func (f *FakeWatcher) Trigger() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.edges++
	h := f.handler
	f.mu.Unlock()
	h()
}

// Edges returns the number of edges delivered.
func (f *FakeWatcher) Edges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.edges
}

// Closed reports whether Close was called.
func (f *FakeWatcher) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Close stops delivery.
func (f *FakeWatcher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}
