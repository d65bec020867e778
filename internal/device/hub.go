package device

import "sync"

// Hub fans out "registry changed" signals to in-process watchers. Signals
// carry no payload: watchers re-read the full registration list.
type Hub struct {
	mu       sync.Mutex
	watchers map[uint64]chan struct{}
	nextID   uint64
	onChange []func()
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{watchers: make(map[uint64]chan struct{})}
}

// Watch registers a watcher. The returned channel has a buffer of one, so
// bursts of changes collapse into a single pending signal. cancel removes the
// watcher and closes the channel; it is safe to call more than once.
func (h *Hub) Watch() (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan struct{}, 1)
	h.watchers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.watchers, id)
			close(ch)
		})
	}
	return ch, cancel
}

// OnLocalChange registers a hook run by Notify (but not by NotifyRemote).
// Used by relays that forward local changes to other instances.
func (h *Hub) OnLocalChange(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// Notify signals a change made by this process.
func (h *Hub) Notify() {
	h.broadcast()

	h.mu.Lock()
	hooks := append([]func(){}, h.onChange...)
	h.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// NotifyRemote signals a change observed from another instance.
func (h *Hub) NotifyRemote() {
	h.broadcast()
}

// Watchers returns the number of registered watchers.
func (h *Hub) Watchers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

func (h *Hub) broadcast() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
