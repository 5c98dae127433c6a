// Package server keeps the bounded cache of recent broadcast events that is
// replayed to newly joined clients.
package server

import "sync"

// MaxMessages is the history capacity used in production: the cache holds at
// most the last 100 broadcast events.
const MaxMessages = 100

// History is a fixed-capacity FIFO of events backed by a ring buffer. Appends
// beyond capacity evict exactly the oldest entry. There is no API to remove
// or mutate individual events; the cache lives for the process lifetime.
type History struct {
	mu    sync.RWMutex
	buf   []Event
	head  int
	count int
}

// NewHistory creates a history cache with the given capacity. Non-positive
// capacities fall back to MaxMessages.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = MaxMessages
	}
	return &History{buf: make([]Event, capacity)}
}

// Append adds the event at the tail, evicting the oldest entry when the
// cache is full. O(1).
func (h *History) Append(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count < len(h.buf) {
		h.buf[(h.head+h.count)%len(h.buf)] = event
		h.count++
		return
	}

	h.buf[h.head] = event
	h.head = (h.head + 1) % len(h.buf)
}

// Snapshot returns a copy of the current contents in insertion order.
func (h *History) Snapshot() []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Event, h.count)
	for i := range out {
		out[i] = h.buf[(h.head+i)%len(h.buf)]
	}
	return out
}

// Len returns the number of cached events.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.count
}
