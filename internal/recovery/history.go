package recovery

import "sync"

// History is a bounded ring of terminal sessions, newest last. When full,
// appending evicts the oldest entry.
type History struct {
	mu       sync.Mutex
	entries  []Session
	capacity int
}

// NewHistory creates a ring with the given retention count. Capacity below 1
// is clamped to 1.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{capacity: capacity}
}

// Append records a terminal session.
func (h *History) Append(s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) >= h.capacity {
		h.entries = h.entries[1:]
	}
	h.entries = append(h.entries, s)
}

// All returns the retained sessions, oldest first.
func (h *History) All() []Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Session(nil), h.entries...)
}

// Len returns the number of retained sessions.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
