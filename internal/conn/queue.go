package conn

import (
	"sync"
	"time"
)

// QueuedMessage is an outbound message held while the connection is down.
type QueuedMessage struct {
	Type       int // websocket message type (text or binary)
	Data       []byte
	EnqueuedAt time.Time
}

// Queue is a bounded FIFO of pending outbound messages. Pushing past
// capacity drops the new message rather than evicting an old one.
type Queue struct {
	mu       sync.Mutex
	items    []QueuedMessage
	capacity int
}

// NewQueue creates a queue with the given capacity. Capacity below 1 is
// clamped to 1.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{capacity: capacity}
}

// Push appends a message. Returns false when the queue is full and the
// message was dropped.
func (q *Queue) Push(msgType int, data []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		return false
	}
	q.items = append(q.items, QueuedMessage{
		Type:       msgType,
		Data:       data,
		EnqueuedAt: time.Now(),
	})
	return true
}

// Drain returns all queued messages in insertion order and empties the queue.
func (q *Queue) Drain() []QueuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear discards all queued messages.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}
