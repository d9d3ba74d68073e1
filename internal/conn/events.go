package conn

import (
	"sync"

	"github.com/trackdeck/realtime/internal/core/domain"
)

// EventKind is the closed set of events the connection manager emits.
type EventKind int

const (
	EventStateChange EventKind = iota
	EventConnectionEstablished
	EventTrackingUpdate
	EventStatusUpdate
	EventPong
	EventSystemStatus
	EventControlMessage
	EventFrameData
	EventReconnectAttempt
	EventError
)

// Event carries the payload for one emission. Which fields are set depends
// on Kind: State for state changes, Envelope for routed text messages,
// Frame for binary data, Attempt/MaxAttempts for reconnect attempts, and
// Err/Report for errors.
type Event struct {
	Kind        EventKind
	State       State
	Envelope    *domain.Envelope
	Frame       *Frame
	Attempt     int
	MaxAttempts int
	Err         error
	Report      *domain.ErrorReport
}

// Handler receives events for one kind. Handlers run synchronously on the
// emitting goroutine and must not block.
type Handler func(Event)

// Bus is a typed publish/subscribe fan-out keyed by EventKind.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[EventKind]map[int]Handler
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventKind]map[int]Handler)}
}

// Subscribe registers a handler for one event kind and returns an
// unsubscribe function.
func (b *Bus) Subscribe(kind EventKind, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[int]Handler)
	}
	b.subs[kind][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[kind], id)
	}
}

// Publish delivers an event to all handlers registered for its kind.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[e.Kind]))
	for _, h := range b.subs[e.Kind] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// eventKindFor maps inbound message types onto their event kinds. Unknown
// types return false and the message is dropped by the caller.
func eventKindFor(t domain.MessageType) (EventKind, bool) {
	switch t {
	case domain.MessageTypeConnectionEstablished:
		return EventConnectionEstablished, true
	case domain.MessageTypeTrackingUpdate:
		return EventTrackingUpdate, true
	case domain.MessageTypeStatusUpdate:
		return EventStatusUpdate, true
	case domain.MessageTypePong:
		return EventPong, true
	case domain.MessageTypeSystemStatus:
		return EventSystemStatus, true
	case domain.MessageTypeControl:
		return EventControlMessage, true
	}
	return 0, false
}
