package conn

import (
	"testing"

	"github.com/gorilla/websocket"
)

func TestQueue_DropsAtCapacity(t *testing.T) {
	q := NewQueue(2)

	if !q.Push(websocket.TextMessage, []byte("A")) {
		t.Error("expected A to be queued")
	}
	if !q.Push(websocket.TextMessage, []byte("B")) {
		t.Error("expected B to be queued")
	}
	// C arrives at capacity: dropped, not overwriting A or B
	if q.Push(websocket.TextMessage, []byte("C")) {
		t.Error("expected C to be dropped")
	}

	items := q.Drain()
	if len(items) != 2 {
		t.Fatalf("expected 2 queued messages, got %d", len(items))
	}
	if string(items[0].Data) != "A" || string(items[1].Data) != "B" {
		t.Errorf("expected [A B], got [%s %s]", items[0].Data, items[1].Data)
	}
}

func TestQueue_DrainEmptiesInOrder(t *testing.T) {
	q := NewQueue(5)
	for _, s := range []string{"1", "2", "3"} {
		q.Push(websocket.TextMessage, []byte(s))
	}

	items := q.Drain()
	for i, want := range []string{"1", "2", "3"} {
		if string(items[i].Data) != want {
			t.Errorf("position %d: expected %s, got %s", i, want, items[i].Data)
		}
	}
	if q.Len() != 0 {
		t.Errorf("expected empty queue after drain, got %d", q.Len())
	}
}

func TestQueue_Clear(t *testing.T) {
	q := NewQueue(5)
	q.Push(websocket.TextMessage, []byte("x"))
	q.Clear()
	if q.Len() != 0 {
		t.Errorf("expected empty queue after clear, got %d", q.Len())
	}
}
