package events

import (
	"encoding/json"
	"testing"
)

func TestHubEmit(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	h.Emit("req-1", TypeLeadCaptured, map[string]any{"name": "Acme"})

	e, err := Decode(<-ch)
	if err != nil {
		t.Fatal(err)
	}
	if e.Type != TypeLeadCaptured || e.RequestID != "req-1" || e.Version != Version {
		t.Fatalf("event = %+v", e)
	}
	var data map[string]string
	_ = json.Unmarshal(e.Data, &data)
	if data["name"] != "Acme" {
		t.Fatalf("data = %s", e.Data)
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)
	for i := 0; i < 50; i++ {
		h.Publish("x")
	}
	if len(ch) != cap(ch) {
		t.Fatalf("buffered = %d, want %d", len(ch), cap(ch))
	}
}

func TestNilHubIsSafe(t *testing.T) {
	var h *Hub
	h.Publish("x")
	h.Emit("", TypePing, nil)
}

func TestEncodeDropsUnmarshalableData(t *testing.T) {
	e, err := Decode(Encode("", TypeTermFailed, func() {}))
	if err != nil {
		t.Fatal(err)
	}
	if e.Type != TypeTermFailed || len(e.Data) != 0 {
		t.Fatalf("event = %+v", e)
	}
}
