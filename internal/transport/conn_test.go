package transport

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestConnEmitQueuesEnvelope(t *testing.T) {
	c := NewConn("c1", nil, zerolog.Nop())
	c.Emit("status", map[string]any{"ok": true})

	select {
	case raw := <-c.send:
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("expected valid envelope json, got error: %v", err)
		}
		if env.Event != "status" {
			t.Fatalf("expected event %q, got %q", "status", env.Event)
		}
		var data map[string]any
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("expected valid payload json, got error: %v", err)
		}
		if data["ok"] != true {
			t.Fatalf("expected payload to round-trip, got %v", data)
		}
	default:
		t.Fatal("expected a queued message")
	}
}

func TestConnEmitDropsAfterClose(t *testing.T) {
	c := NewConn("c1", nil, zerolog.Nop())
	close(c.closed)

	c.Emit("status", map[string]any{"ok": true})

	select {
	case <-c.send:
		t.Fatal("expected no message to be queued once the connection is closed")
	default:
	}
}

func TestConnEmitDropsWhenBufferFull(t *testing.T) {
	c := NewConn("c1", nil, zerolog.Nop())
	for i := 0; i < sendBuffer; i++ {
		c.Emit("status", map[string]any{"i": i})
	}
	// Buffer is now full; one more Emit must drop rather than block.
	c.Emit("status", map[string]any{"i": "overflow"})

	if len(c.send) != sendBuffer {
		t.Fatalf("expected buffer to stay at capacity %d, got %d", sendBuffer, len(c.send))
	}
}
