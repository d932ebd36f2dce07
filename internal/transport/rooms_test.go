package transport

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func newTestConn(id string) *Conn {
	return NewConn(id, nil, zerolog.Nop())
}

func TestRoomsJoinAndMembers(t *testing.T) {
	rooms := NewRooms()
	rooms.Join("ride:r1", newTestConn("a"))
	rooms.Join("ride:r1", newTestConn("b"))

	members := rooms.Members("ride:r1")
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
}

func TestRoomsLeaveDeletesEmptyRoom(t *testing.T) {
	rooms := NewRooms()
	rooms.Join("ride:r1", newTestConn("a"))
	rooms.Leave("ride:r1", "a")

	if len(rooms.Members("ride:r1")) != 0 {
		t.Fatal("expected room to be empty after its only member leaves")
	}
}

func TestRoomsLeaveAllRemovesFromEveryRoom(t *testing.T) {
	rooms := NewRooms()
	conn := newTestConn("a")
	rooms.Join("ride:r1", conn)
	rooms.Join("passageiros", conn)

	rooms.LeaveAll("a")

	if len(rooms.Members("ride:r1")) != 0 || len(rooms.Members("passageiros")) != 0 {
		t.Fatal("expected LeaveAll to remove the connection from every room")
	}
}

func TestRoomsEvictClearsRoom(t *testing.T) {
	rooms := NewRooms()
	rooms.Join("ride:r1", newTestConn("a"))
	rooms.Join("ride:r1", newTestConn("b"))

	rooms.Evict("ride:r1")
	if len(rooms.Members("ride:r1")) != 0 {
		t.Fatal("expected evict to clear all members")
	}
}

func TestRoomsBroadcastQueuesToEveryMember(t *testing.T) {
	rooms := NewRooms()
	a := newTestConn("a")
	b := newTestConn("b")
	rooms.Join("ride:r1", a)
	rooms.Join("ride:r1", b)

	rooms.Broadcast("ride:r1", "corrida_status_atualizada", map[string]any{"status": "completed"})

	for _, c := range []*Conn{a, b} {
		select {
		case raw := <-c.send:
			var env envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				t.Fatalf("expected a valid envelope, got error: %v", err)
			}
			if env.Event != "corrida_status_atualizada" {
				t.Fatalf("expected event name to be preserved, got %q", env.Event)
			}
		default:
			t.Fatalf("expected conn %q to have a queued message", c.ID)
		}
	}
}

func TestRoomsBroadcastToUnknownRoomIsNoop(t *testing.T) {
	rooms := NewRooms()
	rooms.Broadcast("nobody-home", "ignored", nil) // must not panic
}
