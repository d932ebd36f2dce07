package dispatch

// Broadcaster is everything the auction scheduler, arbiter and session
// router need from the transport layer. The gateway package implements it;
// dispatch never imports gorilla/websocket directly, keeping the matching
// core transport-agnostic per spec §1 ("surrounding concerns are treated as
// external collaborators").
type Broadcaster interface {
	// SendToConn emits event with payload to exactly one connection. If the
	// connection is gone, this is a logged no-op (transient transport error,
	// spec §7) — never an error returned up into matching logic.
	SendToConn(connID, event string, payload any)
	// SendToRoom emits event with payload to every current member of room.
	SendToRoom(room, event string, payload any)
	// JoinRoom adds connID to room's membership.
	JoinRoom(room, connID string)
	// EvictRoom removes every member from room and forgets the room itself.
	EvictRoom(room string)
}
