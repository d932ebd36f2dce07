package transport

import "sync"

// Rooms is a roomId -> set(*Conn) mapping with fan-out emit, the
// "if the target transport lacks groups, implement a roomId -> set(connId)
// mapping" abstraction from spec §9, generalized from the teacher's
// single-purpose rideConns map in hub.go into a named-room registry reused
// for both the ride rooms and the passive "passageiros" group.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]map[string]*Conn // room -> connId -> conn
}

// NewRooms returns an empty room registry.
func NewRooms() *Rooms {
	return &Rooms{members: make(map[string]map[string]*Conn)}
}

// Join adds conn to room, creating it if necessary.
func (r *Rooms) Join(room string, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.members[room]
	if !ok {
		set = make(map[string]*Conn)
		r.members[room] = set
	}
	set[conn.ID] = conn
}

// Leave removes conn from room, deleting the room once it's empty.
func (r *Rooms) Leave(room string, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.members[room]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.members, room)
	}
}

// LeaveAll removes connID from every room it belongs to, called on
// disconnect.
func (r *Rooms) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room, set := range r.members {
		if _, ok := set[connID]; ok {
			delete(set, connID)
			if len(set) == 0 {
				delete(r.members, room)
			}
		}
	}
}

// Evict removes every member from room and forgets it entirely.
func (r *Rooms) Evict(room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, room)
}

// Broadcast emits event/payload to every current member of room. Delivery
// order across members is unspecified but each member's own message order
// is preserved by its own send channel (spec §5 ordering guarantees).
func (r *Rooms) Broadcast(room, event string, payload any) {
	r.mu.RLock()
	set := r.members[room]
	conns := make([]*Conn, 0, len(set))
	for _, c := range set {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		c.Emit(event, payload)
	}
}

// Members returns the connIds currently in room, for tests and diagnostics.
func (r *Rooms) Members(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.members[room]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
