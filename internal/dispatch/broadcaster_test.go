package dispatch

import "sync"

// fakeBroadcaster records every call for assertions, shared by the
// auction/arbiter/router test files.
type fakeBroadcaster struct {
	mu sync.Mutex

	sent    []sentMsg
	roomMsg []roomMsg
	joined  []joinCall
	evicted []string
}

type sentMsg struct {
	connID, event string
	payload       any
}

type roomMsg struct {
	room, event string
	payload     any
}

type joinCall struct{ room, connID string }

func (f *fakeBroadcaster) SendToConn(connID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{connID, event, payload})
}

func (f *fakeBroadcaster) SendToRoom(room, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roomMsg = append(f.roomMsg, roomMsg{room, event, payload})
}

func (f *fakeBroadcaster) JoinRoom(room, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, joinCall{room, connID})
}

func (f *fakeBroadcaster) EvictRoom(room string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evicted = append(f.evicted, room)
}

func (f *fakeBroadcaster) eventsTo(connID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if m.connID == connID {
			out = append(out, m.event)
		}
	}
	return out
}
