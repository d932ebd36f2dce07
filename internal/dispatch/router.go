package dispatch

import (
	"time"

	"github.com/rs/zerolog"
)

// Router relays ride-scoped messages among room members after acceptance:
// driver telemetry, chat, and status transitions (spec §4.7).
type Router struct {
	rides       *RideRegistry
	drivers     *DriverRegistry
	bc          Broadcaster
	lingerDelay time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

// NewRouter wires a session router.
func NewRouter(rides *RideRegistry, drivers *DriverRegistry, bc Broadcaster, lingerDelay time.Duration, log zerolog.Logger) *Router {
	return &Router{rides: rides, drivers: drivers, bc: bc, lingerDelay: lingerDelay, log: log, now: time.Now}
}

func roomFor(rideID string) string { return "ride:" + rideID }

// isMember reports whether connID is the passenger or the winning driver of
// ride — the two roles a ride room ever has, per the RideRoom data model.
func isMember(ride *Ride, connID string) bool {
	ride.Lock()
	defer ride.Unlock()
	return connID == ride.PassengerConnID || connID == ride.WinnerConnID
}

// Telemetry handles driver_localizacao carrying a rideId: updates the
// driver's presence (if connID is a known driver) and re-broadcasts to the
// room with a server timestamp.
func (rt *Router) Telemetry(connID, rideID string, lat, lng float64, heading, speed *float64) {
	ride, ok := rt.rides.Get(rideID)
	if !ok || !isMember(ride, connID) {
		return
	}
	now := rt.now()
	rt.drivers.UpdateLocation(connID, lat, lng, now)

	payload := map[string]any{
		"rideId":    rideID,
		"lat":       lat,
		"lng":       lng,
		"timestamp": now.UnixMilli(),
	}
	if heading != nil {
		payload["heading"] = *heading
	}
	if speed != nil {
		payload["speed"] = *speed
	}
	rt.bc.SendToRoom(roomFor(rideID), "driver_localizacao", payload)
}

// Chat handles enviar_mensagem, fanning it out as nova_mensagem.
func (rt *Router) Chat(connID, rideID, from, message string) {
	ride, ok := rt.rides.Get(rideID)
	if !ok || !isMember(ride, connID) {
		return
	}
	rt.bc.SendToRoom(roomFor(rideID), "nova_mensagem", map[string]any{
		"from":      from,
		"message":   message,
		"timestamp": rt.now().UnixMilli(),
	})
}

// terminalStatuses are the status values that terminate a ride and start
// the linger-then-evict countdown, mapped to the RideStatus the ride moves to.
var terminalStatuses = map[string]RideStatus{
	"completed": RideCompleted,
	"canceled":  RideCanceled,
}

// Status handles corrida_status, re-broadcasting as corrida_status_atualizada
// and, on a terminal status, moving the ride to COMPLETED or CANCELED,
// cancelling any auction timer and scheduling the room/ride teardown.
func (rt *Router) Status(connID, rideID, by, status string) {
	ride, ok := rt.rides.Get(rideID)
	if !ok || !isMember(ride, connID) {
		return
	}
	now := rt.now()
	rt.bc.SendToRoom(roomFor(rideID), "corrida_status_atualizada", map[string]any{
		"rideId":    rideID,
		"by":        by,
		"status":    status,
		"timestamp": now.UnixMilli(),
	})

	final, terminal := terminalStatuses[status]
	if !terminal {
		return
	}
	ride.Lock()
	ride.Status = final
	ride.CancelTimer()
	ride.Unlock()
	time.AfterFunc(rt.lingerDelay, func() {
		rt.bc.EvictRoom(roomFor(rideID))
		rt.rides.Delete(rideID)
	})
}
