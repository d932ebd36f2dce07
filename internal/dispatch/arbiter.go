package dispatch

import (
	"time"

	"github.com/rs/zerolog"
)

// Arbiter resolves concurrent acceptance attempts for a ride, producing
// exactly one winner (spec §4.6).
type Arbiter struct {
	rides   *RideRegistry
	bc      Broadcaster
	metrics MetricsSink
	audit   AuditLogger
	log     zerolog.Logger
}

// NewArbiter wires an arbiter. metrics/audit may be nil.
func NewArbiter(rides *RideRegistry, bc Broadcaster, metrics MetricsSink, audit AuditLogger, log zerolog.Logger) *Arbiter {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &Arbiter{rides: rides, bc: bc, metrics: metrics, audit: audit, log: log}
}

// DriverMeta is the acceptance payload's driver-identifying fields, echoed
// into corrida_aceita.
type DriverMeta struct {
	DriverID       string `json:"driverId"`
	DriverName     string `json:"driverName"`
	DriverPhone    string `json:"driverPhone"`
	VehicleModel   string `json:"vehicleModel"`
	VehiclePlate   string `json:"vehiclePlate"`
	ApproachPolyline string `json:"approachPolyline,omitempty"`
}

// Accept processes a corrida_aceita from connID attempting to win offerID
// on rideID. It implements the compare-and-set award in spec §4.6 steps
// 1-6.
func (a *Arbiter) Accept(rideID, offerID, connID string, meta DriverMeta, now time.Time) {
	ride, ok := a.rides.Get(rideID)
	if !ok {
		a.bc.SendToConn(connID, "offer_lost", map[string]any{"rideId": rideID, "reason": "not_searching"})
		return
	}

	ride.Lock()
	if ride.Status != RideSearching {
		ride.Unlock()
		a.bc.SendToConn(connID, "offer_lost", map[string]any{"rideId": rideID, "reason": "not_searching"})
		return
	}

	off, ok := ride.Offered[offerID]
	if !ok || off.ConnID != connID || off.State != OfferPending {
		ride.Unlock()
		a.bc.SendToConn(connID, "offer_lost", map[string]any{"rideId": rideID, "reason": "offer_invalid"})
		return
	}

	ride.Status = RideAccepted
	ride.WinnerConnID = connID
	off.State = OfferWon
	ride.CancelTimer()

	var losers []string
	for id, o := range ride.Offered {
		if id == offerID {
			continue
		}
		if o.State == OfferPending {
			o.State = OfferLost
			losers = append(losers, o.ConnID)
		}
	}
	createdAt := ride.CreatedAt
	passengerName := ride.PassengerName
	round := ride.Round
	ride.Unlock()

	room := "ride:" + rideID
	a.bc.JoinRoom(room, connID)

	a.metrics.OfferWon()
	a.metrics.RideAccepted(now.Sub(createdAt))
	a.metrics.RoundsObserved(round + 1)
	a.audit.LogRideEvent(rideID, "ride_accepted", map[string]any{"driverId": meta.DriverID, "connId": connID})

	a.bc.SendToRoom(room, "corrida_aceita", map[string]any{
		"rideId":           rideID,
		"driverId":         meta.DriverID,
		"driverName":       meta.DriverName,
		"driverPhone":      meta.DriverPhone,
		"vehicleModel":     meta.VehicleModel,
		"vehiclePlate":     meta.VehiclePlate,
		"status":           "accepted",
		"message":          passengerName + "'s ride has been accepted",
		"timestamp":        now.UnixMilli(),
		"approachPolyline": meta.ApproachPolyline,
	})
	a.bc.SendToConn(connID, "offer_won", map[string]any{"rideId": rideID})

	for _, loserConn := range losers {
		a.metrics.OfferLost("already_taken")
		a.bc.SendToConn(loserConn, "offer_lost", map[string]any{"rideId": rideID, "reason": "already_taken"})
	}
}
