// Package gateway is the connection gateway (spec §4.8): it accepts
// websocket connections via internal/transport, identifies each as
// passenger or driver, dispatches named events into internal/dispatch, and
// tears state down on disconnect.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ridedispatch/internal/dispatch"
	"ridedispatch/internal/transport"
)

const passengersGroup = "passageiros"

// GeoIndex is the optional Redis-backed nearest-driver prefilter
// (internal/geo.RedisIndex). It is never authoritative: a nil GeoIndex just
// means every driver_localizacao/disconnect skips the upsert/remove.
type GeoIndex interface {
	Upsert(ctx context.Context, connID string, lat, lng float64) error
	Remove(ctx context.Context, connID string) error
}

type connEntry struct {
	conn       *transport.Conn
	tipo       string
	identified bool
}

// Gateway implements dispatch.Broadcaster and owns the live connection
// registry plus the room table.
type Gateway struct {
	drivers *dispatch.DriverRegistry
	rides   *dispatch.RideRegistry
	sched   *dispatch.Scheduler
	arbiter *dispatch.Arbiter
	router  *dispatch.Router

	rooms *transport.Rooms
	conns *connTable
	geo   GeoIndex

	now func() time.Time
	log zerolog.Logger
}

// New wires a gateway from already-constructed dispatch components. geo may
// be nil.
func New(drivers *dispatch.DriverRegistry, rides *dispatch.RideRegistry, sched *dispatch.Scheduler, arbiter *dispatch.Arbiter, router *dispatch.Router, geo GeoIndex, log zerolog.Logger) *Gateway {
	return &Gateway{
		drivers: drivers,
		rides:   rides,
		sched:   sched,
		arbiter: arbiter,
		router:  router,
		rooms:   transport.NewRooms(),
		conns:   newConnTable(),
		geo:     geo,
		now:     time.Now,
		log:     log,
	}
}

// Rooms exposes the room table so internal/httpapi or cmd tools can inspect
// membership if needed (e.g. readiness diagnostics).
func (g *Gateway) Rooms() *transport.Rooms { return g.rooms }

// ServeHTTP upgrades the request to a websocket and drives the connection's
// read/write pumps until it closes. Each call is expected to run on its own
// goroutine (the net/http per-request model already provides that).
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := transport.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	connID := uuid.NewString()
	conn := transport.NewConn(connID, ws, g.log)

	g.conns.put(connID, &connEntry{conn: conn})

	go conn.WritePump()
	conn.ReadPump(
		func(event string, data json.RawMessage) { g.handle(connID, event, data) },
		func() { g.onDisconnect(connID) },
	)
}

func (g *Gateway) handle(connID string, event string, data json.RawMessage) {
	entry, ok := g.conns.get(connID)
	if !ok {
		return
	}

	switch event {
	case "identificar":
		g.onIdentificar(connID, entry, data)
	case "driver_status":
		g.onDriverStatus(connID, entry, data)
	case "driver_localizacao":
		g.onDriverLocalizacao(connID, entry, data)
	case "nova_corrida":
		g.onNovaCorrida(connID, entry, data)
	case "corrida_aceita":
		g.onCorridaAceita(connID, entry, data)
	case "enviar_mensagem":
		g.onEnviarMensagem(connID, data)
	case "corrida_status":
		g.onCorridaStatus(connID, data)
	default:
		g.log.Debug().Str("event", event).Str("conn_id", connID).Msg("unknown inbound event")
	}
}

func (g *Gateway) onIdentificar(connID string, entry *connEntry, data json.RawMessage) {
	if entry.identified {
		// Precondition violation ("once per connection"): protocol error,
		// dropped silently per spec §7.
		g.log.Debug().Str("conn_id", connID).Msg("duplicate identificar")
		return
	}
	var msg identificarMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		g.log.Debug().Err(err).Msg("malformed identificar")
		return
	}

	switch msg.Tipo {
	case "motorista":
		g.drivers.Register(connID, msg.DriverID, g.now())
		entry.tipo = msg.Tipo
		entry.identified = true
		entry.conn.Emit("status", map[string]any{"ok": true, "tipo": msg.Tipo})
	case "passageiro":
		g.rooms.Join(passengersGroup, entry.conn)
		entry.tipo = msg.Tipo
		entry.identified = true
		entry.conn.Emit("status", map[string]any{"ok": true, "tipo": msg.Tipo})
	default:
		entry.conn.Emit("status", map[string]any{"ok": false, "error": "tipo_invalido"})
	}
}

func (g *Gateway) onDriverStatus(connID string, entry *connEntry, data json.RawMessage) {
	if entry.tipo != "motorista" {
		return
	}
	var msg driverStatusMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		g.log.Debug().Err(err).Msg("malformed driver_status")
		return
	}
	g.drivers.SetAvailable(connID, msg.Available)
}

func (g *Gateway) onDriverLocalizacao(connID string, entry *connEntry, data json.RawMessage) {
	if entry.tipo != "motorista" {
		return
	}
	var msg driverLocalizacaoMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		g.log.Debug().Err(err).Msg("malformed driver_localizacao")
		return
	}
	if !(dispatch.Coordinate{Latitude: msg.Lat, Longitude: msg.Lng}).Finite() {
		g.log.Debug().Str("conn_id", connID).Msg("non-finite driver_localizacao, dropped")
		return
	}

	if g.geo != nil {
		if err := g.geo.Upsert(context.Background(), connID, msg.Lat, msg.Lng); err != nil {
			g.log.Debug().Err(err).Str("conn_id", connID).Msg("geo index upsert failed")
		}
	}

	if msg.RideID != "" {
		g.router.Telemetry(connID, msg.RideID, msg.Lat, msg.Lng, msg.Heading, msg.Speed)
		return
	}
	g.drivers.UpdateLocation(connID, msg.Lat, msg.Lng, g.now())
}

func (g *Gateway) onNovaCorrida(connID string, entry *connEntry, data json.RawMessage) {
	if entry.tipo != "passageiro" {
		return
	}
	var msg novaCorridaMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		g.log.Debug().Err(err).Msg("malformed nova_corrida")
		return
	}
	if msg.RideID == "" || !msg.PickupLocation.Finite() || !msg.DestinationLocation.Finite() {
		g.log.Debug().Str("conn_id", connID).Msg("malformed nova_corrida, dropped")
		return
	}

	ride := dispatch.NewRide(msg.RideID, g.now())
	ride.PassengerConnID = connID
	ride.PassengerName = msg.PassengerName
	ride.PickupAddress = msg.PickupAddress
	ride.DestAddress = msg.DestinationAddress
	ride.Pickup = msg.PickupLocation
	ride.Dest = msg.DestinationLocation
	ride.Fare = msg.Fare
	ride.RoutePolyline = msg.RoutePolyline

	if err := g.rides.Create(ride); err != nil {
		g.log.Debug().Err(err).Str("ride_id", msg.RideID).Msg("duplicate nova_corrida, dropped")
		return
	}
	g.rooms.Join(roomFor(msg.RideID), entry.conn)
	g.sched.Dispatch(ride)
}

func (g *Gateway) onCorridaAceita(connID string, entry *connEntry, data json.RawMessage) {
	if entry.tipo != "motorista" {
		return
	}
	var msg corridaAceitaMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		g.log.Debug().Err(err).Msg("malformed corrida_aceita")
		return
	}
	if msg.RideID == "" || msg.OfferID == "" {
		return
	}
	g.arbiter.Accept(msg.RideID, msg.OfferID, connID, dispatch.DriverMeta{
		DriverID:         msg.DriverID,
		DriverName:       msg.DriverName,
		DriverPhone:      msg.DriverPhone,
		VehicleModel:     msg.VehicleModel,
		VehiclePlate:     msg.VehiclePlate,
		ApproachPolyline: msg.ApproachPolyline,
	}, g.now())
}

func (g *Gateway) onEnviarMensagem(connID string, data json.RawMessage) {
	var msg enviarMensagemMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		g.log.Debug().Err(err).Msg("malformed enviar_mensagem")
		return
	}
	if msg.RideID == "" {
		return
	}
	g.router.Chat(connID, msg.RideID, msg.From, msg.Message)
}

func (g *Gateway) onCorridaStatus(connID string, data json.RawMessage) {
	var msg corridaStatusMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		g.log.Debug().Err(err).Msg("malformed corrida_status")
		return
	}
	if msg.RideID == "" || msg.Status == "" {
		return
	}
	g.router.Status(connID, msg.RideID, msg.By, msg.Status)
}

func (g *Gateway) onDisconnect(connID string) {
	entry, ok := g.conns.get(connID)
	if ok && entry.tipo == "motorista" {
		g.drivers.SetAvailable(connID, false)
		if g.geo != nil {
			if err := g.geo.Remove(context.Background(), connID); err != nil {
				g.log.Debug().Err(err).Str("conn_id", connID).Msg("geo index remove failed")
			}
		}
	}
	g.rooms.LeaveAll(connID)
	g.conns.remove(connID)
	g.log.Info().Str("conn_id", connID).Msg("connection closed")
}

func roomFor(rideID string) string { return "ride:" + rideID }

// --- dispatch.Broadcaster ---

func (g *Gateway) SendToConn(connID, event string, payload any) {
	entry, ok := g.conns.get(connID)
	if !ok {
		g.log.Debug().Str("conn_id", connID).Str("event", event).Msg("emit to unknown/closed connection, dropped")
		return
	}
	entry.conn.Emit(event, payload)
}

func (g *Gateway) SendToRoom(room, event string, payload any) {
	g.rooms.Broadcast(room, event, payload)
}

func (g *Gateway) JoinRoom(room, connID string) {
	entry, ok := g.conns.get(connID)
	if !ok {
		return
	}
	g.rooms.Join(room, entry.conn)
}

func (g *Gateway) EvictRoom(room string) {
	g.rooms.Evict(room)
}
