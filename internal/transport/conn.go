// Package transport is the bidirectional duplex message channel required by
// spec §6.1: per-connection identity, envelope framing, and the
// gorilla/websocket read/write pumps that keep a connection's writes
// single-threaded.
package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// envelope is the wire framing: every message, in either direction, is a
// JSON object tagged by event name (spec §6.1).
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn is one live connection's identity plus its outbound queue. A
// dedicated writer goroutine owns the underlying websocket.Conn so no other
// goroutine ever calls WriteMessage directly.
type Conn struct {
	ID string

	ws   *websocket.Conn
	send chan []byte
	log  zerolog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn wraps an upgraded websocket connection.
func NewConn(id string, ws *websocket.Conn, log zerolog.Logger) *Conn {
	return &Conn{
		ID:     id,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		log:    log,
		closed: make(chan struct{}),
	}
}

// Emit marshals payload, frames it under event, and queues it for delivery.
// A full send buffer or a closed connection drops the message — transient
// transport errors are logged, never retried, per spec §7.
func (c *Conn) Emit(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Error().Err(err).Str("event", event).Msg("marshal outbound payload")
		return
	}
	raw, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		c.log.Error().Err(err).Str("event", event).Msg("marshal envelope")
		return
	}
	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case c.send <- raw:
	case <-c.closed:
	default:
		c.log.Warn().Str("conn_id", c.ID).Str("event", event).Msg("outbound buffer full, dropping")
	}
}

// Close shuts the connection down exactly once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.ws.Close()
	})
}

// ReadPump decodes inbound envelopes and hands them to dispatch until the
// connection errors or closes, then calls onClose exactly once. Blocks;
// callers run it in its own goroutine.
func (c *Conn) ReadPump(dispatch func(event string, data json.RawMessage), onClose func()) {
	defer func() {
		onClose()
		c.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug().Err(err).Str("conn_id", c.ID).Msg("websocket read error")
			}
			return
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			// Protocol error: malformed payload. Logged and dropped, never
			// surfaced to the client (spec §7).
			c.log.Debug().Err(err).Str("conn_id", c.ID).Msg("malformed inbound envelope")
			continue
		}
		dispatch(env.Event, env.Data)
	}
}

// WritePump drains the outbound queue and keepalive-pings the peer. Blocks;
// callers run it in its own goroutine.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}
