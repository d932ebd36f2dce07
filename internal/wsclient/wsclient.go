// Package wsclient is a minimal client for the dispatch core's event
// protocol, shared by the cmd/ tools that exercise a running server by hand
// (spec §12 "CLI drivers" — the teacher's REST-calling tools, adapted to
// the new wire format).
package wsclient

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is a single connection to the dispatch core's /ws endpoint.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to addr (e.g. "ws://localhost:10000/ws").
func Dial(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Send marshals payload and writes it as event.
func (c *Client) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.conn.WriteJSON(envelope{Event: event, Data: data})
}

// Next blocks for the next inbound message and returns its event name and
// raw data.
func (c *Client) Next() (string, json.RawMessage, error) {
	var env envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		return "", nil, err
	}
	return env.Event, env.Data, nil
}

// WaitFor blocks until an event named want arrives (decoding it into out),
// or timeout elapses.
func WaitFor(c *Client, want string, out any, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("timed out waiting for %q", want)
		}
		c.conn.SetReadDeadline(time.Now().Add(remaining))
		event, data, err := c.Next()
		if err != nil {
			return err
		}
		if event != want {
			continue
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal(data, out)
	}
}
