package transport

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// Upgrader is shared by the single /ws endpoint. Origin checking is
// deliberately permissive: spec's Non-goals exclude authentication of
// clients, and confidentiality of offerId is the only guard (spec §9 open
// question 4).
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}
