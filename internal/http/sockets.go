package http

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"call-sentiment-gateway/internal/dashboard"
	"call-sentiment-gateway/internal/service/call"
)

var upgrader = websocket.Upgrader{
	// The call provider and dashboard page connect from their own origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

var callSeq atomic.Uint64

// InboundCall accepts the call provider's audio/control socket and runs one
// call session relay for the lifetime of the connection.
func (h *Handlers) InboundCall(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Call socket upgrade failed")
		return
	}
	defer conn.Close()

	id := fmt.Sprintf("call-%d-%s", callSeq.Add(1), conn.RemoteAddr())
	sess := call.NewSession(id, h.Dialer, h.Analyzer, h.Hub, h.Publisher)
	if err := sess.Open(); err != nil {
		log.Error().Err(err).Str("callId", id).Msg("Failed to open call session")
		return
	}
	defer sess.Close()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("callId", id).Msg("Call socket closed unexpectedly")
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			sess.OnAudio(data)
		case websocket.TextMessage:
			sess.OnControl(data)
		}
	}
}

// Dashboard accepts an observer socket and keeps it registered with the
// broadcast hub until it disconnects. Observers only listen; inbound
// messages are discarded.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Dashboard socket upgrade failed")
		return
	}
	defer conn.Close()

	client := dashboard.NewWSClient(conn, h.Config.Dashboard.WriteTimeout)
	h.Hub.Register(client)
	defer h.Hub.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
