// Package http provides the gateway's HTTP surface: call provider webhooks
// and the live call and dashboard sockets.
package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"call-sentiment-gateway/internal/config"
	"call-sentiment-gateway/internal/dashboard"
	"call-sentiment-gateway/internal/models"
	"call-sentiment-gateway/internal/service/call"
	"call-sentiment-gateway/internal/service/transcribe"
)

// Handlers holds the dependencies of the HTTP surface.
type Handlers struct {
	Config    *config.Configuration
	Dialer    transcribe.Dialer
	Analyzer  call.Analyzer
	Hub       *dashboard.Hub
	Publisher call.Publisher
}

// Answer is the call-control webhook: it returns the call-flow document
// that connects the inbound call to our call socket.
func (h *Handlers) Answer(w http.ResponseWriter, r *http.Request) {
	to := r.URL.Query().Get("to")
	log.Info().Str("to", to).Msg("Call flow fetched for inbound call")

	ncco := models.NCCO{
		{
			Action:   "connect",
			EventURL: []string{h.Config.Service.ServerURL},
			From:     h.Config.Service.VirtualNumber,
			Endpoint: []models.NCCOEndpoint{
				{
					Type:        "websocket",
					URI:         websocketURL(h.Config.Service.ServerURL) + "/inbound-call-socket",
					ContentType: "audio/l16;rate=16000",
					Headers:     map[string]string{},
				},
			},
		},
	}
	writeJSON(w, http.StatusOK, ncco)
}

// CallStatus is the call-status webhook, a stateless acknowledgement.
func (h *Handlers) CallStatus(w http.ResponseWriter, r *http.Request) {
	var status models.CallStatus
	if err := json.NewDecoder(r.Body).Decode(&status); err != nil {
		log.Warn().Err(err).Msg("Unparseable call status event")
		writeJSON(w, http.StatusBadRequest, []map[string]string{{"status": "error"}})
		return
	}

	log.Info().Str("to", status.To).Str("status", status.Status).Msg("Call status update")
	writeJSON(w, http.StatusOK, []map[string]string{{"status": "ok"}})
}

// Recordings is the recording-metadata webhook, a stateless acknowledgement.
func (h *Handlers) Recordings(w http.ResponseWriter, r *http.Request) {
	var meta models.RecordingMeta
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		log.Warn().Err(err).Msg("Unparseable recording metadata")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	log.Info().Str("conversationUuid", meta.ConversationUUID).Msg("New recording available")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// websocketURL rewrites an http(s) base URL to its ws(s) equivalent.
func websocketURL(serverURL string) string {
	switch {
	case strings.HasPrefix(serverURL, "https://"):
		return "wss://" + strings.TrimPrefix(serverURL, "https://")
	case strings.HasPrefix(serverURL, "http://"):
		return "ws://" + strings.TrimPrefix(serverURL, "http://")
	default:
		return serverURL
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
