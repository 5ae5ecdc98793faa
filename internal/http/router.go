package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"call-sentiment-gateway/internal/observability"
)

// NewRouter constructs the HTTP router for the gateway.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.RequestLogger)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// Call provider webhooks
	r.Get("/", h.Answer)
	r.Post("/", h.CallStatus)
	r.Post("/recordings", h.Recordings)

	// Live sockets
	r.Get("/inbound-call-socket", h.InboundCall)
	r.Get("/dashboard-socket", h.Dashboard)

	// Dashboard page assets
	if h.Config.Service.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(h.Config.Service.StaticDir)))
		r.Handle("/static/*", fs)
	}

	return r
}
