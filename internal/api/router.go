package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// defaultWSPath is used when the WebSocket path is not configured.
const defaultWSPath = "/ws"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = defaultWSPath
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Put("/properties/{name}", s.handleWriteProperty)
				r.Post("/actions/{name}", s.handleInvokeAction)
			})
		})

		r.Get("/commands", s.handleListCommands)

		r.Get(wsPath, s.handleWebSocket)
	})

	return r
}

// handleHealth reports broker connectivity and bridge counters.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	connected := s.bridge.IsConnected()
	if !connected {
		status = "degraded"
	}

	body := map[string]any{
		"status":         status,
		"version":        s.version,
		"mqtt_connected": connected,
		"devices":        len(s.bridge.Devices()),
		"stats":          s.bridge.Stats(),
	}
	if s.hub != nil {
		body["websocket_clients"] = s.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, body)
}
