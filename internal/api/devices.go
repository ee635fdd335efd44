package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-shelly/internal/bridges/shelly"
)

// writePropertyRequest is the body of PUT /devices/{id}/properties/{name}.
type writePropertyRequest struct {
	Value any `json:"value"`
}

// handleListDevices returns all known devices.
//
// Query parameters:
//   - type: filter by device type (shelly1l, shellyht, ...)
//   - connected: "true" or "false"
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	typeFilter := r.URL.Query().Get("type")
	connFilter := r.URL.Query().Get("connected")
	if connFilter != "" && connFilter != "true" && connFilter != "false" {
		writeBadRequest(w, "connected must be true or false")
		return
	}

	devices := make([]shelly.DeviceSnapshot, 0)
	for _, d := range s.bridge.Devices() {
		if typeFilter != "" && d.Type != typeFilter {
			continue
		}
		if connFilter != "" && d.Connected != (connFilter == "true") {
			continue
		}
		devices = append(devices, d)
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns one device snapshot. Both the instance id and the
// host id are accepted.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.bridge.Device(chi.URLParam(r, "id"))
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dev)
}

// handleWriteProperty writes a value to a device property. The response
// lists the commands that were published; the cached value changes only
// when the device reports the new state.
func (s *Server) handleWriteProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")

	var req writePropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			writeBadRequest(w, "request body is required")
			return
		}
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}

	cmds, err := s.bridge.WriteProperty(r.Context(), id, name, req.Value)
	if err != nil {
		s.logger.Warn("property write failed", "device_id", id, "property", name, "error", err)
		writeBridgeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"device_id": id,
		"property":  name,
		"commands":  cmds,
	})
}

// handleInvokeAction runs a device action such as open, close or stop.
func (s *Server) handleInvokeAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")

	cmds, err := s.bridge.InvokeAction(r.Context(), id, name)
	if err != nil {
		s.logger.Warn("action failed", "device_id", id, "action", name, "error", err)
		writeBridgeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"device_id": id,
		"action":    name,
		"commands":  cmds,
	})
}
