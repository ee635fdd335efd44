package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-shelly/internal/audit"
)

// handleListCommands returns the command log, newest first.
//
// Query parameters:
//   - device_id: filter by instance id
//   - kind: filter by command kind (set_relay, roller_state, ...)
//   - limit: page size (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	if s.commands == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "command log is not enabled")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		DeviceID: q.Get("device_id"),
		Kind:     q.Get("kind"),
	}

	var err error
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
	}

	result, err := s.commands.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing command log", "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
