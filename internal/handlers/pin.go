package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

type pinCheckRequest struct {
	Pin string `json:"pin"`
}

// pinCheckResponse is deliberately narrow: the caller proved knowledge of a
// PIN, not admin access, so they get the subscriber's label and nothing else.
type pinCheckResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PostPinCheck resolves a PIN to its subscriber. The route middleware has
// already applied the per-IP window by the time this runs.
func (h API) PostPinCheck(w http.ResponseWriter, r *http.Request) {
	if h.PinCheck == nil {
		writeJSON(w, http.StatusServiceUnavailable, apiError{Code: "service_unavailable", Message: "pin check not configured"})
		return
	}
	var req pinCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "invalid_request", Message: "invalid json"})
		return
	}
	sub, err := h.PinCheck.Check(r.Context(), strings.ToUpper(strings.TrimSpace(req.Pin)))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pinCheckResponse{ID: sub.ID.String(), Name: sub.Name})
}
