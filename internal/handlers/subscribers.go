package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type createSubscriberRequest struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	HowMet string `json:"howMet,omitempty"`
}

type updateSubscriberRequest struct {
	Name   *string `json:"name,omitempty"`
	Phone  *string `json:"phone,omitempty"`
	HowMet *string `json:"howMet,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

func (h API) GetSubscribers(w http.ResponseWriter, r *http.Request) {
	if h.Subscribers == nil {
		writeJSON(w, http.StatusServiceUnavailable, apiError{Code: "service_unavailable", Message: "subscribers not configured"})
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	subs, err := h.Subscribers.List(r.Context(), activeOnly)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h API) PostSubscribers(w http.ResponseWriter, r *http.Request) {
	if h.Subscribers == nil {
		writeJSON(w, http.StatusServiceUnavailable, apiError{Code: "service_unavailable", Message: "subscribers not configured"})
		return
	}
	var req createSubscriberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "invalid_request", Message: "invalid json"})
		return
	}
	sub, err := h.Subscribers.Create(r.Context(), req.Name, req.Phone, req.HowMet)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h API) GetSubscriber(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriberID(w, r)
	if !ok {
		return
	}
	sub, err := h.Subscribers.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h API) PatchSubscriber(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriberID(w, r)
	if !ok {
		return
	}
	var req updateSubscriberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "invalid_request", Message: "invalid json"})
		return
	}

	if req.Name != nil || req.Phone != nil || req.HowMet != nil {
		if _, err := h.Subscribers.Update(r.Context(), id, req.Name, req.Phone, req.HowMet); err != nil {
			writeServiceError(w, err)
			return
		}
	}
	if req.Active != nil {
		if err := h.Subscribers.SetActive(r.Context(), id, *req.Active); err != nil {
			writeServiceError(w, err)
			return
		}
	}

	sub, err := h.Subscribers.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h API) DeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriberID(w, r)
	if !ok {
		return
	}
	if err := h.Subscribers.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h API) PostSubscriberPin(w http.ResponseWriter, r *http.Request) {
	id, ok := subscriberID(w, r)
	if !ok {
		return
	}
	code, err := h.Subscribers.AssignPin(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pinCode": code})
}

func subscriberID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Code: "invalid_request", Message: "invalid subscriber id"})
		return uuid.Nil, false
	}
	return id, true
}
