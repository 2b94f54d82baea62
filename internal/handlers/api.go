package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"textline/internal/service"
	"textline/internal/webhook"

	"github.com/jackc/pgx/v5/pgconn"
)

// API holds the wired services behind the HTTP surface.
type API struct {
	Subscribers *service.SubscriberService
	Inbound     *service.InboundService
	PinCheck    *service.PinCheckService
	Auth        *service.AuthService

	Webhook *webhook.Validator

	// PublicBaseURL is the externally visible origin the provider signed its
	// webhook requests against, e.g. https://sms.example.com. Signature
	// verification reconstructs the full URL from it.
	PublicBaseURL string
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeServiceError(w http.ResponseWriter, err error) {
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var se *service.Error
	if errors.As(err, &se) {
		writeJSON(w, se.Status, apiError{Code: se.Code, Message: se.Message})
		return
	}
	// Surface common schema-mismatch failures (container volume created with
	// an older schema.sql) without putting details in the HTTP response.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42703", "42P01": // undefined_column, undefined_table
			writeJSON(w, http.StatusServiceUnavailable, apiError{Code: "service_unavailable", Message: "database schema out of date; apply the latest migrations"})
			return
		}
	}

	slog.Error("internal error", "error", err)
	writeJSON(w, http.StatusInternalServerError, apiError{Code: "internal", Message: "internal error"})
}

func (h API) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
