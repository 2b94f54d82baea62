package handlers

import (
	"encoding/xml"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"textline/internal/logging"
	"textline/internal/webhook"
)

// maxWebhookBody bounds the form body read; provider webhooks are small.
const maxWebhookBody = 64 << 10

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// PostWebhookSMS handles the provider's inbound-message callback. The
// signature is checked against the raw body before anything else happens;
// an unverified request never reaches parsing, matching, or storage.
func (h API) PostWebhookSMS(w http.ResponseWriter, r *http.Request) {
	if h.Webhook == nil {
		writeJSON(w, http.StatusServiceUnavailable, apiError{Code: "service_unavailable", Message: "webhook not configured"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeForbidden(w, r, "body_read_failed")
		return
	}

	requestURL := h.webhookURL(r)
	sig := r.Header.Get(webhook.SignatureHeader)
	if !h.Webhook.ValidateBody(requestURL, string(body), sig) {
		writeForbidden(w, r, "signature_invalid")
		return
	}

	params, err := url.ParseQuery(string(body))
	if err != nil {
		// ValidateBody already parsed this; reaching here means a race on the
		// body, treat as unverified.
		writeForbidden(w, r, "body_parse_failed")
		return
	}
	msg := webhook.ParseInbound(params)
	logging.Audit(r.Context(), "webhook_received", "ok", slog.String("message_sid", msg.MessageSID))

	reply, err := h.Inbound.HandleMessage(r.Context(), msg.From, msg.Body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeTwiML(w, reply)
}

// webhookURL reconstructs the URL the provider signed. Behind a proxy the
// request's own Host and scheme are the proxy's, so the configured public
// base wins when set.
func (h API) webhookURL(r *http.Request) string {
	if h.PublicBaseURL != "" {
		return strings.TrimRight(h.PublicBaseURL, "/") + r.URL.Path
	}
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.Path
}

// writeForbidden rejects an unverified webhook with a deliberately bare 403.
// The reason goes to the audit log only; the response never explains which
// check failed.
func writeForbidden(w http.ResponseWriter, r *http.Request, reason string) {
	logging.Audit(r.Context(), "webhook_rejected", "fail", slog.String("reason", reason))
	w.WriteHeader(http.StatusForbidden)
}

func writeTwiML(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(w).Encode(twimlResponse{Message: message})
}
