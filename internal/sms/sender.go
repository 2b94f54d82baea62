// Package sms sends outbound messages through the provider's REST API.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sender delivers one message to one destination. Implementations must not
// put the destination number into returned errors; callers log errors, and
// phone numbers stay out of logs.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// TwilioSender posts to the Twilio Messages endpoint with basic auth.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *http.Client
}

func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    "https://api.twilio.com",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// SetBaseURL overrides the API host, for tests.
func (s *TwilioSender) SetBaseURL(base string) {
	s.baseURL = strings.TrimRight(base, "/")
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms: send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Surface the provider's error message but never the destination.
	var apiErr struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("sms: provider error %d: %s", apiErr.Code, apiErr.Message)
	}
	return fmt.Errorf("sms: provider returned status %d", resp.StatusCode)
}

// Disabled is the Sender used when no provider credentials are configured.
// Sends succeed silently so inbound handling still works end to end; the
// reply still reaches the sender inline via the webhook response.
type Disabled struct{}

func (Disabled) Send(ctx context.Context, to, body string) error {
	return nil
}
