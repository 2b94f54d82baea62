package webhook

import (
	"net/url"
	"strings"
)

// InboundMessage is the subset of the provider's webhook form this service
// consumes. It lives for one request and is never persisted.
type InboundMessage struct {
	MessageSID string
	AccountSID string
	From       string
	To         string
	Body       string
}

// ParseInbound extracts an inbound message from decoded form parameters.
func ParseInbound(params url.Values) InboundMessage {
	return InboundMessage{
		MessageSID: params.Get("MessageSid"),
		AccountSID: params.Get("AccountSid"),
		From:       strings.TrimSpace(params.Get("From")),
		To:         strings.TrimSpace(params.Get("To")),
		Body:       strings.TrimSpace(params.Get("Body")),
	}
}
