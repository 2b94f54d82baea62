// Package extract defines the text-to-structured-fields oracle consumed by
// the inbound message flow. The oracle is best-effort and untrusted: its
// output goes through the same phone normalization and validation gates as
// anything a human typed.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fields is what the oracle could recover from free text. Empty string means
// the field was not found; the caller decides what that means.
type Fields struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Context string `json:"context"`
}

// Extractor is deliberately one method wide. Anything that can turn free
// text into fields plugs in here; tests use a func adapter.
type Extractor interface {
	Extract(ctx context.Context, freeText string) (Fields, error)
}

// Func adapts a function to the Extractor interface.
type Func func(ctx context.Context, freeText string) (Fields, error)

func (f Func) Extract(ctx context.Context, freeText string) (Fields, error) {
	return f(ctx, freeText)
}

// HTTPExtractor calls an external extraction endpoint with a JSON body
// {"text": ...} and expects Fields back.
type HTTPExtractor struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPExtractor(endpoint, apiKey string) *HTTPExtractor {
	return &HTTPExtractor{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (e *HTTPExtractor) Extract(ctx context.Context, freeText string) (Fields, error) {
	payload, err := json.Marshal(map[string]string{"text": freeText})
	if err != nil {
		return Fields{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Fields{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return Fields{}, fmt.Errorf("extract: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain a bounded amount so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return Fields{}, fmt.Errorf("extract: endpoint returned %d", resp.StatusCode)
	}

	var fields Fields
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&fields); err != nil {
		return Fields{}, fmt.Errorf("extract: decode response: %w", err)
	}
	return fields, nil
}
