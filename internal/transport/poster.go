package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"sentinel/internal/models"
)

// Poster delivers a single event.
type Poster interface {
	Post(ctx context.Context, event *models.SecurityEvent) error
}

// Envelope is the legacy violation-report body the ingest endpoint accepts.
type Envelope struct {
	CSPReport *models.SecurityEvent `json:"csp-report"`
}

// HTTPPoster posts events to the ingest endpoint wrapped in an Envelope.
type HTTPPoster struct {
	endpoint string
	client   *http.Client
}

// NewHTTPPoster creates a poster for endpoint. A nil client uses http.DefaultClient.
func NewHTTPPoster(endpoint string, client *http.Client) *HTTPPoster {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPPoster{endpoint: endpoint, client: client}
}

func (p *HTTPPoster) Post(ctx context.Context, event *models.SecurityEvent) error {
	body, err := json.Marshal(Envelope{CSPReport: event})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/csp-report")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post event: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("ingest endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
