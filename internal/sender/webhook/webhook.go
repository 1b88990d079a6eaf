// Package webhook delivers alerts to a chat webhook via HTTP POST.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cvewatch/internal/feed"
	"cvewatch/internal/sender/payload"
	"cvewatch/internal/severity"
)

// Sender posts message cards to a configured webhook URL.
type Sender struct {
	url        string
	httpClient *http.Client
}

// NewSender creates a webhook sender. An empty or invalid URL is allowed at
// construction time; Send degrades to a reported failure so a misconfigured
// webhook never crashes the loop.
func NewSender(url string) *Sender {
	return &Sender{
		url: url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the channel name.
func (s *Sender) Name() string {
	return "webhook"
}

// IsValidURL checks if a string is a valid HTTP/HTTPS URL.
func IsValidURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Send posts the advisory's message card to the webhook. A non-2xx response
// counts as a failure; the response body is not consumed beyond the status.
func (s *Sender) Send(ctx context.Context, adv feed.Advisory) error {
	if s.url == "" {
		return fmt.Errorf("webhook URL is not configured")
	}
	if !IsValidURL(s.url) {
		return fmt.Errorf("invalid webhook URL: %q (must be a valid HTTP/HTTPS URL)", s.url)
	}

	card := payload.BuildMessageCard(adv)

	jsonData, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	slog.Info("Sent webhook alert",
		"cve_id", adv.ID,
		"severity", severity.Classify(adv.Score).Label,
		"source", adv.Source,
	)
	return nil
}
