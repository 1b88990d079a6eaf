package email

import (
	"context"
	"strings"
	"testing"
	"time"

	"cvewatch/internal/feed"
	"cvewatch/internal/sender/email/provider"
)

type captureProvider struct {
	req *provider.EmailRequest
}

func (c *captureProvider) Name() string       { return "capture" }
func (c *captureProvider) IsConfigured() bool { return true }

func (c *captureProvider) Send(_ context.Context, req *provider.EmailRequest) error {
	c.req = req
	return nil
}

func testAdvisory() feed.Advisory {
	return feed.Advisory{
		ID:          "CVE-2024-0002",
		Description: "A serious flaw.",
		Score:       9.5,
		Published:   time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC),
		URL:         "https://example.com/CVE-2024-0002",
		Source:      feed.SourceKubernetes,
	}
}

func TestSender_Send(t *testing.T) {
	capture := &captureProvider{}
	registry := provider.NewRegistry()
	registry.Register(capture)

	s := NewSenderWithRegistry(registry, "alerts@example.com", "oncall@example.com, security@example.com")
	if s.Name() != "email" {
		t.Errorf("Name() = %q, want email", s.Name())
	}

	if err := s.Send(context.Background(), testAdvisory()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if capture.req == nil {
		t.Fatal("provider was not invoked")
	}
	if capture.req.From != "alerts@example.com" {
		t.Errorf("From = %q", capture.req.From)
	}
	if len(capture.req.To) != 2 {
		t.Errorf("To = %v, want both recipients", capture.req.To)
	}
	if !strings.Contains(capture.req.Subject, "CVE-2024-0002") {
		t.Errorf("Subject = %q, want CVE ID", capture.req.Subject)
	}
	if !strings.Contains(capture.req.Body, "Critical") {
		t.Errorf("Body missing severity:\n%s", capture.req.Body)
	}
}

func TestSender_Send_InvalidRecipients(t *testing.T) {
	registry := provider.NewRegistry()
	registry.Register(&captureProvider{})

	tests := []struct {
		name string
		to   string
	}{
		{name: "empty recipient list", to: ""},
		{name: "missing @ symbol", to: "oncall.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSenderWithRegistry(registry, "alerts@example.com", tt.to)
			if err := s.Send(context.Background(), testAdvisory()); err == nil {
				t.Error("Send() error = nil, want validation error")
			}
		})
	}
}
