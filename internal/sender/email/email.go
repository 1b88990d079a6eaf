// Package email provides an optional email alert channel backed by a
// provider registry (Resend primary, SES fallback).
package email

import (
	"context"
	"fmt"
	"strings"

	"cvewatch/internal/feed"
	"cvewatch/internal/sender/email/provider"
	"cvewatch/internal/sender/payload"
)

// Sender delivers advisory alerts by email.
type Sender struct {
	registry   *provider.Registry
	from       string
	recipients []string
}

// NewSender creates an email sender for the given comma-separated recipient
// list. Providers that lack credentials register as unconfigured and are
// skipped at send time.
func NewSender(from, to string) *Sender {
	registry := provider.NewRegistry()
	registry.Register(provider.NewResendProvider())
	registry.Register(provider.NewSESProvider())

	// Best effort: both names were just registered.
	_ = registry.SetPrimary("resend")
	_ = registry.SetFallback("ses")

	return &Sender{
		registry:   registry,
		from:       from,
		recipients: parseRecipients(to),
	}
}

// NewSenderWithRegistry creates an email sender with a custom registry.
// Useful for tests.
func NewSenderWithRegistry(registry *provider.Registry, from, to string) *Sender {
	return &Sender{
		registry:   registry,
		from:       from,
		recipients: parseRecipients(to),
	}
}

// Name returns the channel name.
func (s *Sender) Name() string {
	return "email"
}

// Send delivers the advisory as a plain-text email.
func (s *Sender) Send(ctx context.Context, adv feed.Advisory) error {
	if len(s.recipients) == 0 {
		return fmt.Errorf("no valid email recipients configured")
	}
	for _, recipient := range s.recipients {
		if !strings.Contains(recipient, "@") {
			return fmt.Errorf("invalid email address format: %q (missing @ symbol)", recipient)
		}
	}

	emailPayload := payload.BuildEmailPayload(adv)

	req := &provider.EmailRequest{
		From:    s.from,
		To:      s.recipients,
		Subject: emailPayload.Subject,
		Body:    emailPayload.Body,
	}

	if err := s.registry.Send(ctx, req); err != nil {
		return fmt.Errorf("failed to send email alert: %w", err)
	}
	return nil
}

// parseRecipients splits a comma-separated recipient list, dropping empties.
func parseRecipients(value string) []string {
	parts := strings.Split(value, ",")
	recipients := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			recipients = append(recipients, trimmed)
		}
	}
	return recipients
}
