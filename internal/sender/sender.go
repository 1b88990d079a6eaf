// Package sender coordinates alert delivery across the configured channels.
package sender

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cvewatch/internal/feed"
)

// AlertSender is implemented by each delivery channel.
type AlertSender interface {
	// Name returns the channel name (e.g. "webhook", "email").
	Name() string

	// Send delivers a formatted alert for the advisory.
	Send(ctx context.Context, adv feed.Advisory) error
}

// Sender fans an advisory out to every registered channel. Delivery is
// at-most-once: failures are reported to the caller but never retried, so a
// persistently failing endpoint cannot cause repeat-spam.
type Sender struct {
	channels []AlertSender
}

// NewSender creates a dispatch coordinator over the given channels.
func NewSender(channels ...AlertSender) *Sender {
	return &Sender{channels: channels}
}

// Dispatch sends the advisory on every channel. It returns an error only
// when no channel succeeded.
func (s *Sender) Dispatch(ctx context.Context, adv feed.Advisory) error {
	if len(s.channels) == 0 {
		return fmt.Errorf("no alert channels configured")
	}

	var failures []string
	successful := 0

	for _, ch := range s.channels {
		if err := ch.Send(ctx, adv); err != nil {
			slog.Error("Alert channel delivery failed",
				"channel", ch.Name(),
				"cve_id", adv.ID,
				"error", err,
			)
			failures = append(failures, fmt.Sprintf("%s: %s", ch.Name(), err.Error()))
			continue
		}
		successful++
	}

	if successful == 0 {
		return fmt.Errorf("all channels failed: %s", strings.Join(failures, "; "))
	}

	if len(failures) > 0 {
		slog.Warn("Some alert channels failed",
			"cve_id", adv.ID,
			"successful", successful,
			"failed", len(failures),
		)
	}

	return nil
}
