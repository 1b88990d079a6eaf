// Package payload builds notification payloads for the alert channels.
package payload

import (
	"fmt"
	"strings"

	"cvewatch/internal/feed"
	"cvewatch/internal/severity"
)

const (
	// descriptionLimit caps the description shown in the card body.
	descriptionLimit = 250

	criticalScore = 9.0

	// criticalAlertTag marks a card for downstream critical-alert routing.
	criticalAlertTag = "critical_vulnerability"
)

// MessageCard is the legacy Office 365 connector card posted to the chat
// webhook.
type MessageCard struct {
	Type       string    `json:"@type"`
	Context    string    `json:"@context"`
	ThemeColor string    `json:"themeColor"`
	Summary    string    `json:"summary"`
	Title      string    `json:"title"`
	Sections   []Section `json:"sections"`
	// PrometheusAlertTag is set only for critical advisories.
	PrometheusAlertTag string `json:"prometheus_alert_tag,omitempty"`
}

// Section is a content block within a message card.
type Section struct {
	ActivityTitle    string `json:"activityTitle"`
	ActivitySubtitle string `json:"activitySubtitle"`
	Facts            []Fact `json:"facts"`
	Markdown         bool   `json:"markdown"`
}

// Fact is a name/value pair rendered in the card's facts table.
type Fact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DisplayScore renders a score for human consumption. Zero means the source
// supplied none.
func DisplayScore(score float64) string {
	if score <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", score)
}

// BuildMessageCard renders an advisory as a color-coded message card.
func BuildMessageCard(adv feed.Advisory) MessageCard {
	class := severity.Classify(adv.Score)
	display := DisplayScore(adv.Score)

	facts := []Fact{
		{Name: "CVE ID:", Value: adv.ID},
		{Name: "CVSS Score:", Value: fmt.Sprintf("**%s** (%s)", display, class.Label)},
	}
	if !adv.Published.IsZero() {
		facts = append(facts, Fact{Name: "Published:", Value: adv.Published.Format("2006-01-02")})
	}
	facts = append(facts,
		Fact{Name: "Source:", Value: adv.Source},
		Fact{Name: "More Details:", Value: fmt.Sprintf("[View details](%s)", adv.URL)},
	)

	card := MessageCard{
		Type:    "MessageCard",
		Context: "http://schema.org/extensions",
		// The card schema wants a bare hex color.
		ThemeColor: strings.TrimPrefix(class.Color, "#"),
		Summary:    fmt.Sprintf("Vulnerability %s (%s - Score: %s)", adv.ID, class.Label, display),
		Title:      fmt.Sprintf("🚨 Vulnerability Alert (%s) - %s: %s", class.Label, adv.Source, adv.ID),
		Sections: []Section{
			{
				ActivityTitle:    "Vulnerability Description:",
				ActivitySubtitle: truncate(adv.Description, descriptionLimit),
				Facts:            facts,
				Markdown:         true,
			},
		},
	}

	if adv.Score >= criticalScore {
		card.PrometheusAlertTag = criticalAlertTag
	}

	return card
}

// EmailPayload represents email message content.
type EmailPayload struct {
	Subject string
	Body    string
}

// BuildEmailPayload builds a plain-text email rendering of an advisory.
func BuildEmailPayload(adv feed.Advisory) EmailPayload {
	class := severity.Classify(adv.Score)

	var sb strings.Builder
	sb.WriteString("Vulnerability Alert\n")
	sb.WriteString("===================\n\n")
	sb.WriteString(fmt.Sprintf("CVE ID: %s\n", adv.ID))
	sb.WriteString(fmt.Sprintf("Severity: %s\n", class.Label))
	sb.WriteString(fmt.Sprintf("CVSS Score: %s\n", DisplayScore(adv.Score)))
	sb.WriteString(fmt.Sprintf("Source: %s\n", adv.Source))
	if !adv.Published.IsZero() {
		sb.WriteString(fmt.Sprintf("Published: %s\n", adv.Published.Format("2006-01-02")))
	}
	sb.WriteString(fmt.Sprintf("Details: %s\n", adv.URL))
	sb.WriteString("\n")
	sb.WriteString(truncate(adv.Description, descriptionLimit))
	sb.WriteString("\n")

	return EmailPayload{
		Subject: fmt.Sprintf("Vulnerability Alert (%s): %s", class.Label, adv.ID),
		Body:    sb.String(),
	}
}

// truncate limits s to limit runes, appending an ellipsis when cut.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
