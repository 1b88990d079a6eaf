package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"
)

// scoreVectorPlaceholder stands in for the CVSS vector, which the Kubernetes
// feed does not supply.
const scoreVectorPlaceholder = "N/A"

// scorePattern matches the score embedded in the feed's free-text content,
// e.g. "CVSS Rating: Score: 8.8".
var scorePattern = regexp.MustCompile(`(?i)Score:\s*(\d{1,2}\.\d)`)

// ExtractScore scans free text for an embedded CVSS score and returns the
// first match. The regex survives minor feed-format drift better than
// positional parsing would; a missing or unparseable match yields zero.
func ExtractScore(text string) (float64, string) {
	m := scorePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, scoreVectorPlaceholder
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		slog.Warn("Could not parse extracted score", "match", m[1], "error", err)
		return 0, scoreVectorPlaceholder
	}
	return score, scoreVectorPlaceholder
}

// KubernetesSource fetches advisories from the official Kubernetes CVE feed.
type KubernetesSource struct {
	url        string
	httpClient *http.Client
}

// NewKubernetesSource creates a source adapter for the Kubernetes CVE feed.
func NewKubernetesSource(url string) *KubernetesSource {
	return &KubernetesSource{
		url:        url,
		httpClient: newFetchClient(),
	}
}

// Name returns the source display name.
func (s *KubernetesSource) Name() string {
	return SourceKubernetes
}

type kubernetesFeed struct {
	Items []kubernetesItem `json:"items"`
}

type kubernetesItem struct {
	ID            string `json:"id"`
	Summary       string `json:"summary"`
	ContentText   string `json:"content_text"`
	DatePublished string `json:"date_published"`
	ExternalURL   string `json:"external_url"`
	URL           string `json:"url"`
}

// Fetch retrieves the feed and returns the two most recently published
// advisories. The feed offers no server-side date filtering, so the since
// boundary is ignored and the cap alone limits alert volume.
func (s *KubernetesSource) Fetch(ctx context.Context, _ time.Time) ([]Advisory, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build Kubernetes feed request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Kubernetes feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Kubernetes feed returned status %d", resp.StatusCode)
	}

	var payload kubernetesFeed
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode Kubernetes feed: %w", err)
	}

	advisories := make([]Advisory, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.ID == "" {
			continue
		}
		published, err := time.Parse(time.RFC3339, item.DatePublished)
		if err != nil {
			slog.Warn("Skipping Kubernetes item with unparseable publish date",
				"id", item.ID,
				"date_published", item.DatePublished,
			)
			continue
		}

		score, _ := ExtractScore(item.ContentText)

		detailsURL := item.ExternalURL
		if detailsURL == "" {
			detailsURL = item.URL
		}

		description := item.Summary
		if description == "" {
			description = "No description provided."
		}

		advisories = append(advisories, Advisory{
			ID:          item.ID,
			Title:       fmt.Sprintf("Kubernetes Vulnerability: %s", item.ID),
			Description: description,
			Score:       score,
			Published:   published.UTC(),
			URL:         detailsURL,
			Source:      SourceKubernetes,
		})
	}

	slog.Debug("Fetched Kubernetes feed",
		"total_items", len(payload.Items),
		"usable_items", len(advisories),
	)

	return latest(advisories, maxPerCycle), nil
}
