package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// RedHatSource fetches advisories from the Red Hat security data API.
type RedHatSource struct {
	url        string
	httpClient *http.Client
}

// NewRedHatSource creates a source adapter for the Red Hat security data API.
func NewRedHatSource(url string) *RedHatSource {
	return &RedHatSource{
		url:        url,
		httpClient: newFetchClient(),
	}
}

// Name returns the source display name.
func (s *RedHatSource) Name() string {
	return SourceRedHat
}

// cvssScore tolerates the API's habit of returning cvss3_score as either a
// JSON number or a quoted string. Absent or malformed values decode to zero.
type cvssScore float64

func (c *cvssScore) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*c = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*c = 0
		return nil
	}
	*c = cvssScore(f)
	return nil
}

type redhatCVE struct {
	CVE                 string    `json:"CVE"`
	BugzillaDescription string    `json:"bugzilla_description"`
	Description         string    `json:"description"`
	Cvss3Score          cvssScore `json:"cvss3_score"`
	PublicDate          string    `json:"public_date"`
	ResourceURL         string    `json:"resource_url"`
}

// Fetch queries the API with a server-side date filter and returns the two
// most recently published advisories at or after the since boundary. The
// query goes one day further back than since: the API's "after" filter is
// day-granular and would otherwise drop same-day advisories. The server's
// ordering is not trusted; results are re-sorted client side.
func (s *RedHatSource) Fetch(ctx context.Context, since time.Time) ([]Advisory, error) {
	after := since.AddDate(0, 0, -1).Format("2006-01-02")

	endpoint, err := url.Parse(s.url)
	if err != nil {
		return nil, fmt.Errorf("invalid Red Hat API URL: %w", err)
	}
	query := endpoint.Query()
	query.Set("after", after)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build Red Hat API request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Red Hat API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Red Hat API returned status %d", resp.StatusCode)
	}

	var items []redhatCVE
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode Red Hat API response: %w", err)
	}

	advisories := make([]Advisory, 0, len(items))
	for _, item := range items {
		if item.CVE == "" {
			continue
		}
		published, err := time.Parse(time.RFC3339, item.PublicDate)
		if err != nil {
			slog.Warn("Skipping Red Hat item with unparseable publish date",
				"cve", item.CVE,
				"public_date", item.PublicDate,
			)
			continue
		}
		if published.UTC().Before(since) {
			continue
		}

		description := item.BugzillaDescription
		if description == "" {
			description = item.Description
		}
		if description == "" {
			description = "No description provided."
		}

		detailsURL := item.ResourceURL
		if detailsURL == "" {
			detailsURL = fmt.Sprintf("https://access.redhat.com/security/cve/%s", item.CVE)
		}

		advisories = append(advisories, Advisory{
			ID:          item.CVE,
			Title:       fmt.Sprintf("OpenShift Vulnerability: %s", item.CVE),
			Description: description,
			Score:       float64(item.Cvss3Score),
			Published:   published.UTC(),
			URL:         detailsURL,
			Source:      SourceRedHat,
		})
	}

	slog.Debug("Fetched Red Hat API",
		"after", after,
		"total_items", len(items),
		"new_items", len(advisories),
	)

	return latest(advisories, maxPerCycle), nil
}
