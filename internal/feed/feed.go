// Package feed defines the normalized advisory model and the source adapters
// that fetch vulnerability records from the external feeds.
package feed

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// Source display names, used as metric label values and in alert payloads.
const (
	SourceKubernetes = "Kubernetes Official CVE Feed"
	SourceRedHat     = "Red Hat (OpenShift)"
)

// maxPerCycle caps how many advisories a source may yield per cycle. This is
// a deliberate rate limit against webhook flooding, not a completeness
// guarantee.
const maxPerCycle = 2

const fetchTimeout = 30 * time.Second

// Advisory is the normalized record shared by all sources. Only its ID
// survives beyond the cycle that fetched it.
type Advisory struct {
	ID          string
	Title       string
	Description string
	Score       float64 // 0 when the source supplied no usable score
	Published   time.Time
	URL         string
	Source      string
}

// Source fetches candidate advisories published since the given boundary.
// Implementations apply their own time-window and top-N policy; a returned
// error means the cycle proceeds with zero items from this source.
type Source interface {
	Name() string
	Fetch(ctx context.Context, since time.Time) ([]Advisory, error)
}

func newFetchClient() *http.Client {
	return &http.Client{Timeout: fetchTimeout}
}

// latest sorts advisories by publish date descending and returns at most n.
// Ties on identical publish dates break by ID descending so the selection is
// deterministic across fetches.
func latest(items []Advisory, n int) []Advisory {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Published.Equal(items[j].Published) {
			return items[i].Published.After(items[j].Published)
		}
		return items[i].ID > items[j].ID
	})
	if len(items) > n {
		items = items[:n]
	}
	return items
}
