package processor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"cvewatch/internal/feed"
	"cvewatch/internal/metrics"
	"cvewatch/internal/state"
)

type fakeSource struct {
	name      string
	items     []feed.Advisory
	err       error
	lastSince time.Time
}

func (f *fakeSource) Name() string {
	return f.name
}

func (f *fakeSource) Fetch(_ context.Context, since time.Time) ([]feed.Advisory, error) {
	f.lastSince = since
	return f.items, f.err
}

type fakeDispatcher struct {
	fail       bool
	dispatched []string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, adv feed.Advisory) error {
	f.dispatched = append(f.dispatched, adv.ID)
	if f.fail {
		return fmt.Errorf("webhook unavailable")
	}
	return nil
}

type recordedAdvisory struct {
	id   string
	sent bool
}

type fakeObserver struct {
	seen []recordedAdvisory
}

func (f *fakeObserver) AdvisoryProcessed(_ context.Context, adv feed.Advisory, sent bool) {
	f.seen = append(f.seen, recordedAdvisory{id: adv.ID, sent: sent})
}

func TestProcessor_ProcessSource_DeduplicatesAndCounts(t *testing.T) {
	src := &fakeSource{
		name: feed.SourceKubernetes,
		items: []feed.Advisory{
			{ID: "CVE-2024-0001", Score: 8.0, Source: feed.SourceKubernetes},
			{ID: "CVE-2024-0002", Score: 9.5, Source: feed.SourceKubernetes},
		},
	}
	dispatcher := &fakeDispatcher{}
	st := state.NewRunState(time.Now())
	st.MarkSeen("CVE-2024-0001")

	res := New(dispatcher, metrics.NewNoOp()).ProcessSource(context.Background(), src, st)

	if res.Sent != 1 {
		t.Errorf("Sent = %d, want 1", res.Sent)
	}
	if res.Critical != 1 {
		t.Errorf("Critical = %d, want 1", res.Critical)
	}
	if len(dispatcher.dispatched) != 1 || dispatcher.dispatched[0] != "CVE-2024-0002" {
		t.Errorf("dispatched = %v, want [CVE-2024-0002]", dispatcher.dispatched)
	}
	if !st.Seen("CVE-2024-0001") || !st.Seen("CVE-2024-0002") {
		t.Error("processed set should contain both IDs")
	}
	if st.ProcessedCount() != 2 {
		t.Errorf("ProcessedCount() = %d, want 2", st.ProcessedCount())
	}
}

func TestProcessor_ProcessSource_Idempotent(t *testing.T) {
	src := &fakeSource{
		name: feed.SourceRedHat,
		items: []feed.Advisory{
			{ID: "CVE-2024-1001", Score: 9.8, Source: feed.SourceRedHat},
			{ID: "CVE-2024-1002", Score: 5.0, Source: feed.SourceRedHat},
		},
	}
	dispatcher := &fakeDispatcher{}
	st := state.NewRunState(time.Now())
	proc := New(dispatcher, metrics.NewNoOp())
	ctx := context.Background()

	first := proc.ProcessSource(ctx, src, st)
	if first.Sent != 2 {
		t.Fatalf("first run Sent = %d, want 2", first.Sent)
	}

	second := proc.ProcessSource(ctx, src, st)
	if second.Sent != 0 || second.Critical != 0 {
		t.Errorf("second run = %+v, want zero counts", second)
	}
	if len(dispatcher.dispatched) != 2 {
		t.Errorf("total dispatches = %d, want 2", len(dispatcher.dispatched))
	}
}

func TestProcessor_ProcessSource_FailedDispatchStillMarks(t *testing.T) {
	src := &fakeSource{
		name: feed.SourceKubernetes,
		items: []feed.Advisory{
			{ID: "CVE-2024-0003", Score: 9.1, Source: feed.SourceKubernetes},
		},
	}
	dispatcher := &fakeDispatcher{fail: true}
	observer := &fakeObserver{}
	st := state.NewRunState(time.Now())

	res := New(dispatcher, metrics.NewNoOp(), observer).ProcessSource(context.Background(), src, st)

	// At-most-once: the ID is marked and counted even though delivery failed.
	if res.Sent != 1 {
		t.Errorf("Sent = %d, want 1", res.Sent)
	}
	if res.Critical != 1 {
		t.Errorf("Critical = %d, want 1", res.Critical)
	}
	if !st.Seen("CVE-2024-0003") {
		t.Error("failed dispatch should still mark the ID as processed")
	}
	if len(observer.seen) != 1 || observer.seen[0].sent {
		t.Errorf("observer saw %+v, want one record with sent=false", observer.seen)
	}
}

func TestProcessor_ProcessSource_FetchError(t *testing.T) {
	src := &fakeSource{
		name: feed.SourceRedHat,
		err:  fmt.Errorf("connection refused"),
	}
	dispatcher := &fakeDispatcher{}
	st := state.NewRunState(time.Now())

	res := New(dispatcher, metrics.NewNoOp()).ProcessSource(context.Background(), src, st)

	if res.Sent != 0 || res.Critical != 0 {
		t.Errorf("result = %+v, want zero counts on fetch failure", res)
	}
	if len(dispatcher.dispatched) != 0 {
		t.Errorf("dispatched = %v, want none", dispatcher.dispatched)
	}
}

func TestProcessor_ProcessSource_PassesSinceBoundary(t *testing.T) {
	lastCheck := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{name: feed.SourceKubernetes}
	st := state.NewRunState(lastCheck)

	New(&fakeDispatcher{}, metrics.NewNoOp()).ProcessSource(context.Background(), src, st)

	if !src.lastSince.Equal(lastCheck) {
		t.Errorf("Fetch since = %v, want %v", src.lastSince, lastCheck)
	}
}

func TestProcessor_ProcessSource_ObserverSeesSuccess(t *testing.T) {
	src := &fakeSource{
		name:  feed.SourceKubernetes,
		items: []feed.Advisory{{ID: "CVE-2024-0004", Score: 3.0, Source: feed.SourceKubernetes}},
	}
	observer := &fakeObserver{}
	st := state.NewRunState(time.Now())

	New(&fakeDispatcher{}, metrics.NewNoOp(), observer).ProcessSource(context.Background(), src, st)

	if len(observer.seen) != 1 {
		t.Fatalf("observer saw %d records, want 1", len(observer.seen))
	}
	if observer.seen[0].id != "CVE-2024-0004" || !observer.seen[0].sent {
		t.Errorf("observer record = %+v, want CVE-2024-0004 with sent=true", observer.seen[0])
	}
}
