package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRunState_SeenAndMarkSeen(t *testing.T) {
	st := NewRunState(time.Now())

	if st.Seen("CVE-2024-0001") {
		t.Error("Seen() = true for unmarked ID")
	}

	st.MarkSeen("CVE-2024-0001")
	if !st.Seen("CVE-2024-0001") {
		t.Error("Seen() = false after MarkSeen()")
	}

	// Duplicate marks must not grow the set.
	st.MarkSeen("CVE-2024-0001")
	if st.ProcessedCount() != 1 {
		t.Errorf("ProcessedCount() = %d, want 1", st.ProcessedCount())
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_run_state.json")
	store := NewFileStore(path, time.Hour)
	ctx := context.Background()

	lastCheck := time.Date(2024, 5, 10, 15, 30, 45, 0, time.UTC)
	st := NewRunState(lastCheck)
	st.MarkSeen("CVE-2024-0002")
	st.MarkSeen("CVE-2024-0001")

	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded := store.Load(ctx)
	if !loaded.LastCheck.Equal(lastCheck) {
		t.Errorf("Load() last check = %v, want %v", loaded.LastCheck, lastCheck)
	}
	if loaded.ProcessedCount() != 2 {
		t.Errorf("Load() processed count = %d, want 2", loaded.ProcessedCount())
	}
	for _, id := range []string{"CVE-2024-0001", "CVE-2024-0002"} {
		if !loaded.Seen(id) {
			t.Errorf("Load() missing processed ID %s", id)
		}
	}
}

func TestFileStore_RoundTrip_SecondPrecision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewFileStore(path, time.Hour)
	ctx := context.Background()

	// Sub-second precision is allowed to be lost, nothing more.
	lastCheck := time.Date(2024, 5, 10, 15, 30, 45, 123456789, time.UTC)
	st := NewRunState(lastCheck)
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded := store.Load(ctx)
	diff := lastCheck.Sub(loaded.LastCheck)
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Errorf("Load() last check drifted by %v, want < 1s", diff)
	}
}

func TestFileStore_Load_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	store := NewFileStore(path, 2*time.Hour)

	before := time.Now().UTC().Add(-2 * time.Hour)
	loaded := store.Load(context.Background())
	after := time.Now().UTC().Add(-2 * time.Hour)

	if loaded.ProcessedCount() != 0 {
		t.Errorf("Load() processed count = %d, want 0", loaded.ProcessedCount())
	}
	if loaded.LastCheck.Before(before.Add(-5*time.Second)) || loaded.LastCheck.After(after.Add(5*time.Second)) {
		t.Errorf("Load() last check = %v, want approximately now - 2h", loaded.LastCheck)
	}
}

func TestFileStore_Load_CorruptedFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not JSON", content: `{{{{`},
		{name: "wrong shape", content: `[1, 2, 3]`},
		{name: "bad timestamp", content: `{"last_check_time_utc_iso":"yesterday","processed_ids":["CVE-2024-0001"]}`},
		{name: "empty file", content: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			store := NewFileStore(path, time.Hour)
			loaded := store.Load(context.Background())

			if loaded.ProcessedCount() != 0 {
				t.Errorf("Load() processed count = %d, want 0", loaded.ProcessedCount())
			}

			want := time.Now().UTC().Add(-time.Hour)
			diff := want.Sub(loaded.LastCheck)
			if diff < 0 {
				diff = -diff
			}
			if diff > 5*time.Second {
				t.Errorf("Load() last check = %v, want approximately %v", loaded.LastCheck, want)
			}
		})
	}
}

func TestFileStore_Save_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewFileStore(path, time.Hour)
	ctx := context.Background()

	first := NewRunState(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	first.MarkSeen("CVE-2024-0001")
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	second := NewRunState(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))
	second.MarkSeen("CVE-2024-0001")
	second.MarkSeen("CVE-2024-0002")
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded := store.Load(ctx)
	if loaded.ProcessedCount() != 2 {
		t.Errorf("Load() processed count = %d, want 2", loaded.ProcessedCount())
	}
	if !loaded.LastCheck.Equal(second.LastCheck) {
		t.Errorf("Load() last check = %v, want %v", loaded.LastCheck, second.LastCheck)
	}
}

func TestFileStore_Save_UnwritablePath(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing-dir", "state.json"), time.Hour)
	if err := store.Save(context.Background(), NewRunState(time.Now())); err == nil {
		t.Error("Save() error = nil, want error for unwritable path")
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	ctx := context.Background()
	client, err := ConnectRedis(ctx, addr)
	if err != nil {
		t.Skipf("Skipping Redis test: Redis not available: %v", err)
	}
	defer client.Close()
	defer client.Del(ctx, redisLastCheckKey, redisProcessedKey)

	store := NewRedisStore(client, time.Hour)

	st := NewRunState(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC))
	st.MarkSeen("CVE-2024-0001")
	if err := store.Save(ctx, st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded := store.Load(ctx)
	if !loaded.LastCheck.Equal(st.LastCheck) {
		t.Errorf("Load() last check = %v, want %v", loaded.LastCheck, st.LastCheck)
	}
	if !loaded.Seen("CVE-2024-0001") {
		t.Error("Load() missing processed ID CVE-2024-0001")
	}
}
