package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// fileState is the on-disk JSON representation of the run state.
type fileState struct {
	LastCheckTimeUTCISO string   `json:"last_check_time_utc_iso"`
	ProcessedIDs        []string `json:"processed_ids"`
}

// FileStore persists run state to a single JSON file. The file has one
// writer and is rewritten wholesale each cycle, so no locking is needed.
type FileStore struct {
	path     string
	lookback time.Duration
	now      func() time.Time
}

// NewFileStore creates a file-backed state store. The lookback is the
// default window used when no usable state exists.
func NewFileStore(path string, lookback time.Duration) *FileStore {
	return &FileStore{
		path:     path,
		lookback: lookback,
		now:      time.Now,
	}
}

// Load reads and parses the state file. A missing, corrupted, or otherwise
// unreadable file is a recovery path, not an error: the default state is
// returned and the condition is logged.
func (f *FileStore) Load(_ context.Context) *RunState {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("State file not found, using default lookback",
				"path", f.path,
				"lookback", f.lookback,
			)
		} else {
			slog.Warn("Failed to read state file, using default lookback",
				"path", f.path,
				"error", err,
			)
		}
		return f.defaultState()
	}

	var stored fileState
	if err := json.Unmarshal(data, &stored); err != nil {
		slog.Warn("State file is corrupted, using default lookback",
			"path", f.path,
			"error", err,
		)
		return f.defaultState()
	}

	lastCheck, err := time.Parse(time.RFC3339, stored.LastCheckTimeUTCISO)
	if err != nil {
		slog.Warn("State file has unparseable last-check time, using default lookback",
			"path", f.path,
			"last_check_time_utc_iso", stored.LastCheckTimeUTCISO,
			"error", err,
		)
		return f.defaultState()
	}

	st := NewRunState(lastCheck)
	for _, id := range stored.ProcessedIDs {
		st.MarkSeen(id)
	}

	slog.Info("Loaded run state",
		"path", f.path,
		"last_check", st.LastCheck.Format(time.RFC3339),
		"processed_ids", st.ProcessedCount(),
	)
	return st
}

// Save serializes the run state and atomically replaces the state file.
func (f *FileStore) Save(_ context.Context, st *RunState) error {
	payload := fileState{
		LastCheckTimeUTCISO: st.LastCheck.UTC().Format(time.RFC3339),
		ProcessedIDs:        st.IDs(),
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	slog.Debug("Saved run state",
		"path", f.path,
		"processed_ids", st.ProcessedCount(),
	)
	return nil
}

func (f *FileStore) defaultState() *RunState {
	return NewRunState(f.now().UTC().Add(-f.lookback))
}
