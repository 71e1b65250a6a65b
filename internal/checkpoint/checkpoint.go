// Package checkpoint persists batch-fetch progress between runs so an
// interrupted run can resume where it left off.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Bucket is the terminal tally a processed work item lands in.
type Bucket string

const (
	BucketSucceeded       Bucket = "succeeded"
	BucketFailed          Bucket = "failed"
	BucketSkippedExisting Bucket = "skipped_existing"
)

// Stats are the per-outcome tallies. Their sum always equals the number of
// processed identifiers.
type Stats struct {
	Succeeded       int `json:"successfully_downloaded"`
	Failed          int `json:"download_failed"`
	SkippedExisting int `json:"skipped_existing"`
}

// Total is the count of items that reached a terminal state.
func (s Stats) Total() int {
	return s.Succeeded + s.Failed + s.SkippedExisting
}

// SuccessRate is the fraction of processed items that succeeded or were
// already present, in percent. Zero when nothing was processed.
func (s Stats) SuccessRate() float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}

	return float64(s.Succeeded+s.SkippedExisting) * 100 / float64(total)
}

// ProgressState is the durable record of which work items have been handled.
type ProgressState struct {
	RunID     string          `json:"run_id"`
	Processed map[string]bool `json:"processed_identifiers"`
	Stats     Stats           `json:"stats"`
	SavedAt   time.Time       `json:"saved_at"`
}

// NewState returns an empty state with a fresh run id.
func NewState() *ProgressState {
	return &ProgressState{
		RunID:     uuid.NewString(),
		Processed: make(map[string]bool),
	}
}

// IsProcessed reports whether the identifier already reached a terminal state.
func (st *ProgressState) IsProcessed(identifier string) bool {
	return st.Processed[identifier]
}

// Record marks the identifier processed and tallies its bucket. Recording an
// already-processed identifier is a no-op, which keeps the tally total equal
// to the processed-set size.
func (st *ProgressState) Record(identifier string, bucket Bucket) {
	if st.Processed[identifier] {
		return
	}

	st.Processed[identifier] = true

	switch bucket {
	case BucketSucceeded:
		st.Stats.Succeeded++
	case BucketFailed:
		st.Stats.Failed++
	case BucketSkippedExisting:
		st.Stats.SkippedExisting++
	}
}

// Store loads and flushes ProgressState snapshots at a fixed path.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted state, or returns a fresh one if none exists.
func (s *Store) Load() (*ProgressState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}

		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	st := NewState()
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", s.path, err)
	}

	if st.Processed == nil {
		st.Processed = make(map[string]bool)
	}

	return st, nil
}

// Flush writes a complete snapshot. The write goes to a temp file in the same
// directory followed by a rename, so a crash never leaves a partial snapshot.
func (s *Store) Flush(st *ProgressState) error {
	st.SavedAt = time.Now().UTC()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp")
	if err != nil {
		return fmt.Errorf("failed to create checkpoint temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to close checkpoint temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}

	return nil
}

// Remove deletes the persisted state. A completed run leaves no resume artifact.
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}

	return nil
}
