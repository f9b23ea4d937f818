package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/site-summarizer/internal/crawler"
)

// RunStore keeps crawl run history in-memory.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]crawler.RunRecord
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]crawler.RunRecord),
	}
}

// RecordRun stores a finished run.
func (s *RunStore) RecordRun(_ context.Context, run crawler.RunRecord) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already recorded", run.ID)
	}
	s.runs[run.ID] = run
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, id string) (crawler.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return crawler.RunRecord{}, fmt.Errorf("run %s: %w", id, crawler.ErrNotFound)
	}
	return run, nil
}

// ListRuns returns up to limit runs, most recently finished first. A
// non-positive limit returns every run.
func (s *RunStore) ListRuns(_ context.Context, limit int) ([]crawler.RunRecord, error) {
	s.mu.RLock()
	out := make([]crawler.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FinishedAt.Equal(out[j].FinishedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].FinishedAt.After(out[j].FinishedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
