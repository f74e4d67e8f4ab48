package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/bankops/bankctl/internal/model"
	"github.com/bankops/bankctl/internal/utils/logger"
)

// MemoryRunStore is an in-memory implementation of RunStore for testing
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*model.RunReport
}

// NewMemoryRunStore creates a new in-memory run store for testing
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{
		runs: make(map[string]*model.RunReport),
	}
}

// Open initializes the storage
func (s *MemoryRunStore) Open() error {
	logger.Debug("Opening memory run store")
	return nil
}

// Close closes the storage
func (s *MemoryRunStore) Close() error {
	logger.Debug("Closing memory run store")
	return nil
}

// SaveRun stores a finished run report
func (s *MemoryRunStore) SaveRun(ctx context.Context, report *model.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[report.ID] = report
	return nil
}

// GetRun retrieves a run report by its ID
func (s *MemoryRunStore) GetRun(ctx context.Context, id string) (*model.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.runs[id]
	if !ok {
		return nil, ErrRunNotFound{RunID: id}
	}
	return report, nil
}

// ListRuns retrieves run reports newest first, up to limit entries.
func (s *MemoryRunStore) ListRuns(ctx context.Context, limit int) ([]*model.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]*model.RunReport, 0, len(s.runs))
	for _, report := range s.runs {
		reports = append(reports, report)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].StartedAt.After(reports[j].StartedAt)
	})

	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

// DeleteRun removes a run report from the history
func (s *MemoryRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return ErrRunNotFound{RunID: id}
	}
	delete(s.runs, id)
	return nil
}
