package server

import (
	"context"
	"sync"

	"github.com/fortresslogs/ctfround/internal/report"
	"github.com/google/uuid"
)

// ReportStore is the read side served over gRPC. *report.Archive satisfies it.
type ReportStore interface {
	Load(id uuid.UUID) (*report.Report, error)
	List() ([]uuid.UUID, error)
}

// RecentReports keeps the last reports in memory, for runs without an archive.
type RecentReports struct {
	mu      sync.RWMutex
	limit   int
	order   []uuid.UUID
	reports map[uuid.UUID]*report.Report
}

// NewRecentReports creates a store holding at most limit reports.
func NewRecentReports(limit int) *RecentReports {
	if limit <= 0 {
		limit = 1
	}
	return &RecentReports{
		limit:   limit,
		reports: make(map[uuid.UUID]*report.Report),
	}
}

// Publish adds a report, evicting the oldest one when full.
func (s *RecentReports) Publish(_ context.Context, r *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.reports[r.ID] = r
	for len(s.order) > s.limit {
		delete(s.reports, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

// Load returns a stored report.
func (s *RecentReports) Load(id uuid.UUID) (*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	return r, nil
}

// List returns report IDs, oldest first.
func (s *RecentReports) List() ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uuid.UUID, len(s.order))
	copy(ids, s.order)
	return ids, nil
}
