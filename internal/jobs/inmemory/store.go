package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/moliya/internal/jobs"
)

// DefaultRetention is how many jobs the store keeps before evicting the oldest.
const DefaultRetention = 100

// Store is an in-memory JobStore. It keeps the most recent jobs by sequence
// number; history is lost on restart.
type Store struct {
	mu        sync.RWMutex
	jobs      map[string]*jobs.AdviceJob
	retention int
}

// NewStore creates a store that keeps at most retention jobs (DefaultRetention if <= 0).
func NewStore(retention int) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{
		jobs:      make(map[string]*jobs.AdviceJob),
		retention: retention,
	}
}

// SaveJob saves or updates a copy of job.
func (s *Store) SaveJob(ctx context.Context, job *jobs.AdviceJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	jobCopy.Transactions = nil
	s.jobs[job.JobID] = &jobCopy
	s.evict()
	return nil
}

func (s *Store) evict() {
	if len(s.jobs) <= s.retention {
		return
	}
	all := s.sorted()
	for _, j := range all[s.retention:] {
		delete(s.jobs, j.JobID)
	}
}

// sorted returns jobs newest first. Caller holds the lock.
func (s *Store) sorted() []*jobs.AdviceJob {
	all := make([]*jobs.AdviceJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		all = append(all, j)
	}
	sort.Slice(all, func(a, b int) bool { return all[a].Seq > all[b].Seq })
	return all
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.AdviceJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs returns jobs newest first.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.AdviceJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*jobs.AdviceJob{}
	for _, job := range s.sorted() {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.AdviceJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// UpdateJobStatus updates the status of a stored job.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
