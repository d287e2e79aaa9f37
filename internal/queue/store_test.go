package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
)

// memStore is a mutex-guarded queue table with the same claim predicate the
// real stores use.
type memStore struct {
	mu   sync.Mutex
	jobs map[string]*models.AnalysisJob

	fetchErr      error
	claimErr      error
	countErr      error
	stealOnClaim  []string // ids another invocation claims just before ours
	claimRequests [][]string
}

func newMemStore(jobs ...*models.AnalysisJob) *memStore {
	s := &memStore{jobs: map[string]*models.AnalysisJob{}}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *memStore) FetchPending(_ context.Context, limit int) ([]*models.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	var out []*models.AnalysisJob
	for _, j := range s.jobs {
		if j.Status.IsClaimable() {
			c := *j
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) ClaimJobs(_ context.Context, ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimRequests = append(s.claimRequests, ids)
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	for _, id := range s.stealOnClaim {
		if j, ok := s.jobs[id]; ok {
			j.Status = models.QueueStatusRunning
		}
	}
	var claimed []string
	for _, id := range ids {
		j, ok := s.jobs[id]
		if !ok || !j.Status.IsClaimable() {
			continue
		}
		j.Status = models.QueueStatusRunning
		claimed = append(claimed, id)
	}
	return claimed, nil
}

func (s *memStore) MarkRunning(_ context.Context, id string, attempts int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	j.Status = models.QueueStatusRunning
	j.Attempts = attempts
	j.StartedAt = &at
	j.LastRunAt = &at
	return nil
}

func (s *memStore) MarkCompleted(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	j.Status = models.QueueStatusCompleted
	j.Error = ""
	j.LastError = ""
	j.UpdatedAt = &at
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id, msg string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	j.Status = models.QueueStatusFailed
	j.Error = msg
	j.LastError = msg
	j.UpdatedAt = &at
	return nil
}

func (s *memStore) countWhere(pred func(*models.AnalysisJob) bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	var n int64
	for _, j := range s.jobs {
		if pred(j) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountPending(context.Context) (int64, error) {
	return s.countWhere(func(j *models.AnalysisJob) bool { return j.Status.IsClaimable() })
}

func (s *memStore) CountCompleted(context.Context) (int64, error) {
	return s.countWhere(func(j *models.AnalysisJob) bool { return j.Status == models.QueueStatusCompleted })
}

func (s *memStore) RequeueStuck(context.Context, time.Time) (int64, error) {
	return 0, errors.New("not implemented")
}

func (s *memStore) EnqueueJob(_ context.Context, job *models.AnalysisJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *memStore) GetJob(_ context.Context, id string) (*models.AnalysisJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	c := *j
	return &c, nil
}

func (s *memStore) status(id string) models.QueueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id].Status
}

var _ interfaces.AnalysisQueueStorage = (*memStore)(nil)

func pendingJob(id, ticker string, age time.Duration) *models.AnalysisJob {
	return &models.AnalysisJob{
		ID:        id,
		Ticker:    ticker,
		Status:    models.QueueStatusPending,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(-age),
	}
}
