package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
)

// maxTxRetries bounds how often a conflicting transaction is replayed
const maxTxRetries = 10

// JobRecord is the stored form of an analysis job.
// An empty Status is the null status of a never-claimed row.
type JobRecord struct {
	ID          string `badgerhold:"key"`
	Ticker      string
	CompanyName string
	Status      string `badgerhold:"index"`
	Attempts    int
	Provider    string
	Model       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	LastRunAt   *time.Time
	UpdatedAt   *time.Time
	Error       string
	LastError   string
}

func newJobRecord(job *models.AnalysisJob) JobRecord {
	return JobRecord{
		ID:          job.ID,
		Ticker:      job.Ticker,
		CompanyName: job.CompanyName,
		Status:      string(job.Status),
		Attempts:    job.Attempts,
		Provider:    job.Provider,
		Model:       job.Model,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		LastRunAt:   job.LastRunAt,
		UpdatedAt:   job.UpdatedAt,
		Error:       job.Error,
		LastError:   job.LastError,
	}
}

func (r *JobRecord) toModel() *models.AnalysisJob {
	return &models.AnalysisJob{
		ID:          r.ID,
		Ticker:      r.Ticker,
		CompanyName: r.CompanyName,
		Status:      models.QueueStatus(r.Status),
		Attempts:    r.Attempts,
		Provider:    r.Provider,
		Model:       r.Model,
		CreatedAt:   r.CreatedAt,
		StartedAt:   r.StartedAt,
		LastRunAt:   r.LastRunAt,
		UpdatedAt:   r.UpdatedAt,
		Error:       r.Error,
		LastError:   r.LastError,
	}
}

func (r *JobRecord) claimable() bool {
	return models.QueueStatus(r.Status).IsClaimable()
}

// QueueStorage implements AnalysisQueueStorage for Badger. Claims run inside
// a single read-write transaction; badger's conflict detection aborts one of
// two overlapping claims, which is then replayed against the committed state.
type QueueStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	now    func() time.Time
}

var _ interfaces.AnalysisQueueStorage = (*QueueStorage)(nil)

// NewQueueStorage creates a new QueueStorage instance
func NewQueueStorage(db *BadgerDB, logger arbor.ILogger) *QueueStorage {
	return &QueueStorage{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

func pendingQuery() *badgerhold.Query {
	return badgerhold.Where("Status").In("", string(models.QueueStatusPending))
}

// FetchPending returns up to limit claimable jobs, oldest first
func (s *QueueStorage) FetchPending(ctx context.Context, limit int) ([]*models.AnalysisJob, error) {
	var records []JobRecord
	query := pendingQuery().SortBy("CreatedAt")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	jobs := make([]*models.AnalysisJob, 0, len(records))
	for i := range records {
		jobs = append(jobs, records[i].toModel())
	}
	return jobs, nil
}

// ClaimJobs moves still-claimable ids to running and returns those it moved
func (s *QueueStorage) ClaimJobs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var claimed []string
	err := s.update(func(txn *badger.Txn) error {
		claimed = claimed[:0]
		now := s.now()
		for _, id := range ids {
			var rec JobRecord
			if err := s.db.Store().TxGet(txn, id, &rec); err != nil {
				if errors.Is(err, badgerhold.ErrNotFound) {
					continue
				}
				return err
			}
			if !rec.claimable() {
				continue
			}
			rec.Status = string(models.QueueStatusRunning)
			rec.StartedAt = &now
			rec.UpdatedAt = &now
			if err := s.db.Store().TxUpdate(txn, id, rec); err != nil {
				return err
			}
			claimed = append(claimed, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim jobs: %w", err)
	}

	s.logger.Debug().
		Int("requested", len(ids)).
		Int("claimed", len(claimed)).
		Msg("BadgerDB: Claim committed")
	return claimed, nil
}

// MarkRunning records the attempt that is about to run
func (s *QueueStorage) MarkRunning(ctx context.Context, id string, attempts int, at time.Time) error {
	return s.mutate(id, func(rec *JobRecord) {
		rec.Status = string(models.QueueStatusRunning)
		rec.Attempts = attempts
		rec.StartedAt = &at
		rec.LastRunAt = &at
		rec.UpdatedAt = &at
	})
}

// MarkCompleted finishes a job and clears its error fields
func (s *QueueStorage) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	return s.mutate(id, func(rec *JobRecord) {
		rec.Status = string(models.QueueStatusCompleted)
		rec.Error = ""
		rec.LastError = ""
		rec.UpdatedAt = &at
	})
}

// MarkFailed finishes a job with an already truncated message
func (s *QueueStorage) MarkFailed(ctx context.Context, id string, message string, at time.Time) error {
	return s.mutate(id, func(rec *JobRecord) {
		rec.Status = string(models.QueueStatusFailed)
		rec.Error = message
		rec.LastError = message
		rec.UpdatedAt = &at
	})
}

func (s *QueueStorage) CountPending(ctx context.Context) (int64, error) {
	count, err := s.db.Store().Count(&JobRecord{}, pendingQuery())
	if err != nil {
		return 0, err
	}
	return int64(count), nil
}

func (s *QueueStorage) CountCompleted(ctx context.Context) (int64, error) {
	count, err := s.db.Store().Count(&JobRecord{}, badgerhold.Where("Status").Eq(string(models.QueueStatusCompleted)))
	if err != nil {
		return 0, err
	}
	return int64(count), nil
}

// RequeueStuck resets running jobs not updated since olderThan back to pending
func (s *QueueStorage) RequeueStuck(ctx context.Context, olderThan time.Time) (int64, error) {
	var requeued int64
	err := s.update(func(txn *badger.Txn) error {
		requeued = 0
		var records []JobRecord
		if err := s.db.Store().TxFind(txn, &records, badgerhold.Where("Status").Eq(string(models.QueueStatusRunning))); err != nil {
			return err
		}
		now := s.now()
		for i := range records {
			rec := records[i]
			if rec.UpdatedAt != nil && !rec.UpdatedAt.Before(olderThan) {
				continue
			}
			rec.Status = string(models.QueueStatusPending)
			rec.UpdatedAt = &now
			if err := s.db.Store().TxUpdate(txn, rec.ID, rec); err != nil {
				return err
			}
			requeued++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stuck jobs: %w", err)
	}
	return requeued, nil
}

// EnqueueJob inserts a new job. An empty ID is assigned, a zero CreatedAt is
// set to now and an unset status stays null.
func (s *QueueStorage) EnqueueJob(ctx context.Context, job *models.AnalysisJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = s.now()
	}
	if err := s.db.Store().Insert(job.ID, newJobRecord(job)); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

func (s *QueueStorage) GetJob(ctx context.Context, id string) (*models.AnalysisJob, error) {
	var rec JobRecord
	if err := s.db.Store().Get(id, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return rec.toModel(), nil
}

func (s *QueueStorage) mutate(id string, fn func(rec *JobRecord)) error {
	return s.update(func(txn *badger.Txn) error {
		var rec JobRecord
		if err := s.db.Store().TxGet(txn, id, &rec); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return interfaces.ErrNotFound
			}
			return err
		}
		fn(&rec)
		return s.db.Store().TxUpdate(txn, id, rec)
	})
}

// update runs fn in a read-write transaction, replaying it on conflict
func (s *QueueStorage) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = s.db.Store().Badger().Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.logger.Debug().Int("attempt", attempt+1).Msg("BadgerDB: Transaction conflict, retrying")
	}
	return err
}
