package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
)

const jobColumns = `id::text, COALESCE(ticker, ''), COALESCE(company_name, ''), COALESCE(status, ''),
	attempts, COALESCE(provider, ''), COALESCE(model, ''), created_at, started_at, last_run_at,
	updated_at, COALESCE(error, ''), COALESCE(last_error, '')`

const pendingPredicate = `(status IS NULL OR status = 'pending')`

// QueueStorage implements AnalysisQueueStorage on the analysis_jobs table
type QueueStorage struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger
}

var _ interfaces.AnalysisQueueStorage = (*QueueStorage)(nil)

// NewQueueStorage creates a new QueueStorage instance
func NewQueueStorage(pool *pgxpool.Pool, logger arbor.ILogger) *QueueStorage {
	return &QueueStorage{pool: pool, logger: logger}
}

func scanJob(row pgx.Row) (*models.AnalysisJob, error) {
	var job models.AnalysisJob
	var status string
	err := row.Scan(
		&job.ID, &job.Ticker, &job.CompanyName, &status,
		&job.Attempts, &job.Provider, &job.Model, &job.CreatedAt, &job.StartedAt, &job.LastRunAt,
		&job.UpdatedAt, &job.Error, &job.LastError,
	)
	if err != nil {
		return nil, err
	}
	job.Status = models.QueueStatus(status)
	return &job, nil
}

func (s *QueueStorage) FetchPending(ctx context.Context, limit int) ([]*models.AnalysisJob, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+jobColumns+`
		FROM analysis_jobs
		WHERE `+pendingPredicate+`
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.AnalysisJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending jobs: %w", err)
	}
	return jobs, nil
}

// ClaimJobs re-asserts the pending predicate in the UPDATE itself, so rows
// another invocation took between fetch and claim are left alone.
func (s *QueueStorage) ClaimJobs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `UPDATE analysis_jobs
		SET status = 'running', started_at = NOW(), updated_at = NOW()
		WHERE id = ANY($1::uuid[])
			AND `+pendingPredicate+`
		RETURNING id::text`, ids)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}

	claimed, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	return claimed, nil
}

func (s *QueueStorage) exec(ctx context.Context, op, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

func (s *QueueStorage) MarkRunning(ctx context.Context, id string, attempts int, at time.Time) error {
	return s.exec(ctx, "mark running", `UPDATE analysis_jobs
		SET status = 'running', attempts = $2, started_at = $3, last_run = $3, last_run_at = $3, updated_at = $3
		WHERE id = $1::uuid`, id, attempts, at)
}

func (s *QueueStorage) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	return s.exec(ctx, "mark completed", `UPDATE analysis_jobs
		SET status = 'completed', error = NULL, last_error = NULL, updated_at = $2
		WHERE id = $1::uuid`, id, at)
}

func (s *QueueStorage) MarkFailed(ctx context.Context, id string, message string, at time.Time) error {
	return s.exec(ctx, "mark failed", `UPDATE analysis_jobs
		SET status = 'failed', error = $2, last_error = $2, updated_at = $3
		WHERE id = $1::uuid`, id, message, at)
}

func (s *QueueStorage) count(ctx context.Context, where string) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM analysis_jobs WHERE `+where).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *QueueStorage) CountPending(ctx context.Context) (int64, error) {
	return s.count(ctx, pendingPredicate)
}

func (s *QueueStorage) CountCompleted(ctx context.Context) (int64, error) {
	return s.count(ctx, `status = 'completed'`)
}

// RequeueStuck resets running jobs not updated since olderThan back to pending
func (s *QueueStorage) RequeueStuck(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE analysis_jobs
		SET status = 'pending', updated_at = NOW()
		WHERE status = 'running'
			AND (updated_at IS NULL OR updated_at < $1)`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("requeue stuck jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// EnqueueJob inserts a job. An empty ID is generated and an empty status is
// stored as NULL.
func (s *QueueStorage) EnqueueJob(ctx context.Context, job *models.AnalysisJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO analysis_jobs
		(id, ticker, company_name, status, attempts, provider, model, created_at)
		VALUES ($1::uuid, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5, NULLIF($6, ''), NULLIF($7, ''), $8)`,
		job.ID, job.Ticker, job.CompanyName, string(job.Status), job.Attempts, job.Provider, job.Model, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	return nil
}

func (s *QueueStorage) GetJob(ctx context.Context, id string) (*models.AnalysisJob, error) {
	job, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1::uuid`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, interfaces.ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}
