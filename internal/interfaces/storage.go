// -----------------------------------------------------------------------
// Storage Interfaces - Queue and universe persistence contracts
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
)

// ErrNotFound is returned by storage lookups that match no row.
var ErrNotFound = errors.New("not found")

// AnalysisQueueStorage - interface for the shared analysis_jobs queue table.
// All implementations must make ClaimJobs a single conditional update so that
// concurrent invocations never both claim the same row.
type AnalysisQueueStorage interface {
	// Candidate selection: status pending or null, oldest created_at first
	FetchPending(ctx context.Context, limit int) ([]*models.AnalysisJob, error)

	// ClaimJobs moves the given ids from pending/null to running and returns
	// the ids this call actually transitioned. Rows already taken are omitted.
	ClaimJobs(ctx context.Context, ids []string) ([]string, error)

	// Per-job transitions
	MarkRunning(ctx context.Context, id string, attempts int, at time.Time) error
	MarkCompleted(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, message string, at time.Time) error

	// Aggregate counts
	CountPending(ctx context.Context) (int64, error)
	CountCompleted(ctx context.Context) (int64, error)

	// Operator tooling: reset running jobs untouched since olderThan back to pending
	RequeueStuck(ctx context.Context, olderThan time.Time) (int64, error)

	// Producer-side helpers
	EnqueueJob(ctx context.Context, job *models.AnalysisJob) error
	GetJob(ctx context.Context, id string) (*models.AnalysisJob, error)
}

// UniverseStorage - interface for the investment universe rows jobs analyze
type UniverseStorage interface {
	// GetUniverseRow returns ErrNotFound when no row exists for key
	GetUniverseRow(ctx context.Context, key string) (*models.UniverseRow, error)
	PatchUniverseRow(ctx context.Context, key string, patch *models.UniversePatch) error
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	AnalysisQueueStorage() AnalysisQueueStorage
	UniverseStorage() UniverseStorage
	Close() error
}
