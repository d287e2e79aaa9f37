// -----------------------------------------------------------------------
// Queue Worker - One bounded, time-boxed pass over the analysis queue
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/common"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
)

// Run sources reported in RunSummary.RunSource
const (
	RunSourceManual    = "manual"
	RunSourceScheduled = "scheduled"
)

// JobProcessor runs one claimed job to a terminal state.
type JobProcessor interface {
	Process(ctx context.Context, job *models.AnalysisJob) (models.JobSummary, error)
}

// Worker fetches, claims and processes a batch of analysis jobs. It holds no
// state between runs; concurrent Run calls coordinate only through the store.
type Worker struct {
	store     interfaces.AnalysisQueueStorage
	processor JobProcessor
	config    Config
	now       func() time.Time
	logger    arbor.ILogger
}

// NewWorker creates a queue worker
func NewWorker(store interfaces.AnalysisQueueStorage, processor JobProcessor, config Config, logger arbor.ILogger) *Worker {
	return &Worker{
		store:     store,
		processor: processor,
		config:    config,
		now:       time.Now,
		logger:    logger,
	}
}

// RunQueueWorker runs a single batch with a throwaway worker.
func RunQueueWorker(ctx context.Context, store interfaces.AnalysisQueueStorage, processor JobProcessor, config Config, maxJobs int, runSource string, logger arbor.ILogger) (*models.RunSummary, error) {
	return NewWorker(store, processor, config, logger).Run(ctx, maxJobs, runSource)
}

// Run processes up to maxJobs pending jobs sequentially. A zero or negative
// maxJobs falls back to the configured batch size. Only a failed candidate
// fetch aborts the run; per-job failures are collected in the summary.
func (w *Worker) Run(ctx context.Context, maxJobs int, runSource string) (*models.RunSummary, error) {
	batch := ResolveMaxJobs(maxJobs, w.config.MaxJobs)
	summary := &models.RunSummary{
		RunID:                   uuid.New().String(),
		Errors:                  []string{},
		Jobs:                    []models.JobSummary{},
		RunSource:               runSource,
		MaxJobs:                 batch,
		SecondsPerJobEstimate:   w.config.SecondsPerJobEstimate,
		EstimatedSecondsThisRun: batch * w.config.SecondsPerJobEstimate,
	}
	logger := w.logger.WithCorrelationId(summary.RunID)

	started := w.now()
	logger.Info().
		Str("run_source", runSource).
		Int("max_jobs", batch).
		Msg("Queue worker run started")

	candidates, err := w.store.FetchPending(ctx, batch)
	if err != nil {
		return nil, &common.FetchError{Op: "fetch", Err: err}
	}

	jobs := Claim(ctx, w.store, candidates, logger)

	for i, job := range jobs {
		jobSummary, err := w.processJob(ctx, job)
		summary.Jobs = append(summary.Jobs, jobSummary)

		if err != nil {
			summary.Failed++
			msg := err.Error()
			if jobSummary.Error != nil {
				msg = *jobSummary.Error
			}
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", job.Label(), msg))
		} else {
			summary.Processed++
		}

		remaining := len(jobs) - i - 1
		if remaining == 0 {
			break
		}
		if elapsed := w.now().Sub(started); elapsed > w.config.TimeBudget {
			summary.TimedOut = true
			logger.Warn().
				Str("run_source", runSource).
				Dur("elapsed", elapsed).
				Int("left_running", remaining).
				Msg("Time budget exceeded, leaving remaining claimed jobs running")
			break
		}
		if ctx.Err() != nil {
			logger.Warn().
				Err(ctx.Err()).
				Int("left_running", remaining).
				Msg("Run cancelled between jobs")
			break
		}
	}

	summary.Remaining = w.count(ctx, logger, "pending", w.store.CountPending)
	summary.Completed = w.count(ctx, logger, "completed", w.store.CountCompleted)

	logger.Info().
		Str("run_source", runSource).
		Int("claimed", len(jobs)).
		Int("processed", summary.Processed).
		Int("failed", summary.Failed).
		Int64("remaining", summary.Remaining).
		Dur("duration", w.now().Sub(started)).
		Msg("Queue worker run finished")

	return summary, nil
}

// processJob isolates one job so a panic inside the pipeline fails only that job.
func (w *Worker) processJob(ctx context.Context, job *models.AnalysisJob) (summary models.JobSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			perr := common.NewPanicError(r)
			msg := common.TruncateError(perr.Error(), w.config.ErrorMaxLength)

			w.logger.Error().
				Str("job_id", job.ID).
				Str("ticker", job.Ticker).
				Str("stack", perr.Stack).
				Msg("Recovered from panic while processing job")

			if markErr := w.store.MarkFailed(ctx, job.ID, msg, w.now()); markErr != nil {
				w.logger.Error().Err(markErr).Str("job_id", job.ID).Msg("Failed to persist job failure")
			}

			summary = models.NewJobSummary(job)
			summary.Status = models.QueueStatusFailed
			summary.Error = &msg
			err = perr
		}
	}()

	return w.processor.Process(ctx, job)
}

func (w *Worker) count(ctx context.Context, logger arbor.ILogger, which string, fn func(context.Context) (int64, error)) int64 {
	n, err := fn(ctx)
	if err != nil {
		cerr := &common.CountError{Which: which, Err: err}
		logger.Warn().Err(cerr).Msg("Count query failed, reporting 0")
		return 0
	}
	return n
}

// IsFetchError reports whether err aborted a run before any job was claimed.
func IsFetchError(err error) bool {
	var ferr *common.FetchError
	return errors.As(err, &ferr)
}
