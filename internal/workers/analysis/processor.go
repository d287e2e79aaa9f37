// -----------------------------------------------------------------------
// Processor - Analysis job state machine
// Validates, marks running, runs deep dive and add-ons, then completes
// or fails the job row
// -----------------------------------------------------------------------

package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/common"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/services/addons"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/services/rating"
)

// Stage names recorded on PipelineError.
const (
	StageMarkRunning   = "mark_running"
	StageSnapshot      = "snapshot"
	StageDeepDive      = "deep_dive"
	StageAddons        = "addons"
	StageUniversePatch = "universe_patch"
	StageMarkCompleted = "mark_completed"
)

// AddonRunner runs the add-on stage for one job.
type AddonRunner interface {
	Run(ctx context.Context, in addons.PipelineInput) (*addons.PipelineResult, error)
}

var _ AddonRunner = (*addons.Pipeline)(nil)

// ProcessorConfig carries the per-job limits and defaults.
type ProcessorConfig struct {
	MaxAttempts     int
	ErrorMaxLength  int
	AddonsEnabled   bool
	DefaultProvider string
	DefaultModel    string
}

// Processor runs a single claimed job to a terminal state.
type Processor struct {
	queue    interfaces.AnalysisQueueStorage
	universe interfaces.UniverseStorage
	analyzer interfaces.DeepDiveAnalyzer
	addons   AddonRunner
	config   ProcessorConfig
	now      func() time.Time
	logger   arbor.ILogger
}

// NewProcessor creates a job processor. addonRunner may be nil when add-ons
// are disabled.
func NewProcessor(
	queue interfaces.AnalysisQueueStorage,
	universe interfaces.UniverseStorage,
	analyzer interfaces.DeepDiveAnalyzer,
	addonRunner AddonRunner,
	config ProcessorConfig,
	logger arbor.ILogger,
) *Processor {
	return &Processor{
		queue:    queue,
		universe: universe,
		analyzer: analyzer,
		addons:   addonRunner,
		config:   config,
		now:      time.Now,
		logger:   logger,
	}
}

// Process drives job through the state machine. The returned summary always
// reflects the final status; the error is non-nil when the job failed and is
// either a *common.ValidationError or a *common.PipelineError.
func (p *Processor) Process(ctx context.Context, job *models.AnalysisJob) (models.JobSummary, error) {
	summary := models.NewJobSummary(job)

	if job.Attempts >= p.config.MaxAttempts {
		return p.fail(ctx, job, summary, &common.ValidationError{
			JobID:  job.ID,
			Reason: fmt.Sprintf("Max attempts (%d) exceeded", p.config.MaxAttempts),
		})
	}
	if !job.HasIdentifiers() {
		return p.fail(ctx, job, summary, &common.ValidationError{
			JobID:  job.ID,
			Reason: "Job is missing identifiers (ticker or company_name)",
		})
	}

	attempts := job.Attempts + 1
	startedAt := p.now()
	if err := p.queue.MarkRunning(ctx, job.ID, attempts, startedAt); err != nil {
		return p.fail(ctx, job, summary, &common.PipelineError{JobID: job.ID, Stage: StageMarkRunning, Err: err})
	}
	summary.Status = models.QueueStatusRunning
	summary.Attempts = attempts
	summary.LastRunAt = &startedAt

	p.logger.Info().
		Str("job_id", job.ID).
		Str("ticker", job.Ticker).
		Int("attempts", attempts).
		Msg("Analysis job running")

	if err := p.run(ctx, job); err != nil {
		return p.fail(ctx, job, summary, err)
	}

	if err := p.queue.MarkCompleted(ctx, job.ID, p.now()); err != nil {
		return p.fail(ctx, job, summary, &common.PipelineError{JobID: job.ID, Stage: StageMarkCompleted, Err: err})
	}
	summary.Status = models.QueueStatusCompleted
	summary.Error = nil

	p.logger.Info().
		Str("job_id", job.ID).
		Str("ticker", job.Ticker).
		Str("duration", time.Since(startedAt).String()).
		Msg("Analysis job completed")

	return summary, nil
}

func (p *Processor) run(ctx context.Context, job *models.AnalysisJob) error {
	provider := firstNonEmpty(job.Provider, p.config.DefaultProvider)
	model := firstNonEmpty(job.Model, p.config.DefaultModel)
	key := job.UniverseKey()

	snapshot, err := p.universe.GetUniverseRow(ctx, key)
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		snapshot = &models.UniverseRow{Key: key, Ticker: job.Ticker, CompanyName: job.CompanyName}
	case err != nil:
		return &common.PipelineError{JobID: job.ID, Stage: StageSnapshot, Err: err}
	}

	deep, err := p.analyzer.Analyze(ctx, &interfaces.DeepDiveRequest{
		Job:      job,
		Provider: provider,
		Model:    model,
		Snapshot: snapshot,
	})
	if err != nil {
		return &common.PipelineError{JobID: job.ID, Stage: StageDeepDive, Err: err}
	}

	scores := rating.MergeScores(rating.ResolveSnapshotScores(snapshot), deep.Scores)
	analyzedAt := p.now()
	patch := &models.UniversePatch{
		Ticker:          job.Ticker,
		CompanyName:     job.CompanyName,
		Scores:          scores,
		Meta:            rating.DeriveMetaFromScores(scores),
		Flags:           snapshot.Flags,
		DeepDiveSummary: &deep.Summary,
		AnalyzedAt:      analyzedAt,
	}

	if p.config.AddonsEnabled && p.addons != nil {
		result, err := p.addons.Run(ctx, addons.PipelineInput{
			Job:               job,
			Provider:          provider,
			Model:             model,
			Snapshot:          snapshot,
			Scores:            patch.Scores,
			Meta:              patch.Meta,
			Flags:             patch.Flags,
			Summary:           snapshot.AddonSummary,
			PriorStageSummary: deep.Summary,
		})
		if err != nil {
			return &common.PipelineError{JobID: job.ID, Stage: StageAddons, Err: err}
		}

		patch.Scores = result.Scores
		patch.Meta = result.Meta
		patch.Flags = result.Flags
		if !result.ShortCircuited {
			patch.AddonSummary = &result.Summary
			if len(result.Notes) > 0 {
				notes := strings.Join(result.Notes, "\n\n")
				patch.AnalystNotes = &notes
			}
		}

		p.logger.Debug().
			Str("job_id", job.ID).
			Int("executed", len(result.Executed)).
			Int("skipped", len(result.Skipped)).
			Bool("short_circuited", result.ShortCircuited).
			Msg("Add-on stage finished")
	}

	if err := p.universe.PatchUniverseRow(ctx, key, patch); err != nil {
		return &common.PipelineError{JobID: job.ID, Stage: StageUniversePatch, Err: err}
	}
	return nil
}

// fail persists the truncated error on the job row. A failed status write is
// logged; the job is still reported as failed to the caller.
func (p *Processor) fail(ctx context.Context, job *models.AnalysisJob, summary models.JobSummary, cause error) (models.JobSummary, error) {
	msg := common.TruncateError(cause.Error(), p.config.ErrorMaxLength)
	at := p.now()

	if err := p.queue.MarkFailed(ctx, job.ID, msg, at); err != nil {
		p.logger.Error().
			Err(err).
			Str("job_id", job.ID).
			Msg("Failed to persist job failure")
	}

	p.logger.Warn().
		Str("job_id", job.ID).
		Str("ticker", job.Ticker).
		Str("error", msg).
		Msg("Analysis job failed")

	summary.Status = models.QueueStatusFailed
	summary.Error = &msg
	return summary, cause
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
