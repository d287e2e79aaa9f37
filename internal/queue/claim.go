package queue

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
)

// Claim transitions the fetched candidates to running and returns the subset
// this invocation now owns, in fetch order. Jobs another invocation claimed
// first are dropped; the batch is not topped up.
//
// A failed claim update is logged and the fetched list is returned as is.
// Two invocations can then both work the same job; the store's conditional
// update is the only guard and this path bypasses it.
func Claim(ctx context.Context, store interfaces.AnalysisQueueStorage, jobs []*models.AnalysisJob, logger arbor.ILogger) []*models.AnalysisJob {
	if len(jobs) == 0 {
		return jobs
	}

	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
	}

	claimedIDs, err := store.ClaimJobs(ctx, ids)
	if err != nil {
		logger.Error().
			Err(err).
			Int("candidates", len(jobs)).
			Msg("Claim update failed, proceeding with fetched jobs")
		return jobs
	}

	owned := make(map[string]struct{}, len(claimedIDs))
	for _, id := range claimedIDs {
		owned[id] = struct{}{}
	}

	claimed := make([]*models.AnalysisJob, 0, len(claimedIDs))
	for _, job := range jobs {
		if _, ok := owned[job.ID]; !ok {
			logger.Debug().
				Str("job_id", job.ID).
				Str("ticker", job.Ticker).
				Msg("Job claimed by another invocation, skipping")
			continue
		}
		job.Status = models.QueueStatusRunning
		claimed = append(claimed, job)
	}

	if len(claimed) < len(jobs) {
		logger.Info().
			Int("candidates", len(jobs)).
			Int("claimed", len(claimed)).
			Msg("Some candidates were claimed concurrently")
	}
	return claimed
}
