package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
)

func jobIDs(jobs []*models.AnalysisJob) []string {
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	return ids
}

func TestClaim_AllCandidates(t *testing.T) {
	store := newMemStore(pendingJob("a", "AAA", 2*time.Hour), pendingJob("b", "BBB", time.Hour))
	candidates, err := store.FetchPending(context.Background(), 5)
	require.NoError(t, err)

	claimed := Claim(context.Background(), store, candidates, arbor.NewLogger())

	assert.Equal(t, []string{"a", "b"}, jobIDs(claimed))
	for _, j := range claimed {
		assert.Equal(t, models.QueueStatusRunning, j.Status)
	}
	assert.Equal(t, models.QueueStatusRunning, store.status("a"))
}

func TestClaim_DropsConcurrentlyClaimedWithoutTopUp(t *testing.T) {
	store := newMemStore(
		pendingJob("a", "AAA", 3*time.Hour),
		pendingJob("b", "BBB", 2*time.Hour),
		pendingJob("c", "CCC", time.Hour),
	)
	candidates, err := store.FetchPending(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, jobIDs(candidates))

	store.stealOnClaim = []string{"a"}
	claimed := Claim(context.Background(), store, candidates, arbor.NewLogger())

	assert.Equal(t, []string{"b"}, jobIDs(claimed))
	assert.Equal(t, models.QueueStatusPending, store.status("c"), "batch must not be topped up")
	require.Len(t, store.claimRequests, 1)
}

func TestClaim_ErrorFallsBackToFetchedList(t *testing.T) {
	store := newMemStore(pendingJob("a", "AAA", time.Hour))
	candidates, err := store.FetchPending(context.Background(), 5)
	require.NoError(t, err)

	store.claimErr = errors.New("deadlock detected")
	claimed := Claim(context.Background(), store, candidates, arbor.NewLogger())

	assert.Equal(t, []string{"a"}, jobIDs(claimed))
}

func TestClaim_EmptyBatchSkipsStore(t *testing.T) {
	store := newMemStore()
	claimed := Claim(context.Background(), store, nil, arbor.NewLogger())

	assert.Empty(t, claimed)
	assert.Empty(t, store.claimRequests)
}
