package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"go.uber.org/goleak"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type blockingRunner struct {
	calls   atomic.Int32
	release chan struct{}
	started chan struct{}
	err     error

	mu      sync.Mutex
	sources []string
	maxJobs []int
}

func (r *blockingRunner) Run(ctx context.Context, maxJobs int, runSource string) (*models.RunSummary, error) {
	r.calls.Add(1)
	r.mu.Lock()
	r.sources = append(r.sources, runSource)
	r.maxJobs = append(r.maxJobs, maxJobs)
	r.mu.Unlock()

	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	if r.err != nil {
		return nil, r.err
	}
	return &models.RunSummary{RunID: "run-1", RunSource: runSource}, nil
}

func TestService_TriggerNowPassesRunSource(t *testing.T) {
	runner := &blockingRunner{}
	s := NewService(runner, 3, arbor.NewLogger())

	s.TriggerNow()

	assert.Equal(t, int32(1), runner.calls.Load())
	assert.Equal(t, []string{RunSourceScheduled}, runner.sources)
	assert.Equal(t, []int{3}, runner.maxJobs)
	st := s.Status()
	require.NotNil(t, st.LastRun)
	assert.Empty(t, st.LastError)
}

func TestService_SkipsOverlappingRun(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{}), started: make(chan struct{}, 1)}
	s := NewService(runner, 0, arbor.NewLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.TriggerNow()
	}()
	<-runner.started

	s.TriggerNow() // Returns immediately: first run still holds the guard

	close(runner.release)
	<-done

	assert.Equal(t, int32(1), runner.calls.Load())
	assert.Equal(t, 1, s.Status().Skipped)
}

func TestService_RecordsRunError(t *testing.T) {
	runner := &blockingRunner{err: errors.New("fetch failed: connection refused")}
	s := NewService(runner, 0, arbor.NewLogger())

	s.TriggerNow()

	assert.Contains(t, s.Status().LastError, "connection refused")
}

func TestService_StartStop(t *testing.T) {
	s := NewService(&blockingRunner{}, 0, arbor.NewLogger())

	require.NoError(t, s.Start("*/5 * * * *"))
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start("*/5 * * * *"), "second start must fail")

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop())
}

func TestService_RestartKeepsSingleEntry(t *testing.T) {
	s := NewService(&blockingRunner{}, 0, arbor.NewLogger())

	require.NoError(t, s.Start("*/5 * * * *"))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Start("*/10 * * * *"))
	defer s.Stop()

	entries := s.cron.Entries()
	require.Len(t, entries, 1)
	next := entries[0].Schedule.Next(time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC))
	assert.Equal(t, 10, next.Minute())
}

func TestService_StartRejectsBadSchedule(t *testing.T) {
	s := NewService(&blockingRunner{}, 0, arbor.NewLogger())

	assert.Error(t, s.Start("not a cron"))
	assert.Error(t, s.Start("* * * * *"), "every minute is below the minimum interval")
	assert.False(t, s.IsRunning())
}
