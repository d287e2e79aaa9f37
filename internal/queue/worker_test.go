package queue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/common"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/workers/analysis"
)

// funcProcessor adapts a function to JobProcessor and records call order.
type funcProcessor struct {
	mu    sync.Mutex
	calls []string
	fn    func(job *models.AnalysisJob) (models.JobSummary, error)
}

func (p *funcProcessor) Process(_ context.Context, job *models.AnalysisJob) (models.JobSummary, error) {
	p.mu.Lock()
	p.calls = append(p.calls, job.ID)
	p.mu.Unlock()
	return p.fn(job)
}

func succeed(job *models.AnalysisJob) (models.JobSummary, error) {
	s := models.NewJobSummary(job)
	s.Status = models.QueueStatusCompleted
	return s, nil
}

type stubAnalyzer struct {
	calls int
	err   error
}

func (a *stubAnalyzer) Analyze(_ context.Context, _ *interfaces.DeepDiveRequest) (*interfaces.DeepDiveResult, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &interfaces.DeepDiveResult{Summary: "fine"}, nil
}

type nopUniverse struct{}

func (nopUniverse) GetUniverseRow(context.Context, string) (*models.UniverseRow, error) {
	return nil, interfaces.ErrNotFound
}

func (nopUniverse) PatchUniverseRow(context.Context, string, *models.UniversePatch) error {
	return nil
}

func newProcessor(store interfaces.AnalysisQueueStorage, analyzer interfaces.DeepDiveAnalyzer) *analysis.Processor {
	return analysis.NewProcessor(store, nopUniverse{}, analyzer, nil, analysis.ProcessorConfig{
		MaxAttempts:    3,
		ErrorMaxLength: 600,
	}, arbor.NewLogger())
}

func TestResolveMaxJobs(t *testing.T) {
	tests := []struct {
		name       string
		explicit   int
		configured int
		want       int
	}{
		{"explicit wins", 2, 9, 2},
		{"configured when explicit zero", 0, 9, 9},
		{"configured when explicit negative", -4, 7, 7},
		{"default", 0, 0, DefaultMaxJobs},
		{"negative configured", 0, -1, DefaultMaxJobs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveMaxJobs(tt.explicit, tt.configured))
		})
	}
}

func TestRun_EndToEndSuccess(t *testing.T) {
	store := newMemStore(&models.AnalysisJob{ID: "job-1", Ticker: "ABC", Attempts: 0})
	analyzer := &stubAnalyzer{}
	w := NewWorker(store, newProcessor(store, analyzer), NewDefaultConfig(), arbor.NewLogger())

	summary, err := w.Run(context.Background(), 1, RunSourceManual)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 0, summary.Failed)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, int64(0), summary.Remaining)
	assert.Equal(t, int64(1), summary.Completed)
	assert.Equal(t, RunSourceManual, summary.RunSource)
	assert.Equal(t, 1, summary.MaxJobs)
	assert.Equal(t, 50, summary.SecondsPerJobEstimate)
	assert.Equal(t, 50, summary.EstimatedSecondsThisRun)
	assert.NotEmpty(t, summary.RunID)

	require.Len(t, summary.Jobs, 1)
	assert.Equal(t, models.QueueStatusCompleted, summary.Jobs[0].Status)
	assert.Nil(t, summary.Jobs[0].Error)

	job, err := store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusCompleted, job.Status)
	assert.Empty(t, job.Error)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, 1, analyzer.calls)
}

func TestRun_EndToEndMaxAttempts(t *testing.T) {
	store := newMemStore(&models.AnalysisJob{ID: "job-1", Ticker: "ABC", Attempts: 3})
	analyzer := &stubAnalyzer{}

	summary, err := RunQueueWorker(context.Background(), store, newProcessor(store, analyzer), NewDefaultConfig(), 1, RunSourceScheduled, arbor.NewLogger())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "Max attempts (3) exceeded")
	assert.True(t, strings.HasPrefix(summary.Errors[0], "ABC: "))

	job, err := store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusFailed, job.Status)
	assert.Equal(t, 3, job.Attempts)
	assert.Contains(t, job.Error, "Max attempts (3) exceeded")
	assert.Zero(t, analyzer.calls)
}

func TestRun_FailureDoesNotAbortBatch(t *testing.T) {
	store := newMemStore(
		pendingJob("a", "AAA", 3*time.Hour),
		pendingJob("b", "", 2*time.Hour),
		pendingJob("c", "CCC", time.Hour),
	)
	analyzer := &stubAnalyzer{}
	w := NewWorker(store, newProcessor(store, analyzer), NewDefaultConfig(), arbor.NewLogger())

	summary, err := w.Run(context.Background(), 0, RunSourceManual)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "missing identifiers")
	assert.Equal(t, []string{"a", "b", "c"}, []string{summary.Jobs[0].ID, summary.Jobs[1].ID, summary.Jobs[2].ID})
	assert.Equal(t, 5, summary.MaxJobs)
	assert.Equal(t, 250, summary.EstimatedSecondsThisRun)
	assert.Equal(t, 2, analyzer.calls)
}

func TestRun_FetchErrorAbortsRun(t *testing.T) {
	store := newMemStore()
	store.fetchErr = errors.New("connection refused")
	proc := &funcProcessor{fn: succeed}
	w := NewWorker(store, proc, NewDefaultConfig(), arbor.NewLogger())

	summary, err := w.Run(context.Background(), 3, RunSourceManual)
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, IsFetchError(err))
	assert.ErrorContains(t, err, "connection refused")
	assert.Empty(t, proc.calls)
}

func TestRun_CountErrorsDefaultToZero(t *testing.T) {
	store := newMemStore(pendingJob("a", "AAA", time.Hour))
	proc := &funcProcessor{fn: succeed}
	w := NewWorker(store, proc, NewDefaultConfig(), arbor.NewLogger())
	store.countErr = errors.New("statement timeout")

	summary, err := w.Run(context.Background(), 1, RunSourceManual)
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Remaining)
	assert.Equal(t, int64(0), summary.Completed)
	assert.Equal(t, 1, summary.Processed)
}

func TestRun_TimeBudgetLeavesRemainingRunning(t *testing.T) {
	store := newMemStore(
		pendingJob("a", "AAA", 3*time.Hour),
		pendingJob("b", "BBB", 2*time.Hour),
		pendingJob("c", "CCC", time.Hour),
	)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	proc := &funcProcessor{fn: func(job *models.AnalysisJob) (models.JobSummary, error) {
		clock = clock.Add(200 * time.Second)
		return succeed(job)
	}}

	cfg := NewDefaultConfig()
	w := NewWorker(store, proc, cfg, arbor.NewLogger())
	w.now = func() time.Time { return clock }

	summary, err := w.Run(context.Background(), 3, RunSourceScheduled)
	require.NoError(t, err)

	assert.True(t, summary.TimedOut)
	assert.Equal(t, []string{"a", "b"}, proc.calls)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, models.QueueStatusRunning, store.status("c"), "unprocessed claimed job stays running")
	assert.Equal(t, int64(0), summary.Remaining, "running jobs are invisible to the pending count")
}

func TestRun_PanicFailsOnlyThatJob(t *testing.T) {
	store := newMemStore(pendingJob("a", "AAA", 2*time.Hour), pendingJob("b", "BBB", time.Hour))
	proc := &funcProcessor{fn: func(job *models.AnalysisJob) (models.JobSummary, error) {
		if job.ID == "a" {
			panic("nil map write")
		}
		return succeed(job)
	}}
	w := NewWorker(store, proc, NewDefaultConfig(), arbor.NewLogger())

	summary, err := w.Run(context.Background(), 2, RunSourceManual)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, summary.Errors[0], "panic: nil map write")
	assert.Equal(t, models.QueueStatusFailed, store.status("a"))

	var perr *common.PanicError
	_, procErr := w.processJob(context.Background(), &models.AnalysisJob{ID: "a", Ticker: "AAA"})
	assert.True(t, errors.As(procErr, &perr))
}

func TestRun_ConcurrentInvocationsNeverShareJobs(t *testing.T) {
	var jobs []*models.AnalysisJob
	for i := 0; i < 20; i++ {
		jobs = append(jobs, pendingJob(string(rune('a'+i)), "T"+string(rune('A'+i)), time.Duration(i)*time.Minute))
	}
	store := newMemStore(jobs...)

	var mu sync.Mutex
	seen := map[string]int{}
	proc := &funcProcessor{fn: func(job *models.AnalysisJob) (models.JobSummary, error) {
		mu.Lock()
		seen[job.ID]++
		mu.Unlock()
		return succeed(job)
	}}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := NewWorker(store, proc, NewDefaultConfig(), arbor.NewLogger())
			summary, err := w.Run(context.Background(), 4, RunSourceScheduled)
			assert.NoError(t, err)
			assert.LessOrEqual(t, len(summary.Jobs), 4)
		}()
	}
	wg.Wait()

	for id, n := range seen {
		assert.Equal(t, 1, n, "job %s processed more than once", id)
	}
}

func TestConfigFromCommon(t *testing.T) {
	cfg := ConfigFromCommon(common.QueueConfig{MaxJobs: 8, TimeBudget: "90s"})
	assert.Equal(t, 8, cfg.MaxJobs)
	assert.Equal(t, 90*time.Second, cfg.TimeBudget)
	assert.Equal(t, 50, cfg.SecondsPerJobEstimate)
	assert.Equal(t, 600, cfg.ErrorMaxLength)

	cfg = ConfigFromCommon(common.QueueConfig{TimeBudget: "nonsense"})
	assert.Equal(t, 250*time.Second, cfg.TimeBudget)
}
