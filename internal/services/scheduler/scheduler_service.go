package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/common"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
)

// RunSourceScheduled is reported on every run this service starts
const RunSourceScheduled = "scheduled"

// Runner is one queue worker invocation
type Runner interface {
	Run(ctx context.Context, maxJobs int, runSource string) (*models.RunSummary, error)
}

// Service triggers queue worker runs on a cron schedule. A tick that fires
// while the previous run is still in progress is skipped; overlap with other
// processes is left to the claim protocol.
type Service struct {
	runner  Runner
	maxJobs int
	cron    *cron.Cron
	logger  arbor.ILogger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex // Protects isProcessing, running and the run stats
	isProcessing bool
	running      bool
	lastRun      *time.Time
	lastError    string
	skipped      int
}

// NewService creates a new scheduler service. maxJobs is passed to every run;
// zero lets the worker use its configured batch size.
func NewService(runner Runner, maxJobs int, logger arbor.ILogger) *Service {
	return &Service{
		runner:  runner,
		maxJobs: maxJobs,
		cron:    cron.New(),
		logger:  logger,
	}
}

// Start begins the scheduler with the given cron expression
func (s *Service) Start(cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if err := common.ValidateJobSchedule(cronExpr); err != nil {
		return err
	}

	// A stopped cron keeps its entries, so every start gets a fresh one.
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(cronExpr, s.runScheduledTask); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("cron_expr", cronExpr).
		Int("max_jobs", s.maxJobs).
		Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for an in-flight run to return
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	c, cancel := s.cron, s.cancel
	s.mu.Unlock()

	<-c.Stop().Done()
	cancel()

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning reports whether the cron loop is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status is a snapshot of the scheduler's run history
type Status struct {
	Running   bool
	LastRun   *time.Time
	LastError string
	Skipped   int
}

// Status returns the current run history
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Running: s.running, LastRun: s.lastRun, LastError: s.lastError, Skipped: s.skipped}
}

// TriggerNow runs one batch immediately, subject to the same overlap guard
func (s *Service) TriggerNow() {
	s.runScheduledTask()
}

func (s *Service) runScheduledTask() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Recovered from panic in scheduled run")
		}
	}()

	s.mu.Lock()
	if s.isProcessing {
		s.skipped++
		s.mu.Unlock()
		s.logger.Info().Msg("Previous scheduled run still in progress, skipping this tick")
		return
	}
	s.isProcessing = true
	ctx := s.ctx
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isProcessing = false
		s.mu.Unlock()
	}()

	if ctx == nil {
		ctx = context.Background()
	}

	started := time.Now()
	summary, err := s.runner.Run(ctx, s.maxJobs, RunSourceScheduled)

	s.mu.Lock()
	s.lastRun = &started
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Msg("Scheduled queue run failed")
		return
	}

	s.logger.Info().
		Str("run_id", summary.RunID).
		Int("processed", summary.Processed).
		Int("failed", summary.Failed).
		Int64("remaining", summary.Remaining).
		Msg("Scheduled queue run finished")
}
