package queue

import (
	"time"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/common"
)

// DefaultMaxJobs is the batch size used when neither the caller nor the
// configuration supplies a positive value.
const DefaultMaxJobs = 5

// Config holds configuration for the queue worker
type Config struct {
	// MaxJobs is the default batch size
	MaxJobs int

	// TimeBudget is the batch deadline, checked after each job
	TimeBudget time.Duration

	// SecondsPerJobEstimate is reported to callers for planning
	SecondsPerJobEstimate int

	// ErrorMaxLength bounds error strings written by the worker itself
	ErrorMaxLength int
}

// NewDefaultConfig creates a queue configuration with the stock limits
func NewDefaultConfig() Config {
	return Config{
		MaxJobs:               DefaultMaxJobs,
		TimeBudget:            250 * time.Second,
		SecondsPerJobEstimate: 50,
		ErrorMaxLength:        600,
	}
}

// ConfigFromCommon converts the [queue] section into a worker Config.
func ConfigFromCommon(q common.QueueConfig) Config {
	def := NewDefaultConfig()
	cfg := Config{
		MaxJobs:               q.MaxJobs,
		TimeBudget:            q.TimeBudgetDuration(),
		SecondsPerJobEstimate: q.SecondsPerJobEstimate,
		ErrorMaxLength:        q.ErrorMaxLength,
	}
	if cfg.SecondsPerJobEstimate <= 0 {
		cfg.SecondsPerJobEstimate = def.SecondsPerJobEstimate
	}
	if cfg.ErrorMaxLength <= 0 {
		cfg.ErrorMaxLength = def.ErrorMaxLength
	}
	return cfg
}

// ResolveMaxJobs picks the batch size: an explicit positive value wins, then
// the configured value (which already carries the environment override),
// then DefaultMaxJobs.
func ResolveMaxJobs(explicit, configured int) int {
	if explicit > 0 {
		return explicit
	}
	if configured > 0 {
		return configured
	}
	return DefaultMaxJobs
}
