package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the worker configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Storage     StorageConfig   `toml:"storage"`
	Queue       QueueConfig     `toml:"queue"`
	Analysis    AnalysisConfig  `toml:"analysis"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Logging     LoggingConfig   `toml:"logging"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
}

type StorageConfig struct {
	Type     string         `toml:"type" validate:"oneof=postgres badger"` // "postgres" or "badger"
	Postgres PostgresConfig `toml:"postgres"`
	Badger   BadgerConfig   `toml:"badger"`
}

// PostgresConfig holds the shared relational queue store connection settings
type PostgresConfig struct {
	URL              string `toml:"url"`
	MaxConnections   int32  `toml:"max_connections" validate:"gte=1"`
	StatementTimeout string `toml:"statement_timeout"` // e.g. "30s", applied per session
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
	InMemory       bool   `toml:"in_memory"`        // Keep everything in memory (tests, dry runs)
}

// QueueConfig controls a single worker invocation
type QueueConfig struct {
	MaxJobs               int    `toml:"max_jobs" validate:"gte=1"`                 // Default batch size
	MaxAttempts           int    `toml:"max_attempts" validate:"gte=1"`             // Jobs at or above this are failed without running
	TimeBudget            string `toml:"time_budget"`                               // Batch deadline checked after each job
	SecondsPerJobEstimate int    `toml:"seconds_per_job_estimate" validate:"gte=1"` // Reported to callers for planning
	ErrorMaxLength        int    `toml:"error_max_length" validate:"gte=1"`         // Persisted error strings are cut to this many runes
	StuckAfter            string `toml:"stuck_after"`                               // Default threshold for requeue-stuck
}

// AnalysisConfig controls the per-job pipeline
type AnalysisConfig struct {
	AddonsEnabled   bool   `toml:"addons_enabled"`
	DefaultProvider string `toml:"default_provider"` // Empty falls through to [llm]
	DefaultModel    string `toml:"default_model"`    // Empty falls through to the provider's model
	Question        string `toml:"question"`
	Timeframe       string `toml:"timeframe"`
	ExcerptLength   int    `toml:"excerpt_length" validate:"gte=0"` // Max runes of a prior stage quoted into prompts
}

type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule format (5 fields)
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Output     []string `toml:"output"` // "stdout", "file"
	Dir        string   `toml:"dir"`    // Log file directory (default: <exe dir>/logs)
	TimeFormat string   `toml:"time_format"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`    // Per-call timeout
	RateLimit   string  `toml:"rate_limit"` // Minimum spacing between requests, e.g. "4s"
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains configuration shared by all providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"oneof=gemini claude"`
	MaxRetries      int         `toml:"max_retries" validate:"gte=0"` // 0 means a failed call fails the job
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Type: "postgres",
			Postgres: PostgresConfig{
				MaxConnections:   5, // One invocation works sequentially; a handful covers counts + claim
				StatementTimeout: "30s",
			},
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Queue: QueueConfig{
			MaxJobs:               5,
			MaxAttempts:           3,
			TimeBudget:            "250s",
			SecondsPerJobEstimate: 50,
			ErrorMaxLength:        600,
			StuckAfter:            "30m",
		},
		Analysis: AnalysisConfig{
			AddonsEnabled: false,
			Question:      "Give a deep-dive investment analysis of this company: business quality, balance sheet risk and entry timing.",
			Timeframe:     "12 months",
			ExcerptLength: 1200,
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Schedule: "*/5 * * * *",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Timeout:     "2m",
			RateLimit:   "4s", // 15 RPM free tier
			Temperature: 0.4,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   8192,
			Timeout:     "2m",
			RateLimit:   "1s",
			Temperature: 0.4,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
			MaxRetries:      0,
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// CLI flags are applied by the caller afterwards.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("ALPHASTOCKS_ENV"); env != "" {
		config.Environment = env
	}

	// Storage configuration
	if storageType := os.Getenv("ALPHASTOCKS_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}
	if url := os.Getenv("ALPHASTOCKS_DATABASE_URL"); url != "" {
		config.Storage.Postgres.URL = url
	} else if url := os.Getenv("DATABASE_URL"); url != "" {
		config.Storage.Postgres.URL = url
	}
	if maxConns := os.Getenv("ALPHASTOCKS_DATABASE_MAX_CONNECTIONS"); maxConns != "" {
		if n, err := strconv.Atoi(maxConns); err == nil && n > 0 {
			config.Storage.Postgres.MaxConnections = int32(n)
		}
	}
	if badgerPath := os.Getenv("ALPHASTOCKS_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Queue configuration - only positive integers are honoured
	if maxJobs := os.Getenv("ALPHASTOCKS_QUEUE_MAX_JOBS"); maxJobs != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(maxJobs)); err == nil && n > 0 {
			config.Queue.MaxJobs = n
		}
	}
	if maxAttempts := os.Getenv("ALPHASTOCKS_QUEUE_MAX_ATTEMPTS"); maxAttempts != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(maxAttempts)); err == nil && n > 0 {
			config.Queue.MaxAttempts = n
		}
	}
	if budget := os.Getenv("ALPHASTOCKS_QUEUE_TIME_BUDGET"); budget != "" {
		config.Queue.TimeBudget = budget
	}

	// Analysis configuration
	if addons := os.Getenv("ALPHASTOCKS_ADDONS_ENABLED"); addons != "" {
		if b, err := strconv.ParseBool(addons); err == nil {
			config.Analysis.AddonsEnabled = b
		}
	}
	if provider := os.Getenv("ALPHASTOCKS_DEFAULT_PROVIDER"); provider != "" {
		config.Analysis.DefaultProvider = provider
	}
	if model := os.Getenv("ALPHASTOCKS_DEFAULT_MODEL"); model != "" {
		config.Analysis.DefaultModel = model
	}

	// Scheduler configuration
	if schedule := os.Getenv("ALPHASTOCKS_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}

	// Logging configuration
	if level := os.Getenv("ALPHASTOCKS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("ALPHASTOCKS_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// LLM configuration
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GOOGLE_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("ALPHASTOCKS_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("ALPHASTOCKS_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if provider := os.Getenv("ALPHASTOCKS_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
	if retries := os.Getenv("ALPHASTOCKS_LLM_MAX_RETRIES"); retries != "" {
		if n, err := strconv.Atoi(retries); err == nil && n >= 0 {
			config.LLM.MaxRetries = n
		}
	}
}

// Validate checks struct constraints and cross-field requirements.
// A postgres store without a URL is reported as a ConfigurationError.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ConfigurationError{Field: verrs[0].Namespace(), Err: err}
		}
		return &ConfigurationError{Field: "config", Err: err}
	}

	if c.Storage.Type == "postgres" && strings.TrimSpace(c.Storage.Postgres.URL) == "" {
		return &ConfigurationError{Field: "storage.postgres.url"}
	}
	if c.Storage.Type == "badger" && !c.Storage.Badger.InMemory && c.Storage.Badger.Path == "" {
		return &ConfigurationError{Field: "storage.badger.path"}
	}

	for name, value := range map[string]string{
		"queue.time_budget":                  c.Queue.TimeBudget,
		"queue.stuck_after":                  c.Queue.StuckAfter,
		"storage.postgres.statement_timeout": c.Storage.Postgres.StatementTimeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return &ConfigurationError{Field: name, Err: err}
		}
	}

	if c.Scheduler.Enabled {
		if err := ValidateJobSchedule(c.Scheduler.Schedule); err != nil {
			return &ConfigurationError{Field: "scheduler.schedule", Err: err}
		}
	}

	return nil
}

// TimeBudgetDuration returns the batch deadline, falling back to 250s.
func (q QueueConfig) TimeBudgetDuration() time.Duration {
	return ParseDurationOr(q.TimeBudget, 250*time.Second)
}

// StuckAfterDuration returns the requeue-stuck threshold, falling back to 30m.
func (q QueueConfig) StuckAfterDuration() time.Duration {
	return ParseDurationOr(q.StuckAfter, 30*time.Minute)
}

// ParseDurationOr parses s, returning fallback when s is empty or invalid.
func ParseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ValidateJobSchedule validates a cron schedule expression and ensures minimum 5-minute interval.
func ValidateJobSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]

	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}

	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}
