package llm

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"google.golang.org/genai"
)

// errorClass says how the retry loop treats a failed provider call.
type errorClass int

const (
	classPermanent errorClass = iota
	classTransient
	classRateLimited
)

// RetryConfig is the retry budget for provider calls. The worker default is
// MaxRetries 0: a failed call fails the job and a later run picks it up again.
type RetryConfig struct {
	MaxRetries        int
	RateLimitBackoff  time.Duration // First wait after a rate limit without a server hint
	TransientBackoff  time.Duration // First wait after a 5xx or timeout
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

const (
	DefaultRateLimitBackoff  = 45 * time.Second
	DefaultTransientBackoff  = 2 * time.Second
	DefaultMaxBackoff        = 90 * time.Second
	DefaultBackoffMultiplier = 1.5
)

// NewRetryConfig returns a RetryConfig with default backoff. Negative
// maxRetries is treated as 0.
func NewRetryConfig(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:        max(maxRetries, 0),
		RateLimitBackoff:  DefaultRateLimitBackoff,
		TransientBackoff:  DefaultTransientBackoff,
		MaxBackoff:        DefaultMaxBackoff,
		BackoffMultiplier: DefaultBackoffMultiplier,
	}
}

// Next reports whether attempt (0-based) may be retried after err and how
// long to wait first. Permanent errors and a spent budget return false.
func (c *RetryConfig) Next(attempt int, err error) (time.Duration, bool) {
	if attempt >= c.MaxRetries {
		return 0, false
	}

	var base time.Duration
	switch classify(err) {
	case classRateLimited:
		base = c.RateLimitBackoff
		if hint := ExtractRetryDelay(err); hint > 0 {
			base = hint + 5*time.Second
		}
	case classTransient:
		base = c.TransientBackoff
	default:
		return 0, false
	}

	backoff := float64(base)
	for i := 0; i < attempt; i++ {
		backoff *= c.BackoffMultiplier
	}
	return min(time.Duration(backoff), c.MaxBackoff), true
}

// IsRateLimitError reports whether err is a provider rate limit or quota error.
func IsRateLimitError(err error) bool {
	return classify(err) == classRateLimited
}

func classify(err error) errorClass {
	if err == nil || errors.Is(err, context.Canceled) {
		return classPermanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return classTransient
	}

	var claudeErr *anthropic.Error
	if errors.As(err, &claudeErr) {
		return classifyStatus(claudeErr.StatusCode)
	}
	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) {
		return classifyStatus(geminiErr.Code)
	}

	msg := err.Error()
	for _, marker := range []string{"429", "RESOURCE_EXHAUSTED", "rate_limit_error", "quota"} {
		if strings.Contains(msg, marker) {
			return classRateLimited
		}
	}
	return classTransient
}

func classifyStatus(code int) errorClass {
	switch {
	case code == http.StatusTooManyRequests:
		return classRateLimited
	case code == http.StatusRequestTimeout, code >= 500:
		return classTransient
	}
	return classPermanent
}

// retryDelayRegex matches "Please retry in 45.3s" and "retryDelay: 45s"
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay returns the server-suggested wait in err, or 0.
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	m := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(m) < 2 {
		return 0
	}
	seconds, parseErr := strconv.ParseFloat(m[1], 64)
	if parseErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
