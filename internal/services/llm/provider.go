package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/common"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
)

// ProviderType names an LLM vendor
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderClaude ProviderType = "claude"
)

// ContentRequest is a provider-agnostic generation request
type ContentRequest struct {
	Provider          ProviderType // Empty means detect from Model
	Messages          []interfaces.Message
	Model             string
	Temperature       float32
	MaxTokens         int
	SystemInstruction string
}

// ContentResponse is the text a provider returned
type ContentResponse struct {
	Text     string
	Provider ProviderType
	Model    string
}

// ContentGenerator produces model output for a request.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error)
}

// backend is one vendor SDK behind the factory.
type backend interface {
	defaultModel() string
	timeout() time.Duration
	generate(ctx context.Context, model, system string, messages []interfaces.Message, request *ContentRequest) (string, error)
}

// modelPrefixes maps lower-case model prefixes to providers. Routing prefixes
// ("claude/") are stripped by NormalizeModel; family prefixes ("claude-") are not.
var modelPrefixes = []struct {
	prefix   string
	provider ProviderType
	routing  bool
}{
	{"claude/", ProviderClaude, true},
	{"anthropic/", ProviderClaude, true},
	{"gemini/", ProviderGemini, true},
	{"google/", ProviderGemini, true},
	{"claude-", ProviderClaude, false},
	{"gemini-", ProviderGemini, false},
}

// ProviderFactory lazily builds vendor clients and paces, times out and
// optionally retries every call.
type ProviderFactory struct {
	geminiConfig *common.GeminiConfig
	claudeConfig *common.ClaudeConfig
	llmConfig    *common.LLMConfig
	retry        *RetryConfig
	limiters     map[ProviderType]*rate.Limiter
	logger       arbor.ILogger

	mu       sync.Mutex
	backends map[ProviderType]backend
}

// NewProviderFactory creates a provider factory. No client is created until
// the first call, so a missing API key only fails the calls that need it.
func NewProviderFactory(
	geminiConfig *common.GeminiConfig,
	claudeConfig *common.ClaudeConfig,
	llmConfig *common.LLMConfig,
	logger arbor.ILogger,
) *ProviderFactory {
	return &ProviderFactory{
		geminiConfig: geminiConfig,
		claudeConfig: claudeConfig,
		llmConfig:    llmConfig,
		retry:        NewRetryConfig(llmConfig.MaxRetries),
		limiters: map[ProviderType]*rate.Limiter{
			ProviderGemini: newLimiter(geminiConfig.RateLimit),
			ProviderClaude: newLimiter(claudeConfig.RateLimit),
		},
		logger:   logger,
		backends: map[ProviderType]backend{},
	}
}

// newLimiter allows one request per interval. An empty or invalid interval
// disables pacing.
func newLimiter(interval string) *rate.Limiter {
	d := common.ParseDurationOr(interval, 0)
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// ParseProvider maps a provider or vendor name to a ProviderType. Unknown names return "".
func ParseProvider(name string) ProviderType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gemini", "google":
		return ProviderGemini
	case "claude", "anthropic":
		return ProviderClaude
	}
	return ""
}

// DetectProvider infers the provider from a model name such as
// "claude-sonnet-4-20250514" or "google/gemini-2.5-pro". Unrecognised and
// empty models use the configured default.
func (f *ProviderFactory) DetectProvider(model string) ProviderType {
	lower := strings.ToLower(model)
	for _, p := range modelPrefixes {
		if strings.HasPrefix(lower, p.prefix) {
			return p.provider
		}
	}
	return f.defaultProvider()
}

// ResolveProvider picks the provider for a call: an explicit provider name
// wins, then the model prefix, then the configured default.
func (f *ProviderFactory) ResolveProvider(provider, model string) ProviderType {
	if p := ParseProvider(provider); p != "" {
		return p
	}
	return f.DetectProvider(model)
}

func (f *ProviderFactory) defaultProvider() ProviderType {
	if p := ParseProvider(string(f.llmConfig.DefaultProvider)); p != "" {
		return p
	}
	return ProviderGemini
}

// NormalizeModel strips a routing prefix ("claude/", "google/" ...) from model.
func (f *ProviderFactory) NormalizeModel(model string) string {
	lower := strings.ToLower(model)
	for _, p := range modelPrefixes {
		if p.routing && strings.HasPrefix(lower, p.prefix) {
			return model[len(p.prefix):]
		}
	}
	return model
}

// GetDefaultModel returns the configured model for a provider
func (f *ProviderFactory) GetDefaultModel(provider ProviderType) string {
	if provider == ProviderClaude {
		return f.claudeConfig.Model
	}
	return f.geminiConfig.Model
}

func (f *ProviderFactory) backendFor(ctx context.Context, provider ProviderType) (backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if b, ok := f.backends[provider]; ok {
		return b, nil
	}

	var (
		b   backend
		err error
	)
	switch provider {
	case ProviderClaude:
		b, err = newClaudeBackend(f.claudeConfig)
	default:
		b, err = newGeminiBackend(ctx, f.geminiConfig)
	}
	if err != nil {
		return nil, err
	}

	f.backends[provider] = b
	return b, nil
}

// GenerateContent sends request to the requested or detected provider
func (f *ProviderFactory) GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error) {
	provider := request.Provider
	if provider == "" {
		provider = f.DetectProvider(request.Model)
	}

	system, messages, err := splitSystem(request.Messages)
	if err != nil {
		return nil, fmt.Errorf("invalid %s request: %w", provider, err)
	}
	if request.SystemInstruction != "" {
		system = request.SystemInstruction
	}

	b, err := f.backendFor(ctx, provider)
	if err != nil {
		return nil, err
	}

	model := f.NormalizeModel(request.Model)
	if model == "" {
		model = b.defaultModel()
	}

	f.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Int("message_count", len(messages)).
		Msg("Generating content with provider")

	var text string
	err = f.callWithRetry(ctx, provider, b.timeout(), func(callCtx context.Context) error {
		var callErr error
		text, callErr = b.generate(callCtx, model, system, messages, request)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty response from %s model %s", provider, model)
	}

	return &ContentResponse{Text: text, Provider: provider, Model: model}, nil
}

// callWithRetry runs call until it succeeds, fails permanently or the retry
// budget is spent. Every attempt waits on the provider's limiter first.
func (f *ProviderFactory) callWithRetry(ctx context.Context, provider ProviderType, timeout time.Duration, call func(ctx context.Context) error) error {
	limiter := f.limiters[provider]

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		lastErr = call(callCtx)
		cancel()
		if lastErr == nil {
			return nil
		}

		backoff, retry := f.retry.Next(attempt, lastErr)
		if !retry {
			break
		}

		f.logger.Warn().
			Str("provider", string(provider)).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(lastErr).
			Msg("Retrying provider call")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%s call failed: %w", provider, lastErr)
}

// Close drops cached clients; the next call rebuilds them
func (f *ProviderFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backends = map[ProviderType]backend{}
	return nil
}

// splitSystem returns the first system message and the remaining
// conversation. Later system messages are dropped.
func splitSystem(messages []interfaces.Message) (string, []interfaces.Message, error) {
	var (
		system  string
		hasUser bool
	)
	rest := make([]interfaces.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if system == "" {
				system = msg.Content
			}
		case "user":
			hasUser = true
			rest = append(rest, msg)
		default:
			rest = append(rest, msg)
		}
	}
	if !hasUser {
		return "", nil, fmt.Errorf("at least one message must have role 'user'")
	}
	return system, rest, nil
}
