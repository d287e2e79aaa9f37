package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
)

const defaultSystemPrompt = "You are an equity research analyst. Answer in clear prose and, when asked for structured output, " +
	"finish with a single JSON object in a ```json fenced block."

// CompletionService implements interfaces.CompletionService on top of a ContentGenerator.
type CompletionService struct {
	generator ContentGenerator
	resolver  providerResolver
	logger    arbor.ILogger
}

type providerResolver interface {
	ResolveProvider(provider, model string) ProviderType
}

// NewCompletionService creates a completion service backed by the provider factory
func NewCompletionService(factory *ProviderFactory, logger arbor.ILogger) *CompletionService {
	return &CompletionService{
		generator: factory,
		resolver:  factory,
		logger:    logger,
	}
}

// newCompletionServiceWithGenerator builds a service over any generator; provider
// resolution falls back to ParseProvider.
func newCompletionServiceWithGenerator(generator ContentGenerator, logger arbor.ILogger) *CompletionService {
	return &CompletionService{generator: generator, logger: logger}
}

// Complete sends one stage prompt and returns the raw text plus its leading prose.
func (s *CompletionService) Complete(ctx context.Context, req *interfaces.CompletionRequest) (*interfaces.CompletionResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("completion request for stage %q has no question", req.StageLabel)
	}

	provider := ParseProvider(req.Provider)
	if s.resolver != nil {
		provider = s.resolver.ResolveProvider(req.Provider, req.Model)
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	messages := []interfaces.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildUserPrompt(req)},
	}

	s.logger.Debug().
		Str("stage", req.StageLabel).
		Str("ticker", req.Ticker).
		Str("provider", string(provider)).
		Str("model", req.Model).
		Msg("Requesting completion")

	resp, err := s.generator.GenerateContent(ctx, &ContentRequest{
		Provider: provider,
		Model:    req.Model,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("%s completion failed: %w", req.StageLabel, err)
	}

	return &interfaces.CompletionResponse{
		RawResponse: resp.Text,
		Summary:     LeadingProse(resp.Text),
		Provider:    string(resp.Provider),
		Model:       resp.Model,
	}, nil
}

func buildUserPrompt(req *interfaces.CompletionRequest) string {
	var b strings.Builder
	if req.CompanyName != "" || req.Ticker != "" {
		b.WriteString("Company: ")
		switch {
		case req.CompanyName != "" && req.Ticker != "":
			fmt.Fprintf(&b, "%s (%s)", req.CompanyName, req.Ticker)
		case req.CompanyName != "":
			b.WriteString(req.CompanyName)
		default:
			b.WriteString(req.Ticker)
		}
		b.WriteString("\n")
	}
	if req.Timeframe != "" {
		fmt.Fprintf(&b, "Timeframe: %s\n", req.Timeframe)
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(req.Question)
	return b.String()
}
