package llm

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/common"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
)

type claudeBackend struct {
	config *common.ClaudeConfig
	client anthropic.Client
}

func newClaudeBackend(config *common.ClaudeConfig) (*claudeBackend, error) {
	if config.APIKey == "" {
		return nil, &common.ConfigurationError{Field: "claude.api_key"}
	}
	return &claudeBackend{
		config: config,
		client: anthropic.NewClient(option.WithAPIKey(config.APIKey)),
	}, nil
}

func (b *claudeBackend) defaultModel() string { return b.config.Model }

func (b *claudeBackend) timeout() time.Duration {
	return common.ParseDurationOr(b.config.Timeout, 2*time.Minute)
}

func (b *claudeBackend) generate(ctx context.Context, model, system string, messages []interfaces.Message, request *ContentRequest) (string, error) {
	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = b.config.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  toClaudeMessages(messages),
	}
	if temp := firstPositive(request.Temperature, b.config.Temperature); temp > 0 {
		params.Temperature = anthropic.Float(float64(temp))
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}

// toClaudeMessages maps the conversation; anything not from the assistant is
// sent as a user turn.
func toClaudeMessages(messages []interfaces.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropic.NewUserMessage(block))
	}
	return out
}

func firstPositive(values ...float32) float32 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
