package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/common"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
)

func newTestFactory(defaultProvider common.LLMProvider) *ProviderFactory {
	return NewProviderFactory(
		&common.GeminiConfig{Model: "gemini-2.5-flash"},
		&common.ClaudeConfig{Model: "claude-sonnet-4-20250514", MaxTokens: 1024},
		&common.LLMConfig{DefaultProvider: defaultProvider},
		arbor.NewLogger(),
	)
}

func TestDetectProvider(t *testing.T) {
	f := newTestFactory(common.LLMProviderGemini)

	tests := []struct {
		model string
		want  ProviderType
	}{
		{"", ProviderGemini},
		{"claude-sonnet-4-20250514", ProviderClaude},
		{"anthropic/claude-3-haiku", ProviderClaude},
		{"gemini-2.5-pro", ProviderGemini},
		{"google/gemini-2.5-pro", ProviderGemini},
		{"some-other-model", ProviderGemini},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, f.DetectProvider(tt.model), "model %q", tt.model)
	}
}

func TestResolveProvider_ExplicitWins(t *testing.T) {
	f := newTestFactory(common.LLMProviderGemini)

	assert.Equal(t, ProviderClaude, f.ResolveProvider("anthropic", "gemini-2.5-pro"))
	assert.Equal(t, ProviderGemini, f.ResolveProvider("Google", ""))
	assert.Equal(t, ProviderClaude, f.ResolveProvider("", "claude-3-opus"))
	assert.Equal(t, ProviderClaude, newTestFactory(common.LLMProviderClaude).ResolveProvider("unknown", ""))
}

func TestNormalizeModel(t *testing.T) {
	f := newTestFactory(common.LLMProviderGemini)

	assert.Equal(t, "claude-3-haiku", f.NormalizeModel("claude/claude-3-haiku"))
	assert.Equal(t, "gemini-2.5-pro", f.NormalizeModel("Google/gemini-2.5-pro"))
	assert.Equal(t, "gemini-2.5-pro", f.NormalizeModel("gemini-2.5-pro"))
}

func TestGetDefaultModel(t *testing.T) {
	f := newTestFactory(common.LLMProviderGemini)

	assert.Equal(t, "claude-sonnet-4-20250514", f.GetDefaultModel(ProviderClaude))
	assert.Equal(t, "gemini-2.5-flash", f.GetDefaultModel(ProviderGemini))
}

func TestGenerateContent_MissingAPIKeyIsConfigurationError(t *testing.T) {
	f := newTestFactory(common.LLMProviderClaude)

	_, err := f.GenerateContent(context.Background(), &ContentRequest{
		Messages: []interfaces.Message{{Role: "user", Content: "hi"}},
	})

	var cfgErr *common.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "claude.api_key", cfgErr.Field)
}

func TestSplitSystemAndConvert(t *testing.T) {
	messages := []interfaces.Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "analyze ABC"},
		{Role: "system", Content: "ignored"},
		{Role: "assistant", Content: "ok"},
	}

	system, rest, err := splitSystem(messages)
	require.NoError(t, err)
	assert.Equal(t, "be terse", system)
	require.Len(t, rest, 2)

	assert.Len(t, toClaudeMessages(rest), 2)

	contents := toGeminiContents(rest)
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)

	_, _, err = splitSystem([]interfaces.Message{{Role: "system", Content: "x"}})
	assert.Error(t, err)
	_, _, err = splitSystem(nil)
	assert.Error(t, err)
}

func TestGenerateContent_RejectsConversationWithoutUser(t *testing.T) {
	f := newTestFactory(common.LLMProviderGemini)

	_, err := f.GenerateContent(context.Background(), &ContentRequest{
		Messages: []interfaces.Message{{Role: "system", Content: "x"}},
	})
	require.Error(t, err)

	var cfgErr *common.ConfigurationError
	assert.False(t, errors.As(err, &cfgErr))
}
