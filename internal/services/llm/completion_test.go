package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error) {
	args := m.Called(ctx, request)
	if resp, ok := args.Get(0).(*ContentResponse); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestCompletionService_Complete(t *testing.T) {
	gen := new(mockGenerator)
	svc := newCompletionServiceWithGenerator(gen, arbor.NewLogger())

	gen.On("GenerateContent", mock.Anything, mock.MatchedBy(func(r *ContentRequest) bool {
		return r.Provider == ProviderClaude &&
			r.Model == "claude-3-haiku" &&
			len(r.Messages) == 2 &&
			r.Messages[0].Role == "system" &&
			r.Messages[1].Content == "Company: Acme Corp (ABC)\nTimeframe: 12 months\n\nIs ABC a buy?"
	})).Return(&ContentResponse{
		Text:     "Acme looks cheap.\n```json\n{\"risk\": 6}\n```",
		Provider: ProviderClaude,
		Model:    "claude-3-haiku",
	}, nil).Once()

	resp, err := svc.Complete(context.Background(), &interfaces.CompletionRequest{
		Provider:    "claude",
		Model:       "claude-3-haiku",
		Ticker:      "ABC",
		CompanyName: "Acme Corp",
		Question:    "Is ABC a buy?",
		Timeframe:   "12 months",
		StageLabel:  "deep_dive",
	})

	require.NoError(t, err)
	assert.Equal(t, "Acme looks cheap.", resp.Summary)
	assert.Contains(t, resp.RawResponse, `"risk": 6`)
	assert.Equal(t, "claude", resp.Provider)
	gen.AssertExpectations(t)
}

func TestCompletionService_GeneratorError(t *testing.T) {
	gen := new(mockGenerator)
	svc := newCompletionServiceWithGenerator(gen, arbor.NewLogger())
	gen.On("GenerateContent", mock.Anything, mock.Anything).Return(nil, errors.New("upstream 500"))

	_, err := svc.Complete(context.Background(), &interfaces.CompletionRequest{Question: "q", StageLabel: "deep_dive"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "deep_dive completion failed")
	assert.Contains(t, err.Error(), "upstream 500")
}

func TestCompletionService_RejectsEmptyQuestion(t *testing.T) {
	gen := new(mockGenerator)
	svc := newCompletionServiceWithGenerator(gen, arbor.NewLogger())

	_, err := svc.Complete(context.Background(), &interfaces.CompletionRequest{StageLabel: "addon_selector"})

	assert.Error(t, err)
	gen.AssertNotCalled(t, "GenerateContent", mock.Anything, mock.Anything)
}
