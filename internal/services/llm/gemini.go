package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/common"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
)

type geminiBackend struct {
	config *common.GeminiConfig
	client *genai.Client
}

func newGeminiBackend(ctx context.Context, config *common.GeminiConfig) (*geminiBackend, error) {
	if config.APIKey == "" {
		return nil, &common.ConfigurationError{Field: "gemini.api_key"}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiBackend{config: config, client: client}, nil
}

func (b *geminiBackend) defaultModel() string { return b.config.Model }

func (b *geminiBackend) timeout() time.Duration {
	return common.ParseDurationOr(b.config.Timeout, 2*time.Minute)
}

func (b *geminiBackend) generate(ctx context.Context, model, system string, messages []interfaces.Message, request *ContentRequest) (string, error) {
	config := &genai.GenerateContentConfig{}
	if temp := firstPositive(request.Temperature, b.config.Temperature); temp > 0 {
		config.Temperature = genai.Ptr(temp)
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := b.client.Models.GenerateContent(ctx, model, toGeminiContents(messages), config)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", nil
	}
	return resp.Text(), nil
}

// toGeminiContents maps the conversation; assistant turns use the model role.
func toGeminiContents(messages []interfaces.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := genai.RoleUser
		if msg.Role == "assistant" {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}
	return out
}
