package interfaces

import (
	"context"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
)

// Message represents a single message in a chat conversation
type Message struct {
	// Role identifies the message sender: "user", "assistant", or "system"
	Role string

	// Content contains the text content of the message
	Content string
}

// CompletionRequest is one call to the LLM completion service.
// Provider and Model may be empty; the service applies its defaults.
type CompletionRequest struct {
	Provider    string
	Model       string
	Ticker      string
	CompanyName string
	Question    string // The full prompt for this stage
	Timeframe   string
	StageLabel  string // e.g. "deep_dive", "addon_selector", "addon:debt_stress"

	SystemPrompt string
}

// CompletionResponse carries the free text returned by the model.
type CompletionResponse struct {
	RawResponse string
	Summary     string // Prose preceding any embedded JSON block
	Provider    string
	Model       string
}

// CompletionService sends prompts to an LLM provider.
type CompletionService interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// DeepDiveRequest is the base analysis stage input.
type DeepDiveRequest struct {
	Job      *models.AnalysisJob
	Provider string
	Model    string
	Snapshot *models.UniverseRow // Prior state; never nil
}

// DeepDiveResult is the base analysis stage output.
type DeepDiveResult struct {
	Summary     string
	RawResponse string
	Scores      models.Scores // Scores the model reported, if any
	Provider    string
	Model       string
}

// DeepDiveAnalyzer runs the base analysis stage for a job.
type DeepDiveAnalyzer interface {
	Analyze(ctx context.Context, req *DeepDiveRequest) (*DeepDiveResult, error)
}
