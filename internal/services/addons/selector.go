package addons

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/schemas"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/services/llm"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/services/rating"
)

// SelectorStageLabel is the completion stage label of the selector call.
const SelectorStageLabel = "addon_selector"

// Options are the prompt settings shared by the selector and modules.
type Options struct {
	Timeframe     string
	ExcerptLength int
}

// SelectorInput is the state the selector reasons over.
type SelectorInput struct {
	Job               *models.AnalysisJob
	Provider          string
	Model             string
	Snapshot          *models.UniverseRow
	Scores            models.Scores
	Flags             models.Flags
	PriorStageSummary string
}

// Selector asks the model which add-on modules should run for a company.
type Selector struct {
	completion interfaces.CompletionService
	catalogue  []ModuleSpec
	opts       Options
	validate   *validator.Validate
	logger     arbor.ILogger
}

// NewSelector creates a selector offering the given catalogue.
func NewSelector(completion interfaces.CompletionService, catalogue []ModuleSpec, opts Options, logger arbor.ILogger) *Selector {
	return &Selector{
		completion: completion,
		catalogue:  catalogue,
		opts:       opts,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Select returns the validated selection with modules ordered by ascending
// priority. A module without a usable priority counts as 0 and so runs before
// any module with a positive priority; ties keep the model's order.
func (s *Selector) Select(ctx context.Context, in SelectorInput) (*models.AddonSelection, error) {
	resp, err := s.completion.Complete(ctx, &interfaces.CompletionRequest{
		Provider:    in.Provider,
		Model:       in.Model,
		Ticker:      in.Job.Ticker,
		CompanyName: in.Job.CompanyName,
		Question:    s.buildPrompt(in),
		Timeframe:   s.opts.Timeframe,
		StageLabel:  SelectorStageLabel,
	})
	if err != nil {
		return nil, err
	}

	selection, err := s.parse(resp.RawResponse)
	if err != nil {
		return nil, err
	}
	selection.Explanation = resp.Summary

	s.logger.Debug().
		Str("ticker", in.Job.Ticker).
		Bool("run_addons", selection.RunAddons).
		Int("module_count", len(selection.SelectedModules)).
		Msg("Add-on selection parsed")

	return selection, nil
}

// parse turns a raw selector response into a sorted selection.
func (s *Selector) parse(text string) (*models.AddonSelection, error) {
	raw, err := llm.ExtractJSONBlock(text)
	if err != nil {
		return nil, fmt.Errorf("add-on selector: %w", err)
	}
	if err := schemas.Validate(schemas.AddonSelection, raw); err != nil {
		return nil, fmt.Errorf("add-on selector: %w", err)
	}

	selection := &models.AddonSelection{}
	selection.RunAddons, _ = raw["run_addons"].(bool)

	items, _ := raw["selected_modules"].([]any)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		priority, _ := rating.CoerceNumber(m["priority"])
		selection.SelectedModules = append(selection.SelectedModules, models.SelectedModule{
			ID:          strings.TrimSpace(stringField(m, "id")),
			Priority:    priority,
			Reason:      stringField(m, "reason"),
			KeyQuestion: stringField(m, "key_question"),
		})
	}

	if err := s.validate.Struct(selection); err != nil {
		return nil, fmt.Errorf("add-on selector: invalid selection: %w", err)
	}

	sort.SliceStable(selection.SelectedModules, func(i, j int) bool {
		return selection.SelectedModules[i].Priority < selection.SelectedModules[j].Priority
	})

	return selection, nil
}

func (s *Selector) buildPrompt(in SelectorInput) string {
	var b strings.Builder
	b.WriteString("A deep-dive analysis has just been completed for the company below. ")
	b.WriteString("Decide whether any specialised add-on modules should run to refine its scores and risk flags.\n\n")

	b.WriteString("Current state (scores are 0-10, higher is better):\n")
	b.WriteString(renderSnapshot(in.Job, in.Snapshot, in.Scores, in.Flags))

	if in.PriorStageSummary != "" {
		b.WriteString("\nDeep-dive summary:\n\"\"\"\n")
		b.WriteString(excerpt(in.PriorStageSummary, s.opts.ExcerptLength))
		b.WriteString("\n\"\"\"\n")
	}

	b.WriteString("\nAvailable modules:\n")
	for _, m := range s.catalogue {
		fmt.Fprintf(&b, "- %s: %s. %s\n", m.ID, m.Name, m.Description)
	}

	b.WriteString(`
Only select modules whose question is open after the deep dive. Explain your choice briefly, then end with a single JSON object in a ` + "```json" + ` block:
{
  "run_addons": boolean,
  "selected_modules": [
    {"id": string, "priority": number, "reason": string, "key_question": string}
  ]
}
Lower priority numbers run first. Use "run_addons": false and an empty list when nothing is needed.
`)
	return b.String()
}
