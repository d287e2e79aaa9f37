package addons

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/schemas"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/services/llm"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/services/rating"
)

// StageLabelPrefix prefixes the completion stage label of every module call.
const StageLabelPrefix = "addon:"

// promptModule is a catalogue-driven module: one prompt, one completion, one delta.
type promptModule struct {
	spec          ModuleSpec
	completion    interfaces.CompletionService
	timeframe     string
	excerptLength int
	logger        arbor.ILogger
}

// NewPromptModule creates an executor for a catalogue entry.
func NewPromptModule(spec ModuleSpec, completion interfaces.CompletionService, opts Options, logger arbor.ILogger) ModuleExecutor {
	return &promptModule{
		spec:          spec,
		completion:    completion,
		timeframe:     opts.Timeframe,
		excerptLength: opts.ExcerptLength,
		logger:        logger,
	}
}

// NewCatalogueRegistry registers a prompt module for every catalogue entry.
func NewCatalogueRegistry(catalogue []ModuleSpec, completion interfaces.CompletionService, opts Options, logger arbor.ILogger) *Registry {
	r := NewRegistry()
	for _, spec := range catalogue {
		r.Register(NewPromptModule(spec, completion, opts, logger))
	}
	return r
}

func (m *promptModule) ID() string   { return m.spec.ID }
func (m *promptModule) Name() string { return m.spec.Name }

func (m *promptModule) Execute(ctx context.Context, in ModuleInput) (*models.Delta, error) {
	resp, err := m.completion.Complete(ctx, &interfaces.CompletionRequest{
		Provider:    in.Provider,
		Model:       in.Model,
		Ticker:      in.Job.Ticker,
		CompanyName: in.Job.CompanyName,
		Question:    m.buildPrompt(in),
		Timeframe:   m.timeframe,
		StageLabel:  StageLabelPrefix + m.spec.ID,
	})
	if err != nil {
		return nil, err
	}

	raw, err := llm.ExtractJSONBlock(resp.RawResponse)
	if err != nil {
		return nil, fmt.Errorf("module %s returned no usable delta: %w", m.spec.ID, err)
	}
	if err := schemas.Validate(schemas.ModuleDelta, raw); err != nil {
		return nil, fmt.Errorf("module %s: %w", m.spec.ID, err)
	}

	delta := &models.Delta{
		ModuleID:                stringField(raw, "module_id"),
		ModuleName:              stringField(raw, "module_name"),
		NewScores:               rating.ScoresFromMap(mapField(raw, "new_scores")),
		UniverseFlags:           rating.FlagsFromMap(mapField(raw, "universe_flags")),
		SummaryForUniverseTable: stringField(raw, "summary_for_universe_table"),
		NotesForHumanAnalyst:    stringField(raw, "notes_for_human_analyst"),
	}
	if delta.ModuleID == "" {
		delta.ModuleID = m.spec.ID
	}
	if delta.ModuleName == "" {
		delta.ModuleName = m.spec.Name
	}

	m.logger.Debug().
		Str("module_id", m.spec.ID).
		Str("ticker", in.Job.Ticker).
		Bool("scores_changed", !delta.NewScores.IsEmpty()).
		Msg("Add-on module produced delta")

	return delta, nil
}

func (m *promptModule) buildPrompt(in ModuleInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are running the %q add-on module (%s).\n", m.spec.Name, m.spec.ID)
	b.WriteString(strings.TrimSpace(m.spec.Instructions))
	b.WriteString("\n\n")

	if in.Selection.Reason != "" {
		fmt.Fprintf(&b, "Why this module was selected: %s\n", in.Selection.Reason)
	}
	if in.Selection.KeyQuestion != "" {
		fmt.Fprintf(&b, "Key question to answer: %s\n", in.Selection.KeyQuestion)
	}

	b.WriteString("\nCurrent state (scores are 0-10, higher is better):\n")
	b.WriteString(renderSnapshot(in.Job, in.Snapshot, in.Scores, in.Flags))

	if in.PriorStageSummary != "" {
		b.WriteString("\nExcerpt from the deep-dive analysis:\n\"\"\"\n")
		b.WriteString(excerpt(in.PriorStageSummary, m.excerptLength))
		b.WriteString("\n\"\"\"\n")
	}

	if len(in.EarlierFindings) > 0 {
		b.WriteString("\nFindings from add-on modules already run:\n")
		for _, f := range in.EarlierFindings {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	fmt.Fprintf(&b, `
Explain your findings briefly, then end with a single JSON object in a `+"```json"+` block:
{
  "module_id": %q,
  "module_name": %q,
  "new_scores": {"risk": number|null, "quality": number|null, "timing": number|null, "composite": number|null},
  "universe_flags": {%s"other_flags": [string]},
  "summary_for_universe_table": string,
  "notes_for_human_analyst": string
}
Only include a score in new_scores when your findings change it.
`, m.spec.ID, m.spec.Name, flagHint(m.spec.Flags))

	return b.String()
}

func flagHint(flags []string) string {
	var b strings.Builder
	for _, f := range flags {
		fmt.Fprintf(&b, "%q: boolean, ", f)
	}
	return b.String()
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func mapField(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}
