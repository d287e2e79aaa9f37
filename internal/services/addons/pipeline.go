package addons

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/services/rating"
)

// PipelineInput is the state after the deep-dive stage.
type PipelineInput struct {
	Job      *models.AnalysisJob
	Provider string
	Model    string
	Snapshot *models.UniverseRow

	Scores  models.Scores
	Meta    models.Meta
	Flags   models.Flags
	Summary string // Current universe-table summary

	PriorStageSummary string
}

// PipelineResult is the folded outcome of the add-on stage.
type PipelineResult struct {
	Selection *models.AddonSelection
	Deltas    []*models.Delta
	Executed  []string
	Skipped   []string // Selected ids with no registered module

	Scores  models.Scores
	Meta    models.Meta
	Flags   models.Flags
	Summary string
	Notes   []string

	ShortCircuited bool
}

type selector interface {
	Select(ctx context.Context, in SelectorInput) (*models.AddonSelection, error)
}

// Pipeline selects add-on modules and runs them in order, folding each delta
// into the running scores and flags before the next module is prompted.
type Pipeline struct {
	selector selector
	registry *Registry
	logger   arbor.ILogger
}

// NewPipeline creates an add-on pipeline.
func NewPipeline(sel *Selector, registry *Registry, logger arbor.ILogger) *Pipeline {
	return &Pipeline{selector: sel, registry: registry, logger: logger}
}

// Run executes the add-on stage. When the selector declines, or selects
// nothing, the input flags, meta and summary are returned unchanged.
// A module error aborts the stage and is returned to the caller.
func (p *Pipeline) Run(ctx context.Context, in PipelineInput) (*PipelineResult, error) {
	selection, err := p.selector.Select(ctx, SelectorInput{
		Job:               in.Job,
		Provider:          in.Provider,
		Model:             in.Model,
		Snapshot:          in.Snapshot,
		Scores:            in.Scores,
		Flags:             in.Flags,
		PriorStageSummary: in.PriorStageSummary,
	})
	if err != nil {
		return nil, err
	}

	if !selection.ShouldRun() {
		p.logger.Info().
			Str("job_id", in.Job.ID).
			Str("ticker", in.Job.Ticker).
			Bool("run_addons", selection.RunAddons).
			Msg("Add-on selector chose no modules")
		return &PipelineResult{
			Selection:      selection,
			Scores:         in.Scores,
			Meta:           in.Meta,
			Flags:          in.Flags,
			Summary:        in.Summary,
			ShortCircuited: true,
		}, nil
	}

	result := &PipelineResult{
		Selection: selection,
		Scores:    in.Scores,
		Flags:     in.Flags,
	}
	var summaries []string
	var findings []string

	// Sequential: each prompt depends on the scores left by the previous module
	for _, selected := range selection.SelectedModules {
		executor, ok := p.registry.Lookup(selected.ID)
		if !ok {
			p.logger.Warn().
				Str("job_id", in.Job.ID).
				Str("module_id", selected.ID).
				Msg("Skipping unknown add-on module")
			result.Skipped = append(result.Skipped, selected.ID)
			continue
		}

		delta, err := executor.Execute(ctx, ModuleInput{
			Job:               in.Job,
			Provider:          in.Provider,
			Model:             in.Model,
			Snapshot:          in.Snapshot,
			Selection:         selected,
			Scores:            result.Scores,
			Flags:             result.Flags,
			PriorStageSummary: in.PriorStageSummary,
			EarlierFindings:   findings,
		})
		if err != nil {
			return nil, fmt.Errorf("add-on %s: %w", selected.ID, err)
		}

		result.Scores = rating.MergeScores(result.Scores, delta.NewScores)
		result.Flags = rating.MergeFlags(result.Flags, delta.UniverseFlags)
		result.Deltas = append(result.Deltas, delta)
		result.Executed = append(result.Executed, selected.ID)

		if delta.SummaryForUniverseTable != "" {
			summaries = append(summaries, delta.SummaryForUniverseTable)
			findings = append(findings, fmt.Sprintf("%s: %s", delta.ModuleName, delta.SummaryForUniverseTable))
		}
		if delta.NotesForHumanAnalyst != "" {
			result.Notes = append(result.Notes, fmt.Sprintf("%s: %s", delta.ModuleName, delta.NotesForHumanAnalyst))
		}
	}

	result.Meta = rating.DeriveMetaFromScores(result.Scores)
	result.Summary = in.Summary
	if len(summaries) > 0 {
		result.Summary = strings.Join(summaries, " | ")
	}

	p.logger.Info().
		Str("job_id", in.Job.ID).
		Str("ticker", in.Job.Ticker).
		Strs("executed", result.Executed).
		Strs("skipped", result.Skipped).
		Msg("Add-on modules completed")

	return result, nil
}
