package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/interfaces"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/services/llm"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/services/rating"
)

// DeepDiveStageLabel is the completion stage label of the base analysis.
const DeepDiveStageLabel = "deep_dive"

// DeepDiveAnalyzer runs the base analysis through the completion service.
type DeepDiveAnalyzer struct {
	completion interfaces.CompletionService
	question   string
	timeframe  string
	logger     arbor.ILogger
}

var _ interfaces.DeepDiveAnalyzer = (*DeepDiveAnalyzer)(nil)

// NewDeepDiveAnalyzer creates the default deep-dive stage.
func NewDeepDiveAnalyzer(completion interfaces.CompletionService, question, timeframe string, logger arbor.ILogger) *DeepDiveAnalyzer {
	return &DeepDiveAnalyzer{
		completion: completion,
		question:   question,
		timeframe:  timeframe,
		logger:     logger,
	}
}

// Analyze asks for a prose analysis ending in a JSON score block. A response
// with no JSON at all is accepted as prose only; malformed JSON is an error.
func (a *DeepDiveAnalyzer) Analyze(ctx context.Context, req *interfaces.DeepDiveRequest) (*interfaces.DeepDiveResult, error) {
	resp, err := a.completion.Complete(ctx, &interfaces.CompletionRequest{
		Provider:    req.Provider,
		Model:       req.Model,
		Ticker:      req.Job.Ticker,
		CompanyName: req.Job.CompanyName,
		Question:    a.buildPrompt(req),
		Timeframe:   a.timeframe,
		StageLabel:  DeepDiveStageLabel,
	})
	if err != nil {
		return nil, err
	}

	result := &interfaces.DeepDiveResult{
		Summary:     resp.Summary,
		RawResponse: resp.RawResponse,
		Provider:    resp.Provider,
		Model:       resp.Model,
	}

	raw, err := llm.ExtractJSONBlock(resp.RawResponse)
	switch {
	case errors.Is(err, llm.ErrNoContent):
		a.logger.Warn().
			Str("job_id", req.Job.ID).
			Str("ticker", req.Job.Ticker).
			Msg("Deep dive returned no score block, keeping prose only")
		return result, nil
	case err != nil:
		return nil, err
	}

	scoreMap, _ := raw["scores"].(map[string]any)
	if scoreMap == nil {
		scoreMap = raw
	}
	numeric := rating.ScoresFromMap(scoreMap)
	fromLabels := rating.DeriveNumericScoresFromMeta(models.Meta{
		RiskLabel:    labelField(raw, "risk_label"),
		QualityLabel: labelField(raw, "quality_label"),
		TimingLabel:  labelField(raw, "timing_label"),
	})
	result.Scores = rating.MergeScores(fromLabels, numeric)

	if s := labelField(raw, "summary"); s != "" {
		result.Summary = s
	}

	return result, nil
}

func (a *DeepDiveAnalyzer) buildPrompt(req *interfaces.DeepDiveRequest) string {
	var b strings.Builder
	b.WriteString(a.question)
	b.WriteString("\n")

	if row := req.Snapshot; row != nil {
		prior := rating.ResolveSnapshotScores(row)
		if !prior.IsEmpty() {
			meta := rating.DeriveMetaFromScores(prior)
			b.WriteString("\nPrevious ratings on file:\n")
			writeScore(&b, "risk", prior.Risk, meta.RiskLabel)
			writeScore(&b, "quality", prior.Quality, meta.QualityLabel)
			writeScore(&b, "timing", prior.Timing, meta.TimingLabel)
			writeScore(&b, "composite", prior.Composite, "")
		}
		if row.DeepDiveSummary != "" {
			fmt.Fprintf(&b, "\nPrevious deep-dive summary:\n%s\n", row.DeepDiveSummary)
		}
	}

	b.WriteString(`
Score the company from 0 to 10 on risk (10 = safest), quality (10 = world class) and timing (10 = compelling entry now), plus an overall composite.
Write the analysis first, then end with a single JSON object in a ` + "```json" + ` block:
{"summary": string, "scores": {"risk": number, "quality": number, "timing": number, "composite": number}}
`)
	return b.String()
}

func writeScore(b *strings.Builder, name string, v *float64, label string) {
	if v == nil {
		return
	}
	if label != "" {
		fmt.Fprintf(b, "- %s: %.1f (%s)\n", name, *v, label)
		return
	}
	fmt.Fprintf(b, "- %s: %.1f\n", name, *v)
}

func labelField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
