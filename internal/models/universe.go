package models

import (
	"time"
)

// Scores is the canonical numeric score state of a company. A nil field is absent.
type Scores struct {
	Risk      *float64 `json:"risk,omitempty"`
	Quality   *float64 `json:"quality,omitempty"`
	Timing    *float64 `json:"timing,omitempty"`
	Composite *float64 `json:"composite,omitempty"`
}

// IsEmpty reports whether no score is present.
func (s Scores) IsEmpty() bool {
	return s.Risk == nil && s.Quality == nil && s.Timing == nil && s.Composite == nil
}

// Meta holds labels derived from Scores. Never edited directly.
type Meta struct {
	RiskLabel      string   `json:"risk_label,omitempty"`
	QualityLabel   string   `json:"quality_label,omitempty"`
	TimingLabel    string   `json:"timing_label,omitempty"`
	CompositeScore *float64 `json:"composite_score,omitempty"`
}

// Flags are the universe risk flags. A nil boolean is "not defined".
type Flags struct {
	DebtStressFlag     *bool    `json:"debt_stress_flag,omitempty"`
	LiquidityRiskFlag  *bool    `json:"liquidity_risk_flag,omitempty"`
	DividendAtRiskFlag *bool    `json:"dividend_at_risk_flag,omitempty"`
	FraudRedFlag       *bool    `json:"fraud_red_flag,omitempty"`
	OtherFlags         []string `json:"other_flags,omitempty"`
}

// Delta is the structured output of one add-on module run.
type Delta struct {
	ModuleID                string `json:"module_id"`
	ModuleName              string `json:"module_name"`
	NewScores               Scores `json:"new_scores"`
	UniverseFlags           Flags  `json:"universe_flags"`
	SummaryForUniverseTable string `json:"summary_for_universe_table,omitempty"`
	NotesForHumanAnalyst    string `json:"notes_for_human_analyst,omitempty"`
}

// UniverseRow is the company entity a job analyzes.
type UniverseRow struct {
	Key         string         `json:"key" badgerhold:"key"`
	Ticker      string         `json:"ticker,omitempty"`
	CompanyName string         `json:"company_name,omitempty"`
	Scores      Scores         `json:"scores"`
	Meta        Meta           `json:"meta"`
	Flags       Flags          `json:"flags"`
	Metrics     map[string]any `json:"metrics,omitempty"` // Free-form fundamentals quoted into prompts

	DeepDiveSummary string `json:"deep_dive_summary,omitempty"`
	AddonSummary    string `json:"addon_summary,omitempty"`
	AnalystNotes    string `json:"analyst_notes,omitempty"`

	LastAnalyzedAt *time.Time `json:"last_analyzed_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// UniversePatch is written back after a job. Nil or empty fields leave the
// stored value untouched.
type UniversePatch struct {
	Ticker      string
	CompanyName string

	Scores Scores
	Meta   Meta
	Flags  Flags

	DeepDiveSummary *string
	AddonSummary    *string
	AnalystNotes    *string

	AnalyzedAt time.Time
}

// ApplyTo folds the patch into row in place.
func (p *UniversePatch) ApplyTo(row *UniverseRow) {
	if p.Ticker != "" {
		row.Ticker = p.Ticker
	}
	if p.CompanyName != "" {
		row.CompanyName = p.CompanyName
	}

	if p.Scores.Risk != nil {
		row.Scores.Risk = p.Scores.Risk
	}
	if p.Scores.Quality != nil {
		row.Scores.Quality = p.Scores.Quality
	}
	if p.Scores.Timing != nil {
		row.Scores.Timing = p.Scores.Timing
	}
	if p.Scores.Composite != nil {
		row.Scores.Composite = p.Scores.Composite
	}

	if p.Meta.RiskLabel != "" {
		row.Meta.RiskLabel = p.Meta.RiskLabel
	}
	if p.Meta.QualityLabel != "" {
		row.Meta.QualityLabel = p.Meta.QualityLabel
	}
	if p.Meta.TimingLabel != "" {
		row.Meta.TimingLabel = p.Meta.TimingLabel
	}
	if p.Meta.CompositeScore != nil {
		row.Meta.CompositeScore = p.Meta.CompositeScore
	}

	if p.Flags.DebtStressFlag != nil {
		row.Flags.DebtStressFlag = p.Flags.DebtStressFlag
	}
	if p.Flags.LiquidityRiskFlag != nil {
		row.Flags.LiquidityRiskFlag = p.Flags.LiquidityRiskFlag
	}
	if p.Flags.DividendAtRiskFlag != nil {
		row.Flags.DividendAtRiskFlag = p.Flags.DividendAtRiskFlag
	}
	if p.Flags.FraudRedFlag != nil {
		row.Flags.FraudRedFlag = p.Flags.FraudRedFlag
	}
	if len(p.Flags.OtherFlags) > 0 {
		row.Flags.OtherFlags = append([]string(nil), p.Flags.OtherFlags...)
	}

	if p.DeepDiveSummary != nil {
		row.DeepDiveSummary = *p.DeepDiveSummary
	}
	if p.AddonSummary != nil {
		row.AddonSummary = *p.AddonSummary
	}
	if p.AnalystNotes != nil {
		row.AnalystNotes = *p.AnalystNotes
	}

	if !p.AnalyzedAt.IsZero() {
		at := p.AnalyzedAt
		row.LastAnalyzedAt = &at
	}
}
