package addons

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/services/rating"
)

type snapshotView struct {
	Ticker      string         `yaml:"ticker,omitempty"`
	CompanyName string         `yaml:"company_name,omitempty"`
	Scores      scoresView     `yaml:"scores"`
	Flags       flagsView      `yaml:"flags"`
	Metrics     map[string]any `yaml:"metrics,omitempty"`
}

type scoresView struct {
	Risk      string `yaml:"risk"`
	Quality   string `yaml:"quality"`
	Timing    string `yaml:"timing"`
	Composite string `yaml:"composite"`
}

type flagsView struct {
	DebtStress     *bool    `yaml:"debt_stress_flag,omitempty"`
	LiquidityRisk  *bool    `yaml:"liquidity_risk_flag,omitempty"`
	DividendAtRisk *bool    `yaml:"dividend_at_risk_flag,omitempty"`
	FraudRed       *bool    `yaml:"fraud_red_flag,omitempty"`
	Other          []string `yaml:"other_flags,omitempty"`
}

func newFlagsView(f models.Flags) flagsView {
	return flagsView{
		DebtStress:     f.DebtStressFlag,
		LiquidityRisk:  f.LiquidityRiskFlag,
		DividendAtRisk: f.DividendAtRiskFlag,
		FraudRed:       f.FraudRedFlag,
		Other:          f.OtherFlags,
	}
}

func formatScore(v *float64, label func(float64) string) string {
	if v == nil {
		return "unknown"
	}
	if label == nil {
		return fmt.Sprintf("%.1f", *v)
	}
	if l := label(*v); l != "" {
		return fmt.Sprintf("%.1f (%s)", *v, l)
	}
	return fmt.Sprintf("%.1f", *v)
}

// renderSnapshot writes the company state as YAML for embedding in prompts.
func renderSnapshot(job *models.AnalysisJob, row *models.UniverseRow, scores models.Scores, flags models.Flags) string {
	view := snapshotView{
		Ticker:      job.Ticker,
		CompanyName: job.CompanyName,
		Scores: scoresView{
			Risk:      formatScore(scores.Risk, rating.MapRiskLabel),
			Quality:   formatScore(scores.Quality, rating.MapQualityLabel),
			Timing:    formatScore(scores.Timing, rating.MapTimingLabel),
			Composite: formatScore(scores.Composite, nil),
		},
		Flags: newFlagsView(flags),
	}
	if row != nil {
		view.Metrics = row.Metrics
	}

	out, err := yaml.Marshal(view)
	if err != nil {
		return fmt.Sprintf("ticker: %s\ncompany_name: %s\n", job.Ticker, job.CompanyName)
	}
	return string(out)
}

// excerpt cuts s to at most n runes on a word boundary where possible.
func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:n])
	if i := strings.LastIndexAny(cut, " \n"); i >= 0 && utf8.RuneCountInString(cut[:i]) > n/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
