// Package rating maps analysis scores to labels and merges module output into
// the running score and flag state. All functions are stateless and perform no I/O.
package rating

import (
	"math"
	"strings"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
)

// Risk labels
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// Quality labels, best first
const (
	QualityWorldClass = "World Class"
	QualityExcellent  = "Excellent"
	QualityVeryStrong = "Very Strong"
	QualityStrong     = "Strong"
	QualityGood       = "Good"
	QualityAverage    = "Average"
	QualityWeak       = "Weak"
	QualityPoor       = "Poor"
	QualityHorrific   = "Horrific"
)

// Timing labels
const (
	TimingBuy   = "Buy"
	TimingHold  = "Hold"
	TimingWait  = "Wait"
	TimingAvoid = "Avoid"
)

type threshold struct {
	min   float64
	label string
}

var qualityThresholds = []threshold{
	{9, QualityWorldClass},
	{8, QualityExcellent},
	{7, QualityVeryStrong},
	{6, QualityStrong},
	{5, QualityGood},
	{4, QualityAverage},
	{3, QualityWeak},
	{2, QualityPoor},
}

// labelRule maps a label back to a representative score. Rules are evaluated
// top to bottom and the first match wins, so more specific labels come first.
type labelRule struct {
	match func(label string) bool
	value float64
}

func contains(substr string) func(string) bool {
	return func(label string) bool { return strings.Contains(label, substr) }
}

func always(string) bool { return true }

// "very strong" must be tried before "strong"
var qualityRules = []labelRule{
	{contains("world class"), 9.5},
	{contains("excellent"), 8.5},
	{contains("very strong"), 7.5},
	{contains("strong"), 6.5},
	{contains("good"), 5.5},
	{contains("average"), 4.5},
	{contains("weak"), 3.5},
	{contains("poor"), 2.5},
	{always, 1.5},
}

var timingRules = []labelRule{
	{contains("buy"), 8},
	{contains("hold"), 6},
	{contains("wait"), 4},
	{always, 2},
}

var riskRules = []labelRule{
	{func(l string) bool { return l == "low" }, 8},
	{func(l string) bool { return l == "medium" }, 5.5},
	{always, 3},
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// MapRiskLabel returns the risk label for score, or "" when score is not finite.
func MapRiskLabel(score float64) string {
	switch {
	case !isFinite(score):
		return ""
	case score >= 7:
		return RiskLow
	case score >= 4:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// MapQualityLabel returns the quality label for score, or "" when score is not finite.
func MapQualityLabel(score float64) string {
	if !isFinite(score) {
		return ""
	}
	for _, t := range qualityThresholds {
		if score >= t.min {
			return t.label
		}
	}
	return QualityHorrific
}

// MapTimingLabel returns the timing label for score, or "" when score is not finite.
func MapTimingLabel(score float64) string {
	switch {
	case !isFinite(score):
		return ""
	case score >= 7:
		return TimingBuy
	case score >= 5:
		return TimingHold
	case score >= 3:
		return TimingWait
	default:
		return TimingAvoid
	}
}

func applyRules(rules []labelRule, label string) *float64 {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if normalized == "" {
		return nil
	}
	for _, r := range rules {
		if r.match(normalized) {
			v := r.value
			return &v
		}
	}
	return nil
}

// RiskScoreFromLabel returns the representative risk score for label, nil when empty.
func RiskScoreFromLabel(label string) *float64 { return applyRules(riskRules, label) }

// QualityScoreFromLabel returns the representative quality score for label, nil when empty.
func QualityScoreFromLabel(label string) *float64 { return applyRules(qualityRules, label) }

// TimingScoreFromLabel returns the representative timing score for label, nil when empty.
func TimingScoreFromLabel(label string) *float64 { return applyRules(timingRules, label) }

// DeriveMetaFromScores regenerates the label view of s. Absent or non-finite
// scores produce no label. Composite is copied through unchanged.
func DeriveMetaFromScores(s models.Scores) models.Meta {
	var meta models.Meta
	if s.Risk != nil {
		meta.RiskLabel = MapRiskLabel(*s.Risk)
	}
	if s.Quality != nil {
		meta.QualityLabel = MapQualityLabel(*s.Quality)
	}
	if s.Timing != nil {
		meta.TimingLabel = MapTimingLabel(*s.Timing)
	}
	if s.Composite != nil && isFinite(*s.Composite) {
		meta.CompositeScore = Float(*s.Composite)
	}
	return meta
}

// DeriveNumericScoresFromMeta approximates scores from labels. The result is
// lossy: a label maps to a representative value, not the original score.
func DeriveNumericScoresFromMeta(m models.Meta) models.Scores {
	scores := models.Scores{
		Risk:    RiskScoreFromLabel(m.RiskLabel),
		Quality: QualityScoreFromLabel(m.QualityLabel),
		Timing:  TimingScoreFromLabel(m.TimingLabel),
	}
	if m.CompositeScore != nil && isFinite(*m.CompositeScore) {
		scores.Composite = Float(*m.CompositeScore)
	}
	return scores
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
