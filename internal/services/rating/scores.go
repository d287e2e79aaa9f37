package rating

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
)

// CoerceNumber converts a loosely typed JSON value to a finite float64.
// Strings are parsed; empty strings, booleans, nulls and non-finite values
// report ok=false.
func CoerceNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if !isFinite(f) {
		return 0, false
	}
	return f, true
}

// ScoresFromMap reads new_scores from a parsed delta. Keys that do not
// coerce to a finite number are left absent.
func ScoresFromMap(m map[string]any) models.Scores {
	var s models.Scores
	if m == nil {
		return s
	}
	if v, ok := CoerceNumber(m["risk"]); ok {
		s.Risk = Float(v)
	}
	if v, ok := CoerceNumber(m["quality"]); ok {
		s.Quality = Float(v)
	}
	if v, ok := CoerceNumber(m["timing"]); ok {
		s.Timing = Float(v)
	}
	composite, ok := CoerceNumber(m["composite"])
	if !ok {
		composite, ok = CoerceNumber(m["composite_score"])
	}
	if ok {
		s.Composite = Float(composite)
	}
	return s
}

// MergeScores overlays incoming on current. Only finite incoming values
// overwrite; everything else keeps the current value.
func MergeScores(current, incoming models.Scores) models.Scores {
	merged := models.Scores{
		Risk:      copyFloat(current.Risk),
		Quality:   copyFloat(current.Quality),
		Timing:    copyFloat(current.Timing),
		Composite: copyFloat(current.Composite),
	}
	if incoming.Risk != nil && isFinite(*incoming.Risk) {
		merged.Risk = Float(*incoming.Risk)
	}
	if incoming.Quality != nil && isFinite(*incoming.Quality) {
		merged.Quality = Float(*incoming.Quality)
	}
	if incoming.Timing != nil && isFinite(*incoming.Timing) {
		merged.Timing = Float(*incoming.Timing)
	}
	if incoming.Composite != nil && isFinite(*incoming.Composite) {
		merged.Composite = Float(*incoming.Composite)
	}
	return merged
}

// ResolveSnapshotScores returns the numeric scores of a universe row, filling
// any missing score from its label.
func ResolveSnapshotScores(row *models.UniverseRow) models.Scores {
	if row == nil {
		return models.Scores{}
	}
	fromLabels := DeriveNumericScoresFromMeta(row.Meta)
	return MergeScores(fromLabels, row.Scores)
}

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return Float(*p)
}
