package rating

import (
	"strings"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
)

// Universe flag keys as they appear in module output
const (
	FlagDebtStress     = "debt_stress_flag"
	FlagLiquidityRisk  = "liquidity_risk_flag"
	FlagDividendAtRisk = "dividend_at_risk_flag"
	FlagFraudRed       = "fraud_red_flag"
	FlagOther          = "other_flags"
)

// CoerceBool converts a loosely typed JSON value to a boolean.
// Strings "true", "yes" and "1" are true; null and everything unrecognised is false.
func CoerceBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "1":
			return true
		}
		return false
	case float64:
		return b != 0 && isFinite(b)
	case int:
		return b != 0
	default:
		return false
	}
}

// FlagsFromMap reads universe_flags from a parsed delta. A boolean key that is
// present counts as defined even when its value is null.
func FlagsFromMap(m map[string]any) models.Flags {
	var f models.Flags
	if m == nil {
		return f
	}
	read := func(key string) *bool {
		v, ok := m[key]
		if !ok {
			return nil
		}
		b := CoerceBool(v)
		return &b
	}
	f.DebtStressFlag = read(FlagDebtStress)
	f.LiquidityRiskFlag = read(FlagLiquidityRisk)
	f.DividendAtRiskFlag = read(FlagDividendAtRisk)
	f.FraudRedFlag = read(FlagFraudRed)
	f.OtherFlags = stringList(m[FlagOther])
	return f
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case []string:
		return append([]string(nil), list...)
	case string:
		if s := strings.TrimSpace(list); s != "" {
			return []string{s}
		}
	}
	return nil
}

// MergeFlags folds incoming into existing. Defined incoming booleans overwrite
// (they are not OR'd). other_flags is the de-duplicated union with existing
// entries first; an empty union is returned as nil. Merging the same incoming
// flags twice gives the same result as merging once.
func MergeFlags(existing, incoming models.Flags) models.Flags {
	return models.Flags{
		DebtStressFlag:     pickBool(existing.DebtStressFlag, incoming.DebtStressFlag),
		LiquidityRiskFlag:  pickBool(existing.LiquidityRiskFlag, incoming.LiquidityRiskFlag),
		DividendAtRiskFlag: pickBool(existing.DividendAtRiskFlag, incoming.DividendAtRiskFlag),
		FraudRedFlag:       pickBool(existing.FraudRedFlag, incoming.FraudRedFlag),
		OtherFlags:         unionStrings(existing.OtherFlags, incoming.OtherFlags),
	}
}

func pickBool(existing, incoming *bool) *bool {
	src := existing
	if incoming != nil {
		src = incoming
	}
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func unionStrings(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	var out []string
	for _, list := range [][]string{existing, incoming} {
		for _, s := range list {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}
