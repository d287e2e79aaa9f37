package rating

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Multiproject-EJ/alphastocks.ai-sub002/internal/models"
)

func TestMergeFlags_OverwritesAndUnions(t *testing.T) {
	existing := models.Flags{DebtStressFlag: Bool(false), OtherFlags: []string{"legacy"}}
	incoming := models.Flags{DebtStressFlag: Bool(true), OtherFlags: []string{"new", "legacy"}}

	got := MergeFlags(existing, incoming)

	require.NotNil(t, got.DebtStressFlag)
	assert.True(t, *got.DebtStressFlag)
	assert.Equal(t, []string{"legacy", "new"}, got.OtherFlags)
}

func TestMergeFlags_OverwriteIsNotOr(t *testing.T) {
	existing := models.Flags{FraudRedFlag: Bool(true), LiquidityRiskFlag: Bool(true)}
	incoming := models.Flags{FraudRedFlag: Bool(false)}

	got := MergeFlags(existing, incoming)

	assert.False(t, *got.FraudRedFlag)
	assert.True(t, *got.LiquidityRiskFlag, "absent key keeps the existing value")
	assert.Nil(t, got.DividendAtRiskFlag)
}

func TestMergeFlags_EmptyOtherFlagsOmitted(t *testing.T) {
	got := MergeFlags(models.Flags{}, models.Flags{OtherFlags: []string{}})
	assert.Nil(t, got.OtherFlags)
}

func TestMergeFlags_Idempotent(t *testing.T) {
	existing := models.Flags{
		DebtStressFlag: Bool(false),
		FraudRedFlag:   Bool(true),
		OtherFlags:     []string{"legacy", "going_concern"},
	}
	incoming := models.Flags{
		DebtStressFlag:     Bool(true),
		DividendAtRiskFlag: Bool(true),
		OtherFlags:         []string{"covenant_breach", "legacy", "covenant_breach"},
	}

	once := MergeFlags(existing, incoming)
	twice := MergeFlags(once, incoming)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second merge changed flags (-once +twice):\n%s", diff)
	}
	assert.Equal(t, []string{"legacy", "going_concern", "covenant_breach"}, once.OtherFlags)
}

func TestMergeFlags_DoesNotAliasInputs(t *testing.T) {
	existing := models.Flags{DebtStressFlag: Bool(true)}
	got := MergeFlags(existing, models.Flags{})

	*got.DebtStressFlag = false
	assert.True(t, *existing.DebtStressFlag)
}

func TestFlagsFromMap(t *testing.T) {
	raw := map[string]any{
		"debt_stress_flag":      "yes",
		"liquidity_risk_flag":   nil,
		"dividend_at_risk_flag": "no",
		"fraud_red_flag":        true,
		"other_flags":           []any{"negative_fcf", 7, " ", "dilution"},
	}

	got := FlagsFromMap(raw)

	want := models.Flags{
		DebtStressFlag:     Bool(true),
		LiquidityRiskFlag:  Bool(false),
		DividendAtRiskFlag: Bool(false),
		FraudRedFlag:       Bool(true),
		OtherFlags:         []string{"negative_fcf", "dilution"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FlagsFromMap mismatch (-want +got):\n%s", diff)
	}
}

func TestFlagsFromMap_AbsentKeysStayUndefined(t *testing.T) {
	got := FlagsFromMap(map[string]any{"fraud_red_flag": "1"})

	assert.Nil(t, got.DebtStressFlag)
	assert.Nil(t, got.LiquidityRiskFlag)
	assert.Nil(t, got.DividendAtRiskFlag)
	require.NotNil(t, got.FraudRedFlag)
	assert.True(t, *got.FraudRedFlag)
	assert.Nil(t, got.OtherFlags)
}

func TestCoerceBool(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{true, true},
		{false, false},
		{"TRUE", true},
		{" yes ", true},
		{"1", true},
		{"false", false},
		{"maybe", false},
		{float64(1), true},
		{float64(0), false},
		{nil, false},
		{[]any{}, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CoerceBool(tt.in), "CoerceBool(%#v)", tt.in)
	}
}
