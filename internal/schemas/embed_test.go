package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_AllEmbeddedSchemas(t *testing.T) {
	for _, name := range []string{AddonSelection, ModuleDelta} {
		s, err := Compile(name)
		require.NoError(t, err, name)
		assert.NotNil(t, s)
	}
}

func TestValidate_AddonSelection(t *testing.T) {
	valid := map[string]any{
		"run_addons": true,
		"selected_modules": []any{
			map[string]any{"id": "debt_stress", "priority": float64(1)},
			map[string]any{"id": "liquidity", "priority": "2", "reason": nil},
			map[string]any{"id": "fraud_forensics"},
		},
	}
	assert.NoError(t, Validate(AddonSelection, valid))

	assert.Error(t, Validate(AddonSelection, map[string]any{"run_addons": "yes"}))
	assert.Error(t, Validate(AddonSelection, map[string]any{"selected_modules": []any{}}))
	assert.Error(t, Validate(AddonSelection, map[string]any{
		"run_addons":       true,
		"selected_modules": []any{map[string]any{"priority": float64(1)}},
	}))
}

func TestValidate_ModuleDelta(t *testing.T) {
	assert.NoError(t, Validate(ModuleDelta, map[string]any{
		"module_id":      "liquidity",
		"new_scores":     map[string]any{"risk": "not a number"},
		"universe_flags": nil,
	}))
	assert.Error(t, Validate(ModuleDelta, map[string]any{"new_scores": []any{1}}))
}
