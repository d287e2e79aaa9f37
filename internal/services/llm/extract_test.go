package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONBlock_FencedBlockWithTrailingProse(t *testing.T) {
	text := "Here is my assessment of the balance sheet.\n\n```json\n{\"run_addons\": true, \"selected_modules\": [{\"id\": \"debt_stress\"}]}\n```\n\nLet me know if you want more {detail}."

	got, err := ExtractJSONBlock(text)

	require.NoError(t, err)
	assert.Equal(t, true, got["run_addons"])
	modules, ok := got["selected_modules"].([]any)
	require.True(t, ok)
	assert.Len(t, modules, 1)
}

func TestExtractJSONBlock_UntaggedFence(t *testing.T) {
	got, err := ExtractJSONBlock("Result:\n```\n{\"risk\": 4}\n```")

	require.NoError(t, err)
	assert.Equal(t, float64(4), got["risk"])
}

func TestExtractJSONBlock_PrefersJSONTaggedFence(t *testing.T) {
	text := "Sketch:\n```python\nprint({'a': 1})\n```\nResult:\n```json\n{\"a\": 2}\n```"

	got, err := ExtractJSONBlock(text)

	require.NoError(t, err)
	assert.Equal(t, float64(2), got["a"])
}

func TestExtractJSONBlock_BareObjectInProse(t *testing.T) {
	got, err := ExtractJSONBlock(`The scores are {"new_scores": {"risk": "3"}} as discussed.`)

	require.NoError(t, err)
	scores, ok := got["new_scores"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "3", scores["risk"])
}

func TestExtractJSONBlock_NoContent(t *testing.T) {
	for _, text := range []string{"", "   \n\t", "No structured output today.", "} backwards {"} {
		_, err := ExtractJSONBlock(text)
		assert.ErrorIs(t, err, ErrNoContent, "input %q", text)
	}
}

func TestExtractJSONBlock_ParseError(t *testing.T) {
	_, err := ExtractJSONBlock("```json\n{\"risk\": 4,,}\n```")

	require.Error(t, err)
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, `{"risk": 4,,}`, parseErr.Candidate)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestLeadingProse(t *testing.T) {
	assert.Equal(t, "Strong franchise.", LeadingProse("Strong franchise.\n```json\n{}\n```"))
	assert.Equal(t, "Inline", LeadingProse("Inline {\"a\":1}"))
	assert.Equal(t, `{"a":1}`, LeadingProse(` {"a":1} `))
	assert.Equal(t, "Just prose", LeadingProse("Just prose\n"))
}
