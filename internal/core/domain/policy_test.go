package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOutput() *ClassifyOutput {
	return NewClassifyOutput("A post about climate policy", []TagMatch{
		{
			ID:         "climate_fear",
			Confidence: 0.9,
			Rationale:  "Uses fear-based language",
			Evidence:   []string{"we're doomed"},
		},
		{
			ID:         "low_confidence",
			Confidence: 0.3,
			Rationale:  "Weak match",
		},
	})
}

func TestPolicyFiltersLowConfidence(t *testing.T) {
	v := NewPolicyValidator(PolicyConfig{MinConfidence: 0.5})

	result, err := v.Validate(sampleOutput())
	require.NoError(t, err)
	require.Len(t, result.Tags, 1)
	assert.Equal(t, "climate_fear", result.Tags[0].ID)
}

func TestPolicyLimitsTags(t *testing.T) {
	v := NewPolicyValidator(PolicyConfig{MaxTags: 1})

	result, err := v.Validate(sampleOutput())
	require.NoError(t, err)
	assert.Len(t, result.Tags, 1)
}

func TestPolicyRejectsForbiddenPattern(t *testing.T) {
	v := NewPolicyValidator(PolicyConfig{
		ForbiddenPatterns: []string{"FEAR-BASED"},
	})

	_, err := v.Validate(sampleOutput())
	require.Error(t, err)

	var violation *PolicyViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "FEAR-BASED", violation.Pattern)
	assert.Contains(t, violation.Context, "climate_fear")
}

func TestPolicyTruncatesRationale(t *testing.T) {
	v := NewPolicyValidator(PolicyConfig{MaxRationaleLength: 10})

	result, err := v.Validate(sampleOutput())
	require.NoError(t, err)
	assert.Equal(t, "Uses fe...", result.Tags[0].Rationale)
	assert.Len(t, result.Tags[0].Rationale, 10)
}

func TestPolicyDoesNotMutateInput(t *testing.T) {
	v := NewPolicyValidator(PolicyConfig{MinConfidence: 0.5, MaxRationaleLength: 10})
	input := sampleOutput()

	_, err := v.Validate(input)
	require.NoError(t, err)
	assert.Len(t, input.Tags, 2)
	assert.Equal(t, "Uses fear-based language", input.Tags[0].Rationale)
}

func TestGeneratePolicyPromptIncludesLimits(t *testing.T) {
	v := NewPolicyValidator(PolicyConfig{MaxTags: 3, MinConfidence: 0.6})

	prompt := v.GeneratePolicyPrompt()
	assert.Contains(t, prompt, "Output Policy:")
	assert.Contains(t, prompt, "Maximum 3 tags")
	assert.Contains(t, prompt, "confidence >= 0.60")
}

func TestParsePublishMode(t *testing.T) {
	for _, valid := range []string{"reply", "quote", "new_post"} {
		mode, err := ParsePublishMode(valid)
		require.NoError(t, err)
		assert.Equal(t, PublishMode(valid), mode)
	}

	_, err := ParsePublishMode("broadcast")
	require.Error(t, err)
	var invalid *InvalidModeError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "broadcast", invalid.Mode)
}
