package domain

import (
	"fmt"
	"strings"
)

// PolicyConfig holds safety and output constraints applied to classification
// outputs before rendering. Zero values disable the corresponding check.
type PolicyConfig struct {
	// MaxTags caps the number of tags in the output. 0 = unlimited.
	MaxTags int

	// MinConfidence drops tags below this threshold. 0 = keep all.
	MinConfidence float64

	// MaxRationaleLength truncates rationales to this many bytes.
	// 0 = unlimited.
	MaxRationaleLength int

	// ForbiddenPatterns rejects outputs containing any of these substrings
	// (case-insensitive) in the summary or any rationale.
	ForbiddenPatterns []string
}

// PolicyViolationError reports a forbidden pattern found in an output.
type PolicyViolationError struct {
	Pattern string
	Context string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("forbidden pattern %q found in %s", e.Pattern, e.Context)
}

// PolicyValidator validates and sanitizes classification outputs against a
// policy.
type PolicyValidator struct {
	config PolicyConfig
}

// NewPolicyValidator creates a validator for the given policy.
func NewPolicyValidator(config PolicyConfig) *PolicyValidator {
	return &PolicyValidator{config: config}
}

// Validate checks an output against the policy and returns a sanitized copy.
// Forbidden patterns reject the whole output; confidence and size limits
// trim it.
func (v *PolicyValidator) Validate(output *ClassifyOutput) (*ClassifyOutput, error) {
	sanitized := &ClassifyOutput{
		Version: output.Version,
		Summary: output.Summary,
		Tags:    make([]TagMatch, len(output.Tags)),
	}
	copy(sanitized.Tags, output.Tags)

	for _, pattern := range v.config.ForbiddenPatterns {
		lower := strings.ToLower(pattern)
		if strings.Contains(strings.ToLower(sanitized.Summary), lower) {
			return nil, &PolicyViolationError{Pattern: pattern, Context: "summary"}
		}
		for _, tag := range sanitized.Tags {
			if strings.Contains(strings.ToLower(tag.Rationale), lower) {
				return nil, &PolicyViolationError{
					Pattern: pattern,
					Context: fmt.Sprintf("tag %s rationale", tag.ID),
				}
			}
		}
	}

	if v.config.MinConfidence > 0 {
		kept := sanitized.Tags[:0]
		for _, tag := range sanitized.Tags {
			if tag.Confidence >= v.config.MinConfidence {
				kept = append(kept, tag)
			}
		}
		sanitized.Tags = kept
	}

	if v.config.MaxTags > 0 && len(sanitized.Tags) > v.config.MaxTags {
		sanitized.Tags = sanitized.Tags[:v.config.MaxTags]
	}

	if max := v.config.MaxRationaleLength; max > 3 {
		for i := range sanitized.Tags {
			if len(sanitized.Tags[i].Rationale) > max {
				sanitized.Tags[i].Rationale = sanitized.Tags[i].Rationale[:max-3] + "..."
			}
		}
	}

	return sanitized, nil
}

// GeneratePolicyPrompt renders the policy as prompt text for the classifier.
func (v *PolicyValidator) GeneratePolicyPrompt() string {
	lines := []string{
		"Output Policy:",
		"- Be objective and neutral in rationales",
		"- Evidence must be direct quotes from the post",
		"- Do not make claims about intent or motivation",
	}

	if v.config.MaxTags > 0 {
		lines = append(lines, fmt.Sprintf("- Maximum %d tags per classification", v.config.MaxTags))
	}
	if v.config.MinConfidence > 0 {
		lines = append(lines, fmt.Sprintf("- Only include tags with confidence >= %.2f", v.config.MinConfidence))
	}

	return strings.Join(lines, "\n")
}
