package domain

// SchemaVersion is the classification output schema version.
const SchemaVersion = "1"

// ClassifyInput is the provider-agnostic request shape for a classifier.
type ClassifyInput struct {
	// Post is the post to classify.
	Post SourcePost

	// Definitions are the tag definitions to consider (possibly prefiltered).
	Definitions []TagDefinition

	// MaxOutputChars caps output length for platform constraints. 0 = none.
	MaxOutputChars int

	// PolicyText is optional policy/guardrails text for the prompt.
	PolicyText string
}

// TagMatch is a single matched tag in a classification output.
type TagMatch struct {
	// ID is the matched tag ID.
	ID string `json:"id"`

	// Confidence is the match confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Rationale explains why the tag applies.
	Rationale string `json:"rationale"`

	// Evidence holds verbatim excerpts from the post.
	Evidence []string `json:"evidence"`
}

// ClassifyOutput is the result of classifying one post.
type ClassifyOutput struct {
	// Version is the schema version tag.
	Version string `json:"version"`

	// Summary is a neutral summary of the post.
	Summary string `json:"summary"`

	// Tags are the matched tags in classifier order.
	Tags []TagMatch `json:"tags"`
}

// NewClassifyOutput creates an output with the current schema version.
func NewClassifyOutput(summary string, tags []TagMatch) *ClassifyOutput {
	return &ClassifyOutput{
		Version: SchemaVersion,
		Summary: summary,
		Tags:    tags,
	}
}
