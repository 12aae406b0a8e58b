// Package stub provides a deterministic classifier for testing and
// offline dry runs.
package stub

import (
	"context"
	"strings"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
	"github.com/custodia-labs/tagwatch/internal/core/ports/driven"
)

// Ensure Classifier implements the interface.
var _ driven.Classifier = (*Classifier)(nil)

// Classifier returns canned or keyword-derived classifications without
// calling any backend.
type Classifier struct {
	response *domain.ClassifyOutput
	err      error
	echo     bool
}

// Empty returns a stub producing an empty classification.
func Empty() *Classifier {
	return &Classifier{
		response: domain.NewClassifyOutput("Stub classification - no tags detected", nil),
	}
}

// WithResponse returns a stub that always produces the given output.
func WithResponse(response *domain.ClassifyOutput) *Classifier {
	return &Classifier{response: response}
}

// WithError returns a stub that always fails with the given error.
func WithError(err error) *Classifier {
	return &Classifier{err: err}
}

// Echo returns a stub that matches a tag whenever the post text contains
// the tag's title or any alias. Useful for end-to-end dry runs without an
// API key.
func Echo() *Classifier {
	return &Classifier{echo: true}
}

// Name returns the backend name.
func (c *Classifier) Name() string { return "stub" }

// Classify returns the configured response.
func (c *Classifier) Classify(_ context.Context, input domain.ClassifyInput) (*domain.ClassifyOutput, error) {
	if c.err != nil {
		return nil, c.err
	}
	if !c.echo {
		return c.response, nil
	}

	postLower := strings.ToLower(input.Post.Text)
	var tags []domain.TagMatch
	for _, def := range input.Definitions {
		matched := strings.Contains(postLower, strings.ToLower(def.Title))
		for _, alias := range def.Aliases {
			if strings.Contains(postLower, strings.ToLower(alias)) {
				matched = true
				break
			}
		}
		if matched {
			tags = append(tags, domain.TagMatch{
				ID:         def.ID,
				Confidence: 0.7,
				Rationale:  "Keyword match on definition title or alias",
			})
		}
	}

	return domain.NewClassifyOutput("Stub keyword classification", tags), nil
}
