package driven

import (
	"context"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
)

// Classifier classifies a post against a set of tag definitions.
// Implementations wrap an LLM backend (OpenAI, Anthropic, Gemini, Ollama, a
// local command) or a deterministic stub.
type Classifier interface {
	// Classify returns a classification for the input post.
	// Errors wrap domain.ErrRateLimited, domain.ErrTimeout,
	// domain.ErrInvalidFormat, or domain.ErrConfig where applicable.
	Classify(ctx context.Context, input domain.ClassifyInput) (*domain.ClassifyOutput, error)

	// Name returns the backend name for logging (e.g. "openai").
	Name() string
}
