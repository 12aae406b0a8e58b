package driven

import (
	"context"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
)

// DefinitionsRepo loads tag definitions from their configured source.
type DefinitionsRepo interface {
	// Load reads and parses all definitions. Returns
	// domain.ErrNoDefinitions when the source contains none, and typed
	// errors (domain.DuplicateIDError, domain.InvalidIDError) for
	// validation failures.
	Load(ctx context.Context) ([]domain.TagDefinition, error)

	// Validate checks all definitions without returning them.
	Validate(ctx context.Context) error
}
