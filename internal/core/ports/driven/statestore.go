package driven

import (
	"context"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
)

// StateStore persists watch cursors and published-post records.
type StateStore interface {
	// GetAccountState returns the state for an account, or
	// domain.ErrNotFound if the account has never been polled.
	GetAccountState(ctx context.Context, account string) (*domain.AccountState, error)

	// SetAccountState upserts the state for an account.
	SetAccountState(ctx context.Context, state *domain.AccountState) error

	// IsProcessed reports whether the (post, taxonomy) pair has already
	// been processed.
	IsProcessed(ctx context.Context, sourcePostID, taxonomyHash string) (bool, error)

	// RecordPublished upserts a published record, keyed by
	// (SourcePostID, TaxonomyHash). On conflict, non-empty platform IDs
	// replace stored ones and empty ones preserve them.
	RecordPublished(ctx context.Context, record *domain.PublishedRecord) error

	// GetPublished returns the record for a (post, taxonomy) pair, or
	// domain.ErrNotFound.
	GetPublished(ctx context.Context, sourcePostID, taxonomyHash string) (*domain.PublishedRecord, error)

	// Close releases the underlying storage.
	Close() error
}
