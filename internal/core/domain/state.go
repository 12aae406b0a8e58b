package domain

import "time"

// AccountState tracks the watch progress for one account.
// Updated after each poll, even partially; never rolled back on per-post
// failure.
type AccountState struct {
	// Account is the account handle.
	Account string

	// SinceID is the last-seen post ID ("since" cursor). Empty = none.
	SinceID string

	// UpdatedAt is when the state was last written.
	UpdatedAt time.Time
}

// PublishedRecord records a processed post for idempotency. The composite
// natural key is (SourcePostID, TaxonomyHash): the same post re-run under a
// changed taxonomy is processed again by design.
type PublishedRecord struct {
	// ID is an opaque record ID.
	ID string

	// SourcePostID is the platform post ID.
	SourcePostID string

	// TaxonomyHash is the taxonomy fingerprint at publish time.
	TaxonomyHash string

	// XPostID is the X post ID if published to X. Empty = not published.
	XPostID string

	// NostrEventID is the Nostr event ID if published. Empty = not published.
	NostrEventID string

	// PublishedAt is when the record was written.
	PublishedAt time.Time
}

// ProcessStatus is the terminal outcome kind for one post in one poll cycle.
type ProcessStatus string

const (
	// StatusPublished means the post was classified and published (or would
	// have been, in dry-run mode).
	StatusPublished ProcessStatus = "published"

	// StatusSkipped means the post was skipped (already processed, etc.).
	StatusSkipped ProcessStatus = "skipped"

	// StatusFailed means classification or processing failed.
	StatusFailed ProcessStatus = "failed"
)

// ProcessResult is the terminal outcome for a single post in a poll cycle.
type ProcessResult struct {
	// PostID is the source post ID.
	PostID string

	// Status is the outcome kind.
	Status ProcessStatus

	// Classification is set when Status is StatusPublished.
	Classification *ClassifyOutput

	// XPostID is the published X post ID, if any.
	XPostID string

	// NostrEventID is the published Nostr event ID, if any.
	NostrEventID string

	// Reason is set when Status is StatusSkipped.
	Reason string

	// Err is set when Status is StatusFailed.
	Err error
}
