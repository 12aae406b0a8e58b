package driven

import (
	"context"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
)

// PublishResult identifies published content on its platform.
type PublishResult struct {
	// ID is the platform-specific post/event ID.
	ID string

	// URL points at the published content, empty when the platform has no
	// stable URL.
	URL string
}

// Publisher publishes rendered classification results to one platform.
type Publisher interface {
	// Publish posts the rendered content and returns its platform ID.
	Publish(ctx context.Context, post *domain.RenderedPost) (*PublishResult, error)

	// Enabled reports whether this publisher is configured and active.
	// The run loop skips disabled publishers without error.
	Enabled() bool

	// Platform returns the platform name (e.g. "x", "nostr").
	Platform() string
}
