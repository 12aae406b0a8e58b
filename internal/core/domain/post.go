// Package domain contains the core models and value objects for tagwatch.
package domain

import "time"

// SourcePost is a post fetched from a watched platform (e.g. X/Twitter).
// It is immutable once fetched and owned by the run loop for the duration
// of one processing attempt.
type SourcePost struct {
	// ID is the platform-specific post ID.
	ID string

	// Text is the post text content.
	Text string

	// Author is the author username/handle.
	Author string

	// URL points at the original post.
	URL string

	// CreatedAt is when the post was created on the platform.
	CreatedAt time.Time

	// IsRepost marks a repost/retweet.
	IsRepost bool

	// IsReply marks a reply.
	IsReply bool

	// ReplyToID is the ID of the post being replied to, if any.
	ReplyToID string
}

// PublishMode selects how rendered content is attached to the source post
// on a length-constrained platform.
type PublishMode string

const (
	// ModeReply posts the rendered text as a reply to the source post.
	ModeReply PublishMode = "reply"

	// ModeQuote quote-posts the source post.
	ModeQuote PublishMode = "quote"

	// ModeNewPost creates a standalone post with a link to the source.
	ModeNewPost PublishMode = "new_post"
)

// ParsePublishMode parses a config string into a PublishMode.
func ParsePublishMode(s string) (PublishMode, error) {
	switch PublishMode(s) {
	case ModeReply, ModeQuote, ModeNewPost:
		return PublishMode(s), nil
	}
	return "", &InvalidModeError{Mode: s}
}

// InvalidModeError reports an unknown publish mode string.
type InvalidModeError struct {
	Mode string
}

func (e *InvalidModeError) Error() string {
	return "invalid publish mode: " + e.Mode
}

// RenderedPost is content ready for publishing to one platform.
type RenderedPost struct {
	// Text is the rendered content.
	Text string

	// SourcePostID references the original post.
	SourcePostID string

	// SourcePostURL is the original post URL.
	SourcePostURL string
}
