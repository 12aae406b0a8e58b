package driven

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
)

// PostSource fetches posts from a watched platform.
type PostSource interface {
	// FetchPosts returns posts for an account newer than sinceID, oldest
	// first. Empty sinceID means no cursor: the platform's default recent
	// window is returned.
	FetchPosts(ctx context.Context, account, sinceID string) ([]domain.SourcePost, error)
}

// RateLimitError reports an upstream rate limit, with the retry-after hint
// when the platform provides one. It unwraps to domain.ErrRateLimited.
type RateLimitError struct {
	// RetryAfter is the platform's suggested wait, 0 if unknown.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// Is makes errors.Is(err, domain.ErrRateLimited) work.
func (e *RateLimitError) Is(target error) bool {
	return target == domain.ErrRateLimited
}
