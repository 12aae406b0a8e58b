// Package x provides a post source adapter for the X (Twitter) v2 API.
package x

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
	"github.com/custodia-labs/tagwatch/internal/core/ports/driven"
	"github.com/custodia-labs/tagwatch/internal/logger"
)

// Ensure PostSource implements the interface.
var _ driven.PostSource = (*PostSource)(nil)

// DefaultBaseURL is the X API base URL.
const DefaultBaseURL = "https://api.twitter.com"

// Config holds configuration for the X post source.
type Config struct {
	// BearerToken is the app-only bearer token (required).
	BearerToken string

	// BaseURL is the API base URL (default: https://api.twitter.com).
	BaseURL string

	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration

	// RequestsPerSecond throttles outgoing API calls proactively, before
	// the platform starts returning 429s. 0 disables the throttle.
	RequestsPerSecond float64
}

// PostSource fetches user timelines from the X v2 API.
type PostSource struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter

	mu      sync.Mutex
	userIDs map[string]string
}

type userResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type tweetsResponse struct {
	Data []tweet `json:"data"`
}

type tweet struct {
	ID               string            `json:"id"`
	Text             string            `json:"text"`
	CreatedAt        string            `json:"created_at"`
	ReferencedTweets []referencedTweet `json:"referenced_tweets"`
}

type referencedTweet struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// New creates an X post source.
func New(cfg Config) (*PostSource, error) {
	if cfg.BearerToken == "" {
		return nil, fmt.Errorf("x source: %w: bearer token is required", domain.ErrConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.BearerToken})
	client := oauth2.NewClient(context.Background(), src)
	client.Timeout = cfg.Timeout

	return &PostSource{
		client:  client,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		limiter: limiter,
		userIDs: make(map[string]string),
	}, nil
}

// FetchPosts returns posts for an account newer than sinceID, oldest first.
func (s *PostSource) FetchPosts(ctx context.Context, account, sinceID string) ([]domain.SourcePost, error) {
	logger.Info("fetching posts from x for %s (since_id=%q)", account, sinceID)

	userID, err := s.getUserID(ctx, account)
	if err != nil {
		return nil, err
	}

	posts, err := s.fetchUserTweets(ctx, userID, account, sinceID)
	if err != nil {
		return nil, err
	}

	// Tweet IDs are snowflakes: ID order is chronological.
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })

	logger.Info("fetched %d posts for %s", len(posts), account)
	return posts, nil
}

// getUserID resolves a username to its user ID, caching the result for the
// lifetime of the adapter.
func (s *PostSource) getUserID(ctx context.Context, username string) (string, error) {
	s.mu.Lock()
	if id, ok := s.userIDs[username]; ok {
		s.mu.Unlock()
		return id, nil
	}
	s.mu.Unlock()

	body, err := s.get(ctx, s.baseURL+"/2/users/by/username/"+url.PathEscape(username))
	if err != nil {
		return "", err
	}

	var resp userResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse user response: %w", err)
	}
	if resp.Data.ID == "" {
		return "", fmt.Errorf("user %s: %w", username, domain.ErrNotFound)
	}

	s.mu.Lock()
	s.userIDs[username] = resp.Data.ID
	s.mu.Unlock()
	return resp.Data.ID, nil
}

func (s *PostSource) fetchUserTweets(ctx context.Context, userID, username, sinceID string) ([]domain.SourcePost, error) {
	endpoint := fmt.Sprintf("%s/2/users/%s/tweets?tweet.fields=created_at,referenced_tweets&max_results=100", s.baseURL, userID)
	if sinceID != "" {
		endpoint += "&since_id=" + url.QueryEscape(sinceID)
	}

	body, err := s.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var resp tweetsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse tweets response: %w", err)
	}

	posts := make([]domain.SourcePost, 0, len(resp.Data))
	for _, tw := range resp.Data {
		post := domain.SourcePost{
			ID:     tw.ID,
			Text:   tw.Text,
			Author: username,
			URL:    fmt.Sprintf("https://x.com/%s/status/%s", username, tw.ID),
		}

		if tw.CreatedAt != "" {
			if ts, err := time.Parse(time.RFC3339, tw.CreatedAt); err == nil {
				post.CreatedAt = ts
			}
		}
		if post.CreatedAt.IsZero() {
			post.CreatedAt = time.Now().UTC()
		}

		for _, ref := range tw.ReferencedTweets {
			switch ref.Type {
			case "retweeted":
				post.IsRepost = true
			case "replied_to":
				post.IsReply = true
				if post.ReplyToID == "" {
					post.ReplyToID = ref.ID
				}
			}
		}

		posts = append(posts, post)
	}

	return posts, nil
}

// get performs a throttled GET, mapping platform error statuses to domain
// errors.
func (s *PostSource) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: invalid bearer token", domain.ErrAuth)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &driven.RateLimitError{RetryAfter: retryAfter(resp)}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

// retryAfter derives a wait hint from the x-rate-limit-reset header.
func retryAfter(resp *http.Response) time.Duration {
	reset := resp.Header.Get("x-rate-limit-reset")
	if reset == "" {
		return 0
	}
	ts, err := strconv.ParseInt(reset, 10, 64)
	if err != nil {
		return 0
	}
	d := time.Until(time.Unix(ts, 0))
	if d < 0 {
		return 0
	}
	return d
}
