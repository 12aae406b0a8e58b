// Package x provides a publisher adapter for creating posts on X.
package x

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
	"github.com/custodia-labs/tagwatch/internal/core/ports/driven"
)

// Ensure Publisher implements the interface.
var _ driven.Publisher = (*Publisher)(nil)

// DefaultBaseURL is the X API base URL.
const DefaultBaseURL = "https://api.twitter.com"

// Config holds configuration for the X publisher.
type Config struct {
	// UserToken is an OAuth2 user-context token with write access
	// (required when enabled).
	UserToken string

	// BaseURL is the API base URL (default: https://api.twitter.com).
	BaseURL string

	// Mode selects how posts attach to their source.
	Mode domain.PublishMode

	// MaxChars rejects content longer than this before the API call.
	MaxChars int

	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration
}

// Publisher posts rendered content to X via POST /2/tweets.
type Publisher struct {
	client   *http.Client
	baseURL  string
	token    string
	mode     domain.PublishMode
	maxChars int
	enabled  bool
}

type createTweetRequest struct {
	Text         string         `json:"text"`
	Reply        *replySettings `json:"reply,omitempty"`
	QuoteTweetID string         `json:"quote_tweet_id,omitempty"`
}

type replySettings struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type createTweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// New creates an X publisher.
func New(cfg Config) (*Publisher, error) {
	if cfg.UserToken == "" {
		return nil, fmt.Errorf("x publisher: %w: user token is required", domain.ErrConfig)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Mode == "" {
		cfg.Mode = domain.ModeReply
	}
	if cfg.MaxChars == 0 {
		cfg.MaxChars = 280
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Publisher{
		client:   &http.Client{Timeout: cfg.Timeout},
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		token:    cfg.UserToken,
		mode:     cfg.Mode,
		maxChars: cfg.MaxChars,
		enabled:  true,
	}, nil
}

// Disabled returns a publisher that reports itself disabled.
func Disabled() *Publisher {
	return &Publisher{maxChars: 280}
}

// Enabled reports whether the publisher is active.
func (p *Publisher) Enabled() bool { return p.enabled }

// Platform returns "x".
func (p *Publisher) Platform() string { return "x" }

// Publish creates a post on X, attached to the source post per the
// configured mode.
func (p *Publisher) Publish(ctx context.Context, post *domain.RenderedPost) (*driven.PublishResult, error) {
	if !p.enabled {
		return nil, fmt.Errorf("x publisher is disabled")
	}
	if len(post.Text) > p.maxChars {
		return nil, &domain.ContentTooLongError{Length: len(post.Text), Max: p.maxChars}
	}

	request := createTweetRequest{Text: post.Text}
	switch p.mode {
	case domain.ModeReply:
		request.Reply = &replySettings{InReplyToTweetID: post.SourcePostID}
	case domain.ModeQuote:
		request.QuoteTweetID = post.SourcePostID
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/2/tweets", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: invalid user token", domain.ErrAuth)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to create tweet: %d: %s", resp.StatusCode, string(respBody))
	}

	var tweetResp createTweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&tweetResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return &driven.PublishResult{
		ID:  tweetResp.Data.ID,
		URL: "https://x.com/i/status/" + tweetResp.Data.ID,
	}, nil
}
