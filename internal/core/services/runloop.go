package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
	"github.com/custodia-labs/tagwatch/internal/core/ports/driven"
	"github.com/custodia-labs/tagwatch/internal/logger"
)

// RunLoopConfig configures one poll cycle.
type RunLoopConfig struct {
	// Accounts to watch, polled sequentially.
	Accounts []string

	// IncludeReplies keeps reply posts. Default: skip.
	IncludeReplies bool

	// IncludeReposts keeps reposts. Default: skip.
	IncludeReposts bool

	// IgnorePatterns are regexes; posts whose text matches any are skipped.
	// Invalid patterns are logged and dropped at construction.
	IgnorePatterns []string

	// DryRun classifies and renders but never publishes or records.
	DryRun bool

	// MaxConcurrent bounds in-flight post processing. Values < 1 mean 1.
	MaxConcurrent int

	// RateLimitPerMinute caps posts processed per minute. 0 = unlimited.
	RateLimitPerMinute int

	// RateLimitPerHour caps posts processed per hour. 0 = unlimited.
	RateLimitPerHour int

	// Classify configures the classification step.
	Classify ClassifyConfig

	// Render configures the rendering step.
	Render RenderConfig

	// Policy, when non-nil, validates and sanitizes every classification
	// before rendering.
	Policy *domain.PolicyConfig
}

// DefaultRunLoopConfig returns the default run loop configuration.
func DefaultRunLoopConfig() RunLoopConfig {
	return RunLoopConfig{
		DryRun:        true,
		MaxConcurrent: 4,
		Classify:      DefaultClassifyConfig(),
		Render:        DefaultRenderConfig(),
	}
}

// AccountResult pairs a post's terminal outcome with its ID for reporting.
type AccountResult struct {
	Account string
	Result  domain.ProcessResult
}

// RunLoop orchestrates one poll cycle: load taxonomy, fetch posts per
// account, classify with bounded concurrency and rate limiting, publish,
// and advance cursors.
type RunLoop struct {
	postSource     driven.PostSource
	definitions    driven.DefinitionsRepo
	classify       *ClassifyService
	renderer       *Renderer
	xPublisher     driven.Publisher
	nostrPublisher driven.Publisher
	stateStore     driven.StateStore
	clock          driven.Clock
	config         RunLoopConfig
	ignore         []*regexp.Regexp
	limiter        *WindowLimiter
	policy         *domain.PolicyValidator
}

// NewRunLoop creates a run loop over the given ports.
func NewRunLoop(
	postSource driven.PostSource,
	definitions driven.DefinitionsRepo,
	classifier driven.Classifier,
	xPublisher driven.Publisher,
	nostrPublisher driven.Publisher,
	stateStore driven.StateStore,
	clock driven.Clock,
	config RunLoopConfig,
) *RunLoop {
	var policy *domain.PolicyValidator
	classifyCfg := config.Classify
	if config.Policy != nil {
		policy = domain.NewPolicyValidator(*config.Policy)
		if classifyCfg.PolicyText == "" {
			classifyCfg.PolicyText = policy.GeneratePolicyPrompt()
		}
	}

	return &RunLoop{
		postSource:     postSource,
		definitions:    definitions,
		classify:       NewClassifyService(classifier, classifyCfg),
		renderer:       NewRenderer(config.Render),
		xPublisher:     xPublisher,
		nostrPublisher: nostrPublisher,
		stateStore:     stateStore,
		clock:          clock,
		config:         config,
		ignore:         compileIgnorePatterns(config.IgnorePatterns),
		limiter:        NewWindowLimiter(config.RateLimitPerMinute, config.RateLimitPerHour),
		policy:         policy,
	}
}

// PollOnce runs a single poll cycle for all configured accounts.
// Accounts are polled sequentially; a failing account is logged and skipped
// so the others still run. Results arrive in completion order within each
// account.
func (r *RunLoop) PollOnce(ctx context.Context) ([]AccountResult, error) {
	definitions, err := r.definitions.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load definitions: %w", err)
	}

	taxonomy := domain.NewTaxonomy(definitions)
	logger.Info("loaded taxonomy: %d definitions, hash %.12s", len(taxonomy.Definitions), taxonomy.Hash)

	var results []AccountResult
	for _, account := range r.config.Accounts {
		accountResults, err := r.pollAccount(ctx, account, taxonomy)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return results, err
			}
			logger.Error("poll account %s: %v", account, err)
			continue
		}
		results = append(results, accountResults...)
	}

	return results, nil
}

func (r *RunLoop) pollAccount(ctx context.Context, account string, taxonomy *domain.Taxonomy) ([]AccountResult, error) {
	var sinceID string
	state, err := r.stateStore.GetAccountState(ctx, account)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get account state: %w", err)
	}
	if state != nil {
		sinceID = state.SinceID
	}

	logger.Info("fetching posts for %s (since_id=%q)", account, sinceID)

	posts, err := r.postSource.FetchPosts(ctx, account, sinceID)
	if err != nil {
		return nil, fmt.Errorf("fetch posts: %w", err)
	}
	if len(posts) == 0 {
		logger.Debug("no new posts for %s", account)
		return nil, nil
	}
	logger.Info("fetched %d posts for %s", len(posts), account)

	filtered := r.filterPosts(posts)
	if len(filtered) == 0 {
		return nil, nil
	}

	maxConcurrent := r.config.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	// Buffered to len(filtered) so workers never block on send and the
	// submit loop cannot deadlock against collection.
	resultCh := make(chan AccountResult, len(filtered))
	sem := semaphore.NewWeighted(int64(maxConcurrent))
	var wg sync.WaitGroup

	// The cursor advances to the last post handed to a worker, whether or
	// not that post ultimately succeeds. Failed posts are not retried on
	// the next cycle; re-runs happen only when the taxonomy changes.
	lastID := sinceID
	for _, post := range filtered {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		lastID = post.ID
		wg.Add(1)
		go func(post domain.SourcePost) {
			defer wg.Done()
			defer sem.Release(1)
			if err := r.limiter.Acquire(ctx); err != nil {
				resultCh <- AccountResult{Account: account, Result: domain.ProcessResult{
					PostID: post.ID,
					Status: domain.StatusFailed,
					Err:    err,
				}}
				return
			}
			resultCh <- AccountResult{Account: account, Result: r.processPost(ctx, &post, taxonomy)}
		}(post)
	}

	wg.Wait()
	close(resultCh)

	results := make([]AccountResult, 0, len(filtered))
	for res := range resultCh {
		results = append(results, res)
	}

	if lastID != sinceID {
		newState := &domain.AccountState{
			Account:   account,
			SinceID:   lastID,
			UpdatedAt: r.clock.Now(),
		}
		if err := r.stateStore.SetAccountState(ctx, newState); err != nil {
			return results, fmt.Errorf("set account state: %w", err)
		}
	}

	return results, nil
}

// filterPosts drops replies, reposts, and ignored posts per config.
func (r *RunLoop) filterPosts(posts []domain.SourcePost) []domain.SourcePost {
	filtered := make([]domain.SourcePost, 0, len(posts))
	for _, post := range posts {
		if !r.config.IncludeReplies && post.IsReply {
			continue
		}
		if !r.config.IncludeReposts && post.IsRepost {
			continue
		}
		ignored := false
		for _, pattern := range r.ignore {
			if pattern.MatchString(post.Text) {
				ignored = true
				break
			}
		}
		if ignored {
			continue
		}
		filtered = append(filtered, post)
	}
	return filtered
}

// processPost takes one post to a terminal outcome: skipped, failed, or
// published. It never returns an error; failures are captured in the result.
func (r *RunLoop) processPost(ctx context.Context, post *domain.SourcePost, taxonomy *domain.Taxonomy) domain.ProcessResult {
	// Idempotency check fails open: a broken state store should not stall
	// the pipeline, at worst a post is classified twice.
	processed, err := r.stateStore.IsProcessed(ctx, post.ID, taxonomy.Hash)
	if err != nil {
		logger.Warn("is_processed check failed for %s, continuing: %v", post.ID, err)
	} else if processed {
		return domain.ProcessResult{
			PostID: post.ID,
			Status: domain.StatusSkipped,
			Reason: "already processed with this taxonomy",
		}
	}

	classification, err := r.classify.Classify(ctx, post, taxonomy.Definitions)
	if err != nil {
		return domain.ProcessResult{
			PostID: post.ID,
			Status: domain.StatusFailed,
			Err:    fmt.Errorf("classification failed: %w", err),
		}
	}

	if r.policy != nil {
		classification, err = r.policy.Validate(classification)
		if err != nil {
			return domain.ProcessResult{
				PostID: post.ID,
				Status: domain.StatusFailed,
				Err:    fmt.Errorf("policy: %w", err),
			}
		}
	}

	if logger.IsVerbose() {
		ids := make([]string, len(classification.Tags))
		for i, tag := range classification.Tags {
			ids[i] = tag.ID
		}
		logger.Info("classified post %s: tags %v", post.ID, ids)
	}

	if r.config.DryRun {
		rendered := r.renderer.RenderForX(post, classification)
		logger.Info("[DRY RUN] would publish for post %s:\n%s", post.ID, rendered.Text)
		return domain.ProcessResult{
			PostID:         post.ID,
			Status:         domain.StatusPublished,
			Classification: classification,
		}
	}

	var xPostID, nostrEventID string

	if r.xPublisher != nil && r.xPublisher.Enabled() {
		rendered := r.renderer.RenderForX(post, classification)
		if res, err := r.xPublisher.Publish(ctx, rendered); err != nil {
			logger.Error("publish to x failed for %s: %v", post.ID, err)
		} else {
			xPostID = res.ID
		}
	}

	if r.nostrPublisher != nil && r.nostrPublisher.Enabled() {
		rendered := r.renderer.RenderForNostr(post, classification)
		if res, err := r.nostrPublisher.Publish(ctx, rendered); err != nil {
			logger.Error("publish to nostr failed for %s: %v", post.ID, err)
		} else {
			nostrEventID = res.ID
		}
	}

	// Recorded even when every publisher failed: the attempt consumed a
	// classification and will not repeat under the same taxonomy.
	record := &domain.PublishedRecord{
		ID:           uuid.NewString(),
		SourcePostID: post.ID,
		TaxonomyHash: taxonomy.Hash,
		XPostID:      xPostID,
		NostrEventID: nostrEventID,
		PublishedAt:  r.clock.Now(),
	}
	if err := r.stateStore.RecordPublished(ctx, record); err != nil {
		logger.Error("record published failed for %s: %v", post.ID, err)
	}

	return domain.ProcessResult{
		PostID:         post.ID,
		Status:         domain.StatusPublished,
		Classification: classification,
		XPostID:        xPostID,
		NostrEventID:   nostrEventID,
	}
}

// compileIgnorePatterns compiles the configured regexes, logging and
// dropping any that fail to compile.
func compileIgnorePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			logger.Warn("invalid ignore pattern %q: %v", pattern, err)
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}
