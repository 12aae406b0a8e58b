package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
	"github.com/custodia-labs/tagwatch/internal/core/ports/driven"
)

type fakeSource struct {
	mu      sync.Mutex
	posts   map[string][]domain.SourcePost
	errs    map[string]error
	fetches []string
}

func (f *fakeSource) FetchPosts(_ context.Context, account, sinceID string) ([]domain.SourcePost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, account+":"+sinceID)
	if err := f.errs[account]; err != nil {
		return nil, err
	}
	return f.posts[account], nil
}

type fakeDefRepo struct {
	defs []domain.TagDefinition
	err  error
}

func (f *fakeDefRepo) Load(context.Context) ([]domain.TagDefinition, error) {
	return f.defs, f.err
}

func (f *fakeDefRepo) Validate(context.Context) error { return f.err }

type fakePublisher struct {
	mu        sync.Mutex
	enabled   bool
	platform  string
	err       error
	published []string
}

func (f *fakePublisher) Publish(_ context.Context, post *domain.RenderedPost) (*driven.PublishResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.published = append(f.published, post.SourcePostID)
	return &driven.PublishResult{ID: f.platform + "-" + post.SourcePostID}, nil
}

func (f *fakePublisher) Enabled() bool    { return f.enabled }
func (f *fakePublisher) Platform() string { return f.platform }

type fakeState struct {
	mu             sync.Mutex
	accounts       map[string]*domain.AccountState
	processed      map[string]bool
	records        []*domain.PublishedRecord
	isProcessedErr error
}

func newFakeState() *fakeState {
	return &fakeState{
		accounts:  make(map[string]*domain.AccountState),
		processed: make(map[string]bool),
	}
}

func (f *fakeState) GetAccountState(_ context.Context, account string) (*domain.AccountState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.accounts[account]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return state, nil
}

func (f *fakeState) SetAccountState(_ context.Context, state *domain.AccountState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[state.Account] = state
	return nil
}

func (f *fakeState) IsProcessed(_ context.Context, sourcePostID, taxonomyHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isProcessedErr != nil {
		return false, f.isProcessedErr
	}
	return f.processed[sourcePostID+"|"+taxonomyHash], nil
}

func (f *fakeState) RecordPublished(_ context.Context, record *domain.PublishedRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed[record.SourcePostID+"|"+record.TaxonomyHash] = true
	f.records = append(f.records, record)
	return nil
}

func (f *fakeState) GetPublished(_ context.Context, sourcePostID, taxonomyHash string) (*domain.PublishedRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.SourcePostID == sourcePostID && r.TaxonomyHash == taxonomyHash {
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeState) Close() error { return nil }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time        { return c.t }
func (c fixedClock) Sleep(_ time.Duration) {}

func post(id, text string) domain.SourcePost {
	return domain.SourcePost{
		ID:     id,
		Text:   text,
		Author: "testuser",
		URL:    "https://x.com/testuser/status/" + id,
	}
}

func newTestRunLoop(t *testing.T, source *fakeSource, state *fakeState, cfg RunLoopConfig) (*RunLoop, *fakePublisher, *fakePublisher) {
	t.Helper()
	classifier := &capturingClassifier{
		response: domain.NewClassifyOutput("Summary", []domain.TagMatch{
			{ID: "climate_fear", Confidence: 0.85, Rationale: "Fear framing"},
		}),
	}
	xPub := &fakePublisher{enabled: true, platform: "x"}
	nostrPub := &fakePublisher{enabled: true, platform: "nostr"}
	repo := &fakeDefRepo{defs: sampleDefinitions()}

	return NewRunLoop(source, repo, classifier, xPub, nostrPub, state, fixedClock{t: time.Now()}, cfg), xPub, nostrPub
}

func TestPollOncePublishesAndRecords(t *testing.T) {
	source := &fakeSource{posts: map[string][]domain.SourcePost{
		"alice": {post("1", "climate post"), post("2", "another post")},
	}}
	state := newFakeState()
	cfg := DefaultRunLoopConfig()
	cfg.Accounts = []string{"alice"}
	cfg.DryRun = false

	loop, xPub, nostrPub := newTestRunLoop(t, source, state, cfg)

	results, err := loop.PollOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, domain.StatusPublished, r.Result.Status)
		assert.NotEmpty(t, r.Result.XPostID)
		assert.NotEmpty(t, r.Result.NostrEventID)
	}
	assert.Len(t, xPub.published, 2)
	assert.Len(t, nostrPub.published, 2)
	assert.Len(t, state.records, 2)
}

func TestPollOnceDryRunDoesNotPublishOrRecord(t *testing.T) {
	source := &fakeSource{posts: map[string][]domain.SourcePost{
		"alice": {post("1", "climate post")},
	}}
	state := newFakeState()
	cfg := DefaultRunLoopConfig()
	cfg.Accounts = []string{"alice"}
	cfg.DryRun = true

	loop, xPub, nostrPub := newTestRunLoop(t, source, state, cfg)

	results, err := loop.PollOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusPublished, results[0].Result.Status)
	assert.Empty(t, results[0].Result.XPostID)
	assert.Empty(t, xPub.published)
	assert.Empty(t, nostrPub.published)
	assert.Empty(t, state.records)

	// Cursor still advances in dry-run mode.
	got, err := state.GetAccountState(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "1", got.SinceID)
}

func TestPollOnceFiltersRepliesAndReposts(t *testing.T) {
	reply := post("2", "a reply")
	reply.IsReply = true
	repost := post("3", "a repost")
	repost.IsRepost = true

	source := &fakeSource{posts: map[string][]domain.SourcePost{
		"alice": {post("1", "keep me"), reply, repost},
	}}
	state := newFakeState()
	cfg := DefaultRunLoopConfig()
	cfg.Accounts = []string{"alice"}

	loop, _, _ := newTestRunLoop(t, source, state, cfg)

	results, err := loop.PollOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].Result.PostID)
}

func TestPollOnceIncludesRepliesWhenConfigured(t *testing.T) {
	reply := post("2", "a reply")
	reply.IsReply = true

	source := &fakeSource{posts: map[string][]domain.SourcePost{
		"alice": {post("1", "keep me"), reply},
	}}
	state := newFakeState()
	cfg := DefaultRunLoopConfig()
	cfg.Accounts = []string{"alice"}
	cfg.IncludeReplies = true

	loop, _, _ := newTestRunLoop(t, source, state, cfg)

	results, err := loop.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestPollOnceIgnorePatterns(t *testing.T) {
	source := &fakeSource{posts: map[string][]domain.SourcePost{
		"alice": {post("1", "normal post"), post("2", "#ad sponsored content")},
	}}
	state := newFakeState()
	cfg := DefaultRunLoopConfig()
	cfg.Accounts = []string{"alice"}
	cfg.IgnorePatterns = []string{`(?i)#ad\b`}

	loop, _, _ := newTestRunLoop(t, source, state, cfg)

	results, err := loop.PollOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1", results[0].Result.PostID)
}

func TestPollOnceSkipsAlreadyProcessed(t *testing.T) {
	source := &fakeSource{posts: map[string][]domain.SourcePost{
		"alice": {post("1", "seen before")},
	}}
	state := newFakeState()
	tax := domain.NewTaxonomy(sampleDefinitions())
	state.processed["1|"+tax.Hash] = true

	cfg := DefaultRunLoopConfig()
	cfg.Accounts = []string{"alice"}
	cfg.DryRun = false

	loop, xPub, _ := newTestRunLoop(t, source, state, cfg)

	results, err := loop.PollOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusSkipped, results[0].Result.Status)
	assert.Empty(t, xPub.published)
}

func TestPollOnceIdempotencyCheckFailsOpen(t *testing.T) {
	source := &fakeSource{posts: map[string][]domain.SourcePost{
		"alice": {post("1", "a post")},
	}}
	state := newFakeState()
	state.isProcessedErr = errors.New("db locked")

	cfg := DefaultRunLoopConfig()
	cfg.Accounts = []string{"alice"}
	cfg.DryRun = false

	loop, xPub, _ := newTestRunLoop(t, source, state, cfg)

	results, err := loop.PollOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusPublished, results[0].Result.Status)
	assert.Len(t, xPub.published, 1)
}

func TestPollOnceAccountFailureIsolated(t *testing.T) {
	source := &fakeSource{
		posts: map[string][]domain.SourcePost{
			"bob": {post("9", "bob post")},
		},
		errs: map[string]error{"alice": errors.New("upstream down")},
	}
	state := newFakeState()
	cfg := DefaultRunLoopConfig()
	cfg.Accounts = []string{"alice", "bob"}

	loop, _, _ := newTestRunLoop(t, source, state, cfg)

	results, err := loop.PollOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "bob", results[0].Account)
}

func TestPollOnceAdvancesCursorPastFailedPosts(t *testing.T) {
	source := &fakeSource{posts: map[string][]domain.SourcePost{
		"alice": {post("1", "first"), post("2", "second")},
	}}
	state := newFakeState()
	cfg := DefaultRunLoopConfig()
	cfg.Accounts = []string{"alice"}
	cfg.DryRun = false
	cfg.MaxConcurrent = 1

	classifier := &capturingClassifier{err: errors.New("backend down")}
	xPub := &fakePublisher{enabled: true, platform: "x"}
	nostrPub := &fakePublisher{enabled: false, platform: "nostr"}
	repo := &fakeDefRepo{defs: sampleDefinitions()}
	loop := NewRunLoop(source, repo, classifier, xPub, nostrPub, state, fixedClock{t: time.Now()}, cfg)

	results, err := loop.PollOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, domain.StatusFailed, r.Result.Status)
	}

	got, err := state.GetAccountState(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "2", got.SinceID)
}

func TestPollOnceUsesStoredCursor(t *testing.T) {
	source := &fakeSource{posts: map[string][]domain.SourcePost{}}
	state := newFakeState()
	require.NoError(t, state.SetAccountState(context.Background(), &domain.AccountState{
		Account: "alice",
		SinceID: "42",
	}))

	cfg := DefaultRunLoopConfig()
	cfg.Accounts = []string{"alice"}

	loop, _, _ := newTestRunLoop(t, source, state, cfg)

	_, err := loop.PollOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, source.fetches, 1)
	assert.Equal(t, "alice:42", source.fetches[0])
}

func TestPollOnceDefinitionsErrorIsFatal(t *testing.T) {
	state := newFakeState()
	repo := &fakeDefRepo{err: domain.ErrNoDefinitions}
	classifier := &capturingClassifier{response: domain.NewClassifyOutput("s", nil)}
	cfg := DefaultRunLoopConfig()
	cfg.Accounts = []string{"alice"}

	loop := NewRunLoop(&fakeSource{}, repo, classifier,
		&fakePublisher{platform: "x"}, &fakePublisher{platform: "nostr"},
		state, fixedClock{t: time.Now()}, cfg)

	_, err := loop.PollOnce(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoDefinitions)
}

func TestPollOnceXPublishFailureStillRecordsAndPublishesNostr(t *testing.T) {
	source := &fakeSource{posts: map[string][]domain.SourcePost{
		"alice": {post("1", "a post")},
	}}
	state := newFakeState()
	cfg := DefaultRunLoopConfig()
	cfg.Accounts = []string{"alice"}
	cfg.DryRun = false

	loop, xPub, nostrPub := newTestRunLoop(t, source, state, cfg)
	xPub.err = errors.New("x api down")

	results, err := loop.PollOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusPublished, results[0].Result.Status)
	assert.Empty(t, results[0].Result.XPostID)
	assert.NotEmpty(t, results[0].Result.NostrEventID)
	assert.Len(t, nostrPub.published, 1)

	require.Len(t, state.records, 1)
	assert.Empty(t, state.records[0].XPostID)
	assert.NotEmpty(t, state.records[0].NostrEventID)
}

func TestPollOncePolicyViolationFails(t *testing.T) {
	source := &fakeSource{posts: map[string][]domain.SourcePost{
		"alice": {post("1", "a post")},
	}}
	state := newFakeState()
	cfg := DefaultRunLoopConfig()
	cfg.Accounts = []string{"alice"}
	cfg.DryRun = false
	cfg.Policy = &domain.PolicyConfig{ForbiddenPatterns: []string{"fear framing"}}

	loop, xPub, _ := newTestRunLoop(t, source, state, cfg)

	results, err := loop.PollOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.StatusFailed, results[0].Result.Status)
	assert.Empty(t, xPub.published)
}
