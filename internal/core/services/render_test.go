package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
)

func sampleClassification() *domain.ClassifyOutput {
	return domain.NewClassifyOutput("Summary of the post", []domain.TagMatch{
		{
			ID:         "tag_one",
			Confidence: 0.85,
			Rationale:  "First rationale explaining the match",
			Evidence:   []string{"evidence 1"},
		},
		{
			ID:         "tag_two",
			Confidence: 0.62,
			Rationale:  "Second rationale",
			Evidence:   []string{"evidence 2"},
		},
	})
}

func TestRenderForXReplyMode(t *testing.T) {
	cfg := DefaultRenderConfig()
	cfg.XPublishMode = domain.ModeReply
	r := NewRenderer(cfg)

	result := r.RenderForX(samplePost(), sampleClassification())

	assert.Contains(t, result.Text, "Tags:")
	assert.Contains(t, result.Text, "tag_one")
	assert.Contains(t, result.Text, "0.85")
	assert.NotContains(t, result.Text, "https://")
}

func TestRenderForXQuoteModeOmitsURL(t *testing.T) {
	cfg := DefaultRenderConfig()
	cfg.XPublishMode = domain.ModeQuote
	r := NewRenderer(cfg)

	result := r.RenderForX(samplePost(), sampleClassification())
	assert.NotContains(t, result.Text, "https://")
}

func TestRenderForXNewPostModeIncludesURL(t *testing.T) {
	cfg := DefaultRenderConfig()
	cfg.XPublishMode = domain.ModeNewPost
	r := NewRenderer(cfg)

	result := r.RenderForX(samplePost(), sampleClassification())
	assert.Contains(t, result.Text, "https://x.com/testuser/status/123")
}

func TestRenderRespectsMaxChars(t *testing.T) {
	cfg := DefaultRenderConfig()
	cfg.XMaxChars = 280
	r := NewRenderer(cfg)

	long := domain.NewClassifyOutput("Summary", []domain.TagMatch{
		{
			ID:         "tag_one",
			Confidence: 0.9,
			Rationale:  strings.Repeat("very long rationale ", 30),
		},
	})

	result := r.RenderForX(samplePost(), long)
	assert.LessOrEqual(t, len(result.Text), 280)
}

func TestRenderNewPostNeverCutsURL(t *testing.T) {
	cfg := DefaultRenderConfig()
	cfg.XPublishMode = domain.ModeNewPost
	cfg.XMaxChars = 280
	r := NewRenderer(cfg)

	long := domain.NewClassifyOutput("Summary", []domain.TagMatch{
		{
			ID:         "tag_one",
			Confidence: 0.9,
			Rationale:  strings.Repeat("word ", 100),
		},
	})

	post := samplePost()
	result := r.RenderForX(post, long)
	assert.LessOrEqual(t, len(result.Text), 280)
	assert.True(t, strings.HasSuffix(result.Text, post.URL))
}

func TestRenderFiltersLowConfidence(t *testing.T) {
	cfg := DefaultRenderConfig()
	cfg.MinConfidence = 0.5
	r := NewRenderer(cfg)

	low := domain.NewClassifyOutput("Summary", []domain.TagMatch{
		{ID: "low_tag", Confidence: 0.3, Rationale: "Low confidence match"},
	})

	result := r.RenderForX(samplePost(), low)
	assert.Contains(t, result.Text, "(none detected)")
}

func TestRenderWithoutConfidenceScores(t *testing.T) {
	cfg := DefaultRenderConfig()
	cfg.IncludeConfidence = false
	r := NewRenderer(cfg)

	result := r.RenderForX(samplePost(), sampleClassification())
	assert.Contains(t, result.Text, "tag_one")
	assert.NotContains(t, result.Text, "(0.85)")
}

func TestRenderForNostr(t *testing.T) {
	r := NewRenderer(DefaultRenderConfig())

	result := r.RenderForNostr(samplePost(), sampleClassification())

	assert.Contains(t, result.Text, "Narrative analysis of testuser")
	assert.Contains(t, result.Text, "tag_one")
	assert.Contains(t, result.Text, "• tag_one: First rationale explaining the match")
	assert.Contains(t, result.Text, "Original: https://x.com/testuser/status/123")
}

func TestRenderForNostrNoTags(t *testing.T) {
	r := NewRenderer(DefaultRenderConfig())

	empty := domain.NewClassifyOutput("Summary", nil)
	result := r.RenderForNostr(samplePost(), empty)

	assert.Contains(t, result.Text, "Tags: (none detected)")
	assert.Contains(t, result.Text, "No significant narrative patterns detected.")
}

func TestTruncateBreaksAtWhitespace(t *testing.T) {
	r := NewRenderer(DefaultRenderConfig())

	out := r.truncate("hello world this is content", 15)
	assert.Equal(t, "hello world...", out)
	assert.LessOrEqual(t, len(out), 15)
}

func TestTruncateShortContentUnchanged(t *testing.T) {
	r := NewRenderer(DefaultRenderConfig())

	assert.Equal(t, "short", r.truncate("short", 280))
}
