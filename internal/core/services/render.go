package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
)

// RenderConfig configures the renderer.
type RenderConfig struct {
	// XMaxChars is the character limit for X posts.
	XMaxChars int

	// XPublishMode selects how X content is attached to the source post.
	XPublishMode domain.PublishMode

	// IncludeConfidence appends confidence scores to tag names.
	IncludeConfidence bool

	// IncludeRationale includes the top tag's rationale on X.
	IncludeRationale bool

	// MinConfidence drops tags below this threshold from rendered output.
	MinConfidence float64
}

// DefaultRenderConfig returns the default render configuration.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		XMaxChars:         280,
		XPublishMode:      domain.ModeReply,
		IncludeConfidence: true,
		IncludeRationale:  true,
		MinConfidence:     0.5,
	}
}

// Renderer transforms classification output into platform-specific content.
type Renderer struct {
	config RenderConfig
}

// NewRenderer creates a renderer.
func NewRenderer(config RenderConfig) *Renderer {
	return &Renderer{config: config}
}

// RenderForX renders for X, honoring the publish mode and character limit.
// Reply and quote modes omit the source URL (the platform threads or embeds
// it); new-post mode appends it, reserving space so the URL is never cut.
func (r *Renderer) RenderForX(post *domain.SourcePost, classification *domain.ClassifyOutput) *domain.RenderedPost {
	tagsLine := r.formatTagsLine(classification)
	rationaleLine := r.formatRationaleLine(classification)
	body := tagsLine + "\n" + rationaleLine

	var content string
	switch r.config.XPublishMode {
	case domain.ModeNewPost:
		available := r.config.XMaxChars - (len(post.URL) + 1)
		if available < 0 {
			available = 0
		}
		content = r.truncate(body, available) + "\n" + post.URL
	default: // reply, quote
		content = r.truncate(body, r.config.XMaxChars)
	}

	return &domain.RenderedPost{
		Text:          content,
		SourcePostID:  post.ID,
		SourcePostURL: post.URL,
	}
}

// RenderForNostr renders for Nostr, which has no practical length limit.
func (r *Renderer) RenderForNostr(post *domain.SourcePost, classification *domain.ClassifyOutput) *domain.RenderedPost {
	content := fmt.Sprintf("Narrative analysis of %s\n\n%s\n\n%s\n\nOriginal: %s",
		post.Author,
		r.formatTagsLine(classification),
		r.formatFullRationale(classification),
		post.URL,
	)

	return &domain.RenderedPost{
		Text:          content,
		SourcePostID:  post.ID,
		SourcePostURL: post.URL,
	}
}

func (r *Renderer) filteredTags(classification *domain.ClassifyOutput) []domain.TagMatch {
	var filtered []domain.TagMatch
	for _, tag := range classification.Tags {
		if tag.Confidence >= r.config.MinConfidence {
			filtered = append(filtered, tag)
		}
	}
	return filtered
}

func (r *Renderer) formatTagsLine(classification *domain.ClassifyOutput) string {
	filtered := r.filteredTags(classification)
	if len(filtered) == 0 {
		return "Tags: (none detected)"
	}

	parts := make([]string, len(filtered))
	for i, tag := range filtered {
		if r.config.IncludeConfidence {
			parts[i] = fmt.Sprintf("%s (%.2f)", tag.ID, tag.Confidence)
		} else {
			parts[i] = tag.ID
		}
	}
	return "Tags: " + strings.Join(parts, ", ")
}

// formatRationaleLine returns the top matched tag's rationale, capped at 100
// characters.
func (r *Renderer) formatRationaleLine(classification *domain.ClassifyOutput) string {
	if !r.config.IncludeRationale {
		return ""
	}

	filtered := r.filteredTags(classification)
	if len(filtered) == 0 {
		return ""
	}

	rationale := filtered[0].Rationale
	if len(rationale) > 100 {
		return rationale[:97] + "..."
	}
	return rationale
}

func (r *Renderer) formatFullRationale(classification *domain.ClassifyOutput) string {
	filtered := r.filteredTags(classification)
	if len(filtered) == 0 {
		return "No significant narrative patterns detected."
	}

	lines := make([]string, len(filtered))
	for i, tag := range filtered {
		lines[i] = fmt.Sprintf("• %s: %s", tag.ID, tag.Rationale)
	}
	return strings.Join(lines, "\n")
}

// truncate cuts content to maxLen, breaking at the last whitespace before
// the cut and appending "...".
func (r *Renderer) truncate(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}

	cut := maxLen - 3
	if cut < 0 {
		cut = 0
	}
	breakAt := cut
	if idx := strings.LastIndexFunc(content[:cut], func(c rune) bool {
		return c == ' ' || c == '\t' || c == '\n'
	}); idx >= 0 {
		breakAt = idx
	}

	return content[:breakAt] + "..."
}
