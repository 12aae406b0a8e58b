// Package llm holds shared building blocks for the LLM classifier
// adapters: prompt construction, response parsing, and the retry loop.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
	"github.com/custodia-labs/tagwatch/internal/logger"
)

// Default configuration values.
const (
	DefaultModel           = "gpt-4o-mini"
	DefaultTemperature     = 0.2
	DefaultMaxOutputTokens = 600
	DefaultTimeout         = 45 * time.Second
	DefaultRetries         = 2
)

// Config holds common settings shared by every LLM backend.
type Config struct {
	// Model is the model name/ID.
	Model string

	// Temperature in [0, 1].
	Temperature float64

	// MaxOutputTokens caps the response length.
	MaxOutputTokens int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// Retries is how many times a failed call is retried.
	Retries int
}

// DefaultConfig returns the default LLM configuration.
func DefaultConfig() Config {
	return Config{
		Model:           DefaultModel,
		Temperature:     DefaultTemperature,
		MaxOutputTokens: DefaultMaxOutputTokens,
		Timeout:         DefaultTimeout,
		Retries:         DefaultRetries,
	}
}

// BuildPrompt renders the classification prompt for one post against a set
// of definitions.
func BuildPrompt(input domain.ClassifyInput) string {
	var b strings.Builder

	b.WriteString("You are a narrative analysis system. Classify the following post against the provided tag definitions.\n\n")

	b.WriteString("## Post to Analyze\n")
	fmt.Fprintf(&b, "Author: %s\n", input.Post.Author)
	fmt.Fprintf(&b, "Content: %s\n\n", input.Post.Text)

	b.WriteString("## Tag Definitions\n")
	for _, def := range input.Definitions {
		fmt.Fprintf(&b, "### %s (ID: %s)\n", def.Title, def.ID)
		if def.Short != "" {
			fmt.Fprintf(&b, "Summary: %s\n", def.Short)
		}
		fmt.Fprintf(&b, "%s\n\n", def.Content)
	}

	if input.PolicyText != "" {
		b.WriteString("## Policy\n")
		b.WriteString(input.PolicyText)
		b.WriteString("\n\n")
	}

	b.WriteString(`## Output Format
Respond with ONLY a JSON object matching this exact schema:
{
  "version": "1",
  "summary": "1-2 sentence neutral summary of the post content",
  "tags": [
    {
      "id": "tag_id",
      "confidence": 0.0 to 1.0,
      "rationale": "Why this tag applies",
      "evidence": ["direct quote 1", "direct quote 2"]
    }
  ]
}

Rules:
- Only include tags with confidence >= 0.5
- Evidence must be direct quotes from the post
- If no tags apply, return empty tags array
- Be objective and neutral
`)

	return b.String()
}

// ParseResponse parses a backend response into a classification output,
// stripping markdown code fences when present. Parse failures wrap
// domain.ErrInvalidFormat.
func ParseResponse(response string) (*domain.ClassifyOutput, error) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return nil, fmt.Errorf("%w: empty response", domain.ErrInvalidFormat)
	}

	var output domain.ClassifyOutput
	if err := json.Unmarshal([]byte(jsonStr), &output); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidFormat, err)
	}
	return &output, nil
}

// extractJSON pulls the JSON payload out of a response that may wrap it in
// a ```json fence, a bare ``` fence with a language tag, or nothing.
func extractJSON(response string) string {
	trimmed := strings.TrimSpace(response)

	if start := strings.Index(trimmed, "```json"); start >= 0 {
		rest := trimmed[start+7:]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}

	if start := strings.Index(trimmed, "```"); start >= 0 {
		rest := trimmed[start+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			content := strings.TrimSpace(rest[:end])
			// Skip a language identifier line if present.
			if newline := strings.Index(content, "\n"); newline >= 0 {
				firstLine := content[:newline]
				if !strings.HasPrefix(firstLine, "{") {
					return strings.TrimSpace(content[newline+1:])
				}
			}
			return content
		}
	}

	return trimmed
}

// CallFunc performs one raw backend request, returning the response text.
type CallFunc func(ctx context.Context, prompt string) (string, error)

// ClassifyWithRetry runs the shared classify loop: build the prompt, call
// the backend with exponential backoff (500ms doubling per attempt), and
// parse the result. Rate limits abort immediately so the caller can back
// off; parse failures are retried like transient API errors.
func ClassifyWithRetry(ctx context.Context, cfg Config, input domain.ClassifyInput, call CallFunc) (*domain.ClassifyOutput, error) {
	prompt := BuildPrompt(input)

	var lastErr error
	for attempt := 0; attempt <= cfg.Retries; attempt++ {
		if attempt > 0 {
			logger.Warn("retrying classification (attempt %d)", attempt)
			backoff := time.Duration(500*(1<<attempt)) * time.Millisecond
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		text, err := call(ctx, prompt)
		if err != nil {
			if errors.Is(err, domain.ErrRateLimited) {
				return nil, err
			}
			lastErr = err
			continue
		}

		output, err := ParseResponse(text)
		if err != nil {
			logger.Warn("failed to parse response, will retry: %v", err)
			lastErr = err
			continue
		}
		return output, nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return nil, lastErr
}
