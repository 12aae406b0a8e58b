package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
)

type capturingClassifier struct {
	response *domain.ClassifyOutput
	err      error
	lastIn   domain.ClassifyInput
}

func (c *capturingClassifier) Classify(_ context.Context, input domain.ClassifyInput) (*domain.ClassifyOutput, error) {
	c.lastIn = input
	if c.err != nil {
		return nil, c.err
	}
	return c.response, nil
}

func (c *capturingClassifier) Name() string { return "fake" }

func samplePost() *domain.SourcePost {
	return &domain.SourcePost{
		ID:        "123",
		Text:      "Climate change is causing unprecedented disasters",
		Author:    "testuser",
		URL:       "https://x.com/testuser/status/123",
		CreatedAt: time.Now(),
	}
}

func sampleDefinitions() []domain.TagDefinition {
	return []domain.TagDefinition{
		{
			ID:       "climate_fear",
			Title:    "Climate Fear",
			Aliases:  []string{"climate doom"},
			Short:    "Fear-based climate messaging",
			Content:  "# Climate Fear\nDefinition content...",
			FilePath: "climate_fear.md",
		},
		{
			ID:       "economic_control",
			Title:    "Economic Control",
			Short:    "Centralized economic policies",
			Content:  "# Economic Control\nDefinition content...",
			FilePath: "economic_control.md",
		},
	}
}

func TestClassifyReturnsOutput(t *testing.T) {
	expected := domain.NewClassifyOutput("Post discusses climate disasters", []domain.TagMatch{
		{
			ID:         "climate_fear",
			Confidence: 0.85,
			Rationale:  "Uses fear-based framing",
			Evidence:   []string{"unprecedented disasters"},
		},
	})
	classifier := &capturingClassifier{response: expected}
	svc := NewClassifyService(classifier, DefaultClassifyConfig())

	result, err := svc.Classify(context.Background(), samplePost(), sampleDefinitions())
	require.NoError(t, err)
	require.Len(t, result.Tags, 1)
	assert.Equal(t, "climate_fear", result.Tags[0].ID)
}

func TestPrefilterLimitsDefinitions(t *testing.T) {
	classifier := &capturingClassifier{response: domain.NewClassifyOutput("Summary", nil)}
	svc := NewClassifyService(classifier, ClassifyConfig{PrefilterTopK: 1})

	_, err := svc.Classify(context.Background(), samplePost(), sampleDefinitions())
	require.NoError(t, err)
	assert.Len(t, classifier.lastIn.Definitions, 1)
}

func TestPrefilterRanksClimateDefinitionFirst(t *testing.T) {
	classifier := &capturingClassifier{response: domain.NewClassifyOutput("Summary", nil)}
	svc := NewClassifyService(classifier, ClassifyConfig{PrefilterTopK: 1})

	// Post text mentions "climate" and "disasters": the climate definition
	// scores via its short-description words, the economic one does not.
	_, err := svc.Classify(context.Background(), samplePost(), sampleDefinitions())
	require.NoError(t, err)
	require.Len(t, classifier.lastIn.Definitions, 1)
	assert.Equal(t, "climate_fear", classifier.lastIn.Definitions[0].ID)
}

func TestPrefilterDisabledPassesAllDefinitions(t *testing.T) {
	classifier := &capturingClassifier{response: domain.NewClassifyOutput("Summary", nil)}
	svc := NewClassifyService(classifier, ClassifyConfig{PrefilterTopK: 0})

	_, err := svc.Classify(context.Background(), samplePost(), sampleDefinitions())
	require.NoError(t, err)
	assert.Len(t, classifier.lastIn.Definitions, 2)
}

func TestPrefilterTopKAtLeastSetSizePassesAll(t *testing.T) {
	classifier := &capturingClassifier{response: domain.NewClassifyOutput("Summary", nil)}
	svc := NewClassifyService(classifier, ClassifyConfig{PrefilterTopK: 10})

	_, err := svc.Classify(context.Background(), samplePost(), sampleDefinitions())
	require.NoError(t, err)
	assert.Len(t, classifier.lastIn.Definitions, 2)
}

func TestClassifyForwardsPolicyText(t *testing.T) {
	classifier := &capturingClassifier{response: domain.NewClassifyOutput("Summary", nil)}
	svc := NewClassifyService(classifier, ClassifyConfig{PolicyText: "Output Policy: be neutral"})

	_, err := svc.Classify(context.Background(), samplePost(), sampleDefinitions())
	require.NoError(t, err)
	assert.Equal(t, "Output Policy: be neutral", classifier.lastIn.PolicyText)
}

func TestRelevanceScoreWeights(t *testing.T) {
	post := &domain.SourcePost{Text: "Climate Fear and climate doom everywhere"}
	def := &domain.TagDefinition{
		ID:      "climate_fear",
		Title:   "Climate Fear",
		Aliases: []string{"climate doom"},
	}

	// Title match (1.0) plus one alias match (0.5).
	assert.InDelta(t, 1.5, relevanceScore(post, def), 0.001)
}
