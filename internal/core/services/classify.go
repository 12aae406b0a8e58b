// Package services contains the core orchestration logic of tagwatch:
// classification, rendering, rate limiting, and the account poll loop.
package services

import (
	"context"
	"sort"
	"strings"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
	"github.com/custodia-labs/tagwatch/internal/core/ports/driven"
	"github.com/custodia-labs/tagwatch/internal/logger"
)

// ClassifyConfig configures the classify service.
type ClassifyConfig struct {
	// PrefilterTopK caps how many definitions reach the classifier.
	// 0 or negative disables the prefilter.
	PrefilterTopK int

	// PolicyText is optional policy text passed through to the prompt.
	PolicyText string

	// MaxOutputChars caps output length for the target platform. 0 = none.
	MaxOutputChars int
}

// DefaultClassifyConfig returns the default classify configuration.
func DefaultClassifyConfig() ClassifyConfig {
	return ClassifyConfig{PrefilterTopK: 12}
}

// ClassifyService classifies posts against a taxonomy, prefiltering the
// definition set down to the most relevant candidates before the backend
// call.
type ClassifyService struct {
	classifier driven.Classifier
	config     ClassifyConfig
}

// NewClassifyService creates a classify service.
func NewClassifyService(classifier driven.Classifier, config ClassifyConfig) *ClassifyService {
	return &ClassifyService{classifier: classifier, config: config}
}

// Classify classifies a post against the given definitions.
func (s *ClassifyService) Classify(ctx context.Context, post *domain.SourcePost, definitions []domain.TagDefinition) (*domain.ClassifyOutput, error) {
	selected := s.selectDefinitions(post, definitions)

	logger.Info("classifying post %s against %d definitions", post.ID, len(selected))

	return s.classifier.Classify(ctx, domain.ClassifyInput{
		Post:           *post,
		Definitions:    selected,
		MaxOutputChars: s.config.MaxOutputChars,
		PolicyText:     s.config.PolicyText,
	})
}

// selectDefinitions applies the keyword prefilter when the configured top-k
// is positive and smaller than the definition set. Otherwise the full set
// passes through unchanged.
func (s *ClassifyService) selectDefinitions(post *domain.SourcePost, definitions []domain.TagDefinition) []domain.TagDefinition {
	k := s.config.PrefilterTopK
	if k <= 0 || k >= len(definitions) {
		return definitions
	}

	type scored struct {
		def   domain.TagDefinition
		score float64
	}
	candidates := make([]scored, len(definitions))
	for i, def := range definitions {
		candidates[i] = scored{def: def, score: relevanceScore(post, &def)}
	}

	// Stable sort keeps the ID order for tied scores.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	candidates = candidates[:k]

	selected := make([]domain.TagDefinition, k)
	for i, c := range candidates {
		selected[i] = c.def
	}

	if logger.IsVerbose() {
		ids := make([]string, len(selected))
		for i, def := range selected {
			ids[i] = def.ID
		}
		logger.Debug("prefiltered definitions: %v", ids)
	}

	return selected
}

// relevanceScore is a cheap keyword-overlap heuristic: title matches weigh
// most, then aliases, then short-description words, then content words
// (lightest, so huge definition files don't dominate).
func relevanceScore(post *domain.SourcePost, def *domain.TagDefinition) float64 {
	postLower := strings.ToLower(post.Text)

	var score float64
	if strings.Contains(postLower, strings.ToLower(def.Title)) {
		score += 1.0
	}

	for _, alias := range def.Aliases {
		if strings.Contains(postLower, strings.ToLower(alias)) {
			score += 0.5
		}
	}

	for _, word := range strings.Fields(def.Short) {
		if len(word) > 3 && strings.Contains(postLower, strings.ToLower(word)) {
			score += 0.1
		}
	}

	for _, word := range strings.Fields(def.Content) {
		if len(word) > 4 && strings.Contains(postLower, strings.ToLower(word)) {
			score += 0.03
		}
	}

	return score
}
