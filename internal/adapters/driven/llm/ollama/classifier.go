// Package ollama provides a classifier adapter for a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/custodia-labs/tagwatch/internal/adapters/driven/llm"
	"github.com/custodia-labs/tagwatch/internal/core/domain"
	"github.com/custodia-labs/tagwatch/internal/core/ports/driven"
)

// Ensure Classifier implements the interface.
var _ driven.Classifier = (*Classifier)(nil)

// DefaultBaseURL is the local Ollama endpoint.
const DefaultBaseURL = "http://localhost:11434"

// Config holds configuration for the Ollama classifier.
type Config struct {
	// BaseURL is the Ollama server URL (default: http://localhost:11434).
	BaseURL string

	// LLM holds the shared model settings.
	LLM llm.Config
}

// Classifier classifies posts via a local Ollama server.
type Classifier struct {
	client  *http.Client
	baseURL string
	config  llm.Config
}

type generateRequest struct {
	Model   string           `json:"model"`
	Prompt  string           `json:"prompt"`
	System  string           `json:"system,omitempty"`
	Stream  bool             `json:"stream"`
	Options *generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// New creates an Ollama classifier.
func New(cfg Config) *Classifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM = llm.DefaultConfig()
	}

	return &Classifier{
		client:  &http.Client{Timeout: cfg.LLM.Timeout},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		config:  cfg.LLM,
	}
}

// Name returns the backend name.
func (c *Classifier) Name() string { return "ollama" }

// Classify classifies a post with retry and backoff.
func (c *Classifier) Classify(ctx context.Context, input domain.ClassifyInput) (*domain.ClassifyOutput, error) {
	return llm.ClassifyWithRetry(ctx, c.config, input, c.call)
}

func (c *Classifier) call(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.config.Model,
		Prompt: prompt,
		System: "You are a narrative analysis system. Output only valid JSON.",
		Stream: false,
		Options: &generateOptions{
			Temperature: c.config.Temperature,
			NumPredict:  c.config.MaxOutputTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", domain.ErrTimeout
		}
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidFormat, err)
	}
	if apiResp.Response == "" {
		return "", fmt.Errorf("%w: empty response", domain.ErrInvalidFormat)
	}

	return apiResp.Response, nil
}
