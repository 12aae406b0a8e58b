// Package localcmd provides a classifier adapter that shells out to a
// local CLI command. The prompt is passed on stdin unless an argument
// contains the {prompt} placeholder.
package localcmd

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/custodia-labs/tagwatch/internal/adapters/driven/llm"
	"github.com/custodia-labs/tagwatch/internal/core/domain"
	"github.com/custodia-labs/tagwatch/internal/core/ports/driven"
)

// Ensure Classifier implements the interface.
var _ driven.Classifier = (*Classifier)(nil)

// Config holds configuration for the local command classifier.
type Config struct {
	// Command is the executable to run (required).
	Command string

	// Args are the command arguments. Placeholders {prompt}, {model},
	// {temperature} and {max_output_tokens} are expanded per call.
	Args []string

	// LLM holds the shared model settings.
	LLM llm.Config
}

// Classifier classifies posts by running a local command.
type Classifier struct {
	command string
	args    []string
	config  llm.Config
}

// New creates a local command classifier.
func New(cfg Config) (*Classifier, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("localcmd: %w: command is required", domain.ErrConfig)
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM = llm.DefaultConfig()
	}

	return &Classifier{
		command: cfg.Command,
		args:    cfg.Args,
		config:  cfg.LLM,
	}, nil
}

// Name returns the backend name.
func (c *Classifier) Name() string { return "localcmd" }

// Classify classifies a post with retry and backoff.
func (c *Classifier) Classify(ctx context.Context, input domain.ClassifyInput) (*domain.ClassifyOutput, error) {
	return llm.ClassifyWithRetry(ctx, c.config, input, c.run)
}

func (c *Classifier) run(ctx context.Context, prompt string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	args, usedPromptArg := c.expandArgs(prompt)

	cmd := exec.CommandContext(runCtx, c.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if !usedPromptArg {
		cmd.Stdin = strings.NewReader(prompt)
	}

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return "", domain.ErrTimeout
		}
		return "", fmt.Errorf("command %s failed: %w: %s", c.command, err, stderr.String())
	}

	out := stdout.String()
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%w: empty response", domain.ErrInvalidFormat)
	}
	return out, nil
}

// expandArgs substitutes placeholders and reports whether the prompt was
// passed as an argument.
func (c *Classifier) expandArgs(prompt string) ([]string, bool) {
	usedPromptArg := false
	expanded := make([]string, len(c.args))
	for i, arg := range c.args {
		value := arg
		if strings.Contains(value, "{prompt}") {
			usedPromptArg = true
			value = strings.ReplaceAll(value, "{prompt}", prompt)
		}
		value = strings.ReplaceAll(value, "{model}", c.config.Model)
		value = strings.ReplaceAll(value, "{temperature}", strconv.FormatFloat(c.config.Temperature, 'g', -1, 64))
		value = strings.ReplaceAll(value, "{max_output_tokens}", strconv.Itoa(c.config.MaxOutputTokens))
		expanded[i] = value
	}
	return expanded, usedPromptArg
}
