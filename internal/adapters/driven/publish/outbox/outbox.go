// Package outbox provides a publisher that appends rendered posts to a
// JSONL file instead of publishing them, for require-approval workflows.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
	"github.com/custodia-labs/tagwatch/internal/core/ports/driven"
)

// Ensure Publisher implements the interface.
var _ driven.Publisher = (*Publisher)(nil)

// Writer appends entries to the outbox file. Safe for concurrent use.
type Writer struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Entry is one pending publication awaiting operator approval.
type Entry struct {
	Platform      string `json:"platform"`
	SourcePostID  string `json:"source_post_id"`
	SourcePostURL string `json:"source_post_url"`
	Text          string `json:"text"`
}

// NewWriter opens (or creates) the outbox file in append mode, creating
// parent directories as needed.
func NewWriter(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create outbox dir: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open outbox: %w", err)
	}

	return &Writer{path: path, file: file}, nil
}

// Path returns the outbox file path.
func (w *Writer) Path() string { return w.path }

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *Writer) append(entry *Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	return w.file.Sync()
}

// Publisher writes would-be publications to the outbox instead of the
// target platform.
type Publisher struct {
	writer   *Writer
	platform string
}

// NewPublisher wraps a writer as a publisher for one platform.
func NewPublisher(writer *Writer, platform string) *Publisher {
	return &Publisher{writer: writer, platform: platform}
}

// Publish appends the rendered post as a JSONL entry.
func (p *Publisher) Publish(_ context.Context, post *domain.RenderedPost) (*driven.PublishResult, error) {
	entry := &Entry{
		Platform:      p.platform,
		SourcePostID:  post.SourcePostID,
		SourcePostURL: post.SourcePostURL,
		Text:          post.Text,
	}
	if err := p.writer.append(entry); err != nil {
		return nil, fmt.Errorf("outbox write failed: %w", err)
	}

	return &driven.PublishResult{ID: uuid.NewString()}, nil
}

// Enabled always reports true; the outbox is the fallback sink.
func (p *Publisher) Enabled() bool { return true }

// Platform returns the wrapped platform name.
func (p *Publisher) Platform() string { return p.platform }
