// Package fs provides a filesystem-based tag definitions repository.
// Definitions are markdown files with optional YAML frontmatter.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
	"github.com/custodia-labs/tagwatch/internal/core/ports/driven"
	"github.com/custodia-labs/tagwatch/internal/logger"
)

// Ensure Repo implements the interface.
var _ driven.DefinitionsRepo = (*Repo)(nil)

var idPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Repo loads tag definitions from .md files in a single directory.
type Repo struct {
	dir string
}

// frontmatter is the optional YAML header of a definition file.
type frontmatter struct {
	ID      string   `yaml:"id"`
	Title   string   `yaml:"title"`
	Short   string   `yaml:"short"`
	Aliases []string `yaml:"aliases"`
}

// New creates a repo over the given directory. The directory must exist.
func New(dir string) (*Repo, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("definitions directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("definitions path %s is not a directory", dir)
	}
	return &Repo{dir: dir}, nil
}

// Dir returns the definitions directory.
func (r *Repo) Dir() string { return r.dir }

// Load reads every .md file in the directory and returns the parsed
// definitions sorted by ID.
func (r *Repo) Load(ctx context.Context) ([]domain.TagDefinition, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read definitions dir: %w", err)
	}

	var definitions []domain.TagDefinition
	seen := make(map[string]string)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		path := filepath.Join(r.dir, entry.Name())
		def, err := r.parseFile(path)
		if err != nil {
			return nil, err
		}

		if existing, ok := seen[def.ID]; ok {
			return nil, &domain.DuplicateIDError{ID: def.ID, Files: []string{existing, path}}
		}
		seen[def.ID] = path

		definitions = append(definitions, *def)
	}

	if len(definitions) == 0 {
		return nil, fmt.Errorf("%w in %s", domain.ErrNoDefinitions, r.dir)
	}

	sort.Slice(definitions, func(i, j int) bool {
		return definitions[i].ID < definitions[j].ID
	})

	return definitions, nil
}

// Validate checks the full definition set without returning it.
func (r *Repo) Validate(ctx context.Context) error {
	_, err := r.Load(ctx)
	return err
}

// parseFile parses one definition file. The returned Content is the raw
// file text, frontmatter included, so any edit changes the taxonomy hash.
func (r *Repo) parseFile(path string) (*domain.TagDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	content := string(raw)

	fm, body := splitFrontmatter(content)

	id := fm.ID
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(path), ".md")
	}
	if !idPattern.MatchString(id) {
		return nil, &domain.InvalidIDError{ID: id}
	}

	title := fm.Title
	if title == "" {
		title = extractH1(body)
	}
	if title == "" {
		title = strings.ReplaceAll(id, "_", " ")
	}

	return &domain.TagDefinition{
		ID:       id,
		Title:    title,
		Aliases:  fm.Aliases,
		Short:    fm.Short,
		Content:  content,
		FilePath: path,
	}, nil
}

// splitFrontmatter extracts the YAML header, if any, and the remaining
// body. Malformed frontmatter is treated as plain body text.
func splitFrontmatter(content string) (frontmatter, string) {
	var fm frontmatter

	if !strings.HasPrefix(content, "---") {
		return fm, content
	}

	parts := strings.SplitN(content, "---", 3)
	if len(parts) < 3 {
		return fm, content
	}

	if err := yaml.Unmarshal([]byte(parts[1]), &fm); err != nil {
		logger.Warn("invalid frontmatter, treating as body: %v", err)
		return frontmatter{}, content
	}

	return fm, strings.TrimSpace(parts[2])
}

// extractH1 returns the first markdown H1 heading, if any.
func extractH1(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(after)
		}
	}
	return ""
}

// Watch invokes onChange whenever a file in the definitions directory is
// created, modified, renamed or removed, until ctx is cancelled. Used by
// the validate --watch workflow.
func (r *Repo) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("watch %s: %w", r.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				logger.Debug("definitions change: %s", event)
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error: %v", err)
		}
	}
}
