// Package sqlite implements the state store on an embedded SQLite
// database with WAL journaling.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/tagwatch/internal/adapters/driven/state/sqlite/migrations"
	"github.com/custodia-labs/tagwatch/internal/core/domain"
	"github.com/custodia-labs/tagwatch/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.StateStore = (*Store)(nil)

// Store persists account cursors and published records in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the state database at dbPath. If dbPath is
// empty, defaults to ~/.tagwatch/state.db.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".tagwatch", "state.db")
	}

	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, path: dbPath}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// GetAccountState returns the stored cursor for an account.
func (s *Store) GetAccountState(ctx context.Context, account string) (*domain.AccountState, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT account, since_id, updated_at FROM account_state WHERE account = ?", account)

	var state domain.AccountState
	var sinceID sql.NullString
	var updatedAt string
	if err := row.Scan(&state.Account, &sinceID, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account state for %s: %w", account, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("querying account state: %w", err)
	}

	state.SinceID = sinceID.String
	ts, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	state.UpdatedAt = ts

	return &state, nil
}

// SetAccountState upserts the cursor for an account.
func (s *Store) SetAccountState(ctx context.Context, state *domain.AccountState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_state (account, since_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET
			since_id = excluded.since_id,
			updated_at = excluded.updated_at
	`, state.Account, state.SinceID, state.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving account state: %w", err)
	}
	return nil
}

// IsProcessed reports whether the (post, taxonomy) pair has a record.
func (s *Store) IsProcessed(ctx context.Context, sourcePostID, taxonomyHash string) (bool, error) {
	var count int
	row := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM published_records WHERE source_post_id = ? AND taxonomy_hash = ?",
		sourcePostID, taxonomyHash)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("querying published records: %w", err)
	}
	return count > 0, nil
}

// RecordPublished upserts a published record. On conflict, non-empty
// platform IDs replace stored ones and empty ones preserve them.
func (s *Store) RecordPublished(ctx context.Context, record *domain.PublishedRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO published_records (id, source_post_id, taxonomy_hash, x_post_id, nostr_event_id, published_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_post_id, taxonomy_hash) DO UPDATE SET
			x_post_id = COALESCE(NULLIF(excluded.x_post_id, ''), published_records.x_post_id),
			nostr_event_id = COALESCE(NULLIF(excluded.nostr_event_id, ''), published_records.nostr_event_id),
			published_at = excluded.published_at
	`, record.ID, record.SourcePostID, record.TaxonomyHash,
		record.XPostID, record.NostrEventID,
		record.PublishedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording publication: %w", err)
	}
	return nil
}

// GetPublished returns the record for a (post, taxonomy) pair.
func (s *Store) GetPublished(ctx context.Context, sourcePostID, taxonomyHash string) (*domain.PublishedRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_post_id, taxonomy_hash, x_post_id, nostr_event_id, published_at
		FROM published_records
		WHERE source_post_id = ? AND taxonomy_hash = ?
	`, sourcePostID, taxonomyHash)

	var record domain.PublishedRecord
	var xPostID, nostrEventID sql.NullString
	var publishedAt string
	err := row.Scan(&record.ID, &record.SourcePostID, &record.TaxonomyHash,
		&xPostID, &nostrEventID, &publishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("published record for %s: %w", sourcePostID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("querying published record: %w", err)
	}

	record.XPostID = xPostID.String
	record.NostrEventID = nostrEventID.String
	ts, err := time.Parse(time.RFC3339, publishedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing published_at: %w", err)
	}
	record.PublishedAt = ts

	return &record, nil
}
