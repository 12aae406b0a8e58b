// Package memory provides an in-memory state store for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
	"github.com/custodia-labs/tagwatch/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.StateStore = (*Store)(nil)

type recordKey struct {
	sourcePostID string
	taxonomyHash string
}

// Store keeps all state in maps. Safe for concurrent use. Nothing
// survives process exit.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]domain.AccountState
	records  map[recordKey]domain.PublishedRecord
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]domain.AccountState),
		records:  make(map[recordKey]domain.PublishedRecord),
	}
}

// GetAccountState returns the stored cursor for an account.
func (s *Store) GetAccountState(_ context.Context, account string) (*domain.AccountState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.accounts[account]
	if !ok {
		return nil, fmt.Errorf("account state for %s: %w", account, domain.ErrNotFound)
	}
	return &state, nil
}

// SetAccountState upserts the cursor for an account.
func (s *Store) SetAccountState(_ context.Context, state *domain.AccountState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[state.Account] = *state
	return nil
}

// IsProcessed reports whether the (post, taxonomy) pair has a record.
func (s *Store) IsProcessed(_ context.Context, sourcePostID, taxonomyHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[recordKey{sourcePostID, taxonomyHash}]
	return ok, nil
}

// RecordPublished upserts a published record. On conflict, non-empty
// platform IDs replace stored ones and empty ones preserve them.
func (s *Store) RecordPublished(_ context.Context, record *domain.PublishedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := recordKey{record.SourcePostID, record.TaxonomyHash}
	stored, ok := s.records[key]
	if !ok {
		s.records[key] = *record
		return nil
	}

	if record.XPostID != "" {
		stored.XPostID = record.XPostID
	}
	if record.NostrEventID != "" {
		stored.NostrEventID = record.NostrEventID
	}
	stored.PublishedAt = record.PublishedAt
	s.records[key] = stored
	return nil
}

// GetPublished returns the record for a (post, taxonomy) pair.
func (s *Store) GetPublished(_ context.Context, sourcePostID, taxonomyHash string) (*domain.PublishedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[recordKey{sourcePostID, taxonomyHash}]
	if !ok {
		return nil, fmt.Errorf("published record for %s: %w", sourcePostID, domain.ErrNotFound)
	}
	return &record, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }
