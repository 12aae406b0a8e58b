package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// TagDefinition is a user-defined narrative tag loaded from a markdown file.
// Definitions are loaded fresh each poll cycle and immutable thereafter.
type TagDefinition struct {
	// ID is the unique identifier, from the filename or frontmatter.
	// Must match [a-z0-9_]+.
	ID string

	// Title is the human-readable title.
	Title string

	// Aliases are optional alternative names for the tag.
	Aliases []string

	// Short is an optional one-line description from frontmatter.
	Short string

	// Content is the full raw markdown content of the definition file.
	Content string

	// FilePath is the source file path.
	FilePath string
}

// Taxonomy is an immutable, sorted snapshot of the full definition set for
// one poll cycle, with a SHA-256 fingerprint used as part of the idempotency
// key. Identical definition sets always produce identical hashes regardless
// of load order; any content change changes the hash.
type Taxonomy struct {
	// Definitions is sorted ascending by ID.
	Definitions []TagDefinition

	// Hash is the hex SHA-256 digest over (id, content, file_path) of every
	// definition in sorted order. Fields are concatenated without
	// separators; adjacent-field collisions are a known, accepted
	// limitation.
	Hash string
}

// NewTaxonomy builds a taxonomy from definitions, sorting and hashing them.
// The input slice is taken over by the taxonomy.
func NewTaxonomy(definitions []TagDefinition) *Taxonomy {
	sort.Slice(definitions, func(i, j int) bool {
		return definitions[i].ID < definitions[j].ID
	})

	h := sha256.New()
	for _, def := range definitions {
		h.Write([]byte(def.ID))
		h.Write([]byte(def.Content))
		h.Write([]byte(def.FilePath))
	}

	return &Taxonomy{
		Definitions: definitions,
		Hash:        hex.EncodeToString(h.Sum(nil)),
	}
}

// Get returns the definition with the given ID, or nil.
func (t *Taxonomy) Get(id string) *TagDefinition {
	for i := range t.Definitions {
		if t.Definitions[i].ID == id {
			return &t.Definitions[i]
		}
	}
	return nil
}

// IDs returns all definition IDs in sorted order.
func (t *Taxonomy) IDs() []string {
	ids := make([]string, len(t.Definitions))
	for i, def := range t.Definitions {
		ids[i] = def.ID
	}
	return ids
}
