// Package nostr provides a publisher adapter that signs NIP-01 text notes
// and submits them to relays over their HTTP ingestion endpoints.
package nostr

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
	"github.com/custodia-labs/tagwatch/internal/core/ports/driven"
	"github.com/custodia-labs/tagwatch/internal/logger"
)

// Ensure Publisher implements the interface.
var _ driven.Publisher = (*Publisher)(nil)

// kindTextNote is the NIP-01 kind for plain text notes.
const kindTextNote = 1

// Config holds configuration for the Nostr publisher.
type Config struct {
	// SecretKey is the hex-encoded 32-byte secp256k1 secret key (required).
	SecretKey string

	// Relays are the relay endpoints to publish to. wss:// and ws:// URLs
	// are mapped to their https:// / http:// ingestion equivalents.
	Relays []string

	// Timeout is the per-relay request timeout (default: 30s).
	Timeout time.Duration
}

// Publisher signs and publishes Nostr text notes.
type Publisher struct {
	client  *http.Client
	privKey *btcec.PrivateKey
	pubkey  string
	relays  []string
	enabled bool
	clock   driven.Clock
}

// Event is a NIP-01 wire event.
type Event struct {
	ID        string     `json:"id"`
	Pubkey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// New creates a Nostr publisher.
func New(cfg Config) (*Publisher, error) {
	keyBytes, err := hex.DecodeString(cfg.SecretKey)
	if err != nil || len(keyBytes) != 32 {
		return nil, fmt.Errorf("nostr: %w: secret key must be 64 hex chars", domain.ErrConfig)
	}
	privKey, _ := btcec.PrivKeyFromBytes(keyBytes)

	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Publisher{
		client:  &http.Client{Timeout: cfg.Timeout},
		privKey: privKey,
		pubkey:  hex.EncodeToString(schnorr.SerializePubKey(privKey.PubKey())),
		relays:  cfg.Relays,
		enabled: true,
		clock:   driven.SystemClock{},
	}, nil
}

// Disabled returns a publisher that reports itself disabled.
func Disabled() *Publisher {
	return &Publisher{}
}

// Enabled reports whether the publisher is active.
func (p *Publisher) Enabled() bool { return p.enabled }

// Platform returns "nostr".
func (p *Publisher) Platform() string { return "nostr" }

// Publish signs the rendered text as a kind-1 note and submits it to every
// configured relay. Success on any relay counts as published.
func (p *Publisher) Publish(ctx context.Context, post *domain.RenderedPost) (*driven.PublishResult, error) {
	if !p.enabled {
		return nil, fmt.Errorf("nostr publisher is disabled")
	}
	if len(p.relays) == 0 {
		return nil, fmt.Errorf("no relays configured")
	}

	event, err := p.createEvent(post.Text)
	if err != nil {
		return nil, err
	}

	var lastErr error
	successes := 0
	for _, relay := range p.relays {
		if err := p.publishToRelay(ctx, relay, event); err != nil {
			logger.Warn("failed to publish to relay %s: %v", relay, err)
			lastErr = err
			continue
		}
		logger.Info("published event %s to relay %s", event.ID, relay)
		successes++
	}

	if successes == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("failed to publish to any relay")
		}
		return nil, lastErr
	}

	// Nostr has no canonical URL for an event.
	return &driven.PublishResult{ID: event.ID}, nil
}

// createEvent builds and signs a NIP-01 event. The event ID is the SHA-256
// of the canonical serialization [0, pubkey, created_at, kind, tags,
// content]; the signature is BIP-340 Schnorr over that ID.
func (p *Publisher) createEvent(content string) (*Event, error) {
	createdAt := p.clock.Now().Unix()
	tags := [][]string{}

	serialized, err := json.Marshal([]any{0, p.pubkey, createdAt, kindTextNote, tags, content})
	if err != nil {
		return nil, fmt.Errorf("serialize event: %w", err)
	}

	id := sha256.Sum256(serialized)
	sig, err := schnorr.Sign(p.privKey, id[:])
	if err != nil {
		return nil, fmt.Errorf("sign event: %w", err)
	}

	return &Event{
		ID:        hex.EncodeToString(id[:]),
		Pubkey:    p.pubkey,
		CreatedAt: createdAt,
		Kind:      kindTextNote,
		Tags:      tags,
		Content:   content,
		Sig:       hex.EncodeToString(sig.Serialize()),
	}, nil
}

func (p *Publisher) publishToRelay(ctx context.Context, relay string, event *Event) error {
	endpoint := relay
	switch {
	case strings.HasPrefix(relay, "wss://"):
		endpoint = "https://" + strings.TrimPrefix(relay, "wss://")
	case strings.HasPrefix(relay, "ws://"):
		endpoint = "http://" + strings.TrimPrefix(relay, "ws://")
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	body, err := json.Marshal([]string{"EVENT", string(eventJSON)})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect to relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("relay rejected event: %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
