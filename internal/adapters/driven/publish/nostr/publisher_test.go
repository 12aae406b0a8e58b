package nostr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tagwatch/internal/core/domain"
)

// 32 bytes of 0x01, a valid secp256k1 secret key.
const testSecretKey = "0101010101010101010101010101010101010101010101010101010101010101"

func samplePost() *domain.RenderedPost {
	return &domain.RenderedPost{
		Text:          "Narrative analysis of user\n\nTags: test_tag (0.85)\n\nOriginal: https://x.com/user/status/123",
		SourcePostID:  "123",
		SourcePostURL: "https://x.com/user/status/123",
	}
}

func TestNewRejectsBadKey(t *testing.T) {
	_, err := New(Config{SecretKey: "not-hex"})
	assert.ErrorIs(t, err, domain.ErrConfig)

	_, err = New(Config{SecretKey: "abcd"})
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestDisabledPublisher(t *testing.T) {
	p := Disabled()
	assert.False(t, p.Enabled())
	assert.Equal(t, "nostr", p.Platform())

	_, err := p.Publish(context.Background(), samplePost())
	assert.Error(t, err)
}

func TestNoRelaysConfigured(t *testing.T) {
	p, err := New(Config{SecretKey: testSecretKey})
	require.NoError(t, err)

	_, err = p.Publish(context.Background(), samplePost())
	assert.Error(t, err)
}

func TestCreateEventIsValidAndSigned(t *testing.T) {
	p, err := New(Config{SecretKey: testSecretKey})
	require.NoError(t, err)

	event, err := p.createEvent("Test content")
	require.NoError(t, err)

	assert.Equal(t, 1, event.Kind)
	assert.Equal(t, "Test content", event.Content)
	assert.Len(t, event.ID, 64)
	assert.Len(t, event.Pubkey, 64)
	assert.Len(t, event.Sig, 128)

	// The ID must be the SHA-256 of the canonical serialization.
	serialized, err := json.Marshal([]any{0, event.Pubkey, event.CreatedAt, event.Kind, event.Tags, event.Content})
	require.NoError(t, err)
	sum := sha256.Sum256(serialized)
	assert.Equal(t, hex.EncodeToString(sum[:]), event.ID)

	// The signature must verify against the x-only pubkey.
	sigBytes, err := hex.DecodeString(event.Sig)
	require.NoError(t, err)
	sig, err := schnorr.ParseSignature(sigBytes)
	require.NoError(t, err)
	pubBytes, err := hex.DecodeString(event.Pubkey)
	require.NoError(t, err)
	pub, err := schnorr.ParsePubKey(pubBytes)
	require.NoError(t, err)
	idBytes, err := hex.DecodeString(event.ID)
	require.NoError(t, err)
	assert.True(t, sig.Verify(idBytes, pub))
}

func TestPublishSuccess(t *testing.T) {
	var gotBody []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	p, err := New(Config{SecretKey: testSecretKey, Relays: []string{srv.URL}})
	require.NoError(t, err)

	result, err := p.Publish(context.Background(), samplePost())
	require.NoError(t, err)
	assert.Len(t, result.ID, 64)
	assert.Empty(t, result.URL)

	require.Len(t, gotBody, 2)
	assert.Equal(t, "EVENT", gotBody[0])
	assert.True(t, strings.Contains(gotBody[1], result.ID))
}

func TestPublishSucceedsIfAnyRelayAccepts(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer bad.Close()

	p, err := New(Config{SecretKey: testSecretKey, Relays: []string{bad.URL, good.URL}})
	require.NoError(t, err)

	_, err = p.Publish(context.Background(), samplePost())
	assert.NoError(t, err)
}

func TestPublishFailsWhenAllRelaysReject(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer bad.Close()

	p, err := New(Config{SecretKey: testSecretKey, Relays: []string{bad.URL}})
	require.NoError(t, err)

	_, err = p.Publish(context.Background(), samplePost())
	assert.Error(t, err)
}
