// package auth implements the client half of the OAuth2 Authorization Code
// flow with PKCE (RFC 7636) used to connect to Spotify without a client secret.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"
)

const (
	// DefaultVerifierLength is the code verifier length.
	// Spotify accepts 43-128 characters; 64 gives comfortable entropy.
	DefaultVerifierLength = 64

	// DefaultStateLength is the length of the anti-forgery state token.
	DefaultStateLength = 32

	// verifierAlphabet is the unreserved character set RFC 7636 allows for verifiers.
	verifierAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

	// stateAlphabet is the alphanumeric set used for state tokens.
	stateAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateVerifier produces a cryptographically random PKCE code verifier of
// the given length. Pass 0 for the default length.
func GenerateVerifier(length int) (string, error) {
	if length <= 0 {
		length = DefaultVerifierLength
	}
	return randomString(length, verifierAlphabet)
}

// DeriveChallenge computes the S256 code challenge for a verifier:
// base64url(sha256(verifier)) with padding stripped. Deterministic.
func DeriveChallenge(verifier string) string {
	digest := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

// GenerateState produces a cryptographically random anti-forgery state token.
// It is unrelated to the verifier/challenge pair. Pass 0 for the default length.
func GenerateState(length int) (string, error) {
	if length <= 0 {
		length = DefaultStateLength
	}
	return randomString(length, stateAlphabet)
}

// randomString draws length characters from alphabet using crypto/rand.
// A failing random source is fatal to the whole login attempt.
func randomString(length int, alphabet string) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("random source unavailable: %w", err)
	}

	out := make([]byte, length)
	for i, b := range bytes {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}

// Session pairs the code verifier with the state token for one login attempt.
//
// A session is persisted before navigation to the provider begins and consumed
// (read then deleted) exactly once by the callback handler. At most one session
// is live at a time; starting a new login overwrites the previous one.
type Session struct {
	ID        string
	Verifier  string
	State     string
	CreatedAt time.Time
}

// NewSession generates a fresh PKCE session with default lengths.
func NewSession(id string) (*Session, error) {
	verifier, err := GenerateVerifier(0)
	if err != nil {
		return nil, err
	}

	state, err := GenerateState(0)
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:        id,
		Verifier:  verifier,
		State:     state,
		CreatedAt: time.Now(),
	}, nil
}

// Challenge returns the S256 challenge for the session's verifier.
func (s *Session) Challenge() string {
	return DeriveChallenge(s.Verifier)
}
