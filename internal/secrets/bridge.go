// package secrets implements the secure token bridge: the only component that
// ever sees the plaintext refresh token after login.
//
// The bridge stores the refresh token in the host OS credential facility via
// [keyring] (Secret Service, macOS Keychain, Windows Credential Manager, pass,
// or an encrypted file fallback) and hands callers an opaque reference. When no
// keyring backend can be opened the bridge runs in an explicit degraded mode
// and passes tokens through unchanged.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/99designs/keyring"
	"github.com/charmbracelet/log"
	"github.com/zenithdesk/chord/internal/shared"
	"golang.org/x/oauth2"
)

const (
	// opaquePrefix marks a keyring reference, distinguishing it from a
	// plaintext token stored in degraded mode.
	opaquePrefix = "keyring:v1:"

	refreshTokenKey = "spotify_refresh_token"
)

// Bridge encrypts/decrypts the refresh token and performs the refresh-token
// exchange on behalf of the token store.
type Bridge struct {
	ring       keyring.Keyring // nil in degraded mode
	conf       *oauth2.Config
	httpClient *http.Client
	logger     *log.Logger
}

// NewBridge opens the OS keyring and returns a bridge bound to the given
// OAuth2 config. A keyring failure is not fatal: the bridge degrades to
// plaintext pass-through and logs the condition once.
func NewBridge(cfg shared.SecretsConfig, conf *oauth2.Config, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	service := cfg.Service
	if service == "" {
		service = "chord"
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.KeychainBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(service),
		LibSecretCollectionName:  service,
		KeychainTrustApplication: true,
	})
	if err != nil {
		logger.Warn("OS keyring unavailable, refresh tokens will not be encrypted at rest", "error", err)
		ring = nil
	}

	return &Bridge{ring: ring, conf: conf, httpClient: http.DefaultClient, logger: logger}
}

// NewBridgeWithKeyring wires an explicit [keyring.Keyring] and HTTP client.
// Used by tests with [keyring.NewArrayKeyring].
func NewBridgeWithKeyring(ring keyring.Keyring, conf *oauth2.Config, client *http.Client, logger *log.Logger) *Bridge {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Bridge{ring: ring, conf: conf, httpClient: client, logger: logger}
}

// Available reports whether a keyring backend is open.
func (b *Bridge) Available() bool {
	return b.ring != nil
}

// Encrypt stores the plaintext refresh token in the OS keyring and returns an
// opaque reference to it. In degraded mode the plaintext is returned unchanged,
// never a silent failure to encrypt.
func (b *Bridge) Encrypt(plaintext string) (string, error) {
	if b.ring == nil {
		return plaintext, nil
	}

	err := b.ring.Set(keyring.Item{
		Key:  refreshTokenKey,
		Data: []byte(plaintext),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store token in keyring: %w", err)
	}

	return opaquePrefix + refreshTokenKey, nil
}

// decrypt resolves an opaque reference back to the plaintext refresh token.
// A plaintext (degraded mode) value passes through untouched.
func (b *Bridge) decrypt(opaque string) (string, error) {
	if !strings.HasPrefix(opaque, opaquePrefix) {
		return opaque, nil
	}

	if b.ring == nil {
		return "", fmt.Errorf("%w: keyring reference present but no keyring available", shared.ErrDecryptFailed)
	}

	key := strings.TrimPrefix(opaque, opaquePrefix)
	item, err := b.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrDecryptFailed, err)
	}

	return string(item.Data), nil
}

// Refresh decrypts the stored refresh token and exchanges it for a new access
// token. The two failure modes stay distinct: [shared.ErrDecryptFailed] means
// bad local data, [shared.ErrRefreshFailed] means the provider rejected the
// exchange (the user must re-authenticate).
//
// The returned token's RefreshToken field is non-empty only when the provider
// rotated it; the new value is plaintext and must be re-encrypted by the caller.
func (b *Bridge) Refresh(ctx context.Context, opaque string) (*oauth2.Token, error) {
	plaintext, err := b.decrypt(opaque)
	if err != nil {
		return nil, err
	}
	if plaintext == "" {
		return nil, shared.ErrNoRefreshToken
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	src := b.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: plaintext})

	tok, err := src.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, fmt.Errorf("%w: status %d: %s", shared.ErrRefreshFailed,
				retrieveErr.Response.StatusCode, string(retrieveErr.Body))
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	if tok.RefreshToken == plaintext {
		// Not rotated; the caller keeps its stored opaque value.
		tok.RefreshToken = ""
	}

	return tok, nil
}

// Forget removes the stored refresh token from the keyring. Idempotent.
func (b *Bridge) Forget() error {
	if b.ring == nil {
		return nil
	}

	err := b.ring.Remove(refreshTokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to remove token from keyring: %w", err)
	}

	return nil
}
