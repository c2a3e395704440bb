// package tokens owns the process-wide token record: the current access token,
// the opaque refresh token, and the absolute expiry. Every API call obtains
// credentials through [Store.EnsureAccessToken]; nothing else reads or mutates
// the record.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zenithdesk/chord/internal/repositories"
	"github.com/zenithdesk/chord/internal/shared"
	"golang.org/x/oauth2"
)

const (
	// ExpiryMargin keeps a token from being used at the very instant it
	// expires: it is subtracted when a token is accepted and again when
	// freshness is checked.
	ExpiryMargin = 30 * time.Second

	// requestTimeout bounds every network call so a hung provider cannot
	// wedge the ensure-token gate indefinitely.
	requestTimeout = 10 * time.Second
)

// Bridge is the secure token bridge the store routes refresh tokens through.
// Implemented by [secrets.Bridge]; nil when the privileged facility is absent.
//
// Refresh returns a token whose RefreshToken field is non-empty only when the
// provider rotated it (the new value is plaintext).
type Bridge interface {
	Available() bool
	Encrypt(plaintext string) (string, error)
	Refresh(ctx context.Context, opaque string) (*oauth2.Token, error)
	Forget() error
}

// Record is the token state owned by the store. The refresh token is opaque:
// either a keyring reference or, in degraded mode, the plaintext itself.
type Record struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Store holds the token record and transparently refreshes the access token
// when it nears expiry.
//
// The store mutex is held across the refresh exchange, so overlapping
// EnsureAccessToken calls coalesce onto a single network refresh. Spotify
// rotates refresh tokens on use; two racing refreshes could leave the store
// holding an already-invalidated token and permanently break the session.
type Store struct {
	mu         sync.Mutex
	record     Record
	bridge     Bridge
	repo       *repositories.TokenRepository
	conf       *oauth2.Config
	httpClient *http.Client
	logger     *log.Logger
	now        func() time.Time
}

// StoreOpts contains dependencies for creating a [Store].
type StoreOpts struct {
	Bridge     Bridge
	Repo       *repositories.TokenRepository
	Conf       *oauth2.Config
	HTTPClient *http.Client
	Logger     *log.Logger
}

// NewStore creates a Store and restores the persisted refresh token, if any,
// so a connected session survives a restart.
func NewStore(opts StoreOpts) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: requestTimeout}
	}

	s := &Store{
		bridge:     opts.Bridge,
		repo:       opts.Repo,
		conf:       opts.Conf,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		now:        time.Now,
	}

	if s.repo != nil {
		opaque, err := s.repo.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to restore token record: %w", err)
		}
		s.record.RefreshToken = opaque
	}

	return s, nil
}

// Accept installs a fresh token record from a successful code exchange.
//
// The refresh token is routed through the bridge for encryption when one is
// available; otherwise it is kept in plaintext and the degraded mode is logged.
func (s *Store) Accept(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("%w: empty token", shared.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	opaque, err := s.protect(tok.RefreshToken)
	if err != nil {
		return err
	}

	s.record = Record{
		AccessToken:  tok.AccessToken,
		RefreshToken: opaque,
		ExpiresAt:    tok.Expiry.Add(-ExpiryMargin),
	}

	return s.persistLocked()
}

// EnsureAccessToken is the sole gate through which API calls obtain
// credentials.
//
// A cached token that is still more than [ExpiryMargin] from expiry is
// returned with no network call. Otherwise the refresh token is exchanged for
// a new access token. Returns [shared.ErrNotAuthenticated] when no refresh
// token is available; callers must treat any error as "not connected" and
// degrade gracefully.
func (s *Store) EnsureAccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.record.AccessToken != "" && now.Before(s.record.ExpiresAt.Add(-ExpiryMargin)) {
		return s.record.AccessToken, nil
	}

	if s.record.RefreshToken == "" {
		return "", shared.ErrNotAuthenticated
	}

	tok, err := s.refreshLocked(ctx)
	if err != nil {
		s.record.AccessToken = ""
		s.record.ExpiresAt = time.Time{}
		if errors.Is(err, shared.ErrDecryptFailed) {
			// Bad local data: clear everything rather than leave the
			// record in an inconsistent state.
			s.clearLocked()
			return "", err
		}
		s.logger.Warn("token refresh failed, session downgraded to not connected", "error", err)
		return "", err
	}

	s.record.AccessToken = tok.AccessToken
	s.record.ExpiresAt = tok.Expiry.Add(-ExpiryMargin)

	if tok.RefreshToken != "" {
		// Provider rotated the refresh token.
		opaque, err := s.protect(tok.RefreshToken)
		if err != nil {
			return "", err
		}
		s.record.RefreshToken = opaque
		if err := s.persistLocked(); err != nil {
			return "", err
		}
	}

	return s.record.AccessToken, nil
}

// Disconnect clears the entire token record, the persisted row, and the
// keyring entry. Idempotent.
func (s *Store) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked()
}

// Connected reports whether the store holds credentials: a fresh access token
// or a refresh token to obtain one with.
func (s *Store) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.record.RefreshToken != "" {
		return true
	}
	return s.record.AccessToken != "" && s.now().Before(s.record.ExpiresAt.Add(-ExpiryMargin))
}

// Encrypted reports whether the refresh token is protected by the OS keyring.
func (s *Store) Encrypted() bool {
	return s.bridge != nil && s.bridge.Available()
}

// refreshLocked performs the refresh exchange. Caller holds the mutex; failed
// refreshes are not retried here, the next caller triggers another attempt.
func (s *Store) refreshLocked(ctx context.Context) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if s.bridge != nil {
		return s.bridge.Refresh(ctx, s.record.RefreshToken)
	}

	// No privileged bridge: the stored value is plaintext, exchange directly.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	src := s.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: s.record.RefreshToken})

	tok, err := src.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, fmt.Errorf("%w: status %d: %s", shared.ErrRefreshFailed,
				retrieveErr.Response.StatusCode, string(retrieveErr.Body))
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	if tok.RefreshToken == s.record.RefreshToken {
		tok.RefreshToken = ""
	}

	return tok, nil
}

// protect routes a plaintext refresh token through the bridge. Degraded mode
// (no bridge, or bridge without a keyring) keeps plaintext and logs it.
func (s *Store) protect(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	if s.bridge == nil {
		s.logger.Warn("no secure token bridge, refresh token stored in plaintext")
		return plaintext, nil
	}

	opaque, err := s.bridge.Encrypt(plaintext)
	if err != nil {
		return "", fmt.Errorf("failed to protect refresh token: %w", err)
	}
	if opaque == plaintext {
		s.logger.Warn("keyring unavailable, refresh token stored in plaintext")
	}

	return opaque, nil
}

// persistLocked writes the opaque refresh token to durable storage.
func (s *Store) persistLocked() error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Save(s.record.RefreshToken); err != nil {
		return fmt.Errorf("failed to persist token record: %w", err)
	}
	return nil
}

// clearLocked wipes in-memory and durable state. Caller holds the mutex.
func (s *Store) clearLocked() error {
	s.record = Record{}

	if s.repo != nil {
		if err := s.repo.Clear(); err != nil {
			return err
		}
	}
	if s.bridge != nil {
		if err := s.bridge.Forget(); err != nil {
			return err
		}
	}

	return nil
}
