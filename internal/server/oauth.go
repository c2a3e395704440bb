package server

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

const exchangeTimeout = 10 * time.Second

// TokenAcceptor receives the token pair from a successful code exchange.
// Implemented by the token store.
type TokenAcceptor interface {
	Accept(ctx context.Context, tok *oauth2.Token) error
}

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles the provider's authorization redirect.
//
// The pending PKCE session is consumed (read then deleted) from the session
// repository exactly once, so a duplicate callback or a forged request without
// the matching state token cannot complete an exchange.
type OAuthHandler struct {
	conf       *oauth2.Config
	sessions   *repositories.SessionRepository
	store      TokenAcceptor
	logger     *log.Logger
	resultChan chan OAuthResult
	once       sync.Once
}

// NewOAuthHandler creates a callback handler bound to the pending session
// repository and the token store that receives accepted tokens.
func NewOAuthHandler(conf *oauth2.Config, sessions *repositories.SessionRepository, store TokenAcceptor, logger *log.Logger) *OAuthHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &OAuthHandler{
		conf:       conf,
		sessions:   sessions,
		store:      store,
		logger:     logger,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP runs the callback state machine.
//
// Parse, provider error, missing code/state, state validation against the
// persisted session, code exchange with the original verifier, commit to the
// token store. Every terminal path renders a page telling the user to return
// to the application, so the one-time code is never resubmitted by a reload.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")

	if errParam := query.Get("error"); errParam != "" {
		h.logger.Warn("provider reported authorization error", "error", errParam)
		h.fail(w, fmt.Errorf("%w: %s", shared.ErrProviderDenied, errParam))
		return
	}

	if code == "" || state == "" {
		// Direct navigation to the callback route, not a real redirect.
		h.logger.Debug("callback hit without code/state, ignoring")
		writePage(w, http.StatusOK, "Nothing to do", "No authorization in progress. You can close this window.")
		return
	}

	sess, err := h.sessions.Take()
	if err != nil {
		if errors.Is(err, shared.ErrNoPendingLogin) {
			h.logger.Warn("callback received with no pending login session")
			h.fail(w, shared.ErrNoPendingLogin)
		} else {
			h.fail(w, fmt.Errorf("failed to read pending session: %w", err))
		}
		return
	}

	if sess.State != state {
		h.logger.Warn("state token mismatch, rejecting callback")
		h.fail(w, shared.ErrStateMismatch)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exchangeTimeout)
	defer cancel()

	token, err := h.conf.Exchange(ctx, code, oauth2.VerifierOption(sess.Verifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			err = fmt.Errorf("%w: status %d: %s", shared.ErrExchangeFailed,
				retrieveErr.Response.StatusCode, string(retrieveErr.Body))
		} else {
			err = fmt.Errorf("%w: %v", shared.ErrExchangeFailed, err)
		}
		h.fail(w, err)
		return
	}

	if err := h.store.Accept(r.Context(), token); err != nil {
		h.fail(w, fmt.Errorf("failed to store tokens: %w", err))
		return
	}

	h.Send(OAuthResult{Token: token})
	writePage(w, http.StatusOK, "✓ Authorization Successful", "You can close this window and return to the application.")
}

// fail reports a terminal flow error to both the waiting caller and the browser.
func (h *OAuthHandler) fail(w http.ResponseWriter, err error) {
	h.Send(OAuthResult{err: err})
	writePage(w, http.StatusBadRequest, "Authorization Failed", "Return to the application and try connecting again.")
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

// writePage renders the minimal terminal page shown in the user's browser.
func writePage(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(status)
	fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head>
    <title>%s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%s</h1>
        <p>%s</p>
    </div>
</body>
</html>
`, title, title, detail)
}
