package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/zenithdesk/chord/internal/auth"
	"github.com/zenithdesk/chord/internal/repositories"
	"github.com/zenithdesk/chord/internal/shared"
	chordtesting "github.com/zenithdesk/chord/internal/testing"
	"golang.org/x/oauth2"
)

// captureAcceptor records tokens handed to the store.
type captureAcceptor struct {
	tokens []*oauth2.Token
	err    error
}

func (a *captureAcceptor) Accept(ctx context.Context, tok *oauth2.Token) error {
	if a.err != nil {
		return a.err
	}
	a.tokens = append(a.tokens, tok)
	return nil
}

type callbackFixture struct {
	handler  *OAuthHandler
	sessions *repositories.SessionRepository
	acceptor *captureAcceptor
	sess     *auth.Session
}

// newCallbackFixture wires a handler against a fake token endpoint that checks
// the PKCE verifier before issuing tokens.
func newCallbackFixture(t *testing.T, pending bool) *callbackFixture {
	t.Helper()

	sessions := repositories.NewSessionRepository(chordtesting.MustOpenDB(t))

	sess, err := auth.NewSession("login-1")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if pending {
		if err := sessions.Put(sess); err != nil {
			t.Fatalf("failed to store session: %v", err)
		}
	}

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse token request: %v", err)
		}
		if got := r.FormValue("code_verifier"); got != sess.Verifier {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"exchanged-access","token_type":"Bearer","expires_in":3600,"refresh_token":"exchanged-refresh"}`)
	}))
	t.Cleanup(tokenServer.Close)

	conf := &oauth2.Config{
		ClientID:    "client-id",
		RedirectURL: "http://127.0.0.1:3000/callback",
		Endpoint:    oauth2.Endpoint{TokenURL: tokenServer.URL},
	}

	acceptor := &captureAcceptor{}
	handler := NewOAuthHandler(conf, sessions, acceptor, nil)

	return &callbackFixture{
		handler:  handler,
		sessions: sessions,
		acceptor: acceptor,
		sess:     sess,
	}
}

func callbackRequest(t *testing.T, h *OAuthHandler, params url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/callback?"+params.Encode(), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

// takeResult drains the handler's result channel without blocking.
func takeResult(t *testing.T, h *OAuthHandler) (OAuthResult, bool) {
	t.Helper()

	select {
	case res, ok := <-h.Result():
		return res, ok
	default:
		return OAuthResult{}, false
	}
}

func TestOAuthHandler(t *testing.T) {
	t.Run("Routes", func(t *testing.T) {
		f := newCallbackFixture(t, false)

		routes := f.handler.Routes()
		if len(routes) != 1 || routes[0] != "/callback" {
			t.Errorf("expected single /callback route, got %v", routes)
		}
	})

	t.Run("Provider Error", func(t *testing.T) {
		f := newCallbackFixture(t, true)

		rec := callbackRequest(t, f.handler, url.Values{"error": {"access_denied"}})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}

		res, ok := takeResult(t, f.handler)
		if !ok {
			t.Fatal("expected a terminal result")
		}
		if !errors.Is(res.Error(), shared.ErrProviderDenied) {
			t.Errorf("expected ErrProviderDenied, got %v", res.Error())
		}

		if len(f.acceptor.tokens) != 0 {
			t.Error("denied flow must not reach the token store")
		}
	})

	t.Run("Missing Code And State", func(t *testing.T) {
		f := newCallbackFixture(t, true)

		rec := callbackRequest(t, f.handler, url.Values{})
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 for a stray navigation, got %d", rec.Code)
		}

		if _, ok := takeResult(t, f.handler); ok {
			t.Error("stray navigation must not produce a terminal result")
		}

		// The pending session survives for the real redirect.
		if _, err := f.sessions.Take(); err != nil {
			t.Errorf("session should still be pending, got %v", err)
		}
	})

	t.Run("No Pending Login", func(t *testing.T) {
		f := newCallbackFixture(t, false)

		rec := callbackRequest(t, f.handler, url.Values{"code": {"abc"}, "state": {"xyz"}})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}

		res, ok := takeResult(t, f.handler)
		if !ok {
			t.Fatal("expected a terminal result")
		}
		if !errors.Is(res.Error(), shared.ErrNoPendingLogin) {
			t.Errorf("expected ErrNoPendingLogin, got %v", res.Error())
		}
	})

	t.Run("State Mismatch", func(t *testing.T) {
		f := newCallbackFixture(t, true)

		rec := callbackRequest(t, f.handler, url.Values{"code": {"abc"}, "state": {"forged-state"}})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}

		res, ok := takeResult(t, f.handler)
		if !ok {
			t.Fatal("expected a terminal result")
		}
		if !errors.Is(res.Error(), shared.ErrStateMismatch) {
			t.Errorf("expected ErrStateMismatch, got %v", res.Error())
		}

		if len(f.acceptor.tokens) != 0 {
			t.Error("mismatched state must not reach the token store")
		}

		// The session was consumed: the forged request burned it.
		if _, err := f.sessions.Take(); !errors.Is(err, shared.ErrNoPendingLogin) {
			t.Errorf("expected the session to be consumed, got %v", err)
		}
	})

	t.Run("Success", func(t *testing.T) {
		f := newCallbackFixture(t, true)

		rec := callbackRequest(t, f.handler, url.Values{"code": {"auth-code"}, "state": {f.sess.State}})
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		if len(f.acceptor.tokens) != 1 {
			t.Fatalf("expected one accepted token, got %d", len(f.acceptor.tokens))
		}
		tok := f.acceptor.tokens[0]
		if tok.AccessToken != "exchanged-access" || tok.RefreshToken != "exchanged-refresh" {
			t.Errorf("unexpected token pair: %q / %q", tok.AccessToken, tok.RefreshToken)
		}

		res, ok := takeResult(t, f.handler)
		if !ok {
			t.Fatal("expected a terminal result")
		}
		if res.Error() != nil {
			t.Errorf("expected success result, got %v", res.Error())
		}
		if res.Token == nil || res.Token.AccessToken != "exchanged-access" {
			t.Error("result should carry the exchanged token")
		}
	})

	t.Run("Duplicate Callback", func(t *testing.T) {
		f := newCallbackFixture(t, true)

		callbackRequest(t, f.handler, url.Values{"code": {"auth-code"}, "state": {f.sess.State}})

		rec := callbackRequest(t, f.handler, url.Values{"code": {"auth-code"}, "state": {f.sess.State}})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("replayed callback should fail, got %d", rec.Code)
		}

		if len(f.acceptor.tokens) != 1 {
			t.Errorf("replayed callback must not re-accept tokens, got %d", len(f.acceptor.tokens))
		}

		// The first (successful) result wins.
		res, ok := takeResult(t, f.handler)
		if !ok {
			t.Fatal("expected a terminal result")
		}
		if res.Error() != nil {
			t.Errorf("expected the success result to win, got %v", res.Error())
		}
	})

	t.Run("Exchange Failure", func(t *testing.T) {
		f := newCallbackFixture(t, true)

		// Replace the pending session so the stored verifier no longer
		// matches the one the token endpoint expects.
		other, err := auth.NewSession("login-2")
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		if err := f.sessions.Put(other); err != nil {
			t.Fatalf("failed to store session: %v", err)
		}

		rec := callbackRequest(t, f.handler, url.Values{"code": {"auth-code"}, "state": {other.State}})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}

		res, ok := takeResult(t, f.handler)
		if !ok {
			t.Fatal("expected a terminal result")
		}
		if !errors.Is(res.Error(), shared.ErrExchangeFailed) {
			t.Errorf("expected ErrExchangeFailed, got %v", res.Error())
		}
		if len(f.acceptor.tokens) != 0 {
			t.Error("failed exchange must not reach the token store")
		}
	})

	t.Run("Store Failure", func(t *testing.T) {
		f := newCallbackFixture(t, true)
		f.acceptor.err = errors.New("disk full")

		rec := callbackRequest(t, f.handler, url.Values{"code": {"auth-code"}, "state": {f.sess.State}})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}

		res, ok := takeResult(t, f.handler)
		if !ok {
			t.Fatal("expected a terminal result")
		}
		if res.Error() == nil {
			t.Error("store failure should surface as a terminal error")
		}
	})
}
