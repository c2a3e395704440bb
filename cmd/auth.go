package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/zenithdesk/chord/internal/auth"
	"github.com/zenithdesk/chord/internal/server"
	"github.com/zenithdesk/chord/internal/shared"
)

// loginTimeout bounds how long `auth login` waits for the user to finish the
// consent flow in the browser.
const loginTimeout = 2 * time.Minute

// AuthLogin runs the full Authorization Code + PKCE flow.
//
// A fresh PKCE session is persisted before the browser navigates away, then a
// loopback server waits for the provider redirect; the callback handler
// validates state, exchanges the code, and commits the tokens to the store.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd.String("config")); err != nil {
		return err
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	sess, err := auth.NewSession(shared.GenerateID())
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	// Persist before navigation: the session must survive until the redirect
	// lands, and a new login overwrites any in-flight one.
	if err := r.sessions.Put(sess); err != nil {
		return err
	}

	authURL := auth.AuthCodeURL(r.oauthConf, sess)

	handler := server.NewOAuthHandler(r.oauthConf, r.sessions, r.store, r.logger)
	router := server.NewBasicRouter()
	router.Use(server.RequestID(), server.Logging(r.logger))
	router.Handler(handler)

	httpServer := &http.Server{
		Addr:    r.config.Server.Addr(),
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("starting callback server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser automatically", "error", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(loginTimeout)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		return fmt.Errorf("callback server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down callback server", "error", err)
	}

	if result.Error() != nil {
		return fmt.Errorf("authorization failed: %w", result.Error())
	}

	r.writePlainln("✓ Connected to Spotify")
	if r.store.Encrypted() {
		r.writePlain("✓ Refresh token encrypted in the OS keyring\n")
	} else {
		r.writePlain("⚠ OS keyring unavailable: refresh token stored in plaintext\n")
	}

	return nil
}

// AuthStatus reports the connection state; --verify additionally exercises the
// ensure-token gate against the provider.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd.String("config")); err != nil {
		return err
	}

	if !r.store.Connected() {
		r.writePlain("Connection: ✗ Not connected\n")
		r.writePlain("Run `chord auth login` to connect.\n")
		return nil
	}

	r.writePlain("Connection: ✓ Connected\n")
	if r.store.Encrypted() {
		r.writePlain("Token storage: OS keyring\n")
	} else {
		r.writePlain("Token storage: plaintext (keyring unavailable)\n")
	}

	if cmd.Bool("verify") {
		if _, err := r.store.EnsureAccessToken(ctx); err != nil {
			r.writePlain("Verification: ✗ token refresh failed (%v)\n", err)
			return nil
		}
		r.writePlain("Verification: ✓ access token is valid\n")
	}

	return nil
}

// AuthLogout clears the token record and any pending login session. Idempotent.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(cmd.String("config")); err != nil {
		return err
	}

	if err := r.store.Disconnect(); err != nil {
		return err
	}
	if err := r.sessions.Clear(); err != nil {
		return err
	}

	r.writePlain("✓ Disconnected\n")
	return nil
}
