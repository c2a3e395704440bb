package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/99designs/keyring"
	"github.com/zenithdesk/chord/internal/shared"
	"golang.org/x/oauth2"
)

// tokenEndpoint serves a minimal OAuth2 token endpoint. The refresh token in
// the response comes from rotate, or echoes the request when rotate is nil.
func tokenEndpoint(t *testing.T, status int, rotate func(current string) string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse token request: %v", err)
		}

		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}

		refresh := r.FormValue("refresh_token")
		if rotate != nil {
			refresh = rotate(refresh)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"fresh-access","token_type":"Bearer","expires_in":3600,"refresh_token":%q}`, refresh)
	}))
	t.Cleanup(server.Close)

	return server
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: "client-id",
		Endpoint: oauth2.Endpoint{TokenURL: tokenURL},
	}
}

func TestBridgeEncrypt(t *testing.T) {
	t.Run("Stores In Keyring", func(t *testing.T) {
		ring := keyring.NewArrayKeyring(nil)
		bridge := NewBridgeWithKeyring(ring, testConfig(""), nil, nil)

		opaque, err := bridge.Encrypt("secret-refresh")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !strings.HasPrefix(opaque, opaquePrefix) {
			t.Errorf("expected opaque reference, got %q", opaque)
		}
		if opaque == "secret-refresh" {
			t.Error("opaque reference should not equal the plaintext")
		}

		item, err := ring.Get(refreshTokenKey)
		if err != nil {
			t.Fatalf("expected keyring entry, got %v", err)
		}
		if string(item.Data) != "secret-refresh" {
			t.Errorf("keyring holds %q, want plaintext", item.Data)
		}
	})

	t.Run("Degraded Passthrough", func(t *testing.T) {
		bridge := NewBridgeWithKeyring(nil, testConfig(""), nil, nil)

		if bridge.Available() {
			t.Error("bridge without a keyring should not report available")
		}

		opaque, err := bridge.Encrypt("secret-refresh")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if opaque != "secret-refresh" {
			t.Errorf("degraded mode should pass plaintext through, got %q", opaque)
		}
	})
}

func TestBridgeDecrypt(t *testing.T) {
	t.Run("Roundtrip", func(t *testing.T) {
		bridge := NewBridgeWithKeyring(keyring.NewArrayKeyring(nil), testConfig(""), nil, nil)

		opaque, err := bridge.Encrypt("secret-refresh")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		plaintext, err := bridge.decrypt(opaque)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if plaintext != "secret-refresh" {
			t.Errorf("expected original plaintext back, got %q", plaintext)
		}
	})

	t.Run("Plaintext Passthrough", func(t *testing.T) {
		bridge := NewBridgeWithKeyring(keyring.NewArrayKeyring(nil), testConfig(""), nil, nil)

		plaintext, err := bridge.decrypt("not-a-reference")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if plaintext != "not-a-reference" {
			t.Errorf("expected passthrough, got %q", plaintext)
		}
	})

	t.Run("Reference Without Keyring", func(t *testing.T) {
		bridge := NewBridgeWithKeyring(nil, testConfig(""), nil, nil)

		_, err := bridge.decrypt(opaquePrefix + refreshTokenKey)
		if !errors.Is(err, shared.ErrDecryptFailed) {
			t.Errorf("expected ErrDecryptFailed, got %v", err)
		}
	})

	t.Run("Missing Keyring Entry", func(t *testing.T) {
		bridge := NewBridgeWithKeyring(keyring.NewArrayKeyring(nil), testConfig(""), nil, nil)

		_, err := bridge.decrypt(opaquePrefix + refreshTokenKey)
		if !errors.Is(err, shared.ErrDecryptFailed) {
			t.Errorf("expected ErrDecryptFailed, got %v", err)
		}
	})
}

func TestBridgeRefresh(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := tokenEndpoint(t, http.StatusOK, nil)

		ring := keyring.NewArrayKeyring(nil)
		bridge := NewBridgeWithKeyring(ring, testConfig(server.URL), server.Client(), nil)

		opaque, err := bridge.Encrypt("refresh-plain")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tok, err := bridge.Refresh(context.Background(), opaque)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if tok.AccessToken != "fresh-access" {
			t.Errorf("expected fresh access token, got %q", tok.AccessToken)
		}
		if tok.RefreshToken != "" {
			t.Errorf("non-rotated refresh token should be blanked, got %q", tok.RefreshToken)
		}
	})

	t.Run("Rotated Refresh Token", func(t *testing.T) {
		server := tokenEndpoint(t, http.StatusOK, func(string) string { return "rotated-refresh" })

		bridge := NewBridgeWithKeyring(keyring.NewArrayKeyring(nil), testConfig(server.URL), server.Client(), nil)

		opaque, err := bridge.Encrypt("refresh-plain")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tok, err := bridge.Refresh(context.Background(), opaque)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if tok.RefreshToken != "rotated-refresh" {
			t.Errorf("expected rotated refresh token, got %q", tok.RefreshToken)
		}
	})

	t.Run("Provider Rejection", func(t *testing.T) {
		server := tokenEndpoint(t, http.StatusBadRequest, nil)

		bridge := NewBridgeWithKeyring(nil, testConfig(server.URL), server.Client(), nil)

		_, err := bridge.Refresh(context.Background(), "refresh-plain")
		if !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected ErrRefreshFailed, got %v", err)
		}
		if !strings.Contains(err.Error(), "400") {
			t.Errorf("error should carry the provider status, got %v", err)
		}
	})

	t.Run("Decrypt Failure Stays Distinct", func(t *testing.T) {
		server := tokenEndpoint(t, http.StatusOK, nil)

		bridge := NewBridgeWithKeyring(keyring.NewArrayKeyring(nil), testConfig(server.URL), server.Client(), nil)

		_, err := bridge.Refresh(context.Background(), opaquePrefix+refreshTokenKey)
		if !errors.Is(err, shared.ErrDecryptFailed) {
			t.Errorf("expected ErrDecryptFailed, got %v", err)
		}
		if errors.Is(err, shared.ErrRefreshFailed) {
			t.Error("decrypt failure must not be classified as a refresh failure")
		}
	})

	t.Run("Empty Token", func(t *testing.T) {
		bridge := NewBridgeWithKeyring(nil, testConfig(""), nil, nil)

		_, err := bridge.Refresh(context.Background(), "")
		if !errors.Is(err, shared.ErrNoRefreshToken) {
			t.Errorf("expected ErrNoRefreshToken, got %v", err)
		}
	})
}

func TestBridgeForget(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	bridge := NewBridgeWithKeyring(ring, testConfig(""), nil, nil)

	if _, err := bridge.Encrypt("secret-refresh"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := bridge.Forget(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := ring.Get(refreshTokenKey); err == nil {
		t.Error("keyring entry should be removed")
	}

	// Forgetting again is fine.
	if err := bridge.Forget(); err != nil {
		t.Errorf("forget should be idempotent, got %v", err)
	}
}
