package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authorization flow errors
	ErrAuthFailed     = fmt.Errorf("authentication failed")
	ErrStateMismatch  = fmt.Errorf("state parameter mismatch")
	ErrNoPendingLogin = fmt.Errorf("no pending login session")
	ErrProviderDenied = fmt.Errorf("authorization denied by provider")
	ErrExchangeFailed = fmt.Errorf("token exchange failed")
	ErrTimeout        = fmt.Errorf("operation timed out")

	// Token lifecycle errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrDecryptFailed    = fmt.Errorf("stored token could not be decrypted")

	// API errors
	ErrAPIRequest      = fmt.Errorf("API request failed")
	ErrNoActiveDevice  = fmt.Errorf("no active playback device")
	ErrPremiumRequired = fmt.Errorf("premium subscription or scope missing")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
