// package player wraps the Spotify Web API playback-control endpoints.
//
// Every operation first asks the token store for a valid access token and
// returns a "not connected" outcome, without any network call, when none is
// available. Responses are classified rather than retried; the surrounding UI
// polls on a fixed interval.
package player

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/zenithdesk/chord/internal/shared"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the Spotify Web API base.
const DefaultBaseURL = "https://api.spotify.com/v1"

// TokenSource is the single gate through which the client obtains credentials.
// Implemented by the token store.
type TokenSource interface {
	EnsureAccessToken(ctx context.Context) (string, error)
}

// Result classifies the outcome of a playback-control call.
//
// Status 0 means no request was made (not connected). 403 and 404 are
// informational states (premium/scope missing, no active device), not bugs.
type Result struct {
	OK     bool   `json:"ok"`
	Status int    `json:"status"`
	Note   string `json:"note"`
}

// Client is a thin wrapper around the playback endpoints.
type Client struct {
	tokens     TokenSource
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// ClientOpts contains configuration options for creating a [Client].
type ClientOpts struct {
	Tokens     TokenSource
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// NewClient creates a playback client. The rate limiter keeps a polling UI
// from hammering the Web API (Spotify throttles per 30-second window).
func NewClient(opts ClientOpts) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Client{
		tokens:     opts.Tokens,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		logger:     opts.Logger,
	}
}

// NowPlaying retrieves the current playback state.
//
// Returns (nil, nil) when nothing is playing (204). Returns
// [shared.ErrNotAuthenticated] with no network call when not connected.
func (c *Client) NowPlaying(ctx context.Context) (*NowPlaying, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/me/player/currently-playing", nil)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNoContent {
		return nil, nil
	}
	if status < 200 || status >= 300 {
		return nil, apiError(status, body)
	}

	var np NowPlaying
	if err := json.Unmarshal(body, &np); err != nil {
		// Fail closed: malformed provider JSON is an API failure, not data.
		return nil, fmt.Errorf("%w: malformed response: %v", shared.ErrAPIRequest, err)
	}

	return &np, nil
}

// Toggle starts or pauses playback on the active device.
func (c *Client) Toggle(ctx context.Context, play bool) Result {
	endpoint := "/me/player/pause"
	note := "Paused"
	if play {
		endpoint = "/me/player/play"
		note = "Playing"
	}

	return c.control(ctx, http.MethodPut, endpoint, nil, note)
}

// SkipNext skips to the next track.
func (c *Client) SkipNext(ctx context.Context) Result {
	return c.control(ctx, http.MethodPost, "/me/player/next", nil, "Skipped")
}

// SkipPrevious skips to the previous track.
func (c *Client) SkipPrevious(ctx context.Context) Result {
	return c.control(ctx, http.MethodPost, "/me/player/previous", nil, "Skipped Previous")
}

// Devices lists the user's available playback devices.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/me/player/devices", nil)
	if err != nil {
		return nil, err
	}

	if status < 200 || status >= 300 {
		return nil, apiError(status, body)
	}

	var list deviceList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", shared.ErrAPIRequest, err)
	}

	return list.Devices, nil
}

// Transfer moves playback to the given device.
func (c *Client) Transfer(ctx context.Context, deviceID string, play bool) Result {
	payload, err := json.Marshal(map[string]any{
		"device_ids": []string{deviceID},
		"play":       play,
	})
	if err != nil {
		return Result{Status: 0, Note: err.Error()}
	}

	return c.control(ctx, http.MethodPut, "/me/player", bytes.NewReader(payload), "Transferred")
}

// control issues a playback command and classifies the response.
func (c *Client) control(ctx context.Context, method, endpoint string, body io.Reader, successNote string) Result {
	status, respBody, err := c.do(ctx, method, endpoint, body)
	if err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) {
			return Result{Status: 0, Note: "Not connected"}
		}
		return Result{Status: 0, Note: err.Error()}
	}

	switch {
	case status == http.StatusNoContent || (status >= 200 && status < 300):
		return Result{OK: true, Status: status, Note: successNote}
	case status == http.StatusForbidden:
		return Result{Status: status, Note: "Premium or scope missing"}
	case status == http.StatusNotFound:
		return Result{Status: status, Note: "No active device"}
	default:
		return Result{Status: status, Note: string(respBody)}
	}
}

// do obtains a token, applies the rate limit, and issues one request.
// Returns [shared.ErrNotAuthenticated] before any network activity when the
// token store has no credentials.
func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader) (int, []byte, error) {
	token, err := c.tokens.EnsureAccessToken(ctx)
	if err != nil || token == "" {
		return 0, nil, shared.ErrNotAuthenticated
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	return resp.StatusCode, respBody, nil
}

// apiError maps a non-2xx status to the error taxonomy.
func apiError(status int, body []byte) error {
	switch status {
	case http.StatusForbidden:
		return fmt.Errorf("%w: status %d", shared.ErrPremiumRequired, status)
	case http.StatusNotFound:
		return fmt.Errorf("%w: status %d", shared.ErrNoActiveDevice, status)
	default:
		return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, status, string(body))
	}
}
