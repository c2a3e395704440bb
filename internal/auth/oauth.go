package auth

import (
	"github.com/zenithdesk/chord/internal/shared"
	"golang.org/x/oauth2"
)

const (
	SpotifyAuthURL  = "https://accounts.spotify.com/authorize"
	SpotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// NewOAuthConfig builds the [oauth2.Config] for the PKCE flow.
//
// ClientSecret stays empty: the oauth2 package then sends client_id in the
// request body, which is what Spotify expects from public PKCE clients.
func NewOAuthConfig(cfg shared.SpotifyConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURI,
		Scopes:      cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  SpotifyAuthURL,
			TokenURL: SpotifyTokenURL,
		},
	}
}

// AuthCodeURL builds the provider authorization URL for a session: response
// type "code", client id, redirect URI, space-joined scopes, S256 challenge
// derived from the session verifier, and the session state token.
func AuthCodeURL(conf *oauth2.Config, sess *Session) string {
	return conf.AuthCodeURL(sess.State, oauth2.S256ChallengeOption(sess.Verifier))
}
