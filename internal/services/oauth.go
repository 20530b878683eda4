package services

import (
	"fmt"

	"github.com/desertthunder/adder/internal/shared"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// Scopes requested during authorization: read and modify playlists, follow artists.
var Scopes = []string{
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopeUserFollowModify,
	spotifyauth.ScopeUserFollowRead,
}

// NewOAuthConfig builds the authorization code flow configuration from stored client credentials.
func NewOAuthConfig(creds shared.SpotifyConfig) (*oauth2.Config, error) {
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirect := creds.RedirectURI
	if redirect == "" {
		redirect = shared.DefaultConfig().Credentials.Spotify.RedirectURI
	}

	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  redirect,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}, nil
}

// AuthURL returns the URL the user visits to grant access.
func AuthURL(config *oauth2.Config, state string) string {
	return config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}
