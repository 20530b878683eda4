// package services defines the [Catalog] interface the resolver and collector talk to, and its Spotify implementation
package services

import (
	"context"

	"github.com/desertthunder/adder/internal/models"
	"golang.org/x/oauth2"
)

// Catalog is the subset of the music catalog API needed to resolve, add and follow.
//
// Every call receives the credential explicitly. Implementations hold no per-user state.
type Catalog interface {
	// Search returns up to limit tracks for query, in catalog relevance order.
	Search(ctx context.Context, cred Credential, query string, limit int) ([]models.CandidateTrack, error)

	// AddTracks appends uris to the end of a playlist and returns the new snapshot id.
	// The call is not idempotent: adding the same uri twice produces two entries.
	AddTracks(ctx context.Context, cred Credential, playlistID string, uris ...string) (string, error)

	// PlaylistItems returns one page of a playlist's items.
	PlaylistItems(ctx context.Context, cred Credential, playlistID string, offset, limit int) (*models.PlaylistPage, error)

	// FollowArtists follows every artist id for the authorizing user.
	FollowArtists(ctx context.Context, cred Credential, artistIDs ...string) error

	// Name returns the name of the catalog (e.g., "Spotify")
	Name() string
}

// Credential carries the bearer token for one catalog call.
type Credential struct {
	Token *oauth2.Token
}

// Valid reports whether the credential carries an access token.
//
// Expiry is not checked here. An expired token surfaces as [shared.ErrTokenExpired] from the catalog.
func (c Credential) Valid() bool {
	return c.Token != nil && c.Token.AccessToken != ""
}

// StaticCredential returns a credential for a bare access token.
func StaticCredential(accessToken string) Credential {
	return Credential{Token: &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}}
}
