// Package services defines the [Catalog] interface used by the resolver, mutator and collector, and implements it for
// the Spotify Web API.
//
// # Catalog Interface
//
// The catalog is stateless with respect to the user: every method takes a [Credential] so the caller decides when a
// token is fetched or refreshed. [TokenCredentials] wraps an [oauth2.TokenSource] and reports refreshed tokens so the
// CLI can write them back to the config file.
//
// # Spotify Implementation
//
// [SpotifyCatalog] builds a github.com/zmb3/spotify/v2 client per call and paces requests with a token bucket from
// golang.org/x/time/rate. Nothing is retried.
//
// # Error Handling
//
// Client errors are mapped onto shared sentinels:
//   - [shared.ErrNotAuthenticated] : no access token supplied
//   - [shared.ErrTokenExpired] : HTTP 401
//   - [shared.ErrPlaylistNotFound] : HTTP 404
//   - [shared.ErrRateLimited] : HTTP 429
//   - [shared.ErrUnexpectedFormat] : response body could not be decoded
//   - [shared.ErrAPIRequest] : anything else
package services
