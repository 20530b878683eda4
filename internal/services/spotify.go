// Spotify Web API implementation of [Catalog]
//
// Requests go through github.com/zmb3/spotify/v2. One client is built per call from the supplied [Credential].
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/desertthunder/adder/internal/models"
	"github.com/desertthunder/adder/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	trackURIPrefix = "spotify:track:"
	maxSearchLimit = 50
	maxPageLimit   = 100
)

var httpStatusPattern = regexp.MustCompile(`HTTP (\d{3})`)

// SpotifyOpts configures a [SpotifyCatalog].
type SpotifyOpts struct {
	// BaseURL overrides the API root. Must end in "/". Empty uses the public API.
	BaseURL string
	// RequestsPerSecond paces outgoing requests. Zero disables pacing.
	RequestsPerSecond float64
	// HTTPClient is the transport under the OAuth layer. Nil uses [http.DefaultClient].
	HTTPClient *http.Client
}

// SpotifyCatalog implements [Catalog] over the Spotify Web API.
type SpotifyCatalog struct {
	baseURL    string
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewSpotifyCatalog creates a catalog client.
func NewSpotifyCatalog(opts SpotifyOpts) *SpotifyCatalog {
	s := &SpotifyCatalog{httpClient: opts.HTTPClient}

	if opts.BaseURL != "" {
		s.baseURL = opts.BaseURL
		if !strings.HasSuffix(s.baseURL, "/") {
			s.baseURL += "/"
		}
	}

	if opts.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return s
}

func (s *SpotifyCatalog) Name() string {
	return "Spotify"
}

// client waits for the rate limiter and returns an API client bound to cred.
func (s *SpotifyCatalog) client(ctx context.Context, cred Credential) (*spotify.Client, error) {
	if !cred.Valid() {
		return nil, shared.ErrNotAuthenticated
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", shared.ErrTimeout, err)
		}
	}

	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(cred.Token))

	var opts []spotify.ClientOption
	if s.baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(s.baseURL))
	}
	return spotify.New(httpClient, opts...), nil
}

// Search runs a track search. Tracks without a URI are dropped.
func (s *SpotifyCatalog) Search(ctx context.Context, cred Credential, query string, limit int) ([]models.CandidateTrack, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = 5
	}
	limit = min(limit, maxSearchLimit)

	client, err := s.client(ctx, cred)
	if err != nil {
		return nil, err
	}

	result, err := client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, mapError(err)
	}
	if result == nil || result.Tracks == nil {
		return nil, nil
	}

	candidates := make([]models.CandidateTrack, 0, len(result.Tracks.Tracks))
	for _, t := range result.Tracks.Tracks {
		if t.URI == "" {
			continue
		}
		candidates = append(candidates, candidateFromTrack(t))
	}
	return candidates, nil
}

// AddTracks appends uris to playlistID. Each uri must be a "spotify:track:<id>" URI.
func (s *SpotifyCatalog) AddTracks(ctx context.Context, cred Credential, playlistID string, uris ...string) (string, error) {
	if playlistID == "" {
		return "", fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	if len(uris) == 0 {
		return "", fmt.Errorf("%w: no track uris", shared.ErrMissingArgument)
	}

	ids := make([]spotify.ID, len(uris))
	for i, uri := range uris {
		id, err := TrackIDFromURI(uri)
		if err != nil {
			return "", err
		}
		ids[i] = spotify.ID(id)
	}

	client, err := s.client(ctx, cred)
	if err != nil {
		return "", err
	}

	snapshot, err := client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids...)
	if err != nil {
		return "", mapError(err)
	}
	return snapshot, nil
}

// PlaylistItems fetches one page of playlistID. Limit is capped at 100.
func (s *SpotifyCatalog) PlaylistItems(ctx context.Context, cred Credential, playlistID string, offset, limit int) (*models.PlaylistPage, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	if limit <= 0 || limit > maxPageLimit {
		limit = maxPageLimit
	}

	client, err := s.client(ctx, cred)
	if err != nil {
		return nil, err
	}

	page, err := client.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(limit), spotify.Offset(offset))
	if err != nil {
		return nil, mapError(err)
	}
	if page == nil {
		return nil, fmt.Errorf("%w: empty playlist page", shared.ErrUnexpectedFormat)
	}

	out := &models.PlaylistPage{
		Total:   int(page.Total),
		Offset:  int(page.Offset),
		Limit:   int(page.Limit),
		Entries: make([]models.PlaylistEntry, 0, len(page.Items)),
	}
	for _, item := range page.Items {
		out.Entries = append(out.Entries, entryFromItem(item))
	}
	return out, nil
}

// FollowArtists follows artistIDs in a single request. Spotify accepts at most 50 ids per call.
func (s *SpotifyCatalog) FollowArtists(ctx context.Context, cred Credential, artistIDs ...string) error {
	if len(artistIDs) == 0 {
		return nil
	}

	ids := make([]spotify.ID, len(artistIDs))
	for i, id := range artistIDs {
		ids[i] = spotify.ID(id)
	}

	client, err := s.client(ctx, cred)
	if err != nil {
		return err
	}

	if err := client.FollowArtist(ctx, ids...); err != nil {
		return mapError(err)
	}
	return nil
}

// TrackIDFromURI returns the id part of a "spotify:track:<id>" URI.
func TrackIDFromURI(uri string) (string, error) {
	id, ok := strings.CutPrefix(uri, trackURIPrefix)
	if !ok || id == "" || strings.Contains(id, ":") {
		return "", fmt.Errorf("%w: %q is not a track uri", shared.ErrInvalidArgument, uri)
	}
	return id, nil
}

func candidateFromTrack(t spotify.FullTrack) models.CandidateTrack {
	c := models.CandidateTrack{
		ID:         t.ID.String(),
		Name:       t.Name,
		URI:        string(t.URI),
		Popularity: int(t.Popularity),
	}
	for _, a := range t.Artists {
		c.ArtistNames = append(c.ArtistNames, a.Name)
		if a.ID != "" {
			c.ArtistIDs = append(c.ArtistIDs, a.ID.String())
		}
	}
	return c
}

func entryFromItem(item spotify.PlaylistItem) models.PlaylistEntry {
	t := item.Track.Track
	if t == nil {
		e := models.PlaylistEntry{}
		if ep := item.Track.Episode; ep != nil {
			e.Name = ep.Name
		}
		return e
	}

	e := models.PlaylistEntry{TrackID: t.ID.String(), Name: t.Name, IsTrack: true}
	for _, a := range t.Artists {
		if a.ID != "" {
			e.ArtistIDs = append(e.ArtistIDs, a.ID.String())
		}
	}
	return e
}

// mapError converts client errors into shared sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", shared.ErrTimeout, err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", shared.ErrUnexpectedFormat, err)
	}

	status := 0
	var apiErr spotify.Error
	var apiErrPtr *spotify.Error
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Status
	case errors.As(err, &apiErrPtr):
		status = apiErrPtr.Status
	default:
		if m := httpStatusPattern.FindStringSubmatch(err.Error()); m != nil {
			status, _ = strconv.Atoi(m[1])
		}
	}

	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", shared.ErrTokenExpired, err)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", shared.ErrPlaylistNotFound, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", shared.ErrRateLimited, err)
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
}
