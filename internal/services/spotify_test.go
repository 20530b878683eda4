package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/adder/internal/shared"
)

const searchResponse = `{
  "tracks": {
    "href": "",
    "limit": 5,
    "offset": 0,
    "total": 3,
    "items": [
      {"id": "t1", "name": "Believer", "uri": "spotify:track:t1", "popularity": 87,
       "artists": [{"id": "a1", "name": "Imagine Dragons"}]},
      {"id": "t2", "name": "Believer (Live)", "uri": "", "popularity": 12,
       "artists": [{"id": "a1", "name": "Imagine Dragons"}]},
      {"id": "t3", "name": "Thunder", "uri": "spotify:track:t3", "popularity": 80,
       "artists": [{"id": "a1", "name": "Imagine Dragons"}, {"id": "", "name": "Guest"}]}
    ]
  }
}`

type recordedRequest struct {
	method string
	path   string
	query  string
	body   string
	auth   string
}

type fakeSpotify struct {
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeSpotify) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.RawQuery,
		body:   string(body),
		auth:   r.Header.Get("Authorization"),
	})
	f.mu.Unlock()
	f.handler(w, r)
}

func newFakeCatalog(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*SpotifyCatalog, *fakeSpotify) {
	t.Helper()

	fake := &fakeSpotify{handler: handler}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	catalog := NewSpotifyCatalog(SpotifyOpts{BaseURL: srv.URL, HTTPClient: srv.Client()})
	return catalog, fake
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func spotifyError(status int, msg string) string {
	b, _ := json.Marshal(map[string]any{"error": map[string]any{"status": status, "message": msg}})
	return string(b)
}

func TestSpotifyCatalog(t *testing.T) {
	ctx := context.Background()
	cred := StaticCredential("token-123")

	t.Run("Name", func(t *testing.T) {
		if NewSpotifyCatalog(SpotifyOpts{}).Name() != "Spotify" {
			t.Error("expected Spotify")
		}
	})

	t.Run("Search", func(t *testing.T) {
		t.Run("converts tracks and drops those without uri", func(t *testing.T) {
			catalog, fake := newFakeCatalog(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, searchResponse)
			})

			tracks, err := catalog.Search(ctx, cred, "track:Believer", 5)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(tracks) != 2 {
				t.Fatalf("expected 2 tracks, got %d", len(tracks))
			}
			if tracks[0].URI != "spotify:track:t1" || tracks[0].Popularity != 87 {
				t.Errorf("unexpected first track %+v", tracks[0])
			}
			if len(tracks[1].ArtistNames) != 2 || len(tracks[1].ArtistIDs) != 1 {
				t.Errorf("expected two artist names and one id, got %+v", tracks[1])
			}

			req := fake.requests[0]
			if req.path != "/search" {
				t.Errorf("expected /search, got %s", req.path)
			}
			if !strings.Contains(req.query, "type=track") || !strings.Contains(req.query, "limit=5") {
				t.Errorf("unexpected query %s", req.query)
			}
			if req.auth != "Bearer token-123" {
				t.Errorf("expected bearer auth, got %q", req.auth)
			}
		})

		t.Run("empty result", func(t *testing.T) {
			catalog, _ := newFakeCatalog(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, `{"tracks":{"items":[],"total":0,"limit":5,"offset":0}}`)
			})

			tracks, err := catalog.Search(ctx, cred, "track:nothing", 5)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(tracks) != 0 {
				t.Errorf("expected no tracks, got %d", len(tracks))
			}
		})

		t.Run("expired token", func(t *testing.T) {
			catalog, _ := newFakeCatalog(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnauthorized, spotifyError(401, "The access token expired"))
			})

			_, err := catalog.Search(ctx, cred, "track:Believer", 5)
			if !errors.Is(err, shared.ErrTokenExpired) {
				t.Errorf("expected ErrTokenExpired, got %v", err)
			}
		})

		t.Run("rate limited", func(t *testing.T) {
			catalog, fake := newFakeCatalog(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusTooManyRequests, spotifyError(429, "API rate limit exceeded"))
			})

			_, err := catalog.Search(ctx, cred, "track:Believer", 5)
			if !errors.Is(err, shared.ErrRateLimited) {
				t.Errorf("expected ErrRateLimited, got %v", err)
			}
			if len(fake.requests) != 1 {
				t.Errorf("expected no retries, got %d requests", len(fake.requests))
			}
		})

		t.Run("malformed body", func(t *testing.T) {
			catalog, _ := newFakeCatalog(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, `{"tracks": [`)
			})

			_, err := catalog.Search(ctx, cred, "track:Believer", 5)
			if !errors.Is(err, shared.ErrUnexpectedFormat) {
				t.Errorf("expected ErrUnexpectedFormat, got %v", err)
			}
		})

		t.Run("requires credential", func(t *testing.T) {
			catalog, fake := newFakeCatalog(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, searchResponse)
			})

			_, err := catalog.Search(ctx, Credential{}, "track:Believer", 5)
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
			if len(fake.requests) != 0 {
				t.Error("no request should be sent without a credential")
			}
		})

		t.Run("rejects empty query", func(t *testing.T) {
			catalog := NewSpotifyCatalog(SpotifyOpts{})
			if _, err := catalog.Search(ctx, cred, "  ", 5); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	})

	t.Run("AddTracks", func(t *testing.T) {
		t.Run("posts one uri and returns snapshot", func(t *testing.T) {
			catalog, fake := newFakeCatalog(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusCreated, `{"snapshot_id":"snap-1"}`)
			})

			snapshot, err := catalog.AddTracks(ctx, cred, "pl1", "spotify:track:t1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if snapshot != "snap-1" {
				t.Errorf("expected snap-1, got %s", snapshot)
			}

			req := fake.requests[0]
			if req.method != http.MethodPost || req.path != "/playlists/pl1/tracks" {
				t.Errorf("unexpected request %s %s", req.method, req.path)
			}
			if !strings.Contains(req.body, "spotify:track:t1") {
				t.Errorf("expected uri in body, got %s", req.body)
			}
		})

		t.Run("same uri twice sends two requests", func(t *testing.T) {
			n := 0
			catalog, fake := newFakeCatalog(t, func(w http.ResponseWriter, r *http.Request) {
				n++
				writeJSON(w, http.StatusCreated, `{"snapshot_id":"snap-`+string(rune('0'+n))+`"}`)
			})

			first, err := catalog.AddTracks(ctx, cred, "pl1", "spotify:track:t1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			second, err := catalog.AddTracks(ctx, cred, "pl1", "spotify:track:t1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(fake.requests) != 2 {
				t.Errorf("expected 2 requests, got %d", len(fake.requests))
			}
			if first == second {
				t.Errorf("expected distinct snapshots, got %s twice", first)
			}
		})

		t.Run("playlist not found", func(t *testing.T) {
			catalog, _ := newFakeCatalog(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusNotFound, spotifyError(404, "Not found."))
			})

			_, err := catalog.AddTracks(ctx, cred, "missing", "spotify:track:t1")
			if !errors.Is(err, shared.ErrPlaylistNotFound) {
				t.Errorf("expected ErrPlaylistNotFound, got %v", err)
			}
		})

		t.Run("forbidden", func(t *testing.T) {
			catalog, _ := newFakeCatalog(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusForbidden, spotifyError(403, "Insufficient client scope"))
			})

			_, err := catalog.AddTracks(ctx, cred, "pl1", "spotify:track:t1")
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("rejects non-track uri", func(t *testing.T) {
			catalog, fake := newFakeCatalog(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusCreated, `{"snapshot_id":"x"}`)
			})

			_, err := catalog.AddTracks(ctx, cred, "pl1", "spotify:episode:e1")
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
			if len(fake.requests) != 0 {
				t.Error("invalid uri should not reach the API")
			}
		})
	})

	t.Run("PlaylistItems", func(t *testing.T) {
		t.Run("converts tracks and local files", func(t *testing.T) {
			catalog, fake := newFakeCatalog(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, `{
  "href": "", "limit": 100, "offset": 0, "total": 2,
  "items": [
    {"added_at": "2024-01-01T00:00:00Z", "track": {"type": "track", "id": "t1", "name": "Ready Steady Go",
      "uri": "spotify:track:t1", "artists": [{"id": "A", "name": "Paul Oakenfold"}, {"id": "B", "name": "Asher D"}]}},
    {"added_at": "2024-01-01T00:00:00Z", "is_local": true, "track": {"type": "track", "id": "", "name": "bootleg.mp3",
      "uri": "spotify:local:::bootleg:0", "artists": [{"id": "", "name": "Unknown"}]}}
  ]
}`)
			})

			page, err := catalog.PlaylistItems(ctx, cred, "pl1", 0, 100)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if page.Total != 2 || len(page.Entries) != 2 {
				t.Fatalf("unexpected page %+v", page)
			}
			if got := page.Entries[0].ArtistIDs; len(got) != 2 || got[0] != "A" || got[1] != "B" {
				t.Errorf("unexpected artist ids %v", got)
			}
			if len(page.Entries[1].ArtistIDs) != 0 {
				t.Errorf("local file should have no artist ids, got %v", page.Entries[1].ArtistIDs)
			}

			req := fake.requests[0]
			if req.path != "/playlists/pl1/tracks" {
				t.Errorf("unexpected path %s", req.path)
			}
			if !strings.Contains(req.query, "limit=100") || !strings.Contains(req.query, "offset=0") {
				t.Errorf("unexpected query %s", req.query)
			}
		})

		t.Run("malformed body is unexpected format", func(t *testing.T) {
			catalog, _ := newFakeCatalog(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, `{"items": "nope", "total": 1}`)
			})

			_, err := catalog.PlaylistItems(ctx, cred, "pl1", 0, 100)
			if !errors.Is(err, shared.ErrUnexpectedFormat) {
				t.Errorf("expected ErrUnexpectedFormat, got %v", err)
			}
		})
	})

	t.Run("FollowArtists", func(t *testing.T) {
		t.Run("sends ids in one request", func(t *testing.T) {
			catalog, fake := newFakeCatalog(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			if err := catalog.FollowArtists(ctx, cred, "A", "B", "C"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(fake.requests) != 1 {
				t.Fatalf("expected 1 request, got %d", len(fake.requests))
			}
			req := fake.requests[0]
			if req.method != http.MethodPut || req.path != "/me/following" {
				t.Errorf("unexpected request %s %s", req.method, req.path)
			}
			if !strings.Contains(req.query, "type=artist") || !strings.Contains(req.query, "A%2CB%2CC") {
				t.Errorf("unexpected query %s", req.query)
			}
		})

		t.Run("no ids sends nothing", func(t *testing.T) {
			catalog, fake := newFakeCatalog(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			if err := catalog.FollowArtists(ctx, cred); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(fake.requests) != 0 {
				t.Errorf("expected no requests, got %d", len(fake.requests))
			}
		})
	})

	t.Run("rate limiter honours context", func(t *testing.T) {
		catalog := NewSpotifyCatalog(SpotifyOpts{BaseURL: "http://127.0.0.1:1/", RequestsPerSecond: 0.001})
		catalog.limiter.Allow()

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := catalog.Search(cctx, cred, "track:x", 1)
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})
}

func TestTrackIDFromURI(t *testing.T) {
	tc := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{"spotify:track:4iV5W9uYEdYUVa79Axb7Rh", "4iV5W9uYEdYUVa79Axb7Rh", false},
		{"spotify:track:", "", true},
		{"spotify:album:abc", "", true},
		{"4iV5W9uYEdYUVa79Axb7Rh", "", true},
		{"spotify:track:a:b", "", true},
	}

	for _, tt := range tc {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := TrackIDFromURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("TrackIDFromURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("TrackIDFromURI(%q) = %q, want %q", tt.uri, got, tt.want)
			}
		})
	}
}

func TestMapError(t *testing.T) {
	tc := []struct {
		name string
		err  error
		want error
	}{
		{"empty body 401", errors.New("spotify: HTTP 401: Unauthorized (body empty)"), shared.ErrTokenExpired},
		{"empty body 503", errors.New("spotify: HTTP 503: Service Unavailable (body empty)"), shared.ErrServiceUnavailable},
		{"cancelled", context.Canceled, shared.ErrTimeout},
		{"decode", &json.SyntaxError{}, shared.ErrUnexpectedFormat},
		{"truncated", io.ErrUnexpectedEOF, shared.ErrUnexpectedFormat},
		{"other", errors.New("connection reset"), shared.ErrAPIRequest},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapError(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("mapError() = %v, want %v", got, tt.want)
			}
		})
	}

	if mapError(nil) != nil {
		t.Error("mapError(nil) should be nil")
	}
}

func TestOAuthConfig(t *testing.T) {
	t.Run("With Valid Credentials", func(t *testing.T) {
		config, err := NewOAuthConfig(shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret", RedirectURI: "http://127.0.0.1:9999/callback"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if config.RedirectURL != "http://127.0.0.1:9999/callback" {
			t.Errorf("unexpected redirect %s", config.RedirectURL)
		}

		url := AuthURL(config, "state-xyz")
		for _, want := range []string{"accounts.spotify.com/authorize", "client_id=id", "state=state-xyz", "user-follow-modify", "playlist-modify-public"} {
			if !strings.Contains(url, want) {
				t.Errorf("auth url %q missing %q", url, want)
			}
		}
	})

	t.Run("Default Redirect URI", func(t *testing.T) {
		config, err := NewOAuthConfig(shared.SpotifyConfig{ClientID: "id", ClientSecret: "secret"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if config.RedirectURL != shared.DefaultConfig().Credentials.Spotify.RedirectURI {
			t.Errorf("expected default redirect URI, got %s", config.RedirectURL)
		}
	})

	t.Run("Missing Client ID", func(t *testing.T) {
		if _, err := NewOAuthConfig(shared.SpotifyConfig{ClientSecret: "secret"}); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Missing Client Secret", func(t *testing.T) {
		if _, err := NewOAuthConfig(shared.SpotifyConfig{ClientID: "id"}); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}
