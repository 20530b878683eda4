// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/adder/internal/models"
	"github.com/desertthunder/adder/internal/services"
)

// AddCall records one [MockCatalog.AddTracks] invocation.
type AddCall struct {
	PlaylistID string
	URIs       []string
}

// MockCatalog is a test double for [services.Catalog].
//
// Search results are keyed by the exact query string. Pages are served in order of their offset.
type MockCatalog struct {
	mu sync.Mutex

	Results   map[string][]models.CandidateTrack
	SearchErr map[string]error
	AddErr    error
	Pages     []*models.PlaylistPage
	PagesErr  error
	FollowErr error

	Searches    []string
	Adds        []AddCall
	PageOffsets []int
	Follows     [][]string
}

// NewMockCatalog creates an empty [MockCatalog].
func NewMockCatalog() *MockCatalog {
	return &MockCatalog{
		Results:   map[string][]models.CandidateTrack{},
		SearchErr: map[string]error{},
	}
}

func (m *MockCatalog) Name() string { return "mock" }

func (m *MockCatalog) Search(ctx context.Context, cred services.Credential, query string, limit int) ([]models.CandidateTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Searches = append(m.Searches, query)
	if err := m.SearchErr[query]; err != nil {
		return nil, err
	}

	results := m.Results[query]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// AddTracks records the call and returns a snapshot id unique to the call number.
func (m *MockCatalog) AddTracks(ctx context.Context, cred services.Credential, playlistID string, uris ...string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Adds = append(m.Adds, AddCall{PlaylistID: playlistID, URIs: append([]string(nil), uris...)})
	if m.AddErr != nil {
		return "", m.AddErr
	}
	return fmt.Sprintf("snapshot-%d", len(m.Adds)), nil
}

// PlaylistItems serves the page whose offset matches, or an empty page past the end.
func (m *MockCatalog) PlaylistItems(ctx context.Context, cred services.Credential, playlistID string, offset, limit int) (*models.PlaylistPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PageOffsets = append(m.PageOffsets, offset)
	if m.PagesErr != nil {
		return nil, m.PagesErr
	}

	for _, p := range m.Pages {
		if p.Offset == offset {
			return p, nil
		}
	}

	total := 0
	if len(m.Pages) > 0 {
		total = m.Pages[0].Total
	}
	return &models.PlaylistPage{Total: total, Offset: offset, Limit: limit}, nil
}

func (m *MockCatalog) FollowArtists(ctx context.Context, cred services.Credential, artistIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Follows = append(m.Follows, append([]string(nil), artistIDs...))
	return m.FollowErr
}

// Page builds a single playlist page from entries.
func Page(offset, total int, entries ...models.PlaylistEntry) *models.PlaylistPage {
	return &models.PlaylistPage{Entries: entries, Total: total, Offset: offset, Limit: 100}
}

// TrackEntry builds a playlist entry for a track credited to artistIDs.
func TrackEntry(id string, artistIDs ...string) models.PlaylistEntry {
	return models.PlaylistEntry{TrackID: id, Name: id, ArtistIDs: artistIDs, IsTrack: true}
}

// Candidate builds a catalog track with a spotify:track uri.
func Candidate(id, name string, artists ...string) models.CandidateTrack {
	return models.CandidateTrack{ID: id, Name: name, ArtistNames: artists, URI: "spotify:track:" + id}
}

// MockDownloader records requested names and returns a path under Dir.
type MockDownloader struct {
	mu    sync.Mutex
	Dir   string
	Err   error
	Names []string
}

func (m *MockDownloader) Download(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Names = append(m.Names, name)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Dir + "/" + name + ".mp3", nil
}

// Credentials returns a static credential source for token.
func Credentials(token string) services.StaticCredentials {
	return services.StaticCredentials{Cred: services.StaticCredential(token)}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
