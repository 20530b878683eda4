package tasks

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/adder/internal/matcher"
	"github.com/desertthunder/adder/internal/models"
	"github.com/desertthunder/adder/internal/services"
	"github.com/desertthunder/adder/internal/shared"
	tu "github.com/desertthunder/adder/internal/testing"
)

func quietLogger() *bytes.Buffer { return &bytes.Buffer{} }

type resolverFixture struct {
	catalog    *tu.MockCatalog
	downloader *tu.MockDownloader
	resolver   *Resolver
}

func newResolverFixture(t *testing.T, policy string, opts ...matcher.Option) *resolverFixture {
	t.Helper()

	catalog := tu.NewMockCatalog()
	dl := &tu.MockDownloader{Dir: t.TempDir()}
	logger := shared.NewLogger(quietLogger())

	r := NewResolver(ResolverOpts{
		Catalog:     catalog,
		Credentials: tu.Credentials("token"),
		Matcher:     matcher.New(opts...),
		Downloader:  dl,
		Policy:      policy,
		Logger:      logger,
	})
	return &resolverFixture{catalog: catalog, downloader: dl, resolver: r}
}

func TestMutator(t *testing.T) {
	ctx := context.Background()

	t.Run("same uri twice appends twice", func(t *testing.T) {
		catalog := tu.NewMockCatalog()
		m := NewMutator(catalog, tu.Credentials("token"), shared.NewLogger(quietLogger()))

		first, err := m.AddTrack(ctx, "pl1", "spotify:track:t1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := m.AddTrack(ctx, "pl1", "spotify:track:t1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if first == second {
			t.Errorf("expected two distinct snapshots, got %s twice", first)
		}
		if len(catalog.Adds) != 2 {
			t.Fatalf("expected 2 playlist writes, got %d", len(catalog.Adds))
		}
		for _, call := range catalog.Adds {
			if len(call.URIs) != 1 || call.URIs[0] != "spotify:track:t1" {
				t.Errorf("expected exactly one uri per write, got %v", call.URIs)
			}
		}
	})

	t.Run("rejected write wraps ErrMutationFailed", func(t *testing.T) {
		catalog := tu.NewMockCatalog()
		catalog.AddErr = shared.ErrPlaylistNotFound
		m := NewMutator(catalog, tu.Credentials("token"), shared.NewLogger(quietLogger()))

		_, err := m.AddTrack(ctx, "pl1", "spotify:track:t1")
		if !errors.Is(err, shared.ErrMutationFailed) || !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrMutationFailed wrapping ErrPlaylistNotFound, got %v", err)
		}
		if len(catalog.Adds) != 1 {
			t.Errorf("expected no retry, got %d writes", len(catalog.Adds))
		}
	})

	t.Run("invalid uri never reaches the catalog", func(t *testing.T) {
		catalog := tu.NewMockCatalog()
		m := NewMutator(catalog, tu.Credentials("token"), shared.NewLogger(quietLogger()))

		if _, err := m.AddTrack(ctx, "pl1", "not-a-uri"); !errors.Is(err, shared.ErrMutationFailed) {
			t.Errorf("expected ErrMutationFailed, got %v", err)
		}
		if len(catalog.Adds) != 0 {
			t.Error("catalog should not be called")
		}
	})

	t.Run("credential failure", func(t *testing.T) {
		catalog := tu.NewMockCatalog()
		m := NewMutator(catalog, services.StaticCredentials{Err: shared.ErrTokenExpired}, shared.NewLogger(quietLogger()))

		_, err := m.AddTrack(ctx, "pl1", "spotify:track:t1")
		if !errors.Is(err, shared.ErrMutationFailed) || !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrMutationFailed wrapping ErrTokenExpired, got %v", err)
		}
	})
}

func TestResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("match is added to playlist", func(t *testing.T) {
		f := newResolverFixture(t, shared.PolicyOnMiss)
		f.catalog.Results["track:Imagine Dragons Believer"] = []models.CandidateTrack{
			tu.Candidate("t1", "Believer", "Imagine Dragons"),
		}

		o := f.resolver.Resolve(ctx, "pl1", "Imagine Dragons Believer")

		if o.Kind != AddedToPlaylist {
			t.Fatalf("expected AddedToPlaylist, got %s (%v)", o.Kind, o.Err)
		}
		if o.URI != "spotify:track:t1" || o.Snapshot == "" {
			t.Errorf("unexpected outcome %+v", o)
		}
		if len(f.downloader.Names) != 0 {
			t.Error("downloader should not run on a match with on_miss policy")
		}
	})

	t.Run("search query and limit", func(t *testing.T) {
		f := newResolverFixture(t, shared.PolicyOnMiss)
		f.resolver.Resolve(ctx, "pl1", "  Energy 52 Cafe Del Mar ")

		if len(f.catalog.Searches) != 1 || f.catalog.Searches[0] != "track:Energy 52 Cafe Del Mar" {
			t.Errorf("unexpected searches %v", f.catalog.Searches)
		}
	})

	t.Run("no match falls back to download", func(t *testing.T) {
		f := newResolverFixture(t, shared.PolicyOnMiss)
		f.catalog.Results["track:Grace Not Over Yet"] = []models.CandidateTrack{
			tu.Candidate("x", "Completely Different Song", "Someone Else"),
		}

		o := f.resolver.Resolve(ctx, "pl1", "Grace Not Over Yet")

		if o.Kind != DownloadedLocally {
			t.Fatalf("expected DownloadedLocally, got %s (%v)", o.Kind, o.Err)
		}
		if o.Path == "" {
			t.Error("expected a download path")
		}
		if o.Candidate == nil || o.Candidate.ID != "x" {
			t.Errorf("expected best candidate to be recorded, got %+v", o.Candidate)
		}
		if len(f.catalog.Adds) != 0 {
			t.Error("no playlist write expected")
		}
	})

	t.Run("empty results fall back to download", func(t *testing.T) {
		f := newResolverFixture(t, shared.PolicyOnMiss)

		o := f.resolver.Resolve(ctx, "pl1", "Unknown Bootleg")
		if o.Kind != DownloadedLocally {
			t.Fatalf("expected DownloadedLocally, got %s", o.Kind)
		}
		if len(f.downloader.Names) != 1 || f.downloader.Names[0] != "Unknown Bootleg" {
			t.Errorf("downloader should get the original name, got %v", f.downloader.Names)
		}
	})

	t.Run("candidates without uri are discarded", func(t *testing.T) {
		f := newResolverFixture(t, shared.PolicyOnMiss)
		noURI := tu.Candidate("t1", "Believer", "Imagine Dragons")
		noURI.URI = ""
		f.catalog.Results["track:Believer Imagine Dragons"] = []models.CandidateTrack{noURI}

		o := f.resolver.Resolve(ctx, "pl1", "Believer Imagine Dragons")
		if o.Kind != DownloadedLocally {
			t.Errorf("expected fallback when only candidate has no uri, got %s", o.Kind)
		}
	})

	t.Run("download failure", func(t *testing.T) {
		f := newResolverFixture(t, shared.PolicyOnMiss)
		f.downloader.Err = shared.ErrDownloadFailed

		o := f.resolver.Resolve(ctx, "pl1", "Nothing")
		if o.Kind != DownloadFailed || !errors.Is(o.Err, shared.ErrDownloadFailed) {
			t.Errorf("expected DownloadFailed, got %s (%v)", o.Kind, o.Err)
		}
	})

	t.Run("search failure never downloads", func(t *testing.T) {
		f := newResolverFixture(t, shared.PolicyAlways)
		f.catalog.SearchErr["track:Song A"] = shared.ErrRateLimited

		o := f.resolver.Resolve(ctx, "pl1", "Song A")

		if o.Kind != SearchFailed {
			t.Fatalf("expected SearchFailed, got %s", o.Kind)
		}
		if !errors.Is(o.Err, shared.ErrSearchFailed) || !errors.Is(o.Err, shared.ErrRateLimited) {
			t.Errorf("expected wrapped search error, got %v", o.Err)
		}
		if len(f.downloader.Names) != 0 {
			t.Error("downloader must not run after a search failure")
		}
	})

	t.Run("credential failure is a search failure", func(t *testing.T) {
		catalog := tu.NewMockCatalog()
		dl := &tu.MockDownloader{}
		r := NewResolver(ResolverOpts{
			Catalog:     catalog,
			Credentials: services.StaticCredentials{Err: shared.ErrNotAuthenticated},
			Downloader:  dl,
			Logger:      shared.NewLogger(quietLogger()),
		})

		o := r.Resolve(ctx, "pl1", "Song")
		if o.Kind != SearchFailed || !errors.Is(o.Err, shared.ErrNotAuthenticated) {
			t.Errorf("expected SearchFailed wrapping ErrNotAuthenticated, got %s (%v)", o.Kind, o.Err)
		}
		if len(catalog.Searches) != 0 || len(dl.Names) != 0 {
			t.Error("nothing should be called without a credential")
		}
	})

	t.Run("playlist write failure is recorded", func(t *testing.T) {
		f := newResolverFixture(t, shared.PolicyOnMiss)
		f.catalog.AddErr = shared.ErrTokenExpired
		f.catalog.Results["track:Believer"] = []models.CandidateTrack{tu.Candidate("t1", "Believer")}

		o := f.resolver.Resolve(ctx, "pl1", "Believer")
		if o.Kind != AddFailed || !errors.Is(o.Err, shared.ErrMutationFailed) {
			t.Errorf("expected AddFailed, got %s (%v)", o.Kind, o.Err)
		}
		if len(f.downloader.Names) != 0 {
			t.Error("a rejected write should not trigger a download")
		}
	})

	t.Run("always policy archives matches", func(t *testing.T) {
		f := newResolverFixture(t, shared.PolicyAlways)
		f.catalog.Results["track:Believer"] = []models.CandidateTrack{tu.Candidate("t1", "Believer")}

		o := f.resolver.Resolve(ctx, "pl1", "Believer")
		if o.Kind != AddedToPlaylist || !o.Archived || o.Path == "" {
			t.Errorf("expected added and archived, got %+v", o)
		}
	})

	t.Run("always policy archives after a rejected write", func(t *testing.T) {
		f := newResolverFixture(t, shared.PolicyAlways)
		f.catalog.AddErr = shared.ErrPlaylistNotFound
		f.catalog.Results["track:Believer"] = []models.CandidateTrack{tu.Candidate("t1", "Believer")}

		o := f.resolver.Resolve(ctx, "pl1", "Believer")
		if o.Kind != AddFailed || !errors.Is(o.Err, shared.ErrMutationFailed) {
			t.Errorf("expected AddFailed with the write error, got %s (%v)", o.Kind, o.Err)
		}
		if len(f.downloader.Names) != 1 || f.downloader.Names[0] != "Believer" {
			t.Errorf("expected an archive download, got %v", f.downloader.Names)
		}
		if !o.Archived || o.Path == "" {
			t.Errorf("expected the outcome to carry the archive path, got %+v", o)
		}
	})

	t.Run("archive failure keeps the add", func(t *testing.T) {
		f := newResolverFixture(t, shared.PolicyAlways)
		f.downloader.Err = shared.ErrDownloadFailed
		f.catalog.Results["track:Believer"] = []models.CandidateTrack{tu.Candidate("t1", "Believer")}

		o := f.resolver.Resolve(ctx, "pl1", "Believer")
		if o.Kind != AddedToPlaylist || o.Archived {
			t.Errorf("expected added without archive, got %+v", o)
		}
		if !errors.Is(o.Err, shared.ErrDownloadFailed) {
			t.Errorf("expected archive error to be kept, got %v", o.Err)
		}
		if o.Failed() {
			t.Error("an added track is not a failure")
		}
	})

	t.Run("never policy disables fallback", func(t *testing.T) {
		f := newResolverFixture(t, shared.PolicyNever)

		o := f.resolver.Resolve(ctx, "pl1", "Nothing")
		if o.Kind != DownloadFailed || !errors.Is(o.Err, shared.ErrDownloadDisabled) {
			t.Errorf("expected DownloadFailed with ErrDownloadDisabled, got %s (%v)", o.Kind, o.Err)
		}
		if len(f.downloader.Names) != 0 {
			t.Error("downloader should not run with never policy")
		}
	})

	t.Run("Lookup ranks without side effects", func(t *testing.T) {
		f := newResolverFixture(t, shared.PolicyOnMiss)
		f.catalog.Results["track:Believer Imagine Dragons"] = []models.CandidateTrack{
			tu.Candidate("t2", "Thunder", "Imagine Dragons"),
			tu.Candidate("t1", "Believer", "Imagine Dragons"),
		}

		lookup, err := f.resolver.Lookup(ctx, "Believer Imagine Dragons")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !lookup.Match.Matched || lookup.Match.Candidate.ID != "t1" {
			t.Errorf("expected t1 to match, got %+v", lookup.Match)
		}
		if lookup.Ranked[0].Candidate.ID != "t1" {
			t.Errorf("expected t1 ranked first, got %s", lookup.Ranked[0].Candidate.ID)
		}
		if len(f.catalog.Adds) != 0 || len(f.downloader.Names) != 0 {
			t.Error("lookup must not write or download")
		}
	})

	t.Run("Lookup scores each candidate once", func(t *testing.T) {
		calls := 0
		f := newResolverFixture(t, shared.PolicyOnMiss, matcher.WithScorer(func(q, c string) float64 {
			calls++
			return matcher.Score(q, c)
		}))
		f.catalog.Results["track:Believer"] = []models.CandidateTrack{
			tu.Candidate("t1", "Believer", "Imagine Dragons"),
			tu.Candidate("t2", "Thunder", "Imagine Dragons"),
			tu.Candidate("t3", "Believer"),
		}

		lookup, err := f.resolver.Lookup(ctx, "Believer")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 scorer calls, got %d", calls)
		}
		if lookup.Match.Candidate.ID != lookup.Ranked[0].Candidate.ID || lookup.Match.Score != lookup.Ranked[0].Score {
			t.Errorf("expected match to be the top ranked candidate, got %+v", lookup.Match)
		}
		if lookup.Match.Candidate.ID != "t3" {
			t.Errorf("expected exact composite t3, got %s", lookup.Match.Candidate.ID)
		}
	})

	t.Run("Lookup rejects empty names", func(t *testing.T) {
		f := newResolverFixture(t, shared.PolicyOnMiss)
		if _, err := f.resolver.Lookup(ctx, "  "); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestOutcomeKind(t *testing.T) {
	tc := map[OutcomeKind]string{
		AddedToPlaylist:   "added",
		DownloadedLocally: "downloaded",
		DownloadFailed:    "download_failed",
		SearchFailed:      "search_failed",
		AddFailed:         "add_failed",
		OutcomeKind(99):   "unknown",
	}
	for kind, want := range tc {
		if kind.String() != want {
			t.Errorf("%d.String() = %q, want %q", kind, kind.String(), want)
		}
	}
}
