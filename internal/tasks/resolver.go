package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/adder/internal/downloader"
	"github.com/desertthunder/adder/internal/matcher"
	"github.com/desertthunder/adder/internal/models"
	"github.com/desertthunder/adder/internal/services"
	"github.com/desertthunder/adder/internal/shared"
)

// DefaultSearchLimit bounds the number of candidates fetched per entry.
const DefaultSearchLimit = 5

// ResolverOpts contains the collaborators and settings for a [Resolver].
type ResolverOpts struct {
	Catalog     services.Catalog
	Credentials CredentialSource
	Matcher     *matcher.Matcher
	Mutator     *Mutator
	Downloader  downloader.Downloader // Downloader may be nil, which makes every fallback fail
	Policy      string                // Policy is one of shared.PolicyOnMiss, PolicyAlways, PolicyNever
	SearchLimit int
	Logger      *log.Logger
}

// Resolver turns one free-text entry into an [Outcome].
type Resolver struct {
	catalog    services.Catalog
	creds      CredentialSource
	matcher    *matcher.Matcher
	mutator    *Mutator
	downloader downloader.Downloader
	policy     string
	limit      int
	logger     *log.Logger
}

// Lookup is the search and match stage of a resolution, without side effects.
type Lookup struct {
	Query      string
	Candidates []models.CandidateTrack
	Ranked     []matcher.Scored
	Match      matcher.Result
}

// NewResolver creates a [Resolver]. A nil Matcher uses the default threshold, a nil Mutator is built over the
// catalog, an empty Policy means on_miss.
func NewResolver(opts ResolverOpts) *Resolver {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Matcher == nil {
		opts.Matcher = matcher.New()
	}
	if opts.Mutator == nil {
		opts.Mutator = NewMutator(opts.Catalog, opts.Credentials, opts.Logger)
	}
	if opts.Policy == "" {
		opts.Policy = shared.PolicyOnMiss
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}

	return &Resolver{
		catalog:    opts.Catalog,
		creds:      opts.Credentials,
		matcher:    opts.Matcher,
		mutator:    opts.Mutator,
		downloader: opts.Downloader,
		policy:     opts.Policy,
		limit:      opts.SearchLimit,
		logger:     opts.Logger,
	}
}

// Query returns the catalog search string for a tracklist entry.
func Query(name string) string {
	return "track:" + strings.TrimSpace(name)
}

// Lookup searches the catalog for name and scores the results. Candidates without a URI are discarded before
// matching.
func (r *Resolver) Lookup(ctx context.Context, name string) (*Lookup, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: %w: empty track name", shared.ErrSearchFailed, shared.ErrInvalidArgument)
	}

	cred, err := r.creds.Credential(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrSearchFailed, err)
	}

	q := Query(name)
	found, err := r.catalog.Search(ctx, cred, q, r.limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrSearchFailed, err)
	}

	candidates := make([]models.CandidateTrack, 0, len(found))
	for _, c := range found {
		if c.URI != "" {
			candidates = append(candidates, c)
		}
	}

	ranked := r.matcher.Rank(name, candidates)
	return &Lookup{
		Query:      q,
		Candidates: candidates,
		Ranked:     ranked,
		Match:      r.matcher.Best(ranked),
	}, nil
}

// Resolve searches for name, adds the best match to playlistID or falls back to a download.
//
// A search failure never triggers a download. Failures are reported in the returned outcome, never as a panic or
// separate error, so callers can keep going.
func (r *Resolver) Resolve(ctx context.Context, playlistID, name string) Outcome {
	return r.resolve(ctx, playlistID, name, nil, 0, 0)
}

func (r *Resolver) resolve(ctx context.Context, playlistID, name string, progress chan<- ProgressUpdate, step, total int) Outcome {
	out := Outcome{Name: name, Score: 1}
	logger := r.logger.With("track", name)

	lookup, err := r.Lookup(ctx, name)
	if err != nil {
		logger.Warn("search failed", "error", err)
		out.Kind = SearchFailed
		out.Err = err
		return out
	}

	if lookup.Match.Index >= 0 {
		c := lookup.Match.Candidate
		out.Candidate = &c
		out.Score = lookup.Match.Score
	}

	if !lookup.Match.Matched {
		logger.Info("no confident match", "candidates", len(lookup.Candidates), "best", out.Score)
		sendProgress(progress, downloadTrackUpdate(step, total, name))
		return r.fallback(ctx, out)
	}

	uri := lookup.Match.Candidate.URI
	sendProgress(progress, addTrackUpdate(step, total, name, uri))

	snapshot, err := r.mutator.AddTrack(ctx, playlistID, uri)
	if err != nil {
		out.Kind = AddFailed
		out.Err = err
		return r.archive(ctx, out, progress, step, total)
	}

	out.Kind = AddedToPlaylist
	out.URI = uri
	out.Snapshot = snapshot
	logger.Info("added to playlist", "uri", uri, "score", out.Score)

	return r.archive(ctx, out, progress, step, total)
}

// archive downloads a matched entry under the always policy, whether or not the playlist write succeeded.
// A failed download only sets Err when the entry has no error yet.
func (r *Resolver) archive(ctx context.Context, out Outcome, progress chan<- ProgressUpdate, step, total int) Outcome {
	if r.policy != shared.PolicyAlways || r.downloader == nil {
		return out
	}

	sendProgress(progress, downloadTrackUpdate(step, total, out.Name))
	path, err := r.downloader.Download(ctx, out.Name)
	if err != nil {
		r.logger.Warn("archive download failed", "track", out.Name, "error", err)
		if out.Err == nil {
			out.Err = err
		}
		return out
	}

	out.Path = path
	out.Archived = true
	return out
}

// fallback downloads out.Name according to the download policy.
func (r *Resolver) fallback(ctx context.Context, out Outcome) Outcome {
	if r.policy == shared.PolicyNever || r.downloader == nil {
		out.Kind = DownloadFailed
		out.Err = shared.ErrDownloadDisabled
		return out
	}

	path, err := r.downloader.Download(ctx, out.Name)
	if err != nil {
		r.logger.Warn("download failed", "track", out.Name, "error", err)
		out.Kind = DownloadFailed
		out.Err = err
		return out
	}

	out.Kind = DownloadedLocally
	out.Path = path
	return out
}
