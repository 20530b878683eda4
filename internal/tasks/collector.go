package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/adder/internal/services"
	"github.com/desertthunder/adder/internal/shared"
)

const (
	// DefaultFollowChunk is the most artist ids Spotify accepts in one follow request.
	DefaultFollowChunk = 50
	// DefaultPageSize is the most playlist items Spotify returns per page.
	DefaultPageSize = 100
)

// FollowSummary reports what the collector saw and followed.
type FollowSummary struct {
	PlaylistID    string   `json:"playlist_id"`
	Pages         int      `json:"pages"`
	TracksScanned int      `json:"tracks_scanned"`
	ItemsSkipped  int      `json:"items_skipped"`
	ArtistIDs     []string `json:"artist_ids"`
	Followed      int      `json:"followed"`
	Requests      int      `json:"requests"`
}

// CollectorOpts configures a [Collector].
type CollectorOpts struct {
	Catalog     services.Catalog
	Credentials CredentialSource
	ChunkSize   int
	PageSize    int
	Logger      *log.Logger
}

// Collector follows every artist credited on a playlist.
type Collector struct {
	catalog   services.Catalog
	creds     CredentialSource
	chunkSize int
	pageSize  int
	logger    *log.Logger
}

// NewCollector creates a [Collector]. Chunk and page sizes default to Spotify's caps.
func NewCollector(opts CollectorOpts) *Collector {
	if opts.ChunkSize <= 0 || opts.ChunkSize > DefaultFollowChunk {
		opts.ChunkSize = DefaultFollowChunk
	}
	if opts.PageSize <= 0 || opts.PageSize > DefaultPageSize {
		opts.PageSize = DefaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Collector{
		catalog:   opts.Catalog,
		creds:     opts.Credentials,
		chunkSize: opts.ChunkSize,
		pageSize:  opts.PageSize,
		logger:    opts.Logger,
	}
}

// Collect pages through playlistID and returns the distinct artist ids in first-seen order.
//
// Items that are not tracks, or carry no artist ids, are skipped and counted. A page reporting a non-zero total
// with no items, or a body that cannot be decoded, fails with [shared.ErrUnexpectedFormat].
func (c *Collector) Collect(ctx context.Context, playlistID string, progress chan<- ProgressUpdate) (*FollowSummary, error) {
	summary := &FollowSummary{PlaylistID: playlistID, ArtistIDs: []string{}}
	seen := make(map[string]struct{})

	offset := 0
	for {
		cred, err := c.creds.Credential(ctx)
		if err != nil {
			return nil, err
		}

		page, err := c.catalog.PlaylistItems(ctx, cred, playlistID, offset, c.pageSize)
		if err != nil {
			if errors.Is(err, shared.ErrUnexpectedFormat) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to fetch playlist items: %w", err)
		}
		if page == nil || (page.Total > offset && len(page.Entries) == 0) {
			return nil, fmt.Errorf("%w: page at offset %d has no items", shared.ErrUnexpectedFormat, offset)
		}

		summary.Pages++
		for _, entry := range page.Entries {
			if !entry.IsTrack || len(entry.ArtistIDs) == 0 {
				summary.ItemsSkipped++
				continue
			}

			summary.TracksScanned++
			for _, id := range entry.ArtistIDs {
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				summary.ArtistIDs = append(summary.ArtistIDs, id)
			}
		}

		offset += len(page.Entries)
		sendProgress(progress, fetchItemsUpdate(summary.Pages, offset, page.Total))

		if len(page.Entries) < c.pageSize || offset >= page.Total {
			break
		}
	}

	c.logger.Debug("collected artists", "playlist", playlistID, "artists", len(summary.ArtistIDs), "skipped", summary.ItemsSkipped)
	return summary, nil
}

// CollectAndFollow collects the artists on playlistID and follows them in chunks.
//
// With at most one chunk's worth of artists this is a single follow request. An empty set sends nothing.
// On a follow failure the summary so far is returned with the error.
func (c *Collector) CollectAndFollow(ctx context.Context, playlistID string, progress chan<- ProgressUpdate) (*FollowSummary, error) {
	summary, err := c.Collect(ctx, playlistID, progress)
	if err != nil {
		return nil, err
	}

	ids := summary.ArtistIDs
	if len(ids) == 0 {
		c.logger.Info("no artists to follow", "playlist", playlistID)
		return summary, nil
	}

	chunks := (len(ids) + c.chunkSize - 1) / c.chunkSize
	for i := 0; i < len(ids); i += c.chunkSize {
		chunk := ids[i:min(i+c.chunkSize, len(ids))]

		cred, err := c.creds.Credential(ctx)
		if err != nil {
			return summary, err
		}

		summary.Requests++
		if err := c.catalog.FollowArtists(ctx, cred, chunk...); err != nil {
			return summary, fmt.Errorf("failed to follow artists: %w", err)
		}

		summary.Followed += len(chunk)
		sendProgress(progress, followArtistsUpdate(summary.Requests, chunks, summary.Followed, len(ids)))
	}

	c.logger.Info("followed artists", "playlist", playlistID, "count", summary.Followed, "requests", summary.Requests)
	return summary, nil
}
