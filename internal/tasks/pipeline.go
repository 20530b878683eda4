package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/adder/internal/models"
	"github.com/desertthunder/adder/internal/shared"
)

// RunResult is the outcome log of one pipeline run.
//
// Outcomes has one entry per input name, in input order.
type RunResult struct {
	PlaylistID  string           `json:"playlist_id"`
	Outcomes    []Outcome        `json:"outcomes"`
	Counts      models.RunCounts `json:"counts"`
	Archived    int              `json:"archived"`
	Cancelled   bool             `json:"cancelled"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}

// Failures returns the number of entries that were neither added nor downloaded.
func (r *RunResult) Failures() int {
	return r.Counts.DownloadFailed + r.Counts.SearchFailed + r.Counts.AddFailed
}

// Duration returns the wall time of the run.
func (r *RunResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

func (r *RunResult) record(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.Counts.Total++
	switch o.Kind {
	case AddedToPlaylist:
		r.Counts.Added++
		if o.Archived {
			r.Archived++
		}
	case DownloadedLocally:
		r.Counts.Downloaded++
	case DownloadFailed:
		r.Counts.DownloadFailed++
	case SearchFailed:
		r.Counts.SearchFailed++
	case AddFailed:
		r.Counts.AddFailed++
	}
}

// Pipeline drives a [Resolver] over a tracklist.
type Pipeline struct {
	resolver *Resolver
	logger   *log.Logger
}

// NewPipeline creates a [Pipeline].
func NewPipeline(resolver *Resolver, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Pipeline{resolver: resolver, logger: logger}
}

// Run resolves names against playlistID one at a time.
//
// Entry i+1 starts only after entry i, including its download, has finished. A failed entry never stops the run.
// If ctx is cancelled, every entry not yet started is recorded as SearchFailed with the context error so the log
// still has one outcome per input.
func (p *Pipeline) Run(ctx context.Context, names []string, playlistID string, progress chan<- ProgressUpdate) *RunResult {
	total := len(names)
	res := &RunResult{
		PlaylistID: playlistID,
		Outcomes:   make([]Outcome, 0, total),
		StartedAt:  time.Now(),
	}

	p.logger.Info("starting run", "playlist", playlistID, "tracks", total)

	for i, name := range names {
		step := i + 1

		if err := ctx.Err(); err != nil {
			res.Cancelled = true
			res.record(Outcome{Name: name, Kind: SearchFailed, Score: 1, Err: err})
			continue
		}

		sendProgress(progress, resolveTrackUpdate(step, total, name))
		o := p.resolver.resolve(ctx, playlistID, name, progress, step, total)
		if o.Err != nil && isCancellation(o.Err) {
			res.Cancelled = true
		}

		res.record(o)
		sendProgress(progress, trackDoneUpdate(step, total, o))
	}

	res.CompletedAt = time.Now()
	p.logger.Info("run finished",
		"added", res.Counts.Added,
		"downloaded", res.Counts.Downloaded,
		"failed", res.Failures(),
		"duration", res.Duration().Round(time.Millisecond),
	)
	sendProgress(progress, runDoneUpdate(res))
	return res
}
