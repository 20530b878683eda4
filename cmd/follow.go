package main

import (
	"context"

	"github.com/desertthunder/adder/internal/models"
	"github.com/desertthunder/adder/internal/repositories"
	"github.com/desertthunder/adder/internal/shared"
	"github.com/desertthunder/adder/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Follow follows every artist credited on a playlist and records the run.
func (r *Runner) Follow(ctx context.Context, cmd *cli.Command) error {
	if err := r.useConfig(cmd); err != nil {
		return err
	}

	playlistID, err := shared.ParsePlaylistID(cmd.String("playlist"))
	if err != nil {
		return err
	}

	creds, err := r.credentials(ctx)
	if err != nil {
		return err
	}

	collector := tasks.NewCollector(tasks.CollectorOpts{
		Catalog:     r.spotifyCatalog(),
		Credentials: creds,
		ChunkSize:   r.config.Catalog.FollowChunkSize,
		Logger:      r.logger,
	})

	asJSON := cmd.Bool("json")
	if !asJSON {
		r.writePlain("Following artists on playlist %s\n\n", playlistID)
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if asJSON {
				continue
			}
			switch update.Phase {
			case tasks.FetchItems:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.FollowArtists:
				r.writePlain("➕ %s\n", update.Message)
			}
		}
	}()

	summary, followErr := collector.CollectAndFollow(ctx, playlistID, progressCh)
	close(progressCh)
	<-done

	r.recordFollowRun(playlistID, summary, followErr)

	if followErr != nil {
		return followErr
	}

	if asJSON {
		return r.writeJSON(summary, true)
	}

	r.writePlain("\n")
	r.writePlainHeader("Follow Complete!")
	r.writePlain("Tracks scanned: %d\n", summary.TracksScanned)
	r.writePlain("Items skipped: %d\n", summary.ItemsSkipped)
	r.writePlain("Followed %d artists in %d requests\n", summary.Followed, summary.Requests)
	return nil
}

// recordFollowRun stores the outcome of a follow invocation. History failures are logged, never returned.
func (r *Runner) recordFollowRun(playlistID string, summary *tasks.FollowSummary, followErr error) {
	db, err := r.openDatabase()
	if err != nil {
		r.logger.Warn("run history disabled", "error", err)
		return
	}
	defer db.Close()

	run := models.NewFollowRun(0, playlistID)
	if summary != nil {
		run.SetTotals(summary.TracksScanned, summary.ItemsSkipped, summary.Followed, summary.Requests)
	}
	if followErr != nil {
		run.SetErrorMessage(followErr.Error())
	}

	if err := repositories.NewFollowRunRepository(db).Create(run); err != nil {
		r.logger.Warn("failed to record follow run", "error", err)
		return
	}
	r.logger.Debug("follow run recorded", "id", run.ID())
}
