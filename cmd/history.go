package main

import (
	"context"
	"time"

	"github.com/desertthunder/adder/internal/models"
	"github.com/desertthunder/adder/internal/repositories"
	"github.com/desertthunder/adder/internal/shared"
	"github.com/urfave/cli/v3"
)

type syncRunView struct {
	ID          string           `json:"id"`
	Sequence    int              `json:"sequence"`
	PlaylistID  string           `json:"playlist_id"`
	Tracklist   string           `json:"tracklist"`
	Status      models.RunStatus `json:"status"`
	Policy      string           `json:"policy"`
	Threshold   float64          `json:"threshold"`
	Counts      models.RunCounts `json:"counts"`
	Error       string           `json:"error,omitempty"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

func newSyncRunView(run *models.SyncRun) syncRunView {
	return syncRunView{
		ID:          run.ID(),
		Sequence:    run.Sequence(),
		PlaylistID:  run.PlaylistID(),
		Tracklist:   run.Tracklist(),
		Status:      run.Status(),
		Policy:      run.Policy(),
		Threshold:   run.Threshold(),
		Counts:      run.Counts(),
		Error:       run.ErrorMessage(),
		StartedAt:   run.StartedAt(),
		CompletedAt: run.CompletedAt(),
	}
}

type followRunView struct {
	ID              string    `json:"id"`
	Sequence        int       `json:"sequence"`
	PlaylistID      string    `json:"playlist_id"`
	TracksScanned   int       `json:"tracks_scanned"`
	ItemsSkipped    int       `json:"items_skipped"`
	ArtistsFollowed int       `json:"artists_followed"`
	Requests        int       `json:"requests"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func newFollowRunView(run *models.FollowRun) followRunView {
	return followRunView{
		ID:              run.ID(),
		Sequence:        run.Sequence(),
		PlaylistID:      run.PlaylistID(),
		TracksScanned:   run.TracksScanned(),
		ItemsSkipped:    run.ItemsSkipped(),
		ArtistsFollowed: run.ArtistsFollowed(),
		Requests:        run.Requests(),
		Error:           run.ErrorMessage(),
		CreatedAt:       run.CreatedAt(),
	}
}

// History lists recorded sync runs, or follow runs with --follows, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if err := r.useConfig(cmd); err != nil {
		return err
	}

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if ref := cmd.String("playlist"); ref != "" {
		playlistID, err := shared.ParsePlaylistID(ref)
		if err != nil {
			return err
		}
		criteria["playlist_id"] = playlistID
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if cmd.Bool("follows") {
		runs, err := repositories.NewFollowRunRepository(db).List(criteria)
		if err != nil {
			return err
		}
		return r.writeFollowRuns(runs, cmd.Bool("json"), cmd.Bool("pretty"))
	}

	runs, err := repositories.NewSyncRunRepository(db).List(criteria)
	if err != nil {
		return err
	}
	return r.writeSyncRuns(runs, cmd.Bool("json"), cmd.Bool("pretty"))
}

func (r *Runner) writeSyncRuns(runs []*models.SyncRun, asJSON, pretty bool) error {
	views := make([]syncRunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, newSyncRunView(run))
	}

	if asJSON {
		return r.writeJSON(views, pretty)
	}

	if len(views) == 0 {
		return r.writePlain("No sync runs recorded.\n")
	}

	r.writePlainHeader("Sync Runs")
	for _, v := range views {
		started := "-"
		if v.StartedAt != nil {
			started = v.StartedAt.Local().Format("2006-01-02 15:04")
		}
		r.writePlain("#%d  %s  %s  %s\n", v.Sequence, started, v.PlaylistID, v.Status)
		r.writePlain("    %s: %d added, %d downloaded, %d failed of %d\n",
			v.Tracklist, v.Counts.Added, v.Counts.Downloaded,
			v.Counts.SearchFailed+v.Counts.AddFailed+v.Counts.DownloadFailed, v.Counts.Total)
		if v.Error != "" {
			r.writePlain("    error: %s\n", v.Error)
		}
	}
	return nil
}

func (r *Runner) writeFollowRuns(runs []*models.FollowRun, asJSON, pretty bool) error {
	views := make([]followRunView, 0, len(runs))
	for _, run := range runs {
		views = append(views, newFollowRunView(run))
	}

	if asJSON {
		return r.writeJSON(views, pretty)
	}

	if len(views) == 0 {
		return r.writePlain("No follow runs recorded.\n")
	}

	r.writePlainHeader("Follow Runs")
	for _, v := range views {
		r.writePlain("#%d  %s  %s\n", v.Sequence, v.CreatedAt.Local().Format("2006-01-02 15:04"), v.PlaylistID)
		r.writePlain("    %d tracks scanned, %d skipped, %d artists followed in %d requests\n",
			v.TracksScanned, v.ItemsSkipped, v.ArtistsFollowed, v.Requests)
		if v.Error != "" {
			r.writePlain("    error: %s\n", v.Error)
		}
	}
	return nil
}
