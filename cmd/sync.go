package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/adder/internal/formatter"
	"github.com/desertthunder/adder/internal/matcher"
	"github.com/desertthunder/adder/internal/models"
	"github.com/desertthunder/adder/internal/repositories"
	"github.com/desertthunder/adder/internal/shared"
	"github.com/desertthunder/adder/internal/tasks"
	"github.com/desertthunder/adder/internal/ui"
	"github.com/urfave/cli/v3"
)

// tuiLogPath receives log output while the terminal UI owns the screen.
const tuiLogPath = "./tmp/adder-tui.log"

// runTUI is replaced in tests.
var runTUI = func(model tea.Model) error {
	_, err := tea.NewProgram(model).Run()
	return err
}

// syncSettings are the matcher and download settings for one run: config values overridden by flags.
type syncSettings struct {
	threshold float64
	limit     int
	policy    string
	outputDir string
}

func (r *Runner) syncSettings(cmd *cli.Command) (syncSettings, error) {
	s := syncSettings{
		threshold: r.config.Matcher.Threshold,
		limit:     r.config.Matcher.SearchLimit,
		policy:    r.config.Download.Policy,
		outputDir: r.config.Download.Directory,
	}

	if v := cmd.String("policy"); v != "" {
		s.policy = v
	}
	if v := cmd.String("output-dir"); v != "" {
		s.outputDir = v
	}
	if err := r.checkSettings(cmd, &s); err != nil {
		return s, err
	}
	return s, nil
}

// checkSettings applies the --threshold and --limit flags and validates the result against the config rules.
func (r *Runner) checkSettings(cmd *cli.Command, s *syncSettings) error {
	if cmd.IsSet("threshold") {
		s.threshold = cmd.Float("threshold")
	}
	if cmd.IsSet("limit") {
		s.limit = cmd.Int("limit")
	}

	check := *r.config
	check.Matcher.Threshold = s.threshold
	check.Matcher.SearchLimit = s.limit
	check.Download.Policy = s.policy
	if err := check.Validate(); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidFlag, err)
	}
	return nil
}

// newResolver wires the catalog, credentials, matcher and downloader into a [tasks.Resolver].
func (r *Runner) newResolver(ctx context.Context, s syncSettings) (*tasks.Resolver, error) {
	creds, err := r.credentials(ctx)
	if err != nil {
		return nil, err
	}

	opts := tasks.ResolverOpts{
		Catalog:     r.spotifyCatalog(),
		Credentials: creds,
		Matcher:     matcher.New(matcher.WithThreshold(s.threshold)),
		Policy:      s.policy,
		SearchLimit: s.limit,
		Logger:      r.logger,
	}
	if s.policy != shared.PolicyNever {
		if s.outputDir != r.config.Download.Directory {
			r.config.Download.Directory = s.outputDir
			r.resetDownloader()
		}
		opts.Downloader = r.fallbackDownloader()
	}
	return tasks.NewResolver(opts), nil
}

// Sync resolves every name in a tracklist file against a playlist, one at a time.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if err := r.useConfig(cmd); err != nil {
		return err
	}

	playlistID, err := shared.ParsePlaylistID(cmd.String("playlist"))
	if err != nil {
		return err
	}

	tracklist := cmd.String("tracklist")
	names, err := shared.ReadTracklist(tracklist)
	if err != nil {
		return err
	}

	settings, err := r.syncSettings(cmd)
	if err != nil {
		return err
	}

	reportPath := cmd.String("report")
	reportFormat, err := reportFormatFor(reportPath, cmd.String("format"))
	if err != nil {
		return err
	}

	useTUI := cmd.Bool("tui")
	if useTUI {
		fileLogger, err := shared.NewFileLogger(tuiLogPath)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		shared.SetLogLevel(fileLogger, r.logger.GetLevel())
		r.SetLogger(fileLogger)
		r.resetDownloader()
	}

	resolver, err := r.newResolver(ctx, settings)
	if err != nil {
		return err
	}
	pipeline := tasks.NewPipeline(resolver, r.logger)

	history := r.startSyncRun(playlistID, tracklist, settings)

	var result *tasks.RunResult
	if useTUI {
		result, err = r.syncTUI(ctx, pipeline, names, playlistID)
		if err != nil {
			history.fail(err)
			return err
		}
	} else {
		r.writePlain("Adding %d tracks to playlist %s\n", len(names), playlistID)
		r.writePlain("Threshold: %.2f  Policy: %s\n\n", settings.threshold, settings.policy)
		result = r.syncPlain(ctx, pipeline, names, playlistID)
	}

	history.finish(result)

	r.writeSyncSummary(result)

	if reportFormat != "" {
		written, err := formatter.WriteReport(result, reportPath, reportFormat)
		if err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		r.logger.Info("report written", "path", written, "format", reportFormat)
		r.writePlain("\nReport saved to %s\n", written)
	}

	if result.Cancelled {
		r.logger.Warn("run cancelled before every track was processed")
	}
	return nil
}

// reportFormatFor picks the report format from the --format flag, then from the report file extension. An empty
// result means no report was requested.
func reportFormatFor(path, flag string) (formatter.Format, error) {
	if flag != "" {
		return formatter.ParseFormat(flag)
	}
	if path == "" {
		return "", nil
	}
	if f, err := formatter.ParseFormat(filepath.Ext(path)); err == nil && filepath.Ext(path) != "" {
		return f, nil
	}
	return formatter.FormatText, nil
}

// syncPlain prints progress lines while the pipeline runs.
func (r *Runner) syncPlain(ctx context.Context, pipeline *tasks.Pipeline, names []string, playlistID string) *tasks.RunResult {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.ResolveTrack:
				r.writePlain("🔍 %s\n", update.Message)
			case tasks.AddTrack, tasks.DownloadTrack:
				r.writePlain("   %s\n", update.Message)
			case tasks.TrackDone:
				if o, ok := update.Data.(tasks.Outcome); ok {
					r.writePlain("   %s\n", ui.Outcome(o.Kind, update.Message))
				} else {
					r.writePlain("   %s\n", update.Message)
				}
			}
		}
	}()

	result := pipeline.Run(ctx, names, playlistID, progressCh)
	close(progressCh)
	<-done

	return result
}

// syncTUI runs the pipeline under the terminal UI and returns its result once the program exits.
func (r *Runner) syncTUI(ctx context.Context, pipeline *tasks.Pipeline, names []string, playlistID string) (*tasks.RunResult, error) {
	title := fmt.Sprintf("adder: %d tracks → %s", len(names), playlistID)
	model := ui.NewModel(ctx, title, func(ctx context.Context, progress chan<- tasks.ProgressUpdate) *tasks.RunResult {
		return pipeline.Run(ctx, names, playlistID, progress)
	})

	if err := runTUI(model); err != nil {
		return nil, fmt.Errorf("error running TUI: %w", err)
	}

	result := model.Result()
	if result == nil {
		return nil, fmt.Errorf("%w: TUI exited before the run finished", shared.ErrTimeout)
	}
	return result, nil
}

func (r *Runner) writeSyncSummary(result *tasks.RunResult) {
	c := result.Counts

	r.writePlain("\n")
	if result.Cancelled {
		r.writePlainHeader(ui.Warning("Sync Cancelled"))
	} else {
		r.writePlainHeader(ui.Title("Sync Complete!"))
	}
	r.writePlain("Playlist: %s\n", result.PlaylistID)
	r.writePlain("Tracks: %d in %v\n", c.Total, result.Duration().Round(time.Millisecond))
	r.writePlain("%s\n", ui.Success(fmt.Sprintf("Added: %d (archived %d)", c.Added, result.Archived)))
	r.writePlain("%s\n", ui.Success(fmt.Sprintf("Downloaded: %d", c.Downloaded)))

	if result.Failures() == 0 {
		return
	}

	r.writePlain("%s\n", ui.Failure(fmt.Sprintf("Failed: %d (search %d, add %d, download %d)",
		result.Failures(), c.SearchFailed, c.AddFailed, c.DownloadFailed)))
	r.writePlain("\nNot added:\n")
	for _, o := range result.Outcomes {
		if o.Failed() {
			r.writePlain("  - %s: %s\n", o.Name, ui.Muted(o.ErrorMessage()))
		}
	}
}

// syncHistory persists one sync run. A nil repository turns every call into a no-op so a missing database never
// blocks a run.
type syncHistory struct {
	repo   *repositories.SyncRunRepository
	run    *models.SyncRun
	close  func() error
	runner *Runner
}

func (r *Runner) startSyncRun(playlistID, tracklist string, s syncSettings) *syncHistory {
	h := &syncHistory{runner: r}

	db, err := r.openDatabase()
	if err != nil {
		r.logger.Warn("run history disabled", "error", err)
		return h
	}

	run := models.NewSyncRun(0, playlistID, tracklist, s.policy, s.threshold)
	run.Start(time.Now())

	repo := repositories.NewSyncRunRepository(db)
	if err := repo.Create(run); err != nil {
		r.logger.Warn("failed to record sync run", "error", err)
		db.Close()
		return h
	}

	h.repo, h.run, h.close = repo, run, db.Close
	return h
}

func (h *syncHistory) finish(result *tasks.RunResult) {
	if h.repo == nil {
		return
	}
	h.run.Finish(result.CompletedAt, result.Counts, result.Cancelled, nil)
	h.save()
}

func (h *syncHistory) fail(err error) {
	if h.repo == nil {
		return
	}
	h.run.Finish(time.Now(), models.RunCounts{}, false, err)
	h.save()
}

func (h *syncHistory) save() {
	defer h.close()

	if err := h.repo.Update(h.run); err != nil {
		h.runner.logger.Warn("failed to update sync run", "id", h.run.ID(), "error", err)
		return
	}
	h.runner.logger.Debug("sync run recorded", "id", h.run.ID(), "status", h.run.Status())
}
