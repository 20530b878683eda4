package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/adder/internal/models"
	"github.com/desertthunder/adder/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// every pooled connection to :memory: is its own database
	shared.ConfigureDatabase(db, 1, 1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "sync_runs")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if got, _ := NextSequence(db, "follow_runs"); got != 1 {
		t.Errorf("sequences should be per table, got %d", got)
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for unknown sequence table")
	}
}

func TestSyncRunRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		run := models.NewSyncRun(0, "pl1", "mix.txt", shared.PolicyOnMiss, 0.8)

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if run.ID() == "" {
			t.Error("run ID should be set after creation")
		}
		if run.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", run.Sequence())
		}
	})

	t.Run("Create rejects invalid run", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		run := models.NewSyncRun(0, "", "mix.txt", shared.PolicyOnMiss, 0.8)

		if err := repo.Create(run); err == nil {
			t.Fatal("expected validation error for empty playlist id")
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		run := models.NewSyncRun(0, "pl1", "mix.txt", shared.PolicyAlways, 0.5)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}

		if got.PlaylistID() != "pl1" || got.Tracklist() != "mix.txt" {
			t.Errorf("unexpected run %s/%s", got.PlaylistID(), got.Tracklist())
		}
		if got.Policy() != shared.PolicyAlways || got.Threshold() != 0.5 {
			t.Errorf("unexpected settings %s/%v", got.Policy(), got.Threshold())
		}
		if got.Status() != models.RunPending {
			t.Errorf("expected pending, got %s", got.Status())
		}
		if got.StartedAt() != nil || got.CompletedAt() != nil {
			t.Error("timestamps should be unset")
		}
	})

	t.Run("Get not found", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		if _, err := repo.Get("nonexistent"); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("Update records the finished run", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		run := models.NewSyncRun(0, "pl1", "mix.txt", shared.PolicyOnMiss, 0.8)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		start := time.Now().Add(-time.Minute)
		run.Start(start)
		counts := models.RunCounts{Total: 4, Added: 2, Downloaded: 1, SearchFailed: 1}
		run.Finish(start.Add(30*time.Second), counts, false, nil)

		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status() != models.RunCompleted {
			t.Errorf("expected completed, got %s", got.Status())
		}
		if got.Counts() != counts {
			t.Errorf("expected counts %+v, got %+v", counts, got.Counts())
		}
		if got.Duration().Round(time.Second) != 30*time.Second {
			t.Errorf("expected 30s duration, got %v", got.Duration())
		}
	})

	t.Run("Update keeps error message", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		run := models.NewSyncRun(0, "pl1", "mix.txt", shared.PolicyOnMiss, 0.8)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		run.Start(time.Now())
		run.Finish(time.Now(), models.RunCounts{}, false, shared.ErrNotAuthenticated)
		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, _ := repo.Get(run.ID())
		if got.Status() != models.RunFailed || got.ErrorMessage() != shared.ErrNotAuthenticated.Error() {
			t.Errorf("unexpected failed run %s %q", got.Status(), got.ErrorMessage())
		}
	})

	t.Run("Update not found", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		run := models.NewSyncRun(0, "pl1", "mix.txt", shared.PolicyOnMiss, 0.8)
		run.SetID("nonexistent")

		if err := repo.Update(run); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		run := models.NewSyncRun(0, "pl1", "mix.txt", shared.PolicyOnMiss, 0.8)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		if err := repo.Delete(run.ID()); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}
		if _, err := repo.Get(run.ID()); err == nil {
			t.Error("deleted run should not be returned")
		}
		if err := repo.Delete(run.ID()); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("deleting twice should fail with ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))

		for _, pl := range []string{"pl1", "pl2", "pl1"} {
			if err := repo.Create(models.NewSyncRun(0, pl, "mix.txt", shared.PolicyOnMiss, 0.8)); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(all))
		}
		if all[0].Sequence() != 3 || all[2].Sequence() != 1 {
			t.Errorf("expected newest first, got %d..%d", all[0].Sequence(), all[2].Sequence())
		}

		byPlaylist, err := repo.List(map[string]any{"playlist_id": "pl1"})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(byPlaylist) != 2 {
			t.Errorf("expected 2 runs for pl1, got %d", len(byPlaylist))
		}

		limited, _ := repo.List(map[string]any{"limit": 1})
		if len(limited) != 1 {
			t.Errorf("expected 1 run with limit, got %d", len(limited))
		}

		pending, _ := repo.List(map[string]any{"status": models.RunPending})
		if len(pending) != 3 {
			t.Errorf("expected 3 pending runs, got %d", len(pending))
		}

		completed, _ := repo.List(map[string]any{"status": "completed"})
		if len(completed) != 0 {
			t.Errorf("expected no completed runs, got %d", len(completed))
		}

		if err := repo.Delete(all[0].ID()); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}
		remaining, _ := repo.List(nil)
		if len(remaining) != 2 {
			t.Errorf("expected deleted run to be excluded, got %d", len(remaining))
		}
	})
}

func TestFollowRunRepository(t *testing.T) {
	t.Run("Create and Get", func(t *testing.T) {
		repo := NewFollowRunRepository(setupTestDB(t))
		run := models.NewFollowRun(0, "pl1")
		run.SetTotals(120, 3, 87, 2)

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.TracksScanned() != 120 || got.ItemsSkipped() != 3 || got.ArtistsFollowed() != 87 || got.Requests() != 2 {
			t.Errorf("unexpected totals %d/%d/%d/%d",
				got.TracksScanned(), got.ItemsSkipped(), got.ArtistsFollowed(), got.Requests())
		}
		if got.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", got.Sequence())
		}
	})

	t.Run("Create rejects negative counts", func(t *testing.T) {
		repo := NewFollowRunRepository(setupTestDB(t))
		run := models.NewFollowRun(0, "pl1")
		run.SetTotals(-1, 0, 0, 0)

		if err := repo.Create(run); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewFollowRunRepository(setupTestDB(t))
		run := models.NewFollowRun(0, "pl1")
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		run.SetTotals(10, 0, 4, 1)
		run.SetErrorMessage("rate limited")
		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, _ := repo.Get(run.ID())
		if got.ArtistsFollowed() != 4 || got.ErrorMessage() != "rate limited" {
			t.Errorf("unexpected run %d %q", got.ArtistsFollowed(), got.ErrorMessage())
		}
	})

	t.Run("Delete and List", func(t *testing.T) {
		repo := NewFollowRunRepository(setupTestDB(t))
		first := models.NewFollowRun(0, "pl1")
		second := models.NewFollowRun(0, "pl2")
		for _, r := range []*models.FollowRun{first, second} {
			if err := repo.Create(r); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		if err := repo.Delete(first.ID()); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}

		runs, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 || runs[0].ID() != second.ID() {
			t.Errorf("expected only the second run, got %d runs", len(runs))
		}

		filtered, _ := repo.List(map[string]any{"playlist_id": "pl1"})
		if len(filtered) != 0 {
			t.Errorf("expected no runs for deleted playlist, got %d", len(filtered))
		}
	})

	t.Run("Get not found", func(t *testing.T) {
		repo := NewFollowRunRepository(setupTestDB(t))
		if _, err := repo.Get("nonexistent"); !errors.Is(err, shared.ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}
	})
}
