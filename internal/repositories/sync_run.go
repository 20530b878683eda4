package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/adder/internal/models"
	"github.com/desertthunder/adder/internal/shared"
)

const syncRunColumns = `
	id, sequence, playlist_id, tracklist, status, policy, threshold,
	total, added, downloaded, download_failed, search_failed, add_failed,
	error_message, started_at, completed_at, created_at, updated_at, deleted_at
`

// SyncRunRepository implements models.Repository[*models.SyncRun] for pipeline run history.
type SyncRunRepository struct {
	db *sql.DB
}

// NewSyncRunRepository creates a new SyncRunRepository with the given database connection
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Create inserts a new run with generated ID and sequence
func (r *SyncRunRepository) Create(run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "sync_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	run.SetID(shared.GenerateID())
	run.SetSequence(sequence)

	query := `
		INSERT INTO sync_runs (
			id, sequence, playlist_id, tracklist, status, policy, threshold,
			total, added, downloaded, download_failed, search_failed, add_failed,
			error_message, started_at, completed_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	c := run.Counts()
	_, err = r.db.Exec(query,
		run.ID(),
		sequence,
		run.PlaylistID(),
		run.Tracklist(),
		string(run.Status()),
		run.Policy(),
		run.Threshold(),
		c.Total, c.Added, c.Downloaded, c.DownloadFailed, c.SearchFailed, c.AddFailed,
		nullString(run.ErrorMessage()),
		nullTime(run.StartedAt()),
		nullTime(run.CompletedAt()),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}
	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *SyncRunRepository) Get(id string) (*models.SyncRun, error) {
	query := "SELECT" + syncRunColumns + "FROM sync_runs WHERE id = ? AND deleted_at IS NULL"

	run, err := scanSyncRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: sync run %s", shared.ErrRecordNotFound, id)
	}
	return run, err
}

// Update stores the run's status, counts and timestamps
func (r *SyncRunRepository) Update(run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE sync_runs
		SET status = ?, total = ?, added = ?, downloaded = ?, download_failed = ?,
			search_failed = ?, add_failed = ?, error_message = ?, started_at = ?,
			completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	c := run.Counts()
	result, err := r.db.Exec(query,
		string(run.Status()),
		c.Total, c.Added, c.Downloaded, c.DownloadFailed, c.SearchFailed, c.AddFailed,
		nullString(run.ErrorMessage()),
		nullTime(run.StartedAt()),
		nullTime(run.CompletedAt()),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update sync run: %w", err)
	}
	return expectAffected(result, run.ID())
}

// Delete soft-deletes a run by ID
func (r *SyncRunRepository) Delete(id string) error {
	return softDelete(r.db, "sync_runs", id)
}

// List retrieves runs newest first.
//
// Supported criteria: "playlist_id" (string), "status" (string or [models.RunStatus]) and "limit" (int).
func (r *SyncRunRepository) List(criteria map[string]any) ([]*models.SyncRun, error) {
	query := "SELECT" + syncRunColumns + "FROM sync_runs WHERE deleted_at IS NULL"
	args := []any{}

	if playlistID, ok := criteria["playlist_id"].(string); ok && playlistID != "" {
		query += " AND playlist_id = ?"
		args = append(args, playlistID)
	}

	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	case models.RunStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// scanSyncRun scans one row into a [models.SyncRun]. [sql.ErrNoRows] is returned unwrapped.
func scanSyncRun(row scanner) (*models.SyncRun, error) {
	var (
		id           string
		sequence     int
		playlistID   string
		tracklist    string
		status       string
		policy       string
		threshold    float64
		c            models.RunCounts
		errorMessage sql.NullString
		startedAt    sql.NullTime
		completedAt  sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &playlistID, &tracklist, &status, &policy, &threshold,
		&c.Total, &c.Added, &c.Downloaded, &c.DownloadFailed, &c.SearchFailed, &c.AddFailed,
		&errorMessage, &startedAt, &completedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}

	run := models.NewSyncRun(sequence, playlistID, tracklist, policy, threshold)
	run.SetID(id)
	run.SetStatus(models.RunStatus(status))
	run.SetCounts(c)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)

	if errorMessage.Valid {
		run.SetErrorMessage(errorMessage.String)
	}
	if startedAt.Valid {
		run.SetStartedAt(&startedAt.Time)
	}
	if completedAt.Valid {
		run.SetCompletedAt(&completedAt.Time)
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}
