package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/adder/internal/models"
	"github.com/desertthunder/adder/internal/shared"
)

const followRunColumns = `
	id, sequence, playlist_id, tracks_scanned, items_skipped, artists_followed,
	requests, error_message, created_at, updated_at, deleted_at
`

// FollowRunRepository implements models.Repository[*models.FollowRun].
type FollowRunRepository struct {
	db *sql.DB
}

func NewFollowRunRepository(db *sql.DB) *FollowRunRepository {
	return &FollowRunRepository{db: db}
}

func (r *FollowRunRepository) Create(run *models.FollowRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "follow_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	run.SetID(shared.GenerateID())
	run.SetSequence(sequence)

	query := `
		INSERT INTO follow_runs (
			id, sequence, playlist_id, tracks_scanned, items_skipped,
			artists_followed, requests, error_message, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		run.ID(),
		sequence,
		run.PlaylistID(),
		run.TracksScanned(),
		run.ItemsSkipped(),
		run.ArtistsFollowed(),
		run.Requests(),
		nullString(run.ErrorMessage()),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert follow run: %w", err)
	}
	return nil
}

func (r *FollowRunRepository) Get(id string) (*models.FollowRun, error) {
	query := "SELECT" + followRunColumns + "FROM follow_runs WHERE id = ? AND deleted_at IS NULL"

	run, err := scanFollowRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: follow run %s", shared.ErrRecordNotFound, id)
	}
	return run, err
}

func (r *FollowRunRepository) Update(run *models.FollowRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE follow_runs
		SET tracks_scanned = ?, items_skipped = ?, artists_followed = ?,
			requests = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		run.TracksScanned(),
		run.ItemsSkipped(),
		run.ArtistsFollowed(),
		run.Requests(),
		nullString(run.ErrorMessage()),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update follow run: %w", err)
	}
	return expectAffected(result, run.ID())
}

func (r *FollowRunRepository) Delete(id string) error {
	return softDelete(r.db, "follow_runs", id)
}

// List retrieves follow runs newest first, filtered by "playlist_id" and capped by "limit".
func (r *FollowRunRepository) List(criteria map[string]any) ([]*models.FollowRun, error) {
	query := "SELECT" + followRunColumns + "FROM follow_runs WHERE deleted_at IS NULL"
	args := []any{}

	if playlistID, ok := criteria["playlist_id"].(string); ok && playlistID != "" {
		query += " AND playlist_id = ?"
		args = append(args, playlistID)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query follow runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.FollowRun
	for rows.Next() {
		run, err := scanFollowRun(rows)
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

func scanFollowRun(row scanner) (*models.FollowRun, error) {
	var (
		id              string
		sequence        int
		playlistID      string
		tracksScanned   int
		itemsSkipped    int
		artistsFollowed int
		requests        int
		errorMessage    sql.NullString
		createdAt       time.Time
		updatedAt       time.Time
		deletedAt       sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &playlistID, &tracksScanned, &itemsSkipped, &artistsFollowed,
		&requests, &errorMessage, &createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan follow run: %w", err)
	}

	run := models.NewFollowRun(sequence, playlistID)
	run.SetID(id)
	run.SetTotals(tracksScanned, itemsSkipped, artistsFollowed, requests)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)

	if errorMessage.Valid {
		run.SetErrorMessage(errorMessage.String)
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}
