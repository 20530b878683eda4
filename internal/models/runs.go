package models

import (
	"errors"
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a [SyncRun].
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
	RunFailed    RunStatus = "failed"
)

// Valid reports whether s is a known status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunPending, RunRunning, RunCompleted, RunCancelled, RunFailed:
		return true
	}
	return false
}

// RunCounts tallies outcomes of a pipeline run by kind.
type RunCounts struct {
	Total          int `json:"total"`
	Added          int `json:"added"`
	Downloaded     int `json:"downloaded"`
	DownloadFailed int `json:"download_failed"`
	SearchFailed   int `json:"search_failed"`
	AddFailed      int `json:"add_failed"`
}

// SyncRun records one tracklist pipeline run against a playlist.
type SyncRun struct {
	id           string
	sequence     int
	playlistID   string
	tracklist    string
	status       RunStatus
	policy       string
	threshold    float64
	counts       RunCounts
	errorMessage string
	startedAt    *time.Time
	completedAt  *time.Time
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewSyncRun creates a pending run for playlistID.
func NewSyncRun(sequence int, playlistID, tracklist, policy string, threshold float64) *SyncRun {
	now := time.Now()
	return &SyncRun{
		sequence:   sequence,
		playlistID: playlistID,
		tracklist:  tracklist,
		status:     RunPending,
		policy:     policy,
		threshold:  threshold,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (r *SyncRun) ID() string              { return r.id }
func (r *SyncRun) Sequence() int           { return r.sequence }
func (r *SyncRun) PlaylistID() string      { return r.playlistID }
func (r *SyncRun) Tracklist() string       { return r.tracklist }
func (r *SyncRun) Status() RunStatus       { return r.status }
func (r *SyncRun) Policy() string          { return r.policy }
func (r *SyncRun) Threshold() float64      { return r.threshold }
func (r *SyncRun) Counts() RunCounts       { return r.counts }
func (r *SyncRun) ErrorMessage() string    { return r.errorMessage }
func (r *SyncRun) StartedAt() *time.Time   { return r.startedAt }
func (r *SyncRun) CompletedAt() *time.Time { return r.completedAt }
func (r *SyncRun) CreatedAt() time.Time    { return r.createdAt }
func (r *SyncRun) UpdatedAt() time.Time    { return r.updatedAt }
func (r *SyncRun) DeletedAt() *time.Time   { return r.deletedAt }

func (r *SyncRun) SetID(id string)             { r.id = id }
func (r *SyncRun) SetSequence(seq int)         { r.sequence = seq }
func (r *SyncRun) SetStatus(s RunStatus)       { r.status = s }
func (r *SyncRun) SetCounts(c RunCounts)       { r.counts = c }
func (r *SyncRun) SetErrorMessage(msg string)  { r.errorMessage = msg }
func (r *SyncRun) SetStartedAt(t *time.Time)   { r.startedAt = t }
func (r *SyncRun) SetCompletedAt(t *time.Time) { r.completedAt = t }
func (r *SyncRun) SetCreatedAt(t time.Time)    { r.createdAt = t }
func (r *SyncRun) SetUpdatedAt(t time.Time)    { r.updatedAt = t }
func (r *SyncRun) SetDeletedAt(t *time.Time)   { r.deletedAt = t }

// Start marks the run as running.
func (r *SyncRun) Start(at time.Time) {
	r.status = RunRunning
	r.startedAt = &at
}

// Finish records the final counts and status.
//
// A non-nil err marks the run failed, unless it was cancelled.
func (r *SyncRun) Finish(at time.Time, counts RunCounts, cancelled bool, err error) {
	r.counts = counts
	r.completedAt = &at
	switch {
	case cancelled:
		r.status = RunCancelled
	case err != nil:
		r.status = RunFailed
	default:
		r.status = RunCompleted
	}
	if err != nil {
		r.errorMessage = err.Error()
	}
}

// Duration returns how long the run took, or zero while it is unfinished.
func (r *SyncRun) Duration() time.Duration {
	if r.startedAt == nil || r.completedAt == nil {
		return 0
	}
	return r.completedAt.Sub(*r.startedAt)
}

// Validate checks required fields and count consistency.
func (r *SyncRun) Validate() error {
	if r.playlistID == "" {
		return errors.New("playlist id is required")
	}
	if !r.status.Valid() {
		return fmt.Errorf("invalid status %q", r.status)
	}
	if r.threshold < 0 || r.threshold > 1 {
		return fmt.Errorf("threshold %v out of range", r.threshold)
	}
	c := r.counts
	if c.Added+c.DownloadFailed+c.SearchFailed+c.AddFailed > c.Total {
		return fmt.Errorf("outcome counts exceed total %d", c.Total)
	}
	return nil
}

// FollowRun records one artist collector invocation.
type FollowRun struct {
	id              string
	sequence        int
	playlistID      string
	tracksScanned   int
	itemsSkipped    int
	artistsFollowed int
	requests        int
	errorMessage    string
	createdAt       time.Time
	updatedAt       time.Time
	deletedAt       *time.Time
}

// NewFollowRun creates a follow run for playlistID.
func NewFollowRun(sequence int, playlistID string) *FollowRun {
	now := time.Now()
	return &FollowRun{sequence: sequence, playlistID: playlistID, createdAt: now, updatedAt: now}
}

func (r *FollowRun) ID() string            { return r.id }
func (r *FollowRun) Sequence() int         { return r.sequence }
func (r *FollowRun) PlaylistID() string    { return r.playlistID }
func (r *FollowRun) TracksScanned() int    { return r.tracksScanned }
func (r *FollowRun) ItemsSkipped() int     { return r.itemsSkipped }
func (r *FollowRun) ArtistsFollowed() int  { return r.artistsFollowed }
func (r *FollowRun) Requests() int         { return r.requests }
func (r *FollowRun) ErrorMessage() string  { return r.errorMessage }
func (r *FollowRun) CreatedAt() time.Time  { return r.createdAt }
func (r *FollowRun) UpdatedAt() time.Time  { return r.updatedAt }
func (r *FollowRun) DeletedAt() *time.Time { return r.deletedAt }

func (r *FollowRun) SetID(id string)           { r.id = id }
func (r *FollowRun) SetSequence(seq int)       { r.sequence = seq }
func (r *FollowRun) SetErrorMessage(m string)  { r.errorMessage = m }
func (r *FollowRun) SetCreatedAt(t time.Time)  { r.createdAt = t }
func (r *FollowRun) SetUpdatedAt(t time.Time)  { r.updatedAt = t }
func (r *FollowRun) SetDeletedAt(t *time.Time) { r.deletedAt = t }

// SetTotals stores what the collector saw and did.
func (r *FollowRun) SetTotals(tracksScanned, itemsSkipped, artistsFollowed, requests int) {
	r.tracksScanned = tracksScanned
	r.itemsSkipped = itemsSkipped
	r.artistsFollowed = artistsFollowed
	r.requests = requests
}

// Validate checks required fields.
func (r *FollowRun) Validate() error {
	if r.playlistID == "" {
		return errors.New("playlist id is required")
	}
	if r.tracksScanned < 0 || r.itemsSkipped < 0 || r.artistsFollowed < 0 || r.requests < 0 {
		return errors.New("counts must not be negative")
	}
	return nil
}
