// Package repositories implements SQLite persistence for run history.
//
// Only run-level summaries are stored: a [SyncRunRepository] row per tracklist pipeline run and a
// [FollowRunRepository] row per artist collector invocation. Resolved tracks and tokens are never written here.
//
// Rows are soft deleted via deleted_at and excluded from queries afterwards.
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation
// timestamps. The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence
// tables.
package repositories
