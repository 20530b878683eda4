// Package models defines domain entities and persistence interfaces for adder.
//
// The package contains two categories of types:
//
// 1. Catalog values: immutable data returned by the music catalog
//   - [CandidateTrack] : one search result considered by the matcher
//   - [PlaylistEntry] : one playlist item as seen by the artist collector
//
// 2. Persistent Entities: run summaries stored in SQLite
//   - [SyncRun] : one tracklist pipeline run and its outcome counts
//   - [FollowRun] : one artist collector invocation
//
// Resolved tracks are never persisted. Only run-level summaries are stored so the history command can list them.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
