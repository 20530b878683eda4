package tasks

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/desertthunder/adder/internal/models"
	"github.com/desertthunder/adder/internal/services"
)

// CredentialSource supplies a bearer credential for each catalog call.
//
// Obtaining and refreshing tokens is the source's concern. Tasks never store a credential between calls.
type CredentialSource interface {
	Credential(ctx context.Context) (services.Credential, error)
}

// OutcomeKind classifies how one tracklist entry was resolved.
type OutcomeKind int

const (
	AddedToPlaylist OutcomeKind = iota
	DownloadedLocally
	DownloadFailed
	SearchFailed
	AddFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case AddedToPlaylist:
		return "added"
	case DownloadedLocally:
		return "downloaded"
	case DownloadFailed:
		return "download_failed"
	case SearchFailed:
		return "search_failed"
	case AddFailed:
		return "add_failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Outcome is the result of resolving one tracklist entry.
type Outcome struct {
	Name      string                 // Name is the tracklist entry as given
	Kind      OutcomeKind            // Kind is how the entry ended
	URI       string                 // URI of the added track, set for AddedToPlaylist
	Snapshot  string                 // Snapshot id returned by the playlist write
	Candidate *models.CandidateTrack // Candidate is the best match, whether or not it cleared the threshold
	Score     float64                // Score of Candidate
	Path      string                 // Path of the downloaded audio file, if any
	Archived  bool                   // Archived is set when a matched track was also downloaded
	Err       error                  // Err explains failure kinds, and archive failures on added tracks
}

// Failed reports whether the entry ended without the track being added or downloaded.
func (o Outcome) Failed() bool {
	switch o.Kind {
	case DownloadFailed, SearchFailed, AddFailed:
		return true
	}
	return false
}

// ErrorMessage returns the error text or an empty string.
func (o Outcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// MarshalJSON flattens the error to a string.
func (o Outcome) MarshalJSON() ([]byte, error) {
	type alias struct {
		Name      string                 `json:"name"`
		Kind      OutcomeKind            `json:"outcome"`
		URI       string                 `json:"uri,omitempty"`
		Snapshot  string                 `json:"snapshot_id,omitempty"`
		Candidate *models.CandidateTrack `json:"candidate,omitempty"`
		Score     float64                `json:"score"`
		Path      string                 `json:"path,omitempty"`
		Archived  bool                   `json:"archived,omitempty"`
		Error     string                 `json:"error,omitempty"`
	}
	return json.Marshal(alias{
		Name:      o.Name,
		Kind:      o.Kind,
		URI:       o.URI,
		Snapshot:  o.Snapshot,
		Candidate: o.Candidate,
		Score:     o.Score,
		Path:      o.Path,
		Archived:  o.Archived,
		Error:     o.ErrorMessage(),
	})
}

// isCancellation reports whether err came from a cancelled or expired context.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
