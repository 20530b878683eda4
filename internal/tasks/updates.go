package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ResolveTrack Phase = iota
	AddTrack
	DownloadTrack
	TrackDone
	FetchItems
	FollowArtists
	RunDone
)

func (p Phase) String() string {
	switch p {
	case ResolveTrack:
		return "resolve_track"
	case AddTrack:
		return "add_track"
	case DownloadTrack:
		return "download_track"
	case TrackDone:
		return "track_done"
	case FetchItems:
		return "fetch_items"
	case FollowArtists:
		return "follow_artists"
	case RunDone:
		return "run_done"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func resolveTrackUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTrack,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Searching: %s", step, total, name),
	}
}

func addTrackUpdate(step, total int, name, uri string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTrack,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Adding %s (%s)", step, total, name, uri),
	}
}

func downloadTrackUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadTrack,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Downloading: %s", step, total, name),
	}
}

func trackDoneUpdate(step, total int, o Outcome) ProgressUpdate {
	mark := "✓"
	if o.Failed() {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   TrackDone,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s: %s", step, total, mark, o.Name, o.Kind),
		Data:    o,
	}
}

func runDoneUpdate(res *RunResult) ProgressUpdate {
	total := len(res.Outcomes)
	return ProgressUpdate{
		Phase:   RunDone,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Finished: %d added, %d downloaded, %d failed", res.Counts.Added, res.Counts.Downloaded, res.Failures()),
		Data:    res,
	}
}

func fetchItemsUpdate(page, fetched, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchItems,
		Step:    fetched,
		Total:   total,
		Message: fmt.Sprintf("Fetched page %d (%d/%d items)", page, fetched, total),
	}
}

func followArtistsUpdate(step, total, followed, artists int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FollowArtists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Following artists (%d/%d)", step, total, followed, artists),
	}
}
