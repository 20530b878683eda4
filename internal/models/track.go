package models

import (
	"strings"
)

// CandidateTrack is one catalog search result.
//
// Popularity is carried through from the catalog but plays no part in matching.
type CandidateTrack struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ArtistNames []string `json:"artist_names"`
	ArtistIDs   []string `json:"artist_ids,omitempty"`
	URI         string   `json:"uri"`
	Popularity  int      `json:"popularity"`
}

// Composite returns the text the matcher compares against a query: the track name followed by every artist name.
func (c CandidateTrack) Composite() string {
	if len(c.ArtistNames) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.ArtistNames, " ")
}

// Artists joins the artist names for display.
func (c CandidateTrack) Artists() string {
	return strings.Join(c.ArtistNames, ", ")
}

// PlaylistEntry is one item of a playlist.
//
// Episodes and local files come back with IsTrack false or without artist ids.
type PlaylistEntry struct {
	TrackID   string
	Name      string
	ArtistIDs []string
	IsTrack   bool
}

// PlaylistPage is one page of playlist items with the catalog's reported total.
type PlaylistPage struct {
	Entries []PlaylistEntry
	Total   int
	Offset  int
	Limit   int
}
