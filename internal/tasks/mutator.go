package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/adder/internal/services"
	"github.com/desertthunder/adder/internal/shared"
)

// Mutator appends single tracks to a playlist.
//
// Each call is one catalog write. Nothing is retried, and adding the same uri twice appends it twice: the catalog
// has no idempotent append and no playlist contents are read back for comparison.
type Mutator struct {
	catalog services.Catalog
	creds   CredentialSource
	logger  *log.Logger
}

// NewMutator creates a [Mutator].
func NewMutator(catalog services.Catalog, creds CredentialSource, logger *log.Logger) *Mutator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Mutator{catalog: catalog, creds: creds, logger: logger}
}

// AddTrack appends uri to playlistID and returns the playlist's new snapshot id.
//
// All failures wrap [shared.ErrMutationFailed] alongside the underlying cause.
func (m *Mutator) AddTrack(ctx context.Context, playlistID, uri string) (string, error) {
	if _, err := services.TrackIDFromURI(uri); err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrMutationFailed, err)
	}
	if playlistID == "" {
		return "", fmt.Errorf("%w: %w: playlist id", shared.ErrMutationFailed, shared.ErrMissingArgument)
	}

	cred, err := m.creds.Credential(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrMutationFailed, err)
	}

	snapshot, err := m.catalog.AddTracks(ctx, cred, playlistID, uri)
	if err != nil {
		m.logger.Warn("playlist write rejected", "playlist", playlistID, "uri", uri, "error", err)
		return "", fmt.Errorf("%w: %w", shared.ErrMutationFailed, err)
	}

	m.logger.Debug("added track", "playlist", playlistID, "uri", uri, "snapshot", snapshot)
	return snapshot, nil
}
