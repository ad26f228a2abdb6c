package command

import (
	"context"

	"github.com/jvegaf/symphony-engine/internal/catalog"
)

// CreatePlaylist inserts a new, empty playlist.
func (e *Engine) CreatePlaylist(ctx context.Context, name string, description *string) (catalog.Playlist, error) {
	return e.catalog.CreatePlaylist(ctx, name, description)
}

// CreatePlaylistWithTracks creates a playlist seeded with trackIDs in
// one transaction.
func (e *Engine) CreatePlaylistWithTracks(ctx context.Context, name string, description *string, trackIDs []string) (catalog.Playlist, error) {
	return e.catalog.CreatePlaylistWithTracks(ctx, name, description, trackIDs)
}

// GetPlaylists returns every playlist, ordered by name.
func (e *Engine) GetPlaylists(ctx context.Context) ([]catalog.Playlist, error) {
	return e.catalog.ListPlaylists(ctx)
}

// GetPlaylistTracks returns a playlist's members in position order.
func (e *Engine) GetPlaylistTracks(ctx context.Context, playlistID string) ([]catalog.PlaylistTrack, error) {
	return e.catalog.GetPlaylistTracks(ctx, playlistID)
}

// UpdatePlaylist renames a playlist and/or updates its description.
func (e *Engine) UpdatePlaylist(ctx context.Context, id, name string, description *string) error {
	return e.catalog.RenamePlaylist(ctx, id, name, description)
}

// DeletePlaylist removes a playlist without touching its tracks.
func (e *Engine) DeletePlaylist(ctx context.Context, id string) error {
	return e.catalog.DeletePlaylist(ctx, id)
}

// AddTracksToPlaylist appends trackIDs, skipping duplicates.
func (e *Engine) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) (int, error) {
	return e.catalog.AddTracks(ctx, playlistID, trackIDs)
}

// RemoveTrackFromPlaylist removes one membership row and compacts
// positions.
func (e *Engine) RemoveTrackFromPlaylist(ctx context.Context, playlistID, trackID string) error {
	return e.catalog.RemoveTrack(ctx, playlistID, trackID)
}

// ReorderPlaylistTracks rewrites a playlist's track order.
func (e *Engine) ReorderPlaylistTracks(ctx context.Context, playlistID string, orderedTrackIDs []string) error {
	return e.catalog.Reorder(ctx, playlistID, orderedTrackIDs)
}
