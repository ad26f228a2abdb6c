package catalog_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jvegaf/symphony-engine/internal/catalog"
	"github.com/jvegaf/symphony-engine/internal/engineerr"
	"github.com/jvegaf/symphony-engine/internal/store"
)

func openTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return catalog.New(s)
}

func mustInsertTrack(t *testing.T, c *catalog.Catalog, path string) catalog.Track {
	t.Helper()
	tr, err := c.InsertTrack(context.Background(), catalog.Track{
		Path: path, Title: "Title", Artist: "Artist", DurationSecs: 180,
		ContentFingerprint: "fp-" + path,
	})
	require.NoError(t, err)
	return tr
}

func TestInsertTrackRejectsDuplicatePath(t *testing.T) {
	c := openTestCatalog(t)
	mustInsertTrack(t, c, "/music/a.mp3")

	_, err := c.InsertTrack(context.Background(), catalog.Track{
		Path: "/music/a.mp3", Title: "Other", DurationSecs: 10, ContentFingerprint: "fp-other",
	})
	require.Error(t, err)
	require.Equal(t, engineerr.KindConflict, engineerr.KindOf(err))
}

func TestInsertTrackRejectsInvalidRating(t *testing.T) {
	c := openTestCatalog(t)
	_, err := c.InsertTrack(context.Background(), catalog.Track{
		Path: "/music/a.mp3", DurationSecs: 10, ContentFingerprint: "fp", Rating: 6,
	})
	require.Error(t, err)
	require.Equal(t, engineerr.KindValidation, engineerr.KindOf(err))
}

func TestUpdateMetadataBumpsDateModifiedAndPreservesUnsetFields(t *testing.T) {
	c := openTestCatalog(t)
	tr := mustInsertTrack(t, c, "/music/a.mp3")

	newTitle := "New Title"
	err := c.UpdateMetadata(context.Background(), tr.ID, catalog.TrackPatch{Title: &newTitle})
	require.NoError(t, err)

	got, err := c.GetTrack(context.Background(), tr.ID)
	require.NoError(t, err)
	require.Equal(t, newTitle, got.Title)
	require.Equal(t, tr.Artist, got.Artist)
	require.GreaterOrEqual(t, got.DateModified, tr.DateModified)
}

func TestUpdateMetadataRejectsRatingOutOfBounds(t *testing.T) {
	c := openTestCatalog(t)
	tr := mustInsertTrack(t, c, "/music/a.mp3")

	bad := -1
	err := c.UpdateMetadata(context.Background(), tr.ID, catalog.TrackPatch{Rating: &bad})
	require.Error(t, err)
	require.Equal(t, engineerr.KindValidation, engineerr.KindOf(err))
}

func TestDeleteTrackIsIdempotent(t *testing.T) {
	c := openTestCatalog(t)
	require.NoError(t, c.DeleteTrack(context.Background(), "missing-id"))

	tr := mustInsertTrack(t, c, "/music/a.mp3")
	require.NoError(t, c.DeleteTrack(context.Background(), tr.ID))
	require.NoError(t, c.DeleteTrack(context.Background(), tr.ID))

	_, err := c.GetTrack(context.Background(), tr.ID)
	require.Equal(t, engineerr.KindNotFound, engineerr.KindOf(err))
}

func TestListTracksStableTieBreak(t *testing.T) {
	c := openTestCatalog(t)
	mustInsertTrack(t, c, "/music/b.mp3")
	mustInsertTrack(t, c, "/music/a.mp3")

	tracks, err := c.ListTracks(context.Background(), catalog.TrackFilter{}, catalog.SortTitle)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	require.Equal(t, "/music/a.mp3", tracks[0].Path)
	require.Equal(t, "/music/b.mp3", tracks[1].Path)
}

func TestAddTracksDedupsAndAppendsAtMaxPositionPlusOne(t *testing.T) {
	c := openTestCatalog(t)
	t1 := mustInsertTrack(t, c, "/music/a.mp3")
	t2 := mustInsertTrack(t, c, "/music/b.mp3")

	p, err := c.CreatePlaylist(context.Background(), "Set 1", nil)
	require.NoError(t, err)

	n, err := c.AddTracks(context.Background(), p.ID, []string{t1.ID, t1.ID, t2.ID})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	members, err := c.GetPlaylistTracks(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, 1, members[0].Position)
	require.Equal(t, 2, members[1].Position)

	// Re-adding an existing member inserts nothing new.
	n, err = c.AddTracks(context.Background(), p.ID, []string{t1.ID})
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestRemoveTrackCompactsPositions(t *testing.T) {
	c := openTestCatalog(t)
	t1 := mustInsertTrack(t, c, "/music/a.mp3")
	t2 := mustInsertTrack(t, c, "/music/b.mp3")
	t3 := mustInsertTrack(t, c, "/music/c.mp3")

	p, err := c.CreatePlaylist(context.Background(), "Set 1", nil)
	require.NoError(t, err)
	_, err = c.AddTracks(context.Background(), p.ID, []string{t1.ID, t2.ID, t3.ID})
	require.NoError(t, err)

	require.NoError(t, c.RemoveTrack(context.Background(), p.ID, t1.ID))

	members, err := c.GetPlaylistTracks(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, t2.ID, members[0].ID)
	require.Equal(t, 1, members[0].Position)
	require.Equal(t, t3.ID, members[1].ID)
	require.Equal(t, 2, members[1].Position)
}

func TestReorderRejectsNonMatchingSet(t *testing.T) {
	c := openTestCatalog(t)
	t1 := mustInsertTrack(t, c, "/music/a.mp3")
	t2 := mustInsertTrack(t, c, "/music/b.mp3")

	p, err := c.CreatePlaylist(context.Background(), "Set 1", nil)
	require.NoError(t, err)
	_, err = c.AddTracks(context.Background(), p.ID, []string{t1.ID, t2.ID})
	require.NoError(t, err)

	err = c.Reorder(context.Background(), p.ID, []string{t1.ID})
	require.Error(t, err)
	require.Equal(t, engineerr.KindConflict, engineerr.KindOf(err))

	err = c.Reorder(context.Background(), p.ID, []string{t2.ID, t1.ID})
	require.NoError(t, err)

	members, err := c.GetPlaylistTracks(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, t2.ID, members[0].ID)
	require.Equal(t, t1.ID, members[1].ID)
}

func TestCreatePlaylistWithTracksIsAtomic(t *testing.T) {
	c := openTestCatalog(t)
	t1 := mustInsertTrack(t, c, "/music/a.mp3")

	p, err := c.CreatePlaylistWithTracks(context.Background(), "Set 1", nil, []string{t1.ID, "missing-track"})
	require.Error(t, err)
	require.Equal(t, engineerr.KindNotFound, engineerr.KindOf(err))

	playlists, err := c.ListPlaylists(context.Background())
	require.NoError(t, err)
	require.Empty(t, playlists)
	_ = p
}

func TestDeletePlaylistDoesNotDeleteTracks(t *testing.T) {
	c := openTestCatalog(t)
	t1 := mustInsertTrack(t, c, "/music/a.mp3")
	p, err := c.CreatePlaylist(context.Background(), "Set 1", nil)
	require.NoError(t, err)
	_, err = c.AddTracks(context.Background(), p.ID, []string{t1.ID})
	require.NoError(t, err)

	require.NoError(t, c.DeletePlaylist(context.Background(), p.ID))

	got, err := c.GetTrack(context.Background(), t1.ID)
	require.NoError(t, err)
	require.Equal(t, t1.ID, got.ID)
}

func TestResetAllReportsCounts(t *testing.T) {
	c := openTestCatalog(t)
	mustInsertTrack(t, c, "/music/a.mp3")
	mustInsertTrack(t, c, "/music/b.mp3")
	_, err := c.CreatePlaylist(context.Background(), "Set 1", nil)
	require.NoError(t, err)

	res, err := c.ResetAll(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, res.TracksDeleted)
	require.EqualValues(t, 1, res.PlaylistsDeleted)
	require.EqualValues(t, 0, res.WaveformsDeleted)

	tracks, err := c.ListTracks(context.Background(), catalog.TrackFilter{}, catalog.SortTitle)
	require.NoError(t, err)
	require.Empty(t, tracks)
}
