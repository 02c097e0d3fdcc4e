package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satvikx/beats/internal/domain/track"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testTrack(id string) track.Track {
	return track.Track{
		ID:           id,
		Title:        "Track " + id,
		Artist:       "Artist " + id,
		Duration:     3 * time.Minute,
		ThumbnailURL: "https://img.example/" + id + ".jpg",
		SourceURL:    "https://source.example/" + id,
	}
}

func TestOpenCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "share", "beats", "beats.db")

	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.TouchRecent(context.Background(), testTrack("t1"), time.Now()))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestDownloadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	payload := []byte("fake audio bytes")

	require.NoError(t, s.PutDownload(ctx, testTrack("t1"), payload, "audio/mpeg"))

	d, err := s.GetDownload(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "Track t1", d.Track.Title)
	assert.Equal(t, 3*time.Minute, d.Track.Duration)
	assert.Equal(t, payload, d.Payload)
	assert.Equal(t, "audio/mpeg", d.MimeType)
	assert.Equal(t, int64(len(payload)), d.SizeBytes)
}

func TestGetDownloadMissing(t *testing.T) {
	s := newTestStore(t)

	d, err := s.GetDownload(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, d)
}

func TestPutDownloadReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutDownload(ctx, testTrack("t1"), []byte("v1"), "audio/mpeg"))
	require.NoError(t, s.PutDownload(ctx, testTrack("t1"), []byte("v2-longer"), "audio/mp4"))

	d, err := s.GetDownload(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2-longer"), d.Payload)
	assert.Equal(t, "audio/mp4", d.MimeType)

	list, err := s.ListDownloads(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListDownloadsOmitsPayload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutDownload(ctx, testTrack("t1"), []byte("bytes"), "audio/mpeg"))

	list, err := s.ListDownloads(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Payload)
	assert.Equal(t, int64(5), list[0].SizeBytes)
}

func TestDeleteDownload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutDownload(ctx, testTrack("t1"), []byte("bytes"), "audio/mpeg"))
	require.NoError(t, s.DeleteDownload(ctx, "t1"))

	d, err := s.GetDownload(ctx, "t1")
	assert.NoError(t, err)
	assert.Nil(t, d)

	// Deleting again stays quiet.
	assert.NoError(t, s.DeleteDownload(ctx, "t1"))
}

func TestTouchRecentResetsPosition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.TouchRecent(ctx, testTrack("t1"), time.Now()))
	require.NoError(t, s.UpdateRecentPosition(ctx, "t1", 42*time.Second))

	recents, err := s.ListRecents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recents, 1)
	assert.Equal(t, 42*time.Second, recents[0].Position)

	// Playing the track again resets the resume position.
	require.NoError(t, s.TouchRecent(ctx, testTrack("t1"), time.Now()))
	recents, err = s.ListRecents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recents, 1)
	assert.Zero(t, recents[0].Position)
}

func TestListRecentsOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	require.NoError(t, s.TouchRecent(ctx, testTrack("t1"), base))
	require.NoError(t, s.TouchRecent(ctx, testTrack("t2"), base.Add(time.Minute)))
	require.NoError(t, s.TouchRecent(ctx, testTrack("t3"), base.Add(2*time.Minute)))

	recents, err := s.ListRecents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recents, 2)
	assert.Equal(t, "t3", recents[0].Track.ID)
	assert.Equal(t, "t2", recents[1].Track.ID)
}

func TestUpdateRecentPositionUnknownTrack(t *testing.T) {
	s := newTestStore(t)

	assert.NoError(t, s.UpdateRecentPosition(context.Background(), "ghost", time.Second))
}

func TestClearRecents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.TouchRecent(ctx, testTrack("t1"), time.Now()))
	require.NoError(t, s.ClearRecents(ctx))

	recents, err := s.ListRecents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recents)
}

func TestPlaylistLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.CreatePlaylist(ctx, "Morning Mix")
	require.NoError(t, err)

	require.NoError(t, s.AddPlaylistTrack(ctx, p.ID, testTrack("t1")))
	require.NoError(t, s.AddPlaylistTrack(ctx, p.ID, testTrack("t2")))
	// Duplicate adds are ignored.
	require.NoError(t, s.AddPlaylistTrack(ctx, p.ID, testTrack("t1")))

	got, err := s.GetPlaylist(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Morning Mix", got.Name)
	assert.Equal(t, []string{"t1", "t2"}, got.TrackIDs())

	require.NoError(t, s.RenamePlaylist(ctx, p.ID, "Evening Mix"))
	got, err = s.GetPlaylist(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Evening Mix", got.Name)

	require.NoError(t, s.RemovePlaylistTrack(ctx, p.ID, "t1"))
	got, err = s.GetPlaylist(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, got.TrackIDs())

	require.NoError(t, s.DeletePlaylist(ctx, p.ID))
	_, err = s.GetPlaylist(ctx, p.ID)
	assert.ErrorIs(t, err, ErrPlaylistNotFound)
}

func TestPlaylistNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ghost := uuid.New()

	_, err := s.GetPlaylist(ctx, ghost)
	assert.ErrorIs(t, err, ErrPlaylistNotFound)
	assert.ErrorIs(t, s.RenamePlaylist(ctx, ghost, "x"), ErrPlaylistNotFound)
	assert.ErrorIs(t, s.DeletePlaylist(ctx, ghost), ErrPlaylistNotFound)
	assert.ErrorIs(t, s.AddPlaylistTrack(ctx, ghost, testTrack("t1")), ErrPlaylistNotFound)
}

func TestListPlaylists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p1, err := s.CreatePlaylist(ctx, "First")
	require.NoError(t, err)
	require.NoError(t, s.AddPlaylistTrack(ctx, p1.ID, testTrack("t1")))
	_, err = s.CreatePlaylist(ctx, "Second")
	require.NoError(t, err)

	playlists, err := s.ListPlaylists(ctx)
	require.NoError(t, err)
	require.Len(t, playlists, 2)
	for _, p := range playlists {
		if p.ID == p1.ID {
			assert.Len(t, p.Tracks, 1)
		}
	}
}

func TestSubscribeNotifies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var changes []Change
	id := s.Subscribe(func(c Change) { changes = append(changes, c) })

	require.NoError(t, s.TouchRecent(ctx, testTrack("t1"), time.Now()))
	require.NoError(t, s.PutDownload(ctx, testTrack("t1"), []byte("b"), "audio/mpeg"))

	require.Len(t, changes, 2)
	assert.Equal(t, TableRecents, changes[0].Table)
	assert.Equal(t, TableDownloads, changes[1].Table)

	s.Unsubscribe(id)
	require.NoError(t, s.ClearRecents(ctx))
	assert.Len(t, changes, 2)
}
