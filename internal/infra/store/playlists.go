package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/satvikx/beats/internal/domain/playlist"
	"github.com/satvikx/beats/internal/domain/track"
)

// ErrPlaylistNotFound is returned for operations on unknown playlist ids.
var ErrPlaylistNotFound = errors.New("playlist not found")

// CreatePlaylist creates an empty named playlist.
func (s *Store) CreatePlaylist(ctx context.Context, name string) (*playlist.Playlist, error) {
	if name == "" {
		return nil, errors.New("playlist name is required")
	}

	p := &playlist.Playlist{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	p.UpdatedAt = p.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO playlists (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		p.ID.String(), p.Name, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create playlist %q", name)
	}

	s.notify(TablePlaylists)
	return p, nil
}

// GetPlaylist loads a playlist with its tracks in order.
func (s *Store) GetPlaylist(ctx context.Context, id uuid.UUID) (*playlist.Playlist, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at FROM playlists WHERE id = ?`, id.String())

	var (
		p     playlist.Playlist
		rawID string
	)
	err := row.Scan(&rawID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlaylistNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load playlist %s", id)
	}
	p.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, errors.Wrapf(err, "corrupt playlist id %q", rawID)
	}

	p.Tracks, err = s.playlistTracks(ctx, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPlaylists returns all playlists with their tracks, newest first.
func (s *Store) ListPlaylists(ctx context.Context) ([]playlist.Playlist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at, updated_at FROM playlists ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list playlists")
	}
	defer rows.Close()

	var playlists []playlist.Playlist
	for rows.Next() {
		var (
			p     playlist.Playlist
			rawID string
		)
		if err := rows.Scan(&rawID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan playlist row")
		}
		if p.ID, err = uuid.Parse(rawID); err != nil {
			return nil, errors.Wrapf(err, "corrupt playlist id %q", rawID)
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range playlists {
		if playlists[i].Tracks, err = s.playlistTracks(ctx, playlists[i].ID); err != nil {
			return nil, err
		}
	}
	return playlists, nil
}

// RenamePlaylist changes a playlist's name.
func (s *Store) RenamePlaylist(ctx context.Context, id uuid.UUID, name string) error {
	if name == "" {
		return errors.New("playlist name is required")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE playlists SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC(), id.String())
	if err != nil {
		return errors.Wrapf(err, "failed to rename playlist %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPlaylistNotFound
	}

	s.notify(TablePlaylists)
	return nil
}

// DeletePlaylist removes a playlist and its tracks.
func (s *Store) DeletePlaylist(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM playlists WHERE id = ?`, id.String())
	if err != nil {
		return errors.Wrapf(err, "failed to delete playlist %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPlaylistNotFound
	}

	s.notify(TablePlaylists)
	return nil
}

// AddPlaylistTrack appends a track to a playlist. Adding a track that
// is already present refreshes nothing and returns nil.
func (s *Store) AddPlaylistTrack(ctx context.Context, id uuid.UUID, t track.Track) error {
	if t.ID == "" {
		return errors.New("track id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM playlists WHERE id = ?`, id.String()).Scan(&exists)
	if err != nil {
		return errors.Wrapf(err, "failed to check playlist %s", id)
	}
	if exists == 0 {
		return ErrPlaylistNotFound
	}

	var dup int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?`,
		id.String(), t.ID).Scan(&dup)
	if err != nil {
		return errors.Wrap(err, "failed to check for duplicate track")
	}
	if dup > 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO playlist_tracks (playlist_id, track_id, title, artist, duration_secs, thumbnail_url, source_url, added_at, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM playlist_tracks WHERE playlist_id = ?))`,
		id.String(), t.ID, t.Title, t.Artist, int(t.Duration.Seconds()), t.ThumbnailURL, t.SourceURL,
		time.Now().UTC(), id.String())
	if err != nil {
		return errors.Wrapf(err, "failed to add track %s to playlist %s", t.ID, id)
	}

	_, err = tx.ExecContext(ctx, `UPDATE playlists SET updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id.String())
	if err != nil {
		return errors.Wrapf(err, "failed to touch playlist %s", id)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit")
	}

	s.notify(TablePlaylists)
	return nil
}

// RemovePlaylistTrack removes a track from a playlist.
func (s *Store) RemovePlaylistTrack(ctx context.Context, id uuid.UUID, trackID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?`,
		id.String(), trackID)
	if err != nil {
		return errors.Wrapf(err, "failed to remove track %s from playlist %s", trackID, id)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		_, err = s.db.ExecContext(ctx, `UPDATE playlists SET updated_at = ? WHERE id = ?`,
			time.Now().UTC(), id.String())
		if err != nil {
			return errors.Wrapf(err, "failed to touch playlist %s", id)
		}
		s.notify(TablePlaylists)
	}
	return nil
}

func (s *Store) playlistTracks(ctx context.Context, id uuid.UUID) ([]playlist.PlaylistTrack, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT track_id, title, artist, duration_secs, thumbnail_url, source_url, added_at
		FROM playlist_tracks WHERE playlist_id = ? ORDER BY position`, id.String())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load tracks for playlist %s", id)
	}
	defer rows.Close()

	var tracks []playlist.PlaylistTrack
	for rows.Next() {
		var (
			pt      playlist.PlaylistTrack
			durSecs int
		)
		if err := rows.Scan(&pt.ID, &pt.Title, &pt.Artist, &durSecs, &pt.ThumbnailURL,
			&pt.SourceURL, &pt.AddedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan playlist track row")
		}
		pt.Duration = time.Duration(durSecs) * time.Second
		tracks = append(tracks, pt)
	}
	return tracks, rows.Err()
}
