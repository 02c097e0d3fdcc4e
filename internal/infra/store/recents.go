package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/satvikx/beats/internal/domain/track"
)

// Recent is a persisted play-history entry with a resume position.
type Recent struct {
	Track        track.Track
	LastPlayedAt time.Time
	Position     time.Duration
}

// TouchRecent upserts the play-history record for a track: the
// timestamp is refreshed and the resume position reset to zero.
func (s *Store) TouchRecent(ctx context.Context, t track.Track, playedAt time.Time) error {
	if t.ID == "" {
		return errors.New("track id is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recents (track_id, title, artist, duration_secs, thumbnail_url, source_url, last_played_at, position_secs)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(track_id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			duration_secs = excluded.duration_secs,
			thumbnail_url = excluded.thumbnail_url,
			source_url = excluded.source_url,
			last_played_at = excluded.last_played_at,
			position_secs = 0`,
		t.ID, t.Title, t.Artist, int(t.Duration.Seconds()), t.ThumbnailURL, t.SourceURL, playedAt.UTC())
	if err != nil {
		return errors.Wrapf(err, "failed to record recent play for track %s", t.ID)
	}

	s.notify(TableRecents)
	return nil
}

// UpdateRecentPosition stores the live playback position for a track
// already present in the history. Unknown tracks are ignored.
func (s *Store) UpdateRecentPosition(ctx context.Context, trackID string, position time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE recents SET position_secs = ? WHERE track_id = ?`,
		position.Seconds(), trackID)
	if err != nil {
		return errors.Wrapf(err, "failed to update position for track %s", trackID)
	}
	return nil
}

// ListRecents returns the play history, most recent first.
func (s *Store) ListRecents(ctx context.Context, limit int) ([]Recent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT track_id, title, artist, duration_secs, thumbnail_url, source_url, last_played_at, position_secs
		FROM recents ORDER BY last_played_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list recents")
	}
	defer rows.Close()

	var recents []Recent
	for rows.Next() {
		var (
			r       Recent
			durSecs int
			posSecs float64
		)
		if err := rows.Scan(&r.Track.ID, &r.Track.Title, &r.Track.Artist, &durSecs, &r.Track.ThumbnailURL,
			&r.Track.SourceURL, &r.LastPlayedAt, &posSecs); err != nil {
			return nil, errors.Wrap(err, "failed to scan recent row")
		}
		r.Track.Duration = time.Duration(durSecs) * time.Second
		r.Position = time.Duration(posSecs * float64(time.Second))
		recents = append(recents, r)
	}
	return recents, rows.Err()
}

// ClearRecents wipes the play history.
func (s *Store) ClearRecents(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recents`); err != nil {
		return errors.Wrap(err, "failed to clear recents")
	}

	s.notify(TableRecents)
	return nil
}
