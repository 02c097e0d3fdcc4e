package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/satvikx/beats/internal/domain/track"
)

// Download is a persisted offline copy of a track.
type Download struct {
	Track        track.Track
	MimeType     string
	SizeBytes    int64
	Payload      []byte
	DownloadedAt time.Time
}

// PutDownload stores (or replaces) the offline copy of a track.
func (s *Store) PutDownload(ctx context.Context, t track.Track, payload []byte, mimeType string) error {
	if t.ID == "" {
		return errors.New("track id is required")
	}
	if len(payload) == 0 {
		return errors.New("payload is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO downloads (track_id, title, artist, duration_secs, thumbnail_url, source_url, mime_type, size_bytes, payload, downloaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_id) DO UPDATE SET
			mime_type = excluded.mime_type,
			size_bytes = excluded.size_bytes,
			payload = excluded.payload,
			downloaded_at = excluded.downloaded_at`,
		t.ID, t.Title, t.Artist, int(t.Duration.Seconds()), t.ThumbnailURL, t.SourceURL,
		mimeType, int64(len(payload)), payload, time.Now().UTC())
	if err != nil {
		return errors.Wrapf(err, "failed to store download for track %s", t.ID)
	}

	s.notify(TableDownloads)
	return nil
}

// GetDownload fetches the offline copy of a track, payload included.
// Returns (nil, nil) when the track has not been downloaded.
func (s *Store) GetDownload(ctx context.Context, trackID string) (*Download, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT track_id, title, artist, duration_secs, thumbnail_url, source_url, mime_type, size_bytes, payload, downloaded_at
		FROM downloads WHERE track_id = ?`, trackID)

	var (
		d       Download
		durSecs int
	)
	err := row.Scan(&d.Track.ID, &d.Track.Title, &d.Track.Artist, &durSecs, &d.Track.ThumbnailURL,
		&d.Track.SourceURL, &d.MimeType, &d.SizeBytes, &d.Payload, &d.DownloadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load download for track %s", trackID)
	}
	d.Track.Duration = time.Duration(durSecs) * time.Second
	return &d, nil
}

// ListDownloads returns metadata for all downloaded tracks, newest
// first, without loading the payloads.
func (s *Store) ListDownloads(ctx context.Context) ([]Download, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT track_id, title, artist, duration_secs, thumbnail_url, source_url, mime_type, size_bytes, downloaded_at
		FROM downloads ORDER BY downloaded_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list downloads")
	}
	defer rows.Close()

	var downloads []Download
	for rows.Next() {
		var (
			d       Download
			durSecs int
		)
		if err := rows.Scan(&d.Track.ID, &d.Track.Title, &d.Track.Artist, &durSecs, &d.Track.ThumbnailURL,
			&d.Track.SourceURL, &d.MimeType, &d.SizeBytes, &d.DownloadedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan download row")
		}
		d.Track.Duration = time.Duration(durSecs) * time.Second
		downloads = append(downloads, d)
	}
	return downloads, rows.Err()
}

// DeleteDownload removes a track's offline copy. Deleting a missing
// record is not an error.
func (s *Store) DeleteDownload(ctx context.Context, trackID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM downloads WHERE track_id = ?`, trackID)
	if err != nil {
		return errors.Wrapf(err, "failed to delete download for track %s", trackID)
	}

	s.notify(TableDownloads)
	return nil
}
