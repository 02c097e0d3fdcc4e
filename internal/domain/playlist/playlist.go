// Package playlist provides the user playlist entity.
package playlist

import (
	"time"

	"github.com/google/uuid"

	"github.com/satvikx/beats/internal/domain/track"
)

// PlaylistTrack is a track inside a playlist, annotated with the time
// it was added.
type PlaylistTrack struct {
	track.Track
	AddedAt time.Time
}

// Playlist represents a user-created, ordered track list persisted in
// the local store. Mutations happen through the store; the player only
// reads playlists to seed a listening context.
type Playlist struct {
	ID        uuid.UUID // Assigned on creation
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Tracks    []PlaylistTrack
}

// TrackIDs returns all track IDs in playlist order.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// TrackList returns the plain tracks, dropping the AddedAt annotation.
// This is the Original Queue handed to the player when a playlist is
// played.
func (p *Playlist) TrackList() []track.Track {
	tracks := make([]track.Track, len(p.Tracks))
	for i, t := range p.Tracks {
		tracks[i] = t.Track
	}
	return tracks
}

// Contains reports whether the playlist already holds the given track.
func (p *Playlist) Contains(trackID string) bool {
	for _, t := range p.Tracks {
		if t.ID == trackID {
			return true
		}
	}
	return false
}

// TotalDuration returns the total duration of all tracks in seconds.
func (p *Playlist) TotalDuration() int64 {
	var total int64
	for _, t := range p.Tracks {
		total += int64(t.Duration.Seconds())
	}
	return total
}
