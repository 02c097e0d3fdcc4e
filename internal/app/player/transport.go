package player

import (
	"context"
	"time"

	"github.com/satvikx/beats/internal/domain/track"
)

// TransportEventType represents a media transport lifecycle signal.
type TransportEventType int

const (
	TransportTimeUpdate TransportEventType = iota // Periodic position report
	TransportMetadata                             // Duration became known
	TransportPlaying                              // Playback started or resumed
	TransportPaused                               // Playback paused
	TransportWaiting                              // Buffering, playback stalled
	TransportEnded                                // End of track reached
)

// String returns the string representation of the transport event type.
func (t TransportEventType) String() string {
	switch t {
	case TransportTimeUpdate:
		return "time_update"
	case TransportMetadata:
		return "metadata"
	case TransportPlaying:
		return "playing"
	case TransportPaused:
		return "paused"
	case TransportWaiting:
		return "waiting"
	case TransportEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// TransportEvent is a signal emitted by the media transport.
type TransportEvent struct {
	Type     TransportEventType
	Position time.Duration // Valid for TimeUpdate
	Duration time.Duration // Valid for TimeUpdate and Metadata
}

// Transport is the single native audio-rendering primitive the
// controller drives. Implementations wrap whatever media engine the
// platform provides; the controller is the only writer.
type Transport interface {
	// SetSource assigns a playable URL (remote stream or file://).
	SetSource(url string) error
	// ClearSource detaches the current source so no audio from a
	// previous track can continue while a new one resolves.
	ClearSource()

	Play() error
	Pause() error
	Seek(position time.Duration) error
	SetVolume(volume float64) error

	Position() time.Duration
	Duration() time.Duration

	// Events returns the transport's lifecycle signal channel. The
	// channel is closed when the transport shuts down.
	Events() <-chan TransportEvent

	Close() error
}

// StreamResolver obtains a directly playable URL for a track's
// canonical source URL. Resolution must honour context cancellation.
type StreamResolver interface {
	ResolveStream(ctx context.Context, sourceURL string) (string, error)
	// Preload warms the resolver's cache in the background.
	Preload(sourceURL string)
}

// DownloadRecord is a locally stored copy of a track.
type DownloadRecord struct {
	TrackID  string
	Payload  []byte
	MimeType string
}

// Store is the subset of the persistent store the controller touches.
// Recent writes are best effort; implementations must tolerate
// concurrent record-level access.
type Store interface {
	// GetDownload returns the stored download for a track, or nil if
	// the track has not been downloaded.
	GetDownload(ctx context.Context, trackID string) (*DownloadRecord, error)
	// TouchRecent upserts the recent-play record: refreshed timestamp,
	// position reset to zero.
	TouchRecent(ctx context.Context, t track.Track, playedAt time.Time) error
	// UpdateRecentPosition stores the live playback position for the
	// recent-play record of the given track.
	UpdateRecentPosition(ctx context.Context, trackID string, position time.Duration) error
}
