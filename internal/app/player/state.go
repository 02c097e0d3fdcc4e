// Package player provides the playback controller: queue and context
// resolution, the track-load pipeline, and the transport event bridge.
package player

import (
	"time"

	"github.com/satvikx/beats/internal/domain/track"
)

// LoopMode represents the repeat behaviour at track end.
type LoopMode int

const (
	LoopOff    LoopMode = iota // Playback stops at the end of the queue
	LoopQueue                  // Wrap to the start of the original queue
	LoopSingle                 // Restart the same track on track end
)

// String returns the string representation of the loop mode.
func (m LoopMode) String() string {
	switch m {
	case LoopOff:
		return "off"
	case LoopQueue:
		return "queue"
	case LoopSingle:
		return "single"
	default:
		return "unknown"
	}
}

// next cycles off -> queue -> single -> off.
func (m LoopMode) next() LoopMode {
	switch m {
	case LoopOff:
		return LoopQueue
	case LoopQueue:
		return LoopSingle
	default:
		return LoopOff
	}
}

// SourceType tags the listening context a queue was started from.
type SourceType int

const (
	SourceUnknown SourceType = iota
	SourcePlaylist
	SourceSearch
	SourceDownloads
	SourceRecent
)

// String returns the string representation of the source type.
func (s SourceType) String() string {
	switch s {
	case SourcePlaylist:
		return "playlist"
	case SourceSearch:
		return "search"
	case SourceDownloads:
		return "downloads"
	case SourceRecent:
		return "recent"
	default:
		return "unknown"
	}
}

// Source describes why a queue is playing. It is used for UI
// attribution and to decide whether a PlayTrack call continues the
// current listening context or starts a new one.
type Source struct {
	Type       SourceType
	PlaylistID string // Set for SourcePlaylist
	Query      string // Set for SourceSearch
}

// Equal reports whether two sources denote the same listening context.
func (s Source) Equal(other Source) bool {
	return s.Type == other.Type &&
		s.PlaylistID == other.PlaylistID &&
		s.Query == other.Query
}

// PlaylistSource returns a Source for the given playlist ID.
func PlaylistSource(id string) Source {
	return Source{Type: SourcePlaylist, PlaylistID: id}
}

// SearchSource returns a Source for the given search query.
func SearchSource(query string) Source {
	return Source{Type: SourceSearch, Query: query}
}

// Snapshot is a read-only copy of the player state handed to UI code.
// The slices are copies; mutating them has no effect on the player.
type Snapshot struct {
	Current   *track.Track  // Currently active track (nil when idle)
	Queue     []track.Track // Original queue (the full listening context)
	PlayQueue []track.Track // Active forward-looking queue (shuffled view when shuffle is on)
	Source    Source

	Playing  bool
	Loading  bool
	Seeking  bool
	Shuffled bool
	LoopMode LoopMode

	Progress float64 // Fraction 0..1
	Duration time.Duration
	Position time.Duration
	Volume   float64 // 0..1

	CanGoNext     bool
	CanGoPrevious bool
}
