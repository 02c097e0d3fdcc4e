package player

import "github.com/satvikx/beats/internal/domain/track"

// EventType represents a player event type.
type EventType int

const (
	EventTrackChanged  EventType = iota // Current track changed (set before the stream resolves)
	EventStateChanged                   // Transport flags changed (play/pause/loading/volume)
	EventQueueChanged                   // Queue contents or shuffle/loop settings changed
	EventQueueEnded                     // Reached the end of the queue with loop off
	EventPlaybackError                  // A play attempt failed (not a cancellation)
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackChanged:
		return "track_changed"
	case EventStateChanged:
		return "state_changed"
	case EventQueueChanged:
		return "queue_changed"
	case EventQueueEnded:
		return "queue_ended"
	case EventPlaybackError:
		return "playback_error"
	default:
		return "unknown"
	}
}

// Event represents a player event. Consumers (the media-session
// publisher, UI adapters) read these from Controller.Events.
type Event struct {
	Type  EventType
	Track *track.Track // Current track at the time of the event (nil when idle)
}
