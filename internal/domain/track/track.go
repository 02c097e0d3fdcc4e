// Package track provides the Track domain entity.
package track

import "time"

// Track represents a playable track obtained from a source
// (search results, a playlist, downloads or the recents ledger).
// Tracks are immutable values compared by ID; the ID is an opaque
// string derived from the canonical source URL by the backend.
type Track struct {
	ID           string        // Stable identity, derived from the source URL
	Title        string        // Track title
	Artist       string        // Artist name
	Duration     time.Duration // Track duration
	ThumbnailURL string        // Cover/thumbnail image URL
	SourceURL    string        // Canonical playable-resource locator
	ViewCount    int64         // View count reported by the backend
	Reason       string        // Recommendation reason (set for AI suggestions only)
}

// Same reports whether two tracks denote the same recording.
func (t Track) Same(other Track) bool {
	return t.ID == other.ID
}

// IDs returns the ID sequence of a track list.
func IDs(tracks []Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

// SameIDSequence reports whether two track lists contain the same
// IDs in the same order.
func SameIDSequence(a, b []Track) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

// IndexOf returns the index of the track with the given ID, or -1.
func IndexOf(tracks []Track, id string) int {
	for i, t := range tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
