package player

import (
	"math/rand"

	"github.com/satvikx/beats/internal/domain/track"
)

// suffixFrom returns a copy of the queue starting at the track with
// the given ID. If the track is not in the queue the result is a
// singleton of the fallback.
func suffixFrom(queue []track.Track, fallback track.Track) []track.Track {
	idx := track.IndexOf(queue, fallback.ID)
	if idx < 0 {
		return []track.Track{fallback}
	}
	out := make([]track.Track, len(queue)-idx)
	copy(out, queue[idx:])
	return out
}

// shufflePinned returns a random permutation of the play queue with
// the current track pinned at position 0. The input is not modified.
func shufflePinned(rng *rand.Rand, current track.Track, playQueue []track.Track) []track.Track {
	upcoming := make([]track.Track, 0, len(playQueue))
	for _, t := range playQueue {
		if !t.Same(current) {
			upcoming = append(upcoming, t)
		}
	}

	out := make([]track.Track, 0, len(upcoming)+1)
	out = append(out, current)
	for _, i := range rng.Perm(len(upcoming)) {
		out = append(out, upcoming[i])
	}
	return out
}

// permute returns a random permutation of the given tracks.
func permute(rng *rand.Rand, tracks []track.Track) []track.Track {
	out := make([]track.Track, 0, len(tracks))
	for _, i := range rng.Perm(len(tracks)) {
		out = append(out, tracks[i])
	}
	return out
}

// insertAfter returns the queue with t inserted directly after the
// track with the given ID. If that track is absent, t is appended.
func insertAfter(queue []track.Track, afterID string, t track.Track) []track.Track {
	idx := track.IndexOf(queue, afterID)
	if idx < 0 {
		return append(queue, t)
	}
	out := make([]track.Track, 0, len(queue)+1)
	out = append(out, queue[:idx+1]...)
	out = append(out, t)
	out = append(out, queue[idx+1:]...)
	return out
}

// insertAt returns the queue with t inserted at the given index,
// clamped to the queue bounds.
func insertAt(queue []track.Track, idx int, t track.Track) []track.Track {
	if idx < 0 {
		idx = 0
	}
	if idx > len(queue) {
		idx = len(queue)
	}
	out := make([]track.Track, 0, len(queue)+1)
	out = append(out, queue[:idx]...)
	out = append(out, t)
	out = append(out, queue[idx:]...)
	return out
}
