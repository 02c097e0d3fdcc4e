package player

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/satvikx/beats/internal/domain/track"
)

func makeTracks(ids ...string) []track.Track {
	tracks := make([]track.Track, 0, len(ids))
	for _, id := range ids {
		tracks = append(tracks, track.Track{ID: id, Title: "Track " + id})
	}
	return tracks
}

func TestSuffixFrom(t *testing.T) {
	queue := makeTracks("a", "b", "c", "d")

	tests := []struct {
		name     string
		start    track.Track
		expected []string
	}{
		{
			name:     "middle of the queue",
			start:    queue[2],
			expected: []string{"c", "d"},
		},
		{
			name:     "first track keeps everything",
			start:    queue[0],
			expected: []string{"a", "b", "c", "d"},
		},
		{
			name:     "last track keeps only itself",
			start:    queue[3],
			expected: []string{"d"},
		},
		{
			name:     "unknown track falls back to singleton",
			start:    track.Track{ID: "x"},
			expected: []string{"x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := suffixFrom(queue, tt.start)
			assert.Equal(t, tt.expected, track.IDs(got))
		})
	}
}

func TestShufflePinned(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	playQueue := makeTracks("c", "d", "e", "f")

	shuffled := shufflePinned(rng, playQueue[0], playQueue)

	assert.Len(t, shuffled, len(playQueue))
	assert.Equal(t, "c", shuffled[0].ID, "current track must stay first")
	assert.ElementsMatch(t, track.IDs(playQueue), track.IDs(shuffled))
}

func TestShufflePinnedCurrentNotInQueue(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	playQueue := makeTracks("c", "d")
	outsider := track.Track{ID: "x"}

	shuffled := shufflePinned(rng, outsider, playQueue)

	assert.Equal(t, "x", shuffled[0].ID)
	assert.ElementsMatch(t, []string{"x", "c", "d"}, track.IDs(shuffled))
}

func TestPermute(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	queue := makeTracks("a", "b", "c", "d", "e")

	perm := permute(rng, queue)

	assert.Len(t, perm, len(queue))
	assert.ElementsMatch(t, track.IDs(queue), track.IDs(perm))
	// Input order is never mutated in place.
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, track.IDs(queue))
}

func TestInsertAfter(t *testing.T) {
	tests := []struct {
		name     string
		queue    []track.Track
		afterID  string
		insert   string
		expected []string
	}{
		{
			name:     "after middle element",
			queue:    makeTracks("a", "b", "c"),
			afterID:  "b",
			insert:   "x",
			expected: []string{"a", "b", "x", "c"},
		},
		{
			name:     "after last element",
			queue:    makeTracks("a", "b"),
			afterID:  "b",
			insert:   "x",
			expected: []string{"a", "b", "x"},
		},
		{
			name:     "unknown anchor appends",
			queue:    makeTracks("a", "b"),
			afterID:  "zzz",
			insert:   "x",
			expected: []string{"a", "b", "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := insertAfter(tt.queue, tt.afterID, track.Track{ID: tt.insert})
			assert.Equal(t, tt.expected, track.IDs(got))
		})
	}
}

func TestInsertAt(t *testing.T) {
	tests := []struct {
		name     string
		queue    []track.Track
		index    int
		insert   string
		expected []string
	}{
		{
			name:     "index one",
			queue:    makeTracks("a", "b", "c"),
			index:    1,
			insert:   "x",
			expected: []string{"a", "x", "b", "c"},
		},
		{
			name:     "index beyond length clamps to append",
			queue:    makeTracks("a"),
			index:    5,
			insert:   "x",
			expected: []string{"a", "x"},
		},
		{
			name:     "negative index clamps to front",
			queue:    makeTracks("a"),
			index:    -1,
			insert:   "x",
			expected: []string{"x", "a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := insertAt(tt.queue, tt.index, track.Track{ID: tt.insert})
			assert.Equal(t, tt.expected, track.IDs(got))
		})
	}
}
