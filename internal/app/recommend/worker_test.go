package recommend

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/satvikx/beats/internal/app/player"
	"github.com/satvikx/beats/internal/domain/track"
	"github.com/satvikx/beats/internal/infra/store"
)

type stubQueue struct {
	mu       sync.Mutex
	snap     player.Snapshot
	appended []track.Track
}

func (s *stubQueue) Snapshot() player.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *stubQueue) AppendTracks(tracks []track.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appended = append(s.appended, tracks...)
	s.snap.Queue = append(s.snap.Queue, tracks...)
	s.snap.PlayQueue = append(s.snap.PlayQueue, tracks...)
}

func (s *stubQueue) appendedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.appended)
}

type stubRecents struct {
	recents []store.Recent
}

func (s *stubRecents) ListRecents(_ context.Context, limit int) ([]store.Recent, error) {
	if len(s.recents) > limit {
		return s.recents[:limit], nil
	}
	return s.recents, nil
}

func lowQueueSnapshot(sourceType player.SourceType) player.Snapshot {
	current := track.Track{ID: "t2", Title: "Song Two", Artist: "A"}
	queue := []track.Track{
		{ID: "t1", Title: "Song One", Artist: "A"},
		current,
	}
	return player.Snapshot{
		Current:   &current,
		Queue:     queue,
		PlayQueue: []track.Track{current},
		Source:    player.Source{Type: sourceType},
	}
}

func TestWorkerFillsLowQueue(t *testing.T) {
	queue := &stubQueue{snap: lowQueueSnapshot(player.SourceSearch)}
	suggester := &stubProvider{name: "llm", suggestion: &Suggestion{
		Title: "More like this",
		Tracks: []track.Track{
			{ID: "r1", Title: "Rec One", Artist: "B"},
			{ID: "r2", Title: "Rec Two", Artist: "C"},
		},
	}}

	w := NewWorker(queue, suggester, &stubRecents{}, nil, WorkerConfig{})
	defer w.Close()

	w.HandleEvent(player.Event{Type: player.EventTrackChanged})

	assert.Eventually(t, func() bool {
		return queue.appendedCount() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestWorkerSkipsFixedContexts(t *testing.T) {
	for _, sourceType := range []player.SourceType{player.SourcePlaylist, player.SourceDownloads} {
		queue := &stubQueue{snap: lowQueueSnapshot(sourceType)}
		suggester := &stubProvider{name: "llm", suggestion: &Suggestion{
			Tracks: []track.Track{{ID: "r1"}},
		}}

		w := NewWorker(queue, suggester, &stubRecents{}, nil, WorkerConfig{})
		w.HandleEvent(player.Event{Type: player.EventTrackChanged})
		w.Close()

		assert.Zero(t, queue.appendedCount(), "source %v must not be extended", sourceType)
	}
}

func TestWorkerSkipsWhenLooping(t *testing.T) {
	snap := lowQueueSnapshot(player.SourceSearch)
	snap.LoopMode = player.LoopQueue
	queue := &stubQueue{snap: snap}
	suggester := &stubProvider{name: "llm", suggestion: &Suggestion{
		Tracks: []track.Track{{ID: "r1"}},
	}}

	w := NewWorker(queue, suggester, &stubRecents{}, nil, WorkerConfig{})
	w.HandleEvent(player.Event{Type: player.EventTrackChanged})
	w.Close()

	assert.Zero(t, queue.appendedCount())
}

func TestWorkerSkipsDeepQueue(t *testing.T) {
	snap := lowQueueSnapshot(player.SourceSearch)
	extra := []track.Track{{ID: "t3"}, {ID: "t4"}, {ID: "t5"}}
	snap.Queue = append(snap.Queue, extra...)
	snap.PlayQueue = append(snap.PlayQueue, extra...)
	queue := &stubQueue{snap: snap}
	suggester := &stubProvider{name: "llm", suggestion: &Suggestion{
		Tracks: []track.Track{{ID: "r1"}},
	}}

	w := NewWorker(queue, suggester, &stubRecents{}, nil, WorkerConfig{})
	w.HandleEvent(player.Event{Type: player.EventTrackChanged})
	w.Close()

	assert.Zero(t, queue.appendedCount())
}

func TestWorkerDropsDuplicates(t *testing.T) {
	queue := &stubQueue{snap: lowQueueSnapshot(player.SourceSearch)}
	suggester := &stubProvider{name: "llm", suggestion: &Suggestion{
		Tracks: []track.Track{
			{ID: "t1", Title: "Song One", Artist: "A"},                 // already queued
			{ID: "r1", Title: "Song One - 2015 Remaster", Artist: "A"}, // remaster of queued
			{ID: "r2", Title: "Genuinely New", Artist: "B"},
		},
	}}

	w := NewWorker(queue, suggester, &stubRecents{}, nil, WorkerConfig{})
	defer w.Close()

	w.HandleEvent(player.Event{Type: player.EventTrackChanged})

	assert.Eventually(t, func() bool {
		return queue.appendedCount() == 1
	}, time.Second, 5*time.Millisecond)
	queue.mu.Lock()
	defer queue.mu.Unlock()
	assert.Equal(t, "r2", queue.appended[0].ID)
}

func TestWorkerSeedsFromRecents(t *testing.T) {
	queue := &stubQueue{snap: lowQueueSnapshot(player.SourceSearch)}

	var gotSeeds []track.Track
	suggester := &recordingSuggester{fn: func(seeds []track.Track) {
		gotSeeds = seeds
	}}
	recents := &stubRecents{recents: []store.Recent{
		{Track: track.Track{ID: "h1", Title: "History One"}},
		{Track: track.Track{ID: "h2", Title: "History Two"}},
	}}

	w := NewWorker(queue, suggester, recents, nil, WorkerConfig{SeedCount: 2})
	defer w.Close()

	w.HandleEvent(player.Event{Type: player.EventTrackChanged})

	assert.Eventually(t, func() bool {
		return suggester.called()
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, gotSeeds, 2)
	assert.Equal(t, "h1", gotSeeds[0].ID)
}

func TestWorkerExcludesQueueAndRecents(t *testing.T) {
	queue := &stubQueue{snap: lowQueueSnapshot(player.SourceSearch)}

	var gotExcludes map[string]bool
	suggester := &recordingSuggester{exFn: func(excludes map[string]bool) {
		gotExcludes = excludes
	}}
	recents := &stubRecents{recents: []store.Recent{
		{Track: track.Track{ID: "h1", Title: "History One"}},
	}}

	w := NewWorker(queue, suggester, recents, nil, WorkerConfig{})
	defer w.Close()

	w.HandleEvent(player.Event{Type: player.EventTrackChanged})

	assert.Eventually(t, func() bool {
		return suggester.called()
	}, time.Second, 5*time.Millisecond)
	assert.True(t, gotExcludes["t1"], "queued tracks are excluded")
	assert.True(t, gotExcludes["t2"], "current track is excluded")
	assert.True(t, gotExcludes["h1"], "recently played tracks are excluded")
}

type recordingSuggester struct {
	mu   sync.Mutex
	fn   func(seeds []track.Track)
	exFn func(excludes map[string]bool)
	done bool
}

func (r *recordingSuggester) Suggest(_ context.Context, seeds []track.Track, _ int, excludeIDs map[string]bool) (*Suggestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fn != nil {
		r.fn(seeds)
	}
	if r.exFn != nil {
		r.exFn(excludeIDs)
	}
	r.done = true
	return &Suggestion{}, nil
}

func (r *recordingSuggester) called() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}
