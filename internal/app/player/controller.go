package player

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/satvikx/beats/internal/app/notification"
	"github.com/satvikx/beats/internal/domain/track"
)

// Config holds controller configuration.
type Config struct {
	InitialVolume        float64       // Starting volume, 0..1 (default 1.0)
	PrevRestartThreshold time.Duration // Previous restarts the track past this position (default 3s)
	RecentWriteInterval  time.Duration // Min interval between recent-position writes (default 5s)
	PreloadNext          bool          // Warm the resolver cache for the upcoming track
	Rand                 *rand.Rand    // Shuffle source (default: time-seeded)
}

// Controller owns the media transport and mediates between the
// original queue (the listening context) and the play queue (the
// forward-looking sequence consumed by next/previous). All methods are
// safe for concurrent use; the transport is mutated only by the
// controller.
type Controller struct {
	mu sync.Mutex

	transport Transport
	store     Store
	resolver  StreamResolver
	notifier  *notification.Manager
	rng       *rand.Rand

	// Queue state
	current   *track.Track
	queue     []track.Track // Original queue: the full listening context
	playQueue []track.Track // Suffix of the original queue from the current track
	shuffled  []track.Track // Shuffled play queue; nil when shuffle is off
	source    Source

	// Transport state
	playing   bool
	loading   bool
	seeking   bool
	shuffleOn bool
	loopMode  LoopMode
	progress  float64
	duration  time.Duration
	volume    float64

	// Load pipeline: only the newest attempt may touch the transport.
	attempt    uint64
	loadCancel context.CancelFunc
	localFile  string // Temp file backing local (downloaded) playback

	config        Config
	recentLimiter *rate.Limiter

	// Events
	eventCh chan Event

	// Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewController creates a playback controller and starts its transport
// event loop.
func NewController(transport Transport, store Store, resolver StreamResolver, notifier *notification.Manager, config Config) *Controller {
	if config.InitialVolume <= 0 || config.InitialVolume > 1 {
		config.InitialVolume = 1.0
	}
	if config.PrevRestartThreshold <= 0 {
		config.PrevRestartThreshold = 3 * time.Second
	}
	if config.RecentWriteInterval <= 0 {
		config.RecentWriteInterval = 5 * time.Second
	}
	if config.Rand == nil {
		config.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if notifier == nil {
		notifier = notification.NewManager()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		transport:     transport,
		store:         store,
		resolver:      resolver,
		notifier:      notifier,
		rng:           config.Rand,
		volume:        config.InitialVolume,
		config:        config,
		recentLimiter: rate.NewLimiter(rate.Every(config.RecentWriteInterval), 1),
		eventCh:       make(chan Event, 16),
		ctx:           ctx,
		cancel:        cancel,
	}
	_ = transport.SetVolume(c.volume)

	c.wg.Add(1)
	go c.run()

	return c
}

// Events returns the player event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// PlayTrack starts playing a track inside a listening context. An
// empty contextList defaults to a singleton queue of the track itself.
// When source and context match the current ones, the original queue
// is left untouched; otherwise it is replaced wholesale.
func (c *Controller) PlayTrack(t track.Track, contextList []track.Track, src Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playTrackLocked(t, contextList, src)
}

// AddToQueue inserts a track directly after the current one in both
// the original queue and the active play queue. With nothing playing
// it behaves as PlayTrack(t, [t]).
func (c *Controller) AddToQueue(t track.Track) {
	c.mu.Lock()

	if c.current == nil {
		c.playTrackLocked(t, []track.Track{t}, Source{Type: SourceUnknown})
		c.mu.Unlock()
		go c.notifier.Publish(notification.Notice{
			Level:  notification.LevelInfo,
			Title:  "Playing next",
			Detail: fmt.Sprintf("%q", t.Title),
		})
		return
	}

	if track.IndexOf(c.queue, t.ID) == -1 {
		c.queue = insertAfter(c.queue, c.current.ID, t)
	}
	if c.shuffleOn {
		if track.IndexOf(c.shuffled, t.ID) == -1 {
			c.shuffled = insertAfter(c.shuffled, c.current.ID, t)
		}
	} else {
		if track.IndexOf(c.playQueue, t.ID) == -1 {
			c.playQueue = insertAt(c.playQueue, 1, t)
		}
	}
	c.sendEventLocked(Event{Type: EventQueueChanged, Track: c.current})
	c.mu.Unlock()

	go c.notifier.Publish(notification.Notice{
		Level:  notification.LevelInfo,
		Title:  "Added to queue",
		Detail: fmt.Sprintf("%q", t.Title),
	})
}

// AppendTracks adds tracks to the tail of the original queue and of
// the active play queue, skipping ids already present. Used to extend
// a listening context with recommendations without touching what is
// queued ahead.
func (c *Controller) AppendTracks(tracks []track.Track) {
	c.mu.Lock()
	defer c.mu.Unlock()

	appended := false
	for _, t := range tracks {
		if track.IndexOf(c.queue, t.ID) != -1 {
			continue
		}
		c.queue = append(c.queue, t)
		c.playQueue = append(c.playQueue, t)
		if c.shuffleOn {
			c.shuffled = append(c.shuffled, t)
		}
		appended = true
	}
	if appended {
		c.sendEventLocked(Event{Type: EventQueueChanged, Track: c.current})
	}
}

// TogglePlay pauses the transport when playing and resumes it when
// paused. No-op while idle.
func (c *Controller) TogglePlay() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return
	}
	if c.playing {
		_ = c.transport.Pause()
	} else {
		_ = c.transport.Play()
	}
}

// Seek jumps to the given fraction (0..1) of the track. The progress
// value is updated optimistically so a dragged seek bar does not snap
// back before the transport catches up.
func (c *Controller) Seek(fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.duration <= 0 {
		return
	}
	_ = c.transport.Seek(time.Duration(fraction * float64(c.duration)))
	c.progress = fraction
	c.sendEventLocked(Event{Type: EventStateChanged, Track: c.current})
}

// SetSeeking marks the start/end of a seek gesture. While set, the
// periodic time updates do not overwrite progress.
func (c *Controller) SetSeeking(seeking bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seeking = seeking
}

// SkipNext advances to the next track of the active play queue,
// honouring shuffle and loop mode.
func (c *Controller) SkipNext() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skipNextLocked()
}

// SkipPrev restarts the current track when more than the restart
// threshold has played; otherwise it walks one step back in the
// original queue. Previous intentionally ignores shuffle ordering.
func (c *Controller) SkipPrev() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport.Position() > c.config.PrevRestartThreshold {
		_ = c.transport.Seek(0)
		c.progress = 0
		return
	}

	if c.current == nil {
		return
	}

	var prev *track.Track
	if idx := track.IndexOf(c.queue, c.current.ID); idx > 0 {
		prev = &c.queue[idx-1]
	} else if c.loopMode == LoopQueue && len(c.queue) > 0 {
		prev = &c.queue[len(c.queue)-1]
	}

	if prev != nil {
		c.playTrackLocked(*prev, c.queue, c.source)
		return
	}
	_ = c.transport.Seek(0)
	c.progress = 0
}

// SetVolume applies a volume level (0..1) directly to the transport.
func (c *Controller) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.volume = volume
	_ = c.transport.SetVolume(volume)
	c.sendEventLocked(Event{Type: EventStateChanged, Track: c.current})
}

// ToggleShuffle turns shuffle on (snapshotting a permutation of the
// upcoming tracks with the current track pinned first) or off (falling
// back to the original-queue suffix). The original queue itself is
// never reordered.
func (c *Controller) ToggleShuffle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.shuffleOn = !c.shuffleOn
	if c.shuffleOn {
		if c.current != nil {
			c.shuffled = shufflePinned(c.rng, *c.current, c.playQueue)
		}
	} else {
		c.shuffled = nil
		if c.current != nil {
			c.playQueue = suffixFrom(c.queue, *c.current)
		}
	}
	c.sendEventLocked(Event{Type: EventQueueChanged, Track: c.current})
}

// ToggleLoopMode cycles off -> queue -> single -> off.
func (c *Controller) ToggleLoopMode() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loopMode = c.loopMode.next()
	c.sendEventLocked(Event{Type: EventQueueChanged, Track: c.current})
}

// Snapshot returns a read-only copy of the player state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Queue:         append([]track.Track(nil), c.queue...),
		PlayQueue:     append([]track.Track(nil), c.activeQueueLocked()...),
		Source:        c.source,
		Playing:       c.playing,
		Loading:       c.loading,
		Seeking:       c.seeking,
		Shuffled:      c.shuffleOn,
		LoopMode:      c.loopMode,
		Progress:      c.progress,
		Duration:      c.duration,
		Position:      c.transport.Position(),
		Volume:        c.volume,
		CanGoNext:     c.hasNextLocked(),
		CanGoPrevious: c.hasPrevLocked(),
	}
	if c.current != nil {
		cur := *c.current
		snap.Current = &cur
	}
	return snap
}

// Close tears the controller down: in-flight loads are aborted, the
// transport is silenced and any locally materialized media file is
// removed.
func (c *Controller) Close() {
	c.cancel()

	c.mu.Lock()
	if c.loadCancel != nil {
		c.loadCancel()
		c.loadCancel = nil
	}
	_ = c.transport.Pause()
	c.transport.ClearSource()
	c.removeLocalFileLocked()
	c.mu.Unlock()

	c.wg.Wait()
	close(c.eventCh)
}

// --- queue & context resolution ---

// playTrackLocked implements the PlayTrack contract. Must be called
// with the lock held.
func (c *Controller) playTrackLocked(t track.Track, contextList []track.Track, src Source) {
	if len(contextList) == 0 {
		contextList = []track.Track{t}
	}

	isNewContext := !src.Equal(c.source) || !track.SameIDSequence(contextList, c.queue)
	if isNewContext {
		c.queue = append([]track.Track(nil), contextList...)
		c.source = src
	}

	c.playQueue = suffixFrom(c.queue, t)
	if c.shuffleOn {
		c.shuffled = shufflePinned(c.rng, t, c.playQueue)
	} else {
		c.shuffled = nil
	}

	// Current track reflects intent immediately, before the stream
	// resolves.
	cur := t
	c.current = &cur
	c.progress = 0
	c.duration = 0

	c.startLoadLocked(t)

	go c.touchRecent(t)

	c.sendEventLocked(Event{Type: EventTrackChanged, Track: &cur})
}

// skipNextLocked advances playback. Must be called with the lock held.
func (c *Controller) skipNextLocked() {
	if c.current == nil {
		return
	}

	active := c.activeQueueLocked()
	idx := track.IndexOf(active, c.current.ID)

	var next *track.Track
	if idx != -1 && idx < len(active)-1 {
		next = &active[idx+1]
	} else if c.loopMode == LoopQueue && len(c.queue) > 0 {
		if c.shuffleOn {
			// A loop wrap under shuffle draws a fresh permutation so
			// every cycle plays in a new order. The original queue
			// stays untouched.
			perm := permute(c.rng, c.queue)
			cur := perm[0]
			c.current = &cur
			c.playQueue = suffixFrom(c.queue, cur)
			c.shuffled = perm
			c.progress = 0
			c.duration = 0
			c.startLoadLocked(cur)
			go c.touchRecent(cur)
			c.sendEventLocked(Event{Type: EventTrackChanged, Track: &cur})
			return
		}
		next = &c.queue[0]
	}

	if next != nil {
		c.advanceLocked(*next)
		return
	}

	// End of the queue with loop off: stop, pin position to the end.
	c.playing = false
	_ = c.transport.Pause()
	if c.duration > 0 {
		_ = c.transport.Seek(c.duration)
	}
	c.progress = 1
	c.sendEventLocked(Event{Type: EventQueueEnded, Track: c.current})
}

// advanceLocked moves to another track of the same listening context
// without rebuilding any queue, so an in-progress shuffle order is
// traversed rather than redrawn on every skip.
func (c *Controller) advanceLocked(t track.Track) {
	cur := t
	c.current = &cur
	if !c.shuffleOn {
		c.playQueue = suffixFrom(c.queue, t)
	}
	c.progress = 0
	c.duration = 0

	c.startLoadLocked(t)

	go c.touchRecent(t)

	c.sendEventLocked(Event{Type: EventTrackChanged, Track: &cur})
}

// activeQueueLocked returns the queue next/skip operates on.
func (c *Controller) activeQueueLocked() []track.Track {
	if c.shuffleOn {
		return c.shuffled
	}
	return c.playQueue
}

func (c *Controller) hasNextLocked() bool {
	if c.current == nil {
		return false
	}
	active := c.activeQueueLocked()
	if idx := track.IndexOf(active, c.current.ID); idx != -1 && idx < len(active)-1 {
		return true
	}
	return c.loopMode == LoopQueue && len(c.queue) > 0
}

func (c *Controller) hasPrevLocked() bool {
	if c.current == nil {
		return false
	}
	if idx := track.IndexOf(c.queue, c.current.ID); idx > 0 {
		return true
	}
	return c.loopMode == LoopQueue && len(c.queue) > 0
}

// --- track-load pipeline ---

// startLoadLocked begins resolving a playable URL for the committed
// current track. The attempt counter invalidates any load still in
// flight; the transport is silenced synchronously so no audio from the
// previous track continues while the new one resolves.
func (c *Controller) startLoadLocked(t track.Track) {
	c.attempt++
	token := c.attempt

	if c.loadCancel != nil {
		c.loadCancel()
		c.loadCancel = nil
	}

	_ = c.transport.Pause()
	c.transport.ClearSource()
	c.removeLocalFileLocked()

	c.loading = true
	c.playing = false

	ctx, cancel := context.WithCancel(c.ctx)
	c.loadCancel = cancel

	c.wg.Add(1)
	go c.load(ctx, token, t)
}

// load resolves the playable URL off the lock, then re-checks the
// attempt token: only the most recent play attempt may ever assign to
// the transport.
func (c *Controller) load(ctx context.Context, token uint64, t track.Track) {
	defer c.wg.Done()

	url, localPath, err := c.resolvePlayable(ctx, t)

	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.attempt || c.ctx.Err() != nil {
		// Superseded by a newer play attempt: discard silently.
		if localPath != "" {
			_ = os.Remove(localPath)
		}
		return
	}

	if err != nil {
		// Only this attempt's own cancellation is quiet. A resolver can
		// surface context.Canceled inherited from an older attempt that
		// shared the in-flight resolve; for a live attempt that is a
		// real failure.
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			zlog.Debug().Str("track", t.Title).Msg("player: track load aborted")
			return
		}
		c.failLoadLocked(t, err)
		return
	}

	c.localFile = localPath
	if err := c.transport.SetSource(url); err != nil {
		c.failLoadLocked(t, err)
		return
	}
	if err := c.transport.Play(); err != nil {
		c.failLoadLocked(t, err)
		return
	}

	if c.config.PreloadNext {
		c.preloadNextLocked()
	}
}

// resolvePlayable prefers a locally downloaded copy and falls back to
// the backend's streaming endpoint.
func (c *Controller) resolvePlayable(ctx context.Context, t track.Track) (url, localPath string, err error) {
	dl, err := c.store.GetDownload(ctx, t.ID)
	if err != nil {
		// A broken store read falls back to streaming.
		zlog.Warn().Err(err).Str("track_id", t.ID).Msg("player: download lookup failed")
	}
	if dl != nil {
		path, werr := writeLocalMedia(t.ID, dl.MimeType, dl.Payload)
		if werr == nil {
			return "file://" + path, path, nil
		}
		zlog.Warn().Err(werr).Str("track_id", t.ID).Msg("player: local media write failed, streaming instead")
	}

	streamURL, err := c.resolver.ResolveStream(ctx, t.SourceURL)
	if err != nil {
		return "", "", err
	}
	return streamURL, "", nil
}

// failLoadLocked handles a genuine (non-cancellation) load failure:
// one notice, player back to a well-defined idle state.
func (c *Controller) failLoadLocked(t track.Track, err error) {
	zlog.Error().Err(err).Str("track", t.Title).Msg("player: failed to start playback")

	c.loading = false
	c.playing = false
	c.current = nil
	c.transport.ClearSource()
	c.sendEventLocked(Event{Type: EventPlaybackError, Track: &t})

	go c.notifier.Publish(notification.Notice{
		Level:  notification.LevelError,
		Title:  "Playback Error",
		Detail: fmt.Sprintf("Could not stream %q.", t.Title),
	})
}

// preloadNextLocked warms the stream cache for the upcoming track.
func (c *Controller) preloadNextLocked() {
	if c.current == nil {
		return
	}
	active := c.activeQueueLocked()
	idx := track.IndexOf(active, c.current.ID)
	if idx == -1 || idx >= len(active)-1 {
		return
	}
	c.resolver.Preload(active[idx+1].SourceURL)
}

// removeLocalFileLocked releases the temp file of the previous local
// playback, if any. The most recently assigned file is the only one
// considered live.
func (c *Controller) removeLocalFileLocked() {
	if c.localFile == "" {
		return
	}
	if err := os.Remove(c.localFile); err != nil && !os.IsNotExist(err) {
		zlog.Warn().Err(err).Str("path", c.localFile).Msg("player: failed to remove local media file")
	}
	c.localFile = ""
}

// --- transport event bridge ---

// run consumes transport lifecycle signals until shutdown.
func (c *Controller) run() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case ev, ok := <-c.transport.Events():
			if !ok {
				return
			}
			c.handleTransportEvent(ev)
		}
	}
}

// handleTransportEvent translates a transport signal into state and
// persisted-record updates.
func (c *Controller) handleTransportEvent(ev TransportEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type {
	case TransportTimeUpdate:
		if ev.Duration > 0 {
			c.duration = ev.Duration
		}
		if !c.seeking && c.duration > 0 {
			c.progress = float64(ev.Position) / float64(c.duration)
		}
		if c.current != nil && c.playing && ev.Position > 0 && c.recentLimiter.Allow() {
			go c.persistPosition(c.current.ID, ev.Position)
			// Refresh the media-session position at the same cadence.
			c.sendEventLocked(Event{Type: EventStateChanged, Track: c.current})
		}

	case TransportMetadata:
		if ev.Duration > 0 {
			c.duration = ev.Duration
		}
		c.loading = false
		c.sendEventLocked(Event{Type: EventStateChanged, Track: c.current})

	case TransportPlaying:
		c.playing = true
		c.loading = false
		c.sendEventLocked(Event{Type: EventStateChanged, Track: c.current})

	case TransportPaused:
		c.playing = false
		c.sendEventLocked(Event{Type: EventStateChanged, Track: c.current})

	case TransportWaiting:
		c.loading = true
		c.sendEventLocked(Event{Type: EventStateChanged, Track: c.current})

	case TransportEnded:
		if c.loopMode == LoopSingle && c.current != nil {
			_ = c.transport.Seek(0)
			_ = c.transport.Play()
			return
		}
		c.skipNextLocked()
	}
}

// --- persistence side effects (best effort, never block playback) ---

func (c *Controller) touchRecent(t track.Track) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.store.TouchRecent(ctx, t, time.Now()); err != nil {
		zlog.Warn().Err(err).Str("track_id", t.ID).Msg("player: failed to record recent play")
	}
}

func (c *Controller) persistPosition(trackID string, position time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.store.UpdateRecentPosition(ctx, trackID, position); err != nil {
		zlog.Debug().Err(err).Str("track_id", trackID).Msg("player: failed to persist position")
	}
}

// sendEventLocked sends an event without blocking. Must be called with
// the lock held.
func (c *Controller) sendEventLocked(e Event) {
	select {
	case c.eventCh <- e:
	case <-c.ctx.Done():
	default:
		// Channel full, drop event.
	}
}

// writeLocalMedia materializes a downloaded payload as a temp file the
// transport can play, the local analog of an object URL.
func writeLocalMedia(trackID, mimeType string, payload []byte) (string, error) {
	ext := ".bin"
	switch mimeType {
	case "audio/mpeg", "audio/mp3":
		ext = ".mp3"
	case "audio/mp4", "audio/m4a", "audio/aac":
		ext = ".m4a"
	case "audio/webm":
		ext = ".webm"
	case "audio/ogg":
		ext = ".ogg"
	case "audio/wav":
		ext = ".wav"
	}

	f, err := os.CreateTemp("", "beats-media-*"+ext)
	if err != nil {
		return "", errors.Wrap(err, "failed to create media temp file")
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", errors.Wrapf(err, "failed to write media temp file for track %s", trackID)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", errors.Wrap(err, "failed to close media temp file")
	}
	return f.Name(), nil
}
