package recommend

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/satvikx/beats/internal/app/notification"
	"github.com/satvikx/beats/internal/app/player"
	"github.com/satvikx/beats/internal/domain/track"
	"github.com/satvikx/beats/internal/infra/store"
)

// Suggester produces recommendations; satisfied by Chain.
type Suggester interface {
	Suggest(ctx context.Context, seedTracks []track.Track, count int, excludeIDs map[string]bool) (*Suggestion, error)
}

// QueueController is the slice of the player the worker drives.
type QueueController interface {
	Snapshot() player.Snapshot
	AppendTracks(tracks []track.Track)
}

// RecentsLister supplies listening history used as seeds.
type RecentsLister interface {
	ListRecents(ctx context.Context, limit int) ([]store.Recent, error)
}

// recentExcludeLimit caps how much listening history is pulled for
// duplicate exclusion on each fill.
const recentExcludeLimit = 25

// WorkerConfig holds recommendation worker configuration.
type WorkerConfig struct {
	Timeout    time.Duration // per fill attempt, default 90s
	SeedCount  int           // history entries fed to providers, default 3
	TrackCount int           // tracks appended per fill, default 4
	LowWater   int           // refill when this few tracks remain ahead, default 2
}

// Worker watches the player and tops the queue up with recommended
// tracks before it runs out. Fixed contexts (playlists, downloads)
// are left alone.
type Worker struct {
	controller QueueController
	suggester  Suggester
	recents    RecentsLister
	notifier   *notification.Manager
	config     WorkerConfig

	trigger chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWorker creates and starts a recommendation worker.
func NewWorker(controller QueueController, suggester Suggester, recents RecentsLister, notifier *notification.Manager, config WorkerConfig) *Worker {
	if config.Timeout <= 0 {
		config.Timeout = 90 * time.Second
	}
	if config.SeedCount <= 0 {
		config.SeedCount = 3
	}
	if config.TrackCount <= 0 {
		config.TrackCount = 4
	}
	if config.LowWater <= 0 {
		config.LowWater = 2
	}
	if notifier == nil {
		notifier = notification.NewManager()
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		controller: controller,
		suggester:  suggester,
		recents:    recents,
		notifier:   notifier,
		config:     config,
		trigger:    make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
	}

	w.wg.Add(1)
	go w.run()

	return w
}

// HandleEvent feeds a player event into the worker. Safe to call from
// the event fan-out goroutine; never blocks.
func (w *Worker) HandleEvent(ev player.Event) {
	switch ev.Type {
	case player.EventTrackChanged, player.EventQueueChanged, player.EventQueueEnded:
		if w.shouldFill() {
			select {
			case w.trigger <- struct{}{}:
			default:
			}
		}
	}
}

// Close stops the worker and waits for an in-flight fill to end.
func (w *Worker) Close() {
	w.cancel()
	w.wg.Wait()
}

// shouldFill checks whether the queue is about to run dry in a context
// that welcomes recommendations.
func (w *Worker) shouldFill() bool {
	snap := w.controller.Snapshot()
	if snap.Current == nil {
		return false
	}
	// Looping never runs out; fixed contexts stay as the user made them.
	if snap.LoopMode != player.LoopOff {
		return false
	}
	switch snap.Source.Type {
	case player.SourcePlaylist, player.SourceDownloads:
		return false
	}

	idx := track.IndexOf(snap.PlayQueue, snap.Current.ID)
	if idx == -1 {
		return false
	}
	remaining := len(snap.PlayQueue) - idx - 1
	return remaining < w.config.LowWater
}

func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.trigger:
			w.fill()
		}
	}
}

// fill asks the provider chain for tracks and appends the survivors.
func (w *Worker) fill() {
	if !w.shouldFill() {
		return
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.config.Timeout)
	defer cancel()

	snap := w.controller.Snapshot()

	recents, err := w.recents.ListRecents(ctx, recentExcludeLimit)
	if err != nil {
		zlog.Debug().Err(err).Msg("recommend: failed to load recents")
	}

	// Seeds prefer the persisted listening history, falling back to the
	// current track.
	seeds := make([]track.Track, 0, w.config.SeedCount)
	for _, r := range recents {
		if len(seeds) == w.config.SeedCount {
			break
		}
		seeds = append(seeds, r.Track)
	}
	if len(seeds) == 0 && snap.Current != nil {
		seeds = append(seeds, *snap.Current)
	}

	// Anything queued or recently heard is off the table.
	excludeIDs := make(map[string]bool, len(snap.Queue)+len(recents))
	for _, t := range snap.Queue {
		excludeIDs[t.ID] = true
	}
	for _, r := range recents {
		excludeIDs[r.Track.ID] = true
	}

	suggestion, err := w.suggester.Suggest(ctx, seeds, w.config.TrackCount, excludeIDs)
	if err != nil {
		zlog.Warn().Err(err).Msg("recommend: fill attempt failed")
		return
	}
	if suggestion == nil {
		return
	}

	tracks := filterAgainstQueue(suggestion.Tracks, snap.Queue)
	if len(tracks) == 0 {
		zlog.Debug().Msg("recommend: nothing left after dedup")
		return
	}

	w.controller.AppendTracks(tracks)
	zlog.Info().Msgf("recommend: appended tracks: title=%q count=%d", suggestion.Title, len(tracks))

	title := suggestion.Title
	if title == "" {
		title = "Recommended for you"
	}
	go w.notifier.Publish(notification.Notice{
		Level:  notification.LevelInfo,
		Title:  title,
		Detail: "Added upcoming tracks to the queue.",
	})
}
