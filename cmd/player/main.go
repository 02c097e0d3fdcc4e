// Package main provides the player daemon entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/satvikx/beats/internal/app/notification"
	"github.com/satvikx/beats/internal/app/player"
	"github.com/satvikx/beats/internal/app/recommend"
	"github.com/satvikx/beats/internal/infra/backend"
	"github.com/satvikx/beats/internal/infra/config"
	"github.com/satvikx/beats/internal/infra/logger"
	"github.com/satvikx/beats/internal/infra/mpris"
	"github.com/satvikx/beats/internal/infra/store"
	"github.com/satvikx/beats/internal/infra/transport"
)

var (
	app        = kingpin.New("beats", "beats music player daemon")
	configPath = app.Flag("config", "Path to config file").Default("config/player.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()

	startCmd = app.Command("start", "Start the player (default)").Default()
	query    = startCmd.Arg("query", "Search and start playing the first match").Strings()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	// Initialize logger
	loggerConfig := logger.Config{
		Output: "stderr",
		Level:  "info",
	}
	// Override with command-line flags if specified
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	// Run player (defer ensures shutdown hooks are called)
	if err := run(cfg, strings.Join(*query, " ")); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		os.Exit(1)
	}
}

// run executes the main player logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config, searchQuery string) error {
	// Local library and recents store
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	// Streaming backend client (search + stream resolution)
	backendClient, err := backend.New(backend.Config{
		BaseURL:       cfg.Backend.BaseURL,
		SearchTimeout: cfg.SearchTimeout(),
		StreamTimeout: cfg.StreamTimeout(),
	})
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}

	// Audio transport (mpv over JSON IPC)
	trans, err := transport.New(transport.Config{
		MpvPath:    cfg.Transport.MpvPath,
		SocketPath: cfg.Transport.SocketPath,
	})
	if err != nil {
		return fmt.Errorf("failed to start transport: %w", err)
	}
	defer trans.Close()

	// Notice manager: log every notice, so errors surface even when no
	// desktop surface is listening.
	notifier := notification.NewManager()
	defer notifier.Close()
	notifier.Subscribe(func(n notification.Notice) {
		switch n.Level {
		case notification.LevelError:
			zlog.Error().Str("detail", n.Detail).Msg(n.Title)
		default:
			zlog.Info().Str("detail", n.Detail).Msg(n.Title)
		}
	})

	// The media-session publisher must outlive the controller: its close
	// is registered first so the fan-out goroutine below has drained the
	// event channel (closed by ctrl.Close) before the bus goes away.
	var (
		pub        *mpris.Publisher
		fanoutDone chan struct{}
	)
	defer func() {
		if fanoutDone != nil {
			<-fanoutDone
		}
		if pub != nil {
			pub.Close()
		}
	}()

	// Playback controller
	ctrl := player.NewController(trans, storeAdapter{st}, backendClient, notifier, player.Config{
		InitialVolume:        cfg.Playback.Volume,
		PrevRestartThreshold: time.Duration(cfg.Playback.PrevRestartThresholdSec) * time.Second,
		RecentWriteInterval:  time.Duration(cfg.Playback.RecentWriteIntervalSec) * time.Second,
		PreloadNext:          cfg.Playback.PreloadNext,
	})
	defer ctrl.Close()

	// Media-session surface. A missing session bus (headless host) is
	// not fatal; playback still works without it.
	pub, err = mpris.New(ctrl)
	if err != nil {
		zlog.Warn().Msgf("MPRIS unavailable, continuing without it: %v", err)
		pub = nil
	}

	// Autoplay worker (optional)
	var worker *recommend.Worker
	if cfg.Recommend.Enabled {
		suggester, err := recommend.NewChainFromConfig(cfg, backendClient)
		if err != nil {
			return fmt.Errorf("failed to create recommendation chain: %w", err)
		}
		worker = recommend.NewWorker(ctrl, suggester, st, notifier, recommend.WorkerConfig{
			Timeout:    cfg.RecommendTimeout(),
			SeedCount:  cfg.Recommend.SeedCount,
			TrackCount: cfg.Recommend.TrackCount,
			LowWater:   cfg.Recommend.LowWater,
		})
		defer worker.Close()
	}

	// Fan controller events out to the media session and the autoplay
	// worker. The controller closes the channel on Close.
	fanoutDone = make(chan struct{})
	go func() {
		defer close(fanoutDone)
		for ev := range ctrl.Events() {
			if pub != nil {
				pub.HandleEvent(ev)
			}
			if worker != nil {
				worker.HandleEvent(ev)
			}
		}
	}()

	if searchQuery != "" {
		if err := playSearch(ctrl, backendClient, searchQuery); err != nil {
			return err
		}
	} else {
		zlog.Info().Msg("Player idle, waiting for media-session commands")
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	zlog.Info().Msg("Received shutdown signal...")

	return nil
}

// playSearch runs a search against the backend and starts playback with
// the result list as the queue context.
func playSearch(ctrl *player.Controller, backendClient *backend.Client, searchQuery string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results, err := backendClient.Search(ctx, searchQuery, 20)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		return fmt.Errorf("no results for %q", searchQuery)
	}

	zlog.Info().Msgf("Playing %s by %s (%d results)", results[0].Title, results[0].Artist, len(results))
	ctrl.PlayTrack(results[0], results, player.SearchSource(searchQuery))
	return nil
}

// storeAdapter narrows *store.Store to the slice the controller needs,
// converting stored downloads into playable records.
type storeAdapter struct {
	*store.Store
}

func (a storeAdapter) GetDownload(ctx context.Context, trackID string) (*player.DownloadRecord, error) {
	dl, err := a.Store.GetDownload(ctx, trackID)
	if err != nil || dl == nil {
		return nil, err
	}
	return &player.DownloadRecord{
		TrackID:  dl.Track.ID,
		Payload:  dl.Payload,
		MimeType: dl.MimeType,
	}, nil
}
