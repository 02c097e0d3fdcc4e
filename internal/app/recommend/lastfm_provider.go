package recommend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/satvikx/beats/internal/domain/track"
	"github.com/satvikx/beats/internal/infra/lastfm"
)

// LastFmClient defines the Last.fm operations needed here.
type LastFmClient interface {
	GetSimilarTracks(ctx context.Context, trackName, artistName string, limit int) ([]lastfm.SimilarTrack, error)
	GetChartTopTracks(ctx context.Context, limit int) ([]lastfm.SimilarTrack, error)
}

type LastFmProviderConfig struct {
	APIKey         string `yaml:"api_key" mapstructure:"api_key" validate:"required"`
	SeedTrackCount int    `yaml:"seed_track_count" mapstructure:"seed_track_count" default:"3" validate:"gte=1"`
}

// LastFmProvider suggests tracks via Last.fm similarity, falling back
// to the global charts when no listening history exists yet.
type LastFmProvider struct {
	lastfm   LastFmClient
	searcher Searcher

	// Cache for backend search results
	searchCache map[string]*track.Track
	cacheMu     sync.RWMutex

	config *LastFmProviderConfig
}

// NewLastFmProvider creates a new LastFmProvider.
func NewLastFmProvider(searcher Searcher, settings map[string]any) (*LastFmProvider, error) {
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if len(settings) == 0 {
		return nil, errors.New("settings are required")
	}

	var config LastFmProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	client, err := lastfm.New(lastfm.Config{APIKey: config.APIKey})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create last.fm client")
	}

	return &LastFmProvider{
		lastfm:      client,
		searcher:    searcher,
		searchCache: make(map[string]*track.Track),
		config:      &config,
	}, nil
}

// Suggest retrieves similar tracks for the seeds.
func (p *LastFmProvider) Suggest(ctx context.Context, seedTracks []track.Track, count int, excludeIDs map[string]bool) (*Suggestion, error) {
	if count <= 0 {
		return &Suggestion{}, nil
	}

	if len(seedTracks) > p.config.SeedTrackCount {
		seedTracks = seedTracks[:p.config.SeedTrackCount]
	}

	var similar []lastfm.SimilarTrack
	title := "More like this"
	if len(seedTracks) == 0 {
		// No listening history: fall back to the global charts.
		chart, err := p.lastfm.GetChartTopTracks(ctx, count*3)
		if err != nil {
			return nil, errors.Wrap(err, "chart lookup failed")
		}
		similar = chart
		title = "Popular right now"
	} else {
		for _, seed := range seedTracks {
			if seed.Artist == "" {
				continue
			}
			tracks, err := p.lastfm.GetSimilarTracks(ctx, seed.Title, seed.Artist, count)
			if err != nil {
				continue // Skip on error
			}
			similar = append(similar, tracks...)
		}
		if len(seedTracks) > 0 {
			title = fmt.Sprintf("Because you played %s", seedTracks[0].Title)
		}
	}

	suggestion := &Suggestion{Title: title}
	for _, sim := range similar {
		resolved := p.search(ctx, sim.Name, sim.Artist)
		if resolved == nil || excludeIDs[resolved.ID] {
			continue
		}

		t := *resolved
		t.Reason = title
		suggestion.Tracks = append(suggestion.Tracks, t)

		if len(suggestion.Tracks) >= count {
			break
		}
	}

	return suggestion, nil
}

// Name returns the provider name.
func (p *LastFmProvider) Name() string {
	return "lastfm"
}

// search resolves a title/artist pair on the backend with caching.
func (p *LastFmProvider) search(ctx context.Context, title, artist string) *track.Track {
	key := fmt.Sprintf("%s:%s", title, artist)

	p.cacheMu.RLock()
	if cached, ok := p.searchCache[key]; ok {
		p.cacheMu.RUnlock()
		return cached
	}
	p.cacheMu.RUnlock()

	query := strings.TrimSpace(title + " " + artist)
	results, err := p.searcher.Search(ctx, query, 1)

	var result *track.Track
	if err == nil && len(results) > 0 {
		result = &results[0]
	}

	p.cacheMu.Lock()
	p.searchCache[key] = result
	p.cacheMu.Unlock()

	return result
}
