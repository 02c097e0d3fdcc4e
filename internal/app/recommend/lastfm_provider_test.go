package recommend

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satvikx/beats/internal/domain/track"
	"github.com/satvikx/beats/internal/infra/lastfm"
)

type stubLastFm struct {
	similar map[string][]lastfm.SimilarTrack
	chart   []lastfm.SimilarTrack
	chartOn bool
}

func (s *stubLastFm) GetSimilarTracks(_ context.Context, trackName, artistName string, _ int) ([]lastfm.SimilarTrack, error) {
	if tracks, ok := s.similar[trackName]; ok {
		return tracks, nil
	}
	return nil, errors.New("track not found")
}

func (s *stubLastFm) GetChartTopTracks(_ context.Context, _ int) ([]lastfm.SimilarTrack, error) {
	s.chartOn = true
	return s.chart, nil
}

func newTestLastFmProvider(client LastFmClient, searcher Searcher) *LastFmProvider {
	return &LastFmProvider{
		lastfm:      client,
		searcher:    searcher,
		searchCache: make(map[string]*track.Track),
		config:      &LastFmProviderConfig{SeedTrackCount: 3},
	}
}

func TestLastFmProviderSuggest(t *testing.T) {
	client := &stubLastFm{similar: map[string][]lastfm.SimilarTrack{
		"Seed Song": {
			{Name: "Similar One", Artist: "Artist A"},
			{Name: "Similar Two", Artist: "Artist B"},
		},
	}}
	searcher := &stubSearcher{results: map[string]track.Track{
		"Similar One Artist A": {ID: "s1", Title: "Similar One", Artist: "Artist A"},
		"Similar Two Artist B": {ID: "s2", Title: "Similar Two", Artist: "Artist B"},
	}}
	p := newTestLastFmProvider(client, searcher)

	seeds := []track.Track{{ID: "seed", Title: "Seed Song", Artist: "Seed Artist"}}
	got, err := p.Suggest(context.Background(), seeds, 4, nil)
	require.NoError(t, err)

	assert.Equal(t, "Because you played Seed Song", got.Title)
	require.Len(t, got.Tracks, 2)
	assert.Equal(t, "s1", got.Tracks[0].ID)
	assert.False(t, client.chartOn)
}

func TestLastFmProviderChartFallback(t *testing.T) {
	client := &stubLastFm{chart: []lastfm.SimilarTrack{
		{Name: "Chart One", Artist: "Artist A"},
	}}
	searcher := &stubSearcher{results: map[string]track.Track{
		"Chart One Artist A": {ID: "c1"},
	}}
	p := newTestLastFmProvider(client, searcher)

	got, err := p.Suggest(context.Background(), nil, 4, nil)
	require.NoError(t, err)
	assert.True(t, client.chartOn)
	assert.Equal(t, "Popular right now", got.Title)
	require.Len(t, got.Tracks, 1)
}

func TestLastFmProviderRespectsCount(t *testing.T) {
	client := &stubLastFm{similar: map[string][]lastfm.SimilarTrack{
		"Seed Song": {
			{Name: "One", Artist: "A"},
			{Name: "Two", Artist: "A"},
			{Name: "Three", Artist: "A"},
		},
	}}
	searcher := &stubSearcher{results: map[string]track.Track{
		"One A":   {ID: "s1"},
		"Two A":   {ID: "s2"},
		"Three A": {ID: "s3"},
	}}
	p := newTestLastFmProvider(client, searcher)

	got, err := p.Suggest(context.Background(),
		[]track.Track{{ID: "seed", Title: "Seed Song", Artist: "X"}}, 2, nil)
	require.NoError(t, err)
	assert.Len(t, got.Tracks, 2)
}

func TestNewLastFmProviderValidatesSettings(t *testing.T) {
	searcher := &stubSearcher{}

	_, err := NewLastFmProvider(searcher, nil)
	assert.Error(t, err)

	_, err = NewLastFmProvider(searcher, map[string]any{"seed_track_count": 2})
	assert.Error(t, err, "api_key is required")

	p, err := NewLastFmProvider(searcher, map[string]any{"api_key": "k"})
	require.NoError(t, err)
	assert.Equal(t, 3, p.config.SeedTrackCount)
}
