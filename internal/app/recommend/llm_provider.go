package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/satvikx/beats/internal/domain/track"
	"github.com/satvikx/beats/internal/infra/llm"
)

// LLMClient defines the chat-completion operations needed here.
type LLMClient interface {
	CompleteJSON(ctx context.Context, messages []llm.Message) (string, error)
}

type LLMProviderConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key" validate:"required"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url" default:"https://api.openai.com/v1"`
	Model   string `yaml:"model" mapstructure:"model" default:"gpt-4o-mini"`
}

// LLMProvider asks a chat model to curate tracks similar to the seed
// listening history, then resolves each suggestion to a playable track
// through the backend search.
type LLMProvider struct {
	llm      LLMClient
	searcher Searcher

	// Cache for backend search results
	searchCache map[string]*track.Track
	cacheMu     sync.RWMutex

	config *LLMProviderConfig
}

// llmPlaylist is the JSON shape the model is asked to produce.
type llmPlaylist struct {
	PlaylistTitle   string `json:"playlistTitle"`
	Recommendations []struct {
		Title  string `json:"title"`
		Artist string `json:"artist"`
	} `json:"recommendations"`
}

const llmSystemPrompt = `You are a music curator. Given a list of songs a listener recently played, recommend songs they would enjoy next. Prefer the same mood and era. Do not recommend songs from the seed list. Respond with a JSON object: {"playlistTitle": string, "recommendations": [{"title": string, "artist": string}]}.`

// NewLLMProvider creates a new LLMProvider.
func NewLLMProvider(searcher Searcher, settings map[string]any) (*LLMProvider, error) {
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if len(settings) == 0 {
		return nil, errors.New("settings are required")
	}

	var config LLMProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	client, err := llm.New(llm.Config{
		BaseURL: config.BaseURL,
		APIKey:  config.APIKey,
		Model:   config.Model,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create LLM client")
	}

	return &LLMProvider{
		llm:         client,
		searcher:    searcher,
		searchCache: make(map[string]*track.Track),
		config:      &config,
	}, nil
}

// Suggest asks the model for recommendations.
func (p *LLMProvider) Suggest(ctx context.Context, seedTracks []track.Track, count int, excludeIDs map[string]bool) (*Suggestion, error) {
	if count <= 0 {
		return &Suggestion{}, nil
	}
	if len(seedTracks) == 0 {
		return nil, errors.New("LLM provider needs at least one seed track")
	}

	var sb strings.Builder
	for _, seed := range seedTracks {
		fmt.Fprintf(&sb, "- %s by %s\n", seed.Title, seed.Artist)
	}
	userPrompt := fmt.Sprintf("The listener recently played:\n%sRecommend %d songs.", sb.String(), count)

	content, err := p.llm.CompleteJSON(ctx, []llm.Message{
		{Role: "system", Content: llmSystemPrompt},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		return nil, errors.Wrap(err, "LLM completion failed")
	}

	var parsed llmPlaylist
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, errors.Wrap(err, "LLM returned malformed JSON")
	}
	if len(parsed.Recommendations) == 0 {
		return nil, errors.New("LLM returned no recommendations")
	}

	suggestion := &Suggestion{Title: parsed.PlaylistTitle}
	for _, rec := range parsed.Recommendations {
		if rec.Title == "" {
			continue
		}

		resolved := p.search(ctx, rec.Title, rec.Artist)
		if resolved == nil || excludeIDs[resolved.ID] {
			continue
		}

		t := *resolved
		if parsed.PlaylistTitle != "" {
			t.Reason = parsed.PlaylistTitle
		}
		suggestion.Tracks = append(suggestion.Tracks, t)

		if len(suggestion.Tracks) >= count {
			break
		}
	}

	zlog.Debug().Msgf("LLM suggested %d tracks, %d resolved", len(parsed.Recommendations), len(suggestion.Tracks))
	return suggestion, nil
}

// Name returns the provider name.
func (p *LLMProvider) Name() string {
	return "llm"
}

// search resolves a title/artist pair on the backend with caching.
// Failed lookups are cached as nil to avoid repeated misses.
func (p *LLMProvider) search(ctx context.Context, title, artist string) *track.Track {
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
