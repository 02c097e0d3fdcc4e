package recommend

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/satvikx/beats/internal/domain/track"
)

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// Chain tries providers in order and returns the first usable
// suggestion, so a flaky primary (an LLM, say) degrades to the next
// strategy instead of failing the whole request.
type Chain struct {
	providers []ProviderWithMetadata
}

// NewChain creates a new provider chain.
func NewChain(providers []ProviderWithMetadata) *Chain {
	return &Chain{providers: providers}
}

// Suggest runs the chain.
func (c *Chain) Suggest(ctx context.Context, seedTracks []track.Track, count int, excludeIDs map[string]bool) (*Suggestion, error) {
	for i, pm := range c.providers {
		zlog.Debug().Msgf("trying provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		suggestion, err := pm.Provider.Suggest(ctx, seedTracks, count, excludeIDs)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zlog.Warn().Msgf("provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			continue
		}
		if suggestion == nil || len(suggestion.Tracks) == 0 {
			zlog.Debug().Msgf("provider returned no tracks: provider=%s", pm.DisplayName)
			continue
		}

		zlog.Info().Msgf("provider returned suggestion: provider=%s title=%q count=%d",
			pm.DisplayName, suggestion.Title, len(suggestion.Tracks))
		return suggestion, nil
	}

	return nil, errors.New("all providers failed to return suggestions")
}

// Name returns the chain name.
func (c *Chain) Name() string {
	return "provider_chain"
}
