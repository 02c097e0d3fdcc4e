// Package recommend provides track recommendation strategies used to
// extend a listening queue before it runs dry.
package recommend

import (
	"context"

	"github.com/satvikx/beats/internal/domain/track"
)

// Suggestion is one provider's answer: a display title for the batch
// plus the recommended tracks, already resolved to playable entries.
type Suggestion struct {
	Title  string
	Tracks []track.Track
}

// Provider is the interface for recommendation providers.
// Different implementations can suggest tracks through various
// strategies (LLM curation, Last.fm similarity, charts).
type Provider interface {
	// Suggest produces up to count recommendations.
	// seedTracks: recently played tracks used as hints
	// excludeIDs: tracks already queued (for duplicate avoidance)
	Suggest(ctx context.Context, seedTracks []track.Track, count int, excludeIDs map[string]bool) (*Suggestion, error)

	// Name returns the provider name (used in config).
	Name() string
}

// Searcher resolves a title/artist pair into a playable track via the
// streaming backend.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)
}
