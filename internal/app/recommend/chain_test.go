package recommend

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satvikx/beats/internal/domain/track"
)

type stubProvider struct {
	name       string
	suggestion *Suggestion
	err        error
	calls      int
}

func (p *stubProvider) Suggest(_ context.Context, _ []track.Track, _ int, _ map[string]bool) (*Suggestion, error) {
	p.calls++
	return p.suggestion, p.err
}

func (p *stubProvider) Name() string { return p.name }

func TestChainFirstSuccess(t *testing.T) {
	first := &stubProvider{name: "llm", suggestion: &Suggestion{
		Title:  "Night Drive",
		Tracks: []track.Track{{ID: "t1"}},
	}}
	second := &stubProvider{name: "lastfm"}

	chain := NewChain([]ProviderWithMetadata{
		{Provider: first, DisplayName: "Curator"},
		{Provider: second, DisplayName: "Last.fm"},
	})

	got, err := chain.Suggest(context.Background(), nil, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, "Night Drive", got.Title)
	assert.Equal(t, 0, second.calls, "fallback must not run when the primary succeeds")
}

func TestChainFallsBack(t *testing.T) {
	first := &stubProvider{name: "llm", err: errors.New("rate limited")}
	empty := &stubProvider{name: "lastfm", suggestion: &Suggestion{}}
	third := &stubProvider{name: "charts", suggestion: &Suggestion{
		Tracks: []track.Track{{ID: "t9"}},
	}}

	chain := NewChain([]ProviderWithMetadata{
		{Provider: first, DisplayName: "Curator"},
		{Provider: empty, DisplayName: "Last.fm"},
		{Provider: third, DisplayName: "Charts"},
	})

	got, err := chain.Suggest(context.Background(), nil, 4, nil)
	require.NoError(t, err)
	assert.Len(t, got.Tracks, 1)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, empty.calls)
}

func TestChainAllFail(t *testing.T) {
	chain := NewChain([]ProviderWithMetadata{
		{Provider: &stubProvider{name: "llm", err: errors.New("down")}, DisplayName: "Curator"},
	})

	_, err := chain.Suggest(context.Background(), nil, 4, nil)
	assert.Error(t, err)
}

func TestChainHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	never := &stubProvider{name: "lastfm", suggestion: &Suggestion{Tracks: []track.Track{{ID: "t1"}}}}
	chain := NewChain([]ProviderWithMetadata{
		{Provider: &stubProvider{name: "llm", err: ctx.Err()}, DisplayName: "Curator"},
		{Provider: never, DisplayName: "Last.fm"},
	})

	_, err := chain.Suggest(ctx, nil, 4, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, never.calls)
}
