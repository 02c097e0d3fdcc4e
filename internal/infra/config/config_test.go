package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: http://localhost:3001
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3001", cfg.Backend.BaseURL)
	assert.Equal(t, 10, cfg.Backend.SearchTimeoutSec)
	assert.Equal(t, 60, cfg.Backend.StreamTimeoutSec)
	assert.Equal(t, "best", cfg.Backend.DownloadQuality)
	assert.Equal(t, 1.0, cfg.Playback.Volume)
	assert.Equal(t, 3, cfg.Playback.PrevRestartThresholdSec)
	assert.Equal(t, 5, cfg.Playback.RecentWriteIntervalSec)
	assert.Equal(t, "mpv", cfg.Transport.MpvPath)
	assert.Equal(t, 90, cfg.Recommend.TimeoutSec)
	assert.Equal(t, 4, cfg.Recommend.TrackCount)
	assert.NotEmpty(t, cfg.Store.Path)
}

func TestLoadFull(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: http://localhost:3001
  search_timeout_sec: 5
  stream_timeout_sec: 30
store:
  path: /tmp/beats-test.db
playback:
  volume: 0.5
  preload_next: true
recommend:
  enabled: true
  providers:
    - type: llm
      display_name: Curator
      settings:
        api_key: test-key
        model: gpt-4o-mini
    - type: lastfm
      display_name: Last.fm
      settings:
        api_key: lastfm-key
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Backend.SearchTimeoutSec)
	assert.Equal(t, "/tmp/beats-test.db", cfg.Store.Path)
	assert.Equal(t, 0.5, cfg.Playback.Volume)
	assert.True(t, cfg.Playback.PreloadNext)
	require.Len(t, cfg.Recommend.Providers, 2)
	assert.Equal(t, "llm", cfg.Recommend.Providers[0].Type)
	assert.Equal(t, "test-key", cfg.Recommend.Providers[0].Settings["api_key"])
}

func TestLoadMissingBackendURL(t *testing.T) {
	path := writeConfig(t, `
playback:
  volume: 0.5
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadInvalidVolume(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: http://localhost:3001
playback:
  volume: 1.5
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestRecommendEnabledNeedsProviders(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: http://localhost:3001
recommend:
  enabled: true
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "at least one provider")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BEATS_BACKEND_URL", "http://override:9999")
	t.Setenv("LLM_API_KEY", "env-llm-key")

	path := writeConfig(t, `
backend:
  base_url: http://localhost:3001
recommend:
  enabled: true
  providers:
    - type: llm
      display_name: Curator
      settings:
        api_key: file-key
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://override:9999", cfg.Backend.BaseURL)
	assert.Equal(t, "env-llm-key", cfg.Recommend.Providers[0].Settings["api_key"])
}

func TestTimeoutHelpers(t *testing.T) {
	path := writeConfig(t, `
backend:
  base_url: http://localhost:3001
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10s", cfg.SearchTimeout().String())
	assert.Equal(t, "1m0s", cfg.StreamTimeout().String())
	assert.Equal(t, "1m30s", cfg.RecommendTimeout().String())
}
