// Package backend provides a client for the streaming backend API,
// the proxy that turns opaque track source URLs into searchable
// metadata and playable stream URLs.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/satvikx/beats/internal/domain/track"
)

// streamEntry is a single-flight slot for one source URL: concurrent
// resolvers for the same track share one backend request.
type streamEntry struct {
	done chan struct{}
	url  string
	err  error
}

// Client is a streaming backend API client.
type Client struct {
	baseURL       string
	searchTimeout time.Duration
	streamTimeout time.Duration
	httpClient    *http.Client

	// Cache of resolved stream URLs
	streamCache map[string]*streamEntry
	cacheMu     sync.Mutex
}

// Config represents backend client configuration.
type Config struct {
	BaseURL       string
	SearchTimeout time.Duration // default 10s
	StreamTimeout time.Duration // default 60s
}

// apiError represents an error envelope from the backend.
type apiError struct {
	Error string `json:"error"`
}

// searchItem is one result of the search endpoint.
type searchItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	DurationSecs int    `json:"duration"`
	Thumbnail    string `json:"thumbnail"`
	URL          string `json:"url"`
	ViewCount    int64  `json:"viewCount"`
}

// streamResponse is the body of the stream-resolution endpoint.
type streamResponse struct {
	StreamURL string `json:"streamUrl"`
}

// New creates a new backend client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = 10 * time.Second
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 60 * time.Second
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		searchTimeout: cfg.SearchTimeout,
		streamTimeout: cfg.StreamTimeout,
		httpClient:    &http.Client{},
		streamCache:   make(map[string]*streamEntry),
	}, nil
}

// Search queries the backend's track search endpoint.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	if query == "" {
		return nil, errors.New("search query is required")
	}
	if limit <= 0 {
		limit = 20
	}

	ctx, cancel := context.WithTimeout(ctx, c.searchTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprintf("%d", limit))

	var items []searchItem
	if err := c.getJSON(ctx, "/api/search?"+params.Encode(), &items); err != nil {
		return nil, errors.Wrapf(err, "search %q failed", query)
	}

	tracks := make([]track.Track, 0, len(items))
	for _, item := range items {
		tracks = append(tracks, track.Track{
			ID:           item.ID,
			Title:        item.Title,
			Artist:       item.Artist,
			Duration:     time.Duration(item.DurationSecs) * time.Second,
			ThumbnailURL: item.Thumbnail,
			SourceURL:    item.URL,
			ViewCount:    item.ViewCount,
		})
	}
	return tracks, nil
}

// ResolveStream exchanges a track's source URL for a playable stream
// URL. Results are cached; concurrent calls for the same source URL
// share a single backend request, and a failed resolution is evicted
// so the next call retries.
func (c *Client) ResolveStream(ctx context.Context, sourceURL string) (string, error) {
	if sourceURL == "" {
		return "", errors.New("source URL is required")
	}

	c.cacheMu.Lock()
	if entry, ok := c.streamCache[sourceURL]; ok {
		c.cacheMu.Unlock()
		select {
		case <-entry.done:
			return entry.url, entry.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	entry := &streamEntry{done: make(chan struct{})}
	c.streamCache[sourceURL] = entry
	c.cacheMu.Unlock()

	entry.url, entry.err = c.fetchStreamURL(ctx, sourceURL)
	if entry.err != nil {
		c.cacheMu.Lock()
		delete(c.streamCache, sourceURL)
		c.cacheMu.Unlock()
	}
	close(entry.done)

	return entry.url, entry.err
}

// Preload warms the stream cache for a source URL without blocking the
// caller. Errors are logged and forgotten; the next ResolveStream will
// simply retry.
func (c *Client) Preload(sourceURL string) {
	if sourceURL == "" {
		return
	}

	c.cacheMu.Lock()
	if _, ok := c.streamCache[sourceURL]; ok {
		c.cacheMu.Unlock()
		return
	}
	c.cacheMu.Unlock()

	go func() {
		if _, err := c.ResolveStream(context.Background(), sourceURL); err != nil {
			zlog.Debug().Err(err).Str("source_url", sourceURL).Msg("backend: preload failed")
		}
	}()
}

func (c *Client) fetchStreamURL(ctx context.Context, sourceURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.streamTimeout)
	defer cancel()

	params := url.Values{}
	params.Set("url", sourceURL)

	var resp streamResponse
	if err := c.getJSON(ctx, "/api/stream?"+params.Encode(), &resp); err != nil {
		return "", errors.Wrap(err, "failed to resolve stream URL")
	}
	if resp.StreamURL == "" {
		return "", errors.New("backend returned an empty stream URL")
	}
	return resp.StreamURL, nil
}

// DownloadURL returns the backend's bulk-download URL for a track's
// source URL. Quality is one of best, medium, worst (default best).
func (c *Client) DownloadURL(sourceURL, quality string) string {
	if quality == "" {
		quality = "best"
	}
	params := url.Values{}
	params.Set("url", sourceURL)
	params.Set("quality", quality)
	return c.baseURL + "/api/download?" + params.Encode()
}

// FetchDownload retrieves the full audio payload for a source URL, for
// offline storage.
func (c *Client) FetchDownload(ctx context.Context, sourceURL, quality string) ([]byte, string, error) {
	if sourceURL == "" {
		return nil, "", errors.New("source URL is required")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.DownloadURL(sourceURL, quality), nil)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", errors.Errorf("backend download error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to read download payload")
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "audio/mpeg"
	}
	return payload, mimeType, nil
}

// getJSON performs a GET against a backend path and decodes the JSON
// body into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
			return errors.Errorf("backend error %d: %s", resp.StatusCode, apiErr.Error)
		}
		return errors.Errorf("backend error %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}
