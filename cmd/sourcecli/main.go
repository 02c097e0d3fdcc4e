// Package main provides a maintenance CLI for the backend and the
// local library: search, stream resolution, downloads and playlists.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/satvikx/beats/internal/infra/backend"
	"github.com/satvikx/beats/internal/infra/config"
	"github.com/satvikx/beats/internal/infra/store"
)

var (
	app        = kingpin.New("beats-sourcecli", "beats source and library maintenance CLI")
	configPath = app.Flag("config", "Path to config file").Default("config/player.yaml").String()

	// search command
	searchCmd   = app.Command("search", "Search the streaming backend")
	searchQuery = searchCmd.Arg("query", "Search query").Required().Strings()
	searchLimit = searchCmd.Flag("limit", "Maximum results").Default("10").Int()

	// resolve command
	resolveCmd = app.Command("resolve", "Resolve a source URL to a stream URL")
	resolveURL = resolveCmd.Arg("url", "Track source URL").Required().String()

	// download command
	downloadCmd   = app.Command("download", "Download the first search match into the local library")
	downloadQuery = downloadCmd.Arg("query", "Search query").Required().Strings()

	// link command
	linkCmd   = app.Command("link", "Print the bulk-download URL for the first search match")
	linkQuery = linkCmd.Arg("query", "Search query").Required().Strings()

	// downloads command
	downloadsCmd = app.Command("downloads", "List downloaded tracks")

	// remove command
	removeCmd     = app.Command("remove", "Remove a track from the local library")
	removeTrackID = removeCmd.Arg("track-id", "Track ID").Required().String()

	// recents command
	recentsCmd   = app.Command("recents", "List recently played tracks")
	recentsLimit = recentsCmd.Flag("limit", "Maximum entries").Default("20").Int()

	// playlist commands
	plCreateCmd  = app.Command("playlist-create", "Create a playlist")
	plCreateName = plCreateCmd.Arg("name", "Playlist name").Required().String()

	plListCmd = app.Command("playlist-list", "List playlists")

	plAddCmd   = app.Command("playlist-add", "Add the first search match to a playlist")
	plAddID    = plAddCmd.Arg("playlist-id", "Playlist ID (UUID)").Required().String()
	plAddQuery = plAddCmd.Arg("query", "Search query").Required().Strings()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}

	backendClient, err := backend.New(backend.Config{
		BaseURL:       cfg.Backend.BaseURL,
		SearchTimeout: cfg.SearchTimeout(),
		StreamTimeout: cfg.StreamTimeout(),
	})
	if err != nil {
		fatalf("Failed to create backend client: %v", err)
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch command {
	case searchCmd.FullCommand():
		search(ctx, backendClient, joinArgs(*searchQuery), *searchLimit)
	case resolveCmd.FullCommand():
		resolve(ctx, backendClient, *resolveURL)
	case downloadCmd.FullCommand():
		download(ctx, backendClient, st, joinArgs(*downloadQuery), cfg.Backend.DownloadQuality)
	case linkCmd.FullCommand():
		link(ctx, backendClient, joinArgs(*linkQuery), cfg.Backend.DownloadQuality)
	case downloadsCmd.FullCommand():
		listDownloads(ctx, st)
	case removeCmd.FullCommand():
		remove(ctx, st, *removeTrackID)
	case recentsCmd.FullCommand():
		listRecents(ctx, st, *recentsLimit)
	case plCreateCmd.FullCommand():
		playlistCreate(ctx, st, *plCreateName)
	case plListCmd.FullCommand():
		playlistList(ctx, st)
	case plAddCmd.FullCommand():
		playlistAdd(ctx, backendClient, st, *plAddID, joinArgs(*plAddQuery))
	}
}

func search(ctx context.Context, client *backend.Client, query string, limit int) {
	results, err := client.Search(ctx, query, limit)
	if err != nil {
		fatalf("Search failed: %v", err)
	}

	for _, t := range results {
		fmt.Printf("%-16s %-40s %-24s %s\n", t.ID, truncate(t.Title, 40), truncate(t.Artist, 24), t.Duration)
	}
	fmt.Printf("%d result(s)\n", len(results))
}

func resolve(ctx context.Context, client *backend.Client, sourceURL string) {
	streamURL, err := client.ResolveStream(ctx, sourceURL)
	if err != nil {
		fatalf("Resolution failed: %v", err)
	}
	fmt.Println(streamURL)
}

func download(ctx context.Context, client *backend.Client, st *store.Store, query, quality string) {
	results, err := client.Search(ctx, query, 1)
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if len(results) == 0 {
		fatalf("No results for %q", query)
	}
	t := results[0]

	fmt.Printf("Downloading %s by %s (%s quality)...\n", t.Title, t.Artist, quality)
	payload, mimeType, err := client.FetchDownload(ctx, t.SourceURL, quality)
	if err != nil {
		fatalf("Download failed: %v", err)
	}
	if err := st.PutDownload(ctx, t, payload, mimeType); err != nil {
		fatalf("Failed to store download: %v", err)
	}
	fmt.Printf("Stored %d bytes (%s)\n", len(payload), mimeType)
}

func link(ctx context.Context, client *backend.Client, query, quality string) {
	results, err := client.Search(ctx, query, 1)
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if len(results) == 0 {
		fatalf("No results for %q", query)
	}
	fmt.Println(client.DownloadURL(results[0].SourceURL, quality))
}

func listDownloads(ctx context.Context, st *store.Store) {
	downloads, err := st.ListDownloads(ctx)
	if err != nil {
		fatalf("Failed to list downloads: %v", err)
	}

	for _, d := range downloads {
		fmt.Printf("%-16s %-40s %-24s %8d KiB  %s\n",
			d.Track.ID, truncate(d.Track.Title, 40), truncate(d.Track.Artist, 24),
			d.SizeBytes/1024, d.DownloadedAt.Format(time.DateTime))
	}
	fmt.Printf("%d download(s)\n", len(downloads))
}

func remove(ctx context.Context, st *store.Store, trackID string) {
	if err := st.DeleteDownload(ctx, trackID); err != nil {
		fatalf("Failed to remove download: %v", err)
	}
	fmt.Println("Removed")
}

func listRecents(ctx context.Context, st *store.Store, limit int) {
	recents, err := st.ListRecents(ctx, limit)
	if err != nil {
		fatalf("Failed to list recents: %v", err)
	}

	for _, r := range recents {
		fmt.Printf("%-16s %-40s %-24s %s\n",
			r.Track.ID, truncate(r.Track.Title, 40), truncate(r.Track.Artist, 24),
			r.LastPlayedAt.Format(time.DateTime))
	}
	fmt.Printf("%d recent(s)\n", len(recents))
}

func playlistCreate(ctx context.Context, st *store.Store, name string) {
	pl, err := st.CreatePlaylist(ctx, name)
	if err != nil {
		fatalf("Failed to create playlist: %v", err)
	}
	fmt.Printf("Created playlist %s: %s\n", pl.ID, pl.Name)
}

func playlistList(ctx context.Context, st *store.Store) {
	playlists, err := st.ListPlaylists(ctx)
	if err != nil {
		fatalf("Failed to list playlists: %v", err)
	}

	for _, pl := range playlists {
		fmt.Printf("%s  %-32s %3d track(s)  updated %s\n",
			pl.ID, truncate(pl.Name, 32), len(pl.Tracks), pl.UpdatedAt.Format(time.DateTime))
	}
	fmt.Printf("%d playlist(s)\n", len(playlists))
}

func playlistAdd(ctx context.Context, client *backend.Client, st *store.Store, playlistID, query string) {
	id, err := uuid.Parse(playlistID)
	if err != nil {
		fatalf("Invalid playlist ID: %v", err)
	}

	results, err := client.Search(ctx, query, 1)
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if len(results) == 0 {
		fatalf("No results for %q", query)
	}

	if err := st.AddPlaylistTrack(ctx, id, results[0]); err != nil {
		fatalf("Failed to add track: %v", err)
	}
	fmt.Printf("Added %s by %s\n", results[0].Title, results[0].Artist)
}

func joinArgs(words []string) string {
	return strings.Join(words, " ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func fatalf(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}
