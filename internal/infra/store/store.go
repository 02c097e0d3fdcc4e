// Package store implements the local persistence layer on SQLite:
// downloaded tracks, recent-play records and user playlists.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	zlog "github.com/rs/zerolog/log"
)

// Change identifies which table a mutation touched. Subscribers use it
// to refresh only the views that depend on the changed data.
type Change struct {
	Table string
}

const (
	TableDownloads = "downloads"
	TableRecents   = "recents"
	TablePlaylists = "playlists"
)

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB

	obsMu     sync.Mutex
	observers map[uuid.UUID]func(Change)
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS downloads (
		track_id      TEXT PRIMARY KEY,
		title         TEXT NOT NULL,
		artist        TEXT NOT NULL DEFAULT '',
		duration_secs INTEGER NOT NULL DEFAULT 0,
		thumbnail_url TEXT NOT NULL DEFAULT '',
		source_url    TEXT NOT NULL,
		mime_type     TEXT NOT NULL,
		size_bytes    INTEGER NOT NULL,
		payload       BLOB NOT NULL,
		downloaded_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS recents (
		track_id       TEXT PRIMARY KEY,
		title          TEXT NOT NULL,
		artist         TEXT NOT NULL DEFAULT '',
		duration_secs  INTEGER NOT NULL DEFAULT 0,
		thumbnail_url  TEXT NOT NULL DEFAULT '',
		source_url     TEXT NOT NULL,
		last_played_at TIMESTAMP NOT NULL,
		position_secs  REAL NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS playlists (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS playlist_tracks (
		playlist_id   TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
		track_id      TEXT NOT NULL,
		title         TEXT NOT NULL,
		artist        TEXT NOT NULL DEFAULT '',
		duration_secs INTEGER NOT NULL DEFAULT 0,
		thumbnail_url TEXT NOT NULL DEFAULT '',
		source_url    TEXT NOT NULL,
		added_at      TIMESTAMP NOT NULL,
		position      INTEGER NOT NULL,
		PRIMARY KEY (playlist_id, track_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_recents_last_played ON recents(last_played_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_playlist_tracks_position ON playlist_tracks(playlist_id, position)`,
}

// Open opens (creating if needed) the database at path and applies
// migrations. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create store directory")
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "failed to apply migration")
		}
	}

	zlog.Debug().Str("path", path).Msg("store: database opened")
	return &Store{
		db:        db,
		observers: make(map[uuid.UUID]func(Change)),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Subscribe registers a callback invoked after every committed
// mutation. Returns an id for Unsubscribe.
func (s *Store) Subscribe(fn func(Change)) uuid.UUID {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	id := uuid.New()
	s.observers[id] = fn
	return id
}

// Unsubscribe removes a previously registered callback.
func (s *Store) Unsubscribe(id uuid.UUID) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	delete(s.observers, id)
}

// notify fans a change out to all subscribers. Callbacks run on the
// mutating goroutine and must not block.
func (s *Store) notify(table string) {
	s.obsMu.Lock()
	fns := make([]func(Change), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(Change{Table: table})
	}
}
