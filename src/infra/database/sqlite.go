package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/contre95/soullyrics/src/music"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

const (
	// CurrentSchemaVersion is bumped whenever lyrics_cache changes shape.
	CurrentSchemaVersion = "1"

	// fixed width so fetched_at sorts lexicographically
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// SqlCache is a database/sql implementation of music.LyricsCache. It serves both
// the local sqlite3 driver and remote libsql (Turso) databases.
type SqlCache struct {
	db     *sql.DB
	driver string
}

// NewSqliteCache opens (or creates) a SQLite cache file.
func NewSqliteCache(path string) (*SqlCache, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)
	return newSqlCache(db, "sqlite3")
}

// NewLibsqlCache connects to a libsql server. authToken may be empty for local sqld.
func NewLibsqlCache(dbURL, authToken string) (*SqlCache, error) {
	dsn, err := libsqlDSN(dbURL, authToken)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping libsql database: %w", err)
	}
	return newSqlCache(db, "libsql")
}

// libsqlDSN adds authToken to the query of dbURL, keeping any parameters it already has.
func libsqlDSN(dbURL, authToken string) (string, error) {
	if authToken == "" {
		return dbURL, nil
	}
	u, err := url.Parse(dbURL)
	if err != nil {
		return "", fmt.Errorf("invalid libsql url: %w", err)
	}
	q := u.Query()
	q.Set("authToken", authToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func newSqlCache(db *sql.DB, driver string) (*SqlCache, error) {
	c := &SqlCache{db: db, driver: driver}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return c, nil
}

func (c *SqlCache) initSchema() error {
	if err := createTables(c.db); err != nil {
		return err
	}
	version := c.getMeta("schema_version")
	if version == CurrentSchemaVersion {
		return nil
	}
	if version != "" {
		slog.Info("Migrating cache schema", "current", version, "target", CurrentSchemaVersion)
	}
	return c.setMeta("schema_version", CurrentSchemaVersion)
}

func createTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS lyrics_cache (
			song_id TEXT PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			artist TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			plain_lyrics TEXT NOT NULL,
			lrc_lyrics TEXT,
			is_synced BOOLEAN NOT NULL DEFAULT FALSE,
			source TEXT NOT NULL,
			fetched_at TEXT NOT NULL,
			search_text TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cache_meta (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lyrics_cache_fetched ON lyrics_cache(fetched_at DESC)`,
	}
	// libsql over HTTP runs one statement per call
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (c *SqlCache) getMeta(key string) string {
	var value string
	if err := c.db.QueryRow("SELECT value FROM cache_meta WHERE key = ?", key).Scan(&value); err != nil {
		return ""
	}
	return value
}

func (c *SqlCache) setMeta(key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := c.db.Exec(`
		INSERT INTO cache_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now)
	return err
}

const lyricsColumns = `id, song_id, artist, title, plain_lyrics, lrc_lyrics, is_synced, source, fetched_at`

// Get returns the entry for a fingerprint, or nil on a miss.
func (c *SqlCache) Get(ctx context.Context, fingerprint string) (*music.Lyrics, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+lyricsColumns+` FROM lyrics_cache WHERE song_id = ?`, fingerprint)
	l, err := scanLyrics(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry %s: %w", fingerprint, err)
	}
	return l, nil
}

// Put upserts by song id. The last write wins, including its id.
func (c *SqlCache) Put(ctx context.Context, lyrics *music.Lyrics) error {
	if lyrics == nil || lyrics.SongID == "" || lyrics.ID == "" {
		return fmt.Errorf("cannot cache lyrics without song id and id")
	}
	var lrc sql.NullString
	if lyrics.LrcLyrics != nil {
		lrc = sql.NullString{String: *lyrics.LrcLyrics, Valid: true}
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO lyrics_cache (song_id, id, artist, title, plain_lyrics, lrc_lyrics, is_synced, source, fetched_at, search_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(song_id) DO UPDATE SET
			id = excluded.id,
			artist = excluded.artist,
			title = excluded.title,
			plain_lyrics = excluded.plain_lyrics,
			lrc_lyrics = excluded.lrc_lyrics,
			is_synced = excluded.is_synced,
			source = excluded.source,
			fetched_at = excluded.fetched_at,
			search_text = excluded.search_text
	`, lyrics.SongID, lyrics.ID, lyrics.Artist, lyrics.Title, lyrics.PlainLyrics, lrc, lyrics.IsSynced, lyrics.Source,
		lyrics.FetchedAt.UTC().Format(timeLayout), searchText(lyrics))
	if err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", lyrics.SongID, err)
	}
	return nil
}

// GetAll returns every entry, most recently fetched first.
func (c *SqlCache) GetAll(ctx context.Context) ([]*music.Lyrics, error) {
	return c.query(ctx, `SELECT `+lyricsColumns+` FROM lyrics_cache ORDER BY fetched_at DESC`)
}

// Delete removes the entry with the given lyrics id.
func (c *SqlCache) Delete(ctx context.Context, lyricsID string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM lyrics_cache WHERE id = ?`, lyricsID)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", lyricsID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return music.ErrCacheEntryNotFound
	}
	return nil
}

// SearchText matches the folded query against plain text and metadata.
func (c *SqlCache) SearchText(ctx context.Context, query string) ([]*music.Lyrics, error) {
	q := strings.TrimSpace(music.FoldText(query))
	if q == "" {
		return []*music.Lyrics{}, nil
	}
	return c.query(ctx, `SELECT `+lyricsColumns+` FROM lyrics_cache WHERE search_text LIKE ? ESCAPE '\' ORDER BY fetched_at DESC`,
		"%"+escapeLike(q)+"%")
}

func (c *SqlCache) Close() error {
	return c.db.Close()
}

func (c *SqlCache) query(ctx context.Context, q string, args ...any) ([]*music.Lyrics, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	defer rows.Close()

	results := []*music.Lyrics{}
	for rows.Next() {
		l, err := scanLyrics(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		results = append(results, l)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLyrics(s scanner) (*music.Lyrics, error) {
	var (
		l         music.Lyrics
		lrc       sql.NullString
		fetchedAt string
	)
	if err := s.Scan(&l.ID, &l.SongID, &l.Artist, &l.Title, &l.PlainLyrics, &lrc, &l.IsSynced, &l.Source, &fetchedAt); err != nil {
		return nil, err
	}
	if lrc.Valid {
		l.LrcLyrics = &lrc.String
	}
	if t, err := time.Parse(timeLayout, fetchedAt); err == nil {
		l.FetchedAt = t
	}
	return &l, nil
}

// searchText is the folded haystack stored next to each entry.
func searchText(l *music.Lyrics) string {
	return music.FoldText(strings.Join([]string{l.Artist, l.Title, l.PlainLyrics, l.Source, l.SongID}, "\n"))
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
