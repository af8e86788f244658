package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/contre95/soullyrics/src/music"
)

// Options selects and configures a cache backend.
type Options struct {
	Driver    string // sqlite3, libsql or redis
	Path      string // sqlite3 file
	URL       string // libsql or redis address
	Password  string // redis
	AuthToken string // libsql
}

// Open returns the cache backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (music.LyricsCache, error) {
	switch opts.Driver {
	case "", "sqlite3":
		slog.Info("Opening lyrics cache", "driver", "sqlite3", "path", opts.Path)
		return NewSqliteCache(opts.Path)
	case "libsql":
		slog.Info("Opening lyrics cache", "driver", "libsql", "url", opts.URL)
		return NewLibsqlCache(opts.URL, opts.AuthToken)
	case "redis":
		slog.Info("Opening lyrics cache", "driver", "redis", "addr", opts.URL)
		return NewRedisCache(ctx, opts.URL, opts.Password)
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", opts.Driver)
	}
}
