package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	redisClient "github.com/go-redis/redis/v8"

	"github.com/contre95/soullyrics/src/music"
)

const (
	redisEntryPrefix = "lyrics:"
	// lyrics id -> fingerprint. Fingerprints never contain ':' so this can't collide.
	redisIDIndex = "lyrics:index:ids"
)

// RedisCache stores each entry as a JSON blob under lyrics:<fingerprint>.
type RedisCache struct {
	client *redisClient.Client
}

// NewRedisCache connects to addr, which is either host:port or a redis:// / rediss:// URL.
func NewRedisCache(ctx context.Context, addr, password string) (*RedisCache, error) {
	var opt *redisClient.Options
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redisClient.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opt = parsed
		if password != "" {
			opt.Password = password
		}
	} else {
		opt = &redisClient.Options{Addr: addr, Password: password}
	}
	client := redisClient.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opt.Addr, err)
	}
	return &RedisCache{client: client}, nil
}

func entryKey(fingerprint string) string {
	return redisEntryPrefix + fingerprint
}

func (r *RedisCache) Get(ctx context.Context, fingerprint string) (*music.Lyrics, error) {
	data, err := r.client.Get(ctx, entryKey(fingerprint)).Bytes()
	if err != nil {
		if err == redisClient.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache entry %s: %w", fingerprint, err)
	}
	var l music.Lyrics
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry %s: %w", fingerprint, err)
	}
	return &l, nil
}

// redisTxRetries bounds optimistic retries when another writer touches the same key.
const redisTxRetries = 16

// watched runs fn in a WATCH transaction on key, retrying when a concurrent
// writer invalidates it.
func (r *RedisCache) watched(ctx context.Context, key string, fn func(*redisClient.Tx) error) error {
	for i := 0; i < redisTxRetries; i++ {
		err := r.client.Watch(ctx, fn, key)
		if !errors.Is(err, redisClient.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("gave up on %s after %d conflicting writes", key, redisTxRetries)
}

// storedID returns the id of the blob under key, empty when there is none.
func storedID(ctx context.Context, tx *redisClient.Tx, key string) (string, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redisClient.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var blob struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &blob); err != nil {
		return "", fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return blob.ID, nil
}

// Put replaces the blob and swaps its id in the index in one transaction, so
// concurrent writers for a fingerprint leave exactly one indexed id.
func (r *RedisCache) Put(ctx context.Context, lyrics *music.Lyrics) error {
	if lyrics == nil || lyrics.SongID == "" || lyrics.ID == "" {
		return fmt.Errorf("cannot cache lyrics without song id and id")
	}
	data, err := json.Marshal(lyrics)
	if err != nil {
		return err
	}
	key := entryKey(lyrics.SongID)
	err = r.watched(ctx, key, func(tx *redisClient.Tx) error {
		previousID, err := storedID(ctx, tx, key)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redisClient.Pipeliner) error {
			if previousID != "" && previousID != lyrics.ID {
				pipe.HDel(ctx, redisIDIndex, previousID)
			}
			pipe.Set(ctx, key, data, 0)
			pipe.HSet(ctx, redisIDIndex, lyrics.ID, lyrics.SongID)
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", lyrics.SongID, err)
	}
	return nil
}

// GetAll walks the id index. An index id is only trusted when the blob it points
// at still carries it; others are leftovers and get pruned. Entries are returned
// most recently fetched first.
func (r *RedisCache) GetAll(ctx context.Context) ([]*music.Lyrics, error) {
	index, err := r.client.HGetAll(ctx, redisIDIndex).Result()
	if err != nil && err != redisClient.Nil {
		return nil, fmt.Errorf("failed to read cache index: %w", err)
	}
	results := []*music.Lyrics{}
	if len(index) == 0 {
		return results, nil
	}

	ids := make([]string, 0, len(index))
	keys := make([]string, 0, len(index))
	for id, fp := range index {
		ids = append(ids, id)
		keys = append(keys, entryKey(fp))
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entries: %w", err)
	}

	var stale []string
	seen := make(map[string]bool, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var l music.Lyrics
		if err := json.Unmarshal([]byte(s), &l); err != nil {
			return nil, fmt.Errorf("failed to decode cache entry: %w", err)
		}
		if l.ID != ids[i] || seen[l.SongID] {
			stale = append(stale, ids[i])
			continue
		}
		seen[l.SongID] = true
		results = append(results, &l)
	}
	if len(stale) > 0 {
		if err := r.client.HDel(ctx, redisIDIndex, stale...).Err(); err != nil {
			slog.Warn("Failed to prune stale cache index ids", "count", len(stale), "error", err)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FetchedAt.After(results[j].FetchedAt)
	})
	return results, nil
}

// Delete removes the entry only while it still carries lyricsID; a superseded id
// is not found.
func (r *RedisCache) Delete(ctx context.Context, lyricsID string) error {
	fp, err := r.client.HGet(ctx, redisIDIndex, lyricsID).Result()
	if errors.Is(err, redisClient.Nil) {
		return music.ErrCacheEntryNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", lyricsID, err)
	}
	key := entryKey(fp)
	found := false
	err = r.watched(ctx, key, func(tx *redisClient.Tx) error {
		currentID, err := storedID(ctx, tx, key)
		if err != nil {
			return err
		}
		found = currentID == lyricsID
		_, err = tx.TxPipelined(ctx, func(pipe redisClient.Pipeliner) error {
			if found {
				pipe.Del(ctx, key)
			}
			pipe.HDel(ctx, redisIDIndex, lyricsID)
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", lyricsID, err)
	}
	if !found {
		return music.ErrCacheEntryNotFound
	}
	return nil
}

// SearchText is a full scan; redis has no substring index.
func (r *RedisCache) SearchText(ctx context.Context, query string) ([]*music.Lyrics, error) {
	q := strings.TrimSpace(music.FoldText(query))
	if q == "" {
		return []*music.Lyrics{}, nil
	}
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	results := []*music.Lyrics{}
	for _, l := range all {
		if strings.Contains(searchText(l), q) {
			results = append(results, l)
		}
	}
	return results, nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
