package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/contre95/soullyrics/src/music"
)

func newEntry(artist, title, source, plain, lrc string, fetchedAt time.Time) *music.Lyrics {
	l := music.NewLyrics(source, plain, lrc)
	l.Normalize(music.Fingerprint(artist, title), fetchedAt)
	l.Artist, l.Title = artist, title
	return l
}

// exerciseCache runs the behaviour every backend must share.
func exerciseCache(t *testing.T, cache music.LyricsCache) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	fp := music.Fingerprint("Daft Punk", "One More Time")

	got, err := cache.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get on empty cache: %v", err)
	}
	if got != nil {
		t.Fatalf("expected miss, got %+v", got)
	}

	plain := newEntry("Daft Punk", "One More Time", "lyricsovh", "One more time\nWe're gonna celebrate", "", now.Add(-time.Hour))
	if err := cache.Put(ctx, plain); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err = cache.Get(ctx, fp)
	if err != nil || got == nil {
		t.Fatalf("expected hit, got %+v, %v", got, err)
	}
	if got.Artist != "Daft Punk" || got.Title != "One More Time" {
		t.Errorf("metadata not persisted: %+v", got)
	}
	if got.ID != plain.ID || got.IsSynced || got.LrcLyrics != nil || got.Source != "lyricsovh" {
		t.Errorf("unexpected entry %+v", got)
	}
	if !got.FetchedAt.Equal(plain.FetchedAt) {
		t.Errorf("fetchedAt = %s, want %s", got.FetchedAt, plain.FetchedAt)
	}

	// Same fingerprint, newer synced result replaces the row
	synced := newEntry("Daft Punk", "One More Time", "lrclib", "", "[00:00.00]One more time\n[00:05.00]Celebrate", now)
	if err := cache.Put(ctx, synced); err != nil {
		t.Fatalf("Put synced: %v", err)
	}
	got, _ = cache.Get(ctx, fp)
	if got == nil || got.ID != synced.ID || !got.IsSynced || got.Lrc() != synced.Lrc() {
		t.Fatalf("expected synced entry to win, got %+v", got)
	}

	other := newEntry("Sigur Rós", "Svefn-g-englar", "lrclib", "Tjú, tjú", "", now.Add(-2*time.Hour))
	if err := cache.Put(ctx, other); err != nil {
		t.Fatalf("Put other: %v", err)
	}

	all, err := cache.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected one row per fingerprint (2), got %d", len(all))
	}
	if all[0].SongID != fp {
		t.Errorf("expected most recent first, got %s", all[0].SongID)
	}

	found, err := cache.SearchText(ctx, "CELEBRATE")
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if len(found) != 1 || found[0].SongID != fp {
		t.Errorf("expected case-insensitive match on text, got %+v", found)
	}
	found, _ = cache.SearchText(ctx, "TJU, tju")
	if len(found) != 1 || found[0].ID != other.ID {
		t.Errorf("expected diacritic-folded match, got %+v", found)
	}
	found, _ = cache.SearchText(ctx, "sigur ros")
	if len(found) != 1 || found[0].ID != other.ID {
		t.Errorf("expected folded match on artist, got %+v", found)
	}
	found, _ = cache.SearchText(ctx, "svefn_g")
	if len(found) != 1 || found[0].ID != other.ID {
		t.Errorf("expected match on song id, got %+v", found)
	}
	found, _ = cache.SearchText(ctx, "100%")
	if len(found) != 0 {
		t.Errorf("expected no match for literal percent, got %d", len(found))
	}

	// The replaced id is gone, the live one deletes
	if err := cache.Delete(ctx, plain.ID); !errors.Is(err, music.ErrCacheEntryNotFound) {
		t.Errorf("expected ErrCacheEntryNotFound for superseded id, got %v", err)
	}
	if err := cache.Delete(ctx, synced.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, _ = cache.Get(ctx, fp)
	if got != nil {
		t.Errorf("expected miss after delete, got %+v", got)
	}
	all, _ = cache.GetAll(ctx)
	if len(all) != 1 {
		t.Errorf("expected 1 entry left, got %d", len(all))
	}

	exerciseConcurrentPuts(t, cache)
}

// exerciseConcurrentPuts races writers on one fingerprint. Whatever the
// interleaving, one entry per fingerprint remains and only its id is deletable.
func exerciseConcurrentPuts(t *testing.T, cache music.LyricsCache) {
	t.Helper()
	ctx := context.Background()
	fp := music.Fingerprint("Justice", "D.A.N.C.E.")

	for round := 0; round < 20; round++ {
		writers := make([]*music.Lyrics, 4)
		for i := range writers {
			writers[i] = newEntry("Justice", "D.A.N.C.E.", fmt.Sprintf("writer%d", i), fmt.Sprintf("round %d writer %d", round, i), "", time.Now().UTC())
		}
		var wg sync.WaitGroup
		errs := make(chan error, len(writers))
		for _, l := range writers {
			wg.Add(1)
			go func(l *music.Lyrics) {
				defer wg.Done()
				errs <- cache.Put(ctx, l)
			}(l)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("concurrent Put: %v", err)
			}
		}

		all, err := cache.GetAll(ctx)
		if err != nil {
			t.Fatalf("GetAll: %v", err)
		}
		matching := 0
		for _, l := range all {
			if l.SongID == fp {
				matching++
			}
		}
		if matching != 1 {
			t.Fatalf("round %d: %d entries for %s, want 1", round, matching, fp)
		}
		winner, err := cache.Get(ctx, fp)
		if err != nil || winner == nil {
			t.Fatalf("Get: %+v, %v", winner, err)
		}
		for _, l := range writers {
			if l.ID == winner.ID {
				continue
			}
			if err := cache.Delete(ctx, l.ID); !errors.Is(err, music.ErrCacheEntryNotFound) {
				t.Fatalf("round %d: Delete of a losing id = %v, want ErrCacheEntryNotFound", round, err)
			}
		}
		if got, _ := cache.Get(ctx, fp); got == nil || got.ID != winner.ID {
			t.Fatalf("round %d: deleting losers removed the winner, got %+v", round, got)
		}
	}
}
