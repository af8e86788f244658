package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newNetEaseServer(t *testing.T, search, lyric string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/search/get":
			if r.URL.Query().Get("type") != "1" {
				t.Errorf("unexpected search type %s", r.URL.Query().Get("type"))
			}
			w.Write([]byte(search))
		case "/api/song/lyric":
			if r.URL.Query().Get("id") != "42" {
				t.Errorf("expected matching song id 42, got %s", r.URL.Query().Get("id"))
			}
			w.Write([]byte(lyric))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

const neteaseSearch = `{"code":200,"result":{"songs":[
	{"id":7,"name":"One More Time (Live)","artists":[{"name":"Daft Punk"}]},
	{"id":42,"name":"One More Time","artists":[{"name":"Daft Punk"}]}
]}}`

func TestNetEaseProvider_FetchSynced(t *testing.T) {
	server := newNetEaseServer(t, neteaseSearch, `{"code":200,"lrc":{"lyric":"[00:00.000] One more time\n[00:05.120] Celebrate"}}`)
	defer server.Close()

	p := NewNetEaseProvider(WithBaseURL(server.URL), WithRetry(0, 0))
	l, err := p.FetchSynced(context.Background(), "Daft Punk", "One More Time")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l == nil || !l.IsSynced {
		t.Fatalf("expected synced lyrics, got %+v", l)
	}
	if l.PlainLyrics != "One more time\nCelebrate" {
		t.Errorf("unexpected plain %q", l.PlainLyrics)
	}
	if l.Source != "netease" {
		t.Errorf("unexpected source %s", l.Source)
	}
}

func TestNetEaseProvider_NoResult(t *testing.T) {
	tests := []struct {
		name   string
		search string
		lyric  string
	}{
		{"no songs", `{"code":200,"result":{"songs":[]}}`, ""},
		{"no lyric flag", neteaseSearch, `{"code":200,"nolyric":true}`},
		{"empty lyric", neteaseSearch, `{"code":200,"lrc":{"lyric":""}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newNetEaseServer(t, tt.search, tt.lyric)
			defer server.Close()

			p := NewNetEaseProvider(WithBaseURL(server.URL), WithRetry(0, 0))
			l, err := p.FetchSynced(context.Background(), "Daft Punk", "One More Time")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if l != nil {
				t.Errorf("expected nil, got %+v", l)
			}
		})
	}
}

func TestNetEaseProvider_FetchPlainUntimed(t *testing.T) {
	server := newNetEaseServer(t, neteaseSearch, `{"code":200,"lrc":{"lyric":"just words\nno timing"}}`)
	defer server.Close()

	p := NewNetEaseProvider(WithBaseURL(server.URL), WithRetry(0, 0))

	synced, err := p.FetchSynced(context.Background(), "Daft Punk", "One More Time")
	if err != nil || synced != nil {
		t.Fatalf("expected no synced result, got %+v, %v", synced, err)
	}
	plain, err := p.FetchPlain(context.Background(), "Daft Punk", "One More Time")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plain == nil || plain.IsSynced || plain.PlainLyrics != "just words\nno timing" {
		t.Errorf("unexpected plain result %+v", plain)
	}
}

func TestNetEaseProvider_ReusesRecentLookup(t *testing.T) {
	var requests atomic.Int32
	inner := newNetEaseServer(t, neteaseSearch, `{"code":200,"lrc":{"lyric":"[00:00.00] One more time"}}`)
	defer inner.Close()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		inner.Config.Handler.ServeHTTP(w, r)
	}))
	defer server.Close()

	p := NewNetEaseProvider(WithBaseURL(server.URL), WithRetry(0, 0))
	ctx := context.Background()

	if l, err := p.FetchSynced(ctx, "Daft Punk", "One More Time"); err != nil || l == nil {
		t.Fatalf("FetchSynced = %+v, %v", l, err)
	}
	if l, err := p.FetchPlain(ctx, "daft punk", "one more time "); err != nil || l == nil {
		t.Fatalf("FetchPlain = %+v, %v", l, err)
	}
	if got := requests.Load(); got != 2 {
		t.Errorf("requests = %d, want 2 (search + lyric once)", got)
	}

	p.now = func() time.Time { return time.Now().Add(2 * neteaseMemoTTL) }
	if _, err := p.FetchPlain(ctx, "Daft Punk", "One More Time"); err != nil {
		t.Fatalf("FetchPlain: %v", err)
	}
	if got := requests.Load(); got != 4 {
		t.Errorf("requests = %d, want 4 after the memo expired", got)
	}
}
