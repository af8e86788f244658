package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLyricsOvhProvider_FetchPlain(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		statusCode int
		wantPlain  string
		wantNil    bool
	}{
		{
			name:       "hit",
			response:   `{"lyrics":"One more time\r\nWe're gonna celebrate\n"}`,
			statusCode: http.StatusOK,
			wantPlain:  "One more time\nWe're gonna celebrate",
		},
		{
			name:       "not found",
			response:   `{"error":"No lyrics found"}`,
			statusCode: http.StatusNotFound,
			wantNil:    true,
		},
		{
			name:       "error field with 200",
			response:   `{"error":"No lyrics found"}`,
			statusCode: http.StatusOK,
			wantNil:    true,
		},
		{
			name:       "blank lyrics",
			response:   `{"lyrics":"   "}`,
			statusCode: http.StatusOK,
			wantNil:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.EscapedPath() != "/v1/Daft%20Punk/One%20More%20Time" {
					t.Errorf("unexpected path %s", r.URL.EscapedPath())
				}
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.response))
			}))
			defer server.Close()

			p := NewLyricsOvhProvider(WithBaseURL(server.URL), WithRetry(0, 0))
			l, err := p.FetchPlain(context.Background(), "Daft Punk", "One More Time")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if l != nil {
					t.Errorf("expected nil, got %+v", l)
				}
				return
			}
			if l == nil {
				t.Fatal("expected lyrics")
			}
			if l.PlainLyrics != tt.wantPlain {
				t.Errorf("plain = %q, want %q", l.PlainLyrics, tt.wantPlain)
			}
			if l.IsSynced || l.LrcLyrics != nil {
				t.Error("lyrics.ovh never returns synced lyrics")
			}
		})
	}
}

func TestNew_Registry(t *testing.T) {
	for _, name := range Known {
		p, err := New(name)
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("expected name %s, got %s", name, p.Name())
		}
	}
	if _, err := New("genius"); err == nil {
		t.Error("expected error for unknown provider")
	}
}
