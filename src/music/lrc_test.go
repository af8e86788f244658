package music

import (
	"testing"
	"time"
)

const threeLines = "[00:00.00]First\n[00:05.00]Second\n[00:10.00]Third"

func TestParseLrc(t *testing.T) {
	parsed := ParseLrc(threeLines)

	if len(parsed.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(parsed.Lines))
	}
	want := []LrcLine{
		{Timestamp: 0, Text: "First"},
		{Timestamp: 5 * time.Second, Text: "Second"},
		{Timestamp: 10 * time.Second, Text: "Third"},
	}
	for i, line := range parsed.Lines {
		if line != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, line, want[i])
		}
	}
	if !parsed.Monotonic() {
		t.Error("expected monotonic index")
	}
}

func TestParseLrc_Headers(t *testing.T) {
	text := "[ti:One More Time]\n[ar:Daft Punk]\n[al:Discovery]\n[by:someone]\n\n[00:01.50]  One more time  \n[01:02.345]Celebration"
	parsed := ParseLrc(text)

	if parsed.Title != "One More Time" || parsed.Artist != "Daft Punk" || parsed.Album != "Discovery" {
		t.Errorf("unexpected headers: %+v", parsed)
	}
	if len(parsed.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(parsed.Lines))
	}
	if parsed.Lines[0].Timestamp != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %s", parsed.Lines[0].Timestamp)
	}
	if parsed.Lines[0].Text != "One more time" {
		t.Errorf("expected trimmed text, got %q", parsed.Lines[0].Text)
	}
	if parsed.Lines[1].Timestamp != time.Minute+2*time.Second+345*time.Millisecond {
		t.Errorf("expected 1m2.345s, got %s", parsed.Lines[1].Timestamp)
	}
}

func TestParseLrc_NoTimestamps(t *testing.T) {
	parsed := ParseLrc("just some prose\nwithout any timing")
	if len(parsed.Lines) != 0 {
		t.Errorf("expected empty index, got %d lines", len(parsed.Lines))
	}
	if _, ok := parsed.LineAt(time.Second); ok {
		t.Error("expected no line in an empty index")
	}
}

func TestParseLrc_KeepsFileOrder(t *testing.T) {
	parsed := ParseLrc("[00:10.00]Late\n[00:02.00]Early\n[00:05.00]Middle")
	if parsed.Monotonic() {
		t.Fatal("expected index to be flagged non-monotonic")
	}
	if parsed.Lines[0].Text != "Late" || parsed.Lines[1].Text != "Early" {
		t.Errorf("lines were reordered: %+v", parsed.Lines)
	}
	// Full scan still finds the greatest timestamp <= t
	line, ok := parsed.LineAt(6 * time.Second)
	if !ok || line.Text != "Middle" {
		t.Errorf("expected Middle, got %+v (ok=%v)", line, ok)
	}
	line, ok = parsed.LineAt(30 * time.Second)
	if !ok || line.Text != "Late" {
		t.Errorf("expected Late, got %+v (ok=%v)", line, ok)
	}
}

func TestLineAt(t *testing.T) {
	parsed := ParseLrc(threeLines)

	tests := []struct {
		name   string
		at     time.Duration
		want   string
		wantOK bool
	}{
		{"before first line", -time.Second, "", false},
		{"exactly first", 0, "First", true},
		{"between lines", 7 * time.Second, "Second", true},
		{"exactly on boundary", 5 * time.Second, "Second", true},
		{"after last", time.Hour, "Third", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, ok := parsed.LineAt(tt.at)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if line.Text != tt.want {
				t.Errorf("text = %q, want %q", line.Text, tt.want)
			}
		})
	}
}

func TestLineIndexAt_DuplicateTimestamps(t *testing.T) {
	parsed := ParseLrc("[00:01.00]a\n[00:03.00]b\n[00:03.00]c\n[00:04.00]d")
	if i := parsed.LineIndexAt(3500 * time.Millisecond); i != 2 {
		t.Errorf("expected later duplicate (index 2), got %d", i)
	}
	if len(parsed.Lines) != 4 {
		t.Errorf("duplicates must be kept, got %d lines", len(parsed.Lines))
	}
}

func TestIsValidLrc(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{threeLines, true},
		{"[ti:Only headers]\n[ar:Nobody]", false},
		{"Just plain prose.\nNo timing at all.", false},
		{"intro text\n[01:23.45]one line is enough", true},
		{"[1:23.45]single digit minute", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsValidLrc(tt.text); got != tt.want {
			t.Errorf("IsValidLrc(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestPlainFromLrc(t *testing.T) {
	got := PlainFromLrc("[ti:x]\n[00:00.00]First\n[00:02.00]\n[00:05.00]Second")
	if got != "First\nSecond" {
		t.Errorf("unexpected plain text %q", got)
	}
}
