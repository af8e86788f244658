package music

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	lrcTimestampLine = regexp.MustCompile(`^\[(\d{2}):(\d{2})\.(\d{2,3})\](.*)$`)
	lrcHeaderTag     = regexp.MustCompile(`^\[(ti|ar|al):(.*)\]$`)
)

// LrcLine is one timestamped line of an LRC file.
type LrcLine struct {
	Timestamp time.Duration `json:"timestamp"`
	Text      string        `json:"text"`
}

// ParsedLrc is the time index built from an LRC text. Lines are kept in file
// order; a file with out-of-order timestamps is not re-sorted.
type ParsedLrc struct {
	Lines  []LrcLine `json:"lines"`
	Title  string    `json:"title,omitempty"`
	Artist string    `json:"artist,omitempty"`
	Album  string    `json:"album,omitempty"`

	monotonic bool
}

// IsValidLrc reports whether text contains at least one [mm:ss.xx] line.
func IsValidLrc(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if lrcTimestampLine.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

// ParseLrc scans text top to bottom. Lines that don't match the timestamp
// pattern are skipped; recognised header tags are captured. A text without any
// timestamp line yields an empty index, which is not an error.
func ParseLrc(text string) ParsedLrc {
	parsed := ParsedLrc{monotonic: true}
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if m := lrcTimestampLine.FindStringSubmatch(line); m != nil {
			ts := lrcDuration(m[1], m[2], m[3])
			if n := len(parsed.Lines); n > 0 && ts < parsed.Lines[n-1].Timestamp {
				parsed.monotonic = false
			}
			parsed.Lines = append(parsed.Lines, LrcLine{Timestamp: ts, Text: strings.TrimSpace(m[4])})
			continue
		}
		if m := lrcHeaderTag.FindStringSubmatch(line); m != nil {
			value := strings.TrimSpace(m[2])
			switch m[1] {
			case "ti":
				parsed.Title = value
			case "ar":
				parsed.Artist = value
			case "al":
				parsed.Album = value
			}
		}
	}
	return parsed
}

func lrcDuration(mm, ss, frac string) time.Duration {
	minutes, _ := strconv.Atoi(mm)
	seconds, _ := strconv.Atoi(ss)
	fraction, _ := strconv.Atoi(frac)
	d := time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
	if len(frac) == 2 {
		return d + time.Duration(fraction)*10*time.Millisecond
	}
	return d + time.Duration(fraction)*time.Millisecond
}

// Monotonic reports whether timestamps never decrease, which allows binary search.
func (p ParsedLrc) Monotonic() bool {
	return p.monotonic || len(p.Lines) < 2
}

// LineIndexAt returns the index of the line with the greatest timestamp <= t,
// or -1 when t precedes every line. Among equal timestamps the later line wins.
// Uses binary search when the index is monotonic and a full scan otherwise.
func (p ParsedLrc) LineIndexAt(t time.Duration) int {
	if len(p.Lines) == 0 {
		return -1
	}
	if p.Monotonic() {
		// first index whose timestamp is > t, minus one
		i := sort.Search(len(p.Lines), func(i int) bool {
			return p.Lines[i].Timestamp > t
		})
		return i - 1
	}
	best := -1
	for i, line := range p.Lines {
		if line.Timestamp > t {
			continue
		}
		if best == -1 || line.Timestamp >= p.Lines[best].Timestamp {
			best = i
		}
	}
	return best
}

// LineAt returns the active line at t.
func (p ParsedLrc) LineAt(t time.Duration) (LrcLine, bool) {
	i := p.LineIndexAt(t)
	if i < 0 {
		return LrcLine{}, false
	}
	return p.Lines[i], true
}

// PlainFromLrc strips timestamps and headers, keeping the text of each line.
func PlainFromLrc(text string) string {
	parsed := ParseLrc(text)
	lines := make([]string, 0, len(parsed.Lines))
	for _, line := range parsed.Lines {
		if line.Text == "" {
			continue
		}
		lines = append(lines, line.Text)
	}
	return strings.Join(lines, "\n")
}
