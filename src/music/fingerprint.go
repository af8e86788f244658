package music

import (
	"strings"

	"github.com/gosimple/unidecode"
)

// Fingerprint derives the cache key for an artist/title pair: lowercase
// "artist_title" with every character outside [a-z0-9_] turned into "_" and runs
// of "_" collapsed. Diacritics and word order are significant.
func Fingerprint(artist, title string) string {
	raw := strings.ToLower(artist + "_" + title)

	var b strings.Builder
	b.Grow(len(raw))
	lastUnderscore := false
	for _, r := range raw {
		if !isFingerprintRune(r) {
			r = '_'
		}
		if r == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isFingerprintRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
}

// FoldText lowercases and transliterates text for manual cache search, so that
// "sigur ros" matches "Sigur Rós". It is never used for cache keys.
func FoldText(s string) string {
	return strings.ToLower(unidecode.Unidecode(s))
}
