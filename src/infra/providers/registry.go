package providers

import (
	"fmt"

	"github.com/contre95/soullyrics/src/music"
)

// Known lists the adapters that can be enabled from config, in default priority order.
var Known = []string{"lrclib", "netease", "lyricsovh"}

// New builds the adapter registered under name.
func New(name string, opts ...Option) (music.LyricsProvider, error) {
	switch name {
	case "lrclib":
		return NewLRCLibProvider(opts...), nil
	case "netease":
		return NewNetEaseProvider(opts...), nil
	case "lyricsovh":
		return NewLyricsOvhProvider(opts...), nil
	default:
		return nil, fmt.Errorf("unknown lyrics provider %q", name)
	}
}
