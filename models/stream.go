package models

import (
	"fmt"
	"strings"
)

// FileSelector narrows a multi-file torrent down to a single playable file.
// An explicit index always wins over a season/episode hint.
type FileSelector struct {
	Index   *int
	Season  int
	Episode int
}

// HasIndex reports whether an explicit file index was requested.
func (s FileSelector) HasIndex() bool {
	return s.Index != nil && *s.Index >= 0
}

// HasEpisode reports whether a season/episode hint was requested.
func (s FileSelector) HasEpisode() bool {
	return s.Season > 0 && s.Episode > 0
}

func (s FileSelector) String() string {
	switch {
	case s.HasIndex():
		return fmt.Sprintf("index=%d", *s.Index)
	case s.HasEpisode():
		return fmt.Sprintf("S%02dE%02d", s.Season, s.Episode)
	default:
		return "auto"
	}
}

// MagnetResolution is one resolved playable source. The URL is a time-limited
// credentialed link from the debrid provider and must never outlive the
// resolution cache TTL.
type MagnetResolution struct {
	MagnetURI      string
	Selector       FileSelector
	URL            string
	Filename       string
	ContainerIsMP4 bool
}

// CacheKey builds the deterministic composite key for a (magnet, selector)
// pair. Season/episode and explicit index are part of the key so the same
// magnet resolved for different episodes never collides.
func CacheKey(magnet string, sel FileSelector) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(magnet))
	switch {
	case sel.HasIndex():
		fmt.Fprintf(&b, "|i:%d", *sel.Index)
	case sel.HasEpisode():
		fmt.Fprintf(&b, "|e:%d:%d", sel.Season, sel.Episode)
	}
	return b.String()
}

// IsMP4Name reports whether a filename carries an .mp4 extension. MP4 sources
// are proxied byte-for-byte instead of being remuxed.
func IsMP4Name(name string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(name)), ".mp4")
}
