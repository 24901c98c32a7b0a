// Package tracklist turns free-form tracklisting text into an ordered list
// of tracks. Lines look like "1. Artist - Title", with the position and the
// artist both optional. Parsing is all or nothing: if any non-empty line does
// not fit, the original text is kept verbatim instead.
package tracklist

import (
	"regexp"
	"strconv"
	"strings"
)

type Track struct {
	Pos    int    `json:"pos,omitempty"`
	Artist string `json:"artist,omitempty"`
	Title  string `json:"title"`
}

// Tracklist is a tagged union: a successfully parsed list carries Tracks,
// a failed parse carries the raw text. Never both.
type Tracklist struct {
	Tracks []Track `json:"tracks,omitempty"`
	Raw    string  `json:"raw,omitempty"`
}

// Parsed reports whether the text was understood as a structured list.
func (t Tracklist) Parsed() bool {
	return t.Tracks != nil
}

var lineRe = regexp.MustCompile(`^(?:(\d+)\s*[.):]\s*)?(?:(.+?)\s+-\s+)?(\S.*)$`)

// Parse never fails; unparseable input comes back as Tracklist{Raw: text}.
func Parse(text string) Tracklist {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Tracklist{}
	}

	var tracks []Track
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := lineRe.FindStringSubmatch(line)
		if m == nil || m[1] == "" && m[2] == "" {
			// A bare line with neither position nor artist is just text,
			// not a track entry. Keep the whole thing raw.
			return Tracklist{Raw: text}
		}
		pos, _ := strconv.Atoi(m[1])
		tracks = append(tracks, Track{
			Pos:    pos,
			Artist: m[2],
			Title:  strings.TrimSpace(m[3]),
		})
	}
	if tracks == nil {
		return Tracklist{Raw: text}
	}
	return Tracklist{Tracks: tracks}
}

// Titles lists the track titles of a parsed list, in order. Nil when raw.
func (t Tracklist) Titles() []string {
	if !t.Parsed() {
		return nil
	}
	titles := make([]string, 0, len(t.Tracks))
	for _, tr := range t.Tracks {
		titles = append(titles, tr.Title)
	}
	return titles
}
