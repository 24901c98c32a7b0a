package cratedig

import "encoding/binary"

// Key family tags. One byte per family, same trick pebble's bytewise
// comparator rewards everywhere: a tag byte followed by encoded segments.
const (
	TagPost     byte = 'P' // post record: P <id>
	TagTimeline byte = 'T' // owner timeline: T <owner> <created> <id>
	TagFeed     byte = 'F' // global feed: F <created> <id>
	TagKeyword  byte = 'K' // keyword forward: K <keyword> <id>
	TagKwRef    byte = 'R' // keyword reverse: R <id> <keyword>
	TagEmail    byte = 'E' // user by email: E <email>
	TagUser     byte = 'U' // user by id: U <id>
)

// String segments are escaped so that no legal content can fake a segment
// boundary: 0x00 inside a value becomes 0x00 0xFF, and every segment ends
// with the 0x00 0x01 terminator. A value that is a strict prefix of another
// therefore always sorts first, and keys parse unambiguously no matter what
// the segment contains. Numeric segments are fixed-width big-endian, so
// lexicographic order is numeric order.
const (
	segEsc       byte = 0x00
	segEscaped00 byte = 0xFF
	segTerm      byte = 0x01
)

func appendSegment(key []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		if s[i] == segEsc {
			key = append(key, segEsc, segEscaped00)
		} else {
			key = append(key, s[i])
		}
	}
	return append(key, segEsc, segTerm)
}

func appendTime(key []byte, t uint64) []byte {
	return binary.BigEndian.AppendUint64(key, t)
}

// takeSegment undoes appendSegment. Returns ok=false on truncated or
// malformed input.
func takeSegment(key []byte) (seg string, rest []byte, ok bool) {
	buf := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		if key[i] != segEsc {
			buf = append(buf, key[i])
			continue
		}
		if i+1 >= len(key) {
			return "", nil, false
		}
		switch key[i+1] {
		case segEscaped00:
			buf = append(buf, segEsc)
			i++
		case segTerm:
			return string(buf), key[i+2:], true
		default:
			return "", nil, false
		}
	}
	return "", nil, false
}

func takeTime(key []byte) (t uint64, rest []byte, ok bool) {
	if len(key) < 8 {
		return 0, nil, false
	}
	return binary.BigEndian.Uint64(key[:8]), key[8:], true
}

func PostKey(id string) []byte {
	return appendSegment([]byte{TagPost}, id)
}

func TimelineKey(owner string, created uint64, id string) []byte {
	key := appendSegment([]byte{TagTimeline}, owner)
	key = appendTime(key, created)
	return appendSegment(key, id)
}

// TimelinePrefix covers every timeline key of one owner.
func TimelinePrefix(owner string) []byte {
	return appendSegment([]byte{TagTimeline}, owner)
}

// TimelineTimePrefix covers every timeline key of one owner at one instant.
// The id is a tertiary segment, so two same-second posts never collide.
func TimelineTimePrefix(owner string, created uint64) []byte {
	return appendTime(appendSegment([]byte{TagTimeline}, owner), created)
}

func FeedKey(created uint64, id string) []byte {
	return appendSegment(appendTime([]byte{TagFeed}, created), id)
}

func FeedPrefix() []byte {
	return []byte{TagFeed}
}

func KeywordKey(keyword, id string) []byte {
	return appendSegment(appendSegment([]byte{TagKeyword}, keyword), id)
}

// KeywordPrefix covers every forward entry of one exact keyword.
func KeywordPrefix(keyword string) []byte {
	return appendSegment([]byte{TagKeyword}, keyword)
}

func KwRefKey(id, keyword string) []byte {
	return appendSegment(appendSegment([]byte{TagKwRef}, id), keyword)
}

// KwRefPrefix covers every reverse entry of one post, which is all deindexing
// needs: the entry values point back at the forward keys.
func KwRefPrefix(id string) []byte {
	return appendSegment([]byte{TagKwRef}, id)
}

func EmailKey(email string) []byte {
	return appendSegment([]byte{TagEmail}, email)
}

func UserKey(id string) []byte {
	return appendSegment([]byte{TagUser}, id)
}

// PrefixEnd returns the exclusive upper bound for a range scan of all keys
// starting with prefix: the rightmost incrementable byte bumped by one.
// Returns nil for a prefix of all 0xFF, which no key family produces.
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
