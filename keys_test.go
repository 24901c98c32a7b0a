package cratedig

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentRoundtrip(t *testing.T) {
	for _, s := range []string{
		"", "plain", "with!bang", "with\x00zero", "\x00", "\x00\x01\xff", "ümlaut",
	} {
		key := appendSegment(nil, s)
		got, rest, ok := takeSegment(key)
		require.True(t, ok, "segment %q", s)
		assert.Equal(t, s, got)
		assert.Empty(t, rest)
	}
}

func TestSegmentDelimiterSafety(t *testing.T) {
	// The legacy scheme concatenated with '!', so a title containing '!'
	// could forge a boundary. Here no content can: these two must differ.
	a := KeywordKey("a!b", "c")
	b := KeywordKey("a", "b!c")
	assert.NotEqual(t, a, b)

	// An owner that extends another owner's id must not fall inside the
	// shorter owner's prefix range.
	short := TimelinePrefix("alice")
	long := TimelineKey("alicex", 1, "p")
	assert.False(t, bytes.HasPrefix(long, short))
	assert.True(t, bytes.HasPrefix(TimelineKey("alice", 1, "p"), short))
}

func TestTimestampOrderPreserved(t *testing.T) {
	// Plain decimal concatenation breaks once digit counts change (e.g.
	// "9" > "10"); fixed-width encoding must not.
	times := []uint64{0, 9, 10, 99, 100, 1<<32 - 1, 1 << 32, 1<<63 - 1}
	for i := 1; i < len(times); i++ {
		prev := FeedKey(times[i-1], "p")
		cur := FeedKey(times[i], "p")
		assert.Negative(t, bytes.Compare(prev, cur), "%d vs %d", times[i-1], times[i])
	}
}

func TestTimelineKeyOrder(t *testing.T) {
	// Owner first, then time, then id: one owner's keys are contiguous and
	// time-sorted within the owner.
	k1 := TimelineKey("u1", 100, "a")
	k2 := TimelineKey("u1", 200, "a")
	k3 := TimelineKey("u1", 200, "b")
	k4 := TimelineKey("u2", 50, "a")
	assert.Negative(t, bytes.Compare(k1, k2))
	assert.Negative(t, bytes.Compare(k2, k3))
	assert.Negative(t, bytes.Compare(k3, k4))
}

func TestPrefixEnd(t *testing.T) {
	prefix := TimelinePrefix("u1")
	end := PrefixEnd(prefix)
	require.NotNil(t, end)

	inside := TimelineKey("u1", 42, "p")
	outside := TimelineKey("u2", 42, "p")
	assert.Negative(t, bytes.Compare(prefix, inside))
	assert.Negative(t, bytes.Compare(inside, end))
	assert.True(t, bytes.Compare(outside, end) >= 0)

	assert.Nil(t, PrefixEnd([]byte{0xFF, 0xFF}))
}

func TestKeyFamiliesDisjoint(t *testing.T) {
	keys := [][]byte{
		PostKey("x"),
		TimelineKey("x", 1, "x"),
		FeedKey(1, "x"),
		KeywordKey("x", "x"),
		KwRefKey("x", "x"),
		EmailKey("x"),
		UserKey("x"),
	}
	seen := map[byte]bool{}
	for _, k := range keys {
		assert.False(t, seen[k[0]], "tag %c reused", k[0])
		seen[k[0]] = true
	}
}

func TestTakeTime(t *testing.T) {
	key := appendTime(nil, 123456789)
	v, rest, ok := takeTime(key)
	require.True(t, ok)
	assert.Equal(t, uint64(123456789), v)
	assert.Empty(t, rest)

	_, _, ok = takeTime([]byte{1, 2, 3})
	assert.False(t, ok)
}
