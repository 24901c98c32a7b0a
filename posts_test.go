package cratedig

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cratedig/cratedig/cratedig_errors"
	"github.com/cratedig/cratedig/utils"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(t.TempDir(), utils.NewDefaultLogger(slog.LevelError))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type fakeNames map[string]string

func (f fakeNames) DisplayName(id string) (string, error) {
	name, ok := f[id]
	if !ok {
		return "", cratedig_errors.ErrNotFound
	}
	return name, nil
}

func testRender(s string) string {
	return "<p>" + s + "</p>"
}

func testPostStore(t *testing.T) *PostStore {
	t.Helper()
	return NewPostStore(testStore(t), utils.NewDefaultLogger(slog.LevelError), PostStoreOptions{
		Render: testRender,
		Names:  fakeNames{"u1": "alice"},
	})
}

func TestCreateGetRoundtrip(t *testing.T) {
	ps := testPostStore(t)

	id, err := ps.Create("u1", PostFields{
		Title:        "Live Set",
		Artist:       "DJ X",
		Tracklisting: "1. A - Intro\n2. B - Outro",
		Notes:        "recorded live",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	post, err := ps.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Live Set", post.Title)
	assert.Equal(t, "DJ X", post.Artist)
	assert.Equal(t, "recorded live", post.Notes)
	assert.Equal(t, "u1", post.Owner)
	assert.Empty(t, post.Origin)
	assert.NotZero(t, post.Created)
	assert.Equal(t, "<p>recorded live</p>", post.NotesHTML)
	assert.Equal(t, "alice", post.PostedBy)

	require.True(t, post.Tracklist.Parsed())
	assert.Equal(t, []string{"Intro", "Outro"}, post.Tracklist.Titles())
}

func TestCreateValidation(t *testing.T) {
	ps := testPostStore(t)

	_, err := ps.Create("u1", PostFields{Artist: "DJ X"})
	assert.ErrorIs(t, err, cratedig_errors.ErrValidation)

	_, err = ps.Create("u1", PostFields{Title: "Live Set"})
	assert.ErrorIs(t, err, cratedig_errors.ErrValidation)

	_, err = ps.Create("", PostFields{Title: "Live Set", Artist: "DJ X"})
	assert.ErrorIs(t, err, cratedig_errors.ErrValidation)

	_, err = ps.Create("u1", PostFields{Title: "  ", Artist: "DJ X"})
	assert.ErrorIs(t, err, cratedig_errors.ErrValidation)
}

func TestCreateUnparseableTracklistKeptRaw(t *testing.T) {
	ps := testPostStore(t)

	raw := "no structure here, just vibes"
	id, err := ps.Create("u1", PostFields{Title: "t", Artist: "a", Tracklisting: raw})
	require.NoError(t, err)

	post, err := ps.Get(id)
	require.NoError(t, err)
	assert.False(t, post.Tracklist.Parsed())
	assert.Equal(t, raw, post.Tracklist.Raw)
}

func TestGetMissingOwnerDegrades(t *testing.T) {
	ps := testPostStore(t)

	id, err := ps.Create("ghost", PostFields{Title: "t", Artist: "a"})
	require.NoError(t, err)

	post, err := ps.Get(id)
	require.NoError(t, err)
	assert.Empty(t, post.PostedBy)
}

func TestGetNotFound(t *testing.T) {
	ps := testPostStore(t)
	_, err := ps.Get(uuid.NewString())
	assert.ErrorIs(t, err, cratedig_errors.ErrNotFound)
}

// seed writes a post with a chosen timestamp, bypassing Create's clock.
func seed(t *testing.T, ps *PostStore, owner string, created int64, title, artist string) *Post {
	t.Helper()
	post := &Post{
		ID:      uuid.NewString(),
		Title:   title,
		Artist:  artist,
		Created: created,
		Owner:   owner,
	}
	require.NoError(t, ps.putCopies(post))
	return post
}

func TestUpdateRewritesAllCopies(t *testing.T) {
	ps := testPostStore(t)
	post := seed(t, ps, "u1", 1000, "Old Title", "DJ X")

	err := ps.Update("u1", 1000, PostFields{
		Title:        "New Title",
		Artist:       "DJ Y",
		Tracklisting: "1. C - Fresh",
	})
	require.NoError(t, err)

	got, err := ps.Get(post.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Title", got.Title)
	assert.Equal(t, "DJ Y", got.Artist)
	assert.Equal(t, post.ID, got.ID)
	assert.Equal(t, int64(1000), got.Created)
	assert.Equal(t, "u1", got.Owner)

	feed := NewFeedReader(ps)
	posts, err := feed.GlobalFeed(0)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "New Title", posts[0].Title)

	posts, err = feed.OwnerTimeline("u1", 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "New Title", posts[0].Title)
}

func TestUpdateMissingComposite(t *testing.T) {
	ps := testPostStore(t)
	seed(t, ps, "u1", 1000, "t", "a")

	err := ps.Update("u1", 2000, PostFields{Title: "x", Artist: "y"})
	assert.ErrorIs(t, err, cratedig_errors.ErrNotFound)

	err = ps.Update("u2", 1000, PostFields{Title: "x", Artist: "y"})
	assert.ErrorIs(t, err, cratedig_errors.ErrNotFound)
}

func TestDeleteRemovesAllCopies(t *testing.T) {
	ps := testPostStore(t)
	post := seed(t, ps, "u1", 1000, "t", "a")

	require.NoError(t, ps.Delete("u1", 1000, post.ID))

	_, err := ps.Get(post.ID)
	assert.ErrorIs(t, err, cratedig_errors.ErrNotFound)

	feed := NewFeedReader(ps)
	posts, err := feed.GlobalFeed(0)
	require.NoError(t, err)
	assert.Empty(t, posts)

	posts, err = feed.OwnerTimeline("u1", 0)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestSameSecondPostsBothSurvive(t *testing.T) {
	ps := testPostStore(t)
	p1 := seed(t, ps, "u1", 1000, "first", "a")
	p2 := seed(t, ps, "u1", 1000, "second", "a")

	got1, err := ps.Get(p1.ID)
	require.NoError(t, err)
	got2, err := ps.Get(p2.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got1.Title)
	assert.Equal(t, "second", got2.Title)

	posts, err := NewFeedReader(ps).OwnerTimeline("u1", 0)
	require.NoError(t, err)
	assert.Len(t, posts, 2)
}

func TestShare(t *testing.T) {
	ps := testPostStore(t)
	orig := seed(t, ps, "u1", time.Now().Unix()-10, "Live Set", "DJ X")

	newID, err := ps.Share(orig.ID, "u2")
	require.NoError(t, err)
	require.NotEqual(t, orig.ID, newID)

	shared, err := ps.Get(newID)
	require.NoError(t, err)
	assert.Equal(t, "u2", shared.Owner)
	assert.Equal(t, "u1", shared.Origin)
	assert.Equal(t, orig.Title, shared.Title)
	assert.Equal(t, orig.Artist, shared.Artist)
	assert.Greater(t, shared.Created, orig.Created)

	// Original untouched.
	still, err := ps.Get(orig.ID)
	require.NoError(t, err)
	assert.Empty(t, still.Origin)
}

func TestShareSelfIsNoop(t *testing.T) {
	ps := testPostStore(t)
	orig := seed(t, ps, "u1", 1000, "t", "a")

	id, err := ps.Share(orig.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, orig.ID, id)

	posts, err := NewFeedReader(ps).GlobalFeed(0)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}

func TestShareMissingPost(t *testing.T) {
	ps := testPostStore(t)
	_, err := ps.Share(uuid.NewString(), "u2")
	assert.ErrorIs(t, err, cratedig_errors.ErrNotFound)
}

func TestDisplayNameCached(t *testing.T) {
	store := testStore(t)
	names := fakeNames{"u1": "alice"}
	ps := NewPostStore(store, utils.NewDefaultLogger(slog.LevelError), PostStoreOptions{
		Names: names,
	})

	post := seed(t, ps, "u1", 1000, "t", "a")
	got, err := ps.Get(post.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.PostedBy)

	// Resolver changes; the cache keeps serving the joined name.
	names["u1"] = "renamed"
	got, err = ps.Get(post.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.PostedBy)
}

// recordingIndexer observes best-effort index calls.
type recordingIndexer struct {
	added, removed, refreshed []string
	fail                      bool
}

func (r *recordingIndexer) Add(post *Post) error {
	if r.fail {
		return fmt.Errorf("index down")
	}
	r.added = append(r.added, post.ID)
	return nil
}

func (r *recordingIndexer) Remove(id string) error {
	if r.fail {
		return fmt.Errorf("index down")
	}
	r.removed = append(r.removed, id)
	return nil
}

func (r *recordingIndexer) Refresh(post *Post) error {
	if r.fail {
		return fmt.Errorf("index down")
	}
	r.refreshed = append(r.refreshed, post.ID)
	return nil
}

func TestIndexMaintenanceIsBestEffort(t *testing.T) {
	store := testStore(t)
	idx := &recordingIndexer{fail: true}
	ps := NewPostStore(store, utils.NewDefaultLogger(slog.LevelError), PostStoreOptions{
		Indexer: idx,
	})

	// A broken index must not fail any post operation.
	id, err := ps.Create("u1", PostFields{Title: "t", Artist: "a"})
	require.NoError(t, err)

	post, err := ps.Get(id)
	require.NoError(t, err)

	require.NoError(t, ps.Update("u1", post.Created, PostFields{Title: "t2", Artist: "a"}))
	require.NoError(t, ps.Delete("u1", post.Created, id))
}

func TestIndexMaintenanceCalls(t *testing.T) {
	store := testStore(t)
	idx := &recordingIndexer{}
	ps := NewPostStore(store, utils.NewDefaultLogger(slog.LevelError), PostStoreOptions{
		Indexer: idx,
	})

	id, err := ps.Create("u1", PostFields{Title: "t", Artist: "a"})
	require.NoError(t, err)
	require.Equal(t, []string{id}, idx.added)

	post, err := ps.Get(id)
	require.NoError(t, err)

	require.NoError(t, ps.Update("u1", post.Created, PostFields{Title: "t2", Artist: "a"}))
	require.Equal(t, []string{id}, idx.refreshed)

	require.NoError(t, ps.Delete("u1", post.Created, id))
	require.Equal(t, []string{id}, idx.removed)
}
