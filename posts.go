package cratedig

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cratedig/cratedig/cratedig_errors"
	"github.com/cratedig/cratedig/tracklist"
	"github.com/cratedig/cratedig/utils"
)

// Post is the one logical record behind three physical copies: by id, by
// owner+time, by global time. All three hold the same sealed value and are
// written and removed together in one batch.
type Post struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	Artist    string              `json:"artist"`
	Notes     string              `json:"notes,omitempty"`
	Tracklist tracklist.Tracklist `json:"tracklist"`
	Created   int64               `json:"created"`
	Owner     string              `json:"owner"`
	// Origin is the owner this post was reshared from; empty for originals.
	Origin string `json:"origin,omitempty"`

	// Derived at read time, never persisted as state of record.
	NotesHTML string `json:"notesHtml,omitempty"`
	PostedBy  string `json:"postedBy,omitempty"`
}

// PostFields is the caller-supplied part of a post.
type PostFields struct {
	Title        string
	Artist       string
	Tracklisting string
	Notes        string
}

// Indexer is the best-effort keyword index boundary. PostStore calls it
// after its own batch committed; an error here is logged, never surfaced,
// and never rolls anything back.
type Indexer interface {
	Add(post *Post) error
	Remove(id string) error
	Refresh(post *Post) error
}

// NameResolver joins an owner id to a display name. A miss is not an error
// worth failing a read for.
type NameResolver interface {
	DisplayName(id string) (string, error)
}

// RenderFunc turns markdown notes into safe HTML.
type RenderFunc func(string) string

type PostStoreOptions struct {
	// Render enriches notes on reads; nil leaves NotesHTML empty.
	Render RenderFunc
	// Names resolves owner display names; nil leaves PostedBy empty.
	Names NameResolver
	// Indexer receives best-effort keyword index maintenance; may be nil.
	Indexer Indexer
	// NameCacheSize bounds the owner display-name cache. Default 4096.
	NameCacheSize int
}

type PostStore struct {
	store *Store
	log   utils.Logger

	render RenderFunc
	names  NameResolver
	idx    Indexer

	nameCache *lru.Cache[string, string]
}

func NewPostStore(store *Store, log utils.Logger, opts PostStoreOptions) *PostStore {
	size := opts.NameCacheSize
	if size <= 0 {
		size = 4096
	}
	cache, _ := lru.New[string, string](size)
	return &PostStore{
		store:     store,
		log:       log,
		render:    opts.Render,
		names:     opts.Names,
		idx:       opts.Indexer,
		nameCache: cache,
	}
}

// SetIndexer wires the keyword index after construction; the index needs the
// post store to resolve search hits, so one of the two is attached late.
func (ps *PostStore) SetIndexer(idx Indexer) { ps.idx = idx }

func validateFields(owner string, f PostFields) error {
	var missing []string
	if strings.TrimSpace(f.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(f.Artist) == "" {
		missing = append(missing, "artist")
	}
	if strings.TrimSpace(owner) == "" {
		missing = append(missing, "owner")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", cratedig_errors.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// Create assigns a fresh id and timestamp, derives the track list and writes
// all three copies in one batch. Returns the new post id.
func (ps *PostStore) Create(owner string, f PostFields) (string, error) {
	if err := validateFields(owner, f); err != nil {
		return "", err
	}
	post := &Post{
		ID:        uuid.NewString(),
		Title:     f.Title,
		Artist:    f.Artist,
		Notes:     f.Notes,
		Tracklist: tracklist.Parse(f.Tracklisting),
		Created:   time.Now().Unix(),
		Owner:     owner,
	}
	if err := ps.putCopies(post); err != nil {
		return "", err
	}
	ps.indexBestEffort(post)
	return post.ID, nil
}

// Get is a point lookup by id, enriched with rendered notes and the owner's
// display name. A missing owner record degrades to an empty name: losing an
// account must never make its posts unreadable.
func (ps *PostStore) Get(id string) (*Post, error) {
	post, err := ps.getRaw(id)
	if err != nil {
		return nil, err
	}
	ps.enrich(post)
	post.PostedBy = ps.displayName(post.Owner)
	return post, nil
}

// Update locates the post by its (owner, created) composite key, re-derives
// the track list and rewrites all three copies. Id, owner and creation time
// survive the update. The keyword index is refreshed best-effort afterwards.
func (ps *PostStore) Update(owner string, created int64, f PostFields) error {
	post, err := ps.byOwnerTime(owner, created)
	if err != nil {
		return err
	}
	post.Title = f.Title
	post.Artist = f.Artist
	post.Notes = f.Notes
	post.Tracklist = tracklist.Parse(f.Tracklisting)
	if err := ps.putCopies(post); err != nil {
		return err
	}
	ps.refreshBestEffort(post)
	return nil
}

// Delete removes all three copies in one batch, then asks the index to drop
// the post's keyword entries. Deleting an absent post is a no-op.
func (ps *PostStore) Delete(owner string, created int64, id string) error {
	b := ps.store.NewBatch()
	defer b.Close()
	_ = b.Delete(PostKey(id), nil)
	_ = b.Delete(TimelineKey(owner, uint64(created), id), nil)
	_ = b.Delete(FeedKey(uint64(created), id), nil)
	if err := ps.store.CommitBatch(b); err != nil {
		return fmt.Errorf("%w: %w", cratedig_errors.ErrStorage, err)
	}
	if ps.idx != nil {
		if err := ps.idx.Remove(id); err != nil {
			ps.log.Warn("keyword deindex failed", "pid", id, "err", err)
		}
	}
	return nil
}

// Share copies an existing post under a new id and owner with a fresh
// timestamp, recording the original owner as provenance. Sharing one's own
// post is refused quietly: the existing id comes back, nothing is written.
func (ps *PostStore) Share(id, newOwner string) (string, error) {
	if strings.TrimSpace(newOwner) == "" {
		return "", fmt.Errorf("%w: owner required", cratedig_errors.ErrValidation)
	}
	orig, err := ps.getRaw(id)
	if err != nil {
		return "", err
	}
	if orig.Owner == newOwner {
		return orig.ID, nil
	}
	post := &Post{
		ID:        uuid.NewString(),
		Title:     orig.Title,
		Artist:    orig.Artist,
		Notes:     orig.Notes,
		Tracklist: orig.Tracklist,
		Created:   time.Now().Unix(),
		Owner:     newOwner,
		Origin:    orig.Owner,
	}
	if err := ps.putCopies(post); err != nil {
		return "", err
	}
	ps.indexBestEffort(post)
	return post.ID, nil
}

func (ps *PostStore) getRaw(id string) (*Post, error) {
	val, err := ps.store.Get(PostKey(id))
	if err != nil {
		return nil, err
	}
	return ps.decode(val)
}

// byOwnerTime resolves the owner+time composite key. The id is a tertiary
// key segment, so two same-second posts can share the prefix; the first one
// in key order wins, which keeps the original single-key contract.
func (ps *PostStore) byOwnerTime(owner string, created int64) (*Post, error) {
	lo := TimelineTimePrefix(owner, uint64(created))
	hi := PrefixEnd(lo)
	var post *Post
	err := ps.store.Scan(lo, hi, false, func(key, val []byte) (bool, error) {
		p, err := ps.decode(val)
		if err != nil {
			return false, err
		}
		post = p
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cratedig_errors.ErrStorage, err)
	}
	if post == nil {
		return nil, cratedig_errors.ErrNotFound
	}
	return post, nil
}

// putCopies writes the three physical copies in one synced batch: all
// visible or none.
func (ps *PostStore) putCopies(post *Post) error {
	body, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("%w: %w", cratedig_errors.ErrStorage, err)
	}
	val := Seal('P', body)
	b := ps.store.NewBatch()
	defer b.Close()
	_ = b.Set(PostKey(post.ID), val, nil)
	_ = b.Set(TimelineKey(post.Owner, uint64(post.Created), post.ID), val, nil)
	_ = b.Set(FeedKey(uint64(post.Created), post.ID), val, nil)
	if err := ps.store.CommitBatch(b); err != nil {
		return fmt.Errorf("%w: %w", cratedig_errors.ErrStorage, err)
	}
	return nil
}

func (ps *PostStore) decode(val []byte) (*Post, error) {
	body, err := Unseal('P', val)
	if err != nil {
		return nil, err
	}
	var post Post
	if err := json.Unmarshal(body, &post); err != nil {
		return nil, fmt.Errorf("%w: %w", cratedig_errors.ErrCorruptRecord, err)
	}
	return &post, nil
}

func (ps *PostStore) enrich(post *Post) {
	if ps.render != nil {
		post.NotesHTML = ps.render(post.Notes)
	}
}

func (ps *PostStore) displayName(owner string) string {
	if ps.names == nil {
		return ""
	}
	if name, ok := ps.nameCache.Get(owner); ok {
		return name
	}
	name, err := ps.names.DisplayName(owner)
	if err != nil {
		return ""
	}
	ps.nameCache.Add(owner, name)
	return name
}

func (ps *PostStore) indexBestEffort(post *Post) {
	if ps.idx == nil {
		return
	}
	if err := ps.idx.Add(post); err != nil {
		ps.log.Warn("keyword index failed", "pid", post.ID, "err", err)
	}
}

func (ps *PostStore) refreshBestEffort(post *Post) {
	if ps.idx == nil {
		return
	}
	if err := ps.idx.Refresh(post); err != nil {
		ps.log.Warn("keyword reindex failed", "pid", post.ID, "err", err)
	}
}
