package cratedig

import (
	"fmt"

	"github.com/cratedig/cratedig/cratedig_errors"
)

// Default page sizes for the two range-scan reads.
const (
	DefaultFeedLimit     = 10
	DefaultTimelineLimit = 20
)

// FeedReader serves the two scan-shaped reads over PostStore's keyspace:
// the global feed and the per-owner timeline. Both come straight out of key
// order, newest first; no extra bookkeeping, the copies ARE the index.
type FeedReader struct {
	posts *PostStore
}

func NewFeedReader(posts *PostStore) *FeedReader {
	return &FeedReader{posts: posts}
}

// GlobalFeed scans the time-ordered copy newest first. limit 0 means the
// default page size; a negative limit means the whole feed, which the search
// index rebuild relies on.
func (fr *FeedReader) GlobalFeed(limit int) ([]*Post, error) {
	if limit == 0 {
		limit = DefaultFeedLimit
	}
	lo := FeedPrefix()
	return fr.scan(lo, PrefixEnd(lo), limit)
}

// OwnerTimeline scans one owner's posts newest first. limit 0 means the
// default cap of 20.
func (fr *FeedReader) OwnerTimeline(owner string, limit int) ([]*Post, error) {
	if limit == 0 {
		limit = DefaultTimelineLimit
	}
	lo := TimelinePrefix(owner)
	return fr.scan(lo, PrefixEnd(lo), limit)
}

func (fr *FeedReader) scan(lo, hi []byte, limit int) ([]*Post, error) {
	var out []*Post
	err := fr.posts.store.Scan(lo, hi, true, func(key, val []byte) (bool, error) {
		post, err := fr.posts.decode(val)
		if err != nil {
			return false, err
		}
		fr.posts.enrich(post)
		out = append(out, post)
		return limit < 0 || len(out) < limit, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cratedig_errors.ErrStorage, err)
	}
	return out, nil
}
