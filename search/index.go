// Package search maintains the hand-built inverted keyword index over post
// titles, artists and track titles. Every keyword produces a forward entry
// (keyword, id) and a reverse entry (id, keyword) whose value is the forward
// key, so a post can be dropped from the index knowing nothing but its id.
// The index is an accelerator, never the source of truth: writers treat it
// as best-effort and readers treat dangling entries as skippable.
package search

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/cratedig/cratedig"
	"github.com/cratedig/cratedig/cratedig_errors"
	"github.com/cratedig/cratedig/utils"
)

// Resolver turns a matched post id back into a post. PostStore satisfies it.
type Resolver interface {
	Get(id string) (*cratedig.Post, error)
}

const DefaultFindLimit = 20

type Index struct {
	store    *cratedig.Store
	log      utils.Logger
	resolver Resolver
}

func NewIndex(store *cratedig.Store, log utils.Logger, resolver Resolver) *Index {
	return &Index{store: store, log: log, resolver: resolver}
}

// Normalize is THE keyword normalization, applied both when indexing and
// when querying. The legacy behavior of folding only the query side made
// index entries unreachable; both sides fold here.
func Normalize(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}

// Keywords derives the candidate keyword set of a post: the full title, the
// full artist name and each parsed track title, normalized and deduplicated.
// An unparsed track list contributes nothing; its raw text is not mined for
// sub-terms.
func Keywords(post *cratedig.Post) []string {
	set := map[string]struct{}{}
	add := func(s string) {
		if n := Normalize(s); n != "" {
			set[n] = struct{}{}
		}
	}
	add(post.Title)
	add(post.Artist)
	for _, title := range post.Tracklist.Titles() {
		add(title)
	}
	keywords := make([]string, 0, len(set))
	for kw := range set {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)
	return keywords
}

// Add writes forward and reverse entries for every keyword of the post in
// one batch. Duplicate keywords collapsed beforehand, so the (keyword, id)
// pair is written at most once.
func (ix *Index) Add(post *cratedig.Post) error {
	b := ix.store.NewBatch()
	defer b.Close()
	for _, kw := range Keywords(post) {
		fwd := cratedig.KeywordKey(kw, post.ID)
		_ = b.Set(fwd, []byte(post.ID), nil)
		_ = b.Set(cratedig.KwRefKey(post.ID, kw), fwd, nil)
	}
	if err := ix.store.CommitBatch(b); err != nil {
		indexOps.WithLabelValues("add", "error").Inc()
		return err
	}
	indexOps.WithLabelValues("add", "ok").Inc()
	return nil
}

// Remove drops every index entry of the post, located purely through the
// reverse entries: each one is deleted together with the forward key it
// points at, all in one batch. No knowledge of the post's keywords, or even
// the post's continued existence, is needed.
func (ix *Index) Remove(id string) error {
	lo := cratedig.KwRefPrefix(id)
	hi := cratedig.PrefixEnd(lo)

	var doomed [][]byte
	err := ix.store.Scan(lo, hi, false, func(key, val []byte) (bool, error) {
		rev := make([]byte, len(key))
		copy(rev, key)
		fwd := make([]byte, len(val))
		copy(fwd, val)
		doomed = append(doomed, rev, fwd)
		return true, nil
	})
	if err != nil {
		indexOps.WithLabelValues("remove", "error").Inc()
		return err
	}

	b := ix.store.NewBatch()
	defer b.Close()
	for _, key := range doomed {
		_ = b.Delete(key, nil)
	}
	if err := ix.store.CommitBatch(b); err != nil {
		indexOps.WithLabelValues("remove", "error").Inc()
		return err
	}
	indexOps.WithLabelValues("remove", "ok").Inc()
	return nil
}

// Refresh re-derives the post's entries: remove first, then add. If the add
// half fails the post is merely unsearchable until the next refresh; the
// other order could leave entries for content the post no longer has.
func (ix *Index) Refresh(post *cratedig.Post) error {
	if err := ix.Remove(post.ID); err != nil {
		return err
	}
	return ix.Add(post)
}

// Find scans the forward entries of the normalized keyword in key order and
// resolves each hit through the post store. A hit that no longer resolves is
// a stale entry from the eventual-consistency window; it is skipped, not an
// error.
func (ix *Index) Find(keyword string, limit int) ([]*cratedig.Post, error) {
	started := time.Now()
	defer func() {
		findDuration.Observe(float64(time.Since(started).Milliseconds()))
	}()

	kw := Normalize(keyword)
	if kw == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultFindLimit
	}

	var ids []string
	lo := cratedig.KeywordPrefix(kw)
	err := ix.store.Scan(lo, cratedig.PrefixEnd(lo), false, func(key, val []byte) (bool, error) {
		ids = append(ids, string(val))
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	var out []*cratedig.Post
	for _, id := range ids {
		post, err := ix.resolver.Get(id)
		if err != nil {
			if errors.Is(err, cratedig_errors.ErrNotFound) || errors.Is(err, cratedig_errors.ErrCorruptRecord) {
				ix.log.Debug("skipping dangling search entry", "keyword", kw, "pid", id)
				continue
			}
			return nil, err
		}
		out = append(out, post)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
