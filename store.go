package cratedig

import (
	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"github.com/cratedig/cratedig/cratedig_errors"
	"github.com/cratedig/cratedig/utils"
)

// WriteOptions used for every batch commit. The three-copy invariant is only
// worth anything if the batch actually hits disk.
var WriteOptions = pebble.WriteOptions{Sync: true}

// Store is the single ordered keyspace everything lives in: posts, feed and
// timeline copies, keyword index, users. Key families are separated by tag
// bytes (see keys.go); batches are atomic per commit, nothing more.
type Store struct {
	db  *pebble.DB
	dir string
	log utils.Logger
}

func OpenStore(dir string, log utils.Logger) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	return &Store{db: db, dir: dir, log: log}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) Dir() string { return s.dir }

// DB exposes the underlying pebble handle for the metrics collector.
func (s *Store) DB() *pebble.DB { return s.db }

// Get returns a stable copy of the value, or ErrNotFound.
func (s *Store) Get(key []byte) ([]byte, error) {
	val, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, cratedig_errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "point lookup")
	}
	ret := make([]byte, len(val))
	copy(ret, val)
	_ = closer.Close()
	return ret, nil
}

// NewBatch starts a write batch. Commit with CommitBatch so every write in
// the module goes through the same synced write options.
func (s *Store) NewBatch() *pebble.Batch {
	return s.db.NewBatch()
}

func (s *Store) CommitBatch(b *pebble.Batch) error {
	return b.Commit(&WriteOptions)
}

// Scan walks [lo, hi) in key order, reversed if asked, calling fn for every
// entry. fn returns false to stop early; key and val are only valid for the
// duration of the call.
func (s *Store) Scan(lo, hi []byte, reverse bool, fn func(key, val []byte) (bool, error)) error {
	it, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lo,
		UpperBound: hi,
	})
	if err != nil {
		return errors.Wrap(err, "open iterator")
	}
	defer it.Close()

	step := func() bool { return it.Next() }
	valid := it.First()
	if reverse {
		step = func() bool { return it.Prev() }
		valid = it.Last()
	}
	for ; valid; valid = step() {
		val, err := it.ValueAndErr()
		if err != nil {
			return errors.Wrap(err, "read value")
		}
		more, err := fn(it.Key(), val)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return errors.Wrap(it.Error(), "scan")
}
