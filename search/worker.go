package search

import (
	"encoding/json"
	"sync"

	"github.com/learn-decentralized-systems/toyqueue"
	"github.com/learn-decentralized-systems/toytlv"

	"github.com/cratedig/cratedig"
	"github.com/cratedig/cratedig/utils"
)

// Worker decouples index maintenance from the write path: jobs are TLV
// records on a bounded queue, drained by one goroutine. Enqueueing never
// blocks a post mutation; a full queue drops the job, which costs nothing
// but discoverability until the next refresh or rebuild.
//
// Job records: A <json post> add, R <json post> refresh, X <id> remove,
// Q <> quit.
type Worker struct {
	ix   *Index
	log  utils.Logger
	q    toyqueue.RecordQueue
	feed toyqueue.FeedDrainCloser
	wg   sync.WaitGroup
}

const DefaultWorkerQueueLimit = 1024

func NewWorker(ix *Index, log utils.Logger, queueLimit int) *Worker {
	if queueLimit <= 0 {
		queueLimit = DefaultWorkerQueueLimit
	}
	w := &Worker{ix: ix, log: log}
	w.q.Limit = queueLimit
	w.feed = w.q.Blocking()
	w.wg.Add(1)
	go w.run()
	return w
}

// Add implements cratedig.Indexer.
func (w *Worker) Add(post *cratedig.Post) error {
	return w.enqueuePost('A', post)
}

// Refresh implements cratedig.Indexer.
func (w *Worker) Refresh(post *cratedig.Post) error {
	return w.enqueuePost('R', post)
}

// Remove implements cratedig.Indexer.
func (w *Worker) Remove(id string) error {
	return w.enqueue(toytlv.Record('X', []byte(id)))
}

func (w *Worker) enqueuePost(lit byte, post *cratedig.Post) error {
	body, err := json.Marshal(post)
	if err != nil {
		return err
	}
	return w.enqueue(toytlv.Record(lit, body))
}

func (w *Worker) enqueue(job []byte) error {
	err := w.q.Drain(toyqueue.Records{job})
	if err == toyqueue.ErrWouldBlock {
		workerDropped.Inc()
		w.log.Warn("index job dropped, queue full")
		return nil
	}
	return err
}

// Close stops the worker after the queued jobs are applied. The quit record
// goes through the blocking drain: a full queue must delay shutdown, not
// lose the quit and hang it.
func (w *Worker) Close() {
	_ = w.feed.Drain(toyqueue.Records{toytlv.Record('Q')})
	w.wg.Wait()
}

func (w *Worker) run() {
	defer w.wg.Done()
	for {
		recs, err := w.feed.Feed()
		if err != nil {
			return
		}
		for _, rec := range recs {
			if !w.apply(rec) {
				return
			}
		}
	}
}

func (w *Worker) apply(rec []byte) bool {
	lit, body, _ := toytlv.TakeAny(rec)
	switch lit {
	case 'Q':
		return false
	case 'X':
		if err := w.ix.Remove(string(body)); err != nil {
			w.log.Warn("async deindex failed", "pid", string(body), "err", err)
		}
	case 'A', 'R':
		var post cratedig.Post
		if err := json.Unmarshal(body, &post); err != nil {
			w.log.Warn("bad index job", "err", err)
			return true
		}
		var err error
		if lit == 'A' {
			err = w.ix.Add(&post)
		} else {
			err = w.ix.Refresh(&post)
		}
		if err != nil {
			w.log.Warn("async index failed", "pid", post.ID, "err", err)
		}
	default:
		w.log.Warn("unknown index job", "lit", string(lit))
	}
	return true
}
