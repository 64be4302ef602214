package backup

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ghbackup/pkg/models"
)

// TransferQueue is the FIFO between the producers (orchestrator and split
// workers) and the single batch-pusher consumer. It pairs a channel with
// a WaitGroup so producers can wait until every enqueued item has been
// fully processed, and carries a completion flag the consumer checks on
// each empty poll: the consumer keeps running while the queue is not
// completed or still holds items.
type TransferQueue struct {
	items     chan models.TransferItem
	pending   sync.WaitGroup
	completed atomic.Bool
}

func NewTransferQueue(capacity int) *TransferQueue {
	return &TransferQueue{
		items: make(chan models.TransferItem, capacity),
	}
}

// Put enqueues an item, blocking if the queue is at capacity. Every item
// put must eventually be balanced by a TaskDone call.
func (q *TransferQueue) Put(item models.TransferItem) {
	q.pending.Add(1)
	q.items <- item
}

// PutContext is Put that gives up when the run context is cancelled, so
// producers cannot block forever on a queue whose consumer has aborted.
func (q *TransferQueue) PutContext(ctx context.Context, item models.TransferItem) error {
	q.pending.Add(1)
	select {
	case q.items <- item:
		return nil
	case <-ctx.Done():
		q.pending.Done()
		return ctx.Err()
	}
}

// PutSentinel asks the consumer to stop even if the completion flag has
// not been observed yet. Sentinels are not tracked by Join.
func (q *TransferQueue) PutSentinel() {
	q.items <- models.TransferItem{Sentinel: true}
}

// Get pops the next item, waiting up to timeout. The second return value
// is false when the timeout elapsed with nothing available.
func (q *TransferQueue) Get(timeout time.Duration) (models.TransferItem, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case item := <-q.items:
		return item, true
	case <-timer.C:
		return models.TransferItem{}, false
	}
}

// TaskDone marks one previously gotten item as fully processed.
func (q *TransferQueue) TaskDone() {
	q.pending.Done()
}

// Join blocks until every enqueued item has been marked done or the
// timeout elapses.
func (q *TransferQueue) Join(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %s waiting for queue to drain", timeout)
	}
}

// MarkCompleted records that the producers have finished enumerating all
// items.
func (q *TransferQueue) MarkCompleted() {
	q.completed.Store(true)
}

func (q *TransferQueue) Completed() bool {
	return q.completed.Load()
}

// Len is the number of items currently buffered.
func (q *TransferQueue) Len() int {
	return len(q.items)
}
