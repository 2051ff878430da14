package queue

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/tidwall/btree"

	"github.com/kbus-project/kbus/pkg/errs"
)

// Queue is a per-peer ordered container: a local Lamport clock, an index of
// nodes ordered by (timestamp, sender), and a cached front-of-queue pointer
// published for lock-free reader checks. Its ordered index is a
// btree.BTreeG, the same structural choice tiny_txn's MvStore makes for its
// own (key, version)-ordered index.
type Queue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	clock uint64
	index *btree.BTreeG[*Node]
	front atomic.Pointer[Node]

	reclaim *Reclaimer
}

func compareNodes(a, b *Node) bool {
	at, bt := a.Timestamp(), b.Timestamp()
	if at != bt {
		return at < bt
	}
	return a.Sender < b.Sender
}

// New returns an empty queue with its clock at zero.
func New() *Queue {
	q := &Queue{
		index:   btree.NewBTreeG(compareNodes),
		reclaim: NewReclaimer(),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func roundUpOdd(ts uint64) uint64 {
	if ts&1 == 0 {
		return ts + 1
	}
	return ts
}

// Now returns the queue's current clock value without advancing it.
func (q *Queue) Now() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.clock
}

// Tick advances the clock to the next even value above it (+2 from an even
// clock, +1 from an odd one as left behind by Stage) and returns that value.
func (q *Queue) Tick() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clock = (q.clock + 2) &^ 1
	return q.clock
}

// Sync fast-forwards the clock to ts if ts is newer. ts must be even.
func (q *Queue) Sync(ts uint64) uint64 {
	if ts&1 != 0 {
		panic("queue: Sync requires an even timestamp")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if ts > q.clock {
		q.clock = ts
	}
	return q.clock
}

// Stage inserts node as a staging entry. It computes
// tsOut = roundUpOdd(max(clock, roundUpOdd(tsIn))), fast-forwards the clock
// to tsOut, and returns tsOut (always odd).
func (q *Queue) Stage(node *Node, tsIn uint64) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	tsOut := roundUpOdd(tsIn)
	if q.clock > tsOut {
		tsOut = q.clock
	}
	tsOut = roundUpOdd(tsOut)
	q.clock = tsOut

	node.setTimestamp(tsOut)
	node.state = linkQueued
	node.Get()
	q.index.Set(node)
	q.refreshFrontLocked()
	return tsOut
}

// CommitStaged re-queues a previously staged node at an even commit
// timestamp. Precondition: node is currently staged in this queue.
// tsCommit must be even and >= both the node's staging timestamp and the
// queue's clock. Returns whether node is the new front.
func (q *Queue) CommitStaged(node *Node, tsCommit uint64) (isFront bool) {
	if tsCommit&1 != 0 {
		panic("queue: CommitStaged requires an even timestamp")
	}
	q.mu.Lock()
	if !node.IsQueued() || !node.IsStaging() {
		q.mu.Unlock()
		panic("queue: CommitStaged called on a node that is not currently staged here")
	}
	if tsCommit < node.Timestamp() || tsCommit < q.clock {
		q.mu.Unlock()
		panic("queue: CommitStaged timestamp regresses")
	}

	wasReadable := q.front.Load() != nil
	q.index.Delete(node)
	node.setTimestamp(tsCommit)
	q.index.Set(node)
	q.clock = tsCommit

	q.refreshFrontLocked()
	front := q.front.Load()
	becameReadable := !wasReadable && front != nil
	q.mu.Unlock()

	if becameReadable {
		q.cond.Broadcast()
	}
	return front == node
}

// CommitUnstaged is the single-destination shortcut: it ticks the clock and
// inserts node directly at the new (even) timestamp, skipping the staging
// phase entirely.
func (q *Queue) CommitUnstaged(node *Node) (ts uint64) {
	q.mu.Lock()
	q.clock = (q.clock + 2) &^ 1
	ts = q.clock

	node.setTimestamp(ts)
	node.state = linkQueued
	node.Get()

	wasReadable := q.front.Load() != nil
	q.index.Set(node)
	q.refreshFrontLocked()
	front := q.front.Load()
	becameReadable := !wasReadable && front != nil
	q.mu.Unlock()

	if becameReadable {
		q.cond.Broadcast()
	}
	return ts
}

// Remove removes node from the index regardless of its staging/committed
// state (used both for transaction rollback and dequeue). It returns
// whether a previously-unreadable queue became readable as a result — this
// happens when the removed node was a blocking staging entry.
func (q *Queue) Remove(node *Node) (becameReadable bool) {
	q.mu.Lock()
	wasQueued := node.state == linkQueued
	wasReadable := q.front.Load() != nil
	if wasQueued {
		q.index.Delete(node)
	}
	node.state = linkNone
	q.refreshFrontLocked()
	front := q.front.Load()
	becameReadable = !wasReadable && front != nil
	q.mu.Unlock()

	if wasQueued {
		q.reclaim.Retire(node, func(n *Node) { n.Put(nil) })
	}

	if becameReadable {
		q.cond.Broadcast()
	}
	return becameReadable
}

// Len returns the number of nodes currently linked into the queue's
// ordered index, staged or committed, for depth reporting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.index.Len()
}

// Peek returns the current front node, if any, without removing it.
// continueOut reports whether the index holds more entries beyond it, for
// batched drain loops.
func (q *Queue) Peek() (node *Node, continueOut bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	front := q.front.Load()
	if front == nil {
		return nil, false
	}
	return front, q.index.Len() > 1
}

// Flush drains every node from the index, links them into an off-queue
// list and returns its head; the caller disposes of them outside the
// queue's lock.
func (q *Queue) Flush() *Node {
	q.mu.Lock()
	defer q.mu.Unlock()

	var head, tail *Node
	q.index.Scan(func(n *Node) bool {
		n.state = linkOffQueue
		n.next = nil
		if head == nil {
			head = n
		} else {
			tail.next = n
		}
		tail = n
		return true
	})
	q.index = btree.NewBTreeG(compareNodes)
	q.front.Store(nil)
	return head
}

// IsReadable is a lock-free read of the cached front pointer.
func (q *Queue) IsReadable() bool {
	return q.front.Load() != nil
}

// WaitReadable blocks until IsReadable() becomes true or ctx is cancelled.
// Cancellation leaves the queue state unchanged.
func (q *Queue) WaitReadable(ctx context.Context) error {
	if q.IsReadable() {
		return nil
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		case <-stop:
		}
	}()

	q.mu.Lock()
	for q.front.Load() == nil && ctx.Err() == nil {
		q.cond.Wait()
	}
	q.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return errs.ErrInterrupted
	}
	return nil
}

// refreshFrontLocked recomputes the cached front pointer. The leftmost
// entry is published iff it has an even timestamp: since staging (odd) and
// committed (even) timestamps are never equal, an even leftmost entry is,
// by construction of the total order, never preceded by a lower-timestamp
// staging entry.
func (q *Queue) refreshFrontLocked() {
	min, ok := q.index.Min()
	if !ok || min.IsStaging() {
		q.front.Store(nil)
		return
	}
	q.front.Store(min)
}
