// Package txn implements the multi-queue send transaction: the
// stage-then-commit protocol that delivers one logical message to a set of
// destination queues so every queue observes the same partial order,
// without any lock held across more than one queue at a time. It plays the
// same structural role tiny_txn's Oracle plays for a single MVCC store
// (allocate a timestamp, ensure visibility ordering), generalized from one
// store to N independently-locked queues.
package txn

import (
	"github.com/kbus-project/kbus/pkg/errs"
	"github.com/kbus-project/kbus/pkg/queue"
)

// Clock is the sender-side Lamport clock a transaction reads from and
// advances. A peer's own Queue satisfies this, the same way a peer's queue
// clock doubles as its local send-side clock in the source model.
type Clock interface {
	Now() uint64
	Tick() uint64
	Sync(ts uint64) uint64
}

// Destination is one target queue of a multicast send. A nil Queue models
// a destination that vanished before the transaction could stage into it
// (e.g. the peer disconnected between resolution and send).
type Destination struct {
	Queue *queue.Queue
}

// Result reports what a successful Send committed.
type Result struct {
	CommitTS uint64
	// Nodes holds one queue.Node per destination, in the same order as the
	// destinations passed to Send.
	Nodes []*queue.Node
}

// Send stages node on every destination, picks a single commit timestamp
// that is >= every staged timestamp and >= the sender's own clock, then
// commits on every destination. If any destination is unavailable, every
// already-staged node is removed and the transaction reports
// errs.ErrShuttingDown; no reader ever observes a partially staged
// transaction, since staged entries are never returned by Peek.
func Send(dest []Destination, sender Clock, senderTag uint64, typ queue.NodeType, payload any) (*Result, error) {
	if len(dest) == 0 {
		return nil, errs.ErrInvalid
	}

	nodes := make([]*queue.Node, len(dest))
	currentMax := sender.Now()

	for i, d := range dest {
		if d.Queue == nil {
			rollback(dest, nodes, i)
			return nil, errs.ErrShuttingDown
		}
		n := queue.NewNode(typ, senderTag, payload)
		nodes[i] = n

		ts := d.Queue.Stage(n, currentMax)
		if ts > currentMax {
			currentMax = ts
		}
	}

	commitTS := currentMax + 1 // odd staging high-water -> next even commit
	if ticked := sender.Tick(); ticked > commitTS {
		commitTS = ticked
	}
	sender.Sync(commitTS)

	for i, d := range dest {
		d.Queue.CommitStaged(nodes[i], commitTS)
	}

	return &Result{CommitTS: commitTS, Nodes: nodes}, nil
}

// rollback removes every node already staged on dest[:staged] from its
// queue, undoing a Send that failed partway through the stage phase.
func rollback(dest []Destination, nodes []*queue.Node, staged int) {
	for i := 0; i < staged; i++ {
		if dest[i].Queue != nil && nodes[i] != nil {
			dest[i].Queue.Remove(nodes[i])
		}
	}
}

// SendUnstaged is the single-destination shortcut: no staging phase, one
// clock tick per destination's own queue rather than a coordinated commit
// timestamp. It exists for callers with exactly one destination, where the
// full stage/commit protocol only adds latency.
func SendUnstaged(dest *queue.Queue, senderTag uint64, typ queue.NodeType, payload any) (*Result, error) {
	if dest == nil {
		return nil, errs.ErrShuttingDown
	}
	n := queue.NewNode(typ, senderTag, payload)
	ts := dest.CommitUnstaged(n)
	return &Result{CommitTS: ts, Nodes: []*queue.Node{n}}, nil
}
