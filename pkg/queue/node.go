// Package queue implements the per-peer message queue: a Lamport-clocked,
// timestamp-and-sender-ordered index with a cached front-of-queue pointer,
// grounded on original_source/ipc/bus1/util/queue.h and generalized from
// tiny_txn's MvStore, which orders a github.com/tidwall/btree index on
// (key, version) the same way this orders one on (timestamp, sender).
package queue

import (
	"sync/atomic"

	"github.com/rs/xid"
)

// NodeType is the type tag carried by a queue node, packed into the top 2
// bits of its timestamp-and-type word exactly as BUS1_QUEUE_TYPE_MASK does.
type NodeType uint8

const (
	NodeMessage NodeType = iota
	NodeHandleDestruction
	NodeHandleRelease

	nodeTypeCount
)

const (
	typeShift = 62
	typeMask  = uint64(3) << typeShift
	tsMask    = ^typeMask
)

func init() {
	if nodeTypeCount-1 > 3 {
		panic("queue: NodeType no longer fits in 2 bits")
	}
}

// linkState tracks which of the three mutually-exclusive linkage slots a
// node currently occupies: queued in the ordered index, linked into an
// off-queue list (flush/drain), or awaiting deferred reclamation.
type linkState uint8

const (
	linkNone linkState = iota
	linkQueued
	linkOffQueue
	linkReclaim
)

// Node is a reference-counted queue entry carrying a (timestamp, sender)
// ordering key and a type tag. Its type never mutates after construction;
// its timestamp only ever increases across staging and commit events on a
// given queue.
type Node struct {
	Handle xid.ID
	Sender uint64

	tsAndType atomic.Uint64
	refs      atomic.Int32
	state     linkState

	// next links this node into an off-queue list (flush, retirement
	// limbo). It is never valid while state == linkQueued.
	next *Node

	// finalize is set by Reclaimer.Retire and invoked once the node's
	// generation is no longer observed by any pinned reader.
	finalize func(*Node)

	// payload is opaque to the core: transport framing and wire layout
	// are explicitly out of scope (spec.md §1).
	payload any
}

// NewNode constructs a node with refcount 1, timestamp 0 (unset), and the
// given type and sender tag. sender must be non-zero.
func NewNode(typ NodeType, sender uint64, payload any) *Node {
	if sender == 0 {
		panic("queue: sender tag must not be zero")
	}
	n := &Node{
		Handle:  xid.New(),
		Sender:  sender,
		payload: payload,
	}
	n.tsAndType.Store(uint64(typ) << typeShift)
	n.refs.Store(1)
	return n
}

// Type returns the node's type tag. Callers must hold the owning queue's
// lock or exclusively own the node.
func (n *Node) Type() NodeType {
	return NodeType((n.tsAndType.Load() & typeMask) >> typeShift)
}

// Timestamp returns the node's current ordering timestamp. Callers must
// hold the owning queue's lock or exclusively own the node.
func (n *Node) Timestamp() uint64 {
	return n.tsAndType.Load() & tsMask
}

func (n *Node) setTimestamp(ts uint64) {
	if ts&typeMask != 0 {
		panic("queue: timestamp overflows reserved type bits")
	}
	typ := n.tsAndType.Load() & typeMask
	n.tsAndType.Store(typ | ts)
}

// IsQueued reports whether the node is currently linked into a queue's
// ordered index.
func (n *Node) IsQueued() bool {
	return n.state == linkQueued
}

// IsStaging reports whether the node's timestamp is odd, i.e. it is a
// staging entry that blocks front advancement for anything not strictly
// less than it.
func (n *Node) IsStaging() bool {
	return n.Timestamp()&1 == 1
}

// Payload returns the opaque payload the node was constructed with.
func (n *Node) Payload() any {
	return n.payload
}

// Next returns the following node in an off-queue list, as populated by
// Queue.Flush. It is meaningless while the node is linked into a queue's
// ordered index.
func (n *Node) Next() *Node {
	return n.next
}

// Get increments the node's reference count and returns n, mirroring
// kref_get.
func (n *Node) Get() *Node {
	n.refs.Add(1)
	return n
}

// Put decrements the node's reference count. When it reaches zero the node
// must not still be linked into a queue's ordered index; onZero (if
// non-nil) runs the deferred-reclamation hand-off.
func (n *Node) Put(onZero func(*Node)) {
	if n.refs.Add(-1) == 0 {
		if n.state == linkQueued {
			panic("queue: node released while still linked in the ordered index")
		}
		if onZero != nil {
			onZero(n)
		}
	}
}
