// Package peer implements the external interface spec.md §6 describes: the
// contract an out-of-scope IO layer (character device, ioctl shim) drives
// against the core. A Peer owns an Active lifecycle gate and, behind it, a
// PeerInfo holding the peer's Queue and its handle table.
package peer

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/kbus-project/kbus/pkg/active"
	"github.com/kbus-project/kbus/pkg/errs"
	"github.com/kbus-project/kbus/pkg/metrics"
	"github.com/kbus-project/kbus/pkg/queue"
)

// ID identifies a peer within a Bus's namespace. It doubles as the sender
// tag carried by every queue.Node the peer originates, matching
// "unsigned long sender" in the source model: a stable machine word, not a
// full UUID.
type ID uint64

// NewID derives a non-zero sender/peer ID from a fresh random UUID, the
// way sa6mwa-lockd mints identifiers for its own queue entries.
func NewID() ID {
	for {
		h := fnv.New64a()
		u := uuid.New()
		_, _ = h.Write(u[:])
		if v := h.Sum64(); v != 0 {
			return ID(v)
		}
	}
}

// Credentials is the out-of-scope connect-time payload (identity,
// namespace membership) the core treats opaquely; it exists only so
// peer_connect has a parameter to accept and log.
type Credentials struct {
	Namespace string
	Params    map[string]string
}

// PeerInfo is the state guarded by a Peer's Active: the queue and the
// handle table NODE_CREATE/NODE_DESTROY manipulate. It is only safe to
// dereference while holding a Guard from Peer.Acquire.
type PeerInfo struct {
	Queue *queue.Queue

	mu      sync.Mutex
	handles map[xid.ID]*queue.Node
}

// Peer wraps an Active and a PeerInfo, implementing peer_new/free/connect/
// disconnect/acquire/release/ioctl from spec.md §6.
type Peer struct {
	ID     ID
	active *active.Active
	info   *PeerInfo
}

// New allocates a Peer in the "new" state; it is not usable until Connect
// succeeds.
func New(id ID) *Peer {
	return &Peer{
		ID:     id,
		active: active.New(),
		info: &PeerInfo{
			Queue:   queue.New(),
			handles: make(map[xid.ID]*queue.Node),
		},
	}
}

// Free asserts the peer has been fully drained. Calling it before
// Disconnect has completed is a caller bug, matching the source model's
// bus1_peer_free precondition.
func (p *Peer) Free() {
	p.active.Destroy()
}

// Connect transitions the peer from new to active. A second call returns
// errs.ErrAlreadyConnected rather than re-activating.
func (p *Peer) Connect(creds Credentials) error {
	if !p.active.Activate() {
		return errs.ErrAlreadyConnected
	}
	log.Info().
		Uint64("peer_id", uint64(p.ID)).
		Str("namespace", creds.Namespace).
		Msg("peer connected")
	return nil
}

// Disconnect deactivates the peer and drains outstanding acquisitions,
// flushing the queue exactly once. It is idempotent: concurrent or repeat
// calls all block until the same drain completes.
func (p *Peer) Disconnect() {
	p.active.Deactivate()
	ran := p.active.Drain(func() {
		head := p.info.Queue.Flush()
		count := 0
		for n := head; n != nil; n = n.Next() {
			n.Put(nil)
			count++
		}
		metrics.IncDrain()
		metrics.SetQueueDepth(uint64(p.ID), 0)
		log.Debug().Uint64("peer_id", uint64(p.ID)).Int("flushed", count).Msg("queue flushed on disconnect")
	})
	if ran {
		log.Info().Uint64("peer_id", uint64(p.ID)).Msg("peer disconnected")
	}
}

// Guard is a held acquisition of a peer's PeerInfo.
type Guard struct {
	g    *active.Guard
	info *PeerInfo
}

// Info returns the guarded PeerInfo. It is only valid until Release.
func (g *Guard) Info() *PeerInfo { return g.info }

// Release drops the guard.
func (g *Guard) Release() {
	if g == nil {
		return
	}
	g.g.Release()
}

// Acquire acquires the peer's Active reference and returns a Guard over
// its PeerInfo. Fails with errs.ErrNotConnected if the peer was never
// connected, and with errs.ErrShuttingDown once it has been deactivated.
func (p *Peer) Acquire() (*Guard, error) {
	g, ok := p.active.Acquire()
	if !ok {
		if p.active.IsDeactivated() {
			return nil, errs.ErrShuttingDown
		}
		return nil, errs.ErrNotConnected
	}
	return &Guard{g: g, info: p.info}, nil
}

// IsConnected reports whether the peer is currently active.
func (p *Peer) IsConnected() bool {
	return p.active.IsActive()
}
