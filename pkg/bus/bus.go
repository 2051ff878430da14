// Package bus implements the namespace-scoped peer registry that stands in
// for the out-of-scope character-device/module-init shim: something for a
// SEND ioctl's destination argument to resolve against. It is grounded on
// the teacher's Oracle/TxnManager registry pattern (pkg/txn/c_scheduler.go),
// generalized from "one database" to "one namespace of peers".
package bus

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kbus-project/kbus/pkg/errs"
	"github.com/kbus-project/kbus/pkg/peer"
	"github.com/kbus-project/kbus/pkg/queue"
)

// Bus is a map keyed by peer.ID guarded by a sync.RWMutex; it implements no
// credential policy, no namespace-as-filesystem-path semantics, and no
// wire framing, matching spec.md §6's treatment of the IO layer as an
// external collaborator the core imposes no shape on.
type Bus struct {
	namespace string

	mu    sync.RWMutex
	peers map[peer.ID]*peer.Peer
}

// NewBus returns an empty registry scoped to namespace.
func NewBus(namespace string) *Bus {
	return &Bus{
		namespace: namespace,
		peers:     make(map[peer.ID]*peer.Peer),
	}
}

// Connect allocates a sender tag, constructs a Peer, calls peer_connect,
// and registers it under its new ID.
func (b *Bus) Connect(creds peer.Credentials) (*peer.Peer, error) {
	creds.Namespace = b.namespace
	p := peer.New(peer.NewID())
	if err := p.Connect(creds); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.peers[p.ID] = p
	b.mu.Unlock()

	log.Info().Str("namespace", b.namespace).Uint64("peer_id", uint64(p.ID)).Msg("bus: peer registered")
	return p, nil
}

// Disconnect calls peer_disconnect and removes p from the registry. It is
// idempotent: calling it on an already-removed peer is a no-op besides the
// (also idempotent) disconnect itself.
func (b *Bus) Disconnect(p *peer.Peer) {
	p.Disconnect()

	b.mu.Lock()
	delete(b.peers, p.ID)
	b.mu.Unlock()

	log.Info().Str("namespace", b.namespace).Uint64("peer_id", uint64(p.ID)).Msg("bus: peer removed")
}

// Resolved is a destination queue paired with the Guard that must be
// released once the send transaction it participates in has committed or
// aborted, matching spec.md §6's "acquire before dereferencing PeerInfo"
// rule.
type Resolved struct {
	Queue *queue.Queue
	guard *peer.Guard
}

// Release drops the Active reference this resolution acquired.
func (r Resolved) Release() {
	r.guard.Release()
}

// Resolve turns a SEND ioctl's destination argument into a concrete
// destination-queue set, acquiring an Active reference on each resolved
// peer for the duration of the transaction. The caller must call Release
// on every returned Resolved once the transaction has committed or
// aborted — if resolution itself fails partway through, every reference
// already acquired is released before returning the error.
func (b *Bus) Resolve(dest []peer.ID) ([]Resolved, error) {
	b.mu.RLock()
	targets := make([]*peer.Peer, len(dest))
	for i, id := range dest {
		p, ok := b.peers[id]
		if !ok {
			b.mu.RUnlock()
			return nil, errs.ErrUnknownPeer
		}
		targets[i] = p
	}
	b.mu.RUnlock()

	out := make([]Resolved, 0, len(targets))
	for _, p := range targets {
		g, err := p.Acquire()
		if err != nil {
			for _, r := range out {
				r.Release()
			}
			return nil, err
		}
		out = append(out, Resolved{Queue: g.Info().Queue, guard: g})
	}
	return out, nil
}

// Peers returns a snapshot of currently registered peer IDs.
func (b *Bus) Peers() []peer.ID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]peer.ID, 0, len(b.peers))
	for id := range b.peers {
		ids = append(ids, id)
	}
	return ids
}

// DisconnectAll disconnects every currently registered peer, draining each
// one's queue in turn. Used at daemon shutdown, where every live peer must
// be torn down rather than left to leak.
func (b *Bus) DisconnectAll() {
	b.mu.RLock()
	targets := make([]*peer.Peer, 0, len(b.peers))
	for _, p := range b.peers {
		targets = append(targets, p)
	}
	b.mu.RUnlock()

	for _, p := range targets {
		b.Disconnect(p)
	}
}
