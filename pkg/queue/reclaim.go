package queue

import (
	"sync"
	"sync/atomic"
)

// Reclaimer defers running a node's finalizer until every reader that pinned
// an earlier generation with Enter has called Exit. It is an epoch-based
// scheme in the spirit of pingcap-badger's epoch.go, adapted from value-log
// GC to queue-node retirement. Queue.Remove retires nodes through it;
// Queue's own readers (IsReadable, Peek) do not call Enter, so with no guard
// pinned a retired node's finalizer runs immediately inside Retire.
type Reclaimer struct {
	mu      sync.Mutex
	epoch   atomic.Uint64 // global epoch, advances by 2 per generation
	readers map[*uint64]struct{}
	limbo   map[uint64][]*Node
}

// NewReclaimer returns a Reclaimer starting at generation 0.
func NewReclaimer() *Reclaimer {
	return &Reclaimer{
		readers: make(map[*uint64]struct{}),
		limbo:   make(map[uint64][]*Node),
	}
}

// Guard is a pinned read epoch; it must be released via Exit.
type Guard struct {
	r     *Reclaimer
	epoch *uint64
}

// Enter pins the current generation so that any node retired at or after it
// will not be reclaimed until this guard exits.
func (r *Reclaimer) Enter() *Guard {
	e := new(uint64)
	*e = r.epoch.Load()
	r.mu.Lock()
	r.readers[e] = struct{}{}
	r.mu.Unlock()
	return &Guard{r: r, epoch: e}
}

// Exit releases the pinned generation and reclaims any retired node whose
// generation is no longer observed by any active guard.
func (g *Guard) Exit() {
	r := g.r
	r.mu.Lock()
	delete(r.readers, g.epoch)
	r.reclaimLocked()
	r.mu.Unlock()
}

// Retire hands node off for deferred reclamation: onFree runs once no guard
// entered before this call is still pinning an earlier generation.
func (r *Reclaimer) Retire(node *Node, onFree func(*Node)) {
	gen := r.epoch.Add(2)
	node.state = linkReclaim
	node.finalize = onFree
	r.mu.Lock()
	r.limbo[gen] = append(r.limbo[gen], node)
	r.reclaimLocked()
	r.mu.Unlock()
}

// reclaimLocked runs finalizers for every retired generation older than the
// oldest generation any active guard has pinned. Caller must hold r.mu.
func (r *Reclaimer) reclaimLocked() {
	if len(r.limbo) == 0 {
		return
	}
	minPinned := r.epoch.Load() + 2
	for e := range r.readers {
		if *e < minPinned {
			minPinned = *e
		}
	}
	for gen, nodes := range r.limbo {
		if gen >= minPinned {
			continue
		}
		for _, n := range nodes {
			if n.finalize != nil {
				n.finalize(n)
			}
		}
		delete(r.limbo, gen)
	}
}
