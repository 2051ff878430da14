// Package active implements the active-reference lifecycle state machine:
// new -> active(n) -> deactivated(n) -> {release-direct|release} -> drained,
// coordinated through a single counter and a condition variable, the
// way original_source/ipc/bus1/active.c coordinates it through an atomic_t
// and a wait_queue_head_t. The counter is a plain int64 guarded by a mutex:
// Acquire, Release and Deactivate each take that mutex briefly and are not
// lock-free atomic operations. Deactivate never waits for outstanding
// references; drain blocks until the last active reference drops and runs
// its release callback exactly once.
package active

import (
	"math"
	"sync"
)

// Bias values encode the deactivated/release/drained states below zero,
// mirroring BUS1_ACTIVE_BIAS and friends. int64 gives enough headroom that,
// unlike the kernel's 32-bit atomic_t, we never need to worry about an
// active count colliding with a sentinel in practice.
const (
	bias           int64 = math.MinInt64 + 5
	releaseDirect  int64 = bias - 1
	release        int64 = bias - 2
	drained        int64 = bias - 3
	newState       int64 = bias - 4
)

// Active is a lifecycle gate: an arbitrary number of short-lived
// acquisitions may coexist with a single, once-only teardown.
type Active struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int64
}

// New returns an Active in state "new". Never activated, so Acquire fails
// until Activate succeeds.
func New() *Active {
	a := &Active{count: newState}
	a.cond = sync.NewCond(&a.mu)
	return a
}

// IsNew reports whether the object was never activated nor deactivated.
func (a *Active) IsNew() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count == newState
}

// IsActive reports whether the object is currently active. This gives no
// guarantee that it is still active by the time the caller inspects the
// result; it is a barrier, not a lock.
func (a *Active) IsActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count >= 0
}

// IsDeactivated reports whether the object has already been deactivated.
// Once true, it stays true.
func (a *Active) IsDeactivated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count > newState && a.count < 0
}

// Activate transitions new -> active(0). Returns true exactly once per
// object; a second call is a no-op returning false.
func (a *Active) Activate() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count == newState {
		a.count = 0
		return true
	}
	return false
}

// Guard is a held active reference. It must be released exactly once via
// Release.
type Guard struct {
	a *Active
}

// Acquire atomically increments the counter iff it is currently >= 0. On
// success it returns a Guard that must be released; on failure (not yet
// active, or already deactivated) it returns ok == false.
func (a *Active) Acquire() (*Guard, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count < 0 {
		return nil, false
	}
	a.count++
	return &Guard{a: a}, true
}

// Release drops the active reference held by g. If the post-decrement value
// equals bias, the drain waiter (if any) is woken.
func (g *Guard) Release() {
	if g == nil {
		return
	}
	a := g.a
	a.mu.Lock()
	a.count--
	woke := a.count == bias
	a.mu.Unlock()
	if woke {
		a.cond.Broadcast()
	}
}

// Deactivate prevents any future Acquire from succeeding. If the object was
// never activated, it moves straight to release-direct; otherwise it adds
// bias to the active count, preserving the number of outstanding
// acquisitions. A second concurrent Deactivate is a no-op.
func (a *Active) Deactivate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count == newState {
		a.count = releaseDirect
		return
	}
	if a.count >= 0 {
		a.count += bias
	}
	// Any other state means deactivate already ran (idempotent).
}

// Drain blocks until every active reference acquired before Deactivate has
// been released, then runs releaseCB exactly once across all concurrent
// callers. It returns true for the single caller that ran releaseCB.
//
// The caller must have already called Deactivate; calling Drain on an
// object that is still "new" or "active" is a caller bug and panics, the
// same way bus1_active_drain WARN_ONs on the equivalent kernel
// misuse.
func (a *Active) Drain(releaseCB func()) bool {
	a.mu.Lock()
	if !(a.count > newState && a.count < 0) {
		a.mu.Unlock()
		panic("active: Drain called before Deactivate")
	}

	for a.count > bias {
		a.cond.Wait()
	}

	var iAmReleaser bool
	switch a.count {
	case releaseDirect:
		a.count = release
		iAmReleaser = true
	case bias:
		a.count = release
		iAmReleaser = true
	default:
		// Another goroutine already claimed the release slot; wait for
		// drained.
	}
	a.mu.Unlock()

	if iAmReleaser {
		if releaseCB != nil {
			releaseCB()
		}
		a.mu.Lock()
		a.count = drained
		a.mu.Unlock()
		a.cond.Broadcast()
		return true
	}

	a.mu.Lock()
	for a.count != drained {
		a.cond.Wait()
	}
	a.mu.Unlock()
	return false
}

// Destroy asserts the object has been fully drained: it panics if the object
// is not drained and otherwise does nothing.
func (a *Active) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count != drained {
		panic("active: Destroy called on a non-drained object")
	}
}
