package peer

import (
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/kbus-project/kbus/pkg/errs"
	"github.com/kbus-project/kbus/pkg/metrics"
	"github.com/kbus-project/kbus/pkg/queue"
	"github.com/kbus-project/kbus/pkg/txn"
)

// IoctlCmd names the message-level operations spec.md §6 lists as the only
// contract the out-of-scope IO layer imposes on the core. Only Send and
// Recv have core-visible behavior; NodeCreate and NodeDestroy update the
// peer's in-memory handle table, and HandleRelease and SliceRelease are
// accepted and do nothing, since their wire payload is explicitly out of
// scope.
type IoctlCmd int

const (
	NodeCreate IoctlCmd = iota
	NodeDestroy
	HandleRelease
	SliceRelease
	Send
	Recv
)

// SendArg is the core-visible portion of a SEND ioctl argument: the
// destination set a Bus has already resolved, plus the message payload.
type SendArg struct {
	Destinations []*queue.Queue
	Type         queue.NodeType
	Payload      any
}

// RecvResult is what RECV hands back: either a payload, or Empty set when
// the local queue's front is null.
type RecvResult struct {
	Handle  xid.ID
	Payload any
	Empty   bool
}

// Ioctl dispatches one message-level operation against the peer's own
// queue and handle table. Callers must already hold a Guard from Acquire;
// Ioctl does not acquire one itself, since a caller issuing several ioctls
// back to back should not pay repeated acquire/release overhead.
func (p *Peer) Ioctl(g *Guard, cmd IoctlCmd, arg any) (any, error) {
	if g == nil || g.info != p.info {
		return nil, errs.ErrNotConnected
	}
	info := g.info

	switch cmd {
	case NodeCreate:
		n, ok := arg.(*queue.Node)
		if !ok || n == nil {
			return nil, errs.ErrInvalid
		}
		info.mu.Lock()
		info.handles[n.Handle] = n
		info.mu.Unlock()
		return n.Handle, nil

	case NodeDestroy:
		h, ok := arg.(xid.ID)
		if !ok {
			return nil, errs.ErrInvalid
		}
		info.mu.Lock()
		n, found := info.handles[h]
		delete(info.handles, h)
		info.mu.Unlock()
		if !found {
			return nil, errs.ErrInvalid
		}
		n.Put(nil)
		return nil, nil

	case HandleRelease, SliceRelease:
		// Payload framing for these is out of scope (spec.md §1); the
		// core only needs to accept the call.
		return nil, nil

	case Send:
		sa, ok := arg.(SendArg)
		if !ok {
			return nil, errs.ErrInvalid
		}
		dests := make([]txn.Destination, len(sa.Destinations))
		for i, q := range sa.Destinations {
			dests[i] = txn.Destination{Queue: q}
		}
		res, err := txn.Send(dests, info.Queue, uint64(p.ID), sa.Type, sa.Payload)
		if err != nil {
			metrics.IncSendError()
			log.Warn().Err(err).Uint64("peer_id", uint64(p.ID)).Msg("send failed")
			return nil, err
		}
		metrics.IncSend()
		// Destination queues belong to other peers, whose IDs are not
		// carried in SendArg; the sender's own depth is what SetQueueDepth
		// can attribute correctly here.
		metrics.SetQueueDepth(uint64(p.ID), info.Queue.Len())
		return res, nil

	case Recv:
		metrics.IncRecv()
		n, _ := info.Queue.Peek()
		if n == nil {
			return RecvResult{Empty: true}, nil
		}
		info.Queue.Remove(n)
		metrics.SetQueueDepth(uint64(p.ID), info.Queue.Len())
		return RecvResult{Handle: n.Handle, Payload: n.Payload()}, nil

	default:
		return nil, errs.ErrInvalid
	}
}
