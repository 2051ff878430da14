package peer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbus-project/kbus/pkg/errs"
	"github.com/kbus-project/kbus/pkg/queue"
)

func connected(t *testing.T) (*Peer, *Guard) {
	t.Helper()
	p := New(NewID())
	require.NoError(t, p.Connect(Credentials{}))
	g, err := p.Acquire()
	require.NoError(t, err)
	return p, g
}

func TestIoctlRecvOnEmptyQueue(t *testing.T) {
	p, g := connected(t)
	defer g.Release()

	res, err := p.Ioctl(g, Recv, nil)
	require.NoError(t, err)
	rr := res.(RecvResult)
	assert.True(t, rr.Empty)
}

func TestIoctlSendThenRecvDelivers(t *testing.T) {
	sender, sg := connected(t)
	defer sg.Release()
	receiver, rg := connected(t)
	defer rg.Release()

	_, err := sender.Ioctl(sg, Send, SendArg{
		Destinations: []*queue.Queue{receiver.info.Queue},
		Type:         queue.NodeMessage,
		Payload:      "hello",
	})
	require.NoError(t, err)

	res, err := receiver.Ioctl(rg, Recv, nil)
	require.NoError(t, err)
	rr := res.(RecvResult)
	require.False(t, rr.Empty)
	assert.Equal(t, "hello", rr.Payload)

	res2, err := receiver.Ioctl(rg, Recv, nil)
	require.NoError(t, err)
	assert.True(t, res2.(RecvResult).Empty)
}

func TestIoctlNodeCreateDestroyRoundTrip(t *testing.T) {
	p, g := connected(t)
	defer g.Release()

	n := queue.NewNode(queue.NodeMessage, uint64(p.ID), "payload")
	h, err := p.Ioctl(g, NodeCreate, n)
	require.NoError(t, err)

	_, err = p.Ioctl(g, NodeDestroy, h)
	require.NoError(t, err)

	_, err = p.Ioctl(g, NodeDestroy, h)
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestIoctlRejectsUnguardedCall(t *testing.T) {
	p := New(NewID())
	require.NoError(t, p.Connect(Credentials{}))
	_, err := p.Ioctl(nil, Recv, nil)
	assert.ErrorIs(t, err, errs.ErrNotConnected)
}

func TestIoctlHandleReleaseIsAcceptedNoop(t *testing.T) {
	p, g := connected(t)
	defer g.Release()
	_, err := p.Ioctl(g, HandleRelease, nil)
	assert.NoError(t, err)
	_, err = p.Ioctl(g, SliceRelease, nil)
	assert.NoError(t, err)
}
