package peer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbus-project/kbus/pkg/errs"
)

func TestConnectOnlyOnce(t *testing.T) {
	p := New(NewID())
	require.NoError(t, p.Connect(Credentials{Namespace: "ns"}))
	assert.ErrorIs(t, p.Connect(Credentials{Namespace: "ns"}), errs.ErrAlreadyConnected)
}

func TestAcquireFailsBeforeConnect(t *testing.T) {
	p := New(NewID())
	_, err := p.Acquire()
	assert.ErrorIs(t, err, errs.ErrNotConnected)
}

func TestAcquireSucceedsAfterConnect(t *testing.T) {
	p := New(NewID())
	require.NoError(t, p.Connect(Credentials{}))

	g, err := p.Acquire()
	require.NoError(t, err)
	require.NotNil(t, g.Info())
	g.Release()
}

func TestDisconnectFlushesQueueAndBlocksNewAcquires(t *testing.T) {
	p := New(NewID())
	require.NoError(t, p.Connect(Credentials{}))

	g, err := p.Acquire()
	require.NoError(t, err)

	_, err = p.Ioctl(g, Recv, nil)
	require.NoError(t, err)
	g.Release()

	p.Disconnect()
	assert.False(t, p.IsConnected())

	_, err = p.Acquire()
	assert.ErrorIs(t, err, errs.ErrShuttingDown)
}

func TestFreeBeforeDisconnectPanics(t *testing.T) {
	p := New(NewID())
	require.NoError(t, p.Connect(Credentials{}))
	assert.Panics(t, func() { p.Free() })
}

func TestFreeAfterDisconnectSucceeds(t *testing.T) {
	p := New(NewID())
	require.NoError(t, p.Connect(Credentials{}))
	p.Disconnect()
	assert.NotPanics(t, func() { p.Free() })
}

func TestNewIDIsNonZero(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.NotZero(t, uint64(NewID()))
	}
}
