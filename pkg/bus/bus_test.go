package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbus-project/kbus/pkg/errs"
	"github.com/kbus-project/kbus/pkg/peer"
)

func TestConnectRegistersPeer(t *testing.T) {
	b := NewBus("ns")
	p, err := b.Connect(peer.Credentials{})
	require.NoError(t, err)
	assert.Contains(t, b.Peers(), p.ID)
}

func TestDisconnectRemovesPeer(t *testing.T) {
	b := NewBus("ns")
	p, err := b.Connect(peer.Credentials{})
	require.NoError(t, err)

	b.Disconnect(p)
	assert.NotContains(t, b.Peers(), p.ID)
	assert.False(t, p.IsConnected())
}

func TestDisconnectAllRemovesEveryPeer(t *testing.T) {
	b := NewBus("ns")
	var peers []*peer.Peer
	for i := 0; i < 3; i++ {
		p, err := b.Connect(peer.Credentials{})
		require.NoError(t, err)
		peers = append(peers, p)
	}

	b.DisconnectAll()

	assert.Empty(t, b.Peers())
	for _, p := range peers {
		assert.False(t, p.IsConnected())
	}
}

func TestResolveUnknownPeerFails(t *testing.T) {
	b := NewBus("ns")
	_, err := b.Resolve([]peer.ID{peer.ID(12345)})
	assert.ErrorIs(t, err, errs.ErrUnknownPeer)
}

func TestResolveAcquiresAndReleases(t *testing.T) {
	b := NewBus("ns")
	p, err := b.Connect(peer.Credentials{})
	require.NoError(t, err)

	res, err := b.Resolve([]peer.ID{p.ID})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.NotNil(t, res[0].Queue)

	res[0].Release()
}

func TestResolveRollsBackOnPartialFailure(t *testing.T) {
	b := NewBus("ns")
	live, err := b.Connect(peer.Credentials{})
	require.NoError(t, err)
	gone, err := b.Connect(peer.Credentials{})
	require.NoError(t, err)
	gone.Disconnect()

	_, err = b.Resolve([]peer.ID{live.ID, gone.ID})
	assert.Error(t, err)

	// live's Active reference must have been released, not leaked: a
	// subsequent disconnect must be able to drain immediately.
	b.Disconnect(live)
	assert.False(t, live.IsConnected())
}
