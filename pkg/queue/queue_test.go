package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestS1SingleSend mirrors spec.md scenario S1: stage then commit on a
// single queue, peek returns the node, remove leaves it unreadable.
func TestS1SingleSend(t *testing.T) {
	q := New()
	n := NewNode(NodeMessage, 7, "hi")

	ts := q.Stage(n, 0)
	assert.Equal(t, uint64(1), ts)
	assert.False(t, q.IsReadable())

	isFront := q.CommitStaged(n, 2)
	assert.True(t, isFront)
	assert.True(t, q.IsReadable())

	got, cont := q.Peek()
	require.NotNil(t, got)
	assert.Same(t, n, got)
	assert.False(t, cont)

	q.Remove(got)
	assert.False(t, q.IsReadable())
}

// TestCommitUnstagedShortcut exercises the single-destination fast path.
func TestCommitUnstagedShortcut(t *testing.T) {
	q := New()
	n := NewNode(NodeMessage, 3, nil)
	ts := q.CommitUnstaged(n)
	assert.Equal(t, uint64(2), ts)
	assert.True(t, q.IsReadable())
}

// TestS4StagingBlocksFront mirrors spec.md scenario S4: a still-staged
// entry with a lower timestamp blocks a fully committed entry with a
// higher timestamp from becoming visible, until the staging entry either
// commits above it or is removed.
func TestS4StagingBlocksFront(t *testing.T) {
	q := New()

	y := NewNode(NodeMessage, 2, "Y")
	yTs := q.Stage(y, 0) // Y stays staged (its transaction hasn't committed yet)
	require.True(t, yTs&1 == 1)

	x := NewNode(NodeMessage, 1, "X")
	xStageTs := q.Stage(x, yTs+1)
	require.Greater(t, xStageTs, yTs, "X's stage must land above Y's still-pending stage")
	q.CommitStaged(x, xStageTs+1)

	assert.False(t, q.IsReadable(), "Y, staged below X's commit, must block front")
	got, _ := q.Peek()
	assert.Nil(t, got)

	// Commit Y above X: X should now be visible, ordered before Y.
	yCommitTs := q.CommitStaged(y, xStageTs+3)
	assert.False(t, yCommitTs, "Y commits after X, so Y is not the new front")

	got, _ = q.Peek()
	require.NotNil(t, got)
	assert.Same(t, x, got)

	q.Remove(x)
	got, _ = q.Peek()
	require.NotNil(t, got)
	assert.Same(t, y, got)
}

// TestRoundTripStageThenRemove covers property 8: staging then removing
// without commit leaves the queue as if the node never arrived.
func TestRoundTripStageThenRemove(t *testing.T) {
	q := New()
	n := NewNode(NodeMessage, 5, nil)
	q.Stage(n, 0)
	q.Remove(n)

	assert.False(t, q.IsReadable())
	got, _ := q.Peek()
	assert.Nil(t, got)
}

// TestSenderTieBreak mirrors scenario S3: two nodes at the same commit
// timestamp order by sender tag.
func TestSenderTieBreak(t *testing.T) {
	q := New()
	a := NewNode(NodeMessage, 9, "a")
	b := NewNode(NodeMessage, 7, "b")

	q.Stage(a, 19)
	q.Stage(b, 19)
	q.CommitStaged(a, 20)
	q.CommitStaged(b, 20)

	got, cont := q.Peek()
	require.NotNil(t, got)
	assert.Same(t, b, got, "lower sender tag (7) breaks the tie first")
	assert.True(t, cont)
}

func TestNoPartialDeliveryDuringStaging(t *testing.T) {
	q := New()
	n := NewNode(NodeMessage, 1, nil)
	q.Stage(n, 0)

	got, _ := q.Peek()
	assert.Nil(t, got, "a staged-only node must never be returned by Peek")
}

func TestWaitReadableWakesOnCommit(t *testing.T) {
	q := New()
	done := make(chan error, 1)
	go func() {
		done <- q.WaitReadable(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	n := NewNode(NodeMessage, 1, nil)
	q.CommitUnstaged(n)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitReadable did not wake up")
	}
}

func TestWaitReadableRespectsCancellation(t *testing.T) {
	q := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.WaitReadable(ctx)
	assert.Error(t, err)
	assert.False(t, q.IsReadable())
}

func TestFlushDrainsIndex(t *testing.T) {
	q := New()
	n1 := NewNode(NodeMessage, 1, nil)
	n2 := NewNode(NodeMessage, 2, nil)
	q.CommitUnstaged(n1)
	q.CommitUnstaged(n2)

	head := q.Flush()
	assert.False(t, q.IsReadable())

	count := 0
	for cur := head; cur != nil; cur = cur.next {
		count++
	}
	assert.Equal(t, 2, count)
}
