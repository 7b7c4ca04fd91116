package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/calvinrt/internal/token"
)

func TestQueueBuffersAndTransfers(t *testing.T) {
	q := NewQueue("a1", Outbound, 2)
	assert.Equal(t, "a1", q.OwnerActorID())
	assert.Equal(t, Outbound, q.Direction())
	assert.NotEmpty(t, q.ID())

	require.True(t, q.Push(token.Token{Seq: 1, Payload: "x"}))
	require.True(t, q.Push(token.Token{Seq: 2, Payload: "y"}))
	assert.False(t, q.Push(token.Token{Seq: 3}), "buffer full")
	assert.Equal(t, 2, q.Pending())

	assert.True(t, q.Communicate())
	assert.True(t, q.Communicate())
	assert.False(t, q.Communicate(), "nothing left to move")

	require.True(t, q.Push(token.Token{Seq: 3}), "transfer freed a slot")
}

func TestEmptyQueueHasNothingToMove(t *testing.T) {
	q := NewQueue("a1", Inbound, 4)
	assert.False(t, q.Communicate())
	assert.Zero(t, q.Pending())
}

func TestQueueIDsAreUnique(t *testing.T) {
	a := NewQueue("a1", Outbound, 1)
	b := NewQueue("a1", Outbound, 1)
	assert.NotEqual(t, a.ID(), b.ID())
}
