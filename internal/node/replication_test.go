package node

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeCoordinator struct {
	acquireOK bool
	renewOK   bool
	failWith  error
	epoch     int64

	acquires int
	renews   int
}

func (c *fakeCoordinator) AcquireLease(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.acquires++
	return c.acquireOK, c.failWith
}

func (c *fakeCoordinator) RenewLease(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.renews++
	return c.renewOK, c.failWith
}

func (c *fakeCoordinator) ReleaseLease(ctx context.Context, key, value string) error {
	return c.failWith
}

func (c *fakeCoordinator) IncrementEpoch(ctx context.Context, key string) (int64, error) {
	c.epoch++
	return c.epoch, c.failWith
}

func TestReplicationLoopAcquiresLease(t *testing.T) {
	coord := &fakeCoordinator{acquireOK: true, renewOK: true}
	rm := NewLeaseReplicationManager(coord, "n1", 10*time.Second, zerolog.Nop())

	rm.ReplicationLoop()
	assert.Equal(t, 1, coord.acquires)
	assert.True(t, rm.isReplicaPrimary)
	assert.Equal(t, int64(1), coord.epoch, "becoming primary must bump the fencing epoch")

	rm.ReplicationLoop()
	assert.Equal(t, 1, coord.renews, "a primary renews instead of re-acquiring")
}

func TestReplicationLoopStaysSecondary(t *testing.T) {
	coord := &fakeCoordinator{acquireOK: false}
	rm := NewLeaseReplicationManager(coord, "n1", 10*time.Second, zerolog.Nop())

	rm.ReplicationLoop()
	rm.ReplicationLoop()
	assert.Equal(t, 2, coord.acquires)
	assert.False(t, rm.isReplicaPrimary)
}

func TestReplicationLoopDemotesOnLostLease(t *testing.T) {
	coord := &fakeCoordinator{acquireOK: true, renewOK: false}
	rm := NewLeaseReplicationManager(coord, "n1", 10*time.Second, zerolog.Nop())

	rm.ReplicationLoop()
	assert.True(t, rm.isReplicaPrimary)

	rm.ReplicationLoop()
	assert.False(t, rm.isReplicaPrimary, "a failed renewal demotes the node")
}

func TestReplicationLoopToleratesCoordinatorErrors(t *testing.T) {
	coord := &fakeCoordinator{failWith: errors.New("redis down")}
	rm := NewLeaseReplicationManager(coord, "n1", 10*time.Second, zerolog.Nop())

	assert.NotPanics(t, func() { rm.ReplicationLoop() })
	assert.False(t, rm.isReplicaPrimary)
}
