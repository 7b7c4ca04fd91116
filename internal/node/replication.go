package node

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nodeflow/calvinrt/internal/observability"
	"github.com/nodeflow/calvinrt/internal/store"
)

// LeaseReplicationManager is a reference ReplicationManager: it holds a
// distributed lease (via store.Coordinator) that fences which runtime node
// is currently allowed to drive replica placement decisions. The fencing
// epoch is bumped on every change of ownership so a deposed primary's
// writes can be rejected downstream.
type LeaseReplicationManager struct {
	coord            store.Coordinator
	nodeID           string
	leaseKey         string
	leaseTTL         time.Duration
	log              zerolog.Logger
	isReplicaPrimary bool
}

// NewLeaseReplicationManager creates a manager that contends for the
// "replication-primary" lease under nodeID's identity.
func NewLeaseReplicationManager(coord store.Coordinator, nodeID string, leaseTTL time.Duration, log zerolog.Logger) *LeaseReplicationManager {
	return &LeaseReplicationManager{
		coord:    coord,
		nodeID:   nodeID,
		leaseKey: "calvinrt:replication-primary",
		leaseTTL: leaseTTL,
		log:      log,
	}
}

// ReplicationLoop is called by the scheduler's replication task once per
// interval. It is best-effort: any failure is logged and the periodic task
// re-arms regardless.
func (r *LeaseReplicationManager) ReplicationLoop() {
	observability.ReplicationLoopRuns.Inc()
	ctx, cancel := context.WithTimeout(context.Background(), r.leaseTTL/2)
	defer cancel()

	if !r.isReplicaPrimary {
		ok, err := r.coord.AcquireLease(ctx, r.leaseKey, r.nodeID, r.leaseTTL)
		if err != nil {
			r.log.Warn().Err(err).Msg("replication_loop: lease acquisition failed")
			return
		}
		r.isReplicaPrimary = ok
		if ok {
			epoch, err := r.coord.IncrementEpoch(ctx, r.leaseKey)
			if err != nil {
				r.log.Warn().Err(err).Msg("replication_loop: epoch increment failed")
			} else {
				r.log.Info().Str("node_id", r.nodeID).Int64("epoch", epoch).Msg("became replication primary")
			}
		}
		return
	}

	ok, err := r.coord.RenewLease(ctx, r.leaseKey, r.nodeID, r.leaseTTL)
	if err != nil {
		r.log.Warn().Err(err).Msg("replication_loop: lease renewal failed")
		r.isReplicaPrimary = false
		return
	}
	if !ok {
		r.log.Warn().Msg("replication_loop: lost replication-primary lease")
		r.isReplicaPrimary = false
	}
}

// NoopReplicationManager is used when no coordination backend is
// configured (single-node dev runs); ReplicationLoop is a deliberate no-op.
type NoopReplicationManager struct{}

func (NoopReplicationManager) ReplicationLoop() {
	observability.ReplicationLoopRuns.Inc()
}
