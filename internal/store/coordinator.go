// Package store provides the durable and distributed-coordination backends
// the runtime's external collaborators (actor manager, replication
// manager) use. None of this is read or written by the scheduler core
// itself; what lives here is actor placement/migration metadata and
// cross-node leader-election state.
package store

import (
	"context"
	"time"
)

// Coordinator is the distributed lock/lease primitive the replication
// manager uses to decide which node currently drives replication control:
// just leases plus a fencing epoch.
type Coordinator interface {
	// AcquireLease attempts to take a lease for key, storing value as the
	// holder's metadata. Returns true if acquired.
	AcquireLease(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// RenewLease extends the TTL of a held lease if value still matches.
	RenewLease(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// ReleaseLease drops the lease if held with the given value.
	ReleaseLease(ctx context.Context, key, value string) error
	// IncrementEpoch returns a monotonically increasing fencing token for
	// key, durable across process restarts.
	IncrementEpoch(ctx context.Context, key string) (int64, error)
}
