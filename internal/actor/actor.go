// Package actor defines the external Actor/ActorManager contract the
// scheduler core depends on and supplies a reference, in-memory
// implementation so the scheduler package is independently testable and
// runnable without a full flow-language runtime behind it.
package actor

// Actor is the reactive computational unit the scheduler fires. The
// scheduler never mutates actor state directly; it only calls these
// documented methods.
type Actor interface {
	ID() string
	Type() string
	// Authorized reports whether the runtime currently permits this actor
	// to run.
	Authorized() bool
	// Fire attempts the highest-priority enabled action. didFire is true if
	// an action ran; outputOK and exhausted describe the result for
	// HandleExhaustion when didFire is false.
	Fire() (didFire, outputOK, exhausted bool)
	// HandleExhaustion is called once Fire reports didFire == false.
	HandleExhaustion(exhausted, outputOK bool)
}

// MigrationInfo carries the destination for a pending migration.
type MigrationInfo struct {
	NodeID string
}

// Migratable is implemented by actors the actor manager considers ready to
// move to another node.
type Migratable interface {
	Actor
	MigrationInfo() (MigrationInfo, bool)
	// RemoveMigrationInfo is the callback Manager.Migrate invokes once the
	// migration has been accepted.
	RemoveMigrationInfo()
}

// Deniable is implemented by actors currently denied authorization to run,
// which the maintenance loop periodically re-evaluates.
type Deniable interface {
	Actor
	// EnableOrMigrate re-checks access; if still denied, it should arrange
	// its own migration via the owning manager.
	EnableOrMigrate()
}

// Manager is the external actor manager contract: it enumerates actors in
// each of the three buckets the scheduler reads, and performs migration on
// the scheduler's behalf.
type Manager interface {
	EnabledActors() []Actor
	MigratableActors() []Migratable
	DeniedActors() []Deniable
	// Migrate requests the actor with id be moved to nodeID, invoking cb once
	// the request has been durably recorded.
	Migrate(id, nodeID string, cb func()) error
}
