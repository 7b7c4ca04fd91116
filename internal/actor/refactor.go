package actor

import "sync"

// FireFunc computes one Fire() result. Tests and reference actors supply
// this directly instead of implementing a full flow-language action
// priority list.
type FireFunc func() (didFire, outputOK, exhausted bool)

// RefActor is a minimal, directly constructible Actor used by the
// reference ActorManager, by tests, and by any caller that wants a working
// actor without building a full flow-language runtime.
type RefActor struct {
	id  string
	typ string

	mu              sync.Mutex
	authorized      bool
	denied          bool
	fire            FireFunc
	exhaustionCalls int
	migrationInfo   *MigrationInfo
}

// NewRefActor creates an authorized, non-denied actor driven by fire.
func NewRefActor(id, typ string, fire FireFunc) *RefActor {
	return &RefActor{id: id, typ: typ, authorized: true, fire: fire}
}

func (a *RefActor) ID() string   { return a.id }
func (a *RefActor) Type() string { return a.typ }

func (a *RefActor) Authorized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authorized && !a.denied
}

func (a *RefActor) Fire() (bool, bool, bool) {
	a.mu.Lock()
	fn := a.fire
	a.mu.Unlock()
	if fn == nil {
		return false, true, true
	}
	return fn()
}

func (a *RefActor) HandleExhaustion(exhausted, outputOK bool) {
	a.mu.Lock()
	a.exhaustionCalls++
	a.mu.Unlock()
}

// ExhaustionCalls reports how many times HandleExhaustion has run, for
// tests asserting scenario 1 of the test plan.
func (a *RefActor) ExhaustionCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exhaustionCalls
}

// Deny marks the actor as denied authorization (maintenance loop target).
func (a *RefActor) Deny() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.denied = true
}

// SetMigrationInfo marks the actor as ready to migrate to nodeID.
func (a *RefActor) SetMigrationInfo(nodeID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.migrationInfo = &MigrationInfo{NodeID: nodeID}
}

func (a *RefActor) MigrationInfo() (MigrationInfo, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.migrationInfo == nil {
		return MigrationInfo{}, false
	}
	return *a.migrationInfo, true
}

func (a *RefActor) RemoveMigrationInfo() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.migrationInfo = nil
}

// EnableOrMigrate always clears the denial, re-authorizing the actor; it
// never migrates. Callers that model a still-denied actor should instead
// call Manager.Migrate directly.
func (a *RefActor) EnableOrMigrate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.denied = false
}
