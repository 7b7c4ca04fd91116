package actor

import "sync"

// MigrationStore durably records actor placement/migration metadata. The
// scheduler never talks to this directly; only the actor manager does, on
// Migrate. internal/store provides a Postgres-backed implementation; nil
// is a valid, no-op store for tests and single-node dev runs.
type MigrationStore interface {
	RecordMigration(actorID, nodeID string) error
}

// InMemoryManager is the reference ActorManager: a flat registry of
// RefActors, bucketed into enabled/migratable/denied afresh on each call.
// Each strategy tick samples the enabled set exactly once, so re-deriving
// the buckets per call is both correct and simple.
type InMemoryManager struct {
	mu     sync.Mutex
	actors map[string]*RefActor
	store  MigrationStore
}

// NewInMemoryManager creates an empty manager. store may be nil.
func NewInMemoryManager(store MigrationStore) *InMemoryManager {
	return &InMemoryManager{
		actors: make(map[string]*RefActor),
		store:  store,
	}
}

func (m *InMemoryManager) Add(a *RefActor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actors[a.ID()] = a
}

func (m *InMemoryManager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.actors, id)
}

func (m *InMemoryManager) EnabledActors() []Actor {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Actor, 0, len(m.actors))
	for _, a := range m.actors {
		if a.Authorized() {
			out = append(out, a)
		}
	}
	return out
}

func (m *InMemoryManager) MigratableActors() []Migratable {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Migratable, 0)
	for _, a := range m.actors {
		if _, ok := a.MigrationInfo(); ok {
			out = append(out, a)
		}
	}
	return out
}

func (m *InMemoryManager) DeniedActors() []Deniable {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Deniable, 0)
	for _, a := range m.actors {
		if !a.Authorized() {
			out = append(out, a)
		}
	}
	return out
}

func (m *InMemoryManager) Migrate(id, nodeID string, cb func()) error {
	m.mu.Lock()
	store := m.store
	m.mu.Unlock()

	if store != nil {
		if err := store.RecordMigration(id, nodeID); err != nil {
			return err
		}
	}
	if cb != nil {
		cb()
	}
	return nil
}
