package scheduler

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow/calvinrt/internal/actor"
	"github.com/nodeflow/calvinrt/internal/asynctest"
	"github.com/nodeflow/calvinrt/internal/monitor"
	"github.com/nodeflow/calvinrt/internal/node"
)

type scriptActor struct {
	id         string
	denied     bool
	fire       func() (didFire, outputOK, exhausted bool)
	fireCalls  int
	didFires   int
	exhaustion int
}

func (a *scriptActor) ID() string       { return a.id }
func (a *scriptActor) Type() string     { return "test.Script" }
func (a *scriptActor) Authorized() bool { return !a.denied }
func (a *scriptActor) Fire() (bool, bool, bool) {
	a.fireCalls++
	if a.fire == nil {
		return false, true, true
	}
	didFire, outputOK, exhausted := a.fire()
	if didFire {
		a.didFires++
	}
	return didFire, outputOK, exhausted
}
func (a *scriptActor) HandleExhaustion(exhausted, outputOK bool) { a.exhaustion++ }

// firesN returns a fire func that reports progress n times, then none.
func firesN(n int) func() (bool, bool, bool) {
	remaining := n
	return func() (bool, bool, bool) {
		if remaining > 0 {
			remaining--
			return true, true, false
		}
		return false, true, false
	}
}

type fakeManager struct {
	enabled      []actor.Actor
	enabledCalls int
	migratable   []actor.Migratable
	denied       []actor.Deniable
	migrations   []string
}

func (m *fakeManager) EnabledActors() []actor.Actor {
	m.enabledCalls++
	return m.enabled
}
func (m *fakeManager) MigratableActors() []actor.Migratable { return m.migratable }
func (m *fakeManager) DeniedActors() []actor.Deniable       { return m.denied }
func (m *fakeManager) Migrate(id, nodeID string, cb func()) error {
	m.migrations = append(m.migrations, id+"->"+nodeID)
	if cb != nil {
		cb()
	}
	return nil
}

type testEndpoint struct {
	id        string
	owner     string
	commCalls int
}

func (e *testEndpoint) ID() string           { return e.id }
func (e *testEndpoint) OwnerActorID() string { return e.owner }
func (e *testEndpoint) Communicate() bool    { e.commCalls++; return false }

type countingRM struct{ calls int }

func (r *countingRM) ReplicationLoop() { r.calls++ }

// quietConfig keeps the periodic control loops far in the future so tests
// observe only the behavior under test.
func quietConfig() Config {
	return Config{
		ReplicationInterval: time.Hour,
		MaintenanceDelay:    time.Hour,
		WatchdogDelay:       time.Minute,
		FireBudget:          20 * time.Millisecond,
	}
}

func newTestScheduler(t *testing.T, tag Strategy, mgr actor.Manager, cfg Config) (*Scheduler, *asynctest.Driver, *monitor.Default) {
	t.Helper()
	driver := asynctest.New(time.Unix(0, 0))
	mon := monitor.New(zerolog.Nop())
	mon.SetNow(driver.Now)
	rm := &countingRM{}
	s := New(driver, mon, mgr, node.New("n1", rm), cfg, tag, zerolog.Nop())
	return s, driver, mon
}

// Cold start: one enabled actor fires once then reports no
// progress; the first tick drains it, handles exhaustion, and re-enqueues
// itself because there was activity.
func TestColdStart(t *testing.T) {
	a := &scriptActor{id: "a1", fire: firesN(1)}
	mgr := &fakeManager{enabled: []actor.Actor{a}}
	s, driver, _ := newTestScheduler(t, Simple, mgr, quietConfig())

	s.Run()
	driver.Advance(time.Millisecond)

	assert.Equal(t, 1, a.didFires, "the actor should have made progress exactly once")
	// Tick 1 fires then observes exhaustion; the re-enqueued tick 2 finds
	// the actor idle and handles exhaustion again before quiescing.
	assert.Equal(t, 3, a.fireCalls)
	assert.Equal(t, 2, a.exhaustion)
	assert.Equal(t, 2, mgr.enabledCalls, "enabled actors are sampled exactly once per tick")
}

// Nack then recover: backoff appears after the nack, clears on
// the ack, and a tick runs at or after the ack.
func TestNackThenRecover(t *testing.T) {
	mgr := &fakeManager{}
	s, driver, mon := newTestScheduler(t, Simple, mgr, quietConfig())
	e1 := &testEndpoint{id: "e1", owner: "a1"}
	e2 := &testEndpoint{id: "e2", owner: "a2"}
	s.RegisterEndpoint(e1)
	s.RegisterEndpoint(e2)

	s.TunnelTxNack(e1)
	_, ok := mon.NextSlot()
	require.True(t, ok, "next_slot must be defined immediately after a nack")

	driver.Advance(100 * time.Millisecond)
	s.TunnelTxAck(e1)
	_, ok = mon.NextSlot()
	assert.False(t, ok, "the ack must clear the backoff")

	before := e1.commCalls
	driver.Advance(0)
	assert.Greater(t, e1.commCalls, before, "a tick must pump endpoints at or after the ack")
}

// The watchdog re-enqueues the tick so the scheduler
// recovers from a missed wake-up.
func TestWatchdogReenqueuesTick(t *testing.T) {
	a := &scriptActor{id: "a1"}
	mgr := &fakeManager{enabled: []actor.Actor{a}}
	s, driver, _ := newTestScheduler(t, Simple, mgr, quietConfig())

	s.watchdog()
	driver.Advance(0)

	assert.Equal(t, 1, mgr.enabledCalls, "the watchdog must trigger a strategy tick")
}

// A flood of identical events coalesces into one pending
// tick.
func TestTunnelRxFloodCoalesces(t *testing.T) {
	mgr := &fakeManager{}
	s, _, _ := newTestScheduler(t, Simple, mgr, quietConfig())
	ep := &testEndpoint{id: "e1", owner: "a1"}
	s.RegisterEndpoint(ep)

	for i := 0; i < 100; i++ {
		s.TunnelRx(ep)
	}
	assert.Equal(t, 1, s.QueueLen())
}

// The maintenance loop migrates actors carrying migration info
// and invokes the remove-migration-info callback.
func TestMaintenanceMigration(t *testing.T) {
	cfg := quietConfig()
	cfg.MaintenanceDelay = 300 * time.Second

	a := actor.NewRefActor("a1", "test.Movable", nil)
	a.SetMigrationInfo("N2")
	mgr := &fakeManager{migratable: []actor.Migratable{a}}
	s, driver, _ := newTestScheduler(t, Simple, mgr, cfg)

	s.Run()
	driver.Advance(cfg.MaintenanceDelay)

	require.Equal(t, []string{"a1->N2"}, mgr.migrations)
	_, ok := a.MigrationInfo()
	assert.False(t, ok, "the migrate callback must have removed the migration info")
}

func TestTriggerMaintenanceLoop(t *testing.T) {
	a := actor.NewRefActor("a1", "test.Movable", nil)
	a.SetMigrationInfo("N3")
	mgr := &fakeManager{migratable: []actor.Migratable{a}}
	s, driver, _ := newTestScheduler(t, Simple, mgr, quietConfig())

	s.TriggerMaintenanceLoop(true)
	assert.Zero(t, s.QueueLen(), "delay=true leaves it to the periodic task")

	s.TriggerMaintenanceLoop(false)
	driver.Advance(0)
	assert.Equal(t, []string{"a1->N3"}, mgr.migrations)
}

// A panicking actor is isolated; the rest of the batch
// still fires and the tick completes.
func TestActorPanicIsolated(t *testing.T) {
	a1 := &scriptActor{id: "a1", fire: firesN(1)}
	a2 := &scriptActor{id: "a2", fire: func() (bool, bool, bool) { panic("boom") }}
	a3 := &scriptActor{id: "a3", fire: firesN(1)}
	mgr := &fakeManager{enabled: []actor.Actor{a1, a2, a3}}
	s, driver, _ := newTestScheduler(t, Simple, mgr, quietConfig())

	s.Run()
	require.NotPanics(t, func() { driver.Advance(time.Millisecond) })

	assert.Equal(t, 1, a1.didFires)
	assert.Equal(t, 1, a3.didFires, "actors after the faulting one must still fire")
}

// The preemptive primitive stops iterating once a firing iteration
// crosses the fire budget.
func TestFireBudgetBoundsPreemptive(t *testing.T) {
	mgr := &fakeManager{}
	s, driver, _ := newTestScheduler(t, Simple, mgr, quietConfig())

	slow := &scriptActor{id: "slow"}
	slow.fire = func() (bool, bool, bool) {
		driver.Bump(25 * time.Millisecond)
		return true, true, false
	}

	fired := fireActorPreemptive(s, slow)
	assert.True(t, fired)
	assert.Equal(t, 1, slow.fireCalls, "one 25ms iteration exceeds the 20ms budget")
	assert.Zero(t, slow.exhaustion, "a budget break is not exhaustion")
}

func TestFireNonPreemptiveDrains(t *testing.T) {
	mgr := &fakeManager{}
	s, driver, _ := newTestScheduler(t, NonPreemptive, mgr, quietConfig())

	slow := &scriptActor{id: "slow"}
	script := firesN(5)
	slow.fire = func() (bool, bool, bool) {
		driver.Bump(25 * time.Millisecond)
		return script()
	}

	fired := fireActorNonPreemptive(s, slow)
	assert.True(t, fired)
	assert.Equal(t, 6, slow.fireCalls, "non-preemptive ignores the budget and drains to exhaustion")
	assert.Equal(t, 1, slow.exhaustion)
}

func TestFireOnceSingleAttempt(t *testing.T) {
	mgr := &fakeManager{}
	s, _, _ := newTestScheduler(t, RoundRobin, mgr, quietConfig())

	a := &scriptActor{id: "a1", fire: firesN(3)}
	fired := fireActorOnce(s, a)
	assert.True(t, fired)
	assert.Equal(t, 1, a.fireCalls)
}

func TestUnauthorizedActorSkipped(t *testing.T) {
	mgr := &fakeManager{}
	s, _, _ := newTestScheduler(t, Simple, mgr, quietConfig())

	a := &scriptActor{id: "a1", denied: true, fire: firesN(1)}
	assert.False(t, fireActorPreemptive(s, a))
	assert.False(t, fireActorNonPreemptive(s, a))
	assert.False(t, fireActorOnce(s, a))
	assert.Zero(t, a.fireCalls)
}

// RoundRobin gives each enabled actor exactly one attempt per tick, so an
// actor with three tokens needs three activity-driven re-ticks to drain.
func TestRoundRobinOneAttemptPerPass(t *testing.T) {
	a := &scriptActor{id: "a1", fire: firesN(3)}
	mgr := &fakeManager{enabled: []actor.Actor{a}}
	s, driver, _ := newTestScheduler(t, RoundRobin, mgr, quietConfig())

	s.Run()
	driver.Advance(0)

	assert.Equal(t, 3, a.didFires)
	// Three firing passes plus the final idle pass that observes
	// exhaustion.
	assert.Equal(t, 4, a.fireCalls)
	assert.Equal(t, 4, mgr.enabledCalls)
}

func TestCheckReplicationPeriodic(t *testing.T) {
	cfg := quietConfig()
	cfg.ReplicationInterval = 2 * time.Second

	driver := asynctest.New(time.Unix(0, 0))
	mon := monitor.New(zerolog.Nop())
	mon.SetNow(driver.Now)
	rm := &countingRM{}
	mgr := &fakeManager{}
	s := New(driver, mon, mgr, node.New("n1", rm), cfg, Simple, zerolog.Nop())

	s.Run()
	driver.Advance(5 * time.Second)

	assert.Equal(t, 2, rm.calls, "replication_loop runs at 2s and 4s")
}

func TestStopIsIdempotent(t *testing.T) {
	mgr := &fakeManager{}
	s, driver, _ := newTestScheduler(t, Simple, mgr, quietConfig())

	require.False(t, s.Done())
	s.Stop()
	s.Stop()
	assert.True(t, s.Done())
	driver.Advance(0)
}

func TestParseStrategy(t *testing.T) {
	for name, want := range map[string]Strategy{
		"":               Simple,
		"simple":         Simple,
		"round_robin":    RoundRobin,
		"roundrobin":     RoundRobin,
		"non_preemptive": NonPreemptive,
		"nonpreemptive":  NonPreemptive,
	} {
		got, ok := ParseStrategy(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}
	_, ok := ParseStrategy("fair")
	assert.False(t, ok)
}
