package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nodeflow/calvinrt/internal/actor"
	"github.com/nodeflow/calvinrt/internal/async"
	"github.com/nodeflow/calvinrt/internal/endpoint"
	"github.com/nodeflow/calvinrt/internal/monitor"
	"github.com/nodeflow/calvinrt/internal/node"
	"github.com/nodeflow/calvinrt/internal/observability"
)

const legacyWatchdogTimeout = time.Second

// BaselineScheduler is the older design retained for compatibility:
// it has no task queue, just a pending_actor_ids set and three
// independently-armed one-shot handles (loop_once, watchdog, replication).
// Kept observably distinct from Scheduler: its "next round" is only the
// actors tagged pending by an inbound event, never the full enabled set.
type BaselineScheduler struct {
	driver  async.Driver
	monitor monitor.Monitor
	actors  actor.Manager
	node    *node.Node
	cfg     Config
	log     zerolog.Logger

	mu                sync.Mutex
	pendingActorIDs   map[string]struct{}
	scheduled         async.Cancelable
	watchdogHandle    async.Cancelable
	replicationHandle async.Cancelable
	done              bool
}

// NewBaseline builds the legacy scheduler.
func NewBaseline(driver async.Driver, mon monitor.Monitor, actors actor.Manager, nd *node.Node, cfg Config, log zerolog.Logger) *BaselineScheduler {
	return &BaselineScheduler{
		driver:          driver,
		monitor:         mon,
		actors:          actors,
		node:            nd,
		cfg:             cfg,
		log:             log.With().Str("strategy", "baseline").Logger(),
		pendingActorIDs: make(map[string]struct{}),
	}
}

func (s *BaselineScheduler) Run() {
	s.armReplication(s.cfg.ReplicationInterval)
	s.armLoopOnce(0)
	s.driver.Run()
}

func (s *BaselineScheduler) Stop() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	if s.scheduled != nil {
		s.scheduled.Cancel()
	}
	if s.watchdogHandle != nil {
		s.watchdogHandle.Cancel()
	}
	if s.replicationHandle != nil {
		s.replicationHandle.Cancel()
	}
	s.mu.Unlock()
	s.driver.Post(func() { s.driver.Stop() })
}

func (s *BaselineScheduler) markPending(actorID string) {
	if actorID == "" {
		return
	}
	s.mu.Lock()
	s.pendingActorIDs[actorID] = struct{}{}
	s.mu.Unlock()
}

func (s *BaselineScheduler) armLoopOnce(delay time.Duration) {
	s.mu.Lock()
	if s.scheduled != nil {
		s.scheduled.Cancel()
	}
	h := s.driver.ScheduleAfter(delay, s.loopOnce)
	s.scheduled = h
	s.mu.Unlock()
}

func (s *BaselineScheduler) armWatchdog() {
	s.mu.Lock()
	if s.watchdogHandle != nil {
		s.watchdogHandle.Cancel()
	}
	h := s.driver.ScheduleAfter(legacyWatchdogTimeout, s.watchdogFire)
	s.watchdogHandle = h
	s.mu.Unlock()
}

func (s *BaselineScheduler) armReplication(delay time.Duration) {
	s.mu.Lock()
	if s.replicationHandle != nil {
		s.replicationHandle.Cancel()
	}
	h := s.driver.ScheduleAfter(delay, s.checkReplication)
	s.replicationHandle = h
	s.mu.Unlock()
}

func (s *BaselineScheduler) checkReplication() {
	if s.node != nil && s.node.RM != nil {
		s.node.RM.ReplicationLoop()
	}
	s.armReplication(s.cfg.ReplicationInterval)
}

// loopOnce performs the monitor-then-fire-then-strategy sequence over only
// the actors tagged pending since the last round.
func (s *BaselineScheduler) loopOnce() {
	s.mu.Lock()
	pending := s.pendingActorIDs
	s.pendingActorIDs = make(map[string]struct{})
	s.mu.Unlock()

	didTx := s.monitor.Communicate(s.monitor.Endpoints())

	var candidates []actor.Actor
	for _, a := range s.actors.EnabledActors() {
		if _, ok := pending[a.ID()]; ok {
			candidates = append(candidates, a)
		}
	}
	fired := s.fireActors(candidates, fireActorPreemptiveLegacy)
	observability.SchedulerDecisions.WithLabelValues("baseline_loop_once").Inc()
	s.strategy(didTx, fired)
}

// strategy re-arms loop_once immediately on activity, at the monitor's
// next backoff expiry if idle but something is pending retry, or falls
// back to the 1 s legacy watchdog.
func (s *BaselineScheduler) strategy(didTx bool, fired []string) {
	if didTx || len(fired) > 0 {
		s.armLoopOnce(0)
		return
	}
	if next, ok := s.monitor.NextSlot(); ok {
		delay := next.Sub(s.driver.Now())
		if delay < 0 {
			delay = 0
		}
		s.armLoopOnce(delay)
		return
	}
	s.armWatchdog()
}

func (s *BaselineScheduler) watchdogFire() {
	observability.WatchdogFires.Inc()
	s.log.Warn().Msg("baseline watchdog fired")
	s.armLoopOnce(0)
}

// fireActors mirrors the queue-based Scheduler's batch loop;
// BaselineScheduler needs its own copy since fireOnce is bound to
// *Scheduler.
func (s *BaselineScheduler) fireActors(actors []actor.Actor, primitive func(*BaselineScheduler, actor.Actor) bool) []string {
	var fired []string
	for _, a := range actors {
		if primitive(s, a) {
			fired = append(fired, a.ID())
		}
	}
	return fired
}

func fireActorPreemptiveLegacy(s *BaselineScheduler, a actor.Actor) bool {
	if !a.Authorized() {
		return false
	}
	start := s.driver.Now()
	fired := false
	for {
		didFire, outputOK, exhausted := s.fireOnce(a)
		fired = fired || didFire
		if didFire && s.driver.Now().Sub(start) > s.cfg.FireBudget {
			break
		}
		if !didFire {
			a.HandleExhaustion(exhausted, outputOK)
			break
		}
	}
	return fired
}

func (s *BaselineScheduler) fireOnce(a actor.Actor) (didFire, outputOK, exhausted bool) {
	defer func() {
		if r := recover(); r != nil {
			observability.ActorFireErrors.WithLabelValues(a.ID()).Inc()
			s.log.Error().Str("actor_id", a.ID()).Interface("panic", r).Msg("actor fire panicked, isolating")
			didFire, outputOK, exhausted = false, true, false
		}
	}()
	return a.Fire()
}

// Event API: unlike Scheduler, events only tag the owning actor pending
// and arm loop_once; they never touch a shared task queue.

func (s *BaselineScheduler) TunnelRx(ep endpoint.Endpoint) {
	s.markPending(ep.OwnerActorID())
	s.armLoopOnce(0)
}

func (s *BaselineScheduler) TunnelTxAck(ep endpoint.Endpoint) {
	s.monitor.ClearBackoff(ep)
	s.markPending(ep.OwnerActorID())
	s.armLoopOnce(0)
}

func (s *BaselineScheduler) TunnelTxNack(ep endpoint.Endpoint) {
	s.monitor.SetBackoff(ep)
	s.markPending(ep.OwnerActorID())
	next, ok := s.monitor.NextSlot()
	if !ok {
		return
	}
	delay := next.Sub(s.driver.Now())
	if delay < 0 {
		delay = 0
	}
	s.armLoopOnce(delay)
}

func (s *BaselineScheduler) TunnelTxThrottle(ep endpoint.Endpoint) {}

func (s *BaselineScheduler) ScheduleCalvinsys(actorID string) {
	s.markPending(actorID)
	s.armLoopOnce(0)
}

func (s *BaselineScheduler) RegisterEndpoint(ep endpoint.Endpoint) { s.monitor.RegisterEndpoint(ep) }
func (s *BaselineScheduler) UnregisterEndpoint(ep endpoint.Endpoint) {
	s.monitor.UnregisterEndpoint(ep)
}
