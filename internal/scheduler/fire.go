package scheduler

import (
	"github.com/nodeflow/calvinrt/internal/actor"
	"github.com/nodeflow/calvinrt/internal/observability"
)

// firePrimitive is one of the three ways a strategy drains an actor's
// ready actions. It returns whether the actor fired at least once.
type firePrimitive func(s *Scheduler, a actor.Actor) bool

// fireActorPreemptive fires a until an iteration reports no progress, or
// until an iteration that did fire crosses the fire budget: the
// time-sliced primitive that keeps any single actor from starving its
// neighbors on a shared tick. The budget is a cooperative yield bound
// checked only after a firing iteration, never a hard preemption.
func fireActorPreemptive(s *Scheduler, a actor.Actor) bool {
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

// fireActorNonPreemptive drains a to exhaustion regardless of elapsed
// time. The strategy trades tail latency for throughput on a single hot
// actor.
func fireActorNonPreemptive(s *Scheduler, a actor.Actor) bool {
	if !a.Authorized() {
		return false
	}
	fired := false
	for {
		didFire, outputOK, exhausted := s.fireOnce(a)
		if !didFire {
			a.HandleExhaustion(exhausted, outputOK)
			break
		}
		fired = true
	}
	return fired
}

// fireActorOnce attempts exactly one action: RoundRobin calls this once
// per actor per pass so every enabled actor gets a turn before any actor
// gets a second one.
func fireActorOnce(s *Scheduler, a actor.Actor) bool {
	if !a.Authorized() {
		return false
	}
	didFire, outputOK, exhausted := s.fireOnce(a)
	if !didFire {
		a.HandleExhaustion(exhausted, outputOK)
	}
	return didFire
}

// fireOnce calls a.Fire(), isolating any panic the actor's action raises
// so a misbehaving actor never aborts the run loop. A panic counts as a
// non-firing, non-exhausted attempt so HandleExhaustion semantics stay
// sane.
func (s *Scheduler) fireOnce(a actor.Actor) (didFire, outputOK, exhausted bool) {
	start := s.driver.Now()
	defer func() {
		observability.ActorFireDuration.WithLabelValues(s.tag.String()).Observe(s.driver.Now().Sub(start).Seconds())
		if r := recover(); r != nil {
			observability.ActorFireErrors.WithLabelValues(a.ID()).Inc()
			s.log.Error().
				Str("actor_id", a.ID()).
				Str("actor_type", a.Type()).
				Interface("panic", r).
				Msg("actor fire panicked, isolating")
			didFire, outputOK, exhausted = false, true, false
		}
	}()
	return a.Fire()
}

// fireActors runs primitive over every actor in actors, returning the IDs
// of actors that fired at least once. A panic from one actor never stops
// the rest.
func (s *Scheduler) fireActors(actors []actor.Actor, primitive firePrimitive) []string {
	var fired []string
	for _, a := range actors {
		if primitive(s, a) {
			fired = append(fired, a.ID())
		}
	}
	return fired
}
