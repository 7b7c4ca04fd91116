package scheduler

import "time"

// Strategy tags which per-tick firing policy a Scheduler runs. Modeling
// the three concrete schedulers as one struct parameterized by a tag,
// rather than three subclasses, keeps the shared machinery (task queue,
// monitor, periodic maintenance/replication, firing primitives) in one
// place.
type Strategy int

const (
	// Simple retries every enabled actor to quiescence each tick.
	Simple Strategy = iota
	// RoundRobin gives each enabled actor exactly one firing attempt per
	// tick.
	RoundRobin
	// NonPreemptive drains each actor fully before moving to the next.
	NonPreemptive
)

func (s Strategy) String() string {
	switch s {
	case Simple:
		return "simple"
	case RoundRobin:
		return "round_robin"
	case NonPreemptive:
		return "non_preemptive"
	default:
		return "unknown"
	}
}

// Config holds the scheduler's timing constants.
type Config struct {
	ReplicationInterval time.Duration // default 2s
	MaintenanceDelay    time.Duration // default 300s, overridable by config
	WatchdogDelay       time.Duration // default 60s
	FireBudget          time.Duration // default 20ms
}

// DefaultConfig returns the stock timing constants.
func DefaultConfig() Config {
	return Config{
		ReplicationInterval: 2 * time.Second,
		MaintenanceDelay:    300 * time.Second,
		WatchdogDelay:       60 * time.Second,
		FireBudget:          20 * time.Millisecond,
	}
}
