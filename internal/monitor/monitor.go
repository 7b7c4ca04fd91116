// Package monitor implements the event monitor: the registry of
// endpoints, the per-endpoint backoff bookkeeping, and the batch
// Communicate primitive the scheduler strategies drive every tick.
package monitor

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/nodeflow/calvinrt/internal/endpoint"
	"github.com/nodeflow/calvinrt/internal/observability"
)

// Monitor is the interface the scheduler strategies depend on.
type Monitor interface {
	RegisterEndpoint(ep endpoint.Endpoint)
	UnregisterEndpoint(ep endpoint.Endpoint)
	Endpoints() []endpoint.Endpoint
	Communicate(endpoints []endpoint.Endpoint) bool
	SetBackoff(ep endpoint.Endpoint)
	ClearBackoff(ep endpoint.Endpoint)
	NextSlot() (time.Time, bool)
}

// record is the per-endpoint bookkeeping the monitor owns. The endpoint
// object itself stays owned by its port; the monitor only keys off its ID.
type record struct {
	ep              endpoint.Endpoint
	blockedUntil    time.Time
	consecutiveNack int
}

const (
	baseBackoff = 50 * time.Millisecond
	maxBackoff  = 4 * time.Second
)

// Default is the production Monitor implementation. Now is overridable for
// deterministic tests.
type Default struct {
	mu      sync.Mutex
	order   []string // endpoint IDs in registration order, for stable iteration
	records map[string]*record

	now func() time.Time

	// logStorm bounds how often a backoff transition is logged when many
	// endpoints nack in quick succession. It caps log volume only; it never
	// gates the backoff decision itself.
	logStorm *rate.Limiter
	log      zerolog.Logger
}

// New creates an empty monitor.
func New(log zerolog.Logger) *Default {
	return &Default{
		records:  make(map[string]*record),
		now:      time.Now,
		logStorm: rate.NewLimiter(rate.Limit(5), 5),
		log:      log,
	}
}

func (m *Default) RegisterEndpoint(ep endpoint.Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[ep.ID()]; exists {
		return // idempotent re-registration
	}
	m.records[ep.ID()] = &record{ep: ep}
	m.order = append(m.order, ep.ID())
}

func (m *Default) UnregisterEndpoint(ep endpoint.Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[ep.ID()]; !exists {
		return // unknown endpoint: no-op
	}
	delete(m.records, ep.ID())
	for i, id := range m.order {
		if id == ep.ID() {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *Default) Endpoints() []endpoint.Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]endpoint.Endpoint, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id].ep)
	}
	return out
}

// Communicate attempts to transfer tokens across every endpoint whose
// backoff has expired, skipping any with blockedUntil in the future.
// Returns true iff at least one token moved.
func (m *Default) Communicate(endpoints []endpoint.Endpoint) bool {
	now := m.now()
	didTransfer := false
	for _, ep := range endpoints {
		m.mu.Lock()
		rec, ok := m.records[ep.ID()]
		blocked := false
		expired := false
		if ok && !rec.blockedUntil.IsZero() {
			if rec.blockedUntil.After(now) {
				blocked = true
			} else {
				// Retire the expired backoff so NextSlot stops reporting a
				// slot that is already in the past; the nack streak is kept
				// so the curve keeps growing until an ack arrives.
				rec.blockedUntil = time.Time{}
				expired = true
			}
		}
		m.mu.Unlock()
		if expired {
			observability.BackoffActiveEndpoints.Dec()
		}
		if blocked {
			continue
		}
		if ep.Communicate() {
			didTransfer = true
		}
	}
	return didTransfer
}

// SetBackoff marks an endpoint backed off, growing the delay
// exponentially (capped) over consecutive nacks until an ack clears it.
func (m *Default) SetBackoff(ep endpoint.Endpoint) {
	m.mu.Lock()
	rec, ok := m.records[ep.ID()]
	if !ok {
		rec = &record{ep: ep}
		m.records[ep.ID()] = rec
		m.order = append(m.order, ep.ID())
	}
	wasBlocked := !rec.blockedUntil.IsZero()
	rec.consecutiveNack++
	delay := baseBackoff << uint(rec.consecutiveNack-1)
	if delay > maxBackoff || delay <= 0 {
		delay = maxBackoff
	}
	rec.blockedUntil = m.now().Add(delay)
	blockedUntil := rec.blockedUntil
	nack := rec.consecutiveNack
	m.mu.Unlock()

	if !wasBlocked {
		observability.BackoffActiveEndpoints.Inc()
	}
	if m.logStorm.Allow() {
		m.log.Debug().
			Str("endpoint_id", ep.ID()).
			Str("owner_actor_id", ep.OwnerActorID()).
			Int("consecutive_nack", nack).
			Time("blocked_until", blockedUntil).
			Msg("endpoint backed off")
	}
}

// ClearBackoff resets an endpoint's backoff to none (called on ack).
func (m *Default) ClearBackoff(ep endpoint.Endpoint) {
	m.mu.Lock()
	rec, ok := m.records[ep.ID()]
	wasBlocked := ok && !rec.blockedUntil.IsZero()
	if ok {
		rec.blockedUntil = time.Time{}
		rec.consecutiveNack = 0
	}
	m.mu.Unlock()
	if wasBlocked {
		observability.BackoffActiveEndpoints.Dec()
	}
}

// NextSlot returns the earliest blockedUntil among currently backed-off
// endpoints, or false if none are backed off.
func (m *Default) NextSlot() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next time.Time
	found := false
	for _, rec := range m.records {
		if rec.blockedUntil.IsZero() {
			continue
		}
		if !found || rec.blockedUntil.Before(next) {
			next = rec.blockedUntil
			found = true
		}
	}
	return next, found
}

// SetNow overrides the monitor's clock, used by tests to drive backoff
// expiry deterministically.
func (m *Default) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}
