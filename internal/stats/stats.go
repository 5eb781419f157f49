// Package stats tracks event processing counters for the ops endpoints.
package stats

import (
	"sync"
	"time"
)

// TenantCounts is the per-tenant breakdown.
type TenantCounts struct {
	Received  int64 `json:"received"`
	Forwarded int64 `json:"forwarded"`
	Failed    int64 `json:"failed"`
}

// Snapshot is a point-in-time copy of the tracker. It is never mutated after
// Snapshot returns it.
type Snapshot struct {
	TotalReceived  int64                   `json:"total_events_received"`
	TotalForwarded int64                   `json:"total_events_forwarded"`
	TotalFailed    int64                   `json:"total_events_failed"`
	ByTenant       map[string]TenantCounts `json:"events_by_tenant"`
	ByLevel        map[string]int64        `json:"events_by_level"`
	LastEventTime  *time.Time              `json:"last_event_time"`
	StartTime      time.Time               `json:"service_start_time"`
	CurrentTime    time.Time               `json:"current_time"`
	UptimeSeconds  float64                 `json:"uptime_seconds"`
	SuccessRate    float64                 `json:"success_rate"`
}

type counters struct {
	received  int64
	forwarded int64
	failed    int64
	byTenant  map[string]*TenantCounts
	byLevel   map[string]int64
	lastEvent time.Time
	start     time.Time
}

// Tracker is a mutex-guarded set of counters shared by all request handlers.
type Tracker struct {
	mu  sync.Mutex
	c   counters
	now func() time.Time
}

// New returns a Tracker whose start time is now.
func New() *Tracker {
	return NewWithClock(time.Now)
}

// NewWithClock is New with an injectable clock.
func NewWithClock(now func() time.Time) *Tracker {
	t := &Tracker{now: now}
	t.c = t.fresh()
	return t
}

func (t *Tracker) fresh() counters {
	return counters{
		byTenant: make(map[string]*TenantCounts),
		byLevel:  make(map[string]int64),
		start:    t.now().UTC(),
	}
}

func (t *Tracker) tenantLocked(tenant string) *TenantCounts {
	tc, ok := t.c.byTenant[tenant]
	if !ok {
		tc = &TenantCounts{}
		t.c.byTenant[tenant] = tc
	}
	return tc
}

// RecordReceived counts an accepted inbound event. tenant may be empty.
func (t *Tracker) RecordReceived(tenant string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.c.received++
	t.c.lastEvent = t.now().UTC()
	if tenant != "" {
		t.tenantLocked(tenant).Received++
	}
}

// RecordForwarded counts a delivered event. tenant and level may be empty.
func (t *Tracker) RecordForwarded(tenant, level string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.c.forwarded++
	if tenant != "" {
		t.tenantLocked(tenant).Forwarded++
	}
	if level != "" {
		t.c.byLevel[level]++
	}
}

// RecordFailed counts an event that was not delivered. tenant may be empty.
func (t *Tracker) RecordFailed(tenant string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.c.failed++
	if tenant != "" {
		t.tenantLocked(tenant).Failed++
	}
}

// Snapshot returns a consistent copy of all counters.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().UTC()
	s := Snapshot{
		TotalReceived:  t.c.received,
		TotalForwarded: t.c.forwarded,
		TotalFailed:    t.c.failed,
		ByTenant:       make(map[string]TenantCounts, len(t.c.byTenant)),
		ByLevel:        make(map[string]int64, len(t.c.byLevel)),
		StartTime:      t.c.start,
		CurrentTime:    now,
		UptimeSeconds:  now.Sub(t.c.start).Seconds(),
	}
	for k, v := range t.c.byTenant {
		s.ByTenant[k] = *v
	}
	for k, v := range t.c.byLevel {
		s.ByLevel[k] = v
	}
	if !t.c.lastEvent.IsZero() {
		last := t.c.lastEvent
		s.LastEventTime = &last
	}
	if done := t.c.forwarded + t.c.failed; done > 0 {
		s.SuccessRate = float64(t.c.forwarded) / float64(done)
	}
	return s
}

// Reset replaces every counter and restarts the uptime clock.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.c = t.fresh()
}
