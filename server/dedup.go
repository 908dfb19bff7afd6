package server

import (
	"sync"
	"time"
)

// EventDedup suppresses duplicate webhook deliveries. Chat platforms retry
// events on slow responses, so an event id seen within the TTL is dropped
// before any business logic runs. Entries are pruned lazily on each check.
type EventDedup struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewEventDedup creates a dedup guard with the given TTL.
func NewEventDedup(ttl time.Duration) *EventDedup {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &EventDedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Seen records the event id and reports whether it was already seen within
// the TTL window. Empty ids are never deduplicated.
func (d *EventDedup) Seen(eventID string) bool {
	if eventID == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	cutoff := now.Add(-d.ttl)
	for id, at := range d.seen {
		if at.Before(cutoff) {
			delete(d.seen, id)
		}
	}

	if at, ok := d.seen[eventID]; ok && !at.Before(cutoff) {
		return true
	}
	d.seen[eventID] = now
	return false
}

// Len returns the number of tracked event ids.
func (d *EventDedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
