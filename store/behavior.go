package store

import (
	"context"
)

// BehaviorStats aggregates per-user reminder behavior counters.
type BehaviorStats struct {
	UserID               string
	CreateCount          int64
	UpdateCount          int64
	SnoozeCount          int64
	SnoozeMinutesTotal   int64
	DoneCount            int64
	CompleteMinutesTotal int64
	LastEventTs          int64
}

// BehaviorEventType identifies which counters a behavior event touches.
type BehaviorEventType string

const (
	BehaviorEventCreate BehaviorEventType = "create"
	BehaviorEventUpdate BehaviorEventType = "update"
	BehaviorEventSnooze BehaviorEventType = "snooze"
	BehaviorEventDone   BehaviorEventType = "done"
)

// BehaviorEvent records a single user action against the stats row.
// Minutes carries the snooze delta or completion latency, floored at zero
// by the caller.
type BehaviorEvent struct {
	UserID  string
	Type    BehaviorEventType
	Minutes int64
}

// AvgSnoozeMinutes returns the average snooze length, one decimal place.
func (b *BehaviorStats) AvgSnoozeMinutes() float64 {
	if b.SnoozeCount == 0 {
		return 0
	}
	return round1(float64(b.SnoozeMinutesTotal) / float64(b.SnoozeCount))
}

// AvgCompleteMinutes returns the average completion latency, one decimal place.
func (b *BehaviorStats) AvgCompleteMinutes() float64 {
	if b.DoneCount == 0 {
		return 0
	}
	return round1(float64(b.CompleteMinutesTotal) / float64(b.DoneCount))
}

func round1(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}

// RecordBehaviorEvent ensures the stats row exists and applies the event.
func (s *Store) RecordBehaviorEvent(ctx context.Context, event *BehaviorEvent) (*BehaviorStats, error) {
	return s.driver.RecordBehaviorEvent(ctx, event)
}

// GetBehaviorStats returns the stats row for a user, nil when absent.
func (s *Store) GetBehaviorStats(ctx context.Context, userID string) (*BehaviorStats, error) {
	return s.driver.GetBehaviorStats(ctx, userID)
}
