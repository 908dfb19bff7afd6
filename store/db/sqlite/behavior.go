package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nudgebot/nudge/store"
)

func (d *DB) RecordBehaviorEvent(ctx context.Context, event *store.BehaviorEvent) (*store.BehaviorStats, error) {
	now := time.Now().Unix()

	// Ensure the row exists before applying counters.
	ensure := `INSERT INTO behavior_stats (user_id) VALUES (` + placeholder(1) + `)
		ON CONFLICT(user_id) DO NOTHING`
	if _, err := d.db.ExecContext(ctx, ensure, event.UserID); err != nil {
		return nil, fmt.Errorf("failed to ensure behavior stats row: %w", err)
	}

	minutes := maxInt64(event.Minutes, 0)

	var stmt string
	args := []any{}
	switch event.Type {
	case store.BehaviorEventCreate:
		stmt = `UPDATE behavior_stats SET create_count = create_count + 1, last_event_ts = ? WHERE user_id = ?`
		args = append(args, now, event.UserID)
	case store.BehaviorEventUpdate:
		stmt = `UPDATE behavior_stats SET update_count = update_count + 1, last_event_ts = ? WHERE user_id = ?`
		args = append(args, now, event.UserID)
	case store.BehaviorEventSnooze:
		stmt = `UPDATE behavior_stats SET snooze_count = snooze_count + 1, snooze_minutes_total = snooze_minutes_total + ?, last_event_ts = ? WHERE user_id = ?`
		args = append(args, minutes, now, event.UserID)
	case store.BehaviorEventDone:
		stmt = `UPDATE behavior_stats SET done_count = done_count + 1, complete_minutes_total = complete_minutes_total + ?, last_event_ts = ? WHERE user_id = ?`
		args = append(args, minutes, now, event.UserID)
	default:
		return nil, fmt.Errorf("unknown behavior event type: %s", event.Type)
	}

	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to record behavior event: %w", err)
	}

	return d.GetBehaviorStats(ctx, event.UserID)
}

func (d *DB) GetBehaviorStats(ctx context.Context, userID string) (*store.BehaviorStats, error) {
	query := `SELECT user_id, create_count, update_count, snooze_count,
			snooze_minutes_total, done_count, complete_minutes_total, last_event_ts
		FROM behavior_stats WHERE user_id = ` + placeholder(1)

	var stats store.BehaviorStats
	err := d.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.UserID,
		&stats.CreateCount,
		&stats.UpdateCount,
		&stats.SnoozeCount,
		&stats.SnoozeMinutesTotal,
		&stats.DoneCount,
		&stats.CompleteMinutesTotal,
		&stats.LastEventTs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get behavior stats: %w", err)
	}

	return &stats, nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
