package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/nudgebot/nudge/store"
)

const reminderFields = `
	id, user_id, title, description, due_at_epoch, status, category,
	created_ts, updated_ts, memory_ref, last_notified_at,
	reschedule_count, last_rescheduled_at`

func (d *DB) CreateReminder(ctx context.Context, create *store.Reminder) (*store.Reminder, error) {
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	if create.UpdatedTs == 0 {
		create.UpdatedTs = now
	}
	if create.Status == "" {
		create.Status = store.ReminderStatusActive
	}
	if create.Category == "" {
		create.Category = "personal"
	}

	fields := []string{
		"user_id", "title", "description", "due_at_epoch", "status", "category",
		"created_ts", "updated_ts", "memory_ref", "reschedule_count",
	}
	placeholderValues := []any{
		create.UserID, create.Title, create.Description, create.DueAtEpoch, create.Status, create.Category,
		create.CreatedTs, create.UpdatedTs, create.MemoryRef, create.RescheduleCount,
	}

	stmt := `INSERT INTO reminder (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(placeholderValues)) + `)
		RETURNING id`

	if err := d.db.QueryRowContext(ctx, stmt, placeholderValues...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}

	return create, nil
}

func (d *DB) ListReminders(ctx context.Context, find *store.FindReminder) ([]*store.Reminder, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "reminder.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UserID; v != nil {
		where, args = append(where, "reminder.user_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Status; v != nil {
		where, args = append(where, "reminder.status = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Category; v != nil {
		where, args = append(where, "reminder.category = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Query; v != nil {
		pattern := "%" + strings.ToLower(*v) + "%"
		where = append(where, "(LOWER(reminder.title) LIKE "+placeholder(len(args)+1)+" OR LOWER(reminder.description) LIKE "+placeholder(len(args)+2)+")")
		args = append(args, pattern, pattern)
	}
	if v := find.DueAfter; v != nil {
		where, args = append(where, "reminder.due_at_epoch >= "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.DueBefore; v != nil {
		where, args = append(where, "reminder.due_at_epoch <= "+placeholder(len(args)+1)), append(args, *v)
	}
	if find.RescheduledOnly {
		where = append(where, "reminder.reschedule_count > 0")
	}

	query := `SELECT ` + reminderFields + `
		FROM reminder
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY reminder.due_at_epoch ASC, reminder.id ASC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
		if find.Offset != nil {
			query = fmt.Sprintf("%s OFFSET %d", query, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Reminder, 0)
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminders: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateReminder(ctx context.Context, update *store.UpdateReminder) (*store.Reminder, error) {
	now := time.Now().Unix()
	set, args := []string{}, []any{}

	if v := update.Title; v != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Description; v != nil {
		set, args = append(set, "description = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Status; v != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Category; v != nil {
		set, args = append(set, "category = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.MemoryRef; v != nil {
		set, args = append(set, "memory_ref = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.DueAtEpoch; v != nil {
		// A due change invalidates any prior notification for this reminder.
		set, args = append(set, "due_at_epoch = "+placeholder(len(args)+1)), append(args, *v)
		set = append(set, "last_notified_at = NULL")
	} else if v := update.LastNotifiedAt; v != nil {
		set, args = append(set, "last_notified_at = "+placeholder(len(args)+1)), append(args, *v)
	}
	if update.Rescheduled {
		set = append(set, "reschedule_count = reschedule_count + 1")
		set, args = append(set, "last_rescheduled_at = "+placeholder(len(args)+1)), append(args, now)
	}

	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, now)

	args = append(args, update.ID)
	stmt := `UPDATE reminder SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args))
	result, err := d.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update reminder: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, nil
	}

	list, err := d.ListReminders(ctx, &store.FindReminder{ID: &update.ID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (d *DB) DeleteReminder(ctx context.Context, delete *store.DeleteReminder) error {
	stmt := `DELETE FROM reminder WHERE id = ` + placeholder(1)
	result, err := d.db.ExecContext(ctx, stmt, delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("reminder not found")
	}

	return nil
}

func (d *DB) ListDueSoonReminders(ctx context.Context, userID string, nowEpoch, leadSeconds int64) ([]*store.Reminder, error) {
	query := `SELECT ` + reminderFields + `
		FROM reminder
		WHERE user_id = ?
		  AND status = 'active'
		  AND due_at_epoch >= ?
		  AND due_at_epoch <= ?
		  AND (last_notified_at IS NULL OR last_notified_at < due_at_epoch - ?)
		ORDER BY due_at_epoch ASC, id ASC`

	rows, err := d.db.QueryContext(ctx, query, userID, nowEpoch, nowEpoch+leadSeconds, leadSeconds)
	if err != nil {
		return nil, fmt.Errorf("failed to query due soon reminders: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Reminder, 0)
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due soon reminders: %w", err)
	}

	return list, nil
}

func (d *DB) ArchiveOverdueReminders(ctx context.Context, cutoffEpoch int64) ([]*store.Reminder, error) {
	now := time.Now().Unix()
	query := `UPDATE reminder SET status = 'completed', updated_ts = ?
		WHERE status = 'active' AND due_at_epoch < ?
		RETURNING ` + reminderFields

	rows, err := d.db.QueryContext(ctx, query, now, cutoffEpoch)
	if err != nil {
		return nil, fmt.Errorf("failed to archive overdue reminders: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Reminder, 0)
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate archived reminders: %w", err)
	}

	return list, nil
}

func scanReminder(rows *sql.Rows) (*store.Reminder, error) {
	var reminder store.Reminder
	var memoryRef sql.NullString
	var lastNotifiedAt, lastRescheduledAt sql.NullInt64

	if err := rows.Scan(
		&reminder.ID,
		&reminder.UserID,
		&reminder.Title,
		&reminder.Description,
		&reminder.DueAtEpoch,
		&reminder.Status,
		&reminder.Category,
		&reminder.CreatedTs,
		&reminder.UpdatedTs,
		&memoryRef,
		&lastNotifiedAt,
		&reminder.RescheduleCount,
		&lastRescheduledAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan reminder: %w", err)
	}

	if memoryRef.Valid {
		reminder.MemoryRef = &memoryRef.String
	}
	if lastNotifiedAt.Valid {
		reminder.LastNotifiedAt = &lastNotifiedAt.Int64
	}
	if lastRescheduledAt.Valid {
		reminder.LastRescheduledAt = &lastRescheduledAt.Int64
	}

	return &reminder, nil
}
