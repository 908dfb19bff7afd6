package store

import (
	"context"
	"sort"
	"time"
)

// ReminderStatus is the lifecycle status of a reminder.
type ReminderStatus string

const (
	ReminderStatusActive    ReminderStatus = "active"
	ReminderStatusCompleted ReminderStatus = "completed"
)

// Reminder is the object representing a reminder row.
type Reminder struct {
	ID               int64
	UserID           string
	Title            string
	Description      string
	DueAtEpoch       int64
	Status           ReminderStatus
	Category         string
	CreatedTs        int64
	UpdatedTs        int64
	MemoryRef        *string
	LastNotifiedAt   *int64
	RescheduleCount  int64
	LastRescheduledAt *int64
}

// FindReminder is the find condition for reminders.
type FindReminder struct {
	ID       *int64
	UserID   *string
	Status   *ReminderStatus
	Category *string

	// Query is a case-insensitive substring match over title and description.
	Query *string

	// Due range filters, inclusive.
	DueAfter  *int64
	DueBefore *int64

	// RescheduledOnly keeps rows with reschedule_count > 0.
	RescheduledOnly bool

	Limit  *int
	Offset *int
}

// UpdateReminder is the update request for a reminder.
// A non-nil DueAtEpoch clears last_notified_at; the Rescheduled flag
// additionally bumps reschedule_count and stamps last_rescheduled_at.
type UpdateReminder struct {
	ID          int64
	Title       *string
	Description *string
	DueAtEpoch  *int64
	Status      *ReminderStatus
	Category    *string
	MemoryRef   *string
	Rescheduled bool

	// LastNotifiedAt marks delivery. Ignored when DueAtEpoch is also set,
	// since a due change resets notification state.
	LastNotifiedAt *int64
}

// DeleteReminder is the delete request for a reminder.
type DeleteReminder struct {
	ID int64
}

// DueTime returns the due moment as time.Time.
func (r *Reminder) DueTime() time.Time {
	return time.Unix(r.DueAtEpoch, 0)
}

// IsActive reports whether the reminder is still pending.
func (r *Reminder) IsActive() bool {
	return r.Status == ReminderStatusActive
}

// CreateReminder creates a new reminder.
func (s *Store) CreateReminder(ctx context.Context, create *Reminder) (*Reminder, error) {
	reminder, err := s.driver.CreateReminder(ctx, create)
	if err != nil {
		return nil, err
	}
	s.invalidateUserContext(create.UserID)
	return reminder, nil
}

// GetReminder gets a single reminder, nil when not found.
func (s *Store) GetReminder(ctx context.Context, find *FindReminder) (*Reminder, error) {
	list, err := s.driver.ListReminders(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListReminders lists reminders with filter, ordered by due time ascending.
func (s *Store) ListReminders(ctx context.Context, find *FindReminder) ([]*Reminder, error) {
	return s.driver.ListReminders(ctx, find)
}

// UpdateReminder updates a reminder and returns the fresh row.
func (s *Store) UpdateReminder(ctx context.Context, update *UpdateReminder) (*Reminder, error) {
	reminder, err := s.driver.UpdateReminder(ctx, update)
	if err != nil {
		return nil, err
	}
	if reminder != nil {
		s.invalidateUserContext(reminder.UserID)
	}
	return reminder, nil
}

// DeleteReminder deletes a reminder row.
func (s *Store) DeleteReminder(ctx context.Context, delete *DeleteReminder) error {
	reminder, err := s.GetReminder(ctx, &FindReminder{ID: &delete.ID})
	if err != nil {
		return err
	}
	if err := s.driver.DeleteReminder(ctx, delete); err != nil {
		return err
	}
	if reminder != nil {
		s.invalidateUserContext(reminder.UserID)
	}
	return nil
}

// ListDueSoonReminders returns active reminders due within the lead window
// that have not been notified for their current due time yet.
func (s *Store) ListDueSoonReminders(ctx context.Context, userID string, now time.Time, lead time.Duration) ([]*Reminder, error) {
	return s.driver.ListDueSoonReminders(ctx, userID, now.Unix(), int64(lead.Seconds()))
}

// MarkReminderNotified stamps last_notified_at without touching anything else.
func (s *Store) MarkReminderNotified(ctx context.Context, id int64, at time.Time) (*Reminder, error) {
	ts := at.Unix()
	return s.UpdateReminder(ctx, &UpdateReminder{ID: id, LastNotifiedAt: &ts})
}

// ArchiveOverdueReminders completes every active reminder whose due time is
// strictly before the cutoff. Returns the affected rows.
func (s *Store) ArchiveOverdueReminders(ctx context.Context, cutoff time.Time) ([]*Reminder, error) {
	list, err := s.driver.ArchiveOverdueReminders(ctx, cutoff.Unix())
	if err != nil {
		return nil, err
	}
	for _, r := range list {
		s.invalidateUserContext(r.UserID)
	}
	return list, nil
}

// CommonDueTimes returns the most frequent HH:MM due times for a user and
// category, most frequent first. Ties resolve alphabetically so the result
// is stable.
func (s *Store) CommonDueTimes(ctx context.Context, userID, category string, loc *time.Location, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 3
	}
	if loc == nil {
		loc = time.Local
	}
	list, err := s.driver.ListReminders(ctx, &FindReminder{UserID: &userID, Category: &category})
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, r := range list {
		hm := r.DueTime().In(loc).Format("15:04")
		counts[hm]++
	}
	times := make([]string, 0, len(counts))
	for hm := range counts {
		times = append(times, hm)
	}
	sort.Slice(times, func(i, j int) bool {
		if counts[times[i]] != counts[times[j]] {
			return counts[times[i]] > counts[times[j]]
		}
		return times[i] < times[j]
	})
	if len(times) > limit {
		times = times[:limit]
	}
	return times, nil
}
