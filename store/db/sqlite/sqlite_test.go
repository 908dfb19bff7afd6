package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nudgebot/nudge/internal/profile"
	"github.com/nudgebot/nudge/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	p := &profile.Profile{
		Driver:          "sqlite",
		DSN:             filepath.Join(t.TempDir(), "test.db"),
		ContextCacheTTL: time.Minute,
	}
	driver, err := NewDB(p)
	require.NoError(t, err)
	require.NoError(t, driver.Migrate(context.Background()))

	s := store.New(driver, p)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createReminder(t *testing.T, s *store.Store, userID, title string, due time.Time) *store.Reminder {
	t.Helper()
	r, err := s.CreateReminder(context.Background(), &store.Reminder{
		UserID:     userID,
		Title:      title,
		DueAtEpoch: due.Unix(),
	})
	require.NoError(t, err)
	return r
}

func TestCreateReminder_Defaults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r := createReminder(t, s, "U1", "pay rent", time.Now().Add(time.Hour))

	assert.NotZero(t, r.ID)
	assert.Equal(t, store.ReminderStatusActive, r.Status)
	assert.Equal(t, "personal", r.Category)
	assert.NotZero(t, r.CreatedTs)
	assert.NotZero(t, r.UpdatedTs)

	got, err := s.GetReminder(ctx, &store.FindReminder{ID: &r.ID})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "pay rent", got.Title)
	assert.Nil(t, got.LastNotifiedAt)
}

func TestUpdateReminder_DueChangeClearsNotified(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r := createReminder(t, s, "U1", "call dentist", time.Now().Add(time.Hour))

	_, err := s.MarkReminderNotified(ctx, r.ID, time.Now())
	require.NoError(t, err)

	got, err := s.GetReminder(ctx, &store.FindReminder{ID: &r.ID})
	require.NoError(t, err)
	require.NotNil(t, got.LastNotifiedAt)

	newDue := time.Now().Add(2 * time.Hour).Unix()
	updated, err := s.UpdateReminder(ctx, &store.UpdateReminder{ID: r.ID, DueAtEpoch: &newDue})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, newDue, updated.DueAtEpoch)
	assert.Nil(t, updated.LastNotifiedAt, "due change must clear last_notified_at")
}

func TestUpdateReminder_RescheduleBookkeeping(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r := createReminder(t, s, "U1", "team standup", time.Now().Add(time.Hour))

	newDue := time.Now().Add(3 * time.Hour).Unix()
	updated, err := s.UpdateReminder(ctx, &store.UpdateReminder{
		ID:          r.ID,
		DueAtEpoch:  &newDue,
		Rescheduled: true,
	})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, int64(1), updated.RescheduleCount)
	require.NotNil(t, updated.LastRescheduledAt)

	// A plain title edit leaves the reschedule counters alone.
	title := "standup"
	updated, err = s.UpdateReminder(ctx, &store.UpdateReminder{ID: r.ID, Title: &title})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.RescheduleCount)
}

func TestUpdateReminder_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	title := "ghost"
	updated, err := s.UpdateReminder(ctx, &store.UpdateReminder{ID: 999, Title: &title})
	require.NoError(t, err)
	assert.Nil(t, updated)
}

func TestListDueSoonReminders_Window(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Now().Truncate(time.Second)
	lead := 10 * time.Minute

	inWindow := createReminder(t, s, "U1", "soon", now.Add(5*time.Minute))
	createReminder(t, s, "U1", "later", now.Add(time.Hour))
	createReminder(t, s, "U1", "past", now.Add(-time.Minute))
	createReminder(t, s, "U2", "other user", now.Add(5*time.Minute))

	due, err := s.ListDueSoonReminders(ctx, "U1", now, lead)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, inWindow.ID, due[0].ID)
}

func TestListDueSoonReminders_NotifiedSuppressedUntilDueChanges(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Now().Truncate(time.Second)
	lead := 10 * time.Minute

	r := createReminder(t, s, "U1", "standup", now.Add(5*time.Minute))

	_, err := s.MarkReminderNotified(ctx, r.ID, now)
	require.NoError(t, err)

	due, err := s.ListDueSoonReminders(ctx, "U1", now, lead)
	require.NoError(t, err)
	assert.Empty(t, due, "already notified for this due time")

	// Moving the due time re-arms notification.
	newDue := now.Add(7 * time.Minute).Unix()
	_, err = s.UpdateReminder(ctx, &store.UpdateReminder{ID: r.ID, DueAtEpoch: &newDue})
	require.NoError(t, err)

	due, err = s.ListDueSoonReminders(ctx, "U1", now, lead)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestListReminders_QueryAndFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	createReminder(t, s, "U1", "Pay electricity bill", time.Now().Add(2*time.Hour))
	r2 := createReminder(t, s, "U1", "walk dog", time.Now().Add(time.Hour))
	status := store.ReminderStatusCompleted
	_, err := s.UpdateReminder(ctx, &store.UpdateReminder{ID: r2.ID, Status: &status})
	require.NoError(t, err)

	userID := "U1"
	q := "BILL"
	list, err := s.ListReminders(ctx, &store.FindReminder{UserID: &userID, Query: &q})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Pay electricity bill", list[0].Title)

	active := store.ReminderStatusActive
	list, err = s.ListReminders(ctx, &store.FindReminder{UserID: &userID, Status: &active})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestArchiveOverdueReminders(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	overdue := createReminder(t, s, "U1", "expired", time.Now().Add(-time.Hour))
	upcoming := createReminder(t, s, "U1", "upcoming", time.Now().Add(time.Hour))

	archived, err := s.ArchiveOverdueReminders(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, overdue.ID, archived[0].ID)
	assert.Equal(t, store.ReminderStatusCompleted, archived[0].Status)

	got, err := s.GetReminder(ctx, &store.FindReminder{ID: &upcoming.ID})
	require.NoError(t, err)
	assert.Equal(t, store.ReminderStatusActive, got.Status)
}

func TestUpsertPreference(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	pref, err := s.UpsertPreference(ctx, &store.UpsertPreference{UserID: "U1", Key: "notify_lead", Value: "15m"})
	require.NoError(t, err)
	assert.Equal(t, "15m", pref.Value)

	pref, err = s.UpsertPreference(ctx, &store.UpsertPreference{UserID: "U1", Key: "notify_lead", Value: "30m"})
	require.NoError(t, err)
	assert.Equal(t, "30m", pref.Value)

	userID := "U1"
	list, err := s.ListPreferences(ctx, &store.FindPreference{UserID: &userID})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRecordBehaviorEvent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	stats, err := s.RecordBehaviorEvent(ctx, &store.BehaviorEvent{UserID: "U1", Type: store.BehaviorEventCreate})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.CreateCount)

	_, err = s.RecordBehaviorEvent(ctx, &store.BehaviorEvent{UserID: "U1", Type: store.BehaviorEventSnooze, Minutes: 10})
	require.NoError(t, err)
	stats, err = s.RecordBehaviorEvent(ctx, &store.BehaviorEvent{UserID: "U1", Type: store.BehaviorEventSnooze, Minutes: 20})
	require.NoError(t, err)

	assert.Equal(t, int64(2), stats.SnoozeCount)
	assert.Equal(t, int64(30), stats.SnoozeMinutesTotal)
	assert.Equal(t, 15.0, stats.AvgSnoozeMinutes())

	// Negative latency floors at zero.
	stats, err = s.RecordBehaviorEvent(ctx, &store.BehaviorEvent{UserID: "U1", Type: store.BehaviorEventDone, Minutes: -5})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.DoneCount)
	assert.Equal(t, int64(0), stats.CompleteMinutesTotal)

	missing, err := s.GetBehaviorStats(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestConversationWindow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, content := range []string{"one", "two", "three", "four"} {
		_, err := s.CreateConversationMessage(ctx, &store.ConversationMessage{
			UserID:  "U1",
			Role:    "user",
			Content: content,
		})
		require.NoError(t, err)
	}

	userID := "U1"
	limit := 3
	msgs, err := s.ListConversationMessages(ctx, &store.FindConversationMessage{UserID: &userID, Limit: &limit})
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "two", msgs[0].Content)
	assert.Equal(t, "four", msgs[2].Content)
}

func TestAuditLog(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateAuditLog(ctx, &store.AuditLog{UserID: "U1", Action: "create_reminder", Details: `{"id":1}`})
	require.NoError(t, err)
	_, err = s.CreateAuditLog(ctx, &store.AuditLog{UserID: "U1", Action: "delete_reminder"})
	require.NoError(t, err)

	userID := "U1"
	logs, err := s.ListAuditLogs(ctx, &store.FindAuditLog{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "delete_reminder", logs[0].Action)
}

func TestCommonDueTimes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		createReminder(t, s, "U1", "standup", base.AddDate(0, 0, i))
	}
	createReminder(t, s, "U1", "retro", base.Add(5*time.Hour))

	times, err := s.CommonDueTimes(ctx, "U1", "personal", time.UTC, 2)
	require.NoError(t, err)
	require.NotEmpty(t, times)
	assert.Equal(t, "09:00", times[0])
}
