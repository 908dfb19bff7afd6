package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nudgebot/nudge/store"
)

func testReminder(id int64, title string) *store.Reminder {
	return &store.Reminder{
		ID:         id,
		UserID:     "U1",
		Title:      title,
		DueAtEpoch: time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC).Unix(),
		Status:     store.ReminderStatusActive,
		Category:   "health",
	}
}

func TestRecorder_UpsertActiveReminder(t *testing.T) {
	ctx := context.Background()
	svc := NewMockService()
	rec := NewRecorder(svc, time.UTC, nil)

	rem := testReminder(7, "call dentist")
	id, err := rec.UpsertActiveReminder(ctx, rem)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	entries, err := svc.GetAll(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, CategoryReminderActive, entries[0].Category)
	assert.Contains(t, entries[0].Text, "call dentist")
	assert.Contains(t, entries[0].Text, "3rd Mar, 5:00 PM")

	// Second upsert for the same reminder updates in place.
	rem.Title = "call the dentist"
	id2, err := rec.UpsertActiveReminder(ctx, rem)
	require.NoError(t, err)
	assert.Equal(t, id, id2)
	assert.Equal(t, 1, svc.Len())

	entries, err = svc.GetAll(ctx, "U1")
	require.NoError(t, err)
	assert.Contains(t, entries[0].Text, "call the dentist")
}

func TestRecorder_ArchiveReminder(t *testing.T) {
	ctx := context.Background()
	svc := NewMockService()
	rec := NewRecorder(svc, time.UTC, nil)

	rem := testReminder(3, "submit report")
	_, err := rec.UpsertActiveReminder(ctx, rem)
	require.NoError(t, err)

	_, err = rec.ArchiveReminder(ctx, rem)
	require.NoError(t, err)

	entries, err := svc.GetAll(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, CategoryReminderArchived, entries[0].Category)
	assert.Contains(t, entries[0].Text, "Completed reminder: submit report")

	// Archiving again is idempotent.
	_, err = rec.ArchiveReminder(ctx, rem)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Len())
}

func TestRecorder_DeleteReminder(t *testing.T) {
	ctx := context.Background()
	svc := NewMockService()
	rec := NewRecorder(svc, time.UTC, nil)

	_, err := rec.UpsertActiveReminder(ctx, testReminder(1, "water plants"))
	require.NoError(t, err)
	_, err = rec.UpsertActiveReminder(ctx, testReminder(2, "buy milk"))
	require.NoError(t, err)

	require.NoError(t, rec.DeleteReminder(ctx, "U1", 1))
	assert.Equal(t, 1, svc.Len())

	entries, err := svc.GetAll(ctx, "U1")
	require.NoError(t, err)
	assert.Contains(t, entries[0].Text, "buy milk")
}

func TestRecorder_UpsertPreference(t *testing.T) {
	ctx := context.Background()
	svc := NewMockService()
	rec := NewRecorder(svc, time.UTC, nil)

	_, err := rec.UpsertPreference(ctx, "U1", "preferred_reminder_time", "09:00")
	require.NoError(t, err)
	_, err = rec.UpsertPreference(ctx, "U1", "preferred_reminder_time", "08:30")
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Len())

	times, err := rec.PreferredTimes(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, []string{"08:30"}, times)
}

func TestRecorder_UpsertBehaviorSummary(t *testing.T) {
	ctx := context.Background()
	svc := NewMockService()
	rec := NewRecorder(svc, time.UTC, nil)

	_, err := rec.UpsertBehaviorSummary(ctx, "U1", "Snoozes health reminders often")
	require.NoError(t, err)
	_, err = rec.UpsertBehaviorSummary(ctx, "U1", "Completes work reminders promptly")
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Len())
}

func TestRecorder_RescheduledActive(t *testing.T) {
	ctx := context.Background()
	svc := NewMockService()
	rec := NewRecorder(svc, time.UTC, nil)

	plain := testReminder(1, "no reschedules")
	_, err := rec.UpsertActiveReminder(ctx, plain)
	require.NoError(t, err)

	older := int64(1000)
	newer := int64(2000)

	a := testReminder(2, "pushed once")
	a.LastRescheduledAt = &older
	a.RescheduleCount = 1
	_, err = rec.UpsertActiveReminder(ctx, a)
	require.NoError(t, err)

	b := testReminder(3, "pushed twice")
	b.LastRescheduledAt = &newer
	b.RescheduleCount = 2
	_, err = rec.UpsertActiveReminder(ctx, b)
	require.NoError(t, err)

	entries, err := rec.RescheduledActive(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0].Text, "pushed twice")
	assert.Contains(t, entries[1].Text, "pushed once")
}

func TestRecorder_RecordConversation(t *testing.T) {
	ctx := context.Background()
	svc := NewMockService()
	rec := NewRecorder(svc, time.UTC, nil)

	require.NoError(t, rec.RecordConversation(ctx, "U1", "remind me to stretch", "Done, set for 9am."))

	byCat, err := rec.ByCategory(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, byCat[CategoryConversation], 1)
	assert.Contains(t, byCat[CategoryConversation][0].Text, "remind me to stretch")
}
