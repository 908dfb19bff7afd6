package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nudgebot/nudge/plugin/natdate"
	"github.com/nudgebot/nudge/store"
)

// Recorder maps reminder domain events onto memory entries. All writes are
// idempotent upserts keyed by reminder id, preference key, or the behavior
// summary marker, so a retried propagation converges instead of duplicating.
type Recorder struct {
	service Service
	loc     *time.Location
	logger  *slog.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(service Service, loc *time.Location, logger *slog.Logger) *Recorder {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{service: service, loc: loc, logger: logger}
}

// Service returns the underlying low-level service.
func (r *Recorder) Service() Service {
	return r.service
}

func reminderText(rem *store.Reminder, loc *time.Location) string {
	text := fmt.Sprintf("Reminder: %s (due %s, category %s)",
		rem.Title, natdate.FormatDue(rem.DueTime(), loc), rem.Category)
	if rem.Description != "" {
		text += " " + rem.Description
	}
	return text
}

func reminderMetadata(rem *store.Reminder) map[string]any {
	metadata := map[string]any{
		"reminder_id":  rem.ID,
		"due_at_epoch": rem.DueAtEpoch,
		"category":     rem.Category,
	}
	if rem.LastRescheduledAt != nil {
		metadata["last_rescheduled_at_epoch"] = *rem.LastRescheduledAt
		metadata["reschedule_count"] = rem.RescheduleCount
	}
	return metadata
}

// findByReminderID scans a category for the entry tagged with the reminder id.
func (r *Recorder) findByReminderID(ctx context.Context, userID string, reminderID int64, category string) (*Entry, error) {
	entries, err := r.service.GetAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Category != category {
			continue
		}
		if id, ok := MetaInt(e.Metadata, "reminder_id"); ok && id == reminderID {
			return e, nil
		}
	}
	return nil, nil
}

// UpsertActiveReminder writes or refreshes the active entry for a reminder
// and returns the entry id.
func (r *Recorder) UpsertActiveReminder(ctx context.Context, rem *store.Reminder) (string, error) {
	existing, err := r.findByReminderID(ctx, rem.UserID, rem.ID, CategoryReminderActive)
	if err != nil {
		return "", err
	}

	text := reminderText(rem, r.loc)
	metadata := reminderMetadata(rem)

	if existing != nil {
		if err := r.service.Update(ctx, existing.ID, text, metadata); err != nil {
			return "", err
		}
		return existing.ID, nil
	}
	return r.service.Add(ctx, rem.UserID, text, CategoryReminderActive, metadata)
}

// ArchiveReminder moves a reminder's memory entry from the active to the
// archived category. The active entry is deleted first so the two
// categories never both hold the reminder; an interruption between the two
// writes loses the entry rather than duplicating it.
func (r *Recorder) ArchiveReminder(ctx context.Context, rem *store.Reminder) (string, error) {
	active, err := r.findByReminderID(ctx, rem.UserID, rem.ID, CategoryReminderActive)
	if err != nil {
		return "", err
	}
	if active != nil {
		if err := r.service.Delete(ctx, active.ID); err != nil {
			return "", err
		}
	}

	archived, err := r.findByReminderID(ctx, rem.UserID, rem.ID, CategoryReminderArchived)
	if err != nil {
		return "", err
	}
	text := fmt.Sprintf("Completed reminder: %s (was due %s, category %s)",
		rem.Title, natdate.FormatDue(rem.DueTime(), r.loc), rem.Category)
	metadata := reminderMetadata(rem)

	if archived != nil {
		if err := r.service.Update(ctx, archived.ID, text, metadata); err != nil {
			return "", err
		}
		return archived.ID, nil
	}
	return r.service.Add(ctx, rem.UserID, text, CategoryReminderArchived, metadata)
}

// DeleteReminder removes every memory entry tied to a reminder id.
func (r *Recorder) DeleteReminder(ctx context.Context, userID string, reminderID int64) error {
	entries, err := r.service.GetAll(ctx, userID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if id, ok := MetaInt(e.Metadata, "reminder_id"); ok && id == reminderID {
			if err := r.service.Delete(ctx, e.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// UpsertPreference writes or refreshes the user_prefs entry for a key.
func (r *Recorder) UpsertPreference(ctx context.Context, userID, key, value string) (string, error) {
	entries, err := r.service.GetAll(ctx, userID)
	if err != nil {
		return "", err
	}

	text := fmt.Sprintf("Preference %s: %s", key, value)
	metadata := map[string]any{"pref_key": key, "pref_value": value}

	for _, e := range entries {
		if e.Category == CategoryUserPrefs && MetaString(e.Metadata, "pref_key") == key {
			if err := r.service.Update(ctx, e.ID, text, metadata); err != nil {
				return "", err
			}
			return e.ID, nil
		}
	}
	return r.service.Add(ctx, userID, text, CategoryUserPrefs, metadata)
}

// UpsertBehaviorSummary writes or refreshes the single behavior summary entry.
func (r *Recorder) UpsertBehaviorSummary(ctx context.Context, userID, summary string) (string, error) {
	entries, err := r.service.GetAll(ctx, userID)
	if err != nil {
		return "", err
	}

	metadata := map[string]any{"kind": "behavior_summary"}
	for _, e := range entries {
		if e.Category == CategoryUserBehavior && MetaString(e.Metadata, "kind") == "behavior_summary" {
			if err := r.service.Update(ctx, e.ID, summary, metadata); err != nil {
				return "", err
			}
			return e.ID, nil
		}
	}
	return r.service.Add(ctx, userID, summary, CategoryUserBehavior, metadata)
}

// RecordConversation appends a conversation turn entry.
func (r *Recorder) RecordConversation(ctx context.Context, userID, userMessage, reply string) error {
	text := fmt.Sprintf("User said: %s / Assistant replied: %s", userMessage, reply)
	_, err := r.service.Add(ctx, userID, text, CategoryConversation, nil)
	return err
}

// RescheduledActive returns active reminder entries that carry reschedule
// bookkeeping, most recently rescheduled first.
func (r *Recorder) RescheduledActive(ctx context.Context, userID string) ([]*Entry, error) {
	entries, err := r.service.GetAll(ctx, userID)
	if err != nil {
		return nil, err
	}

	var results []*Entry
	for _, e := range entries {
		if e.Category != CategoryReminderActive {
			continue
		}
		if _, ok := MetaInt(e.Metadata, "last_rescheduled_at_epoch"); ok {
			results = append(results, e)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		a, _ := MetaInt(results[i].Metadata, "last_rescheduled_at_epoch")
		b, _ := MetaInt(results[j].Metadata, "last_rescheduled_at_epoch")
		return a > b
	})
	return results, nil
}

// ByCategory groups a user's entries by category for diagnostics.
func (r *Recorder) ByCategory(ctx context.Context, userID string) (map[string][]*Entry, error) {
	entries, err := r.service.GetAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]*Entry)
	for _, e := range entries {
		out[e.Category] = append(out[e.Category], e)
	}
	return out, nil
}

// PreferredTimes extracts HH:MM values stored in user_prefs entries whose
// key mentions a time preference, used for suggestion merging.
func (r *Recorder) PreferredTimes(ctx context.Context, userID string) ([]string, error) {
	entries, err := r.service.GetAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	var times []string
	for _, e := range entries {
		if e.Category != CategoryUserPrefs {
			continue
		}
		if v := MetaString(e.Metadata, "pref_value"); looksLikeClock(v) {
			times = append(times, v)
		}
	}
	return times, nil
}

func looksLikeClock(v string) bool {
	if len(v) != 5 || v[2] != ':' {
		return false
	}
	for i, c := range v {
		if i == 2 {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
