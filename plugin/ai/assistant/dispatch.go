package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nudgebot/nudge/plugin/memory"
	"github.com/nudgebot/nudge/plugin/natdate"
	"github.com/nudgebot/nudge/store"
)

// Propagator schedules memory-store propagation after a ground-truth write.
// Submission never blocks the request path.
type Propagator interface {
	Submit(name string, task func(ctx context.Context) error) bool
}

// Result is the outcome of one tool dispatch. Message always carries
// something the model can relay; Summary, when set, must reach the user
// verbatim.
type Result struct {
	Success  bool
	Message  string
	Summary  string
	NotFound bool
	Reminder *store.Reminder
}

func failure(format string, args ...any) *Result {
	return &Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

func success(format string, args ...any) *Result {
	return &Result{Success: true, Message: fmt.Sprintf(format, args...)}
}

func notFound(ref string) *Result {
	return &Result{Success: false, NotFound: true, Message: fmt.Sprintf("I couldn't find a reminder matching %q.", ref)}
}

// Dispatcher maps tool invocations to deterministic store operations. The
// ground-truth store is written synchronously; memory propagation goes
// through the Propagator.
type Dispatcher struct {
	store      *store.Store
	recorder   *memory.Recorder
	propagator Propagator
	pending    *PendingStore
	loc        *time.Location
	logger     *slog.Logger
	now        func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(s *store.Store, recorder *memory.Recorder, propagator Propagator, pending *PendingStore, loc *time.Location, logger *slog.Logger) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:      s,
		recorder:   recorder,
		propagator: propagator,
		pending:    pending,
		loc:        loc,
		logger:     logger,
		now:        time.Now,
	}
}

// Dispatch decodes and executes one tool call. Panics inside a tool are
// converted into a structured failure so a bad turn never kills the request.
func (d *Dispatcher) Dispatch(ctx context.Context, userID, toolName string, rawArgs []byte) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool dispatch panicked", "tool", toolName, "user_id", userID, "panic", r)
			result = failure("Something went wrong handling that, please try again.")
		}
	}()

	decode := func(v any) bool {
		if len(rawArgs) == 0 {
			return true
		}
		if err := json.Unmarshal(rawArgs, v); err != nil {
			result = failure("I couldn't make sense of that request.")
			return false
		}
		return true
	}

	switch toolName {
	case ToolCreateReminder:
		var args createReminderArgs
		if !decode(&args) {
			return result
		}
		return d.CreateReminder(ctx, userID, args, false)
	case ToolUpdateReminder:
		var args updateReminderArgs
		if !decode(&args) {
			return result
		}
		return d.UpdateReminder(ctx, userID, args)
	case ToolCompleteReminder:
		var args reminderRefArgs
		if !decode(&args) {
			return result
		}
		return d.CompleteReminder(ctx, userID, args)
	case ToolSnoozeReminder:
		var args snoozeReminderArgs
		if !decode(&args) {
			return result
		}
		return d.SnoozeReminder(ctx, userID, args)
	case ToolListReminders:
		var args listRemindersArgs
		if !decode(&args) {
			return result
		}
		return d.ListReminders(ctx, userID, args.Filter)
	case ToolSearchReminders:
		var args searchRemindersArgs
		if !decode(&args) {
			return result
		}
		return d.SearchReminders(ctx, userID, args.Query)
	case ToolDeleteReminder:
		var args reminderRefArgs
		if !decode(&args) {
			return result
		}
		return d.DeleteReminder(ctx, userID, args)
	case ToolSetPreference:
		var args setPreferenceArgs
		if !decode(&args) {
			return result
		}
		return d.SetPreference(ctx, userID, args.Key, args.Value)
	case ToolGetPreferences:
		return d.GetPreferences(ctx, userID)
	case ToolListRescheduled:
		return d.ListRescheduled(ctx, userID)
	case ToolClarifyReminder:
		var args clarifyReminderArgs
		if !decode(&args) {
			return result
		}
		return d.ClarifyReminder(ctx, userID, args)
	default:
		return failure("Unknown tool %q.", toolName)
	}
}

// resolveReference finds the reminder a tool call refers to, by id or by
// title. When a title matches several active reminders, a clarify pending
// action is stored and the returned Result asks the question instead.
func (d *Dispatcher) resolveReference(ctx context.Context, userID string, id int64, title string) (*store.Reminder, *Result) {
	if id > 0 {
		r, err := d.store.GetReminder(ctx, &store.FindReminder{ID: &id})
		if err != nil {
			return nil, failure("I couldn't look that reminder up right now.")
		}
		if r == nil || r.UserID != userID {
			return nil, notFound(fmt.Sprintf("id %d", id))
		}
		return r, nil
	}
	if title == "" {
		return nil, failure("I need to know which reminder you mean.")
	}

	want := NormalizeTitle(title)
	status := store.ReminderStatusActive
	reminders, err := d.store.ListReminders(ctx, &store.FindReminder{UserID: &userID, Status: &status})
	if err != nil {
		return nil, failure("I couldn't look that reminder up right now.")
	}

	var matches []*store.Reminder
	for _, r := range reminders {
		if NormalizeTitle(r.Title) == want {
			matches = append(matches, r)
		}
	}

	switch len(matches) {
	case 0:
		return nil, notFound(title)
	case 1:
		return matches[0], nil
	default:
		if len(matches) > 3 {
			matches = matches[:3]
		}
		ids := make([]int64, len(matches))
		question := fmt.Sprintf("You have %d reminders called %q:\n", len(matches), title)
		for i, m := range matches {
			ids[i] = m.ID
			question += fmt.Sprintf("%d. %s\n", i+1, reminderLabel(m, d.loc))
		}
		question += "Which one do you mean?"
		d.pending.Put(userID, &PendingAction{
			Kind:     PendingClarifyReminder,
			Matches:  ids,
			Question: question,
		})
		return nil, &Result{Success: false, Message: question}
	}
}

// CreateReminder creates a reminder, or asks for a time when none was
// given. A title that matches an existing active reminder reschedules that
// reminder instead of inserting a duplicate.
func (d *Dispatcher) CreateReminder(ctx context.Context, userID string, args createReminderArgs, bypassConfirm bool) *Result {
	if args.Title == "" {
		return failure("I need a title for the reminder.")
	}

	category := InferCategory(args.Title, args.Description)

	if !bypassConfirm && (args.DueText == "" || !natdate.MentionsTime(args.DueText)) {
		suggested := d.suggestTime(ctx, userID, category)
		d.pending.Put(userID, &PendingAction{
			Kind:          PendingConfirmTime,
			Title:         args.Title,
			Description:   args.Description,
			DueText:       args.DueText,
			Category:      category,
			SuggestedTime: suggested,
		})
		msg := fmt.Sprintf("What time should I set %q for?", args.Title)
		if suggested != "" {
			msg = fmt.Sprintf("What time should I set %q for? You usually pick %s, should I use that?", args.Title, suggested)
		}
		return &Result{Success: false, Message: msg}
	}

	dueAt, ok := natdate.Parse(args.DueText, d.now(), d.loc)
	if !ok {
		suggested := d.suggestTime(ctx, userID, category)
		d.pending.Put(userID, &PendingAction{
			Kind:          PendingConfirmTime,
			Title:         args.Title,
			Description:   args.Description,
			Category:      category,
			SuggestedTime: suggested,
		})
		return failure("I couldn't work out when %q means. What time should I set %q for?", args.DueText, args.Title)
	}

	// Same subject already active: treat it as a reschedule, not a new row.
	existing, err := FindExistingActive(ctx, d.store, userID, args.Title)
	if err != nil {
		return failure("I couldn't check your existing reminders right now.")
	}
	if existing != nil {
		return d.applyDueChange(ctx, existing, dueAt.Unix(), store.BehaviorEventUpdate,
			fmt.Sprintf("You already had %q, so I moved it to %s.", existing.Title, natdate.FormatDue(dueAt, d.loc)))
	}

	r, err := d.store.CreateReminder(ctx, &store.Reminder{
		UserID:      userID,
		Title:       args.Title,
		Description: args.Description,
		DueAtEpoch:  dueAt.Unix(),
		Category:    category,
	})
	if err != nil {
		return failure("I couldn't save that reminder.")
	}

	d.recordBehavior(ctx, userID, store.BehaviorEventCreate, 0)
	d.audit(ctx, userID, "reminder_create", fmt.Sprintf("id=%d title=%q due=%d", r.ID, r.Title, r.DueAtEpoch))
	d.propagateActive(r)

	res := success("Done. I'll remind you about %q on %s.", r.Title, natdate.FormatDue(dueAt, d.loc))
	res.Reminder = r
	return res
}

// UpdateReminder applies field changes. An unparseable new date stores an
// update_due pending action instead of silently dropping the edit.
func (d *Dispatcher) UpdateReminder(ctx context.Context, userID string, args updateReminderArgs) *Result {
	r, res := d.resolveReference(ctx, userID, args.ReminderID, args.Title)
	if res != nil {
		return res
	}

	update := &store.UpdateReminder{ID: r.ID}
	titleChanged := false
	if args.NewTitle != "" && args.NewTitle != r.Title {
		update.Title = &args.NewTitle
		titleChanged = true
	}
	if args.Description != "" && args.Description != r.Description {
		update.Description = &args.Description
		titleChanged = true
	}
	if titleChanged {
		title := r.Title
		if update.Title != nil {
			title = *update.Title
		}
		desc := r.Description
		if update.Description != nil {
			desc = *update.Description
		}
		category := InferCategory(title, desc)
		update.Category = &category
	}

	if args.DueText != "" {
		dueAt, ok := natdate.Parse(args.DueText, d.now(), d.loc)
		if !ok {
			d.pending.Put(userID, &PendingAction{
				Kind:       PendingUpdateDue,
				ReminderID: r.ID,
				DueText:    args.DueText,
				Title:      r.Title,
			})
			return failure("I couldn't work out when %q means for %q. When should it be?", args.DueText, r.Title)
		}
		epoch := dueAt.Unix()
		update.DueAtEpoch = &epoch
		update.Rescheduled = true
	}

	updated, err := d.store.UpdateReminder(ctx, update)
	if err != nil {
		return failure("I couldn't update that reminder.")
	}
	if updated == nil {
		return notFound(r.Title)
	}

	d.recordBehavior(ctx, userID, store.BehaviorEventUpdate, 0)
	d.audit(ctx, userID, "reminder_update", fmt.Sprintf("id=%d", updated.ID))
	d.propagateActive(updated)

	res = success("Updated %q, now due %s.", updated.Title, natdate.FormatDue(updated.DueTime(), d.loc))
	res.Reminder = updated
	return res
}

// CompleteReminder marks a reminder done and moves its memory entry to the
// archived category.
func (d *Dispatcher) CompleteReminder(ctx context.Context, userID string, args reminderRefArgs) *Result {
	r, res := d.resolveReference(ctx, userID, args.ReminderID, args.Title)
	if res != nil {
		return res
	}
	if r.Status == store.ReminderStatusCompleted {
		return success("%q was already marked done.", r.Title)
	}

	status := store.ReminderStatusCompleted
	updated, err := d.store.UpdateReminder(ctx, &store.UpdateReminder{ID: r.ID, Status: &status})
	if err != nil || updated == nil {
		return failure("I couldn't mark that reminder done.")
	}

	latency := (d.now().Unix() - r.CreatedTs) / 60
	if latency < 0 {
		latency = 0
	}
	d.recordBehavior(ctx, userID, store.BehaviorEventDone, latency)
	d.audit(ctx, userID, "reminder_done", fmt.Sprintf("id=%d latency_min=%d", r.ID, latency))

	archived := *updated
	d.submit("memory.archive", func(ctx context.Context) error {
		_, err := d.recorder.ArchiveReminder(ctx, &archived)
		return err
	})

	res = success("Nice, marked %q as done.", r.Title)
	res.Reminder = updated
	return res
}

// SnoozeReminder pushes a due time later and records the snooze delta.
func (d *Dispatcher) SnoozeReminder(ctx context.Context, userID string, args snoozeReminderArgs) *Result {
	r, res := d.resolveReference(ctx, userID, args.ReminderID, args.Title)
	if res != nil {
		return res
	}

	var newDue int64
	switch {
	case args.DueText != "":
		t, ok := natdate.Parse(args.DueText, d.now(), d.loc)
		if !ok {
			d.pending.Put(userID, &PendingAction{
				Kind:       PendingUpdateDue,
				ReminderID: r.ID,
				DueText:    args.DueText,
				Title:      r.Title,
			})
			return failure("I couldn't work out when %q means for %q. When should it be?", args.DueText, r.Title)
		}
		newDue = t.Unix()
	case args.Minutes > 0:
		newDue = r.DueAtEpoch + args.Minutes*60
	default:
		newDue = r.DueAtEpoch + 10*60
	}

	delta := (newDue - r.DueAtEpoch) / 60
	if delta < 0 {
		delta = 0
	}

	result := d.applyDueChange(ctx, r, newDue, store.BehaviorEventSnooze, "")
	if !result.Success {
		return result
	}
	d.recordBehavior(ctx, userID, store.BehaviorEventSnooze, delta)
	result.Message = fmt.Sprintf("Snoozed %q to %s.", r.Title, natdate.FormatDue(time.Unix(newDue, 0), d.loc))
	return result
}

// applyDueChange reschedules a reminder and propagates the change. The
// behavior event for the caller's verb is recorded here except for snooze,
// whose minute delta the caller computes.
func (d *Dispatcher) applyDueChange(ctx context.Context, r *store.Reminder, newDue int64, event store.BehaviorEventType, message string) *Result {
	updated, err := d.store.UpdateReminder(ctx, &store.UpdateReminder{
		ID:          r.ID,
		DueAtEpoch:  &newDue,
		Rescheduled: true,
	})
	if err != nil {
		return failure("I couldn't reschedule that reminder.")
	}
	if updated == nil {
		return notFound(r.Title)
	}

	if event != store.BehaviorEventSnooze {
		d.recordBehavior(ctx, r.UserID, event, 0)
	}
	d.audit(ctx, r.UserID, "reminder_reschedule", fmt.Sprintf("id=%d due=%d", updated.ID, newDue))
	d.propagateActive(updated)

	res := &Result{Success: true, Message: message, Reminder: updated}
	if message == "" {
		res.Message = fmt.Sprintf("Moved %q to %s.", updated.Title, natdate.FormatDue(updated.DueTime(), d.loc))
	}
	return res
}

var listFilters = map[string]bool{"": true, "active": true, "completed": true, "rescheduled": true, "all": true}

// ListReminders builds the grouped summary for a status filter.
func (d *Dispatcher) ListReminders(ctx context.Context, userID, filter string) *Result {
	if !listFilters[filter] {
		filter = "active"
	}

	find := &store.FindReminder{UserID: &userID}
	switch filter {
	case "", "active":
		status := store.ReminderStatusActive
		find.Status = &status
	case "completed":
		status := store.ReminderStatusCompleted
		find.Status = &status
	case "rescheduled":
		status := store.ReminderStatusActive
		find.Status = &status
		find.RescheduledOnly = true
	}

	reminders, err := d.store.ListReminders(ctx, find)
	if err != nil {
		return failure("I couldn't fetch your reminders right now.")
	}

	summary := BuildListSummary(reminders, d.loc, d.now())
	return &Result{Success: true, Message: summary, Summary: summary}
}

// SearchReminders finds reminders by substring, due soonest first.
func (d *Dispatcher) SearchReminders(ctx context.Context, userID, query string) *Result {
	if query == "" {
		return failure("What should I search for?")
	}
	reminders, err := d.store.ListReminders(ctx, &store.FindReminder{UserID: &userID, Query: &query})
	if err != nil {
		return failure("Search isn't working right now.")
	}
	if len(reminders) == 0 {
		return success("No reminders match %q.", query)
	}

	msg := fmt.Sprintf("Found %d:\n", len(reminders))
	for _, r := range reminders {
		msg += "• " + reminderLabel(r, d.loc) + "\n"
	}
	return &Result{Success: true, Message: msg}
}

// DeleteReminder removes the row and any linked memory entries.
func (d *Dispatcher) DeleteReminder(ctx context.Context, userID string, args reminderRefArgs) *Result {
	r, res := d.resolveReference(ctx, userID, args.ReminderID, args.Title)
	if res != nil {
		return res
	}

	if err := d.store.DeleteReminder(ctx, &store.DeleteReminder{ID: r.ID}); err != nil {
		return failure("I couldn't delete that reminder.")
	}
	d.audit(ctx, userID, "reminder_delete", fmt.Sprintf("id=%d title=%q", r.ID, r.Title))

	reminderID := r.ID
	d.submit("memory.delete", func(ctx context.Context) error {
		return d.recorder.DeleteReminder(ctx, userID, reminderID)
	})
	return success("Deleted %q.", r.Title)
}

// SetPreference upserts a preference. The relational row is authoritative;
// the memory copy follows asynchronously.
func (d *Dispatcher) SetPreference(ctx context.Context, userID, key, value string) *Result {
	if key == "" || value == "" {
		return failure("I need both a preference name and a value.")
	}
	if _, err := d.store.UpsertPreference(ctx, &store.UpsertPreference{UserID: userID, Key: key, Value: value}); err != nil {
		return failure("I couldn't save that preference.")
	}
	d.audit(ctx, userID, "preference_set", fmt.Sprintf("key=%s", key))

	d.submit("memory.preference", func(ctx context.Context) error {
		_, err := d.recorder.UpsertPreference(ctx, userID, key, value)
		return err
	})
	return success("Got it, %s is now %s.", key, value)
}

// GetPreferences merges relational preferences with any memory-only
// entries, relational values winning on key conflicts.
func (d *Dispatcher) GetPreferences(ctx context.Context, userID string) *Result {
	prefs, err := d.store.ListPreferences(ctx, &store.FindPreference{UserID: &userID})
	if err != nil {
		return failure("I couldn't fetch your preferences right now.")
	}

	merged := make(map[string]string, len(prefs))
	var order []string
	for _, p := range prefs {
		merged[p.Key] = p.Value
		order = append(order, p.Key)
	}

	if entries, err := d.recorder.ByCategory(ctx, userID); err == nil {
		for _, e := range entries[memory.CategoryUserPrefs] {
			key := memory.MetaString(e.Metadata, "pref_key")
			if key == "" {
				continue
			}
			if _, exists := merged[key]; !exists {
				merged[key] = memory.MetaString(e.Metadata, "pref_value")
				order = append(order, key)
			}
		}
	}

	if len(merged) == 0 {
		return success("You haven't set any preferences yet.")
	}
	msg := "Your preferences:\n"
	for _, key := range order {
		msg += fmt.Sprintf("• %s: %s\n", key, merged[key])
	}
	return &Result{Success: true, Message: msg}
}

// ListRescheduled lists reminders the user keeps pushing back.
func (d *Dispatcher) ListRescheduled(ctx context.Context, userID string) *Result {
	status := store.ReminderStatusActive
	reminders, err := d.store.ListReminders(ctx, &store.FindReminder{
		UserID:          &userID,
		Status:          &status,
		RescheduledOnly: true,
	})
	if err != nil {
		return failure("I couldn't fetch your reminders right now.")
	}
	if len(reminders) == 0 {
		return success("Nothing has been rescheduled, you're keeping up.")
	}

	sortByLastRescheduled(reminders)
	msg := "Reminders you keep pushing back:\n"
	for _, r := range reminders {
		msg += fmt.Sprintf("• %s, pushed back %d time%s\n", reminderLabel(r, d.loc), r.RescheduleCount, plural(r.RescheduleCount))
	}
	return &Result{Success: true, Message: msg}
}

// ClarifyReminder stores a model-initiated clarification question. It
// mutates no store.
func (d *Dispatcher) ClarifyReminder(ctx context.Context, userID string, args clarifyReminderArgs) *Result {
	if args.Question == "" || len(args.Matches) == 0 {
		return failure("A clarification needs a question and candidates.")
	}
	d.pending.Put(userID, &PendingAction{
		Kind:     PendingClarifyReminder,
		Matches:  args.Matches,
		Question: args.Question,
	})
	return &Result{Success: true, Message: args.Question}
}

// CompleteByID marks a reminder done from an interaction button.
func (d *Dispatcher) CompleteByID(ctx context.Context, userID string, reminderID int64) *Result {
	return d.CompleteReminder(ctx, userID, reminderRefArgs{ReminderID: reminderID})
}

// SnoozeByMinutes pushes a reminder by a fixed number of minutes, used by
// the snooze interaction button.
func (d *Dispatcher) SnoozeByMinutes(ctx context.Context, userID string, reminderID, minutes int64) *Result {
	return d.SnoozeReminder(ctx, userID, snoozeReminderArgs{ReminderID: reminderID, Minutes: minutes})
}

// suggestTime proposes a default time from the stored preference or the
// user's most common due time in the category.
func (d *Dispatcher) suggestTime(ctx context.Context, userID, category string) string {
	if pref, err := d.store.GetPreference(ctx, userID, "preferred_reminder_time"); err == nil && pref != nil {
		return pref.Value
	}
	if times, err := d.store.CommonDueTimes(ctx, userID, category, d.loc, 1); err == nil && len(times) > 0 {
		return times[0]
	}
	return ""
}

func (d *Dispatcher) recordBehavior(ctx context.Context, userID string, event store.BehaviorEventType, minutes int64) {
	stats, err := d.store.RecordBehaviorEvent(ctx, &store.BehaviorEvent{UserID: userID, Type: event, Minutes: minutes})
	if err != nil {
		d.logger.Warn("failed to record behavior event", "user_id", userID, "type", event, "error", err)
		return
	}

	summary := formatBehaviorSummary(stats)
	if summary == "" {
		return
	}
	d.submit("memory.behavior", func(ctx context.Context) error {
		_, err := d.recorder.UpsertBehaviorSummary(ctx, userID, summary)
		return err
	})
}

// audit is best effort; a failed audit write never blocks the action.
func (d *Dispatcher) audit(ctx context.Context, userID, action, details string) {
	if _, err := d.store.CreateAuditLog(ctx, &store.AuditLog{UserID: userID, Action: action, Details: details}); err != nil {
		d.logger.Warn("failed to write audit log", "action", action, "error", err)
	}
}

// propagateActive upserts the reminder's active memory entry and records
// the memory ref back on the row once known.
func (d *Dispatcher) propagateActive(r *store.Reminder) {
	snapshot := *r
	d.submit("memory.upsert_active", func(ctx context.Context) error {
		ref, err := d.recorder.UpsertActiveReminder(ctx, &snapshot)
		if err != nil {
			return err
		}
		if snapshot.MemoryRef == nil || *snapshot.MemoryRef != ref {
			_, err = d.store.UpdateReminder(ctx, &store.UpdateReminder{ID: snapshot.ID, MemoryRef: &ref})
		}
		return err
	})
}

func (d *Dispatcher) submit(name string, task func(ctx context.Context) error) {
	if d.propagator == nil {
		return
	}
	if !d.propagator.Submit(name, task) {
		d.logger.Warn("propagation queue full, dropping task", "task", name)
	}
}
