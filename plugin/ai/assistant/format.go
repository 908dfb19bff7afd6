package assistant

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nudgebot/nudge/plugin/natdate"
	"github.com/nudgebot/nudge/store"
)

// reminderLabel renders one reminder as "title (due 3rd Mar, 5:00 PM)".
func reminderLabel(r *store.Reminder, loc *time.Location) string {
	return fmt.Sprintf("%s (due %s)", r.Title, natdate.FormatDue(r.DueTime(), loc))
}

// dedupLabels collapses identical labels into a single line with a count
// multiplier, preserving first-seen order.
func dedupLabels(labels []string) []string {
	counts := make(map[string]int)
	var order []string
	for _, label := range labels {
		if counts[label] == 0 {
			order = append(order, label)
		}
		counts[label]++
	}

	out := make([]string, 0, len(order))
	for _, label := range order {
		if n := counts[label]; n > 1 {
			out = append(out, fmt.Sprintf("%s ×%d", label, n))
		} else {
			out = append(out, label)
		}
	}
	return out
}

// BuildListSummary renders a grouped, human-readable reminder summary. The
// summary is surfaced to the user verbatim, so the model never re-derives
// or paraphrases the list.
func BuildListSummary(reminders []*store.Reminder, loc *time.Location, now time.Time) string {
	var rescheduled, upcoming, archived, other []string
	nowEpoch := now.Unix()

	for _, r := range reminders {
		label := reminderLabel(r, loc)
		switch {
		case r.Status == store.ReminderStatusCompleted:
			archived = append(archived, label)
		case r.RescheduleCount > 0:
			rescheduled = append(rescheduled, fmt.Sprintf("%s, pushed back %d time%s", label, r.RescheduleCount, plural(r.RescheduleCount)))
		case r.DueAtEpoch >= nowEpoch:
			upcoming = append(upcoming, label)
		default:
			other = append(other, label+", overdue")
		}
	}

	if len(rescheduled)+len(upcoming)+len(archived)+len(other) == 0 {
		return "You have no reminders right now."
	}

	var b strings.Builder
	writeGroup := func(heading string, labels []string) {
		if len(labels) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(heading + ":\n")
		for _, label := range dedupLabels(labels) {
			b.WriteString("• " + label + "\n")
		}
	}

	writeGroup("Snoozed/Rescheduled", rescheduled)
	writeGroup("Upcoming", upcoming)
	writeGroup("Overdue", other)
	writeGroup("Archived", archived)
	return strings.TrimRight(b.String(), "\n")
}

func plural(n int64) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// formatBehaviorSummary renders behavior stats as one line of prose for the
// memory store and the context prompt.
func formatBehaviorSummary(stats *store.BehaviorStats) string {
	if stats == nil {
		return ""
	}
	parts := []string{
		fmt.Sprintf("created %d reminders", stats.CreateCount),
	}
	if stats.SnoozeCount > 0 {
		parts = append(parts, fmt.Sprintf("snoozed %d times (avg %.1f min)", stats.SnoozeCount, stats.AvgSnoozeMinutes()))
	}
	if stats.DoneCount > 0 {
		parts = append(parts, fmt.Sprintf("completed %d (avg %.1f min after creation)", stats.DoneCount, stats.AvgCompleteMinutes()))
	}
	return "User has " + strings.Join(parts, ", ") + "."
}

// sortByLastRescheduled orders reminders most recently rescheduled first.
func sortByLastRescheduled(reminders []*store.Reminder) {
	sort.SliceStable(reminders, func(i, j int) bool {
		var a, b int64
		if reminders[i].LastRescheduledAt != nil {
			a = *reminders[i].LastRescheduledAt
		}
		if reminders[j].LastRescheduledAt != nil {
			b = *reminders[j].LastRescheduledAt
		}
		return a > b
	})
}
