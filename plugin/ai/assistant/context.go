package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/nudgebot/nudge/plugin/memory"
	"github.com/nudgebot/nudge/store"
)

// ContextBuilder assembles the per-user personalization context injected
// into the system prompt. Assembled context is cached per user; every store
// mutation invalidates the entry, so a hit is always post-write fresh.
type ContextBuilder struct {
	store    *store.Store
	recorder *memory.Recorder
	loc      *time.Location
	logger   *slog.Logger
}

// NewContextBuilder creates a ContextBuilder.
func NewContextBuilder(s *store.Store, recorder *memory.Recorder, loc *time.Location, logger *slog.Logger) *ContextBuilder {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextBuilder{store: s, recorder: recorder, loc: loc, logger: logger}
}

// actionVerbs marks turns that name their target directly, where the
// personalization block adds latency without changing the outcome.
var actionVerbs = []string{"done", "did", "finished", "complete", "completed", "delete", "remove", "cancel", "snooze"}

// skipsPrefetch reports whether a turn is a direct action on a named
// reminder. Such turns use cached context if present but never trigger a
// fresh assembly.
func skipsPrefetch(text string) bool {
	first := text
	if i := strings.IndexAny(text, " \t"); i > 0 {
		first = text[:i]
	}
	first = strings.ToLower(strings.Trim(first, ".!?,"))
	for _, verb := range actionVerbs {
		if first == verb {
			return true
		}
	}
	return false
}

// Build returns the context block for a user, from cache when possible.
// The turn text gates assembly for action-like messages.
func (b *ContextBuilder) Build(ctx context.Context, userID, text string) string {
	key := store.ContextCacheKey(userID)
	if cached, ok := b.store.ContextCache().Get(key); ok {
		return string(cached)
	}
	if skipsPrefetch(text) {
		return ""
	}

	built := b.assemble(ctx, userID)
	b.store.ContextCache().Set(key, []byte(built), 0)
	return built
}

func (b *ContextBuilder) assemble(ctx context.Context, userID string) string {
	var sections []string

	if prefs, err := b.store.ListPreferences(ctx, &store.FindPreference{UserID: &userID}); err == nil && len(prefs) > 0 {
		lines := make([]string, 0, len(prefs))
		for _, p := range prefs {
			lines = append(lines, fmt.Sprintf("- %s: %s", p.Key, p.Value))
		}
		sections = append(sections, "Preferences:\n"+strings.Join(lines, "\n"))
	} else if err != nil {
		b.logger.Warn("failed to load preferences for context", "user_id", userID, "error", err)
	}

	if stats, err := b.store.GetBehaviorStats(ctx, userID); err == nil && stats != nil {
		if summary := formatBehaviorSummary(stats); summary != "" {
			sections = append(sections, summary)
		}
	}

	times, err := b.store.CommonDueTimes(ctx, userID, "", b.loc, 3)
	if err != nil {
		b.logger.Warn("failed to aggregate common due times", "user_id", userID, "error", err)
	}
	// Clock-shaped preference entries from memory fold into the same line.
	if memTimes, err := b.recorder.PreferredTimes(ctx, userID); err == nil {
		for _, mt := range memTimes {
			if !slices.Contains(times, mt) {
				times = append(times, mt)
			}
		}
	}
	if len(times) > 0 {
		sections = append(sections, "Times this user usually sets reminders for: "+strings.Join(times, ", "))
	}

	// Memory is best effort; a down memory service degrades to
	// relational-only context.
	if entries, err := b.recorder.RescheduledActive(ctx, userID); err == nil && len(entries) > 0 {
		lines := make([]string, 0, len(entries))
		for i, e := range entries {
			if i >= 3 {
				break
			}
			lines = append(lines, "- "+e.Text)
		}
		sections = append(sections, "Reminders this user keeps pushing back:\n"+strings.Join(lines, "\n"))
	} else if err != nil {
		b.logger.Warn("memory unavailable for context assembly", "user_id", userID, "error", err)
	}

	if len(sections) == 0 {
		return ""
	}
	return strings.Join(sections, "\n\n")
}
