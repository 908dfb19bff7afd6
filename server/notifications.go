package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nudgebot/nudge/plugin/memory"
	"github.com/nudgebot/nudge/internal/observability"
)

type notificationItem struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	DueAtEpoch  int64  `json:"due_at_epoch"`
	MinutesLeft int64  `json:"minutes_left"`
}

// handleNotifications returns reminders due within the lead window for a
// user. Fetching the feed marks the returned reminders notified, so each
// due window is delivered at most once across feed and sweep.
func (s *Server) handleNotifications(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	ctx := c.Request().Context()
	now := time.Now()
	due, err := s.Store.ListDueSoonReminders(ctx, userID, now, s.Profile.NotifyLead)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list due reminders")
	}

	items := make([]notificationItem, 0, len(due))
	for _, r := range due {
		minutesLeft := (r.DueAtEpoch - now.Unix()) / 60
		if minutesLeft < 0 {
			minutesLeft = 0
		}
		items = append(items, notificationItem{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			Category:    r.Category,
			DueAtEpoch:  r.DueAtEpoch,
			MinutesLeft: minutesLeft,
		})
		if _, err := s.Store.MarkReminderNotified(ctx, r.ID, now); err != nil {
			s.logger.Error("failed to mark reminder notified", "reminder_id", r.ID, "error", err)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"notifications": items})
}

// handleArchiveOverdue bulk-completes active reminders whose due time
// passed more than the cutoff ago. Protected by a shared-secret header for
// external cron callers.
func (s *Server) handleArchiveOverdue(c echo.Context) error {
	if s.Profile.CronToken == "" || c.Request().Header.Get("X-Cron-Token") != s.Profile.CronToken {
		return echo.NewHTTPError(http.StatusUnauthorized, "bad cron token")
	}

	// Everything already past due at call time gets archived; the cron
	// schedule is the grace period.
	ctx := c.Request().Context()
	archived, err := s.Store.ArchiveOverdueReminders(ctx, time.Now())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "archive failed")
	}

	// Move the memory entries along with the rows, best effort.
	recorder := s.assistant.Recorder()
	for _, r := range archived {
		reminder := r
		go func() {
			ctx, cancel := newDetachedContext()
			defer cancel()
			if _, err := recorder.ArchiveReminder(ctx, reminder); err != nil {
				s.logger.Warn("failed to archive memory entry", "reminder_id", reminder.ID, "error", err)
			}
		}()
	}

	return c.JSON(http.StatusOK, map[string]any{"archived": len(archived)})
}

type memoryGroup struct {
	Category string          `json:"category"`
	Entries  []*memory.Entry `json:"entries"`
}

// handleMemories is a diagnostic view of a user's memory entries grouped
// by category. The relational store stays authoritative; this only shows
// what the side-store currently believes.
func (s *Server) handleMemories(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	grouped, err := s.assistant.Recorder().ByCategory(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "memory service unavailable")
	}

	groups := make([]memoryGroup, 0, len(memory.Categories))
	for _, cat := range memory.Categories {
		if entries := grouped[cat]; len(entries) > 0 {
			groups = append(groups, memoryGroup{Category: cat, Entries: entries})
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"memories": groups})
}

// handleStats reports in-process request counters per component.
func (s *Server) handleStats(c echo.Context) error {
	m := observability.GlobalMetrics()
	return c.JSON(http.StatusOK, map[string]any{
		"request_total":  m.GetRequestTotal(),
		"request_failed": m.GetRequestFailed(),
		"components":     m.Snapshot(),
	})
}
