package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/nudgebot/nudge/plugin/ai/assistant"
	"github.com/nudgebot/nudge/plugin/slack"
)

// newDetachedContext is for work that outlives the webhook request, which
// must be acked within the platform's deadline.
func newDetachedContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// slackSignatureMiddleware verifies the request signature over the raw
// body, then restores the body for the handler. Unsigned or stale
// requests never reach business logic.
func (s *Server) slackSignatureMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
		}
		req.Body = io.NopCloser(bytes.NewReader(body))

		err = slack.VerifySignature(
			s.Profile.SlackSigningSecret,
			req.Header.Get("X-Slack-Request-Timestamp"),
			req.Header.Get("X-Slack-Signature"),
			body,
			time.Now(),
		)
		if err != nil {
			s.logger.Warn("rejected slack request", "path", req.URL.Path, "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
		}
		return next(c)
	}
}

type slackEventPayload struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	EventID   string `json:"event_id"`
	Event     struct {
		Type    string `json:"type"`
		User    string `json:"user"`
		Channel string `json:"channel"`
		Text    string `json:"text"`
		BotID   string `json:"bot_id"`
	} `json:"event"`
}

// handleSlackEvents receives the events webhook: URL verification
// challenges, then message events. Duplicate deliveries are dropped by
// event id, and bot-originated messages are ignored to avoid loops.
func (s *Server) handleSlackEvents(c echo.Context) error {
	var payload slackEventPayload
	if err := json.NewDecoder(c.Request().Body).Decode(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed event payload")
	}

	if payload.Type == "url_verification" {
		return c.JSON(http.StatusOK, map[string]string{"challenge": payload.Challenge})
	}

	if s.dedup.Seen(payload.EventID) {
		s.logger.Debug("dropped duplicate slack event", "event_id", payload.EventID)
		return c.NoContent(http.StatusOK)
	}

	ev := payload.Event
	if ev.Type != "message" && ev.Type != "app_mention" {
		return c.NoContent(http.StatusOK)
	}
	if ev.BotID != "" || ev.User == "" {
		return c.NoContent(http.StatusOK)
	}

	s.channels.Set(ev.User, ev.Channel)

	text := slack.Sanitize(ev.Text)
	if text == "" {
		return c.NoContent(http.StatusOK)
	}

	// Ack within the platform's deadline; the reply is posted back
	// through the bot token, not the webhook response.
	go func() {
		ctx, cancel := newDetachedContext()
		defer cancel()

		reply, err := s.assistant.HandleMessage(ctx, ev.User, text)
		if err != nil {
			s.logger.Error("failed to handle slack message", "user_id", ev.User, "error", err)
			return
		}
		if err := s.sender.PostMessage(ctx, slack.Message{Channel: ev.Channel, Text: reply}); err != nil {
			s.logger.Error("failed to post slack reply", "user_id", ev.User, "error", err)
		}
	}()

	return c.NoContent(http.StatusOK)
}

// handleSlackCommand handles the slash command, replying in-channel
// synchronously since commands allow a short response window.
func (s *Server) handleSlackCommand(c echo.Context) error {
	userID := c.FormValue("user_id")
	channel := c.FormValue("channel_id")
	text := slack.Sanitize(c.FormValue("text"))
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing user_id")
	}
	if text == "" {
		text = "list my reminders"
	}

	s.channels.Set(userID, channel)

	reply, err := s.assistant.HandleMessage(c.Request().Context(), userID, text)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to handle command")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"response_type": "in_channel",
		"text":          reply,
	})
}

type slackInteractionPayload struct {
	Type string `json:"type"`
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	ResponseURL string `json:"response_url"`
	Actions     []struct {
		ActionID string `json:"action_id"`
		Value    string `json:"value"`
	} `json:"actions"`
}

// handleSlackInteraction handles button presses on notification messages.
// The payload arrives form-encoded as a JSON string under "payload".
func (s *Server) handleSlackInteraction(c echo.Context) error {
	raw := c.FormValue("payload")
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing payload")
	}
	var payload slackInteractionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed interaction payload")
	}
	if len(payload.Actions) == 0 || payload.User.ID == "" {
		return c.NoContent(http.StatusOK)
	}

	action := payload.Actions[0]
	reminderID, err := strconv.ParseInt(action.Value, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "bad reminder id")
	}

	ctx := c.Request().Context()
	dispatcher := s.assistant.Dispatcher()

	var result *assistant.Result
	switch action.ActionID {
	case slack.ActionReminderDone:
		result = dispatcher.CompleteByID(ctx, payload.User.ID, reminderID)
	case slack.ActionReminderSnooze:
		result = dispatcher.SnoozeByMinutes(ctx, payload.User.ID, reminderID, 10)
	default:
		return c.NoContent(http.StatusOK)
	}

	if payload.ResponseURL != "" {
		if err := s.sender.PostToResponseURL(ctx, payload.ResponseURL, result.Message); err != nil {
			s.logger.Warn("failed to post interaction response", "error", err)
		}
	}
	return c.NoContent(http.StatusOK)
}
