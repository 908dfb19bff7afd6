package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/nudgebot/nudge/plugin/ai"
	"github.com/nudgebot/nudge/plugin/memory"
	"github.com/nudgebot/nudge/plugin/natdate"
	"github.com/nudgebot/nudge/internal/observability"
	"github.com/nudgebot/nudge/store"
)

// Config wires an Assistant.
type Config struct {
	Provider           ai.ChatCompleter
	Store              *store.Store
	Recorder           *memory.Recorder
	Propagator         Propagator
	Location           *time.Location
	MaxSteps           int
	ConversationWindow int
	Logger             *slog.Logger
}

// Assistant handles one chat turn end to end: pending-action resolution
// first, then context assembly and the tool-calling loop.
type Assistant struct {
	provider   ai.ChatCompleter
	store      *store.Store
	recorder   *memory.Recorder
	propagator Propagator
	dispatcher *Dispatcher
	contextB   *ContextBuilder
	pending    *PendingStore
	loc        *time.Location
	maxSteps   int
	window     int
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an Assistant.
func New(cfg Config) *Assistant {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 10
	}
	if cfg.ConversationWindow <= 0 {
		cfg.ConversationWindow = 6
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	pending := NewPendingStore()
	return &Assistant{
		provider:   cfg.Provider,
		store:      cfg.Store,
		recorder:   cfg.Recorder,
		propagator: cfg.Propagator,
		dispatcher: NewDispatcher(cfg.Store, cfg.Recorder, cfg.Propagator, pending, cfg.Location, cfg.Logger),
		contextB:   NewContextBuilder(cfg.Store, cfg.Recorder, cfg.Location, cfg.Logger),
		pending:    pending,
		loc:        cfg.Location,
		maxSteps:   cfg.MaxSteps,
		window:     cfg.ConversationWindow,
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// Dispatcher exposes the tool dispatch layer for callers that act outside
// a conversation, like interaction buttons.
func (a *Assistant) Dispatcher() *Dispatcher {
	return a.dispatcher
}

// Recorder exposes the memory recorder for maintenance endpoints.
func (a *Assistant) Recorder() *memory.Recorder {
	return a.recorder
}

// HandleMessage processes one user turn and returns the reply text.
func (a *Assistant) HandleMessage(ctx context.Context, userID, text string) (string, error) {
	rc := observability.NewRequestContext(a.logger, "assistant", userID)
	ctx = observability.WithRequestContext(ctx, rc)
	observability.GlobalMetrics().RecordRequest("assistant")
	defer func() {
		observability.GlobalMetrics().RecordDuration("assistant", rc.Duration())
	}()

	text = strings.TrimSpace(text)
	if text == "" {
		return "I didn't catch that, what would you like me to remind you about?", nil
	}

	reply, handled := a.resolvePending(ctx, userID, text)
	if !handled {
		reply = a.runAgent(ctx, userID, text)
	}

	a.persistTurn(ctx, userID, text, reply)
	rc.Info("handled chat turn", slog.Int64(observability.LogFieldDuration, rc.DurationMs()))
	return reply, nil
}

// resolvePending lets an existing pending action capture the turn. The
// second return is false when the turn should flow to normal dispatch.
func (a *Assistant) resolvePending(ctx context.Context, userID, text string) (string, bool) {
	p := a.pending.Get(userID)
	if p == nil {
		return "", false
	}

	switch p.Kind {
	case PendingConfirmTime:
		return a.resolveConfirmTime(ctx, userID, p, text)
	case PendingClarifyReminder:
		return a.resolveClarify(ctx, userID, p, text)
	case PendingUpdateDue:
		return a.resolveUpdateDue(ctx, userID, p, text)
	default:
		a.pending.Clear(userID)
		return "", false
	}
}

func (a *Assistant) resolveConfirmTime(ctx context.Context, userID string, p *PendingAction, text string) (string, bool) {
	switch {
	case IsAffirmation(text) && p.SuggestedTime != "":
		a.pending.Clear(userID)
		dueText := strings.TrimSpace(p.DueText + " " + p.SuggestedTime)
		result := a.dispatcher.CreateReminder(ctx, userID, createReminderArgs{
			Title:       p.Title,
			Description: p.Description,
			DueText:     dueText,
		}, true)
		return result.Message, true

	case natdate.MentionsTime(text):
		// The user's own words become the due text; a time is never invented.
		a.pending.Clear(userID)
		result := a.dispatcher.CreateReminder(ctx, userID, createReminderArgs{
			Title:       p.Title,
			Description: p.Description,
			DueText:     text,
		}, true)
		return result.Message, true

	default:
		// Slot is kept on any other reply, "no" included, so the next
		// time-bearing turn still lands here.
		return fmt.Sprintf("What time should I set %q for?", p.Title), true
	}
}

func (a *Assistant) resolveClarify(ctx context.Context, userID string, p *PendingAction, text string) (string, bool) {
	if IsRejection(text) {
		a.pending.Clear(userID)
		return "Okay, which reminder did you mean?", true
	}

	n, ok := ParseSelection(text)
	if !ok || n > len(p.Matches) {
		// Unrecognized reply, re-ask the stored question verbatim.
		return p.Question, true
	}

	a.pending.Clear(userID)
	chosen := p.Matches[n-1]

	if natdate.MentionsTime(text) {
		result := a.dispatcher.UpdateReminder(ctx, userID, updateReminderArgs{
			ReminderID: chosen,
			DueText:    text,
		})
		return result.Message, true
	}

	r, err := a.store.GetReminder(ctx, &store.FindReminder{ID: &chosen})
	if err != nil || r == nil {
		return "I couldn't find that reminder anymore.", true
	}
	a.pending.Put(userID, &PendingAction{
		Kind:       PendingUpdateDue,
		ReminderID: chosen,
		Title:      r.Title,
	})
	return fmt.Sprintf("Got it, %q. What time should I set it to?", r.Title), true
}

func (a *Assistant) resolveUpdateDue(ctx context.Context, userID string, p *PendingAction, text string) (string, bool) {
	switch {
	case IsAffirmation(text) && p.DueText != "":
		a.pending.Clear(userID)
		result := a.dispatcher.UpdateReminder(ctx, userID, updateReminderArgs{
			ReminderID: p.ReminderID,
			DueText:    p.DueText,
		})
		return result.Message, true

	case natdate.MentionsTime(text):
		a.pending.Clear(userID)
		result := a.dispatcher.UpdateReminder(ctx, userID, updateReminderArgs{
			ReminderID: p.ReminderID,
			DueText:    text,
		})
		return result.Message, true

	case IsRejection(text):
		a.pending.Clear(userID)
		return fmt.Sprintf("Okay, leaving %q as it is.", p.Title), true

	default:
		// Not about the pending date; clear it and handle the turn normally.
		a.pending.Clear(userID)
		return "", false
	}
}

// runAgent runs the bounded tool-calling loop for a turn.
func (a *Assistant) runAgent(ctx context.Context, userID, text string) string {
	messages := a.buildMessages(ctx, userID, text)
	tools := Tools()
	summaryOverride := ""

	for step := 0; step < a.maxSteps; step++ {
		msg, err := a.provider.ChatWithTools(ctx, messages, tools)
		if err != nil {
			a.logger.Error("chat completion failed", "user_id", userID, "step", step, "error", err)
			observability.GlobalMetrics().RecordFailure("assistant")
			return "I'm having trouble thinking right now, try again in a moment."
		}

		if len(msg.ToolCalls) == 0 {
			// Final answer. A list summary still wins over the model's
			// own phrasing of it.
			if summaryOverride != "" {
				return summaryOverride
			}
			if msg.Content == "" {
				return fallbackReply
			}
			return msg.Content
		}

		messages = append(messages, *msg)
		for _, call := range msg.ToolCalls {
			result := a.dispatcher.Dispatch(ctx, userID, call.Function.Name, []byte(call.Function.Arguments))
			if result.Summary != "" {
				summaryOverride = result.Summary
			}

			// A freshly stored pending action means we are waiting on the
			// user; return its question directly instead of letting the
			// model rephrase it.
			if a.pending.Get(userID) != nil {
				return result.Message
			}

			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    toolResultContent(result),
			})
		}
	}

	if summaryOverride != "" {
		return summaryOverride
	}
	return fallbackReply
}

func toolResultContent(result *Result) string {
	status := "ok"
	if !result.Success {
		status = "error"
	}
	return fmt.Sprintf("[%s] %s", status, result.Message)
}

// buildMessages assembles system prompt, personalization context, the
// recent conversation window, and the new user turn.
func (a *Assistant) buildMessages(ctx context.Context, userID, text string) []openai.ChatCompletionMessage {
	system := systemPrompt(a.now(), a.loc)
	if userContext := a.contextB.Build(ctx, userID, text); userContext != "" {
		system += "\n\nWhat you know about this user:\n" + userContext
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}

	window := a.window
	history, err := a.store.ListConversationMessages(ctx, &store.FindConversationMessage{
		UserID: &userID,
		Limit:  &window,
	})
	if err != nil {
		a.logger.Warn("failed to load conversation history", "user_id", userID, "error", err)
	}
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	return append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})
}

// persistTurn appends both sides of the turn to the transcript and
// propagates a conversation memory entry.
func (a *Assistant) persistTurn(ctx context.Context, userID, text, reply string) {
	for _, m := range []*store.ConversationMessage{
		{UserID: userID, Role: openai.ChatMessageRoleUser, Content: text},
		{UserID: userID, Role: openai.ChatMessageRoleAssistant, Content: reply},
	} {
		if _, err := a.store.CreateConversationMessage(ctx, m); err != nil {
			a.logger.Warn("failed to persist conversation message", "user_id", userID, "error", err)
		}
	}

	if a.propagator != nil {
		a.propagator.Submit("memory.conversation", func(ctx context.Context) error {
			return a.recorder.RecordConversation(ctx, userID, text, reply)
		})
	}
}
