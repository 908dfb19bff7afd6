package assistant

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nudgebot/nudge/internal/profile"
	"github.com/nudgebot/nudge/plugin/memory"
	"github.com/nudgebot/nudge/store"
	"github.com/nudgebot/nudge/store/db/sqlite"
)

// newAssistantStore opens a throwaway sqlite-backed store.
func newAssistantStore(t *testing.T) *store.Store {
	t.Helper()

	p := &profile.Profile{
		Driver:          "sqlite",
		DSN:             filepath.Join(t.TempDir(), "test.db"),
		ContextCacheTTL: time.Minute,
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	require.NoError(t, driver.Migrate(context.Background()))

	s := store.New(driver, p)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustCreate(t *testing.T, s *store.Store, userID, title string, due time.Time) *store.Reminder {
	t.Helper()
	r, err := s.CreateReminder(context.Background(), &store.Reminder{
		UserID:     userID,
		Title:      title,
		DueAtEpoch: due.Unix(),
	})
	require.NoError(t, err)
	return r
}

// inlinePropagator runs propagation tasks immediately, in the test goroutine.
type inlinePropagator struct{}

func (inlinePropagator) Submit(name string, task func(ctx context.Context) error) bool {
	_ = task(context.Background())
	return true
}

// scriptedCompleter replays a fixed sequence of model turns and fails the
// test when called more often than scripted.
type scriptedCompleter struct {
	t     *testing.T
	turns []openai.ChatCompletionMessage
	calls int
}

func (s *scriptedCompleter) ChatWithTools(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (*openai.ChatCompletionMessage, error) {
	if s.calls >= len(s.turns) {
		s.t.Fatalf("unexpected model call %d", s.calls+1)
	}
	msg := s.turns[s.calls]
	s.calls++
	return &msg, nil
}

func textTurn(content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}
}

func toolTurn(name, args string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleAssistant,
		ToolCalls: []openai.ToolCall{{
			ID:       "call_1",
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

func newTestAssistant(t *testing.T, turns ...openai.ChatCompletionMessage) (*Assistant, *store.Store, *memory.MockService) {
	t.Helper()
	s := newAssistantStore(t)
	svc := memory.NewMockService()
	return New(Config{
		Provider:   &scriptedCompleter{t: t, turns: turns},
		Store:      s,
		Recorder:   memory.NewRecorder(svc, time.UTC, nil),
		Propagator: inlinePropagator{},
		Location:   time.UTC,
	}), s, svc
}

func TestHandleMessage_CreateWithTime(t *testing.T) {
	ctx := context.Background()
	a, s, svc := newTestAssistant(t,
		toolTurn(ToolCreateReminder, `{"title":"call mom","due_text":"tomorrow at 5pm"}`),
		textTurn("Done, I'll remind you."),
	)

	reply, err := a.HandleMessage(ctx, "U1", "remind me to call mom tomorrow at 5pm")
	require.NoError(t, err)
	assert.Equal(t, "Done, I'll remind you.", reply)

	userID := "U1"
	reminders, err := s.ListReminders(ctx, &store.FindReminder{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	r := reminders[0]
	assert.Equal(t, "family", r.Category)
	assert.Equal(t, store.ReminderStatusActive, r.Status)
	assert.EqualValues(t, 0, r.RescheduleCount)
	assert.Greater(t, r.DueAtEpoch, time.Now().Unix())

	// Memory propagation ran inline and linked its ref back.
	fresh, err := s.GetReminder(ctx, &store.FindReminder{ID: &r.ID})
	require.NoError(t, err)
	require.NotNil(t, fresh.MemoryRef)
	// Active entry, behavior summary, and the conversation turn.
	assert.Equal(t, 3, svc.Len())

	// Both sides of the turn landed in the transcript.
	history, err := s.ListConversationMessages(ctx, &store.FindConversationMessage{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, openai.ChatMessageRoleUser, history[0].Role)
}

func TestHandleMessage_MissingTimeAsksAndResolves(t *testing.T) {
	ctx := context.Background()
	a, s, _ := newTestAssistant(t,
		toolTurn(ToolCreateReminder, `{"title":"water plants"}`),
	)

	reply, err := a.HandleMessage(ctx, "U1", "remind me to water the plants")
	require.NoError(t, err)
	assert.Contains(t, reply, "What time")
	require.NotNil(t, a.pending.Get("U1"))
	assert.Equal(t, PendingConfirmTime, a.pending.Get("U1").Kind)

	// Nothing was created yet.
	userID := "U1"
	reminders, err := s.ListReminders(ctx, &store.FindReminder{UserID: &userID})
	require.NoError(t, err)
	assert.Empty(t, reminders)

	// The next turn carries a time and is consumed without a model call.
	reply, err = a.HandleMessage(ctx, "U1", "tomorrow at 9am")
	require.NoError(t, err)
	assert.Contains(t, reply, "water plants")
	assert.Nil(t, a.pending.Get("U1"))

	reminders, err = s.ListReminders(ctx, &store.FindReminder{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, reminders, 1)
}

func TestHandleMessage_ConfirmTimeKeepsSlotOnUnclearReply(t *testing.T) {
	ctx := context.Background()
	a, s, _ := newTestAssistant(t,
		toolTurn(ToolCreateReminder, `{"title":"stretch"}`),
	)

	_, err := a.HandleMessage(ctx, "U1", "remind me to stretch")
	require.NoError(t, err)
	require.NotNil(t, a.pending.Get("U1"))

	reply, err := a.HandleMessage(ctx, "U1", "hmm not sure")
	require.NoError(t, err)
	assert.Contains(t, reply, "What time")
	assert.NotNil(t, a.pending.Get("U1"), "slot should survive an unclear reply")

	// An explicit "no" does not abandon the reminder either; the slot
	// holds until a time arrives.
	reply, err = a.HandleMessage(ctx, "U1", "no")
	require.NoError(t, err)
	assert.Contains(t, reply, "What time")
	require.NotNil(t, a.pending.Get("U1"))

	reply, err = a.HandleMessage(ctx, "U1", "at 7pm")
	require.NoError(t, err)
	assert.Contains(t, reply, "stretch")
	assert.Nil(t, a.pending.Get("U1"))

	userID := "U1"
	reminders, err := s.ListReminders(ctx, &store.FindReminder{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, "19:00", reminders[0].DueTime().UTC().Format("15:04"))
}

func TestHandleMessage_ConfirmTimeAffirmativeUsesSuggestion(t *testing.T) {
	ctx := context.Background()
	a, s, _ := newTestAssistant(t,
		toolTurn(ToolCreateReminder, `{"title":"take vitamins"}`),
	)

	_, err := s.UpsertPreference(ctx, &store.UpsertPreference{
		UserID: "U1", Key: "preferred_reminder_time", Value: "08:00",
	})
	require.NoError(t, err)

	reply, err := a.HandleMessage(ctx, "U1", "remind me to take vitamins")
	require.NoError(t, err)
	assert.Contains(t, reply, "08:00")

	reply, err = a.HandleMessage(ctx, "U1", "yes")
	require.NoError(t, err)
	assert.Contains(t, reply, "take vitamins")

	userID := "U1"
	reminders, err := s.ListReminders(ctx, &store.FindReminder{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, "08:00", reminders[0].DueTime().UTC().Format("15:04"))
}

func TestHandleMessage_ClarifyFlow(t *testing.T) {
	ctx := context.Background()
	a, s, _ := newTestAssistant(t,
		toolTurn(ToolUpdateReminder, `{"title":"meeting","due_text":"4pm"}`),
	)

	mustCreate(t, s, "U1", "meeting", time.Now().Add(time.Hour))
	second := mustCreate(t, s, "U1", "meeting", time.Now().Add(2*time.Hour))

	reply, err := a.HandleMessage(ctx, "U1", "move my meeting to 4pm")
	require.NoError(t, err)
	assert.Contains(t, reply, "Which one")
	require.NotNil(t, a.pending.Get("U1"))
	assert.Equal(t, PendingClarifyReminder, a.pending.Get("U1").Kind)

	// Neither row was touched by the ambiguous turn.
	fresh, err := s.GetReminder(ctx, &store.FindReminder{ID: &second.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 0, fresh.RescheduleCount)

	// An unrecognized reply re-asks the same question.
	again, err := a.HandleMessage(ctx, "U1", "the big one")
	require.NoError(t, err)
	assert.Equal(t, reply, again)

	// Ordinal selection with a time applies the update immediately.
	reply, err = a.HandleMessage(ctx, "U1", "the second one, at 4pm")
	require.NoError(t, err)
	assert.Contains(t, reply, "meeting")
	assert.Nil(t, a.pending.Get("U1"))

	fresh, err = s.GetReminder(ctx, &store.FindReminder{ID: &second.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, fresh.RescheduleCount)
	assert.Nil(t, fresh.LastNotifiedAt)
}

func TestHandleMessage_ClarifySelectionWithoutTime(t *testing.T) {
	ctx := context.Background()
	a, s, _ := newTestAssistant(t)

	r1 := mustCreate(t, s, "U1", "dentist", time.Now().Add(time.Hour))
	r2 := mustCreate(t, s, "U1", "dentist", time.Now().Add(2*time.Hour))
	a.pending.Put("U1", &PendingAction{
		Kind:     PendingClarifyReminder,
		Matches:  []int64{r1.ID, r2.ID},
		Question: "Which dentist reminder?",
	})

	reply, err := a.HandleMessage(ctx, "U1", "the first one")
	require.NoError(t, err)
	assert.Contains(t, reply, "What time")
	require.NotNil(t, a.pending.Get("U1"))
	assert.Equal(t, PendingUpdateDue, a.pending.Get("U1").Kind)
	assert.Equal(t, r1.ID, a.pending.Get("U1").ReminderID)

	reply, err = a.HandleMessage(ctx, "U1", "tomorrow at noon")
	require.NoError(t, err)
	assert.Contains(t, reply, "dentist")
	assert.Nil(t, a.pending.Get("U1"))

	fresh, err := s.GetReminder(ctx, &store.FindReminder{ID: &r1.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, fresh.RescheduleCount)
}

func TestHandleMessage_UpdateDueIrrelevantFallsThrough(t *testing.T) {
	ctx := context.Background()
	a, s, _ := newTestAssistant(t,
		toolTurn(ToolListReminders, `{"filter":"active"}`),
		textTurn("here is a paraphrase the user should never see"),
	)

	r := mustCreate(t, s, "U1", "taxes", time.Now().Add(time.Hour))
	a.pending.Put("U1", &PendingAction{Kind: PendingUpdateDue, ReminderID: r.ID, Title: "taxes"})

	// A message that neither confirms nor carries a time clears the slot
	// and flows to normal dispatch.
	reply, err := a.HandleMessage(ctx, "U1", "show me my reminders")
	require.NoError(t, err)
	assert.Nil(t, a.pending.Get("U1"))
	assert.Contains(t, reply, "taxes")
	assert.NotContains(t, reply, "paraphrase")
}

func TestHandleMessage_ListSummaryVerbatim(t *testing.T) {
	ctx := context.Background()
	a, s, _ := newTestAssistant(t,
		toolTurn(ToolListReminders, `{}`),
		textTurn("You have some stuff coming up!"),
	)

	mustCreate(t, s, "U1", "pay rent", time.Now().Add(time.Hour))

	reply, err := a.HandleMessage(ctx, "U1", "what's on my plate?")
	require.NoError(t, err)
	assert.Contains(t, reply, "Upcoming")
	assert.Contains(t, reply, "pay rent")
	assert.NotEqual(t, "You have some stuff coming up!", reply)
}

func TestHandleMessage_StepBudgetFallback(t *testing.T) {
	ctx := context.Background()
	s := newAssistantStore(t)
	svc := memory.NewMockService()

	turns := make([]openai.ChatCompletionMessage, 0, 3)
	for i := 0; i < 3; i++ {
		turns = append(turns, toolTurn(ToolGetPreferences, fmt.Sprintf(`{"n":%d}`, i)))
	}
	a := New(Config{
		Provider:   &scriptedCompleter{t: t, turns: turns},
		Store:      s,
		Recorder:   memory.NewRecorder(svc, time.UTC, nil),
		Propagator: inlinePropagator{},
		Location:   time.UTC,
		MaxSteps:   3,
	})

	reply, err := a.HandleMessage(ctx, "U1", "do something odd")
	require.NoError(t, err)
	assert.Equal(t, fallbackReply, reply)
}
