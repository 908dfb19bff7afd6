package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nudgebot/nudge/plugin/memory"
	"github.com/nudgebot/nudge/store"
)

func TestSkipsPrefetch(t *testing.T) {
	skip := []string{
		"done with the report",
		"Delete call mom",
		"snooze it",
		"finished!",
	}
	for _, text := range skip {
		assert.True(t, skipsPrefetch(text), text)
	}

	assemble := []string{
		"remind me to call mom tomorrow",
		"what do I have this week",
		"move the dentist appointment",
		"I'm done procrastinating, remind me to file taxes",
	}
	for _, text := range assemble {
		assert.False(t, skipsPrefetch(text), text)
	}
}

func TestContextBuilder_AssemblesAndCaches(t *testing.T) {
	ctx := context.Background()
	s := newAssistantStore(t)
	svc := memory.NewMockService()
	rec := memory.NewRecorder(svc, time.UTC, nil)
	b := NewContextBuilder(s, rec, time.UTC, nil)

	userID := "U1"
	_, err := s.UpsertPreference(ctx, &store.UpsertPreference{
		UserID: userID,
		Key:    "tone",
		Value:  "casual",
	})
	require.NoError(t, err)

	built := b.Build(ctx, userID, "remind me to stretch at 3pm")
	assert.Contains(t, built, "tone: casual")

	// A later preference write invalidates the cached block.
	_, err = s.UpsertPreference(ctx, &store.UpsertPreference{
		UserID: userID,
		Key:    "preferred_reminder_time",
		Value:  "08:00",
	})
	require.NoError(t, err)

	built = b.Build(ctx, userID, "what are my reminders")
	assert.Contains(t, built, "preferred_reminder_time: 08:00")
}

func TestContextBuilder_ActionTurnSkipsAssembly(t *testing.T) {
	ctx := context.Background()
	s := newAssistantStore(t)
	rec := memory.NewRecorder(memory.NewMockService(), time.UTC, nil)
	b := NewContextBuilder(s, rec, time.UTC, nil)

	userID := "U1"
	_, err := s.UpsertPreference(ctx, &store.UpsertPreference{
		UserID: userID,
		Key:    "tone",
		Value:  "casual",
	})
	require.NoError(t, err)

	// Nothing cached yet, so the action turn gets no context block.
	assert.Empty(t, b.Build(ctx, userID, "done with stretching"))

	// A normal turn assembles and caches; the next action turn reuses it.
	assert.NotEmpty(t, b.Build(ctx, userID, "what's on my plate"))
	assert.Contains(t, b.Build(ctx, userID, "done with stretching"), "tone: casual")
}
