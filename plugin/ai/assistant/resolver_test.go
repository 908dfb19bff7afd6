package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nudgebot/nudge/store"
)

func TestInferCategory(t *testing.T) {
	cases := []struct {
		title, description, want string
	}{
		{"call mom", "", "family"},
		{"team meeting", "", "work"},
		{"dentist appointment", "", "health"},
		{"pay rent", "", "finance"},
		{"water the plants", "", "personal"},
		{"", "", "personal"},
		// Precedence: family wins over work even when both match.
		{"meeting with dad", "", "family"},
		// Description participates too.
		{"errand", "pick up medicine", "health"},
		// Keywords adjacent to punctuation still count.
		{"call mom.", "", "family"},
		{"pay rent!", "", "finance"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, InferCategory(c.title, c.description), "title %q", c.title)
	}
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "call mom", NormalizeTitle("  Call   MOM!  "))
	assert.Equal(t, "pay rent", NormalizeTitle("Pay rent."))
	assert.Equal(t, "standup 9am", NormalizeTitle("Stand-up @ 9am"))
	assert.Equal(t, "", NormalizeTitle("!!!"))
}

func TestAffirmationAndRejection(t *testing.T) {
	for _, s := range []string{"yes", "Yeah!", "sure", "OK", "sounds good", "go ahead."} {
		assert.True(t, IsAffirmation(s), "expected affirmation: %q", s)
	}
	for _, s := range []string{"no", "Nope", "never mind", "cancel", "not now"} {
		assert.True(t, IsRejection(s), "expected rejection: %q", s)
	}
	for _, s := range []string{"tomorrow at 5", "what?", "the second one"} {
		assert.False(t, IsAffirmation(s))
		assert.False(t, IsRejection(s))
	}
}

func TestParseSelection(t *testing.T) {
	for text, want := range map[string]int{
		"1": 1, "first": 1, "the first one": 1,
		"2": 2, "second": 2, "Two": 2,
		"3": 3, "the third": 3,
	} {
		n, ok := ParseSelection(text)
		require.True(t, ok, "text %q", text)
		assert.Equal(t, want, n)
	}

	_, ok := ParseSelection("fourth")
	assert.False(t, ok)
	_, ok = ParseSelection("whatever")
	assert.False(t, ok)
}

func TestFindExistingActive(t *testing.T) {
	ctx := context.Background()
	s := newAssistantStore(t)

	first := mustCreate(t, s, "U1", "Call Mom", time.Now().Add(time.Hour))
	time.Sleep(1100 * time.Millisecond)
	second := mustCreate(t, s, "U1", "call mom!", time.Now().Add(2*time.Hour))

	got, err := FindExistingActive(ctx, s, "U1", "CALL MOM")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)

	// Completed reminders never match.
	status := store.ReminderStatusCompleted
	_, err = s.UpdateReminder(ctx, &store.UpdateReminder{ID: second.ID, Status: &status})
	require.NoError(t, err)

	got, err = FindExistingActive(ctx, s, "U1", "call mom")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)

	got, err = FindExistingActive(ctx, s, "U1", "unrelated")
	require.NoError(t, err)
	assert.Nil(t, got)
}
