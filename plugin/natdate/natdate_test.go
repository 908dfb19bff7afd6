package natdate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tuesday 2nd June 2026, 10:00 UTC.
var testNow = time.Date(2026, 6, 2, 10, 0, 0, 0, time.UTC)

func mustParse(t *testing.T, text string) time.Time {
	t.Helper()
	got, ok := Parse(text, testNow, time.UTC)
	require.True(t, ok, "expected %q to parse", text)
	return got
}

func TestParse_Relative(t *testing.T) {
	assert.Equal(t, testNow.Add(10*time.Minute), mustParse(t, "remind me in 10 minutes"))
	assert.Equal(t, testNow.Add(2*time.Hour), mustParse(t, "in 2 hours"))
	assert.Equal(t, testNow.AddDate(0, 0, 3), mustParse(t, "in 3 days"))
}

func TestParse_TomorrowWithClock(t *testing.T) {
	got := mustParse(t, "tomorrow at 5pm")
	assert.Equal(t, time.Date(2026, 6, 3, 17, 0, 0, 0, time.UTC), got)
}

func TestParse_TomorrowDefaultClock(t *testing.T) {
	got := mustParse(t, "tomorrow")
	assert.Equal(t, time.Date(2026, 6, 3, 9, 0, 0, 0, time.UTC), got)
}

func TestParse_BareClockPrefersFuture(t *testing.T) {
	// 8am already passed at testNow (10:00), so it rolls to tomorrow.
	got := mustParse(t, "at 8am")
	assert.Equal(t, time.Date(2026, 6, 3, 8, 0, 0, 0, time.UTC), got)

	got = mustParse(t, "at 5:30 pm")
	assert.Equal(t, time.Date(2026, 6, 2, 17, 30, 0, 0, time.UTC), got)
}

func TestParse_NoonAndMidnight(t *testing.T) {
	got := mustParse(t, "today at noon")
	assert.Equal(t, 12, got.Hour())

	got = mustParse(t, "tomorrow at midnight")
	assert.Equal(t, 0, got.Hour())
	assert.Equal(t, 3, got.Day())
}

func TestParse_Weekday(t *testing.T) {
	// testNow is a Tuesday; friday resolves to the coming Friday.
	got := mustParse(t, "friday at 9am")
	assert.Equal(t, time.Weekday(time.Friday), got.Weekday())
	assert.Equal(t, 5, got.Day())

	// Same weekday rolls a full week ahead.
	got = mustParse(t, "tuesday")
	assert.Equal(t, 9, got.Day())
}

func TestParse_MonthDay(t *testing.T) {
	got := mustParse(t, "mar 3 at 10am")
	assert.Equal(t, time.March, got.Month())
	assert.Equal(t, 3, got.Day())
	assert.Equal(t, 2027, got.Year(), "march already passed this year")

	got = mustParse(t, "15 july")
	assert.Equal(t, time.July, got.Month())
	assert.Equal(t, 2026, got.Year())
}

func TestParse_ISO(t *testing.T) {
	got := mustParse(t, "2026-12-24 18:30")
	assert.Equal(t, time.Date(2026, 12, 24, 18, 30, 0, 0, time.UTC), got)

	got = mustParse(t, "2026-12-24")
	assert.Equal(t, 9, got.Hour())
}

func TestParse_Evening(t *testing.T) {
	got := mustParse(t, "tonight")
	assert.Equal(t, 19, got.Hour())
	assert.Equal(t, 2, got.Day())
}

func TestParse_Unrecognized(t *testing.T) {
	for _, text := range []string{"", "buy milk", "call mom soon", "yes"} {
		_, ok := Parse(text, testNow, time.UTC)
		assert.False(t, ok, "expected %q not to parse", text)
	}
}

func TestMentionsTime(t *testing.T) {
	yes := []string{
		"remind me at 5pm", "the second one, at 4pm", "5:30pm", "tomorrow",
		"this evening", "in 10 min", "at noon", "17:30 works", "friday", "mar 3",
	}
	for _, text := range yes {
		assert.True(t, MentionsTime(text), "expected %q to mention time", text)
	}

	no := []string{"buy milk", "call the bank", "yes please", "sure", "show me my reminders"}
	for _, text := range no {
		assert.False(t, MentionsTime(text), "expected %q not to mention time", text)
	}
}

func TestFormatDue(t *testing.T) {
	assert.Equal(t, "3rd Mar, 5:00 PM", FormatDue(time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC), time.UTC))
	assert.Equal(t, "1st Jun, 9:05 AM", FormatDue(time.Date(2026, 6, 1, 9, 5, 0, 0, time.UTC), time.UTC))
	assert.Equal(t, "12th Dec, 12:00 PM", FormatDue(time.Date(2026, 12, 12, 12, 0, 0, 0, time.UTC), time.UTC))
}
