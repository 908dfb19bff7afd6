package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("NUDGE_DATA", t.TempDir())

	p, err := Load("test")
	require.NoError(t, err)

	assert.Equal(t, "dev", p.Mode)
	assert.Equal(t, 8292, p.Port)
	assert.Equal(t, "sqlite", p.Driver)
	assert.Equal(t, 10*time.Minute, p.NotifyLead)
	assert.Equal(t, time.Minute, p.NotifyInterval)
	assert.Equal(t, 6, p.ConversationWindow)
	assert.Equal(t, 5*time.Minute, p.EventDedupTTL)
	assert.True(t, p.BackgroundMemoryWrites)
	assert.Equal(t, 10, p.AIMaxSteps)
	assert.NotEmpty(t, p.DSN)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NUDGE_DATA", t.TempDir())
	t.Setenv("NUDGE_MODE", "prod")
	t.Setenv("NUDGE_PORT", "9000")
	t.Setenv("NUDGE_NOTIFY_LEAD", "15m")
	t.Setenv("NUDGE_SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("NUDGE_BACKGROUND_MEMORY_WRITES", "false")

	p, err := Load("test")
	require.NoError(t, err)

	assert.Equal(t, "prod", p.Mode)
	assert.Equal(t, 9000, p.Port)
	assert.Equal(t, 15*time.Minute, p.NotifyLead)
	assert.Equal(t, "xoxb-test", p.SlackBotToken)
	assert.False(t, p.BackgroundMemoryWrites)
}

func TestValidate_BadTimezone(t *testing.T) {
	p := &Profile{Mode: "dev", Data: t.TempDir(), Driver: "sqlite", Timezone: "Not/AZone"}
	err := p.Validate()
	require.Error(t, err)
}

func TestLocation_Fallback(t *testing.T) {
	p := &Profile{Timezone: "bogus"}
	assert.Equal(t, time.UTC, p.Location())

	p = &Profile{Timezone: "America/New_York"}
	assert.Equal(t, "America/New_York", p.Location().String())
}
