package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Profile is the configuration to start the main server.
// Every field binds to a NUDGE_* environment variable through viper.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string `mapstructure:"mode"`
	// Addr is the binding address for server
	Addr string `mapstructure:"addr"`
	// Port is the binding port for server
	Port int `mapstructure:"port"`
	// Data is the data directory
	Data string `mapstructure:"data"`
	// DSN points to where the ground-truth database lives
	DSN string `mapstructure:"dsn"`
	// Driver is the database driver (sqlite)
	Driver string `mapstructure:"driver"`
	// Version is the current version of server
	Version string `mapstructure:"-"`

	// Timezone is the IANA zone used for parsing and rendering times.
	Timezone string `mapstructure:"timezone"`

	// Notification sweep settings.
	NotifyLead     time.Duration `mapstructure:"notify_lead"`     // NUDGE_NOTIFY_LEAD
	NotifyInterval time.Duration `mapstructure:"notify_interval"` // NUDGE_NOTIFY_INTERVAL

	// ConversationWindow is how many recent turns feed the prompt.
	ConversationWindow int `mapstructure:"conversation_window"`

	// ContextCacheTTL bounds staleness of assembled per-user context.
	ContextCacheTTL time.Duration `mapstructure:"context_cache_ttl"`

	// EventDedupTTL is how long inbound webhook event IDs are remembered.
	EventDedupTTL time.Duration `mapstructure:"event_dedup_ttl"`

	// Memory propagation settings. When BackgroundMemoryWrites is false,
	// propagation runs inline with the request.
	BackgroundMemoryWrites bool `mapstructure:"background_memory_writes"`
	PropagationWorkers     int  `mapstructure:"propagation_workers"`
	PropagationQueueSize   int  `mapstructure:"propagation_queue_size"`

	// CronToken guards the maintenance endpoints.
	CronToken string `mapstructure:"cron_token"`

	// Slack integration.
	SlackBotToken       string `mapstructure:"slack_bot_token"`
	SlackSigningSecret  string `mapstructure:"slack_signing_secret"`
	SlackDefaultChannel string `mapstructure:"slack_default_channel"`

	// Semantic memory service. Empty base URL selects the in-process mock.
	MemoryBaseURL string        `mapstructure:"memory_base_url"`
	MemoryAPIKey  string        `mapstructure:"memory_api_key"`
	MemoryTimeout time.Duration `mapstructure:"memory_timeout"`

	// LLM provider.
	AIAPIKey    string `mapstructure:"ai_api_key"`
	AIBaseURL   string `mapstructure:"ai_base_url"`
	AIChatModel string `mapstructure:"ai_chat_model"`
	AIMaxSteps  int    `mapstructure:"ai_max_steps"`
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// Location resolves the configured timezone, falling back to UTC.
func (p *Profile) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from NUDGE_* environment variables and applies
// defaults for everything unset.
func Load(version string) (*Profile, error) {
	v := viper.New()
	v.SetEnvPrefix("nudge")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("mode", "dev")
	v.SetDefault("addr", "")
	v.SetDefault("port", 8292)
	v.SetDefault("data", ".")
	v.SetDefault("driver", "sqlite")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("notify_lead", 10*time.Minute)
	v.SetDefault("notify_interval", time.Minute)
	v.SetDefault("conversation_window", 6)
	v.SetDefault("context_cache_ttl", 2*time.Minute)
	v.SetDefault("event_dedup_ttl", 5*time.Minute)
	v.SetDefault("background_memory_writes", true)
	v.SetDefault("propagation_workers", 4)
	v.SetDefault("propagation_queue_size", 256)
	v.SetDefault("memory_timeout", 5*time.Second)

	// Secrets and endpoints default to empty; registering the key is what
	// lets AutomaticEnv feed Unmarshal.
	for _, key := range []string{
		"dsn", "cron_token",
		"slack_bot_token", "slack_signing_secret", "slack_default_channel",
		"memory_base_url", "memory_api_key", "ai_api_key",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("ai_base_url", "https://api.openai.com/v1")
	v.SetDefault("ai_chat_model", "gpt-4o-mini")
	v.SetDefault("ai_max_steps", 10)

	profile := &Profile{}
	if err := v.Unmarshal(profile); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal configuration")
	}
	profile.Version = version

	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return profile, nil
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return errors.Wrapf(err, "invalid timezone %q", p.Timezone)
	}
	if p.NotifyLead <= 0 {
		p.NotifyLead = 10 * time.Minute
	}
	if p.NotifyInterval <= 0 {
		p.NotifyInterval = time.Minute
	}
	if p.ConversationWindow <= 0 {
		p.ConversationWindow = 6
	}
	if p.PropagationWorkers <= 0 {
		p.PropagationWorkers = 4
	}
	if p.PropagationQueueSize <= 0 {
		p.PropagationQueueSize = 256
	}
	if p.AIMaxSteps <= 0 {
		p.AIMaxSteps = 10
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("nudge_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
