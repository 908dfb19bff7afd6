// Package notifier sweeps for due-soon reminders and delivers chat pings.
// Delivery is at most once per due window: a reminder is marked notified
// on delivery and becomes eligible again only after its due time changes.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nudgebot/nudge/plugin/natdate"
	"github.com/nudgebot/nudge/plugin/slack"
	"github.com/nudgebot/nudge/store"
)

// ChannelDirectory remembers which chat channel each user talks to the bot
// in, so the sweep knows where to deliver. Updated on every inbound event.
type ChannelDirectory struct {
	mu       sync.RWMutex
	channels map[string]string
	fallback string
}

// NewChannelDirectory creates a directory with an optional fallback channel.
func NewChannelDirectory(fallback string) *ChannelDirectory {
	return &ChannelDirectory{
		channels: make(map[string]string),
		fallback: fallback,
	}
}

// Set records the channel for a user.
func (d *ChannelDirectory) Set(userID, channel string) {
	if userID == "" || channel == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels[userID] = channel
}

// Get returns the channel for a user, falling back to the default.
func (d *ChannelDirectory) Get(userID string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if ch, ok := d.channels[userID]; ok {
		return ch
	}
	return d.fallback
}

// Users returns every user with a known channel.
func (d *ChannelDirectory) Users() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	users := make([]string, 0, len(d.channels))
	for u := range d.channels {
		users = append(users, u)
	}
	return users
}

// Runner is the periodic due-soon sweep.
type Runner struct {
	store    *store.Store
	sender   slack.Sender
	channels *ChannelDirectory
	lead     time.Duration
	interval time.Duration
	loc      *time.Location
	logger   *slog.Logger

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex

	now func() time.Time
}

// Config holds notifier settings.
type Config struct {
	Lead     time.Duration
	Interval time.Duration
	Location *time.Location
	Logger   *slog.Logger
}

// NewRunner creates a notifier runner.
func NewRunner(s *store.Store, sender slack.Sender, channels *ChannelDirectory, cfg Config) *Runner {
	if cfg.Lead <= 0 {
		cfg.Lead = 10 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{
		store:    s,
		sender:   sender,
		channels: channels,
		lead:     cfg.Lead,
		interval: cfg.Interval,
		loc:      cfg.Location,
		logger:   cfg.Logger,
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
}

// Start begins the sweep loop.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(ctx)
	r.logger.Info("notifier started", "interval", r.interval, "lead", r.lead)
}

// Stop gracefully stops the sweep loop.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("notifier stopped")
}

func (r *Runner) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("notification sweep failed", "error", err)
			}
		}
	}
}

// RunOnce sweeps every known user once and returns the delivered count.
// Per-user failures are logged and skipped, never aborting the sweep.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	users := r.channels.Users()
	if len(users) == 0 {
		return 0, nil
	}

	var delivered atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, userID := range users {
		userID := userID
		g.Go(func() error {
			n, err := r.sweepUser(gctx, userID)
			if err != nil {
				r.logger.Warn("user sweep failed", "user_id", userID, "error", err)
				return nil
			}
			delivered.Add(int64(n))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(delivered.Load()), err
	}
	return int(delivered.Load()), nil
}

func (r *Runner) sweepUser(ctx context.Context, userID string) (int, error) {
	now := r.now()
	due, err := r.store.ListDueSoonReminders(ctx, userID, now, r.lead)
	if err != nil {
		return 0, err
	}

	channel := r.channels.Get(userID)
	if channel == "" {
		return 0, nil
	}

	sent := 0
	for _, reminder := range due {
		text := fmt.Sprintf("<@%s> Heads up: %q is due %s.",
			userID, reminder.Title, natdate.FormatDue(reminder.DueTime(), r.loc))
		if err := r.sender.PostMessage(ctx, slack.Message{
			Channel:    channel,
			Text:       text,
			ReminderID: reminder.ID,
		}); err != nil {
			// Not marked notified, so the next sweep retries it.
			r.logger.Warn("failed to deliver notification",
				"user_id", userID, "reminder_id", reminder.ID, "error", err)
			continue
		}

		if _, err := r.store.MarkReminderNotified(ctx, reminder.ID, now); err != nil {
			r.logger.Error("failed to mark reminder notified",
				"reminder_id", reminder.ID, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}
