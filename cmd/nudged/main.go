package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nudgebot/nudge/internal/profile"
	"github.com/nudgebot/nudge/plugin/ai"
	"github.com/nudgebot/nudge/plugin/ai/assistant"
	"github.com/nudgebot/nudge/plugin/memory"
	"github.com/nudgebot/nudge/plugin/slack"
	"github.com/nudgebot/nudge/server"
	"github.com/nudgebot/nudge/server/runner/notifier"
	"github.com/nudgebot/nudge/server/runner/propagation"
	"github.com/nudgebot/nudge/store"
	"github.com/nudgebot/nudge/store/db"
)

var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "nudged",
		Short: "Conversational reminder assistant",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the nudge server",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := profile.Load(version)
			if err != nil {
				return err
			}
			return run(p)
		},
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := profile.Load(version)
			if err != nil {
				return err
			}
			driver, err := db.NewDBDriver(p)
			if err != nil {
				return err
			}
			defer driver.Close()
			return driver.Migrate(cmd.Context())
		},
	}

	root.AddCommand(serve, migrate)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(p *profile.Profile) error {
	logger := newLogger(p)
	slog.SetDefault(logger)

	driver, err := db.NewDBDriver(p)
	if err != nil {
		return err
	}
	if err := driver.Migrate(context.Background()); err != nil {
		return err
	}
	s := store.New(driver, p)
	defer s.Close()

	provider, err := ai.NewProviderFromProfile(p)
	if err != nil {
		return err
	}

	// An empty base URL keeps all memory in process, which is what local
	// development runs with.
	var memSvc memory.Service
	if p.MemoryBaseURL == "" {
		logger.Warn("NUDGE_MEMORY_BASE_URL unset, using in-process memory store")
		memSvc = memory.NewMockService()
	} else {
		memSvc = memory.NewClient(memory.ClientConfig{
			BaseURL: p.MemoryBaseURL,
			APIKey:  p.MemoryAPIKey,
			Timeout: p.MemoryTimeout,
		})
	}

	loc := p.Location()
	recorder := memory.NewRecorder(memSvc, loc, logger)

	var propagator assistant.Propagator
	var pool *propagation.Pool
	if p.BackgroundMemoryWrites {
		pool = propagation.NewPool(p.PropagationWorkers, p.PropagationQueueSize, logger)
		pool.Start()
		propagator = pool
	} else {
		propagator = propagation.NewInline(logger)
	}

	asst := assistant.New(assistant.Config{
		Provider:           provider,
		Store:              s,
		Recorder:           recorder,
		Propagator:         propagator,
		Location:           loc,
		MaxSteps:           p.AIMaxSteps,
		ConversationWindow: p.ConversationWindow,
		Logger:             logger,
	})

	var sender slack.Sender
	if p.SlackBotToken != "" {
		sender = slack.NewClient(p.SlackBotToken)
	} else {
		logger.Warn("NUDGE_SLACK_BOT_TOKEN unset, outbound Slack messages are dropped")
		sender = slack.NewMockSender()
	}

	channels := notifier.NewChannelDirectory(p.SlackDefaultChannel)
	runner := notifier.NewRunner(s, sender, channels, notifier.Config{
		Lead:     p.NotifyLead,
		Interval: p.NotifyInterval,
		Location: loc,
		Logger:   logger,
	})

	srv := server.NewServer(p, s, asst, sender, channels, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner.Start(ctx)
	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	logger.Info("nudged started",
		slog.String("version", p.Version),
		slog.String("addr", fmt.Sprintf("%s:%d", p.Addr, p.Port)),
		slog.String("mode", p.Mode))

	<-ctx.Done()
	logger.Info("shutting down")

	runner.Stop()
	if pool != nil {
		pool.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	return nil
}

func newLogger(p *profile.Profile) *slog.Logger {
	if p.IsDev() {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
