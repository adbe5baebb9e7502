// Package bot orchestrates the BriefBot runtime: the Telegram listener, the
// job scheduler with its background tasks, and per-chat brief deliveries.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbot "github.com/go-telegram/bot"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/briefbot/internal/config"
	"github.com/edgard/briefbot/internal/database"
)

// Bot ties the long-running components together and manages their lifecycle.
type Bot struct {
	logger    *slog.Logger
	cfg       *config.Config
	store     database.Store
	tgBot     *tgbot.Bot
	scheduler *Scheduler
}

// NewBot creates the orchestrator.
func NewBot(
	logger *slog.Logger,
	cfg *config.Config,
	store database.Store,
	tgBot *tgbot.Bot,
	scheduler *Scheduler,
) *Bot {
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		cfg:       cfg,
		store:     store,
		tgBot:     tgBot,
		scheduler: scheduler,
	}
}

// Run starts the Telegram listener and the scheduler, installs brief jobs
// for every chat already registered, and blocks until the context is
// cancelled or a component fails.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	b.scheduleExistingChats(ctx)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")

		b.tgBot.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		b.logger.Info("Starting scheduler...")
		if err := b.scheduler.Start(); err != nil {
			b.logger.Error("Failed to start scheduler", "error", err)
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler...")

		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}

		return nil
	})

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}

// scheduleExistingChats installs brief jobs for chats registered in earlier
// runs. A failure here is not fatal: the affected chat can be rescheduled
// through the management commands.
func (b *Bot) scheduleExistingChats(ctx context.Context) {
	chats, err := b.store.GetAllActiveChats(ctx)
	if err != nil {
		b.logger.Error("Failed to load registered chats for scheduling", "error", err)
		return
	}

	for i := range chats {
		if err := b.scheduler.ScheduleChatBriefs(&chats[i]); err != nil {
			b.logger.Error("Failed to schedule briefs for chat",
				"chat_id", chats[i].ChatID, "error", err)
		}
	}

	b.logger.Info("Installed brief jobs for registered chats",
		"chat_count", len(chats), "brief_jobs", b.scheduler.BriefJobCount())
}
