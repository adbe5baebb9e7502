// Package main contains the entrypoint for the BriefBot application.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/briefbot/internal/ai"
	"github.com/edgard/briefbot/internal/analyzer"
	"github.com/edgard/briefbot/internal/bot"
	"github.com/edgard/briefbot/internal/bot/handlers"
	"github.com/edgard/briefbot/internal/bot/tasks"
	"github.com/edgard/briefbot/internal/collector"
	"github.com/edgard/briefbot/internal/config"
	"github.com/edgard/briefbot/internal/database"
	"github.com/edgard/briefbot/internal/logger"
	"github.com/edgard/briefbot/internal/source"
	"github.com/edgard/briefbot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop() // Ensure context cancellation is signaled before exit
	os.Exit(exitCode)
}

// run initializes all application components (config, logger, store, AI
// client, recorder, collector, analyzer, briefer, scheduler, bot), starts
// them, handles graceful shutdown, and returns an exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	store, err := database.NewStore(cfg.Database, log)
	if err != nil {
		log.Error("Failed to initialize storage", "backend", cfg.Database.Backend, "error", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close storage", "error", err)
		}
	}()
	if err := store.Ping(ctx); err != nil {
		log.Error("Storage is not reachable", "backend", cfg.Database.Backend, "error", err)
		return 1
	}

	aiClient, err := ai.NewClient(ctx, cfg.AI, log)
	if err != nil {
		log.Error("Failed to initialize AI client", "backend", cfg.AI.Backend, "error", err)
		return 1
	}

	// The recorder doubles as the bot's default handler: every non-command
	// message in a chat the bot belongs to lands in its buffer.
	recorder := source.NewRecorder(log, cfg.Collector.BufferSize)

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(recorder.Handle),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	recorder.Bind(tg)
	if err := recorder.Connect(ctx); err != nil {
		log.Error("Failed to connect message recorder", "error", err)
		return 1
	}

	clock := clockwork.NewRealClock()
	col := collector.New(store, recorder, cfg.Collector, log)
	an := analyzer.New(store, aiClient, clock, analyzer.Options{
		MaxSummaryLength:    cfg.Briefs.MaxSummaryLength,
		SampleSize:          cfg.Briefs.SampleSize,
		RecordEmptyBriefs:   cfg.Briefs.RecordEmpty,
		MarkInsteadOfDelete: cfg.Retention.Mode == "mark",
	}, log)
	briefer := bot.NewBriefer(log, cfg, store, col, an, tg)

	tDeps := tasks.TaskDeps{
		Logger:    log,
		Store:     store,
		Collector: col,
		Clock:     clock,
		Config:    cfg,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps), briefer.SendBrief)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	hDeps := handlers.HandlerDeps{
		Logger:    log,
		Config:    cfg,
		Store:     store,
		Collector: col,
		Analyzer:  an,
		Briefs:    sched,
	}
	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	app := bot.NewBot(log, cfg, store, tg, sched)

	log.Info("Starting BriefBot...")
	runErr := app.Run(ctx) // Run blocks until context is cancelled or an error occurs
	log.Info("Run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
