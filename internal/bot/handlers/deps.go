package handlers

import (
	"log/slog"

	"github.com/edgard/briefbot/internal/analyzer"
	"github.com/edgard/briefbot/internal/collector"
	"github.com/edgard/briefbot/internal/config"
	"github.com/edgard/briefbot/internal/database"
)

// BriefScheduler is the slice of the job scheduler the management commands
// drive: installing, replacing, and removing a chat's brief delivery jobs.
type BriefScheduler interface {
	ScheduleChatBriefs(chat *database.ChatSettings) error
	UnscheduleChatBriefs(chatID int64)
	BriefJobCount() int
}

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger    *slog.Logger
	Config    *config.Config
	Store     database.Store
	Collector *collector.Collector
	Analyzer  *analyzer.Analyzer
	Briefs    BriefScheduler
}
