// Package tasks implements the scheduled background tasks of the BriefBot
// pipeline: periodic message collection, retention sweeps, and storage
// maintenance.
package tasks

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/briefbot/internal/collector"
	"github.com/edgard/briefbot/internal/config"
	"github.com/edgard/briefbot/internal/database"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger    *slog.Logger
	Store     database.Store
	Collector *collector.Collector
	Clock     clockwork.Clock
	Config    *config.Config
}
