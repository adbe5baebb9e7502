package logger

import (
	"log/slog"

	"github.com/go-co-op/gocron/v2"
)

// GocronLogger implements the gocron.Logger interface on top of slog so
// scheduler internals log through the application logger.
type GocronLogger struct {
	logger *slog.Logger
}

// NewGocronLogger returns a gocron.Logger backed by the given slog logger.
//
//nolint:ireturn // Interface return is required by gocron's API contract
func NewGocronLogger(log *slog.Logger) gocron.Logger {
	if log == nil {
		log = slog.Default()
	}
	return &GocronLogger{logger: log.With("component", "gocron")}
}

func (l *GocronLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

func (l *GocronLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

func (l *GocronLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *GocronLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}
