package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/briefbot/internal/bot/tasks"
	"github.com/edgard/briefbot/internal/config"
	"github.com/edgard/briefbot/internal/database"
	applog "github.com/edgard/briefbot/internal/logger"
)

const briefTagPrefix = "brief_"

// BriefFunc is invoked by a chat's brief jobs when a delivery time fires.
type BriefFunc func(ctx context.Context, chatID int64)

// Scheduler runs two kinds of jobs on one gocron scheduler: fixed background
// tasks from the configuration, and per-chat brief delivery jobs that come
// and go as chats are registered and removed.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	briefFn   BriefFunc
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a scheduler with the given background tasks and the
// callback used by brief delivery jobs.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc, briefFn BriefFunc) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "scheduler")

	s, err := gocron.NewScheduler(gocron.WithLogger(applog.NewGocronLogger(log)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    log,
		cfg:       cfg,
		taskMap:   taskMap,
		briefFn:   briefFn,
	}, nil
}

// Start schedules all enabled background tasks and begins ticking. Brief
// jobs may be added before or after Start; gocron accepts both.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	scheduledCount := 0
	if s.cfg != nil {
		for taskName, taskConfig := range s.cfg.Tasks {
			if !taskConfig.Enabled {
				s.logger.Info("Skipping disabled task", "task_name", taskName)
				continue
			}

			taskFunc, exists := s.taskMap[taskName]
			if !exists {
				s.logger.Warn("Scheduled task configured but not found in registry, skipping", "task_name", taskName)
				continue
			}
			if taskConfig.Schedule == "" {
				s.logger.Warn("Scheduled task enabled but has empty schedule, skipping", "task_name", taskName)
				continue
			}

			_, err := s.scheduler.NewJob(
				gocron.CronJob(taskConfig.Schedule, true),
				gocron.NewTask(
					func(ctx context.Context, name string) {
						s.logger.Info("Running scheduled task", "task_name", name)
						startTime := time.Now()
						if taskErr := taskFunc(ctx); taskErr != nil {
							s.logger.Error("Scheduled task failed", "task_name", name, "error", taskErr)
						}
						s.logger.Info("Finished scheduled task", "task_name", name, "duration", time.Since(startTime))
					},
					context.Background(),
					taskName,
				),
				gocron.WithName(taskName),
			)
			if err != nil {
				s.logger.Error("Failed to schedule task", "task_name", taskName, "schedule", taskConfig.Schedule, "error", err)
				continue
			}

			s.logger.Info("Scheduled task", "task_name", taskName, "schedule", taskConfig.Schedule)
			scheduledCount++
		}
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started", "tasks_scheduled", scheduledCount, "brief_jobs", s.briefJobCountLocked())

	return nil
}

// Stop shuts the scheduler down, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Info("Scheduler is not running, nothing to stop.")
		return nil
	}

	s.logger.Debug("Stopping scheduler, waiting for running jobs...")
	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}

	s.running = false
	return err
}

// ScheduleChatBriefs replaces the chat's brief jobs with one job per
// configured delivery time, evaluated in the chat's timezone. An inactive
// chat simply loses its jobs. Either all of the chat's jobs are installed
// or none are.
func (s *Scheduler) ScheduleChatBriefs(chat *database.ChatSettings) error {
	if chat == nil {
		return fmt.Errorf("chat settings cannot be nil")
	}

	tag := briefTag(chat.ChatID)
	s.scheduler.RemoveByTags(tag)

	if !chat.Active {
		s.logger.Info("Removed brief jobs for inactive chat", "chat_id", chat.ChatID)
		return nil
	}

	timezone := chat.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	times := chat.BriefTimeList()
	for _, briefTime := range times {
		spec, err := briefCronSpec(briefTime, timezone)
		if err != nil {
			s.scheduler.RemoveByTags(tag)
			return fmt.Errorf("invalid brief time %q: %w", briefTime, err)
		}

		_, err = s.scheduler.NewJob(
			gocron.CronJob(spec, false),
			gocron.NewTask(
				func(ctx context.Context, chatID int64) {
					s.logger.Info("Running scheduled brief", "chat_id", chatID)
					startTime := time.Now()
					s.briefFn(ctx, chatID)
					s.logger.Info("Finished scheduled brief", "chat_id", chatID, "duration", time.Since(startTime))
				},
				context.Background(),
				chat.ChatID,
			),
			gocron.WithName(fmt.Sprintf("%s%d_%s", briefTagPrefix, chat.ChatID, briefTime)),
			gocron.WithTags(tag),
		)
		if err != nil {
			s.scheduler.RemoveByTags(tag)
			return fmt.Errorf("failed to schedule brief at %s: %w", briefTime, err)
		}
	}

	s.logger.Info("Scheduled chat briefs",
		"chat_id", chat.ChatID, "times", len(times), "timezone", timezone)
	return nil
}

// UnscheduleChatBriefs drops all brief jobs for the chat.
func (s *Scheduler) UnscheduleChatBriefs(chatID int64) {
	s.scheduler.RemoveByTags(briefTag(chatID))
	s.logger.Info("Unscheduled chat briefs", "chat_id", chatID)
}

// BriefJobCount reports how many brief delivery jobs are installed.
func (s *Scheduler) BriefJobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.briefJobCountLocked()
}

func (s *Scheduler) briefJobCountLocked() int {
	count := 0
	for _, job := range s.scheduler.Jobs() {
		for _, t := range job.Tags() {
			if strings.HasPrefix(t, briefTagPrefix) {
				count++
				break
			}
		}
	}
	return count
}

func briefTag(chatID int64) string {
	return fmt.Sprintf("%s%d", briefTagPrefix, chatID)
}

// briefCronSpec builds a five-field cron expression firing once a day at the
// given wall-clock time, evaluated in the given IANA timezone.
func briefCronSpec(briefTime, timezone string) (string, error) {
	t, err := time.Parse("15:04", briefTime)
	if err != nil {
		return "", fmt.Errorf("brief time must be in HH:MM form: %w", err)
	}
	return fmt.Sprintf("CRON_TZ=%s %d %d * * *", timezone, t.Minute(), t.Hour()), nil
}
