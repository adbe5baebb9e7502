// Package config provides configuration loading, validation, and management
// for the BriefBot application. It handles reading from YAML files and
// environment variables, setting default values, and validating parameters.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-telegram/bot/models"
)

// Config defines the application configuration parameters for all components
// of the BriefBot system: logging, Telegram integration, storage, AI backends,
// message collection, brief generation, retention, and scheduled tasks.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	AI        AIConfig        `mapstructure:"ai"`
	Collector CollectorConfig `mapstructure:"collector"`
	Briefs    BriefsConfig    `mapstructure:"briefs"`
	Retention RetentionConfig `mapstructure:"retention"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LoggerConfig controls log verbosity and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot token and, after startup, the bot's own identity.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`

	// BotInfo is populated at runtime via GetMe; it is not read from config.
	BotInfo *models.User `mapstructure:"-"`
}

// DatabaseConfig selects and configures the storage backend. The sqlite
// backend uses a local file; the remote backend talks to a hosted REST store.
type DatabaseConfig struct {
	Backend      string        `mapstructure:"backend" validate:"oneof=sqlite remote"`
	Path         string        `mapstructure:"path"`
	RemoteURL    string        `mapstructure:"remote_url" validate:"omitempty,url"`
	RemoteAPIKey string        `mapstructure:"remote_api_key"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"min=1s,max=5m"`
}

// AIConfig selects and configures the relevance/summarization backend.
type AIConfig struct {
	Backend           string        `mapstructure:"backend" validate:"oneof=gemini openai"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"min=1s,max=10m"`
	MaxRetries        int           `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelaySeconds int           `mapstructure:"retry_delay_seconds" validate:"min=1,max=60"`

	Gemini GeminiConfig `mapstructure:"gemini"`
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// GeminiConfig holds settings for the Google Gemini backend.
type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model" validate:"required"`
	Temperature float32 `mapstructure:"temperature" validate:"min=0,max=2"`
}

// OpenAIConfig holds settings for the OpenAI-compatible backend. BaseURL may
// point at any service speaking the OpenAI chat completions API.
type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model" validate:"required"`
	BaseURL     string  `mapstructure:"base_url" validate:"omitempty,url"`
	Temperature float32 `mapstructure:"temperature" validate:"min=0,max=2"`
}

// CollectorConfig controls message collection.
type CollectorConfig struct {
	// MessageLimit caps how many messages are fetched per chat per pass.
	MessageLimit int `mapstructure:"message_limit" validate:"min=1,max=500"`
	// BufferSize caps how many messages the in-process recorder keeps per chat.
	BufferSize int `mapstructure:"buffer_size" validate:"min=10,max=10000"`
}

// BriefsConfig controls brief generation and formatting.
type BriefsConfig struct {
	DefaultTimes     []string `mapstructure:"default_times" validate:"min=1,dive,hhmm"`
	DefaultTimezone  string   `mapstructure:"default_timezone" validate:"timezone"`
	MaxSummaryLength int      `mapstructure:"max_summary_length" validate:"min=200,max=8000"`
	SampleSize       int      `mapstructure:"sample_size" validate:"min=1,max=50"`

	// RecordEmpty controls whether a brief history entry is written when
	// an analysis pass finds no relevant messages.
	RecordEmpty bool `mapstructure:"record_empty"`
}

// RetentionConfig controls what happens to consumed messages. In "delete"
// mode consumed rows are removed immediately after analysis; in "mark" mode
// they are flagged processed and removed by the sweep task once older than
// SweepAfterHours.
type RetentionConfig struct {
	Mode            string `mapstructure:"mode" validate:"oneof=delete mark"`
	SweepAfterHours int    `mapstructure:"sweep_after_hours" validate:"min=1,max=720"`
}

// SchedulerConfig holds the background task schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig defines the schedule and enabled state for a single background task.
type TaskConfig struct {
	Schedule string `mapstructure:"schedule"`
	Enabled  bool   `mapstructure:"enabled"`
}

// Validate checks the configuration for structural and cross-field errors.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("hhmm", validateHHMM); err != nil {
		return fmt.Errorf("failed to register hhmm validation: %w", err)
	}

	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Cross-field checks validator tags cannot express cleanly.
	switch c.Database.Backend {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite backend")
		}
	case "remote":
		if c.Database.RemoteURL == "" {
			return fmt.Errorf("database.remote_url is required for the remote backend")
		}
		if c.Database.RemoteAPIKey == "" {
			return fmt.Errorf("database.remote_api_key is required for the remote backend")
		}
	}

	switch c.AI.Backend {
	case "gemini":
		if c.AI.Gemini.APIKey == "" {
			return fmt.Errorf("ai.gemini.api_key is required for the gemini backend")
		}
	case "openai":
		if c.AI.OpenAI.APIKey == "" {
			return fmt.Errorf("ai.openai.api_key is required for the openai backend")
		}
	}

	return nil
}

// validateHHMM accepts wall-clock times in 24h "HH:MM" form.
func validateHHMM(fl validator.FieldLevel) bool {
	_, err := time.Parse("15:04", fl.Field().String())
	return err == nil
}
