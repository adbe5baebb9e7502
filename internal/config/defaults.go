package config

import "github.com/spf13/viper"

// setDefaults registers default values for all optional configuration keys.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", false)

	// Secrets default to empty so environment-only values survive Unmarshal.
	v.SetDefault("telegram.token", "")

	v.SetDefault("database.backend", "sqlite")
	v.SetDefault("database.path", "briefbot.db")
	v.SetDefault("database.remote_url", "")
	v.SetDefault("database.remote_api_key", "")
	v.SetDefault("database.timeout", "30s")

	v.SetDefault("ai.backend", "gemini")
	v.SetDefault("ai.timeout", "2m")
	v.SetDefault("ai.max_retries", 2)
	v.SetDefault("ai.retry_delay_seconds", 2)
	v.SetDefault("ai.gemini.api_key", "")
	v.SetDefault("ai.gemini.model", "gemini-2.0-flash")
	v.SetDefault("ai.gemini.temperature", 0.3)
	v.SetDefault("ai.openai.api_key", "")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.openai.temperature", 0.3)

	v.SetDefault("collector.message_limit", 50)
	v.SetDefault("collector.buffer_size", 500)

	v.SetDefault("briefs.default_times", []string{"09:00", "18:00"})
	v.SetDefault("briefs.default_timezone", "UTC")
	v.SetDefault("briefs.max_summary_length", 2000)
	v.SetDefault("briefs.sample_size", 10)
	v.SetDefault("briefs.record_empty", false)

	v.SetDefault("retention.mode", "delete")
	v.SetDefault("retention.sweep_after_hours", 24)

	// Schedules use the six-field cron format (seconds first).
	v.SetDefault("scheduler.tasks.message_collection.schedule", "0 */10 * * * *")
	v.SetDefault("scheduler.tasks.message_collection.enabled", true)
	v.SetDefault("scheduler.tasks.retention_sweep.schedule", "0 30 3 * * *")
	v.SetDefault("scheduler.tasks.retention_sweep.enabled", true)
	v.SetDefault("scheduler.tasks.sql_maintenance.schedule", "0 0 4 * * 0")
	v.SetDefault("scheduler.tasks.sql_maintenance.enabled", true)
}
