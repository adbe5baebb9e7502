package tasks

import (
	"context"
	"fmt"
	"time"
)

// newRetentionSweepTask creates the cleanup pass that deletes processed
// messages older than the configured horizon. In "mark" retention mode
// this is what actually removes consumed rows; in "delete" mode it only
// catches strays.
func newRetentionSweepTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "retention_sweep")

	return func(ctx context.Context) error {
		startTime := time.Now()

		horizon := time.Duration(deps.Config.Retention.SweepAfterHours) * time.Hour
		cutoff := deps.Clock.Now().UTC().Add(-horizon)

		deleted, err := deps.Store.DeleteProcessedBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("retention sweep failed: %w", err)
		}

		log.InfoContext(ctx, "Retention sweep completed",
			"deleted", deleted, "cutoff", cutoff, "duration", time.Since(startTime))
		return nil
	}
}
