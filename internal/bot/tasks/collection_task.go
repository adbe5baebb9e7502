package tasks

import (
	"context"
	"fmt"
	"time"
)

// newMessageCollectionTask creates the periodic collection pass: for every
// user owning monitored chats, pull new messages since that user's last
// brief into the pending queue. Between passes the recorder only buffers in
// memory, so this pass is what makes collected messages durable.
func newMessageCollectionTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "message_collection")

	return func(ctx context.Context) error {
		startTime := time.Now()

		chats, err := deps.Store.GetAllActiveChats(ctx)
		if err != nil {
			return fmt.Errorf("failed to load active chats: %w", err)
		}

		// Claimed chats only: an unclaimed chat has no brief recipient, and
		// its buffered messages are picked up once someone claims it.
		owners := make(map[int64]bool)
		for i := range chats {
			if chats[i].OwnerUserID.Valid {
				owners[chats[i].OwnerUserID.Int64] = true
			}
		}
		if len(owners) == 0 {
			log.DebugContext(ctx, "No claimed chats, nothing to collect")
			return nil
		}

		var total int64
		var failed int
		for ownerID := range owners {
			if err := ctx.Err(); err != nil {
				return err
			}

			since, err := deps.Store.GetLastBriefTime(ctx, ownerID)
			if err != nil {
				log.WarnContext(ctx, "Failed to load last brief time, collecting without a lower bound",
					"owner_user_id", ownerID, "error", err)
				since = nil
			}

			inserted, err := deps.Collector.CollectFromAllMonitored(ctx, ownerID, since)
			total += inserted
			if err != nil {
				log.ErrorContext(ctx, "Collection failed for user", "owner_user_id", ownerID, "error", err)
				failed++
				continue
			}
		}

		log.InfoContext(ctx, "Collection pass completed",
			"users", len(owners), "failed_users", failed,
			"messages_inserted", total, "duration", time.Since(startTime))

		if failed == len(owners) {
			return fmt.Errorf("collection failed for all %d users", failed)
		}
		return nil
	}
}
