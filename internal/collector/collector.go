// Package collector ingests new messages from monitored chats into the
// pending queue, deduplicating against storage by natural key.
package collector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/edgard/briefbot/internal/config"
	"github.com/edgard/briefbot/internal/database"
	"github.com/edgard/briefbot/internal/source"
	"github.com/edgard/briefbot/internal/text"
)

// Collector pulls messages from the source client and persists them.
type Collector struct {
	logger *slog.Logger
	store  database.Store
	source source.Client
	limit  int
}

// New creates a Collector bounded by the configured per-chat fetch limit.
func New(store database.Store, client source.Client, cfg config.CollectorConfig, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Collector{
		logger: logger.With("component", "collector"),
		store:  store,
		source: client,
		limit:  cfg.MessageLimit,
	}
}

// CollectFromChat fetches new messages for one chat and persists them,
// returning the count actually inserted (not fetched). Source failures are
// contained: they are logged and yield zero without an error, so one broken
// chat cannot abort a sweep. Storage failures are returned.
//
// The since bound is enforced here, strictly-after, regardless of what the
// source client returned: source adapters may over-return around the
// boundary, and natural-key dedup plus this filter make fetch windows
// irrelevant to correctness.
//
// Message text is normalized before storage; messages with no visible
// content after normalization are skipped.
func (c *Collector) CollectFromChat(ctx context.Context, chat *database.ChatSettings, since *time.Time) (int64, error) {
	if chat == nil {
		return 0, fmt.Errorf("cannot collect for nil chat settings")
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	log := c.logger.With("chat_id", chat.ChatID)

	fetched, err := c.source.GetMessages(ctx, chat.ChatID, since, c.limit)
	if err != nil {
		log.WarnContext(ctx, "Failed to fetch messages from source, skipping chat", "error", err)
		return 0, nil
	}
	if len(fetched) == 0 {
		return 0, nil
	}

	batch := make([]database.CollectedMessage, 0, len(fetched))
	for _, msg := range fetched {
		body := text.Clean(msg.Text)
		if body == "" {
			continue
		}
		if since != nil && !msg.Timestamp.After(*since) {
			continue
		}

		exists, err := c.store.MessageExists(ctx, msg.ChatID, msg.MessageID)
		if err != nil {
			return 0, fmt.Errorf("failed to check message existence: %w", err)
		}
		if exists {
			continue
		}

		chatName := msg.ChatName
		if chatName == "" {
			chatName = chat.ChatName
		}

		batch = append(batch, database.CollectedMessage{
			SourceChatID:     msg.ChatID,
			SourceMessageID:  msg.MessageID,
			ChatName:         chatName,
			SenderID:         msg.SenderID,
			SenderName:       msg.SenderName,
			MessageText:      body,
			MessageTimestamp: msg.Timestamp,
		})
	}

	if len(batch) == 0 {
		log.DebugContext(ctx, "No new messages to insert", "fetched", len(fetched))
		return 0, nil
	}

	inserted, err := c.store.InsertMessages(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("failed to insert collected messages: %w", err)
	}

	log.DebugContext(ctx, "Collected messages from chat",
		"fetched", len(fetched), "accepted", len(batch), "inserted", inserted)
	return inserted, nil
}

// CollectFromAllMonitored sweeps every active chat owned by the user and
// returns the total number of messages inserted. Chats with zero new
// messages are not errors; a storage failure aborts the sweep.
func (c *Collector) CollectFromAllMonitored(ctx context.Context, userID int64, since *time.Time) (int64, error) {
	chats, err := c.store.GetActiveChatsByOwner(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve monitored chats: %w", err)
	}
	if len(chats) == 0 {
		c.logger.DebugContext(ctx, "No monitored chats for user", "user_id", userID)
		return 0, nil
	}

	var total int64
	for i := range chats {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}

		inserted, err := c.CollectFromChat(ctx, &chats[i], since)
		if err != nil {
			return total, err
		}
		total += inserted
	}

	c.logger.DebugContext(ctx, "Collection sweep finished",
		"user_id", userID, "chat_count", len(chats), "inserted", total)
	return total, nil
}
