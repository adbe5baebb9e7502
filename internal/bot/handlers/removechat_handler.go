package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const removeChatUsage = "Usage: /removechat <chat_id|@username>"

// NewRemoveChatHandler creates a handler for the /removechat command, which
// deactivates a monitored chat, removes its brief jobs, and discards its
// unanalyzed messages.
func NewRemoveChatHandler(deps HandlerDeps) bot.HandlerFunc {
	return removeChatHandler{deps}.Handle
}

type removeChatHandler struct {
	deps HandlerDeps
}

func (h removeChatHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "removechat")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "RemoveChat handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	replyTo := update.Message.Chat.ID
	userID := update.Message.From.ID

	args := strings.Fields(update.Message.Text)
	if len(args) != 2 {
		reply(ctx, b, log, replyTo, removeChatUsage)
		return
	}

	targetID, _, err := resolveChatRef(ctx, b, args[1])
	if err != nil {
		reply(ctx, b, log, replyTo, fmt.Sprintf("Cannot use %q: %v", args[1], err))
		return
	}

	chat, msg := loadOwnedChat(ctx, log, h.deps.Store, targetID, userID)
	if msg != "" {
		reply(ctx, b, log, replyTo, msg)
		return
	}

	if err := h.deps.Store.DeactivateChat(ctx, targetID); err != nil {
		log.ErrorContext(ctx, "Failed to deactivate chat", "error", err, "target_chat_id", targetID)
		reply(ctx, b, log, replyTo, "Storage is unavailable right now, please try again.")
		return
	}
	h.deps.Briefs.UnscheduleChatBriefs(targetID)

	// Pending rows of a removed chat would never be analyzed; drop them now
	// instead of leaving them for no one.
	purged := h.purgePending(ctx, log, targetID)

	log.InfoContext(ctx, "Chat removed from monitoring",
		"target_chat_id", targetID, "user_id", userID, "purged_messages", purged)

	name := chat.ChatName
	if name == "" {
		name = fmt.Sprintf("chat %d", targetID)
	}
	text := fmt.Sprintf("Stopped monitoring %s.", name)
	if purged > 0 {
		text += fmt.Sprintf(" Discarded %d unanalyzed messages.", purged)
	}
	reply(ctx, b, log, replyTo, text)
}

func (h removeChatHandler) purgePending(ctx context.Context, log *slog.Logger, chatID int64) int64 {
	pending, err := h.deps.Store.GetPendingMessages(ctx, []int64{chatID})
	if err != nil {
		log.ErrorContext(ctx, "Failed to load pending messages for removed chat", "error", err, "target_chat_id", chatID)
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	ids := make([]uint, 0, len(pending))
	for i := range pending {
		ids = append(ids, pending[i].ID)
	}
	deleted, err := h.deps.Store.DeleteMessagesByIDs(ctx, ids)
	if err != nil {
		log.ErrorContext(ctx, "Failed to purge pending messages for removed chat", "error", err, "target_chat_id", chatID)
		return 0
	}
	return deleted
}
