package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const editChatUsage = "Usage: /editchat <chat_id|@username> key=value [...]\nOptions: tz=Area/City times=09:00,18:00 topics=a,b,c name=Display"

// NewEditChatHandler creates a handler for the /editchat command, which
// updates the settings of a chat the invoking user owns.
func NewEditChatHandler(deps HandlerDeps) bot.HandlerFunc {
	return editChatHandler{deps}.Handle
}

type editChatHandler struct {
	deps HandlerDeps
}

func (h editChatHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "editchat")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "EditChat handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	replyTo := update.Message.Chat.ID
	userID := update.Message.From.ID

	kv, positional := parseKeyValueArgs(strings.Fields(update.Message.Text)[1:])
	if len(positional) != 1 || len(kv) == 0 {
		reply(ctx, b, log, replyTo, editChatUsage)
		return
	}

	targetID, _, err := resolveChatRef(ctx, b, positional[0])
	if err != nil {
		reply(ctx, b, log, replyTo, fmt.Sprintf("Cannot use %q: %v", positional[0], err))
		return
	}

	chat, msg := loadOwnedChat(ctx, log, h.deps.Store, targetID, userID)
	if msg != "" {
		reply(ctx, b, log, replyTo, msg)
		return
	}

	if msg := applyChatOptions(chat, kv); msg != "" {
		reply(ctx, b, log, replyTo, msg)
		return
	}

	if err := h.deps.Store.UpdateChatSettings(ctx, chat); err != nil {
		log.ErrorContext(ctx, "Failed to update chat settings", "error", err, "target_chat_id", targetID)
		reply(ctx, b, log, replyTo, "Storage is unavailable right now, please try again.")
		return
	}

	// Delivery times or timezone may have changed; rebuild the jobs.
	if err := h.deps.Briefs.ScheduleChatBriefs(chat); err != nil {
		log.ErrorContext(ctx, "Failed to reschedule briefs for chat", "error", err, "target_chat_id", targetID)
		reply(ctx, b, log, replyTo,
			fmt.Sprintf("Settings saved, but rescheduling briefs failed: %v", err))
		return
	}

	log.InfoContext(ctx, "Chat settings updated", "target_chat_id", targetID, "user_id", userID)
	reply(ctx, b, log, replyTo, fmt.Sprintf("Updated chat.\n\n%s", formatChatSettings(chat)))
}
