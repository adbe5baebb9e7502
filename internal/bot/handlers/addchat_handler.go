package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/briefbot/internal/database"
)

const addChatUsage = "Usage: /addchat <chat_id|@username> [tz=Area/City] [times=09:00,18:00] [topics=a,b,c]"

// NewAddChatHandler creates a handler for the /addchat command, which
// registers a chat for monitoring and claims it for the invoking user.
func NewAddChatHandler(deps HandlerDeps) bot.HandlerFunc {
	return addChatHandler{deps}.Handle
}

type addChatHandler struct {
	deps HandlerDeps
}

func (h addChatHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "addchat")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "AddChat handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	replyTo := update.Message.Chat.ID
	userID := update.Message.From.ID

	kv, positional := parseKeyValueArgs(strings.Fields(update.Message.Text)[1:])
	if len(positional) != 1 {
		reply(ctx, b, log, replyTo, addChatUsage)
		return
	}

	targetID, title, err := resolveChatRef(ctx, b, positional[0])
	if err != nil {
		log.WarnContext(ctx, "Failed to resolve chat reference", "ref", positional[0], "error", err)
		reply(ctx, b, log, replyTo, fmt.Sprintf("Cannot use %q: %v", positional[0], err))
		return
	}

	chat, err := h.deps.Store.GetChatSettings(ctx, targetID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load chat settings", "error", err, "target_chat_id", targetID)
		reply(ctx, b, log, replyTo, "Storage is unavailable right now, please try again.")
		return
	}

	isNew := chat == nil
	if isNew {
		chat = newChatSettings(h.deps, targetID, title, userID)
	} else {
		if chat.OwnerUserID.Valid && !chat.OwnedBy(userID) {
			reply(ctx, b, log, replyTo, "That chat is already managed by another user.")
			return
		}
		// Re-registering reclaims and reactivates the existing row.
		chat.OwnerUserID = sql.NullInt64{Int64: userID, Valid: true}
		chat.Active = true
		if title != "" {
			chat.ChatName = title
		}
	}

	if msg := applyChatOptions(chat, kv); msg != "" {
		reply(ctx, b, log, replyTo, msg)
		return
	}

	if isNew {
		err = h.deps.Store.CreateChatSettings(ctx, chat)
	} else {
		err = h.deps.Store.UpdateChatSettings(ctx, chat)
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to save chat settings", "error", err, "target_chat_id", targetID)
		reply(ctx, b, log, replyTo, "Storage is unavailable right now, please try again.")
		return
	}

	if err := h.deps.Briefs.ScheduleChatBriefs(chat); err != nil {
		log.ErrorContext(ctx, "Failed to schedule briefs for chat", "error", err, "target_chat_id", targetID)
		reply(ctx, b, log, replyTo,
			fmt.Sprintf("Chat registered, but scheduling its briefs failed: %v\nFix the settings with /editchat.", err))
		return
	}

	log.InfoContext(ctx, "Chat registered",
		"target_chat_id", targetID, "user_id", userID, "new", isNew)

	verb := "Registered"
	if !isNew {
		verb = "Updated"
	}
	reply(ctx, b, log, replyTo, fmt.Sprintf("%s chat.\n\n%s", verb, formatChatSettings(chat)))
}

// newChatSettings builds a fresh registration with configured defaults.
func newChatSettings(deps HandlerDeps, chatID int64, title string, ownerID int64) *database.ChatSettings {
	chat := &database.ChatSettings{
		ChatID:      chatID,
		ChatName:    title,
		OwnerUserID: sql.NullInt64{Int64: ownerID, Valid: true},
		Timezone:    deps.Config.Briefs.DefaultTimezone,
		Active:      true,
	}
	// Defaults come from validated configuration; encoding cannot fail.
	_ = chat.SetBriefTimeList(deps.Config.Briefs.DefaultTimes)
	_ = chat.SetTopicList(nil)
	return chat
}
