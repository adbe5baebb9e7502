package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const settingsUsage = "Usage: /settings <chat_id|@username>"

// NewSettingsHandler creates a handler for the /settings command.
func NewSettingsHandler(deps HandlerDeps) bot.HandlerFunc {
	return settingsHandler{deps}.Handle
}

type settingsHandler struct {
	deps HandlerDeps
}

func (h settingsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "settings")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Settings handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	replyTo := update.Message.Chat.ID
	userID := update.Message.From.ID

	args := strings.Fields(update.Message.Text)
	if len(args) != 2 {
		reply(ctx, b, log, replyTo, settingsUsage)
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

	reply(ctx, b, log, replyTo, formatChatSettings(chat))
}
