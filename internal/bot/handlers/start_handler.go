package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const welcomeMessage = `I watch your group chats and send you scheduled briefs of what mattered.

Commands:
/addchat <id|@name> - register a chat for monitoring
/editchat <id|@name> key=value - change timezone, times or topics
/removechat <id|@name> - stop monitoring a chat
/listchats - show your monitored chats
/topics <id|@name> [topics] - show or set a chat's topics
/settings <id|@name> - show a chat's configuration
/status - pipeline counters and last brief time
/test - build and send a brief right now

Add me to a group first, then register it here with /addchat.`

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

// startHandler processes the /start command using injected dependencies.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	log.InfoContext(ctx, "Handling /start command",
		"chat_id", update.Message.Chat.ID, "user_id", update.Message.From.ID)

	reply(ctx, b, log, update.Message.Chat.ID, welcomeMessage)
}
