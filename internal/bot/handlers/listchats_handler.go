package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewListChatsHandler creates a handler for the /listchats command.
func NewListChatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return listChatsHandler{deps}.Handle
}

type listChatsHandler struct {
	deps HandlerDeps
}

func (h listChatsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "listchats")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "ListChats handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	replyTo := update.Message.Chat.ID
	userID := update.Message.From.ID

	chats, err := h.deps.Store.GetActiveChatsByOwner(ctx, userID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to list chats", "error", err, "user_id", userID)
		reply(ctx, b, log, replyTo, "Storage is unavailable right now, please try again.")
		return
	}

	if len(chats) == 0 {
		reply(ctx, b, log, replyTo, "You are not monitoring any chats yet. Use /addchat <chat_id|@username> to start.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Your monitored chats:\n")
	for i := range chats {
		sb.WriteString("\n")
		sb.WriteString(formatChatSettings(&chats[i]))
		sb.WriteString("\n")
	}
	reply(ctx, b, log, replyTo, sb.String())
}
