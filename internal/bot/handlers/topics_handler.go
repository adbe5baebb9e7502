package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const topicsUsage = "Usage: /topics <chat_id|@username> [topic, another topic, ...]\nWithout topics the current list is shown. Use \"none\" to clear."

// NewTopicsHandler creates a handler for the /topics command, which shows
// or replaces the topic list of a chat the invoking user owns.
func NewTopicsHandler(deps HandlerDeps) bot.HandlerFunc {
	return topicsHandler{deps}.Handle
}

type topicsHandler struct {
	deps HandlerDeps
}

func (h topicsHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "topics")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Topics handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	replyTo := update.Message.Chat.ID
	userID := update.Message.From.ID

	args := strings.Fields(update.Message.Text)
	if len(args) < 2 {
		reply(ctx, b, log, replyTo, topicsUsage)
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

	// No topic list given: show the current one.
	rest := strings.TrimSpace(strings.Join(args[2:], " "))
	if rest == "" {
		topics := chat.TopicList()
		if len(topics) == 0 {
			reply(ctx, b, log, replyTo, "No topics configured; every collected message goes into the brief.")
			return
		}
		reply(ctx, b, log, replyTo, fmt.Sprintf("Topics: %s", strings.Join(topics, ", ")))
		return
	}

	var topics []string
	if !strings.EqualFold(rest, "none") {
		topics = normalizeTopics(rest)
		if len(topics) == 0 {
			reply(ctx, b, log, replyTo, topicsUsage)
			return
		}
	}

	if err := chat.SetTopicList(topics); err != nil {
		log.ErrorContext(ctx, "Failed to encode topics", "error", err, "target_chat_id", targetID)
		reply(ctx, b, log, replyTo, "Cannot set topics.")
		return
	}
	if err := h.deps.Store.UpdateChatSettings(ctx, chat); err != nil {
		log.ErrorContext(ctx, "Failed to save topics", "error", err, "target_chat_id", targetID)
		reply(ctx, b, log, replyTo, "Storage is unavailable right now, please try again.")
		return
	}

	log.InfoContext(ctx, "Topics updated",
		"target_chat_id", targetID, "user_id", userID, "topic_count", len(topics))

	if len(topics) == 0 {
		reply(ctx, b, log, replyTo, "Cleared topics; every collected message goes into the brief.")
		return
	}
	reply(ctx, b, log, replyTo, fmt.Sprintf("Topics set: %s", strings.Join(topics, ", ")))
}
