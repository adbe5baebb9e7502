package handlers

import (
	"context"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// testRunTimeout bounds the on-demand collect-analyze cycle.
const testRunTimeout = 5 * time.Minute

// NewTestHandler creates a handler for the /test command, which runs the
// full collection and analysis pipeline immediately and replies with the
// brief in the invoking chat. Like a scheduled run, it consumes the
// pending queue.
func NewTestHandler(deps HandlerDeps) bot.HandlerFunc {
	return testHandler{deps}.Handle
}

type testHandler struct {
	deps HandlerDeps
}

func (h testHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "test")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Test handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	replyTo := update.Message.Chat.ID
	userID := update.Message.From.ID

	ctx, cancel := context.WithTimeout(ctx, testRunTimeout)
	defer cancel()

	log.InfoContext(ctx, "Handling /test command", "user_id", userID)

	chats, err := h.deps.Store.GetActiveChatsByOwner(ctx, userID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load chats for on-demand brief", "error", err, "user_id", userID)
		reply(ctx, b, log, replyTo, "Storage is unavailable right now, please try again.")
		return
	}
	if len(chats) == 0 {
		reply(ctx, b, log, replyTo, "You are not monitoring any chats yet. Use /addchat <chat_id|@username> to start.")
		return
	}

	reply(ctx, b, log, replyTo, "Collecting and analyzing your messages, hold on...")
	stopTyping := keepTyping(ctx, b, replyTo)
	defer stopTyping()

	since, err := h.deps.Store.GetLastBriefTime(ctx, userID)
	if err != nil {
		log.WarnContext(ctx, "Failed to load last brief time, collecting without a lower bound", "error", err)
		since = nil
	}
	if _, err := h.deps.Collector.CollectFromAllMonitored(ctx, userID, since); err != nil {
		log.WarnContext(ctx, "On-demand collection failed, analyzing stored messages only", "error", err)
	}

	result, err := h.deps.Analyzer.AnalyzeForUser(ctx, userID, nil)
	if err != nil {
		log.ErrorContext(ctx, "On-demand brief analysis aborted", "error", err)
		reply(ctx, b, log, replyTo, "The brief run was interrupted, please try again.")
		return
	}

	content := h.deps.Analyzer.GenerateBriefContent(result, userLocation(chats))
	reply(ctx, b, log, replyTo, content)

	log.InfoContext(ctx, "On-demand brief delivered",
		"user_id", userID, "message_count", result.MessageCount, "relevant_count", result.RelevantCount)
}
