package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/briefbot/internal/database"
)

// NewStatusHandler creates a handler for the /status command, which reports
// the pipeline counters for the invoking user.
func NewStatusHandler(deps HandlerDeps) bot.HandlerFunc {
	return statusHandler{deps}.Handle
}

type statusHandler struct {
	deps HandlerDeps
}

func (h statusHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "status")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Status handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	replyTo := update.Message.Chat.ID
	userID := update.Message.From.ID

	chats, err := h.deps.Store.GetActiveChatsByOwner(ctx, userID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load chats for status", "error", err, "user_id", userID)
		reply(ctx, b, log, replyTo, "Storage is unavailable right now, please try again.")
		return
	}

	chatIDs := make([]int64, 0, len(chats))
	for i := range chats {
		chatIDs = append(chatIDs, chats[i].ChatID)
	}

	pending, err := h.deps.Store.CountPendingMessages(ctx, chatIDs)
	if err != nil {
		log.ErrorContext(ctx, "Failed to count pending messages", "error", err, "user_id", userID)
		reply(ctx, b, log, replyTo, "Storage is unavailable right now, please try again.")
		return
	}

	lastBrief, err := h.deps.Store.GetLastBriefTime(ctx, userID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load last brief time", "error", err, "user_id", userID)
		reply(ctx, b, log, replyTo, "Storage is unavailable right now, please try again.")
		return
	}

	lastBriefStr := "never"
	if lastBrief != nil {
		lastBriefStr = lastBrief.In(userLocation(chats)).Format("Mon, 02 Jan 2006 15:04 MST")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Monitored chats: %d\n", len(chats)))
	sb.WriteString(fmt.Sprintf("Pending messages: %d\n", pending))
	sb.WriteString(fmt.Sprintf("Scheduled deliveries: %d\n", h.deps.Briefs.BriefJobCount()))
	sb.WriteString(fmt.Sprintf("Last brief: %s", lastBriefStr))
	reply(ctx, b, log, replyTo, sb.String())
}

// userLocation picks the timezone of the user's first chat, the same one
// brief scheduling defaults to.
func userLocation(chats []database.ChatSettings) *time.Location {
	if len(chats) == 0 || chats[0].Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(chats[0].Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
