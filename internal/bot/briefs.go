package bot

import (
	"context"
	"log/slog"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/briefbot/internal/analyzer"
	"github.com/edgard/briefbot/internal/collector"
	"github.com/edgard/briefbot/internal/config"
	"github.com/edgard/briefbot/internal/database"
)

// briefRunTimeout bounds one complete collect-analyze-deliver cycle.
const briefRunTimeout = 5 * time.Minute

// Briefer executes one brief delivery end to end: a final collection pass
// over the owner's chats, analysis of everything pending, and delivery of
// the rendered brief to the owner's private chat.
type Briefer struct {
	logger    *slog.Logger
	cfg       *config.Config
	store     database.Store
	collector *collector.Collector
	analyzer  *analyzer.Analyzer
	tgBot     *tgbot.Bot
}

// NewBriefer wires a Briefer from its collaborators.
func NewBriefer(
	logger *slog.Logger,
	cfg *config.Config,
	store database.Store,
	col *collector.Collector,
	an *analyzer.Analyzer,
	tgBot *tgbot.Bot,
) *Briefer {
	return &Briefer{
		logger:    logger.With("component", "briefer"),
		cfg:       cfg,
		store:     store,
		collector: col,
		analyzer:  an,
		tgBot:     tgBot,
	}
}

// SendBrief runs the pipeline for the chat whose delivery time fired. All
// failure modes are terminal for this invocation and logged; the next
// scheduled time retries from scratch.
func (br *Briefer) SendBrief(ctx context.Context, chatID int64) {
	ctx, cancel := context.WithTimeout(ctx, briefRunTimeout)
	defer cancel()

	log := br.logger.With("chat_id", chatID)

	chat, err := br.store.GetChatSettings(ctx, chatID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load chat settings for brief", "error", err)
		return
	}
	if chat == nil || !chat.Active {
		log.WarnContext(ctx, "Brief fired for unknown or inactive chat, skipping")
		return
	}
	if !chat.OwnerUserID.Valid {
		log.InfoContext(ctx, "Chat has no owner yet, skipping brief")
		return
	}
	ownerID := chat.OwnerUserID.Int64
	log = log.With("owner_user_id", ownerID)

	// Final collection pass so the brief covers messages up to this moment.
	// The analysis still proceeds on whatever is already stored if it fails.
	since, err := br.store.GetLastBriefTime(ctx, ownerID)
	if err != nil {
		log.WarnContext(ctx, "Failed to load last brief time, collecting without a lower bound", "error", err)
		since = nil
	}
	if _, err := br.collector.CollectFromAllMonitored(ctx, ownerID, since); err != nil {
		log.WarnContext(ctx, "Pre-brief collection failed, analyzing stored messages only", "error", err)
	}

	result, err := br.analyzer.AnalyzeForUser(ctx, ownerID, nil)
	if err != nil {
		log.ErrorContext(ctx, "Brief analysis aborted", "error", err)
		return
	}
	if !result.Success {
		log.WarnContext(ctx, "Brief analysis did not complete", "reason", result.Error)
	}

	content := br.analyzer.GenerateBriefContent(result, chatLocation(chat))
	if _, err := br.tgBot.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: ownerID, Text: content}); err != nil {
		log.ErrorContext(ctx, "Failed to deliver brief", "error", err)
		return
	}

	log.InfoContext(ctx, "Brief delivered",
		"message_count", result.MessageCount, "relevant_count", result.RelevantCount)
}

// chatLocation resolves the chat's timezone, falling back to UTC for
// empty or unknown names.
func chatLocation(chat *database.ChatSettings) *time.Location {
	if chat.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(chat.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
