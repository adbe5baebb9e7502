package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/briefbot/internal/database"
)

// maxTopics bounds the per-chat topic list; anything longer dilutes the
// relevance filter into uselessness.
const maxTopics = 10

// parseKeyValueArgs splits a command tail into key=value options and
// positional arguments. Keys are lowercased; values keep their case.
func parseKeyValueArgs(tokens []string) (map[string]string, []string) {
	kv := make(map[string]string)
	var positional []string

	for _, token := range tokens {
		key, value, found := strings.Cut(token, "=")
		if found && key != "" {
			kv[strings.ToLower(key)] = value
			continue
		}
		positional = append(positional, token)
	}
	return kv, positional
}

// parseBriefTimes parses a comma-separated list of daily delivery times,
// normalizing each through the clock format so "9:05" becomes "09:05".
// Duplicates collapse; at least one valid time is required.
func parseBriefTimes(raw string) ([]string, error) {
	parts := strings.Split(raw, ",")
	times := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, err := time.Parse("15:04", part)
		if err != nil {
			return nil, fmt.Errorf("invalid time %q, expected HH:MM", part)
		}
		normalized := t.Format("15:04")
		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		times = append(times, normalized)
	}

	if len(times) == 0 {
		return nil, fmt.Errorf("no valid times given")
	}
	return times, nil
}

// normalizeTopics parses a comma-separated topic list: lowercased, trimmed,
// deduplicated, capped at maxTopics. An empty result means "no topic
// filtering".
func normalizeTopics(raw string) []string {
	parts := strings.Split(raw, ",")
	topics := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))

	for _, part := range parts {
		topic := strings.ToLower(strings.TrimSpace(part))
		if topic == "" || seen[topic] {
			continue
		}
		seen[topic] = true
		topics = append(topics, topic)
		if len(topics) == maxTopics {
			break
		}
	}
	return topics
}

// parseTimezone validates an IANA timezone name such as "Europe/Lisbon".
func parseTimezone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("timezone cannot be empty")
	}
	if _, err := time.LoadLocation(raw); err != nil {
		return "", fmt.Errorf("unknown timezone %q", raw)
	}
	return raw, nil
}

// applyChatOptions applies key=value options onto a chat's settings. It
// returns a user-facing message when a value does not parse or a key is
// unknown, and "" on success.
func applyChatOptions(chat *database.ChatSettings, kv map[string]string) string {
	for key, value := range kv {
		switch key {
		case "tz", "timezone":
			tz, err := parseTimezone(value)
			if err != nil {
				return fmt.Sprintf("Cannot set timezone: %v", err)
			}
			chat.Timezone = tz
		case "times":
			times, err := parseBriefTimes(value)
			if err != nil {
				return fmt.Sprintf("Cannot set brief times: %v", err)
			}
			if err := chat.SetBriefTimeList(times); err != nil {
				return "Cannot set brief times."
			}
		case "topics":
			if err := chat.SetTopicList(normalizeTopics(value)); err != nil {
				return "Cannot set topics."
			}
		case "name":
			chat.ChatName = value
		default:
			return fmt.Sprintf("Unknown option %q. Valid options: tz, times, topics, name.", key)
		}
	}
	return ""
}

// resolveChatRef turns a numeric chat id or a public @username into a chat
// id and display name, consulting Telegram for usernames. The name is empty
// for numeric references.
func resolveChatRef(ctx context.Context, b *tgbot.Bot, ref string) (int64, string, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id, "", nil
	}
	if !strings.HasPrefix(ref, "@") {
		return 0, "", fmt.Errorf("chat must be a numeric id or an @username")
	}

	info, err := b.GetChat(ctx, &tgbot.GetChatParams{ChatID: ref})
	if err != nil {
		return 0, "", fmt.Errorf("failed to look up %s: %w", ref, err)
	}

	title := info.Title
	if title == "" {
		title = strings.TrimPrefix(ref, "@")
	}
	return info.ID, title, nil
}

// loadOwnedChat fetches a registered chat and verifies the invoking user
// owns it. A non-empty message means the handler should reply with it and
// stop.
func loadOwnedChat(ctx context.Context, log *slog.Logger, store database.Store, chatID, userID int64) (*database.ChatSettings, string) {
	chat, err := store.GetChatSettings(ctx, chatID)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load chat settings", "error", err, "target_chat_id", chatID)
		return nil, "Storage is unavailable right now, please try again."
	}
	if chat == nil || !chat.Active {
		return nil, "That chat is not registered. Use /addchat first."
	}
	if !chat.OwnedBy(userID) {
		return nil, "That chat is managed by another user."
	}
	return chat, ""
}

// formatChatSettings renders one chat's configuration for replies.
func formatChatSettings(chat *database.ChatSettings) string {
	name := chat.ChatName
	if name == "" {
		name = "Unnamed chat"
	}

	timesStr := "none"
	if times := chat.BriefTimeList(); len(times) > 0 {
		timesStr = strings.Join(times, ", ")
	}
	topicsStr := "none (every message is kept)"
	if topics := chat.TopicList(); len(topics) > 0 {
		topicsStr = strings.Join(topics, ", ")
	}
	timezone := chat.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	return fmt.Sprintf("%s (id %d)\nBrief times: %s (%s)\nTopics: %s",
		name, chat.ChatID, timesStr, timezone, topicsStr)
}

// reply sends text back to the chat the command came from, logging
// delivery failures.
func reply(ctx context.Context, b *tgbot.Bot, log *slog.Logger, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err, "chat_id", chatID)
	}
}
