package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const defaultBufferSize = 500

// Recorder observes the bot's update stream and keeps a bounded
// in-memory window of recent messages per chat. The Bot API delivers
// messages only while the process runs and only for chats the bot is a
// member of, so the recorder is the source of truth for "what happened
// since the last brief" rather than a backfill client.
type Recorder struct {
	logger   *slog.Logger
	capacity int

	mu      sync.RWMutex
	buffers map[int64][]Message

	bot *bot.Bot
}

// NewRecorder creates a Recorder that keeps up to capacity messages per chat.
func NewRecorder(logger *slog.Logger, capacity int) *Recorder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if capacity <= 0 {
		capacity = defaultBufferSize
	}
	return &Recorder{
		logger:   logger.With("component", "source"),
		capacity: capacity,
		buffers:  make(map[int64][]Message),
	}
}

// Bind attaches the Telegram bot the recorder listens on. The bot must
// be constructed with Handle as its default handler; Bind only wires
// the API handle used for connectivity checks.
func (r *Recorder) Bind(b *bot.Bot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bot = b
}

// Connect verifies the bound bot can reach the Telegram API.
func (r *Recorder) Connect(ctx context.Context) error {
	r.mu.RLock()
	b := r.bot
	r.mu.RUnlock()

	if b == nil {
		return fmt.Errorf("recorder is not bound to a bot")
	}

	me, err := b.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify bot identity: %w", err)
	}

	r.logger.InfoContext(ctx, "Message recorder connected", "bot_username", me.Username)
	return nil
}

// Handle is the bot's default update handler. It records message and
// channel post updates into the per-chat buffers.
func (r *Recorder) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil {
		return
	}

	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil {
		return
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	if text == "" {
		return
	}
	// Commands addressed to the bot are operator traffic, not chat content.
	if strings.HasPrefix(text, "/") {
		return
	}

	recorded := Message{
		MessageID: int64(msg.ID),
		ChatID:    msg.Chat.ID,
		ChatName:  chatDisplayName(&msg.Chat),
		Text:      text,
		Timestamp: time.Unix(int64(msg.Date), 0).UTC(),
	}
	switch {
	case msg.From != nil:
		recorded.SenderID = msg.From.ID
		recorded.SenderName = userDisplayName(msg.From)
	case msg.SenderChat != nil:
		recorded.SenderID = msg.SenderChat.ID
		recorded.SenderName = chatDisplayName(msg.SenderChat)
	}

	r.mu.Lock()
	buffer := append(r.buffers[msg.Chat.ID], recorded)
	if overflow := len(buffer) - r.capacity; overflow > 0 {
		buffer = buffer[overflow:]
	}
	r.buffers[msg.Chat.ID] = buffer
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "Recorded message",
		"chat_id", recorded.ChatID, "message_id", recorded.MessageID)
}

// GetMessages returns the buffered messages for a chat, oldest first.
// Messages before since are dropped; the boundary itself may be
// returned, so callers filter to strictly newer timestamps. A positive
// limit keeps only the newest messages.
func (r *Recorder) GetMessages(ctx context.Context, chatID int64, since *time.Time, limit int) ([]Message, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	r.mu.RLock()
	buffer := r.buffers[chatID]
	messages := make([]Message, 0, len(buffer))
	for _, msg := range buffer {
		if since != nil && msg.Timestamp.Before(*since) {
			continue
		}
		messages = append(messages, msg)
	}
	r.mu.RUnlock()

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

func userDisplayName(user *models.User) string {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name != "" {
		return name
	}
	return user.Username
}

func chatDisplayName(chat *models.Chat) string {
	if chat.Title != "" {
		return chat.Title
	}
	name := strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	if name != "" {
		return name
	}
	return chat.Username
}
