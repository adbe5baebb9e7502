package handlers

import (
	"context"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// typingInterval refreshes the indicator before Telegram's roughly
// five-second expiry.
const typingInterval = 4 * time.Second

// keepTyping shows a continuous typing indicator in the chat until the
// returned stop function is called or the context ends. Failures are
// ignored; the indicator is cosmetic.
func keepTyping(ctx context.Context, b *tgbot.Bot, chatID int64) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()

		for {
			_, _ = b.SendChatAction(ctx, &tgbot.SendChatActionParams{
				ChatID: chatID,
				Action: models.ChatActionTyping,
			})
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return cancel
}
