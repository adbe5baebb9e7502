// Package handlers contains the Telegram command handlers for managing
// monitored chats and briefs, along with registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// PrivateOnly creates a middleware that restricts a command to private
// chats with the bot. Commands issued inside monitored group chats are
// dropped silently so the bot never turns management chatter into group
// noise.
func PrivateOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				return
			}

			if update.Message.Chat.Type != models.ChatTypePrivate {
				deps.Logger.DebugContext(ctx, "Ignoring command outside private chat",
					"chat_id", update.Message.Chat.ID,
					"user_id", update.Message.From.ID)
				return
			}

			next(ctx, bot, update)
		}
	}
}
