package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// RegisteredHandler represents a command handler with its match settings and
// middleware. It encapsulates all information needed to register a command.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands initializes and returns a map of all available bot
// commands. Every command is private-chat only: chat management is a
// conversation between the owner and the bot, never group traffic.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)

	private := []tgbot.Middleware{PrivateOnly(deps)}

	command := func(pattern string, handler tgbot.HandlerFunc) RegisteredHandler {
		return RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     pattern,
			Handler:     handler,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
			Middleware:  private,
		}
	}

	handlers["/start"] = command("start", NewStartHandler(deps))
	handlers["/addchat"] = command("addchat", NewAddChatHandler(deps))
	handlers["/editchat"] = command("editchat", NewEditChatHandler(deps))
	handlers["/removechat"] = command("removechat", NewRemoveChatHandler(deps))
	handlers["/listchats"] = command("listchats", NewListChatsHandler(deps))
	handlers["/topics"] = command("topics", NewTopicsHandler(deps))
	handlers["/settings"] = command("settings", NewSettingsHandler(deps))
	handlers["/status"] = command("status", NewStatusHandler(deps))
	handlers["/test"] = command("test", NewTestHandler(deps))

	return handlers
}
