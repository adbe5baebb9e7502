// Package source provides access to the message streams of monitored chats.
package source

import (
	"context"
	"time"
)

// Message is a single message observed in a monitored chat.
type Message struct {
	MessageID  int64
	ChatID     int64
	ChatName   string
	SenderID   int64
	SenderName string
	Text       string
	Timestamp  time.Time
}

// Client reads messages from monitored chats.
type Client interface {
	// Connect verifies the client is ready to serve messages.
	Connect(ctx context.Context) error

	// GetMessages returns messages observed in the given chat, oldest
	// first. The since bound is advisory: implementations may return
	// messages at or before it, and callers filter to strictly newer
	// ones. A positive limit caps the result to the newest messages.
	GetMessages(ctx context.Context, chatID int64, since *time.Time, limit int) ([]Message, error)
}
