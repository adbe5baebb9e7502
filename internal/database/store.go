package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/briefbot/internal/config"
)

// Store defines the interface for all persistence operations: the chat
// registry, the collected-message queue, and the brief history ledger.
// Two implementations exist, one backed by local SQLite and one by a hosted
// REST store; collection and analysis code never depends on which is in use.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the backend connection.
	Ping(ctx context.Context) error

	// GetChatSettings retrieves a chat registration by chat ID. Returns nil, nil if not found.
	GetChatSettings(ctx context.Context, chatID int64) (*ChatSettings, error)

	// GetActiveChatsByOwner retrieves all active chat registrations claimed by the given user.
	GetActiveChatsByOwner(ctx context.Context, userID int64) ([]ChatSettings, error)

	// GetAllActiveChats retrieves every active chat registration.
	GetAllActiveChats(ctx context.Context) ([]ChatSettings, error)

	// CreateChatSettings inserts a new chat registration.
	CreateChatSettings(ctx context.Context, settings *ChatSettings) error

	// UpdateChatSettings persists changes to an existing registration, keyed by chat ID.
	UpdateChatSettings(ctx context.Context, settings *ChatSettings) error

	// DeactivateChat soft-deletes a registration by setting active=false. The row is kept.
	DeactivateChat(ctx context.Context, chatID int64) error

	// MessageExists reports whether a message with the given natural key has already been collected.
	MessageExists(ctx context.Context, sourceChatID, sourceMessageID int64) (bool, error)

	// InsertMessages batch-inserts collected messages, silently skipping rows whose
	// natural key already exists. Returns the number of rows actually inserted.
	InsertMessages(ctx context.Context, messages []CollectedMessage) (int64, error)

	// GetPendingMessages retrieves unprocessed messages for the given source chats,
	// ordered by message timestamp ascending. An empty chat ID set yields no rows.
	GetPendingMessages(ctx context.Context, chatIDs []int64) ([]CollectedMessage, error)

	// CountPendingMessages counts unprocessed messages for the given source chats.
	CountPendingMessages(ctx context.Context, chatIDs []int64) (int64, error)

	// MarkMessagesProcessed flags the given messages as consumed without deleting them.
	MarkMessagesProcessed(ctx context.Context, ids []uint) error

	// DeleteMessagesByIDs removes the given messages. IDs that no longer exist are
	// ignored. Returns the number of rows actually deleted.
	DeleteMessagesByIDs(ctx context.Context, ids []uint) (int64, error)

	// DeleteProcessedBefore removes processed messages older than the cutoff.
	// Returns the number of rows deleted.
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// RecordBrief appends one entry to the brief history ledger.
	RecordBrief(ctx context.Context, record *BriefRecord) error

	// GetLastBriefTime returns the time of the user's most recent brief,
	// or nil, nil if the user has never received one.
	GetLastBriefTime(ctx context.Context, userID int64) (*time.Time, error)

	// RunSQLMaintenance performs backend maintenance (VACUUM/ANALYZE for SQLite;
	// a no-op for the remote backend).
	RunSQLMaintenance(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// NewStore creates a Store for the configured backend. For the sqlite backend
// it opens the database file and applies migrations; for the remote backend it
// builds a REST client against the hosted store.
func NewStore(cfg config.DatabaseConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "sqlite":
		db, err := NewDB(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return newSqlxStore(db, logger), nil
	case "remote":
		return newRESTStore(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown database backend: %s", cfg.Backend)
	}
}
