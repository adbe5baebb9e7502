package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// sqlxStore provides an implementation of the Store interface backed by
// SQLite through sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// newSqlxStore wraps a connected sqlx.DB in a Store implementation.
func newSqlxStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store", "backend", "sqlite"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection pool.
func (s *sqlxStore) Close() error {
	CloseDB(s.db)
	return nil
}

// GetChatSettings retrieves a chat registration by chat ID. Returns nil, nil if not found.
func (s *sqlxStore) GetChatSettings(ctx context.Context, chatID int64) (*ChatSettings, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("chat_id cannot be zero")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var settings ChatSettings
	query := `SELECT id, created_at, updated_at, chat_id, chat_name, owner_user_id, timezone, brief_times, topics, active
	          FROM chat_settings WHERE chat_id = ?`

	err := s.db.GetContext(ctx, &settings, query, chatID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No chat settings found", "chat_id", chatID)
		return nil, nil

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching chat settings",
			"chat_id", chatID, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting chat settings", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to get chat settings for chat %d: %w", chatID, err)
	}

	return &settings, nil
}

// GetActiveChatsByOwner retrieves all active chat registrations claimed by the given user.
func (s *sqlxStore) GetActiveChatsByOwner(ctx context.Context, userID int64) ([]ChatSettings, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var chats []ChatSettings
	query := `SELECT id, created_at, updated_at, chat_id, chat_name, owner_user_id, timezone, brief_times, topics, active
	          FROM chat_settings
	          WHERE owner_user_id = ? AND active = 1
	          ORDER BY created_at ASC`

	err := s.db.SelectContext(ctx, &chats, query, userID)

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching chats by owner",
			"user_id", userID, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting active chats by owner", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get active chats for user %d: %w", userID, err)
	}

	s.logger.DebugContext(ctx, "Fetched active chats by owner", "user_id", userID, "count", len(chats))
	return chats, nil
}

// GetAllActiveChats retrieves every active chat registration.
func (s *sqlxStore) GetAllActiveChats(ctx context.Context) ([]ChatSettings, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var chats []ChatSettings
	query := `SELECT id, created_at, updated_at, chat_id, chat_name, owner_user_id, timezone, brief_times, topics, active
	          FROM chat_settings
	          WHERE active = 1
	          ORDER BY created_at ASC`

	err := s.db.SelectContext(ctx, &chats, query)

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching active chats", "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting all active chats", "error", err)
		return nil, fmt.Errorf("failed to get all active chats: %w", err)
	}

	return chats, nil
}

// CreateChatSettings inserts a new chat registration.
func (s *sqlxStore) CreateChatSettings(ctx context.Context, settings *ChatSettings) error {
	if settings == nil {
		return fmt.Errorf("cannot create nil chat settings")
	}
	if settings.ChatID == 0 {
		return fmt.Errorf("chat settings must have a non-zero chat_id")
	}
	if settings.Timezone == "" {
		settings.Timezone = "UTC"
	}
	if settings.BriefTimes == "" {
		settings.BriefTimes = "[]"
	}
	if settings.Topics == "" {
		settings.Topics = "[]"
	}

	now := time.Now().UTC()
	settings.CreatedAt = now
	settings.UpdatedAt = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for creating chat settings",
			"chat_id", settings.ChatID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	query := `
        INSERT INTO chat_settings (chat_id, chat_name, owner_user_id, timezone, brief_times, topics, active, created_at, updated_at)
        VALUES (:chat_id, :chat_name, :owner_user_id, :timezone, :brief_times, :topics, :active, :created_at, :updated_at);
    `

	result, err := tx.NamedExecContext(ctx, query, settings)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating chat settings", "chat_id", settings.ChatID, "error", err)
		return fmt.Errorf("failed to create chat settings for chat %d: %w", settings.ChatID, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // integer overflow conversion is acceptable here
		settings.ID = uint(id)
	} else {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after creating chat settings",
			"chat_id", settings.ChatID, "error", err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "chat_id", settings.ChatID, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Chat settings created successfully", "chat_id", settings.ChatID)
	return nil
}

// UpdateChatSettings persists changes to an existing registration, keyed by chat ID.
func (s *sqlxStore) UpdateChatSettings(ctx context.Context, settings *ChatSettings) error {
	if settings == nil {
		return fmt.Errorf("cannot update nil chat settings")
	}
	if settings.ChatID == 0 {
		return fmt.Errorf("chat settings must have a non-zero chat_id")
	}

	settings.UpdatedAt = time.Now().UTC()

	query := `
        UPDATE chat_settings SET
            chat_name = :chat_name,
            owner_user_id = :owner_user_id,
            timezone = :timezone,
            brief_times = :brief_times,
            topics = :topics,
            active = :active,
            updated_at = :updated_at
        WHERE chat_id = :chat_id
    `

	result, err := s.db.NamedExecContext(ctx, query, settings)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating chat settings", "chat_id", settings.ChatID, "error", err)
		return fmt.Errorf("failed to update chat settings for chat %d: %w", settings.ChatID, err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected != 1 {
		s.logger.WarnContext(ctx, "Unexpected number of rows affected when updating chat settings",
			"chat_id", settings.ChatID, "affected", affected)
	}

	s.logger.DebugContext(ctx, "Chat settings updated successfully", "chat_id", settings.ChatID)
	return nil
}

// DeactivateChat soft-deletes a registration by setting active=false.
func (s *sqlxStore) DeactivateChat(ctx context.Context, chatID int64) error {
	if chatID == 0 {
		return fmt.Errorf("chat_id cannot be zero")
	}

	query := `UPDATE chat_settings SET active = 0, updated_at = ? WHERE chat_id = ?`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), chatID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deactivating chat", "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to deactivate chat %d: %w", chatID, err)
	}

	affected, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Deactivated chat", "chat_id", chatID, "affected", affected)
	return nil
}

// MessageExists reports whether a message with the given natural key has already been collected.
func (s *sqlxStore) MessageExists(ctx context.Context, sourceChatID, sourceMessageID int64) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	var exists int
	query := `SELECT 1 FROM collected_messages WHERE source_chat_id = ? AND source_message_id = ? LIMIT 1`

	err := s.db.GetContext(ctx, &exists, query, sourceChatID, sourceMessageID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return false, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error checking message existence",
			"source_chat_id", sourceChatID, "source_message_id", sourceMessageID, "error", err)
		return false, fmt.Errorf("failed to check message existence (chat %d, message %d): %w",
			sourceChatID, sourceMessageID, err)
	}

	return true, nil
}

// InsertMessages batch-inserts collected messages inside one transaction.
// Rows whose natural key already exists are skipped via INSERT OR IGNORE;
// the returned count reflects rows actually inserted.
func (s *sqlxStore) InsertMessages(ctx context.Context, messages []CollectedMessage) (int64, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for inserting messages", "error", err)
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	query := `
        INSERT OR IGNORE INTO collected_messages
            (source_chat_id, source_message_id, chat_name, sender_id, sender_name, message_text, message_timestamp, processed, created_at)
        VALUES
            (:source_chat_id, :source_message_id, :chat_name, :sender_id, :sender_name, :message_text, :message_timestamp, :processed, :created_at);
    `

	now := time.Now().UTC()
	var inserted int64
	for i := range messages {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}

		messages[i].CreatedAt = now
		result, err := tx.NamedExecContext(ctx, query, &messages[i])
		if err != nil {
			s.logger.ErrorContext(ctx, "Error inserting collected message",
				"source_chat_id", messages[i].SourceChatID,
				"source_message_id", messages[i].SourceMessageID, "error", err)
			return 0, fmt.Errorf("failed to insert message (chat %d, message %d): %w",
				messages[i].SourceChatID, messages[i].SourceMessageID, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			s.logger.WarnContext(ctx, "Could not get affected row count for message insert", "error", err)
			continue
		}
		inserted += affected
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit message insert transaction", "error", err)
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Inserted collected messages",
		"fetched", len(messages), "inserted", inserted)
	return inserted, nil
}

// GetPendingMessages retrieves unprocessed messages for the given source
// chats, ordered by message timestamp ascending.
func (s *sqlxStore) GetPendingMessages(ctx context.Context, chatIDs []int64) ([]CollectedMessage, error) {
	if len(chatIDs) == 0 {
		return nil, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	query, args, err := sqlx.In(`
        SELECT id, created_at, source_chat_id, source_message_id, chat_name, sender_id, sender_name, message_text, message_timestamp, processed
        FROM collected_messages
        WHERE processed = 0 AND source_chat_id IN (?)
        ORDER BY message_timestamp ASC, id ASC`, chatIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build pending messages query: %w", err)
	}

	var messages []CollectedMessage
	err = s.db.SelectContext(ctx, &messages, s.db.Rebind(query), args...)

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching pending messages", "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting pending messages", "chat_count", len(chatIDs), "error", err)
		return nil, fmt.Errorf("failed to get pending messages: %w", err)
	}

	s.logger.DebugContext(ctx, "Fetched pending messages", "chat_count", len(chatIDs), "count", len(messages))
	return messages, nil
}

// CountPendingMessages counts unprocessed messages for the given source chats.
func (s *sqlxStore) CountPendingMessages(ctx context.Context, chatIDs []int64) (int64, error) {
	if len(chatIDs) == 0 {
		return 0, nil
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	query, args, err := sqlx.In(
		`SELECT COUNT(*) FROM collected_messages WHERE processed = 0 AND source_chat_id IN (?)`, chatIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to build pending count query: %w", err)
	}

	var count int64
	if err := s.db.GetContext(ctx, &count, s.db.Rebind(query), args...); err != nil {
		s.logger.ErrorContext(ctx, "Error counting pending messages", "error", err)
		return 0, fmt.Errorf("failed to count pending messages: %w", err)
	}

	return count, nil
}

// MarkMessagesProcessed flags the given messages as consumed without deleting them.
func (s *sqlxStore) MarkMessagesProcessed(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`UPDATE collected_messages SET processed = 1 WHERE id IN (?)`, ids)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error building query for marking messages", "error", err)
		return fmt.Errorf("failed to build query for marking messages: %w", err)
	}

	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error marking messages as processed", "error", err)
		return fmt.Errorf("failed to mark messages as processed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not get affected row count", "error", err)
	} else if int(affected) != len(ids) {
		s.logger.WarnContext(ctx, "Not all messages were marked as processed",
			"requested", len(ids), "affected", affected)
	}

	s.logger.DebugContext(ctx, "Marked messages as processed", "count", len(ids))
	return nil
}

// DeleteMessagesByIDs removes the given messages. Already-deleted IDs are not errors.
func (s *sqlxStore) DeleteMessagesByIDs(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(`DELETE FROM collected_messages WHERE id IN (?)`, ids)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error building query for deleting messages", "error", err)
		return 0, fmt.Errorf("failed to build query for deleting messages: %w", err)
	}

	result, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting messages by IDs", "error", err)
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not get affected row count after delete", "error", err)
		return 0, nil
	}

	s.logger.DebugContext(ctx, "Deleted messages by IDs", "requested", len(ids), "deleted", affected)
	return affected, nil
}

// DeleteProcessedBefore removes processed messages older than the cutoff.
func (s *sqlxStore) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	query := `DELETE FROM collected_messages WHERE processed = 1 AND message_timestamp < ?`
	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting processed messages", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("failed to delete processed messages before %s: %w", cutoff, err)
	}

	affected, _ := result.RowsAffected()
	if affected > 0 {
		s.logger.InfoContext(ctx, "Swept processed messages", "cutoff", cutoff, "deleted", affected)
	}
	return affected, nil
}

// RecordBrief appends one entry to the brief history ledger.
func (s *sqlxStore) RecordBrief(ctx context.Context, record *BriefRecord) error {
	if record == nil {
		return fmt.Errorf("cannot record nil brief")
	}
	if record.UserID == 0 {
		return fmt.Errorf("brief record must have a non-zero user_id")
	}
	if record.BriefTime.IsZero() {
		record.BriefTime = time.Now().UTC()
	}
	record.CreatedAt = time.Now().UTC()

	query := `
        INSERT INTO brief_history (user_id, brief_time, message_count, topics, summary_preview, created_at)
        VALUES (:user_id, :brief_time, :message_count, :topics, :summary_preview, :created_at);
    `

	result, err := s.db.NamedExecContext(ctx, query, record)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error recording brief", "user_id", record.UserID, "error", err)
		return fmt.Errorf("failed to record brief for user %d: %w", record.UserID, err)
	}

	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // integer overflow conversion is acceptable here
		record.ID = uint(id)
	}

	s.logger.DebugContext(ctx, "Recorded brief",
		"user_id", record.UserID, "message_count", record.MessageCount)
	return nil
}

// GetLastBriefTime returns the time of the user's most recent brief, or nil, nil if none exists.
func (s *sqlxStore) GetLastBriefTime(ctx context.Context, userID int64) (*time.Time, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var briefTime time.Time
	query := `SELECT brief_time FROM brief_history WHERE user_id = ? ORDER BY brief_time DESC LIMIT 1`

	err := s.db.GetContext(ctx, &briefTime, query, userID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting last brief time", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get last brief time for user %d: %w", userID, err)
	}

	return &briefTime, nil
}

// RunSQLMaintenance executes VACUUM and ANALYZE on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM/ANALYZE)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "ANALYZE;"); err != nil {
		s.logger.ErrorContext(ctx, "Database maintenance (ANALYZE) failed", "error", err)
		return fmt.Errorf("failed to execute ANALYZE: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance completed successfully")
	return nil
}
