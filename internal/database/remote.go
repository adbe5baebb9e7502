package database

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/edgard/briefbot/internal/config"
)

// restStore implements the Store interface against a hosted PostgREST
// endpoint (e.g. Supabase). All filtering happens server-side through
// PostgREST query operators; payloads travel as JSON.
type restStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// restError represents an error response from the PostgREST API.
type restError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *restError) Error() string {
	return fmt.Sprintf("remote store error (status %d): %s (code: %s)", e.Status, e.Message, e.Code)
}

// newRESTStore creates a Store backed by a remote PostgREST endpoint.
func newRESTStore(cfg config.DatabaseConfig, logger *slog.Logger) (Store, error) {
	if cfg.RemoteURL == "" {
		return nil, fmt.Errorf("remote store requires a base URL")
	}
	if cfg.RemoteAPIKey == "" {
		return nil, fmt.Errorf("remote store requires an API key")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &restStore{
		baseURL:    strings.TrimRight(cfg.RemoteURL, "/"),
		apiKey:     cfg.RemoteAPIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "store", "backend", "remote"),
	}, nil
}

// Wire representations. The REST API speaks RFC 3339 timestamps and
// nullable columns as JSON null, so these stay separate from the
// sqlx-tagged models.

type remoteChatSettings struct {
	ID          uint   `json:"id,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	ChatID      int64  `json:"chat_id"`
	ChatName    string `json:"chat_name"`
	OwnerUserID *int64 `json:"owner_user_id"`
	Timezone    string `json:"timezone"`
	BriefTimes  string `json:"brief_times"`
	Topics      string `json:"topics"`
	Active      bool   `json:"active"`
}

type remoteCollectedMessage struct {
	ID               uint   `json:"id,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
	SourceChatID     int64  `json:"source_chat_id"`
	SourceMessageID  int64  `json:"source_message_id"`
	ChatName         string `json:"chat_name"`
	SenderID         int64  `json:"sender_id"`
	SenderName       string `json:"sender_name"`
	MessageText      string `json:"message_text"`
	MessageTimestamp string `json:"message_timestamp"`
	Processed        bool   `json:"processed"`
}

type remoteBriefRecord struct {
	ID             uint   `json:"id,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
	UserID         int64  `json:"user_id"`
	BriefTime      string `json:"brief_time"`
	MessageCount   int    `json:"message_count"`
	Topics         string `json:"topics"`
	SummaryPreview string `json:"summary_preview"`
}

func (r *remoteChatSettings) toModel() ChatSettings {
	settings := ChatSettings{
		ID:         r.ID,
		CreatedAt:  parseRemoteTime(r.CreatedAt),
		UpdatedAt:  parseRemoteTime(r.UpdatedAt),
		ChatID:     r.ChatID,
		ChatName:   r.ChatName,
		Timezone:   r.Timezone,
		BriefTimes: r.BriefTimes,
		Topics:     r.Topics,
		Active:     r.Active,
	}
	if r.OwnerUserID != nil {
		settings.OwnerUserID = sql.NullInt64{Int64: *r.OwnerUserID, Valid: true}
	}
	return settings
}

func chatSettingsToRemote(settings *ChatSettings) remoteChatSettings {
	wire := remoteChatSettings{
		ChatID:     settings.ChatID,
		ChatName:   settings.ChatName,
		Timezone:   settings.Timezone,
		BriefTimes: settings.BriefTimes,
		Topics:     settings.Topics,
		Active:     settings.Active,
	}
	if settings.OwnerUserID.Valid {
		owner := settings.OwnerUserID.Int64
		wire.OwnerUserID = &owner
	}
	return wire
}

func (r *remoteCollectedMessage) toModel() CollectedMessage {
	return CollectedMessage{
		ID:               r.ID,
		CreatedAt:        parseRemoteTime(r.CreatedAt),
		SourceChatID:     r.SourceChatID,
		SourceMessageID:  r.SourceMessageID,
		ChatName:         r.ChatName,
		SenderID:         r.SenderID,
		SenderName:       r.SenderName,
		MessageText:      r.MessageText,
		MessageTimestamp: parseRemoteTime(r.MessageTimestamp),
		Processed:        r.Processed,
	}
}

func messageToRemote(message *CollectedMessage) remoteCollectedMessage {
	return remoteCollectedMessage{
		SourceChatID:     message.SourceChatID,
		SourceMessageID:  message.SourceMessageID,
		ChatName:         message.ChatName,
		SenderID:         message.SenderID,
		SenderName:       message.SenderName,
		MessageText:      message.MessageText,
		MessageTimestamp: message.MessageTimestamp.UTC().Format(time.RFC3339),
		Processed:        message.Processed,
	}
}

func parseRemoteTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

// doRequest handles the HTTP request/response cycle with proper error handling.
// A nil response discards the body; otherwise the JSON payload is decoded into it.
func (s *restStore) doRequest(ctx context.Context, method, table string, query url.Values, prefer string, body, response interface{}) error {
	req, err := s.buildRequest(ctx, method, table, query, prefer, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := restError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			return fmt.Errorf("remote store error with status %d", resp.StatusCode)
		}
		return &apiErr
	}

	if response == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// buildRequest creates a new HTTP request with PostgREST auth headers.
func (s *restStore) buildRequest(ctx context.Context, method, table string, query url.Values, prefer string, body interface{}) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	endpoint := s.baseURL + "/" + table
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	return req, nil
}

func joinInt64s(values []int64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, ",")
}

func joinUints(values []uint) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatUint(uint64(v), 10)
	}
	return strings.Join(parts, ",")
}

// Ping probes the remote endpoint with a minimal query.
func (s *restStore) Ping(ctx context.Context) error {
	query := url.Values{}
	query.Set("select", "id")
	query.Set("limit", "1")

	var rows []json.RawMessage
	if err := s.doRequest(ctx, http.MethodGet, "chat_settings", query, "", nil, &rows); err != nil {
		return fmt.Errorf("remote store ping failed: %w", err)
	}
	return nil
}

// Close releases idle connections. The remote endpoint needs no teardown.
func (s *restStore) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

func (s *restStore) GetChatSettings(ctx context.Context, chatID int64) (*ChatSettings, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("chat_id cannot be zero")
	}

	query := url.Values{}
	query.Set("chat_id", "eq."+strconv.FormatInt(chatID, 10))
	query.Set("limit", "1")

	var rows []remoteChatSettings
	if err := s.doRequest(ctx, http.MethodGet, "chat_settings", query, "", nil, &rows); err != nil {
		s.logger.ErrorContext(ctx, "Error getting chat settings", "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to get chat settings for chat %d: %w", chatID, err)
	}
	if len(rows) == 0 {
		s.logger.DebugContext(ctx, "No chat settings found", "chat_id", chatID)
		return nil, nil
	}

	settings := rows[0].toModel()
	return &settings, nil
}

func (s *restStore) GetActiveChatsByOwner(ctx context.Context, userID int64) ([]ChatSettings, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}

	query := url.Values{}
	query.Set("owner_user_id", "eq."+strconv.FormatInt(userID, 10))
	query.Set("active", "is.true")
	query.Set("order", "created_at.asc")

	var rows []remoteChatSettings
	if err := s.doRequest(ctx, http.MethodGet, "chat_settings", query, "", nil, &rows); err != nil {
		s.logger.ErrorContext(ctx, "Error getting active chats by owner", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get active chats for user %d: %w", userID, err)
	}

	chats := make([]ChatSettings, 0, len(rows))
	for i := range rows {
		chats = append(chats, rows[i].toModel())
	}
	return chats, nil
}

func (s *restStore) GetAllActiveChats(ctx context.Context) ([]ChatSettings, error) {
	query := url.Values{}
	query.Set("active", "is.true")
	query.Set("order", "created_at.asc")

	var rows []remoteChatSettings
	if err := s.doRequest(ctx, http.MethodGet, "chat_settings", query, "", nil, &rows); err != nil {
		s.logger.ErrorContext(ctx, "Error getting all active chats", "error", err)
		return nil, fmt.Errorf("failed to get all active chats: %w", err)
	}

	chats := make([]ChatSettings, 0, len(rows))
	for i := range rows {
		chats = append(chats, rows[i].toModel())
	}
	return chats, nil
}

func (s *restStore) CreateChatSettings(ctx context.Context, settings *ChatSettings) error {
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

	var rows []remoteChatSettings
	err := s.doRequest(ctx, http.MethodPost, "chat_settings", nil,
		"return=representation", []remoteChatSettings{chatSettingsToRemote(settings)}, &rows)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating chat settings", "chat_id", settings.ChatID, "error", err)
		return fmt.Errorf("failed to create chat settings for chat %d: %w", settings.ChatID, err)
	}

	if len(rows) > 0 {
		settings.ID = rows[0].ID
		settings.CreatedAt = parseRemoteTime(rows[0].CreatedAt)
		settings.UpdatedAt = parseRemoteTime(rows[0].UpdatedAt)
	}

	s.logger.DebugContext(ctx, "Chat settings created successfully", "chat_id", settings.ChatID)
	return nil
}

func (s *restStore) UpdateChatSettings(ctx context.Context, settings *ChatSettings) error {
	if settings == nil {
		return fmt.Errorf("cannot update nil chat settings")
	}
	if settings.ChatID == 0 {
		return fmt.Errorf("chat settings must have a non-zero chat_id")
	}

	settings.UpdatedAt = time.Now().UTC()

	query := url.Values{}
	query.Set("chat_id", "eq."+strconv.FormatInt(settings.ChatID, 10))

	patch := chatSettingsToRemote(settings)
	patch.UpdatedAt = settings.UpdatedAt.Format(time.RFC3339)

	if err := s.doRequest(ctx, http.MethodPatch, "chat_settings", query, "", patch, nil); err != nil {
		s.logger.ErrorContext(ctx, "Error updating chat settings", "chat_id", settings.ChatID, "error", err)
		return fmt.Errorf("failed to update chat settings for chat %d: %w", settings.ChatID, err)
	}

	s.logger.DebugContext(ctx, "Chat settings updated successfully", "chat_id", settings.ChatID)
	return nil
}

func (s *restStore) DeactivateChat(ctx context.Context, chatID int64) error {
	if chatID == 0 {
		return fmt.Errorf("chat_id cannot be zero")
	}

	query := url.Values{}
	query.Set("chat_id", "eq."+strconv.FormatInt(chatID, 10))

	patch := map[string]interface{}{
		"active":     false,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.doRequest(ctx, http.MethodPatch, "chat_settings", query, "", patch, nil); err != nil {
		s.logger.ErrorContext(ctx, "Error deactivating chat", "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to deactivate chat %d: %w", chatID, err)
	}

	s.logger.InfoContext(ctx, "Deactivated chat", "chat_id", chatID)
	return nil
}

func (s *restStore) MessageExists(ctx context.Context, sourceChatID, sourceMessageID int64) (bool, error) {
	query := url.Values{}
	query.Set("source_chat_id", "eq."+strconv.FormatInt(sourceChatID, 10))
	query.Set("source_message_id", "eq."+strconv.FormatInt(sourceMessageID, 10))
	query.Set("select", "id")
	query.Set("limit", "1")

	var rows []json.RawMessage
	if err := s.doRequest(ctx, http.MethodGet, "collected_messages", query, "", nil, &rows); err != nil {
		s.logger.ErrorContext(ctx, "Error checking message existence",
			"source_chat_id", sourceChatID, "source_message_id", sourceMessageID, "error", err)
		return false, fmt.Errorf("failed to check message existence (chat %d, message %d): %w",
			sourceChatID, sourceMessageID, err)
	}

	return len(rows) > 0, nil
}

func (s *restStore) InsertMessages(ctx context.Context, messages []CollectedMessage) (int64, error) {
	if len(messages) == 0 {
		return 0, nil
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	payload := make([]remoteCollectedMessage, 0, len(messages))
	for i := range messages {
		payload = append(payload, messageToRemote(&messages[i]))
	}

	// Duplicate natural keys are dropped server-side; the representation
	// contains only the rows actually inserted.
	query := url.Values{}
	query.Set("on_conflict", "source_chat_id,source_message_id")

	var rows []remoteCollectedMessage
	err := s.doRequest(ctx, http.MethodPost, "collected_messages", query,
		"resolution=ignore-duplicates,return=representation", payload, &rows)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error inserting collected messages", "count", len(messages), "error", err)
		return 0, fmt.Errorf("failed to insert messages: %w", err)
	}

	s.logger.DebugContext(ctx, "Inserted collected messages",
		"fetched", len(messages), "inserted", len(rows))
	return int64(len(rows)), nil
}

func (s *restStore) GetPendingMessages(ctx context.Context, chatIDs []int64) ([]CollectedMessage, error) {
	if len(chatIDs) == 0 {
		return nil, nil
	}

	query := url.Values{}
	query.Set("processed", "is.false")
	query.Set("source_chat_id", "in.("+joinInt64s(chatIDs)+")")
	query.Set("order", "message_timestamp.asc,id.asc")

	var rows []remoteCollectedMessage
	if err := s.doRequest(ctx, http.MethodGet, "collected_messages", query, "", nil, &rows); err != nil {
		s.logger.ErrorContext(ctx, "Error getting pending messages", "chat_count", len(chatIDs), "error", err)
		return nil, fmt.Errorf("failed to get pending messages: %w", err)
	}

	messages := make([]CollectedMessage, 0, len(rows))
	for i := range rows {
		messages = append(messages, rows[i].toModel())
	}

	s.logger.DebugContext(ctx, "Fetched pending messages", "chat_count", len(chatIDs), "count", len(messages))
	return messages, nil
}

func (s *restStore) CountPendingMessages(ctx context.Context, chatIDs []int64) (int64, error) {
	if len(chatIDs) == 0 {
		return 0, nil
	}

	query := url.Values{}
	query.Set("processed", "is.false")
	query.Set("source_chat_id", "in.("+joinInt64s(chatIDs)+")")
	query.Set("select", "id")

	var rows []json.RawMessage
	if err := s.doRequest(ctx, http.MethodGet, "collected_messages", query, "", nil, &rows); err != nil {
		s.logger.ErrorContext(ctx, "Error counting pending messages", "error", err)
		return 0, fmt.Errorf("failed to count pending messages: %w", err)
	}

	return int64(len(rows)), nil
}

func (s *restStore) MarkMessagesProcessed(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}

	query := url.Values{}
	query.Set("id", "in.("+joinUints(ids)+")")

	patch := map[string]interface{}{"processed": true}

	if err := s.doRequest(ctx, http.MethodPatch, "collected_messages", query, "", patch, nil); err != nil {
		s.logger.ErrorContext(ctx, "Error marking messages as processed", "count", len(ids), "error", err)
		return fmt.Errorf("failed to mark messages as processed: %w", err)
	}

	s.logger.DebugContext(ctx, "Marked messages as processed", "count", len(ids))
	return nil
}

func (s *restStore) DeleteMessagesByIDs(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := url.Values{}
	query.Set("id", "in.("+joinUints(ids)+")")

	var rows []json.RawMessage
	err := s.doRequest(ctx, http.MethodDelete, "collected_messages", query,
		"return=representation", nil, &rows)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting messages by IDs", "count", len(ids), "error", err)
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}

	s.logger.DebugContext(ctx, "Deleted messages by IDs", "requested", len(ids), "deleted", len(rows))
	return int64(len(rows)), nil
}

func (s *restStore) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := url.Values{}
	query.Set("processed", "is.true")
	query.Set("message_timestamp", "lt."+cutoff.UTC().Format(time.RFC3339))

	var rows []json.RawMessage
	err := s.doRequest(ctx, http.MethodDelete, "collected_messages", query,
		"return=representation", nil, &rows)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting processed messages", "cutoff", cutoff, "error", err)
		return 0, fmt.Errorf("failed to delete processed messages before %s: %w", cutoff, err)
	}

	deleted := int64(len(rows))
	if deleted > 0 {
		s.logger.InfoContext(ctx, "Swept processed messages", "cutoff", cutoff, "deleted", deleted)
	}
	return deleted, nil
}

func (s *restStore) RecordBrief(ctx context.Context, record *BriefRecord) error {
	if record == nil {
		return fmt.Errorf("cannot record nil brief")
	}
	if record.UserID == 0 {
		return fmt.Errorf("brief record must have a non-zero user_id")
	}
	if record.BriefTime.IsZero() {
		record.BriefTime = time.Now().UTC()
	}

	payload := remoteBriefRecord{
		UserID:         record.UserID,
		BriefTime:      record.BriefTime.UTC().Format(time.RFC3339),
		MessageCount:   record.MessageCount,
		Topics:         record.Topics,
		SummaryPreview: record.SummaryPreview,
	}

	var rows []remoteBriefRecord
	err := s.doRequest(ctx, http.MethodPost, "brief_history", nil,
		"return=representation", []remoteBriefRecord{payload}, &rows)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error recording brief", "user_id", record.UserID, "error", err)
		return fmt.Errorf("failed to record brief for user %d: %w", record.UserID, err)
	}

	if len(rows) > 0 {
		record.ID = rows[0].ID
		record.CreatedAt = parseRemoteTime(rows[0].CreatedAt)
	}

	s.logger.DebugContext(ctx, "Recorded brief",
		"user_id", record.UserID, "message_count", record.MessageCount)
	return nil
}

func (s *restStore) GetLastBriefTime(ctx context.Context, userID int64) (*time.Time, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id cannot be zero")
	}

	query := url.Values{}
	query.Set("user_id", "eq."+strconv.FormatInt(userID, 10))
	query.Set("select", "brief_time")
	query.Set("order", "brief_time.desc")
	query.Set("limit", "1")

	var rows []remoteBriefRecord
	if err := s.doRequest(ctx, http.MethodGet, "brief_history", query, "", nil, &rows); err != nil {
		s.logger.ErrorContext(ctx, "Error getting last brief time", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get last brief time for user %d: %w", userID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	briefTime := parseRemoteTime(rows[0].BriefTime)
	if briefTime.IsZero() {
		return nil, fmt.Errorf("remote store returned unparseable brief_time %q", rows[0].BriefTime)
	}
	return &briefTime, nil
}

// RunSQLMaintenance is a no-op for the remote backend; the hosted
// database handles its own vacuuming.
func (s *restStore) RunSQLMaintenance(ctx context.Context) error {
	s.logger.DebugContext(ctx, "Skipping SQL maintenance for remote backend")
	return nil
}
