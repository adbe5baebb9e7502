package database

import (
	"database/sql"
	"encoding/json"
	"time"
)

// ChatSettings represents the registration of a monitored Telegram chat:
// who owns it, when and where briefs are delivered, and which topics the
// owner cares about. There is at most one row per chat; deactivated chats
// keep their row and are reactivated in place.
type ChatSettings struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	ChatID      int64         `db:"chat_id"`
	ChatName    string        `db:"chat_name"`
	OwnerUserID sql.NullInt64 `db:"owner_user_id"`
	Timezone    string        `db:"timezone"`
	BriefTimes  string        `db:"brief_times"` // JSON array of "HH:MM" strings
	Topics      string        `db:"topics"`      // JSON array of lowercase topic strings
	Active      bool          `db:"active"`
}

// BriefTimeList decodes the stored brief times. A malformed column yields an
// empty list rather than an error; callers treat it as "no times configured".
func (c *ChatSettings) BriefTimeList() []string {
	return decodeStringList(c.BriefTimes)
}

// SetBriefTimeList encodes and stores the brief times.
func (c *ChatSettings) SetBriefTimeList(times []string) error {
	encoded, err := encodeStringList(times)
	if err != nil {
		return err
	}
	c.BriefTimes = encoded
	return nil
}

// TopicList decodes the stored topic list.
func (c *ChatSettings) TopicList() []string {
	return decodeStringList(c.Topics)
}

// SetTopicList encodes and stores the topic list.
func (c *ChatSettings) SetTopicList(topics []string) error {
	encoded, err := encodeStringList(topics)
	if err != nil {
		return err
	}
	c.Topics = encoded
	return nil
}

// OwnedBy reports whether the chat has been claimed by the given user.
func (c *ChatSettings) OwnedBy(userID int64) bool {
	return c.OwnerUserID.Valid && c.OwnerUserID.Int64 == userID
}

// CollectedMessage is a raw message pulled from a source chat, pending until
// an analysis pass consumes it. The (SourceChatID, SourceMessageID) pair is
// unique, which makes re-collection idempotent.
type CollectedMessage struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	SourceChatID     int64     `db:"source_chat_id"`
	SourceMessageID  int64     `db:"source_message_id"`
	ChatName         string    `db:"chat_name"`
	SenderID         int64     `db:"sender_id"`
	SenderName       string    `db:"sender_name"`
	MessageText      string    `db:"message_text"`
	MessageTimestamp time.Time `db:"message_timestamp"`
	Processed        bool      `db:"processed"`
}

// BriefRecord is one entry in the append-only brief history ledger. Its only
// read path is "time of the user's last brief", which gates incremental
// collection.
type BriefRecord struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	UserID         int64     `db:"user_id"`
	BriefTime      time.Time `db:"brief_time"`
	MessageCount   int       `db:"message_count"`
	Topics         string    `db:"topics"` // JSON array of topic strings
	SummaryPreview string    `db:"summary_preview"`
}

// TopicList decodes the topics covered by this brief.
func (b *BriefRecord) TopicList() []string {
	return decodeStringList(b.Topics)
}

// SetTopicList encodes and stores the covered topics.
func (b *BriefRecord) SetTopicList(topics []string) error {
	encoded, err := encodeStringList(topics)
	if err != nil {
		return err
	}
	b.Topics = encoded
	return nil
}

func decodeStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}
	return list
}

func encodeStringList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	encoded, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
