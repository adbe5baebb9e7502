package source_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/briefbot/internal/source"
)

func newTestRecorder(capacity int) *source.Recorder {
	return source.NewRecorder(slog.New(slog.NewTextHandler(io.Discard, nil)), capacity)
}

func messageUpdate(chatID int64, messageID int, text string, timestamp time.Time) *models.Update {
	return &models.Update{
		Message: &models.Message{
			ID:   messageID,
			Date: int(timestamp.Unix()),
			Chat: models.Chat{ID: chatID, Title: "Engineering News"},
			From: &models.User{ID: 7, FirstName: "Ana", LastName: "Silva"},
			Text: text,
		},
	}
}

func TestRecorderRecordsMessages(t *testing.T) {
	t.Parallel()

	recorder := newTestRecorder(10)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	recorder.Handle(ctx, nil, messageUpdate(100, 1, "first", base))
	recorder.Handle(ctx, nil, messageUpdate(100, 2, "second", base.Add(time.Minute)))
	recorder.Handle(ctx, nil, messageUpdate(200, 9, "other chat", base))

	messages, err := recorder.GetMessages(ctx, 100, nil, 0)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages for chat 100, got %d", len(messages))
	}

	first := messages[0]
	if first.MessageID != 1 || first.ChatID != 100 {
		t.Errorf("unexpected identifiers: %+v", first)
	}
	if first.ChatName != "Engineering News" {
		t.Errorf("unexpected chat name %q", first.ChatName)
	}
	if first.SenderID != 7 || first.SenderName != "Ana Silva" {
		t.Errorf("unexpected sender mapping: id=%d name=%q", first.SenderID, first.SenderName)
	}
	if !first.Timestamp.Equal(base) {
		t.Errorf("expected timestamp %v, got %v", base, first.Timestamp)
	}
	if messages[1].Text != "second" {
		t.Errorf("expected chronological order, got %q last", messages[1].Text)
	}
}

func TestRecorderSkipsNonContent(t *testing.T) {
	t.Parallel()

	recorder := newTestRecorder(10)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// No message payload at all.
	recorder.Handle(ctx, nil, &models.Update{})
	// Empty text and no caption.
	recorder.Handle(ctx, nil, messageUpdate(100, 1, "", base))
	// Bot commands are operator traffic.
	recorder.Handle(ctx, nil, messageUpdate(100, 2, "/settings", base))

	// A caption counts as content.
	withCaption := messageUpdate(100, 3, "", base)
	withCaption.Message.Caption = "chart of the day"
	recorder.Handle(ctx, nil, withCaption)

	messages, err := recorder.GetMessages(ctx, 100, nil, 0)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected only the caption message, got %d", len(messages))
	}
	if messages[0].Text != "chart of the day" {
		t.Errorf("expected caption text, got %q", messages[0].Text)
	}
}

func TestRecorderChannelPost(t *testing.T) {
	t.Parallel()

	recorder := newTestRecorder(10)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	recorder.Handle(ctx, nil, &models.Update{
		ChannelPost: &models.Message{
			ID:         5,
			Date:       int(base.Unix()),
			Chat:       models.Chat{ID: 300, Title: "Release Feed"},
			SenderChat: &models.Chat{ID: 300, Title: "Release Feed"},
			Text:       "v2.4.0 released",
		},
	})

	messages, err := recorder.GetMessages(ctx, 300, nil, 0)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 channel post, got %d", len(messages))
	}
	if messages[0].SenderID != 300 || messages[0].SenderName != "Release Feed" {
		t.Errorf("unexpected sender mapping for channel post: %+v", messages[0])
	}
}

func TestRecorderCapacityTrimsOldest(t *testing.T) {
	t.Parallel()

	recorder := newTestRecorder(3)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 5; i++ {
		recorder.Handle(ctx, nil, messageUpdate(100, i, "msg", base.Add(time.Duration(i)*time.Minute)))
	}

	messages, err := recorder.GetMessages(ctx, 100, nil, 0)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected buffer capped at 3, got %d", len(messages))
	}
	if messages[0].MessageID != 3 || messages[2].MessageID != 5 {
		t.Errorf("expected oldest messages trimmed, got ids %d..%d",
			messages[0].MessageID, messages[2].MessageID)
	}
}

func TestRecorderSinceAndLimit(t *testing.T) {
	t.Parallel()

	recorder := newTestRecorder(10)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		recorder.Handle(ctx, nil, messageUpdate(100, i+1, "msg", base.Add(time.Duration(i)*time.Minute)))
	}

	// The boundary message may be returned; strictly-older ones are dropped.
	since := base.Add(2 * time.Minute)
	messages, err := recorder.GetMessages(ctx, 100, &since, 0)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages at or after since, got %d", len(messages))
	}
	if messages[0].MessageID != 3 {
		t.Errorf("expected boundary message first, got id %d", messages[0].MessageID)
	}

	// Limit keeps the newest messages.
	messages, err = recorder.GetMessages(ctx, 100, nil, 2)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(messages) != 2 || messages[0].MessageID != 4 || messages[1].MessageID != 5 {
		t.Errorf("expected the 2 newest messages, got %+v", messages)
	}
}

func TestRecorderConnectRequiresBinding(t *testing.T) {
	t.Parallel()

	recorder := newTestRecorder(10)

	if err := recorder.Connect(context.Background()); err == nil {
		t.Error("expected Connect to fail before a bot is bound")
	}
}

func TestRecorderGetMessagesCancelledContext(t *testing.T) {
	t.Parallel()

	recorder := newTestRecorder(10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := recorder.GetMessages(ctx, 100, nil, 0); err == nil {
		t.Error("expected error from cancelled context")
	}
}
