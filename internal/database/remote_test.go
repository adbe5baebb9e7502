package database_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/edgard/briefbot/internal/config"
	"github.com/edgard/briefbot/internal/database"
)

func newRemoteStore(t *testing.T, handler http.HandlerFunc) database.Store {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := database.NewStore(config.DatabaseConfig{
		Backend:      "remote",
		RemoteURL:    server.URL,
		RemoteAPIKey: "test-key",
		Timeout:      5 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to create remote store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close remote store: %v", err)
		}
	})
	return store
}

func TestRemoteGetChatSettings(t *testing.T) {
	t.Parallel()

	var gotPath, gotAPIKey, gotAuth string
	store := newRemoteStore(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("apikey")
		gotAuth = r.Header.Get("Authorization")

		if r.URL.Query().Get("chat_id") != "eq.42" {
			t.Errorf("unexpected chat_id filter: %q", r.URL.Query().Get("chat_id"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{
			"id": 7,
			"created_at": "2025-06-01T10:00:00+00:00",
			"updated_at": "2025-06-01T11:00:00+00:00",
			"chat_id": 42,
			"chat_name": "Infra Alerts",
			"owner_user_id": 77,
			"timezone": "Europe/Lisbon",
			"brief_times": "[\"09:00\"]",
			"topics": "[\"kubernetes\"]",
			"active": true
		}]`))
	})

	settings, err := store.GetChatSettings(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetChatSettings failed: %v", err)
	}

	if gotPath != "/chat_settings" {
		t.Errorf("expected path /chat_settings, got %q", gotPath)
	}
	if gotAPIKey != "test-key" {
		t.Errorf("expected apikey header, got %q", gotAPIKey)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("expected bearer auth header, got %q", gotAuth)
	}

	if settings == nil {
		t.Fatal("expected chat settings, got nil")
	}
	if settings.ID != 7 || settings.ChatID != 42 {
		t.Errorf("unexpected identifiers: id=%d chat_id=%d", settings.ID, settings.ChatID)
	}
	if !settings.OwnedBy(77) {
		t.Error("expected chat to be owned by user 77")
	}
	if settings.Timezone != "Europe/Lisbon" {
		t.Errorf("unexpected timezone %q", settings.Timezone)
	}
	if got := settings.TopicList(); len(got) != 1 || got[0] != "kubernetes" {
		t.Errorf("unexpected topics: %v", got)
	}
	if settings.CreatedAt.IsZero() {
		t.Error("expected created_at to be parsed")
	}
}

func TestRemoteGetChatSettingsNotFound(t *testing.T) {
	t.Parallel()

	store := newRemoteStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	settings, err := store.GetChatSettings(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetChatSettings failed: %v", err)
	}
	if settings != nil {
		t.Errorf("expected nil for missing chat, got %+v", settings)
	}
}

func TestRemoteInsertMessagesIgnoresDuplicates(t *testing.T) {
	t.Parallel()

	var gotPrefer, gotConflict string
	var gotBody []map[string]interface{}

	store := newRemoteStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		gotPrefer = r.Header.Get("Prefer")
		gotConflict = r.URL.Query().Get("on_conflict")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		// Representation contains only the row that was actually new.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"id": 11, "source_chat_id": 100, "source_message_id": 2,
			"message_text": "beta", "message_timestamp": "2025-06-01T12:01:00+00:00", "processed": false}]`))
	})

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	inserted, err := store.InsertMessages(context.Background(), []database.CollectedMessage{
		testMessage(100, 1, "alpha", base),
		testMessage(100, 2, "beta", base.Add(time.Minute)),
	})
	if err != nil {
		t.Fatalf("InsertMessages failed: %v", err)
	}

	if inserted != 1 {
		t.Errorf("expected 1 inserted message, got %d", inserted)
	}
	if !strings.Contains(gotPrefer, "resolution=ignore-duplicates") {
		t.Errorf("expected ignore-duplicates resolution, got Prefer: %q", gotPrefer)
	}
	if !strings.Contains(gotPrefer, "return=representation") {
		t.Errorf("expected representation request, got Prefer: %q", gotPrefer)
	}
	if gotConflict != "source_chat_id,source_message_id" {
		t.Errorf("unexpected on_conflict: %q", gotConflict)
	}
	if len(gotBody) != 2 {
		t.Errorf("expected 2 messages in payload, got %d", len(gotBody))
	}
}

func TestRemoteGetPendingMessages(t *testing.T) {
	t.Parallel()

	store := newRemoteStore(t, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("processed") != "is.false" {
			t.Errorf("unexpected processed filter: %q", query.Get("processed"))
		}
		if query.Get("source_chat_id") != "in.(100,200)" {
			t.Errorf("unexpected chat filter: %q", query.Get("source_chat_id"))
		}
		if query.Get("order") != "message_timestamp.asc,id.asc" {
			t.Errorf("unexpected order: %q", query.Get("order"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 1, "source_chat_id": 100, "source_message_id": 5, "message_text": "early",
			 "message_timestamp": "2025-06-01T09:00:00+00:00", "processed": false},
			{"id": 2, "source_chat_id": 200, "source_message_id": 9, "message_text": "late",
			 "message_timestamp": "2025-06-01T10:00:00+00:00", "processed": false}
		]`))
	})

	messages, err := store.GetPendingMessages(context.Background(), []int64{100, 200})
	if err != nil {
		t.Fatalf("GetPendingMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].MessageText != "early" || messages[1].MessageText != "late" {
		t.Errorf("unexpected message order: %q, %q", messages[0].MessageText, messages[1].MessageText)
	}
	want := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	if !messages[0].MessageTimestamp.Equal(want) {
		t.Errorf("expected timestamp %v, got %v", want, messages[0].MessageTimestamp)
	}
}

func TestRemoteDeleteMessagesByIDs(t *testing.T) {
	t.Parallel()

	store := newRemoteStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		if r.URL.Query().Get("id") != "in.(1,2,3)" {
			t.Errorf("unexpected id filter: %q", r.URL.Query().Get("id"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 1}, {"id": 2}]`))
	})

	deleted, err := store.DeleteMessagesByIDs(context.Background(), []uint{1, 2, 3})
	if err != nil {
		t.Fatalf("DeleteMessagesByIDs failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted)
	}
}

func TestRemoteDeleteProcessedBefore(t *testing.T) {
	t.Parallel()

	cutoff := time.Date(2025, 6, 2, 3, 30, 0, 0, time.UTC)

	store := newRemoteStore(t, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("processed") != "is.true" {
			t.Errorf("unexpected processed filter: %q", query.Get("processed"))
		}
		if query.Get("message_timestamp") != "lt.2025-06-02T03:30:00Z" {
			t.Errorf("unexpected timestamp filter: %q", query.Get("message_timestamp"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 4}, {"id": 5}, {"id": 6}]`))
	})

	deleted, err := store.DeleteProcessedBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("DeleteProcessedBefore failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("expected 3 swept, got %d", deleted)
	}
}

func TestRemoteMarkMessagesProcessed(t *testing.T) {
	t.Parallel()

	store := newRemoteStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		var patch map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			t.Errorf("failed to decode patch body: %v", err)
		}
		if patch["processed"] != true {
			t.Errorf("expected processed=true in patch, got %v", patch)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := store.MarkMessagesProcessed(context.Background(), []uint{8, 9}); err != nil {
		t.Fatalf("MarkMessagesProcessed failed: %v", err)
	}
}

func TestRemoteGetLastBriefTime(t *testing.T) {
	t.Parallel()

	store := newRemoteStore(t, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("user_id") != "eq.77" {
			t.Errorf("unexpected user filter: %q", query.Get("user_id"))
		}
		if query.Get("order") != "brief_time.desc" {
			t.Errorf("unexpected order: %q", query.Get("order"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"brief_time": "2025-06-01T18:00:00+00:00"}]`))
	})

	last, err := store.GetLastBriefTime(context.Background(), 77)
	if err != nil {
		t.Fatalf("GetLastBriefTime failed: %v", err)
	}
	if last == nil {
		t.Fatal("expected a brief time, got nil")
	}
	want := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	if !last.Equal(want) {
		t.Errorf("expected %v, got %v", want, *last)
	}
}

func TestRemoteErrorResponse(t *testing.T) {
	t.Parallel()

	store := newRemoteStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "JWT expired", "code": "PGRST301"}`))
	})

	_, err := store.GetAllActiveChats(context.Background())
	if err == nil {
		t.Fatal("expected error from unauthorized response")
	}
	if !strings.Contains(err.Error(), "JWT expired") {
		t.Errorf("expected error to carry API message, got %v", err)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("expected error to carry status code, got %v", err)
	}
}
