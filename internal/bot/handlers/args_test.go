package handlers

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/edgard/briefbot/internal/config"
	"github.com/edgard/briefbot/internal/database"
)

func TestParseKeyValueArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		tokens         []string
		wantKV         map[string]string
		wantPositional []string
	}{
		{
			name:           "mixed",
			tokens:         []string{"@newschat", "tz=Europe/Lisbon", "times=09:00,18:00"},
			wantKV:         map[string]string{"tz": "Europe/Lisbon", "times": "09:00,18:00"},
			wantPositional: []string{"@newschat"},
		},
		{
			name:           "keys lowercased values kept",
			tokens:         []string{"TZ=America/Sao_Paulo", "Name=Team"},
			wantKV:         map[string]string{"tz": "America/Sao_Paulo", "name": "Team"},
			wantPositional: nil,
		},
		{
			name:           "positional only",
			tokens:         []string{"-1001234", "extra"},
			wantKV:         map[string]string{},
			wantPositional: []string{"-1001234", "extra"},
		},
		{
			name:           "empty key stays positional",
			tokens:         []string{"=value"},
			wantKV:         map[string]string{},
			wantPositional: []string{"=value"},
		},
		{
			name:           "empty value allowed",
			tokens:         []string{"topics="},
			wantKV:         map[string]string{"topics": ""},
			wantPositional: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv, positional := parseKeyValueArgs(tt.tokens)
			if !reflect.DeepEqual(kv, tt.wantKV) {
				t.Errorf("kv = %v, want %v", kv, tt.wantKV)
			}
			if !reflect.DeepEqual(positional, tt.wantPositional) {
				t.Errorf("positional = %v, want %v", positional, tt.wantPositional)
			}
		})
	}
}

func TestParseBriefTimes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{"two times", "09:00,18:00", []string{"09:00", "18:00"}, false},
		{"normalizes short form", "9:05, 18:30", []string{"09:05", "18:30"}, false},
		{"deduplicates", "09:00,9:00,09:00", []string{"09:00"}, false},
		{"skips empty segments", "09:00,,18:00,", []string{"09:00", "18:00"}, false},
		{"rejects 12h form", "9am", nil, true},
		{"rejects out of range", "24:00", nil, true},
		{"rejects empty", "", nil, true},
		{"rejects separators only", ",,", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBriefTimes(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseBriefTimes(%q) error = nil, want error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseBriefTimes(%q) error = %v", tt.raw, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseBriefTimes(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeTopics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"lowercases and trims", " GoLang , Release Planning ", []string{"golang", "release planning"}},
		{"deduplicates", "go,GO,Go", []string{"go"}},
		{"drops empties", "a,,b,", []string{"a", "b"}},
		{"empty input", "", nil},
		{"caps at limit", "a,b,c,d,e,f,g,h,i,j,k,l", []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeTopics(tt.raw)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("normalizeTopics(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseTimezone(t *testing.T) {
	t.Parallel()

	if _, err := parseTimezone("UTC"); err != nil {
		t.Errorf("parseTimezone(UTC) error = %v", err)
	}
	if _, err := parseTimezone(""); err == nil {
		t.Error("parseTimezone(\"\") error = nil, want error")
	}
	if _, err := parseTimezone("Mars/Olympus"); err == nil {
		t.Error("parseTimezone(Mars/Olympus) error = nil, want error")
	}
}

func TestApplyChatOptions(t *testing.T) {
	t.Parallel()

	chat := &database.ChatSettings{ChatID: 100, Timezone: "UTC"}

	if msg := applyChatOptions(chat, map[string]string{
		"tz":     "UTC",
		"times":  "07:30,19:00",
		"topics": "Go, Infra",
		"name":   "Engineering",
	}); msg != "" {
		t.Fatalf("applyChatOptions() message = %q, want none", msg)
	}

	if chat.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC", chat.Timezone)
	}
	if got := chat.BriefTimeList(); !reflect.DeepEqual(got, []string{"07:30", "19:00"}) {
		t.Errorf("BriefTimeList() = %v", got)
	}
	if got := chat.TopicList(); !reflect.DeepEqual(got, []string{"go", "infra"}) {
		t.Errorf("TopicList() = %v", got)
	}
	if chat.ChatName != "Engineering" {
		t.Errorf("ChatName = %q, want Engineering", chat.ChatName)
	}

	if msg := applyChatOptions(chat, map[string]string{"times": "25:00"}); msg == "" {
		t.Error("applyChatOptions(times=25:00) message = \"\", want error message")
	}
	if msg := applyChatOptions(chat, map[string]string{"tz": "Nowhere/Here"}); msg == "" {
		t.Error("applyChatOptions(tz=Nowhere/Here) message = \"\", want error message")
	}
	if msg := applyChatOptions(chat, map[string]string{"color": "red"}); msg == "" {
		t.Error("applyChatOptions(color=red) message = \"\", want error message")
	}
}

func TestFormatChatSettings(t *testing.T) {
	t.Parallel()

	chat := &database.ChatSettings{ChatID: -100123, ChatName: "Engineering News", Timezone: "Europe/Lisbon"}
	if err := chat.SetBriefTimeList([]string{"09:00", "18:00"}); err != nil {
		t.Fatalf("SetBriefTimeList() error = %v", err)
	}
	if err := chat.SetTopicList([]string{"golang", "releases"}); err != nil {
		t.Fatalf("SetTopicList() error = %v", err)
	}

	got := formatChatSettings(chat)
	want := "Engineering News (id -100123)\nBrief times: 09:00, 18:00 (Europe/Lisbon)\nTopics: golang, releases"
	if got != want {
		t.Errorf("formatChatSettings() = %q, want %q", got, want)
	}

	bare := &database.ChatSettings{ChatID: 5}
	got = formatChatSettings(bare)
	want = "Unnamed chat (id 5)\nBrief times: none (UTC)\nTopics: none (every message is kept)"
	if got != want {
		t.Errorf("formatChatSettings(bare) = %q, want %q", got, want)
	}
}

func TestLoadOwnedChat(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := database.NewStore(config.DatabaseConfig{
		Backend: "sqlite",
		Path:    ":memory:",
	}, log)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()

	owned := &database.ChatSettings{ChatID: 100, ChatName: "Owned", Active: true}
	owned.OwnerUserID.Int64 = 7
	owned.OwnerUserID.Valid = true
	if err := store.CreateChatSettings(ctx, owned); err != nil {
		t.Fatalf("CreateChatSettings() error = %v", err)
	}

	dormant := &database.ChatSettings{ChatID: 200, ChatName: "Dormant", Active: true}
	dormant.OwnerUserID.Int64 = 7
	dormant.OwnerUserID.Valid = true
	if err := store.CreateChatSettings(ctx, dormant); err != nil {
		t.Fatalf("CreateChatSettings() error = %v", err)
	}
	if err := store.DeactivateChat(ctx, 200); err != nil {
		t.Fatalf("DeactivateChat() error = %v", err)
	}

	t.Run("owner gets the chat", func(t *testing.T) {
		chat, msg := loadOwnedChat(ctx, log, store, 100, 7)
		if msg != "" {
			t.Fatalf("unexpected refusal message %q", msg)
		}
		if chat == nil || chat.ChatID != 100 {
			t.Fatalf("expected chat 100, got %+v", chat)
		}
	})

	t.Run("non-owner is refused without the chat", func(t *testing.T) {
		chat, msg := loadOwnedChat(ctx, log, store, 100, 8)
		if chat != nil {
			t.Fatalf("expected no chat for non-owner, got %+v", chat)
		}
		if msg != "That chat is managed by another user." {
			t.Errorf("unexpected message %q", msg)
		}
	})

	t.Run("unregistered chat", func(t *testing.T) {
		chat, msg := loadOwnedChat(ctx, log, store, 999, 7)
		if chat != nil {
			t.Fatalf("expected no chat, got %+v", chat)
		}
		if msg != "That chat is not registered. Use /addchat first." {
			t.Errorf("unexpected message %q", msg)
		}
	})

	t.Run("deactivated chat counts as unregistered", func(t *testing.T) {
		chat, msg := loadOwnedChat(ctx, log, store, 200, 7)
		if chat != nil {
			t.Fatalf("expected no chat, got %+v", chat)
		}
		if msg != "That chat is not registered. Use /addchat first." {
			t.Errorf("unexpected message %q", msg)
		}
	})
}
