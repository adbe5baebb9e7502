package bot

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/edgard/briefbot/internal/config"
	"github.com/edgard/briefbot/internal/database"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewScheduler(logger, &config.SchedulerConfig{}, nil, func(context.Context, int64) {})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	t.Cleanup(func() {
		_ = s.scheduler.Shutdown()
	})
	return s
}

func briefChat(t *testing.T, chatID int64, timezone string, times []string) *database.ChatSettings {
	t.Helper()

	chat := &database.ChatSettings{ChatID: chatID, Timezone: timezone, Active: true}
	if err := chat.SetBriefTimeList(times); err != nil {
		t.Fatalf("SetBriefTimeList() error = %v", err)
	}
	return chat
}

func TestBriefCronSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		briefTime string
		timezone  string
		want      string
		wantErr   bool
	}{
		{"morning lisbon", "09:00", "Europe/Lisbon", "CRON_TZ=Europe/Lisbon 0 9 * * *", false},
		{"evening utc", "18:30", "UTC", "CRON_TZ=UTC 30 18 * * *", false},
		{"after midnight", "00:05", "America/Sao_Paulo", "CRON_TZ=America/Sao_Paulo 5 0 * * *", false},
		{"end of day", "23:59", "Asia/Tokyo", "CRON_TZ=Asia/Tokyo 59 23 * * *", false},
		{"twelve hour form", "9am", "UTC", "", true},
		{"hour out of range", "25:00", "UTC", "", true},
		{"minute out of range", "12:60", "UTC", "", true},
		{"empty", "", "UTC", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := briefCronSpec(tt.briefTime, tt.timezone)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("briefCronSpec(%q) error = nil, want error", tt.briefTime)
				}
				return
			}
			if err != nil {
				t.Fatalf("briefCronSpec(%q) error = %v", tt.briefTime, err)
			}
			if got != tt.want {
				t.Errorf("briefCronSpec(%q) = %q, want %q", tt.briefTime, got, tt.want)
			}
		})
	}
}

func TestScheduleChatBriefs(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t)

	chat := briefChat(t, 100, "UTC", []string{"09:00", "18:00"})
	if err := s.ScheduleChatBriefs(chat); err != nil {
		t.Fatalf("ScheduleChatBriefs() error = %v", err)
	}
	if got := s.BriefJobCount(); got != 2 {
		t.Errorf("BriefJobCount() = %d, want 2", got)
	}

	// Rescheduling replaces the chat's jobs instead of stacking more.
	if err := chat.SetBriefTimeList([]string{"07:30"}); err != nil {
		t.Fatalf("SetBriefTimeList() error = %v", err)
	}
	if err := s.ScheduleChatBriefs(chat); err != nil {
		t.Fatalf("ScheduleChatBriefs() error = %v", err)
	}
	if got := s.BriefJobCount(); got != 1 {
		t.Errorf("BriefJobCount() after reschedule = %d, want 1", got)
	}

	other := briefChat(t, 200, "", []string{"12:00"})
	if err := s.ScheduleChatBriefs(other); err != nil {
		t.Fatalf("ScheduleChatBriefs() error = %v", err)
	}
	if got := s.BriefJobCount(); got != 2 {
		t.Errorf("BriefJobCount() with two chats = %d, want 2", got)
	}

	s.UnscheduleChatBriefs(100)
	if got := s.BriefJobCount(); got != 1 {
		t.Errorf("BriefJobCount() after unschedule = %d, want 1", got)
	}
	s.UnscheduleChatBriefs(200)
	if got := s.BriefJobCount(); got != 0 {
		t.Errorf("BriefJobCount() after removing all = %d, want 0", got)
	}
}

func TestScheduleChatBriefsInactiveChatRemovesJobs(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t)

	chat := briefChat(t, 100, "UTC", []string{"09:00", "18:00"})
	if err := s.ScheduleChatBriefs(chat); err != nil {
		t.Fatalf("ScheduleChatBriefs() error = %v", err)
	}
	if got := s.BriefJobCount(); got != 2 {
		t.Fatalf("BriefJobCount() = %d, want 2", got)
	}

	chat.Active = false
	if err := s.ScheduleChatBriefs(chat); err != nil {
		t.Fatalf("ScheduleChatBriefs(inactive) error = %v", err)
	}
	if got := s.BriefJobCount(); got != 0 {
		t.Errorf("BriefJobCount() after deactivation = %d, want 0", got)
	}
}

func TestScheduleChatBriefsInvalidTimeInstallsNothing(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t)

	chat := briefChat(t, 100, "UTC", []string{"09:00", "9pm"})
	if err := s.ScheduleChatBriefs(chat); err == nil {
		t.Fatal("ScheduleChatBriefs() error = nil, want error for invalid time")
	}

	// All-or-nothing: the valid 09:00 job must not survive the failure.
	if got := s.BriefJobCount(); got != 0 {
		t.Errorf("BriefJobCount() after failed scheduling = %d, want 0", got)
	}
}

func TestScheduleChatBriefsNilChat(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t)

	if err := s.ScheduleChatBriefs(nil); err == nil {
		t.Fatal("ScheduleChatBriefs(nil) error = nil, want error")
	}
}
