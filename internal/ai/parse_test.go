package ai

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/edgard/briefbot/internal/database"
)

func sampleMessages(n int) []database.CollectedMessage {
	messages := make([]database.CollectedMessage, 0, n)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		messages = append(messages, database.CollectedMessage{
			ID:               uint(i + 1),
			SourceChatID:     100,
			SourceMessageID:  int64(i + 1),
			SenderName:       "tester",
			MessageText:      "message body",
			MessageTimestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return messages
}

func TestParseFilterResponse(t *testing.T) {
	t.Parallel()

	messages := sampleMessages(3)

	tests := []struct {
		name       string
		response   string
		wantCount  int
		wantErr    bool
		wantScores []int
		wantTopics []string
	}{
		{
			name:       "wrapper object",
			response:   `{"results": [{"index": 1, "relevance_score": 8, "matched_topic": "golang"}]}`,
			wantCount:  1,
			wantScores: []int{8},
			wantTopics: []string{"golang"},
		},
		{
			name:       "bare array",
			response:   `[{"index": 2, "relevance_score": 5, "matched_topic": "devops"}]`,
			wantCount:  1,
			wantScores: []int{5},
			wantTopics: []string{"devops"},
		},
		{
			name: "markdown fenced payload",
			response: "```json\n" +
				`{"results": [{"index": 3, "relevance_score": 7, "matched_topic": "golang"}]}` +
				"\n```",
			wantCount:  1,
			wantScores: []int{7},
			wantTopics: []string{"golang"},
		},
		{
			name:       "surrounding prose",
			response:   `Here is the judgment: {"results": [{"index": 1, "relevance_score": 6, "matched_topic": "golang"}]} Hope that helps!`,
			wantCount:  1,
			wantScores: []int{6},
			wantTopics: []string{"golang"},
		},
		{
			name:      "empty results",
			response:  `{"results": []}`,
			wantCount: 0,
		},
		{
			name:       "out of range indexes skipped",
			response:   `{"results": [{"index": 0, "relevance_score": 5, "matched_topic": "a"}, {"index": 9, "relevance_score": 5, "matched_topic": "a"}, {"index": 2, "relevance_score": 5, "matched_topic": "a"}]}`,
			wantCount:  1,
			wantScores: []int{5},
			wantTopics: []string{"a"},
		},
		{
			name:       "scores clamped",
			response:   `{"results": [{"index": 1, "relevance_score": 42, "matched_topic": "a"}, {"index": 2, "relevance_score": -3, "matched_topic": "a"}]}`,
			wantCount:  2,
			wantScores: []int{10, 1},
			wantTopics: []string{"a", "a"},
		},
		{
			name:       "missing topic defaults to general",
			response:   `{"results": [{"index": 1, "relevance_score": 5, "matched_topic": ""}]}`,
			wantCount:  1,
			wantScores: []int{5},
			wantTopics: []string{"general"},
		},
		{
			name:       "topic case folded",
			response:   `{"results": [{"index": 1, "relevance_score": 5, "matched_topic": " GoLang "}]}`,
			wantCount:  1,
			wantScores: []int{5},
			wantTopics: []string{"golang"},
		},
		{
			name:     "empty response",
			response: "",
			wantErr:  true,
		},
		{
			name:     "prose without JSON",
			response: "I think the second message is about golang.",
			wantErr:  true,
		},
		{
			name:     "object without results",
			response: `{"verdict": "all irrelevant"}`,
			wantErr:  true,
		},
		{
			name:     "truncated JSON",
			response: `{"results": [{"index": 1,`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relevant, err := parseFilterResponse(tt.response, messages)

			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d results", len(relevant))
				}
				if !errors.Is(err, ErrMalformedResponse) {
					t.Errorf("expected ErrMalformedResponse, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(relevant) != tt.wantCount {
				t.Fatalf("expected %d results, got %d", tt.wantCount, len(relevant))
			}
			for i := range relevant {
				if relevant[i].RelevanceScore != tt.wantScores[i] {
					t.Errorf("result %d: expected score %d, got %d", i, tt.wantScores[i], relevant[i].RelevanceScore)
				}
				if relevant[i].MatchedTopic != tt.wantTopics[i] {
					t.Errorf("result %d: expected topic %q, got %q", i, tt.wantTopics[i], relevant[i].MatchedTopic)
				}
			}
		})
	}
}

func TestParseFilterResponseMapsIndexesToMessages(t *testing.T) {
	t.Parallel()

	messages := sampleMessages(3)

	relevant, err := parseFilterResponse(
		`{"results": [{"index": 3, "relevance_score": 9, "matched_topic": "a"}, {"index": 1, "relevance_score": 4, "matched_topic": "b"}]}`,
		messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(relevant) != 2 {
		t.Fatalf("expected 2 results, got %d", len(relevant))
	}
	if relevant[0].Message.SourceMessageID != 3 {
		t.Errorf("expected first result to map to message 3, got %d", relevant[0].Message.SourceMessageID)
	}
	if relevant[1].Message.SourceMessageID != 1 {
		t.Errorf("expected second result to map to message 1, got %d", relevant[1].Message.SourceMessageID)
	}
}

func TestTruncateWithEllipsis(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"no truncation needed", "short", 10, "short"},
		{"exact length", "12345", 5, "12345"},
		{"truncated with marker", "abcdefghij", 8, "abcde..."},
		{"zero disables truncation", "abcdefghij", 0, "abcdefghij"},
		{"tiny limit", "abcdef", 2, "ab"},
		{"multibyte runes preserved", "héllo wörld", 9, "héllo ..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateWithEllipsis(tt.input, tt.max); got != tt.want {
				t.Errorf("truncateWithEllipsis(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
		})
	}
}

func TestAllRelevant(t *testing.T) {
	t.Parallel()

	messages := sampleMessages(2)

	relevant := AllRelevant(messages, "general")
	if len(relevant) != 2 {
		t.Fatalf("expected 2 results, got %d", len(relevant))
	}
	for i := range relevant {
		if relevant[i].RelevanceScore != NeutralRelevanceScore {
			t.Errorf("result %d: expected neutral score, got %d", i, relevant[i].RelevanceScore)
		}
		if relevant[i].MatchedTopic != "general" {
			t.Errorf("result %d: expected topic general, got %q", i, relevant[i].MatchedTopic)
		}
		if relevant[i].Message.SourceMessageID != messages[i].SourceMessageID {
			t.Errorf("result %d: message order not preserved", i)
		}
	}
}

func TestBuildFilterPromptNumbersFromOne(t *testing.T) {
	t.Parallel()

	messages := sampleMessages(2)
	prompt := buildFilterPrompt(messages, []string{"golang", "devops"})

	for _, want := range []string{"Topics: golang, devops", "1. ", "2. ", "tester"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("expected prompt to contain %q, prompt:\n%s", want, prompt)
		}
	}
}

func TestBuildSummaryPromptGroupsByTopic(t *testing.T) {
	t.Parallel()

	messages := sampleMessages(3)
	relevant := []RelevantMessage{
		{Message: messages[0], RelevanceScore: 8, MatchedTopic: "golang"},
		{Message: messages[1], RelevanceScore: 6, MatchedTopic: "devops"},
		{Message: messages[2], RelevanceScore: 7, MatchedTopic: "golang"},
	}

	prompt := buildSummaryPrompt(relevant, []string{"golang", "devops"}, 2000)

	for _, want := range []string{"at most 2000 characters", "## golang", "## devops"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("expected prompt to contain %q, prompt:\n%s", want, prompt)
		}
	}

	// First-seen topic order is preserved.
	if strings.Index(prompt, "## golang") > strings.Index(prompt, "## devops") {
		t.Error("expected golang group before devops group")
	}
}
