package text_test

import (
	"strings"
	"testing"

	"github.com/edgard/briefbot/internal/text"
)

func TestClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text unchanged",
			input: "hello world",
			want:  "hello world",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "crlf and cr become lf",
			input: "line one\r\nline two\rline three",
			want:  "line one\nline two\nline three",
		},
		{
			name:  "control characters removed",
			input: "before\x00\x01after\x7f",
			want:  "before after",
		},
		{
			name:  "zero width space becomes visible space",
			input: "go​release",
			want:  "go release",
		},
		{
			name:  "invisible format characters stripped",
			input: "﻿deploy⁠ done­",
			want:  "deploy done",
		},
		{
			name:  "directional marks stripped",
			input: "mixed ‎text‏ here",
			want:  "mixed text here",
		},
		{
			name:  "unicode spaces become plain spaces",
			input: "a b c　d",
			want:  "a b c d",
		},
		{
			name:  "line separator becomes newline",
			input: "first second",
			want:  "first\nsecond",
		},
		{
			name:  "paragraph separator becomes blank line",
			input: "first second",
			want:  "first\n\nsecond",
		},
		{
			name:  "whitespace runs collapse within lines",
			input: "too   many\t\tspaces   here",
			want:  "too many spaces here",
		},
		{
			name:  "excess blank lines collapse",
			input: "one\n\n\n\n\ntwo",
			want:  "one\n\ntwo",
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  \n  padded  \n  ",
			want:  "padded",
		},
		{
			name:  "only invisible content yields empty",
			input: "​⁠﻿ \t\n",
			want:  "",
		},
		{
			name:  "multiline message keeps structure",
			input: "meeting at  10\r\n\r\n\r\nbring the   notes",
			want:  "meeting at 10\n\nbring the notes",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := text.Clean(tc.input)
			if got != tc.want {
				t.Errorf("Clean(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestCleanPreservesNonASCII(t *testing.T) {
	t.Parallel()

	input := "café 日本語 emoji 👍"
	got := text.Clean(input)
	if got != input {
		t.Errorf("Clean(%q) = %q, want input unchanged", input, got)
	}
}

func TestCleanLongInput(t *testing.T) {
	t.Parallel()

	input := strings.Repeat("word ", 10000)
	got := text.Clean(input)
	if !strings.HasPrefix(got, "word word") {
		t.Errorf("Clean on long input lost content: %q...", got[:20])
	}
	if strings.HasSuffix(got, " ") {
		t.Error("Clean did not trim trailing whitespace on long input")
	}
}
