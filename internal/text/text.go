// Package text normalizes chat message content before it reaches storage
// and model prompts. Telegram messages arrive with arbitrary Unicode:
// invisible format characters, exotic space variants, mixed line endings.
// Normalizing once at ingestion keeps stored text, dedup comparisons, and
// prompt assembly predictable.
package text

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// controlChars matches ASCII control characters (including DEL) with no
	// place in message text. Tab and LF are excluded; they are whitespace
	// and handled by the collapse pass.
	controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

	// excessNewlines matches runs of three or more newlines. Paragraph
	// separation survives as a single blank line.
	excessNewlines = regexp.MustCompile(`\n{3,}`)

	// unicodeReplacer strips invisible format characters and converts
	// Unicode space variants to plain spaces or newlines.
	unicodeReplacer = strings.NewReplacer(
		"⁠", "", // word joiner
		"﻿", "", // byte order mark
		"­", "", // soft hyphen
		"‎", "", // left-to-right mark
		"‏", "", // right-to-left mark
		"⁡", "", // function application
		"⁢", "", // invisible times
		"⁣", "", // invisible separator
		"⁤", "", // invisible plus
		" ", "\n", // line separator
		" ", "\n\n", // paragraph separator
		"​", " ", // zero width space
		"‌", " ", // zero width non-joiner
		" ", " ", // medium mathematical space
		" ", " ", // thin space
		" ", " ", // hair space
		" ", " ", // narrow no-break space
		"　", " ", // ideographic space
		" ", " ", // no-break space
	)
)

// Clean normalizes message content for storage: line endings become LF,
// invisible Unicode formatting disappears, control characters and space
// variants become plain spaces, whitespace runs collapse within each line,
// and runs of blank lines shrink to one. An empty result means the message
// had no visible content; callers skip those.
func Clean(input string) string {
	if input == "" {
		return ""
	}

	s := strings.ReplaceAll(input, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = unicodeReplacer.Replace(s)
	s = controlChars.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = collapseWhitespace(lines[i])
	}
	s = strings.Join(lines, "\n")
	s = excessNewlines.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

// collapseWhitespace reduces every run of whitespace within a line to a
// single space and trims the ends.
func collapseWhitespace(line string) string {
	var b strings.Builder
	b.Grow(len(line))

	inSpace := false
	for _, r := range line {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteRune(' ')
				inSpace = true
			}
			continue
		}
		b.WriteRune(r)
		inSpace = false
	}

	return strings.TrimSpace(b.String())
}
