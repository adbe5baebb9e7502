package ai

import (
	"fmt"
	"strings"

	"github.com/edgard/briefbot/internal/database"
)

// Message text is truncated in prompts to keep batches inside model context
// windows; full text still reaches the user via the sample section.
const maxPromptMessageLength = 300

// Per-topic cap on messages fed to the summarizer.
const maxMessagesPerTopic = 20

// FilterInstruction is the system instruction for relevance filtering.
// It mandates the JSON wrapper object that both backends are parsed against.
const FilterInstruction = `You are the relevance filter of a personal message-briefing assistant. You receive a numbered list of chat messages and the list of topics the user cares about. Judge every message against the topics.

Return ONLY a JSON object of the form:
{"results": [{"index": <message number>, "relevance_score": <1-10>, "matched_topic": "<topic>"}]}
with one entry per relevant message. Omit irrelevant messages entirely. If nothing is relevant, return {"results": []}.

[CRITICAL]
- "index" is the message number exactly as shown in the list; numbering starts at 1.
- "relevance_score" is an integer from 1 (barely related) to 10 (directly about the topic).
- "matched_topic" must be one of the provided topics, lowercase.
- Output nothing but the JSON object: no prose, no markdown fences, no explanations.`

// SummarizeInstruction is the system instruction for brief summarization.
const SummarizeInstruction = `You are writing the summary section of a personal chat briefing. You receive relevant chat messages grouped by topic. Write a compact prose summary of what happened, most important developments first.

[CRITICAL]
- Stay under the character limit stated in the request.
- Plain text only: no markdown headers, no bullet syntax, no preamble such as "Here is your summary".
- Report concrete facts (who said what, decisions, links, dates) rather than commentary about the messages themselves.`

func formatMessageForPrompt(msg *database.CollectedMessage) string {
	sender := msg.SenderName
	if sender == "" {
		sender = fmt.Sprintf("UID %d", msg.SenderID)
	}
	return fmt.Sprintf("[%s] %s: %s",
		msg.MessageTimestamp.Format("2006-01-02 15:04"),
		sender,
		truncateWithEllipsis(msg.MessageText, maxPromptMessageLength))
}

func buildFilterPrompt(messages []database.CollectedMessage, topics []string) string {
	var sb strings.Builder
	sb.WriteString("Topics: ")
	sb.WriteString(strings.Join(topics, ", "))
	sb.WriteString("\n\nMessages:\n")
	for i := range messages {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, formatMessageForPrompt(&messages[i])))
	}
	return sb.String()
}

func buildSummaryPrompt(relevant []RelevantMessage, topics []string, maxLength int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Write a briefing of at most %d characters covering these topics: %s.\n\n",
		maxLength, strings.Join(topics, ", ")))

	// Group by matched topic, preserving first-seen order.
	order := make([]string, 0, len(topics))
	groups := make(map[string][]RelevantMessage)
	for _, rm := range relevant {
		if _, seen := groups[rm.MatchedTopic]; !seen {
			order = append(order, rm.MatchedTopic)
		}
		groups[rm.MatchedTopic] = append(groups[rm.MatchedTopic], rm)
	}

	for _, topic := range order {
		sb.WriteString(fmt.Sprintf("## %s\n", topic))
		group := groups[topic]
		if len(group) > maxMessagesPerTopic {
			group = group[:maxMessagesPerTopic]
		}
		for i := range group {
			sb.WriteString("- ")
			sb.WriteString(formatMessageForPrompt(&group[i].Message))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
