package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edgard/briefbot/internal/database"
)

type filterEntry struct {
	Index          int    `json:"index"`
	RelevanceScore int    `json:"relevance_score"`
	MatchedTopic   string `json:"matched_topic"`
}

// parseFilterResponse interprets the model's filter judgment. The canonical
// shape is {"results": [...]}, but a bare JSON array is accepted because
// some models ignore the wrapper. Surrounding prose or markdown fences are
// stripped by locating the JSON payload bounds. Entries referencing message
// numbers outside the batch are dropped; scores are clamped to 1-10.
func parseFilterResponse(response string, messages []database.CollectedMessage) ([]RelevantMessage, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	var entries []filterEntry

	arrayStart := strings.Index(response, "[")
	objectStart := strings.Index(response, "{")

	switch {
	case arrayStart != -1 && (objectStart == -1 || arrayStart < objectStart):
		arrayEnd := strings.LastIndex(response, "]")
		if arrayEnd <= arrayStart {
			return nil, fmt.Errorf("%w: unterminated JSON array", ErrMalformedResponse)
		}
		if err := json.Unmarshal([]byte(response[arrayStart:arrayEnd+1]), &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}

	case objectStart != -1:
		objectEnd := strings.LastIndex(response, "}")
		if objectEnd <= objectStart {
			return nil, fmt.Errorf("%w: unterminated JSON object", ErrMalformedResponse)
		}
		var wrapper struct {
			Results []filterEntry `json:"results"`
		}
		if err := json.Unmarshal([]byte(response[objectStart:objectEnd+1]), &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		if wrapper.Results == nil {
			return nil, fmt.Errorf("%w: missing results array", ErrMalformedResponse)
		}
		entries = wrapper.Results

	default:
		return nil, fmt.Errorf("%w: no JSON payload found", ErrMalformedResponse)
	}

	relevant := make([]RelevantMessage, 0, len(entries))
	for _, entry := range entries {
		// Message numbering in the prompt starts at 1.
		idx := entry.Index - 1
		if idx < 0 || idx >= len(messages) {
			continue
		}

		topic := strings.ToLower(strings.TrimSpace(entry.MatchedTopic))
		if topic == "" {
			topic = "general"
		}

		relevant = append(relevant, RelevantMessage{
			Message:        messages[idx],
			RelevanceScore: clampScore(entry.RelevanceScore),
			MatchedTopic:   topic,
		})
	}
	return relevant, nil
}

func clampScore(score int) int {
	switch {
	case score < 1:
		return 1
	case score > 10:
		return 10
	default:
		return score
	}
}

// truncateWithEllipsis bounds s to max runes, marking the cut with an
// ellipsis. A non-positive max disables truncation.
func truncateWithEllipsis(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
