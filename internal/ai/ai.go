// Package ai implements relevance filtering and summarization of collected
// messages over the supported model backends.
package ai

import (
	"context"
	"errors"

	"github.com/edgard/briefbot/internal/database"
)

// NeutralRelevanceScore is assigned when messages pass through without a
// model judgment (empty topic list, or fail-open after a bad response).
const NeutralRelevanceScore = 5

// ErrMalformedResponse indicates the model returned something that could not
// be interpreted as a filter judgment. Callers decide the fallback policy.
var ErrMalformedResponse = errors.New("malformed model response")

// RelevantMessage is a collected message the model judged relevant,
// together with its score and the topic it matched.
type RelevantMessage struct {
	Message        database.CollectedMessage
	RelevanceScore int
	MatchedTopic   string
}

// Client defines the model operations used by the analysis pipeline.
type Client interface {
	// FilterByTopics judges each message against the topic list and returns
	// the relevant subset with scores. An empty topic list passes every
	// message through with a neutral score and no API call.
	FilterByTopics(ctx context.Context, messages []database.CollectedMessage, topics []string) ([]RelevantMessage, error)

	// Summarize produces prose covering the relevant messages, grouped by
	// matched topic, truncated to maxLength characters.
	Summarize(ctx context.Context, relevant []RelevantMessage, topics []string, maxLength int) (string, error)
}

// AllRelevant wraps every message as relevant with a neutral score. It backs
// the empty-topic passthrough and the fail-open path after a malformed
// filter response.
func AllRelevant(messages []database.CollectedMessage, topic string) []RelevantMessage {
	relevant := make([]RelevantMessage, 0, len(messages))
	for _, msg := range messages {
		relevant = append(relevant, RelevantMessage{
			Message:        msg,
			RelevanceScore: NeutralRelevanceScore,
			MatchedTopic:   topic,
		})
	}
	return relevant
}
