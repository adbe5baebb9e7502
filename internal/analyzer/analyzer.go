// Package analyzer turns a user's pending messages into a delivered brief
// and guarantees the pending queue is drained exactly once per attempt.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/edgard/briefbot/internal/ai"
	"github.com/edgard/briefbot/internal/database"
)

const (
	defaultMaxSummaryLength = 2000
	defaultSampleSize       = 10
	summaryPreviewLength    = 500
	fallbackSummaryItems    = 10
	fallbackMessageLength   = 100
)

// Options tune a single Analyzer instance.
type Options struct {
	// MaxSummaryLength bounds the model-produced summary, in characters.
	MaxSummaryLength int
	// SampleSize caps the relevant messages echoed back in the result.
	SampleSize int
	// RecordEmptyBriefs writes a history entry even when nothing was
	// relevant (or nothing was pending), advancing the collection window.
	RecordEmptyBriefs bool
	// MarkInsteadOfDelete flags consumed messages as processed and leaves
	// removal to the retention sweep, instead of deleting immediately.
	MarkInsteadOfDelete bool
}

// Result is the outcome of one analysis pass. Success covers degraded
// outcomes (summary fallback); Error is set only when the pass could not
// complete.
type Result struct {
	Success       bool
	Error         string
	Summary       string
	MessageCount  int
	RelevantCount int
	Topics        []string
	Sample        []ai.RelevantMessage
}

// Analyzer orchestrates read-pending, filter, summarize, drain, record.
type Analyzer struct {
	logger *slog.Logger
	store  database.Store
	ai     ai.Client
	clock  clockwork.Clock
	opts   Options
}

// New creates an Analyzer. Zero option values fall back to defaults.
func New(store database.Store, aiClient ai.Client, clock clockwork.Clock, opts Options, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.MaxSummaryLength <= 0 {
		opts.MaxSummaryLength = defaultMaxSummaryLength
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = defaultSampleSize
	}
	return &Analyzer{
		logger: logger.With("component", "analyzer"),
		store:  store,
		ai:     aiClient,
		clock:  clock,
		opts:   opts,
	}
}

// AnalyzeForUser consumes the user's pending messages and produces a brief
// result. When topics is nil, the topics configured on the user's first
// chat apply.
//
// Every message read in this pass is drained exactly once: the id set is
// captured at read time and deletion targets exactly that set, whatever the
// relevance outcome or downstream failures. A context cancellation aborts
// the pass before the drain with pending rows untouched, and is the only
// condition reported as an error rather than a Result.
func (a *Analyzer) AnalyzeForUser(ctx context.Context, userID int64, topics []string) (*Result, error) {
	log := a.logger.With("user_id", userID)

	// Step 1: resolve scope.
	chats, err := a.store.GetActiveChatsByOwner(ctx, userID)
	if err != nil {
		if isContextErr(err) {
			return nil, err
		}
		return failure(fmt.Sprintf("failed to load monitored chats: %v", err)), nil
	}
	if len(chats) == 0 {
		return failure("no monitored chats"), nil
	}

	chatIDs := make([]int64, 0, len(chats))
	for i := range chats {
		chatIDs = append(chatIDs, chats[i].ChatID)
	}
	if topics == nil {
		topics = chats[0].TopicList()
	}

	// Step 2: read pending and capture the id set. This set is the unit of
	// cleanup for the rest of the pass.
	pending, err := a.store.GetPendingMessages(ctx, chatIDs)
	if err != nil {
		if isContextErr(err) {
			return nil, err
		}
		return failure(fmt.Sprintf("failed to read pending messages: %v", err)), nil
	}
	if len(pending) == 0 {
		log.InfoContext(ctx, "No pending messages for brief")
		result := &Result{
			Success: true,
			Summary: "No new messages since last brief.",
			Topics:  topics,
		}
		a.maybeRecordEmpty(ctx, log, userID, topics, result.Summary)
		return result, nil
	}

	ids := make([]uint, 0, len(pending))
	for i := range pending {
		ids = append(ids, pending[i].ID)
	}
	messageCount := len(pending)

	// Step 3: filter. An empty topic list passes everything through with a
	// neutral score and no model call. A filter failure of any kind fails
	// open: user content is never dropped because a judgment was unreadable.
	var relevant []ai.RelevantMessage
	if len(topics) == 0 {
		log.DebugContext(ctx, "No topics configured, treating all messages as relevant")
		relevant = ai.AllRelevant(pending, "general")
	} else {
		relevant, err = a.ai.FilterByTopics(ctx, pending, topics)
		if err != nil {
			if isContextErr(err) {
				return nil, err
			}
			log.WarnContext(ctx, "Relevance filter failed, treating all messages as relevant",
				"error", err, "malformed", errors.Is(err, ai.ErrMalformedResponse))
			relevant = ai.AllRelevant(pending, "unknown")
		}
	}

	// Step 4: nothing relevant. The full id set is still drained.
	if len(relevant) == 0 {
		if err := a.drain(ctx, ids); err != nil {
			if isContextErr(err) {
				return nil, err
			}
			return failure(fmt.Sprintf("failed to clean up analyzed messages: %v", err)), nil
		}
		log.InfoContext(ctx, "No relevant messages in brief", "message_count", messageCount)

		summary := fmt.Sprintf("Analyzed %d messages, but none matched your topics.", messageCount)
		a.maybeRecordEmpty(ctx, log, userID, topics, summary)
		return &Result{
			Success:      true,
			Summary:      summary,
			MessageCount: messageCount,
			Topics:       topics,
		}, nil
	}

	// Step 5: summarize, drain, record.
	summary, err := a.ai.Summarize(ctx, relevant, topics, a.opts.MaxSummaryLength)
	if err != nil {
		if isContextErr(err) {
			return nil, err
		}
		log.WarnContext(ctx, "Summarization failed, using local fallback", "error", err)
		summary = localSummary(relevant)
	}

	if err := a.drain(ctx, ids); err != nil {
		if isContextErr(err) {
			return nil, err
		}
		return failure(fmt.Sprintf("failed to clean up analyzed messages: %v", err)), nil
	}

	record := &database.BriefRecord{
		UserID:         userID,
		BriefTime:      a.clock.Now().UTC(),
		MessageCount:   len(relevant),
		SummaryPreview: truncate(summary, summaryPreviewLength),
	}
	_ = record.SetTopicList(topics)
	if err := a.store.RecordBrief(ctx, record); err != nil {
		if isContextErr(err) {
			return nil, err
		}
		// Messages are already drained and the brief text exists; losing
		// the ledger entry only widens the next collection window.
		log.ErrorContext(ctx, "Failed to record brief history", "error", err)
	}

	sample := relevant
	if len(sample) > a.opts.SampleSize {
		sample = sample[:a.opts.SampleSize]
	}

	log.InfoContext(ctx, "Brief analysis completed",
		"message_count", messageCount, "relevant_count", len(relevant))
	return &Result{
		Success:       true,
		Summary:       summary,
		MessageCount:  messageCount,
		RelevantCount: len(relevant),
		Topics:        topics,
		Sample:        sample,
	}, nil
}

// GenerateBriefContent renders a result into the delivered brief text:
// time header, stats, summary, commands footer. It always produces
// non-empty text, substituting the error into the template on failure.
func (a *Analyzer) GenerateBriefContent(result *Result, location *time.Location) string {
	if location == nil {
		location = time.UTC
	}
	now := a.clock.Now().In(location)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Your brief — %s\n\n", now.Format("Mon, 02 Jan 2006 15:04 MST")))

	if result.Error != "" {
		sb.WriteString(fmt.Sprintf("Brief generation hit a problem: %s\n\n", result.Error))
	}

	sb.WriteString(fmt.Sprintf("Messages analyzed: %d\n", result.MessageCount))
	sb.WriteString(fmt.Sprintf("Relevant: %d\n", result.RelevantCount))
	if len(result.Topics) > 0 {
		sb.WriteString(fmt.Sprintf("Topics: %s\n", strings.Join(result.Topics, ", ")))
	}
	sb.WriteString("\n")

	summary := result.Summary
	if summary == "" {
		summary = "No summary available."
	}
	sb.WriteString(summary)
	sb.WriteString("\n\n")

	sb.WriteString("Commands: /settings /topics /listchats")
	return sb.String()
}

func (a *Analyzer) drain(ctx context.Context, ids []uint) error {
	if a.opts.MarkInsteadOfDelete {
		return a.store.MarkMessagesProcessed(ctx, ids)
	}
	_, err := a.store.DeleteMessagesByIDs(ctx, ids)
	return err
}

func (a *Analyzer) maybeRecordEmpty(ctx context.Context, log *slog.Logger, userID int64, topics []string, summary string) {
	if !a.opts.RecordEmptyBriefs {
		return
	}
	record := &database.BriefRecord{
		UserID:         userID,
		BriefTime:      a.clock.Now().UTC(),
		SummaryPreview: truncate(summary, summaryPreviewLength),
	}
	_ = record.SetTopicList(topics)
	if err := a.store.RecordBrief(ctx, record); err != nil {
		log.ErrorContext(ctx, "Failed to record empty brief history", "error", err)
	}
}

// localSummary is the last line of defense when the summarization service
// fails: a bullet list built from the first relevant messages. It never
// fails.
func localSummary(relevant []ai.RelevantMessage) string {
	var sb strings.Builder
	sb.WriteString("Summary service unavailable. Most relevant messages:\n")

	n := min(len(relevant), fallbackSummaryItems)
	for i := 0; i < n; i++ {
		msg := relevant[i].Message
		sender := msg.SenderName
		if sender == "" {
			sender = fmt.Sprintf("UID %d", msg.SenderID)
		}
		sb.WriteString(fmt.Sprintf("- %s: %s\n", sender, truncate(msg.MessageText, fallbackMessageLength)))
	}
	if len(relevant) > n {
		sb.WriteString(fmt.Sprintf("(and %d more)\n", len(relevant)-n))
	}
	return sb.String()
}

func failure(msg string) *Result {
	return &Result{Success: false, Error: msg}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
