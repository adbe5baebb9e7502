package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/briefbot/internal/config"
	"github.com/edgard/briefbot/internal/database"
)

type geminiClient struct {
	genaiClient   *genai.Client
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	modelName     string
	maxRetries    int
	retryDelay    time.Duration
}

var filterEntrySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"index":           {Type: genai.TypeInteger, Description: "The message number as shown in the list, starting at 1."},
		"relevance_score": {Type: genai.TypeInteger, Description: "Relevance from 1 (barely related) to 10 (directly about the topic)."},
		"matched_topic":   {Type: genai.TypeString, Description: "The matched topic, lowercase, one of the provided topics."},
	},
	Required: []string{"index", "relevance_score", "matched_topic"},
}

var filterResponseSchema = &genai.Schema{
	Type:        genai.TypeObject,
	Description: "Relevance judgment for a batch of messages.",
	Properties: map[string]*genai.Schema{
		"results": {Type: genai.TypeArray, Description: "One entry per relevant message.", Items: filterEntrySchema},
	},
	Required: []string{"results"},
}

// newGeminiClient creates a Client backed by Google's Gemini API.
func newGeminiClient(ctx context.Context, cfg config.AIConfig, log *slog.Logger) (Client, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Gemini.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	temperature := cfg.Gemini.Temperature
	baseCfg := &genai.GenerateContentConfig{
		Temperature: &temperature,

		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.Gemini.Model)
	return &geminiClient{
		genaiClient:   gi,
		log:           logger,
		contentConfig: baseCfg,
		modelName:     cfg.Gemini.Model,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    time.Duration(cfg.RetryDelaySeconds) * time.Second,
	}, nil
}

func (c *geminiClient) generateContentWithRetries(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.genaiClient.Models.GenerateContent(ctx, c.modelName, contents, cfg)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "Gemini API call failed, checking for retry",
			"attempt", i+1, "max_retries", c.maxRetries, "error", err)

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) {
			if i < c.maxRetries {
				c.log.InfoContext(ctx, "Retrying Gemini API call due to retriable APIError",
					"delay", c.retryDelay, "code", apiErr.Code)
				time.Sleep(c.retryDelay)
				continue
			}
			c.log.ErrorContext(ctx, "Gemini API call failed after max retries with APIError",
				"error", err, "code", apiErr.Code)
			return nil, fmt.Errorf("gemini API call failed after %d retries (APIError code %d): %w",
				c.maxRetries, apiErr.Code, err)
		}

		c.log.ErrorContext(ctx, "Gemini API call failed with non-retriable error", "error", err)
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return nil, err
}

func (c *geminiClient) extractTextFromResponse(ctx context.Context, resp *genai.GenerateContentResponse, op string) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "operation", op, "reason", reasonMsg)
		return "", fmt.Errorf("%s blocked by safety filter: %s", op, reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content",
			"operation", op, "finish_reason", finishReason)
		return "", fmt.Errorf("%s returned no content, finish reason: %s", op, finishReason)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%s returned empty text", op)
	}
	return text, nil
}

// FilterByTopics judges the batch against the topics using JSON schema mode.
func (c *geminiClient) FilterByTopics(ctx context.Context, messages []database.CollectedMessage, topics []string) ([]RelevantMessage, error) {
	if len(messages) == 0 {
		return nil, nil
	}
	if len(topics) == 0 {
		c.log.DebugContext(ctx, "No topics configured, passing all messages through")
		return AllRelevant(messages, "general"), nil
	}

	c.log.DebugContext(ctx, "Filtering messages by topics",
		"message_count", len(messages), "topic_count", len(topics))

	prompt := FilterInstruction + "\n\n" + buildFilterPrompt(messages, topics)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	copyCfg := *c.contentConfig
	copyCfg.ResponseMIMEType = "application/json"
	copyCfg.ResponseSchema = filterResponseSchema

	resp, err := c.generateContentWithRetries(ctx, contents, &copyCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to filter messages: %w", err)
	}

	jsonText, err := c.extractTextFromResponse(ctx, resp, "filter")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	relevant, err := parseFilterResponse(jsonText, messages)
	if err != nil {
		c.log.ErrorContext(ctx, "Failed to parse filter response", "error", err, "response_text", jsonText)
		return nil, err
	}

	c.log.DebugContext(ctx, "Filtered messages",
		"message_count", len(messages), "relevant_count", len(relevant))
	return relevant, nil
}

// Summarize produces the brief's prose summary for the relevant subset.
func (c *geminiClient) Summarize(ctx context.Context, relevant []RelevantMessage, topics []string, maxLength int) (string, error) {
	if len(relevant) == 0 {
		return "", fmt.Errorf("no relevant messages to summarize")
	}

	c.log.DebugContext(ctx, "Summarizing relevant messages",
		"relevant_count", len(relevant), "max_length", maxLength)

	prompt := SummarizeInstruction + "\n\n" + buildSummaryPrompt(relevant, topics, maxLength)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	copyCfg := *c.contentConfig

	resp, err := c.generateContentWithRetries(ctx, contents, &copyCfg)
	if err != nil {
		return "", fmt.Errorf("failed to summarize messages: %w", err)
	}

	text, err := c.extractTextFromResponse(ctx, resp, "summarize")
	if err != nil {
		return "", err
	}

	return truncateWithEllipsis(text, maxLength), nil
}
