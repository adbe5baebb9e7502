package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/edgard/briefbot/internal/config"
	"github.com/edgard/briefbot/internal/database"
)

type openAIClient struct {
	client      *openai.Client
	log         *slog.Logger
	model       string
	temperature float32
	maxRetries  int
	retryDelay  time.Duration
}

// newOpenAIClient creates a Client backed by the OpenAI chat completions
// API. A custom base URL allows OpenAI-compatible providers.
func newOpenAIClient(cfg config.AIConfig, log *slog.Logger) (Client, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		clientCfg.BaseURL = cfg.OpenAI.BaseURL
	}

	logger := log.With("component", "openai_client")
	logger.Info("OpenAI client initialized successfully",
		"model", cfg.OpenAI.Model, "base_url", clientCfg.BaseURL)
	return &openAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		log:         logger,
		model:       cfg.OpenAI.Model,
		temperature: cfg.OpenAI.Temperature,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  time.Duration(cfg.RetryDelaySeconds) * time.Second,
	}, nil
}

func (c *openAIClient) createChatCompletionWithRetries(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var resp openai.ChatCompletionResponse
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.client.CreateChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "OpenAI API call failed, checking for retry",
			"attempt", i+1, "max_retries", c.maxRetries, "error", err)

		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && (apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500) {
			if i < c.maxRetries {
				c.log.InfoContext(ctx, "Retrying OpenAI API call due to retriable APIError",
					"delay", c.retryDelay, "status_code", apiErr.HTTPStatusCode)
				time.Sleep(c.retryDelay)
				continue
			}
			c.log.ErrorContext(ctx, "OpenAI API call failed after max retries with APIError",
				"error", err, "status_code", apiErr.HTTPStatusCode)
			return resp, fmt.Errorf("openai API call failed after %d retries (status %d): %w",
				c.maxRetries, apiErr.HTTPStatusCode, err)
		}

		c.log.ErrorContext(ctx, "OpenAI API call failed with non-retriable error", "error", err)
		return resp, fmt.Errorf("openai API call failed: %w", err)
	}
	return resp, err
}

func extractChoiceText(resp openai.ChatCompletionResponse, op string) (string, error) {
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%s returned no content", op)
	}
	return resp.Choices[0].Message.Content, nil
}

// FilterByTopics judges the batch against the topics using JSON object mode.
func (c *openAIClient) FilterByTopics(ctx context.Context, messages []database.CollectedMessage, topics []string) ([]RelevantMessage, error) {
	if len(messages) == 0 {
		return nil, nil
	}
	if len(topics) == 0 {
		c.log.DebugContext(ctx, "No topics configured, passing all messages through")
		return AllRelevant(messages, "general"), nil
	}

	c.log.DebugContext(ctx, "Filtering messages by topics",
		"message_count", len(messages), "topic_count", len(topics))

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: FilterInstruction},
			{Role: openai.ChatMessageRoleUser, Content: buildFilterPrompt(messages, topics)},
		},
	}

	resp, err := c.createChatCompletionWithRetries(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to filter messages: %w", err)
	}

	jsonText, err := extractChoiceText(resp, "filter")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	relevant, err := parseFilterResponse(jsonText, messages)
	if err != nil {
		c.log.ErrorContext(ctx, "Failed to parse filter response", "error", err, "response_text", jsonText)
		return nil, err
	}

	c.log.DebugContext(ctx, "Filtered messages",
		"message_count", len(messages), "relevant_count", len(relevant), "tokens", resp.Usage.TotalTokens)
	return relevant, nil
}

// Summarize produces the brief's prose summary for the relevant subset.
func (c *openAIClient) Summarize(ctx context.Context, relevant []RelevantMessage, topics []string, maxLength int) (string, error) {
	if len(relevant) == 0 {
		return "", fmt.Errorf("no relevant messages to summarize")
	}

	c.log.DebugContext(ctx, "Summarizing relevant messages",
		"relevant_count", len(relevant), "max_length", maxLength)

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SummarizeInstruction},
			{Role: openai.ChatMessageRoleUser, Content: buildSummaryPrompt(relevant, topics, maxLength)},
		},
	}

	resp, err := c.createChatCompletionWithRetries(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to summarize messages: %w", err)
	}

	text, err := extractChoiceText(resp, "summarize")
	if err != nil {
		return "", err
	}

	return truncateWithEllipsis(text, maxLength), nil
}
