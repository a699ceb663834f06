// Package summarize turns a call transcript into a short summary for the
// CRM note.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/udipth01/acefone/internal/transcribe"
)

// NoTranscription is returned without a remote call when there is nothing
// useful to summarize.
const NoTranscription = "No transcription available."

const promptTemplate = "Summarize this phone conversation in 3-5 key points and 1 action suggestion:\n\n%s"

type Client struct {
	api   *openai.Client
	model string
}

// New builds a summarizer against an OpenAI-compatible chat endpoint.
func New(baseURL, apiKey, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{api: openai.NewClientWithConfig(cfg), model: model}
}

// Summarize issues one generation call with the fixed prompt template. Empty
// transcripts and failure placeholders short-circuit to NoTranscription so
// no tokens are spent summarizing nothing.
func (c *Client) Summarize(ctx context.Context, transcript string) (string, error) {
	t := strings.TrimSpace(transcript)
	if t == "" || strings.HasPrefix(t, transcribe.FailedMarker) {
		return NoTranscription, nil
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(promptTemplate, t)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("create summary: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("summary response had no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
