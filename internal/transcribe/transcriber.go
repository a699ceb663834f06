// Package transcribe converts call recordings to text through an
// OpenAI-compatible speech endpoint (Lemonfox or any Whisper-style host).
package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// FailedMarker prefixes the placeholder transcript the pipeline substitutes
// when transcription fails. Downstream stages key off it.
const FailedMarker = "Transcription failed"

// languageHint biases the model toward the code-mixed speech these calls
// actually carry; without it Whisper-class models drift to one language.
const languageHint = "This is a Hindi-English (Hinglish) code-mixed phone call. Transcribe it accurately, keeping each phrase in the language it was spoken in."

type Client struct {
	api   *openai.Client
	model string
}

// New builds a transcription client. baseURL may point at Lemonfox, OpenAI,
// or any gateway speaking the same audio API.
func New(baseURL, apiKey, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{api: openai.NewClientWithConfig(cfg), model: model}
}

// Transcribe submits the recording as an opaque blob and returns the text.
// Single remote call, no retry; the orchestrator degrades on failure.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio payload")
	}
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: "recording.mp3",
		Reader:   bytes.NewReader(audio),
		Prompt:   languageHint,
	})
	if err != nil {
		return "", fmt.Errorf("create transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}
