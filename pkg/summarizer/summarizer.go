// Package summarizer produces short natural-language summaries of Drive
// file contents through an OpenAI-compatible chat completions API.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/sipeed/driveclaw/pkg/config"
)

const systemPrompt = "You summarize user files. Reply with a concise summary " +
	"in at most five sentences. Do not invent content that is not in the input."

// maxPromptBytes bounds how much file content goes into a single request.
// Inputs above this are truncated, not rejected; the size ceiling for
// rejecting files outright lives in the Drive fetch step.
const maxPromptBytes = 48 * 1024

type Summarizer struct {
	client openai.Client
	model  string
}

func New(cfg config.SummarizerConfig) (*Summarizer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("summarizer API key not configured")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Summarizer{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

// Summarize asks the model for a summary of the named file's content.
func (s *Summarizer) Summarize(ctx context.Context, name string, content []byte) (string, error) {
	text := strings.ToValidUTF8(string(content), "")
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s has no readable text content", name)
	}
	if len(text) > maxPromptBytes {
		text = text[:maxPromptBytes]
	}

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(fmt.Sprintf("File: %s\n\n%s", name, text)),
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("summarizer API request failed (status=%d): %s",
				apiErr.StatusCode, strings.TrimSpace(apiErr.Message))
		}
		return "", fmt.Errorf("summarizer API request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("summarizer API returned no choices")
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", errors.New("summarizer API returned an empty summary")
	}
	return summary, nil
}
